package retrieval_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/collectiq/agentmem-go/pkg/archive"
	"github.com/collectiq/agentmem-go/pkg/llm"
	"github.com/collectiq/agentmem-go/pkg/memerr"
	"github.com/collectiq/agentmem-go/pkg/types"
)

// scriptedLLM plays back queued responses in call order. When err is set
// every call fails with it instead.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     []string
}

func (s *scriptedLLM) Complete(_ context.Context, messages []llm.Message, _ ...llm.CompletionOption) (*llm.Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prompt := ""
	if len(messages) > 0 {
		prompt = messages[len(messages)-1].Content
	}
	s.calls = append(s.calls, prompt)

	if s.err != nil {
		return nil, s.err
	}
	if len(s.responses) == 0 {
		return nil, errors.New("scripted llm exhausted")
	}
	content := s.responses[0]
	s.responses = s.responses[1:]
	return &llm.Completion{Content: content, Model: "scripted"}, nil
}

func (s *scriptedLLM) Close() error { return nil }

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *scriptedLLM) call(i int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[i]
}

// fakeEmbedder returns the same unit vector for every text.
type fakeEmbedder struct {
	mu    sync.Mutex
	dims  int
	err   error
	calls int
}

func (f *fakeEmbedder) vector() []float64 {
	v := make([]float64, f.dims)
	v[0] = 1
	return v
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector(), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float64, len(texts))
	for i := range texts {
		vectors[i] = f.vector()
	}
	return vectors, nil
}

func (f *fakeEmbedder) Dimensions() int { return f.dims }

func (f *fakeEmbedder) Close() error { return nil }

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recordedSearch is one Search call the fake archive served.
type recordedSearch struct {
	Collection string
	Params     *archive.SearchParams
}

// fakeArchive serves canned records per collection and records every
// Search call. Queued result sets, when present, are consumed one per
// call before the standing records are used.
type fakeArchive struct {
	mu        sync.Mutex
	records   map[string][]*archive.Record
	queued    map[string][][]*archive.Record
	errs      map[string]error
	searchErr error
	searches  []recordedSearch
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{
		records: make(map[string][]*archive.Record),
		queued:  make(map[string][][]*archive.Record),
		errs:    make(map[string]error),
	}
}

func (f *fakeArchive) EnsureCollections(context.Context) error { return nil }

func (f *fakeArchive) Upsert(_ context.Context, collection string, records []*archive.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[collection] = append(f.records[collection], records...)
	return nil
}

func (f *fakeArchive) Search(_ context.Context, collection string, _ []float64, params *archive.SearchParams) ([]*archive.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.searches = append(f.searches, recordedSearch{Collection: collection, Params: params})
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if err := f.errs[collection]; err != nil {
		return nil, err
	}
	if queue := f.queued[collection]; len(queue) > 0 {
		records := queue[0]
		f.queued[collection] = queue[1:]
		return records, nil
	}
	return f.records[collection], nil
}

func (f *fakeArchive) GetByID(_ context.Context, collection, id string) (*archive.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, record := range f.records[collection] {
		if record.ID == id {
			return record, nil
		}
	}
	return nil, memerr.NotFound("fake.get", "record %s not found", id)
}

func (f *fakeArchive) DeleteByFilter(context.Context, string, *archive.Filter) (int64, error) {
	return 0, nil
}

func (f *fakeArchive) Count(_ context.Context, collection string, _ *archive.Filter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.records[collection])), nil
}

func (f *fakeArchive) Ping(context.Context) error { return nil }

func (f *fakeArchive) Close() error { return nil }

func (f *fakeArchive) searchedCollections() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.searches))
	for _, s := range f.searches {
		out = append(out, s.Collection)
	}
	return out
}

// sampleInteraction builds an episodic memory carrying every field the
// assembler and insight derivation read.
func sampleInteraction(id string, success bool, tags ...string) *types.EpisodicMemory {
	return &types.EpisodicMemory{
		ID:         id,
		Timestamp:  time.Date(2026, 5, 12, 10, 0, 0, 0, time.UTC),
		CustomerID: "cust-2201",
		CampaignID: "q2-auto-loans",
		AgentType:  types.AgentTypePhone,
		Transcript: "agent: any chance of a payment today?\ncustomer: I can do half now",
		Channel:    "phone",
		Outcome: types.Outcome{
			Success:         success,
			PaymentReceived: success,
			Amount:          310,
		},
		Context: types.ContextSnapshot{
			RiskTier:       "medium",
			PaymentHistory: "sporadic",
			PriorAttempts:  2,
		},
		Tags:      tags,
		Sentiment: types.SentimentNeutral,
	}
}

// sampleStrategy builds a semantic memory with the given track record.
func sampleStrategy(id, title string, rate float64, applied int) *types.SemanticMemory {
	return &types.SemanticMemory{
		ID:           id,
		Category:     "negotiation_tactics",
		Title:        title,
		Description:  "offer a split payment when the customer cannot cover the full balance",
		Content:      "Open with the full amount, then offer half now and half in two weeks.",
		SuccessRate:  rate,
		TimesApplied: applied,
		Confidence:   0.8,
		CreatedAt:    time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		LastUpdated:  time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}
