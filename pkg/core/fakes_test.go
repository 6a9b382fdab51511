package core_test

import (
	"context"
	"errors"
	"sync"

	"github.com/collectiq/agentmem-go/pkg/archive"
	"github.com/collectiq/agentmem-go/pkg/llm"
	"github.com/collectiq/agentmem-go/pkg/memerr"
)

// scriptedLLM plays back queued responses in call order. When err is set
// every call fails with it instead.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
}

func (s *scriptedLLM) Complete(_ context.Context, _ []llm.Message, _ ...llm.CompletionOption) (*llm.Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
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

// fakeEmbedder returns the same unit vector for every text.
type fakeEmbedder struct {
	dims int
	err  error
}

func (f *fakeEmbedder) vector() []float64 {
	v := make([]float64, f.dims)
	v[0] = 1
	return v
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector(), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float64, error) {
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

// fakeArchive keeps records per collection with upsert-replace semantics
// and serves Search from the standing records in insertion order.
type fakeArchive struct {
	mu      sync.Mutex
	records map[string]map[string]*archive.Record
	order   map[string][]string
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{
		records: make(map[string]map[string]*archive.Record),
		order:   make(map[string][]string),
	}
}

func (f *fakeArchive) EnsureCollections(context.Context) error { return nil }

func (f *fakeArchive) Upsert(_ context.Context, collection string, records []*archive.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	byID, ok := f.records[collection]
	if !ok {
		byID = make(map[string]*archive.Record)
		f.records[collection] = byID
	}
	for _, record := range records {
		if _, exists := byID[record.ID]; !exists {
			f.order[collection] = append(f.order[collection], record.ID)
		}
		byID[record.ID] = record
	}
	return nil
}

func (f *fakeArchive) Search(_ context.Context, collection string, _ []float64, params *archive.SearchParams) ([]*archive.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	kind := archive.KindOf(collection)
	var filter *archive.Filter
	if params != nil {
		filter = params.Filter
	}

	out := make([]*archive.Record, 0, len(f.order[collection]))
	for _, id := range f.order[collection] {
		record, ok := f.records[collection][id]
		if !ok {
			continue
		}
		if filter != nil && !archive.FilterMatches(filter, kind, record.Payload) {
			continue
		}
		out = append(out, record)
		if limit := params.EffectiveLimit(); len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeArchive) GetByID(_ context.Context, collection, id string) (*archive.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if record, ok := f.records[collection][id]; ok {
		return record, nil
	}
	return nil, memerr.NotFound("fake.get", "record %s not found", id)
}

func (f *fakeArchive) DeleteByFilter(_ context.Context, collection string, filter *archive.Filter) (int64, error) {
	if filter.IsZero() {
		return 0, memerr.Validation("fake.delete", "filter is required")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	kind := archive.KindOf(collection)
	var deleted int64
	kept := f.order[collection][:0]
	for _, id := range f.order[collection] {
		record := f.records[collection][id]
		if archive.FilterMatches(filter, kind, record.Payload) {
			delete(f.records[collection], id)
			deleted++
			continue
		}
		kept = append(kept, id)
	}
	f.order[collection] = kept
	return deleted, nil
}

func (f *fakeArchive) Count(_ context.Context, collection string, _ *archive.Filter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.records[collection])), nil
}

func (f *fakeArchive) Ping(context.Context) error { return nil }

func (f *fakeArchive) Close() error { return nil }
