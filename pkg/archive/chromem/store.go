// Package chromem provides an embedded archive backend on chromem-go.
//
// It needs no external service, which makes it the default for tests and
// single-binary deployments. Each archive collection maps to one chromem
// collection; payloads ride in the document content as JSON, equality
// fields in the document metadata. chromem exposes no scan operation, so
// range and list conditions enumerate through a unit probe vector query
// sized to the full collection, which is fine at embedded scale.
package chromem

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/collectiq/agentmem-go/pkg/archive"
	"github.com/collectiq/agentmem-go/pkg/memerr"
)

// Config contains chromem configuration.
type Config struct {
	// Path persists the database to disk. Empty keeps it in memory.
	Path string

	// Compress gzips the persisted files.
	Compress bool

	// EpisodicCollection overrides the episodic collection name.
	EpisodicCollection string

	// SemanticCollection overrides the semantic collection name.
	SemanticCollection string

	// Dimensions is the embedding dimensionality. Defaults to
	// archive.DefaultDimensions.
	Dimensions int
}

// Store implements archive.Store on chromem-go.
type Store struct {
	db         *chromemgo.DB
	episodic   string
	semantic   string
	dimensions int
}

// NewStore opens the database and ensures both collections exist.
func NewStore(cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	var db *chromemgo.DB
	var err error
	if cfg.Path != "" {
		db, err = chromemgo.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, memerr.New("NewStore", err)
		}
	} else {
		db = chromemgo.NewDB()
	}

	store := &Store{
		db:         db,
		episodic:   collectionOrDefault(cfg.EpisodicCollection, archive.CollectionEpisodic),
		semantic:   collectionOrDefault(cfg.SemanticCollection, archive.CollectionSemantic),
		dimensions: cfg.Dimensions,
	}
	if store.dimensions <= 0 {
		store.dimensions = archive.DefaultDimensions
	}

	if err := store.EnsureCollections(context.Background()); err != nil {
		return nil, err
	}
	return store, nil
}

// explicitEmbeddings rejects implicit embedding: every write and search
// in this package carries a precomputed vector.
func explicitEmbeddings(context.Context, string) ([]float32, error) {
	return nil, errors.New("chromem backend requires precomputed embeddings")
}

// EnsureCollections creates or reloads both collections.
func (s *Store) EnsureCollections(context.Context) error {
	for _, name := range []string{s.episodic, s.semantic} {
		if _, err := s.db.GetOrCreateCollection(name, nil, explicitEmbeddings); err != nil {
			return memerr.New("EnsureCollections", err)
		}
	}
	return nil
}

// Upsert writes records, replacing documents that share an id.
func (s *Store) Upsert(ctx context.Context, collection string, records []*archive.Record) error {
	col, kind, err := s.collection(collection)
	if err != nil {
		return err
	}

	for _, rec := range records {
		if rec == nil || rec.ID == "" {
			return memerr.Validation("Upsert", "record id is required")
		}
		if len(rec.Vector) != s.dimensions {
			return memerr.Validation("Upsert", "vector has %d dimensions, collection expects %d", len(rec.Vector), s.dimensions)
		}

		payloadJSON, err := json.Marshal(rec.Payload)
		if err != nil {
			return memerr.New("Upsert", err)
		}

		doc := chromemgo.Document{
			ID:        rec.ID,
			Metadata:  documentMetadata(rec.Payload, kind),
			Embedding: toFloat32(rec.Vector),
			Content:   string(payloadJSON),
		}
		if err := col.AddDocument(ctx, doc); err != nil {
			return memerr.New("Upsert", err)
		}
	}
	return nil
}

// Search performs similarity search with metadata narrowing and the shared
// in-process filter for the rest.
func (s *Store) Search(ctx context.Context, collection string, vector []float64, params *archive.SearchParams) ([]*archive.Record, error) {
	col, kind, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	if len(vector) != s.dimensions {
		return nil, memerr.Validation("Search", "vector has %d dimensions, collection expects %d", len(vector), s.dimensions)
	}
	if params == nil {
		params = &archive.SearchParams{}
	}

	total := col.Count()
	if total == 0 {
		return nil, nil
	}

	limit := params.EffectiveLimit()
	fetch := limit
	// Residual conditions can exclude arbitrarily many candidates, so
	// they rank the whole collection.
	if needsResidual(params.Filter, kind) || fetch > total {
		fetch = total
	}

	results, err := col.QueryEmbedding(ctx, toFloat32(vector), fetch, whereEquality(params.Filter, kind), nil)
	if err != nil {
		return nil, memerr.New("Search", err)
	}

	var matches []*archive.Record
	for _, result := range results {
		if float64(result.Similarity) < params.ScoreThreshold {
			continue
		}
		rec, err := recordFromResult(result.ID, result.Embedding, result.Content)
		if err != nil {
			return nil, memerr.New("Search", err)
		}
		if params.Filter != nil && !archive.FilterMatches(params.Filter, kind, rec.Payload) {
			continue
		}
		rec.Score = float64(result.Similarity)
		matches = append(matches, rec)
		if len(matches) == limit {
			break
		}
	}
	return matches, nil
}

// GetByID returns one record.
func (s *Store) GetByID(ctx context.Context, collection, id string) (*archive.Record, error) {
	col, _, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	doc, err := col.GetByID(ctx, id)
	if err != nil {
		return nil, memerr.NotFound("GetByID", "record %s in %s", id, collection)
	}
	return recordFromResult(doc.ID, doc.Embedding, doc.Content)
}

// DeleteByFilter removes matching records and reports how many went.
func (s *Store) DeleteByFilter(ctx context.Context, collection string, f *archive.Filter) (int64, error) {
	col, kind, err := s.collection(collection)
	if err != nil {
		return 0, err
	}
	if f.IsZero() {
		return 0, memerr.Validation("DeleteByFilter", "refusing to delete with an empty filter")
	}

	ids, err := s.matchingIDs(ctx, col, kind, f)
	if err != nil {
		return 0, memerr.New("DeleteByFilter", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if err := col.Delete(ctx, nil, nil, ids...); err != nil {
		return 0, memerr.New("DeleteByFilter", err)
	}
	return int64(len(ids)), nil
}

// Count reports how many records match the filter.
func (s *Store) Count(ctx context.Context, collection string, f *archive.Filter) (int64, error) {
	col, kind, err := s.collection(collection)
	if err != nil {
		return 0, err
	}

	if f.IsZero() {
		return int64(col.Count()), nil
	}

	ids, err := s.matchingIDs(ctx, col, kind, f)
	if err != nil {
		return 0, memerr.New("Count", err)
	}
	return int64(len(ids)), nil
}

// Ping reports readiness. The store is embedded, so only context state
// can fail it.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op; persistence happens on every write.
func (s *Store) Close() error {
	return nil
}

// matchingIDs enumerates the collection through a probe query and applies
// the shared filter evaluator.
func (s *Store) matchingIDs(ctx context.Context, col *chromemgo.Collection, kind archive.Kind, f *archive.Filter) ([]string, error) {
	total := col.Count()
	if total == 0 {
		return nil, nil
	}

	results, err := col.QueryEmbedding(ctx, unitProbe(s.dimensions), total, whereEquality(f, kind), nil)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, result := range results {
		var payload map[string]interface{}
		if err := json.Unmarshal([]byte(result.Content), &payload); err != nil {
			return nil, err
		}
		if archive.FilterMatches(f, kind, payload) {
			ids = append(ids, result.ID)
		}
	}
	return ids, nil
}

// collection resolves a collection name to its handle and kind.
func (s *Store) collection(collection string) (*chromemgo.Collection, archive.Kind, error) {
	var name string
	var kind archive.Kind
	switch collection {
	case archive.CollectionEpisodic, s.episodic:
		name, kind = s.episodic, archive.KindEpisodic
	case archive.CollectionSemantic, s.semantic:
		name, kind = s.semantic, archive.KindSemantic
	default:
		return nil, 0, memerr.Validation("collection", "unknown collection %q", collection)
	}

	col := s.db.GetCollection(name, explicitEmbeddings)
	if col == nil {
		return nil, 0, memerr.Consistency("collection", "collection %q disappeared", name)
	}
	return col, kind, nil
}

func collectionOrDefault(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

// documentMetadata extracts the equality-filterable fields a collection
// owns into chromem's string metadata.
func documentMetadata(payload map[string]interface{}, kind archive.Kind) map[string]string {
	fields := archive.ExtractIndexFields(payload)
	meta := make(map[string]string)

	switch kind {
	case archive.KindEpisodic:
		if fields.CustomerID != "" {
			meta["customer_id"] = fields.CustomerID
		}
		if fields.CampaignID != "" {
			meta["campaign_id"] = fields.CampaignID
		}
		if fields.AgentType != "" {
			meta["agent_type"] = fields.AgentType
		}
		if fields.RiskTier != "" {
			meta["risk_tier"] = fields.RiskTier
		}
		meta["success"] = strconv.FormatBool(fields.Success)
	case archive.KindSemantic:
		if fields.Category != "" {
			meta["category"] = fields.Category
		}
	}

	if len(meta) == 0 {
		return nil
	}
	return meta
}

// whereEquality translates the metadata-expressible filter subset into a
// chromem where map.
func whereEquality(f *archive.Filter, kind archive.Kind) map[string]string {
	if f.IsZero() {
		return nil
	}

	where := make(map[string]string)
	switch kind {
	case archive.KindEpisodic:
		if f.CustomerID != "" {
			where["customer_id"] = f.CustomerID
		}
		if f.CampaignID != "" {
			where["campaign_id"] = f.CampaignID
		}
		if f.AgentType != "" {
			where["agent_type"] = f.AgentType
		}
		if f.SuccessOnly {
			where["success"] = "true"
		}
		if len(f.RiskTiers) == 1 {
			where["risk_tier"] = f.RiskTiers[0]
		}
	case archive.KindSemantic:
		if f.Category != "" {
			where["category"] = f.Category
		}
	}

	if len(where) == 0 {
		return nil
	}
	return where
}

// needsResidual reports whether evaluating the filter requires payload
// fields beyond the equality metadata.
func needsResidual(f *archive.Filter, kind archive.Kind) bool {
	if f.IsZero() {
		return false
	}
	if f.OlderThan != nil {
		return true
	}
	switch kind {
	case archive.KindEpisodic:
		return len(f.Tags) > 0 || len(f.RiskTiers) > 1
	case archive.KindSemantic:
		return f.MinSuccessRate > 0 || f.MinConfidence > 0 || len(f.RiskTiers) > 0
	}
	return false
}

func recordFromResult(id string, embedding []float32, content string) (*archive.Record, error) {
	var payload map[string]interface{}
	if content != "" {
		if err := json.Unmarshal([]byte(content), &payload); err != nil {
			return nil, err
		}
	}

	vector := make([]float64, len(embedding))
	for i, v := range embedding {
		vector[i] = float64(v)
	}
	return &archive.Record{ID: id, Vector: vector, Payload: payload}, nil
}

// unitProbe is a fixed direction used only to enumerate a collection;
// ranking order does not matter for enumeration.
func unitProbe(dimensions int) []float32 {
	probe := make([]float32, dimensions)
	probe[0] = 1
	return probe
}

func toFloat32(vector []float64) []float32 {
	out := make([]float32, len(vector))
	for i, v := range vector {
		out[i] = float32(v)
	}
	return out
}
