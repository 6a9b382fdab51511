// Package qdrant provides the Qdrant archive backend over gRPC.
//
// Qdrant evaluates every filter server side, including the nested
// outcome and context payload fields, so no in-process residual pass is
// needed. Episodic records use their UUID ids as point ids; semantic
// records use their numeric ids.
package qdrant

import (
	"context"

	qdrantgo "github.com/qdrant/go-client/qdrant"

	"github.com/collectiq/agentmem-go/pkg/archive"
	"github.com/collectiq/agentmem-go/pkg/memerr"
)

// Config contains Qdrant configuration.
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool

	// EpisodicCollection overrides the episodic collection name.
	EpisodicCollection string

	// SemanticCollection overrides the semantic collection name.
	SemanticCollection string

	// Dimensions is the embedding dimensionality. Defaults to
	// archive.DefaultDimensions.
	Dimensions int
}

// Client implements archive.Store on Qdrant.
type Client struct {
	client     *qdrantgo.Client
	episodic   string
	semantic   string
	dimensions int
}

// NewClient connects to Qdrant and ensures both collections exist.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.Host == "" {
		return nil, memerr.Configuration("NewClient", "qdrant host is required")
	}

	port := cfg.Port
	if port == 0 {
		port = 6334
	}

	qc, err := qdrantgo.NewClient(&qdrantgo.Config{
		Host:   cfg.Host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, memerr.Transient("NewClient", err)
	}

	client := &Client{
		client:     qc,
		episodic:   collectionOrDefault(cfg.EpisodicCollection, archive.CollectionEpisodic),
		semantic:   collectionOrDefault(cfg.SemanticCollection, archive.CollectionSemantic),
		dimensions: cfg.Dimensions,
	}
	if client.dimensions <= 0 {
		client.dimensions = archive.DefaultDimensions
	}

	if err := client.EnsureCollections(context.Background()); err != nil {
		_ = qc.Close()
		return nil, err
	}
	return client, nil
}

// EnsureCollections creates both collections with cosine distance and the
// payload indexes the filters rely on.
func (c *Client) EnsureCollections(ctx context.Context) error {
	for _, spec := range []struct {
		name string
		kind archive.Kind
	}{
		{c.episodic, archive.KindEpisodic},
		{c.semantic, archive.KindSemantic},
	} {
		exists, err := c.client.CollectionExists(ctx, spec.name)
		if err != nil {
			return mapError("EnsureCollections", err)
		}
		if exists {
			continue
		}

		err = c.client.CreateCollection(ctx, &qdrantgo.CreateCollection{
			CollectionName: spec.name,
			VectorsConfig: qdrantgo.NewVectorsConfig(&qdrantgo.VectorParams{
				Size:     uint64(c.dimensions),
				Distance: qdrantgo.Distance_Cosine,
			}),
		})
		if err != nil {
			return mapError("EnsureCollections", err)
		}
		if err := c.createFieldIndexes(ctx, spec.name, spec.kind); err != nil {
			return err
		}
	}
	return nil
}

// createFieldIndexes indexes the payload fields each collection filters on.
func (c *Client) createFieldIndexes(ctx context.Context, collection string, kind archive.Kind) error {
	type fieldIndex struct {
		name string
		typ  qdrantgo.FieldType
	}

	var fields []fieldIndex
	switch kind {
	case archive.KindEpisodic:
		fields = []fieldIndex{
			{"customer_id", qdrantgo.FieldType_FieldTypeKeyword},
			{"campaign_id", qdrantgo.FieldType_FieldTypeKeyword},
			{"agent_type", qdrantgo.FieldType_FieldTypeKeyword},
			{"outcome.success", qdrantgo.FieldType_FieldTypeBool},
			{"context.risk_tier", qdrantgo.FieldType_FieldTypeKeyword},
			{"tags", qdrantgo.FieldType_FieldTypeKeyword},
			{"timestamp", qdrantgo.FieldType_FieldTypeDatetime},
		}
	case archive.KindSemantic:
		fields = []fieldIndex{
			{"category", qdrantgo.FieldType_FieldTypeKeyword},
			{"applicability.risk_tiers", qdrantgo.FieldType_FieldTypeKeyword},
			{"success_rate", qdrantgo.FieldType_FieldTypeFloat},
			{"confidence", qdrantgo.FieldType_FieldTypeFloat},
			{"created_at", qdrantgo.FieldType_FieldTypeDatetime},
		}
	}

	for _, field := range fields {
		_, err := c.client.CreateFieldIndex(ctx, &qdrantgo.CreateFieldIndexCollection{
			CollectionName: collection,
			FieldName:      field.name,
			FieldType:      field.typ.Enum(),
			Wait:           qdrantgo.PtrOf(true),
		})
		if err != nil {
			return mapError("EnsureCollections", err)
		}
	}
	return nil
}

// Upsert writes records, replacing points that share an id.
func (c *Client) Upsert(ctx context.Context, collection string, records []*archive.Record) error {
	name, _, err := c.collection(collection)
	if err != nil {
		return err
	}

	points := make([]*qdrantgo.PointStruct, 0, len(records))
	for _, rec := range records {
		if rec == nil || rec.ID == "" {
			return memerr.Validation("Upsert", "record id is required")
		}
		if len(rec.Vector) != c.dimensions {
			return memerr.Validation("Upsert", "vector has %d dimensions, collection expects %d", len(rec.Vector), c.dimensions)
		}

		id, err := pointID(rec.ID)
		if err != nil {
			return memerr.Validation("Upsert", "%v", err)
		}
		points = append(points, &qdrantgo.PointStruct{
			Id:      id,
			Vectors: qdrantgo.NewVectors(toFloat32(rec.Vector)...),
			Payload: qdrantgo.NewValueMap(rec.Payload),
		})
	}

	_, err = c.client.Upsert(ctx, &qdrantgo.UpsertPoints{
		CollectionName: name,
		Points:         points,
		Wait:           qdrantgo.PtrOf(true),
	})
	if err != nil {
		return mapError("Upsert", err)
	}
	return nil
}

// Search performs vector search with server-side filtering and threshold.
func (c *Client) Search(ctx context.Context, collection string, vector []float64, params *archive.SearchParams) ([]*archive.Record, error) {
	name, kind, err := c.collection(collection)
	if err != nil {
		return nil, err
	}
	if len(vector) != c.dimensions {
		return nil, memerr.Validation("Search", "vector has %d dimensions, collection expects %d", len(vector), c.dimensions)
	}
	if params == nil {
		params = &archive.SearchParams{}
	}

	query := &qdrantgo.QueryPoints{
		CollectionName: name,
		Query:          qdrantgo.NewQuery(toFloat32(vector)...),
		Filter:         buildFilter(params.Filter, kind),
		Limit:          qdrantgo.PtrOf(uint64(params.EffectiveLimit())),
		WithPayload:    qdrantgo.NewWithPayload(true),
		WithVectors:    qdrantgo.NewWithVectors(true),
	}
	if params.ScoreThreshold > 0 {
		query.ScoreThreshold = qdrantgo.PtrOf(float32(params.ScoreThreshold))
	}

	points, err := c.client.Query(ctx, query)
	if err != nil {
		return nil, mapError("Search", err)
	}

	records := make([]*archive.Record, 0, len(points))
	for _, point := range points {
		records = append(records, &archive.Record{
			ID:      idToString(point.GetId()),
			Vector:  vectorsOutputToFloat64(point.GetVectors()),
			Payload: payloadToMap(point.GetPayload()),
			Score:   float64(point.GetScore()),
		})
	}
	return records, nil
}

// GetByID returns one record.
func (c *Client) GetByID(ctx context.Context, collection, id string) (*archive.Record, error) {
	name, _, err := c.collection(collection)
	if err != nil {
		return nil, err
	}

	pid, err := pointID(id)
	if err != nil {
		return nil, memerr.Validation("GetByID", "%v", err)
	}

	points, err := c.client.Get(ctx, &qdrantgo.GetPoints{
		CollectionName: name,
		Ids:            []*qdrantgo.PointId{pid},
		WithPayload:    qdrantgo.NewWithPayload(true),
		WithVectors:    qdrantgo.NewWithVectors(true),
	})
	if err != nil {
		return nil, mapError("GetByID", err)
	}
	if len(points) == 0 {
		return nil, memerr.NotFound("GetByID", "record %s in %s", id, collection)
	}

	point := points[0]
	return &archive.Record{
		ID:      idToString(point.GetId()),
		Vector:  vectorsOutputToFloat64(point.GetVectors()),
		Payload: payloadToMap(point.GetPayload()),
	}, nil
}

// DeleteByFilter removes matching records. Qdrant's delete acknowledges
// without a count, so the count is taken just before the delete.
func (c *Client) DeleteByFilter(ctx context.Context, collection string, f *archive.Filter) (int64, error) {
	name, kind, err := c.collection(collection)
	if err != nil {
		return 0, err
	}
	if f.IsZero() {
		return 0, memerr.Validation("DeleteByFilter", "refusing to delete with an empty filter")
	}

	filter := buildFilter(f, kind)

	matched, err := c.client.Count(ctx, &qdrantgo.CountPoints{
		CollectionName: name,
		Filter:         filter,
		Exact:          qdrantgo.PtrOf(true),
	})
	if err != nil {
		return 0, mapError("DeleteByFilter", err)
	}
	if matched == 0 {
		return 0, nil
	}

	_, err = c.client.Delete(ctx, &qdrantgo.DeletePoints{
		CollectionName: name,
		Points:         qdrantgo.NewPointsSelectorFilter(filter),
		Wait:           qdrantgo.PtrOf(true),
	})
	if err != nil {
		return 0, mapError("DeleteByFilter", err)
	}
	return int64(matched), nil
}

// Count reports how many records match the filter.
func (c *Client) Count(ctx context.Context, collection string, f *archive.Filter) (int64, error) {
	name, kind, err := c.collection(collection)
	if err != nil {
		return 0, err
	}

	total, err := c.client.Count(ctx, &qdrantgo.CountPoints{
		CollectionName: name,
		Filter:         buildFilter(f, kind),
		Exact:          qdrantgo.PtrOf(true),
	})
	if err != nil {
		return 0, mapError("Count", err)
	}
	return int64(total), nil
}

// Ping verifies the Qdrant connection.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.client.HealthCheck(ctx); err != nil {
		return memerr.Transient("Ping", err)
	}
	return nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// collection resolves a collection name to its configured name and kind.
func (c *Client) collection(collection string) (string, archive.Kind, error) {
	switch collection {
	case archive.CollectionEpisodic, c.episodic:
		return c.episodic, archive.KindEpisodic, nil
	case archive.CollectionSemantic, c.semantic:
		return c.semantic, archive.KindSemantic, nil
	default:
		return "", 0, memerr.Validation("collection", "unknown collection %q", collection)
	}
}

func collectionOrDefault(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
