// Package postgres provides the PostgreSQL + pgvector archive backend.
//
// Similarity runs server side through pgvector's <=> cosine distance
// operator, with an HNSW index per collection. Filterable payload fields
// are materialized as indexed columns; the full payload rides along as
// JSONB.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/collectiq/agentmem-go/pkg/archive"
	"github.com/collectiq/agentmem-go/pkg/memerr"
)

// residualFetchFactor widens the SQL LIMIT when part of the filter can
// only be evaluated in process, so post-filtering still fills the
// requested limit.
const residualFetchFactor = 4

// Config contains PostgreSQL configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	// EpisodicCollection overrides the episodic table name.
	EpisodicCollection string

	// SemanticCollection overrides the semantic table name.
	SemanticCollection string

	// Dimensions is the embedding dimensionality. Defaults to
	// archive.DefaultDimensions.
	Dimensions int
}

// Client implements archive.Store on PostgreSQL with pgvector.
type Client struct {
	db         *sql.DB
	episodic   string
	semantic   string
	dimensions int
}

// NewClient connects to PostgreSQL and ensures both collection tables,
// the pgvector extension, and the vector indexes exist.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.Host == "" {
		return nil, memerr.Configuration("NewClient", "postgres host is required")
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, memerr.Transient("NewClient", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, memerr.Transient("NewClient", err)
	}

	client := &Client{
		db:         db,
		episodic:   tableOrDefault(cfg.EpisodicCollection, archive.CollectionEpisodic),
		semantic:   tableOrDefault(cfg.SemanticCollection, archive.CollectionSemantic),
		dimensions: cfg.Dimensions,
	}
	if client.dimensions <= 0 {
		client.dimensions = archive.DefaultDimensions
	}
	if err := validateTableName(client.episodic); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := validateTableName(client.semantic); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := client.EnsureCollections(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return client, nil
}

// EnsureCollections enables pgvector and creates both collection tables
// with their HNSW indexes.
func (c *Client) EnsureCollections(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return memerr.Transient("EnsureCollections", err)
	}

	for _, table := range []string{c.episodic, c.semantic} {
		ddl := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				customer_id VARCHAR(255),
				campaign_id VARCHAR(255),
				agent_type VARCHAR(64),
				category VARCHAR(255),
				risk_tier VARCHAR(64),
				success BOOLEAN DEFAULT FALSE,
				success_rate DOUBLE PRECISION DEFAULT 0,
				confidence DOUBLE PRECISION DEFAULT 0,
				ts TIMESTAMPTZ,
				embedding vector(%d) NOT NULL,
				payload JSONB NOT NULL
			)
		`, table, c.dimensions)
		if _, err := c.db.ExecContext(ctx, ddl); err != nil {
			return memerr.Transient("EnsureCollections", err)
		}

		indexes := []string{
			fmt.Sprintf(`
				CREATE INDEX IF NOT EXISTS idx_%s_embedding ON %s
				USING hnsw (embedding vector_cosine_ops)
				WITH (m = 16, ef_construction = 64)
			`, table, table),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_customer ON %s(customer_id, campaign_id)", table, table),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_category ON %s(category)", table, table),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_ts ON %s(ts)", table, table),
		}
		for _, stmt := range indexes {
			if _, err := c.db.ExecContext(ctx, stmt); err != nil {
				return memerr.Transient("EnsureCollections", err)
			}
		}
	}
	return nil
}

// Upsert writes records, replacing rows that share an id.
func (c *Client) Upsert(ctx context.Context, collection string, records []*archive.Record) error {
	table, _, err := c.table(collection)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, customer_id, campaign_id, agent_type, category, risk_tier,
		 success, success_rate, confidence, ts, embedding, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			customer_id = EXCLUDED.customer_id,
			campaign_id = EXCLUDED.campaign_id,
			agent_type = EXCLUDED.agent_type,
			category = EXCLUDED.category,
			risk_tier = EXCLUDED.risk_tier,
			success = EXCLUDED.success,
			success_rate = EXCLUDED.success_rate,
			confidence = EXCLUDED.confidence,
			ts = EXCLUDED.ts,
			embedding = EXCLUDED.embedding,
			payload = EXCLUDED.payload
	`, table)

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return memerr.Transient("Upsert", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, rec := range records {
		if rec == nil || rec.ID == "" {
			return memerr.Validation("Upsert", "record id is required")
		}
		if len(rec.Vector) != c.dimensions {
			return memerr.Validation("Upsert", "vector has %d dimensions, collection expects %d", len(rec.Vector), c.dimensions)
		}

		payloadJSON, err := json.Marshal(rec.Payload)
		if err != nil {
			return memerr.New("Upsert", err)
		}

		fields := archive.ExtractIndexFields(rec.Payload)
		var ts interface{}
		if !fields.Timestamp.IsZero() {
			ts = fields.Timestamp.UTC()
		}

		if _, err := tx.ExecContext(ctx, query,
			rec.ID,
			fields.CustomerID,
			fields.CampaignID,
			fields.AgentType,
			fields.Category,
			fields.RiskTier,
			fields.Success,
			fields.SuccessRate,
			fields.Confidence,
			ts,
			vectorToString(rec.Vector),
			string(payloadJSON),
		); err != nil {
			return memerr.Transient("Upsert", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return memerr.Transient("Upsert", err)
	}
	return nil
}

// Search performs vector search with pgvector's cosine distance operator.
//
// Column-backed filter fields go into the WHERE clause; tag and tier-list
// conditions run in process after the scan, with the SQL limit widened so
// post-filtering can still fill the request.
func (c *Client) Search(ctx context.Context, collection string, vector []float64, params *archive.SearchParams) ([]*archive.Record, error) {
	table, kind, err := c.table(collection)
	if err != nil {
		return nil, err
	}
	if len(vector) != c.dimensions {
		return nil, memerr.Validation("Search", "vector has %d dimensions, collection expects %d", len(vector), c.dimensions)
	}
	if params == nil {
		params = &archive.SearchParams{}
	}

	limit := params.EffectiveLimit()
	fetchLimit := limit
	if hasResidualFilter(params.Filter, kind) {
		fetchLimit = limit * residualFetchFactor
	}

	// $1 is the query vector, so filter placeholders start at $2.
	whereClause, filterArgs := buildWhereClauseWithOffset(params.Filter, kind, 2)

	conditions := whereClause
	if params.ScoreThreshold > 0 {
		threshold := fmt.Sprintf("1 - (embedding <=> $1) >= $%d", len(filterArgs)+2)
		if conditions == "" {
			conditions = "WHERE " + threshold
		} else {
			conditions += " AND " + threshold
		}
		filterArgs = append(filterArgs, params.ScoreThreshold)
	}

	query := fmt.Sprintf(`
		SELECT id, embedding, payload,
		       1 - (embedding <=> $1) as similarity
		FROM %s
		%s
		ORDER BY embedding <=> $1
		LIMIT $%d
	`, table, conditions, len(filterArgs)+2)

	allArgs := []interface{}{vectorToString(vector)}
	allArgs = append(allArgs, filterArgs...)
	allArgs = append(allArgs, fetchLimit)

	rows, err := c.db.QueryContext(ctx, query, allArgs...)
	if err != nil {
		return nil, memerr.Transient("Search", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []*archive.Record
	for rows.Next() {
		rec, err := scanRecord(rows, true)
		if err != nil {
			return nil, memerr.New("Search", err)
		}
		if params.Filter != nil && !archive.FilterMatches(params.Filter, kind, rec.Payload) {
			continue
		}
		matches = append(matches, rec)
		if len(matches) == limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, memerr.Transient("Search", err)
	}
	return matches, nil
}

// GetByID returns one record.
func (c *Client) GetByID(ctx context.Context, collection, id string) (*archive.Record, error) {
	table, _, err := c.table(collection)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT id, embedding, payload FROM %s WHERE id = $1", table)
	row := c.db.QueryRowContext(ctx, query, id)

	rec, err := scanRecordRow(row)
	if err == sql.ErrNoRows {
		return nil, memerr.NotFound("GetByID", "record %s in %s", id, collection)
	}
	if err != nil {
		return nil, memerr.New("GetByID", err)
	}
	return rec, nil
}

// DeleteByFilter removes matching records and reports how many went.
func (c *Client) DeleteByFilter(ctx context.Context, collection string, f *archive.Filter) (int64, error) {
	table, kind, err := c.table(collection)
	if err != nil {
		return 0, err
	}
	if f.IsZero() {
		return 0, memerr.Validation("DeleteByFilter", "refusing to delete with an empty filter")
	}

	if !hasResidualFilter(f, kind) {
		whereClause, args := buildWhereClauseWithOffset(f, kind, 1)
		query := fmt.Sprintf("DELETE FROM %s %s", table, whereClause)
		result, err := c.db.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, memerr.Transient("DeleteByFilter", err)
		}
		deleted, err := result.RowsAffected()
		if err != nil {
			return 0, memerr.New("DeleteByFilter", err)
		}
		return deleted, nil
	}

	ids, err := c.matchingIDs(ctx, table, kind, f)
	if err != nil {
		return 0, memerr.New("DeleteByFilter", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id IN (%s)", table, strings.Join(placeholders, ", "))

	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, memerr.Transient("DeleteByFilter", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, memerr.New("DeleteByFilter", err)
	}
	return deleted, nil
}

// Count reports how many records match the filter.
func (c *Client) Count(ctx context.Context, collection string, f *archive.Filter) (int64, error) {
	table, kind, err := c.table(collection)
	if err != nil {
		return 0, err
	}

	if f.IsZero() {
		var total int64
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
		if err := c.db.QueryRowContext(ctx, query).Scan(&total); err != nil {
			return 0, memerr.Transient("Count", err)
		}
		return total, nil
	}

	if !hasResidualFilter(f, kind) {
		whereClause, args := buildWhereClauseWithOffset(f, kind, 1)
		var total int64
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s %s", table, whereClause)
		if err := c.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
			return 0, memerr.Transient("Count", err)
		}
		return total, nil
	}

	ids, err := c.matchingIDs(ctx, table, kind, f)
	if err != nil {
		return 0, memerr.New("Count", err)
	}
	return int64(len(ids)), nil
}

// Ping verifies the database connection.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return memerr.Transient("Ping", err)
	}
	return nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// matchingIDs narrows with SQL, then applies the residual filter in process.
func (c *Client) matchingIDs(ctx context.Context, table string, kind archive.Kind, f *archive.Filter) ([]string, error) {
	whereClause, args := buildWhereClauseWithOffset(f, kind, 1)
	query := fmt.Sprintf("SELECT id, payload FROM %s %s", table, whereClause)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		var payloadJSON []byte
		if err := rows.Scan(&id, &payloadJSON); err != nil {
			return nil, err
		}
		var payload map[string]interface{}
		if err := json.Unmarshal(payloadJSON, &payload); err != nil {
			return nil, fmt.Errorf("parse payload: %w", err)
		}
		if archive.FilterMatches(f, kind, payload) {
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}

// table resolves a collection name to its table and kind.
func (c *Client) table(collection string) (string, archive.Kind, error) {
	switch collection {
	case archive.CollectionEpisodic, c.episodic:
		return c.episodic, archive.KindEpisodic, nil
	case archive.CollectionSemantic, c.semantic:
		return c.semantic, archive.KindSemantic, nil
	default:
		return "", 0, memerr.Validation("table", "unknown collection %q", collection)
	}
}
