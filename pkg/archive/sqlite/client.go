// Package sqlite provides the SQLite archive backend.
//
// SQLite is the embedded option for local development and small
// deployments. Vectors are stored as JSON strings in TEXT columns and
// similarity is computed in process with cosine similarity; filterable
// payload fields are materialized as indexed columns, with the shared
// in-process evaluator applying the residual filter.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/collectiq/agentmem-go/pkg/archive"
	"github.com/collectiq/agentmem-go/pkg/memerr"
)

// Config contains configuration for the SQLite archive backend.
type Config struct {
	// Path is the database file path.
	Path string

	// EpisodicCollection overrides the episodic table name.
	EpisodicCollection string

	// SemanticCollection overrides the semantic table name.
	SemanticCollection string

	// Dimensions is the embedding dimensionality. Defaults to
	// archive.DefaultDimensions.
	Dimensions int
}

// Client implements archive.Store on SQLite.
type Client struct {
	db         *sql.DB
	episodic   string
	semantic   string
	dimensions int
}

// NewClient opens (creating if needed) the database file and ensures both
// collection tables exist.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.Path == "" {
		return nil, memerr.Configuration("NewClient", "sqlite path is required")
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, memerr.New("NewClient", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_foreign_keys=1&_journal_mode=WAL")
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

// EnsureCollections creates both collection tables and their indexes.
func (c *Client) EnsureCollections(ctx context.Context) error {
	for _, table := range []string{c.episodic, c.semantic} {
		ddl := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				customer_id TEXT,
				campaign_id TEXT,
				agent_type TEXT,
				category TEXT,
				risk_tier TEXT,
				success INTEGER DEFAULT 0,
				success_rate REAL DEFAULT 0,
				confidence REAL DEFAULT 0,
				ts DATETIME,
				embedding TEXT NOT NULL,
				payload TEXT NOT NULL
			)
		`, table)
		if _, err := c.db.ExecContext(ctx, ddl); err != nil {
			return memerr.Transient("EnsureCollections", err)
		}

		indexes := []string{
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
		INSERT OR REPLACE INTO %s
		(id, customer_id, campaign_id, agent_type, category, risk_tier,
		 success, success_rate, confidence, ts, embedding, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
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

		embeddingJSON, err := json.Marshal(rec.Vector)
		if err != nil {
			return memerr.New("Upsert", err)
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
			boolToInt(fields.Success),
			fields.SuccessRate,
			fields.Confidence,
			ts,
			string(embeddingJSON),
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

// Search performs similarity search with in-process cosine scoring.
//
// The SQL WHERE clause narrows by the indexed columns; the shared filter
// evaluator applies the rest (tags, tier lists) after decoding, so every
// backend excludes the same records.
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

	whereClause, args := buildWhereClause(params.Filter, kind)
	query := fmt.Sprintf(`
		SELECT id, embedding, payload
		FROM %s
		%s
		ORDER BY id
	`, table, whereClause)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, memerr.Transient("Search", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []*archive.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, memerr.New("Search", err)
		}
		if params.Filter != nil && !archive.FilterMatches(params.Filter, kind, rec.Payload) {
			continue
		}
		rec.Score = cosineSimilarity(vector, rec.Vector)
		if rec.Score >= params.ScoreThreshold {
			matches = append(matches, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, memerr.Transient("Search", err)
	}

	return sortByScore(matches, params.EffectiveLimit()), nil
}

// GetByID returns one record.
func (c *Client) GetByID(ctx context.Context, collection, id string) (*archive.Record, error) {
	table, _, err := c.table(collection)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT id, embedding, payload FROM %s WHERE id = ?", table)
	row := c.db.QueryRowContext(ctx, query, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, memerr.NotFound("GetByID", "record %s in %s", id, collection)
	}
	if err != nil {
		return nil, memerr.New("GetByID", err)
	}
	return rec, nil
}

// DeleteByFilter removes matching records. Residual filter fields force a
// select-then-delete pass so the in-process evaluator stays authoritative.
func (c *Client) DeleteByFilter(ctx context.Context, collection string, f *archive.Filter) (int64, error) {
	table, kind, err := c.table(collection)
	if err != nil {
		return 0, err
	}
	if f.IsZero() {
		return 0, memerr.Validation("DeleteByFilter", "refusing to delete with an empty filter")
	}

	ids, err := c.matchingIDs(ctx, table, kind, f)
	if err != nil {
		return 0, memerr.New("DeleteByFilter", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	query := fmt.Sprintf("DELETE FROM %s WHERE id IN (%s)", table, placeholders)
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

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
	whereClause, args := buildWhereClause(f, kind)
	query := fmt.Sprintf("SELECT id, payload FROM %s %s", table, whereClause)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id, payloadStr string
		if err := rows.Scan(&id, &payloadStr); err != nil {
			return nil, err
		}
		var payload map[string]interface{}
		if err := json.Unmarshal([]byte(payloadStr), &payload); err != nil {
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
