package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/collectiq/agentmem-go/pkg/archive"
	"github.com/collectiq/agentmem-go/pkg/memerr"
)

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func tableOrDefault(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

// validateTableName rejects names that cannot be safely interpolated into
// DDL and query strings.
func validateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return memerr.Configuration("validateTableName", "invalid collection name %q", name)
	}
	return nil
}

// buildWhereClause translates the filter fields a collection owns into
// SQL. Episodic tags and semantic tier-list applicability inspect nested
// payload structure, so those stay with archive.FilterMatches; everything
// translated here only narrows the candidate set.
func buildWhereClause(f *archive.Filter, kind archive.Kind) (string, []interface{}) {
	if f == nil {
		return "", nil
	}

	var conditions []string
	var args []interface{}

	switch kind {
	case archive.KindEpisodic:
		if f.CustomerID != "" {
			conditions = append(conditions, "customer_id = ?")
			args = append(args, f.CustomerID)
		}
		if f.CampaignID != "" {
			conditions = append(conditions, "campaign_id = ?")
			args = append(args, f.CampaignID)
		}
		if f.AgentType != "" {
			conditions = append(conditions, "agent_type = ?")
			args = append(args, f.AgentType)
		}
		if f.SuccessOnly {
			conditions = append(conditions, "success = 1")
		}
		if len(f.RiskTiers) > 0 {
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(f.RiskTiers)), ", ")
			conditions = append(conditions, fmt.Sprintf("risk_tier IN (%s)", placeholders))
			for _, tier := range f.RiskTiers {
				args = append(args, tier)
			}
		}
	case archive.KindSemantic:
		if f.Category != "" {
			conditions = append(conditions, "category = ?")
			args = append(args, f.Category)
		}
		if f.MinSuccessRate > 0 {
			conditions = append(conditions, "success_rate >= ?")
			args = append(args, f.MinSuccessRate)
		}
		if f.MinConfidence > 0 {
			conditions = append(conditions, "confidence >= ?")
			args = append(args, f.MinConfidence)
		}
	}

	if f.OlderThan != nil {
		conditions = append(conditions, "ts < ?")
		args = append(args, f.OlderThan.UTC())
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// rowScanner abstracts sql.Row and sql.Rows for scanRecord.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord decodes one (id, embedding, payload) row into a Record.
func scanRecord(scanner rowScanner) (*archive.Record, error) {
	var (
		id           string
		embeddingStr string
		payloadStr   string
	)

	switch s := scanner.(type) {
	case *sql.Row:
		if err := s.Scan(&id, &embeddingStr, &payloadStr); err != nil {
			return nil, err
		}
	case *sql.Rows:
		if err := s.Scan(&id, &embeddingStr, &payloadStr); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported scanner type %T", scanner)
	}

	var vector []float64
	if err := json.Unmarshal([]byte(embeddingStr), &vector); err != nil {
		return nil, fmt.Errorf("parse embedding: %w", err)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(payloadStr), &payload); err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}

	return &archive.Record{ID: id, Vector: vector, Payload: payload}, nil
}

// cosineSimilarity computes the cosine similarity between two vectors.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// sortByScore orders records by descending score and truncates to limit.
func sortByScore(records []*archive.Record, limit int) []*archive.Record {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Score > records[j].Score
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
