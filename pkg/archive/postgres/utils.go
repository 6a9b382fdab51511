package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
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

func validateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return memerr.Configuration("validateTableName", "invalid collection name %q", name)
	}
	return nil
}

// hasResidualFilter reports whether the filter contains conditions that
// only archive.FilterMatches can evaluate for this collection kind.
func hasResidualFilter(f *archive.Filter, kind archive.Kind) bool {
	if f == nil {
		return false
	}
	switch kind {
	case archive.KindEpisodic:
		return len(f.Tags) > 0
	case archive.KindSemantic:
		return len(f.RiskTiers) > 0
	}
	return false
}

// buildWhereClauseWithOffset translates the column-backed filter fields a
// collection owns into SQL, numbering placeholders from the given offset.
func buildWhereClauseWithOffset(f *archive.Filter, kind archive.Kind, offset int) (string, []interface{}) {
	if f == nil {
		return "", nil
	}

	var conditions []string
	var args []interface{}
	next := func() int { return offset + len(args) }

	switch kind {
	case archive.KindEpisodic:
		if f.CustomerID != "" {
			conditions = append(conditions, fmt.Sprintf("customer_id = $%d", next()))
			args = append(args, f.CustomerID)
		}
		if f.CampaignID != "" {
			conditions = append(conditions, fmt.Sprintf("campaign_id = $%d", next()))
			args = append(args, f.CampaignID)
		}
		if f.AgentType != "" {
			conditions = append(conditions, fmt.Sprintf("agent_type = $%d", next()))
			args = append(args, f.AgentType)
		}
		if f.SuccessOnly {
			conditions = append(conditions, "success = TRUE")
		}
		if len(f.RiskTiers) > 0 {
			placeholders := make([]string, len(f.RiskTiers))
			for i, tier := range f.RiskTiers {
				placeholders[i] = fmt.Sprintf("$%d", next())
				args = append(args, tier)
			}
			conditions = append(conditions, fmt.Sprintf("risk_tier IN (%s)", strings.Join(placeholders, ", ")))
		}
	case archive.KindSemantic:
		if f.Category != "" {
			conditions = append(conditions, fmt.Sprintf("category = $%d", next()))
			args = append(args, f.Category)
		}
		if f.MinSuccessRate > 0 {
			conditions = append(conditions, fmt.Sprintf("success_rate >= $%d", next()))
			args = append(args, f.MinSuccessRate)
		}
		if f.MinConfidence > 0 {
			conditions = append(conditions, fmt.Sprintf("confidence >= $%d", next()))
			args = append(args, f.MinConfidence)
		}
	}

	if f.OlderThan != nil {
		conditions = append(conditions, fmt.Sprintf("ts < $%d", next()))
		args = append(args, f.OlderThan.UTC())
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// vectorToString converts a vector to pgvector's text format.
func vectorToString(vector []float64) string {
	if len(vector) == 0 {
		return "[]"
	}

	parts := make([]string, len(vector))
	for i, v := range vector {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// parseVectorString parses pgvector's text format back into a vector.
func parseVectorString(s string) ([]float64, error) {
	s = strings.Trim(s, "[]")
	if s == "" {
		return []float64{}, nil
	}

	parts := strings.Split(s, ",")
	result := make([]float64, len(parts))
	for i, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		result[i] = val
	}
	return result, nil
}

// scanRecord decodes one row from a multi-row result set.
func scanRecord(rows *sql.Rows, hasScore bool) (*archive.Record, error) {
	var (
		id           string
		embeddingStr string
		payloadJSON  []byte
		similarity   float64
	)

	if hasScore {
		if err := rows.Scan(&id, &embeddingStr, &payloadJSON, &similarity); err != nil {
			return nil, err
		}
	} else {
		if err := rows.Scan(&id, &embeddingStr, &payloadJSON); err != nil {
			return nil, err
		}
	}

	rec, err := buildRecord(id, embeddingStr, payloadJSON)
	if err != nil {
		return nil, err
	}
	rec.Score = similarity
	return rec, nil
}

// scanRecordRow decodes a single-row query.
func scanRecordRow(row *sql.Row) (*archive.Record, error) {
	var (
		id           string
		embeddingStr string
		payloadJSON  []byte
	)
	if err := row.Scan(&id, &embeddingStr, &payloadJSON); err != nil {
		return nil, err
	}
	return buildRecord(id, embeddingStr, payloadJSON)
}

func buildRecord(id, embeddingStr string, payloadJSON []byte) (*archive.Record, error) {
	vector, err := parseVectorString(embeddingStr)
	if err != nil {
		return nil, fmt.Errorf("parse embedding: %w", err)
	}

	var payload map[string]interface{}
	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &payload); err != nil {
			return nil, fmt.Errorf("parse payload: %w", err)
		}
	}

	return &archive.Record{ID: id, Vector: vector, Payload: payload}, nil
}
