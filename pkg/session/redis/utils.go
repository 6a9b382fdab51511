package redis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/collectiq/agentmem-go/pkg/types"
)

// sessionKey builds the value key for a session id.
func (s *Store) sessionKey(id string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, id)
}

// customerKey builds the per-customer index key.
func (s *Store) customerKey(customerID string) string {
	return fmt.Sprintf("%s:customer:%s", s.prefix, customerID)
}

// expiryKey is the expiry-ordered index shared by all sessions.
func (s *Store) expiryKey() string {
	return s.prefix + ":expiry"
}

// deadlineScore converts a deadline into the ZSET score (unix milliseconds).
func deadlineScore(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// formatScore renders a score for ZRANGEBYSCORE bounds.
func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

// decodeSession parses the stored session JSON.
func decodeSession(raw []byte) (*types.Session, error) {
	var sess types.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}
