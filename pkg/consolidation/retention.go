package consolidation

import (
	"context"
	"time"

	"github.com/collectiq/agentmem-go/pkg/archive"
	"github.com/collectiq/agentmem-go/pkg/memerr"
)

// RunRetention purges episodic records older than the configured maximum
// age and reports how many were removed. Semantic strategies are distilled
// knowledge and are never purged by age.
func (c *Consolidator) RunRetention(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-c.cfg.RetentionMaxAge)
	filter := &archive.Filter{OlderThan: &cutoff}

	deleted, err := c.archive.DeleteByFilter(ctx, c.cfg.EpisodicCollection, filter)
	if err != nil {
		return 0, memerr.New("consolidation.retention", err)
	}
	if deleted > 0 {
		c.log.WithField("deleted", deleted).Info("retention purge removed aged interactions")
	}
	return deleted, nil
}
