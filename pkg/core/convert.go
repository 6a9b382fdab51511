package core

import (
	"time"

	"github.com/collectiq/agentmem-go/pkg/types"
)

// fillInteractionDefaults fills the zero-valued episodic fields every write
// path defaults the same way: a random id, the current time, and the agent
// type as the channel.
func fillInteractionDefaults(memory *types.EpisodicMemory, now time.Time) {
	if memory.ID == "" {
		memory.ID = types.NewEpisodicID()
	}
	if memory.Timestamp.IsZero() {
		memory.Timestamp = now
	}
	if memory.Channel == "" {
		memory.Channel = string(memory.AgentType)
	}
}
