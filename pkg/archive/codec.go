package archive

import (
	"github.com/collectiq/agentmem-go/pkg/types"
)

// RecordFromEpisodic packs an episodic memory into its archive record.
func RecordFromEpisodic(m *types.EpisodicMemory) *Record {
	return &Record{
		ID:      m.ID,
		Vector:  m.Embedding,
		Payload: m.Payload(),
	}
}

// EpisodicFromRecord unpacks an archive record into an episodic memory,
// carrying over the vector and search score.
func EpisodicFromRecord(r *Record) *types.EpisodicMemory {
	m := types.EpisodicFromPayload(r.Payload)
	if m.ID == "" {
		m.ID = r.ID
	}
	m.Embedding = r.Vector
	m.Score = r.Score
	return m
}

// RecordFromSemantic packs a semantic memory into its archive record.
func RecordFromSemantic(m *types.SemanticMemory) *Record {
	return &Record{
		ID:      m.ID,
		Vector:  m.Embedding,
		Payload: m.Payload(),
	}
}

// SemanticFromRecord unpacks an archive record into a semantic memory,
// carrying over the vector and search score.
func SemanticFromRecord(r *Record) *types.SemanticMemory {
	m := types.SemanticFromPayload(r.Payload)
	if m.ID == "" {
		m.ID = r.ID
	}
	m.Embedding = r.Vector
	m.Score = r.Score
	return m
}
