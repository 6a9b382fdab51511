package types_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collectiq/agentmem-go/pkg/types"
)

func TestSessionTranscript(t *testing.T) {
	sess := &types.Session{
		ConversationHistory: []types.Message{
			{Role: "agent", Content: "hello"},
			{Role: "customer", Content: ""},
			{Role: "customer", Content: "I can pay Friday"},
		},
	}

	assert.Equal(t, "agent: hello\ncustomer: I can pay Friday", sess.Transcript())
	assert.Equal(t, "", (&types.Session{}).Transcript())
}

func TestSessionClone(t *testing.T) {
	original := &types.Session{
		SessionID:           "sess-1",
		CustomerID:          "cust-1",
		ConversationHistory: []types.Message{{Role: "agent", Content: "hi"}},
		Metadata:            map[string]interface{}{"attempt": 1},
	}

	clone := original.Clone()
	require.NotNil(t, clone)

	clone.ConversationHistory[0].Content = "changed"
	clone.ConversationHistory = append(clone.ConversationHistory, types.Message{Role: "customer", Content: "new"})
	clone.Metadata["attempt"] = 2

	assert.Equal(t, "hi", original.ConversationHistory[0].Content)
	assert.Len(t, original.ConversationHistory, 1)
	assert.Equal(t, 1, original.Metadata["attempt"])

	var nilSession *types.Session
	assert.Nil(t, nilSession.Clone())
}

func TestSessionUpdateApply(t *testing.T) {
	sess := &types.Session{
		CurrentState: "negotiating",
		Metadata:     map[string]interface{}{"keep": "yes", "replace": "old"},
	}

	state := "awaiting_payment"
	update := &types.SessionUpdate{
		CurrentState:   &state,
		Metadata:       map[string]interface{}{"replace": "new", "added": true},
		AppendMessages: []types.Message{{Role: "customer", Content: "ok"}},
	}
	update.Apply(sess)

	assert.Equal(t, "awaiting_payment", sess.CurrentState)
	assert.Equal(t, "yes", sess.Metadata["keep"])
	assert.Equal(t, "new", sess.Metadata["replace"])
	assert.Equal(t, true, sess.Metadata["added"])
	require.Len(t, sess.ConversationHistory, 1)
	assert.Equal(t, "ok", sess.ConversationHistory[0].Content)

	// A nil update leaves the session untouched
	var none *types.SessionUpdate
	none.Apply(sess)
	assert.Equal(t, "awaiting_payment", sess.CurrentState)
}

func TestEpisodicIDForSession(t *testing.T) {
	first := types.EpisodicIDForSession("sess-abc")
	second := types.EpisodicIDForSession("sess-abc")
	other := types.EpisodicIDForSession("sess-xyz")

	assert.Equal(t, first, second, "same session must derive the same memory id")
	assert.NotEqual(t, first, other)
	assert.NotEmpty(t, first)
}

func TestNewEpisodicIDUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := types.NewEpisodicID()
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}

func TestAgentTypeAndSentimentValid(t *testing.T) {
	assert.True(t, types.AgentTypeEmail.Valid())
	assert.True(t, types.AgentTypePhone.Valid())
	assert.True(t, types.AgentTypeSMS.Valid())
	assert.False(t, types.AgentType("fax").Valid())

	assert.True(t, types.SentimentPositive.Valid())
	assert.True(t, types.SentimentNeutral.Valid())
	assert.True(t, types.SentimentNegative.Valid())
	assert.False(t, types.Sentiment("ecstatic").Valid())
}

func TestSemanticSuccessCounters(t *testing.T) {
	memory := &types.SemanticMemory{SuccessRate: 0.75, TimesApplied: 8}
	assert.Equal(t, 6, memory.SuccessCount())

	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	memory.RecordApplication(true, now)
	assert.Equal(t, 9, memory.TimesApplied)
	assert.InDelta(t, 7.0/9.0, memory.SuccessRate, 1e-9)
	assert.Equal(t, now, memory.LastUpdated)

	memory.RecordApplication(false, now.Add(time.Hour))
	assert.Equal(t, 10, memory.TimesApplied)
	assert.InDelta(t, 0.7, memory.SuccessRate, 1e-9)

	// Fresh strategy: first application establishes the rate
	fresh := &types.SemanticMemory{}
	assert.Equal(t, 0, fresh.SuccessCount())
	fresh.RecordApplication(true, now)
	assert.Equal(t, 1, fresh.TimesApplied)
	assert.Equal(t, 1.0, fresh.SuccessRate)
}
