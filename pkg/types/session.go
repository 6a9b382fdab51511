// Package types defines the domain types shared across agentmem: live
// sessions held in the session cache, and the episodic/semantic memories
// held in the archive.
package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AgentType identifies the channel an agent operates on.
type AgentType string

const (
	// AgentTypeEmail is an email outreach agent.
	AgentTypeEmail AgentType = "email"

	// AgentTypePhone is a voice call agent.
	AgentTypePhone AgentType = "phone"

	// AgentTypeSMS is a text message agent.
	AgentTypeSMS AgentType = "sms"
)

// Valid reports whether the agent type is one of the known channels.
func (a AgentType) Valid() bool {
	switch a {
	case AgentTypeEmail, AgentTypePhone, AgentTypeSMS:
		return true
	}
	return false
}

// Message is a single turn in a conversation.
type Message struct {
	// Role is the speaker: "agent", "customer", or "system".
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// Session is the working state of one active conversation.
//
// Exactly one live entry exists per SessionID. Sessions live in the session
// cache under a TTL; every mutation refreshes the TTL. Expired sessions are
// drained into the archive by the consolidator and then deleted.
type Session struct {
	// SessionID is the unique identifier of the conversation.
	SessionID string `json:"session_id"`

	// CustomerID identifies the customer the conversation is with.
	CustomerID string `json:"customer_id"`

	// CampaignID identifies the collection campaign the conversation
	// belongs to.
	CampaignID string `json:"campaign_id"`

	// AgentType is the channel of the agent running the conversation.
	AgentType AgentType `json:"agent_type"`

	// ConversationHistory is the ordered list of turns so far.
	ConversationHistory []Message `json:"conversation_history"`

	// CurrentState is the agent's state machine position
	// (e.g. "negotiating", "awaiting_payment").
	CurrentState string `json:"current_state"`

	// Metadata contains additional structured information about the
	// conversation.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the session was first stored.
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is the current expiry deadline. Refreshed on every mutation.
	ExpiresAt time.Time `json:"expires_at"`
}

// Transcript renders the conversation history as "role: content" lines,
// the form used for embedding and LLM analysis.
func (s *Session) Transcript() string {
	parts := make([]string, 0, len(s.ConversationHistory))
	for _, msg := range s.ConversationHistory {
		if msg.Content == "" {
			continue
		}
		parts = append(parts, msg.Role+": "+msg.Content)
	}
	return strings.Join(parts, "\n")
}

// Clone returns a deep copy of the session. Stores hand out clones so
// callers can never mutate cached state in place.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.ConversationHistory = make([]Message, len(s.ConversationHistory))
	copy(cp.ConversationHistory, s.ConversationHistory)
	if s.Metadata != nil {
		cp.Metadata = make(map[string]interface{}, len(s.Metadata))
		for k, v := range s.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// SessionUpdate is a partial update applied to a live session.
//
// Nil fields are left untouched. Metadata entries are merged key by key.
type SessionUpdate struct {
	// CurrentState replaces the session state when non-nil.
	CurrentState *string

	// Metadata entries are merged into the session metadata.
	Metadata map[string]interface{}

	// AppendMessages are appended to the conversation history in order.
	AppendMessages []Message
}

// Apply merges the update into the session.
func (u *SessionUpdate) Apply(s *Session) {
	if u == nil {
		return
	}
	if u.CurrentState != nil {
		s.CurrentState = *u.CurrentState
	}
	if len(u.Metadata) > 0 {
		if s.Metadata == nil {
			s.Metadata = make(map[string]interface{}, len(u.Metadata))
		}
		for k, v := range u.Metadata {
			s.Metadata[k] = v
		}
	}
	if len(u.AppendMessages) > 0 {
		s.ConversationHistory = append(s.ConversationHistory, u.AppendMessages...)
	}
}

// episodicNamespace seeds the deterministic episodic id derivation. Fixed so
// consolidating the same session always yields the same memory id.
var episodicNamespace = uuid.MustParse("b5a1f3c2-8d44-4e0b-9c2a-55f0d7e6a913")

// EpisodicIDForSession derives the deterministic episodic memory id for a
// session. Re-running consolidation for the same session id produces the
// same memory id, so retries overwrite instead of duplicating.
func EpisodicIDForSession(sessionID string) string {
	return uuid.NewSHA1(episodicNamespace, []byte(sessionID)).String()
}

// NewEpisodicID returns a random episodic memory id for interactions stored
// directly, outside of session consolidation.
func NewEpisodicID() string {
	return uuid.NewString()
}
