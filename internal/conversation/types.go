// Package conversation persists conversation threads: one turn row per
// question/answer exchange, ordered by a per-session sequence number, with
// the exchange's messages owned by the turn.
package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies a message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one utterance within a turn. Messages are created on every
// exchange, never mutated, and deleted only with their session.
type Message struct {
	ID        uuid.UUID
	TurnID    uuid.UUID
	SessionID uuid.UUID
	Sequence  int32
	Ordinal   int16
	Role      Role
	Content   string
	Metadata  map[string]any
	CreatedAt time.Time
}

// Turn is one exchange in a session thread. (SessionID, Sequence) is
// unique; Sequence starts at 1 and is contiguous under serialized appends.
// ParentQueryID, when set, points backward to an earlier turn in the same
// session, so reference cycles are impossible by construction.
type Turn struct {
	ID            uuid.UUID
	SessionID     uuid.UUID
	UserID        string
	Sequence      int32
	ParentQueryID *uuid.UUID
	CreatedAt     time.Time
}

// SessionSummary describes a thread without its messages, for listings.
type SessionSummary struct {
	SessionID uuid.UUID
	UserID    string
	TurnCount int
	CreatedAt time.Time
	UpdatedAt time.Time
}
