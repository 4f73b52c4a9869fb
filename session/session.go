// Package session holds the data model for one conversation with the
// agent and an optional Redis mirror of it.
package session

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// State is the transport state of a session.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	SessionActive
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case SessionActive:
		return "session_active"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(s.String())), nil
}

// Session is the client's view of one logical conversation. It is created
// by Connect and lives until Disconnect, across reconnects.
type Session struct {
	ID                string
	ConversationID    string
	State             State
	ReconnectAttempts int
	CreatedAt         time.Time
	ConnectedAt       time.Time
	LastActivity      time.Time
}

// New returns a disconnected session with a fresh local id.
func New(now time.Time) *Session {
	return &Session{
		ID:           uuid.NewString(),
		State:        Disconnected,
		CreatedAt:    now,
		LastActivity: now,
	}
}

// Touch records activity at now.
func (s *Session) Touch(now time.Time) {
	s.LastActivity = now
}

// Active reports whether the remote side has confirmed the conversation.
func (s *Session) Active() bool {
	return s.State == SessionActive
}

// ShortID returns the first eight characters of ID, for log lines.
func (s *Session) ShortID() string {
	if len(s.ID) < 8 {
		return s.ID
	}
	return s.ID[:8]
}

// Snapshot returns a copy safe to hand to other goroutines.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ID:                s.ID,
		ConversationID:    s.ConversationID,
		State:             s.State,
		ReconnectAttempts: s.ReconnectAttempts,
		CreatedAt:         s.CreatedAt,
		ConnectedAt:       s.ConnectedAt,
		LastActivity:      s.LastActivity,
	}
}

// Snapshot is an immutable copy of a Session.
type Snapshot struct {
	ID                string    `json:"id"`
	ConversationID    string    `json:"conversation_id,omitempty"`
	State             State     `json:"state"`
	ReconnectAttempts int       `json:"reconnect_attempts"`
	CreatedAt         time.Time `json:"created_at"`
	ConnectedAt       time.Time `json:"connected_at,omitzero"`
	LastActivity      time.Time `json:"last_activity"`
}
