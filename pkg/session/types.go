// Package session provides the in-memory conversation store. A session
// holds the message history the assistant uses to resolve follow-up
// questions such as "yes, show me all of them".
package session

import (
	"fmt"
	"maps"
	"time"
)

// Role identifies who authored a message.
type Role string

const (
	// RoleUser marks a message typed by the user.
	RoleUser Role = "user"
	// RoleAssistant marks a reply produced by the assistant.
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Label returns the capitalised role name used in transcripts.
func (r Role) Label() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// ParseRole converts a string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Message is one utterance in a conversation. Messages are never modified
// after they are appended.
type Message struct {
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Session is a conversation and its history.
type Session struct {
	ID           string         `json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	LastActivity time.Time      `json:"last_activity"`
	Messages     []Message      `json:"messages"`
	Metadata     map[string]any `json:"metadata,omitempty"`

	// seq orders sessions created within the same clock tick
	seq uint64
}

// Recent returns up to limit of the latest messages, oldest first. A
// non-positive limit returns every message.
func (s *Session) Recent(limit int) []Message {
	msgs := s.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// Since returns the messages stamped strictly after t.
func (s *Session) Since(t time.Time) []Message {
	var out []Message
	for _, m := range s.Messages {
		if m.Timestamp.After(t) {
			out = append(out, m)
		}
	}
	return out
}

func (s *Session) clone() *Session {
	c := *s
	c.Messages = make([]Message, len(s.Messages))
	copy(c.Messages, s.Messages)
	c.Metadata = maps.Clone(s.Metadata)
	return &c
}

// Info summarises a session without its messages.
type Info struct {
	SessionID    string         `json:"session_id"`
	CreatedAt    time.Time      `json:"created_at"`
	LastActivity time.Time      `json:"last_activity"`
	MessageCount int            `json:"message_count"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Stats describes the store as a whole.
type Stats struct {
	TotalSessions int           `json:"total_sessions"`
	TotalMessages int           `json:"total_messages"`
	MemoryEnabled bool          `json:"memory_enabled"`
	MaxSessions   int           `json:"max_conversations"`
	MaxAge        time.Duration `json:"max_age"`
}
