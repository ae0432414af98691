package session

import (
	"cmp"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aixgo-dev/dailyagent/pkg/observability"
)

// Store keeps sessions in process memory. A single mutex serialises every
// operation, reads included, because lookups may expire entries.
type Store struct {
	cfg Config
	now func() time.Time
	log zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	seq      uint64
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the store logger.
func WithLogger(log zerolog.Logger) StoreOption {
	return func(s *Store) { s.log = log }
}

// NewStore creates an empty store.
func NewStore(cfg Config, opts ...StoreOption) *Store {
	s := &Store{
		cfg:      cfg,
		now:      time.Now,
		log:      zerolog.Nop(),
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether messages are recorded.
func (s *Store) Enabled() bool {
	return s.cfg.Enabled
}

// Config returns the store configuration.
func (s *Store) Config() Config {
	return s.cfg
}

// Create starts a new, empty session and returns its ID. Expired and
// surplus sessions are swept afterwards.
func (s *Store) Create(metadata map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	s.seq++
	sess := &Session{
		ID:           uuid.New().String(),
		CreatedAt:    now,
		LastActivity: now,
		Messages:     make([]Message, 0),
		Metadata:     maps.Clone(metadata),
		seq:          s.seq,
	}
	s.sessions[sess.ID] = sess

	s.cleanupLocked(now)
	s.publishLocked()

	s.log.Debug().Str("session_id", sess.ID).Msg("session created")
	return sess.ID
}

// Get returns a copy of the session, or false when it does not exist or
// has been idle longer than MaxAge. Expired sessions are removed.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.liveLocked(id, s.now().UTC())
	if sess == nil {
		return nil, false
	}
	return sess.clone(), true
}

// AddMessage appends a message to a live session. It returns false when
// memory is disabled, the role is unknown, or the session is gone.
func (s *Store) AddMessage(id string, role Role, content string, metadata map[string]any) bool {
	if !s.cfg.Enabled {
		return false
	}
	if !role.Valid() {
		s.log.Warn().Str("session_id", id).Str("role", string(role)).Msg("rejecting message with unknown role")
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	sess := s.liveLocked(id, now)
	if sess == nil {
		return false
	}
	s.appendLocked(sess, role, content, metadata, now)
	return true
}

// AddExchange appends a user message and the assistant reply under one
// lock, so concurrent turns on a session never interleave.
func (s *Store) AddExchange(id, userContent, assistantContent string, metadata map[string]any) bool {
	if !s.cfg.Enabled {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	sess := s.liveLocked(id, now)
	if sess == nil {
		return false
	}
	s.appendLocked(sess, RoleUser, userContent, metadata, now)
	s.appendLocked(sess, RoleAssistant, assistantContent, metadata, now)
	return true
}

// History returns up to limit of the latest messages (all when limit <= 0).
// It is empty when memory is disabled or the session is gone.
func (s *Store) History(id string, limit int) []Message {
	if !s.cfg.Enabled {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.liveLocked(id, s.now().UTC())
	if sess == nil {
		return nil
	}
	return sess.Recent(limit)
}

// Delete removes a session. It reports whether the session existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	s.publishLocked()

	s.log.Debug().Str("session_id", id).Msg("session deleted")
	return true
}

// List returns session IDs ordered by last activity, oldest first. With
// activeOnly, expired and surplus sessions are swept before listing.
func (s *Store) List(activeOnly bool) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if activeOnly {
		s.cleanupLocked(s.now().UTC())
		s.publishLocked()
	}

	ordered := s.orderedLocked()
	ids := make([]string, len(ordered))
	for i, sess := range ordered {
		ids[i] = sess.ID
	}
	return ids
}

// Info summarises a live session.
func (s *Store) Info(id string) (Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.liveLocked(id, s.now().UTC())
	if sess == nil {
		return Info{}, false
	}
	return Info{
		SessionID:    sess.ID,
		CreatedAt:    sess.CreatedAt,
		LastActivity: sess.LastActivity,
		MessageCount: len(sess.Messages),
		Metadata:     maps.Clone(sess.Metadata),
	}, true
}

// Stats reports store-wide counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, sess := range s.sessions {
		total += len(sess.Messages)
	}
	return Stats{
		TotalSessions: len(s.sessions),
		TotalMessages: total,
		MemoryEnabled: s.cfg.Enabled,
		MaxSessions:   s.cfg.MaxSessions,
		MaxAge:        s.cfg.MaxAge,
	}
}

// Cleanup sweeps expired sessions, then evicts the least recently active
// ones above MaxSessions. It returns the number removed.
func (s *Store) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.cleanupLocked(s.now().UTC())
	s.publishLocked()
	return removed
}

// Len returns the number of stored sessions, expired ones included until
// they are swept.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// liveLocked returns the session or nil, deleting it if expired.
func (s *Store) liveLocked(id string, now time.Time) *Session {
	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	if s.expired(sess, now) {
		delete(s.sessions, id)
		s.publishLocked()
		s.log.Debug().Str("session_id", id).Msg("session expired")
		return nil
	}
	return sess
}

func (s *Store) expired(sess *Session, now time.Time) bool {
	return s.cfg.MaxAge > 0 && now.Sub(sess.LastActivity) > s.cfg.MaxAge
}

// appendLocked adds a message, keeping LastActivity non-decreasing even
// if the clock steps backwards.
func (s *Store) appendLocked(sess *Session, role Role, content string, metadata map[string]any, now time.Time) {
	ts := now
	if ts.Before(sess.LastActivity) {
		ts = sess.LastActivity
	}
	sess.Messages = append(sess.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: ts,
		Metadata:  maps.Clone(metadata),
	})
	sess.LastActivity = ts
}

func (s *Store) cleanupLocked(now time.Time) int {
	removed := 0
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			removed++
		}
	}

	if s.cfg.MaxSessions > 0 && len(s.sessions) > s.cfg.MaxSessions {
		ordered := s.orderedLocked()
		excess := len(ordered) - s.cfg.MaxSessions
		for _, sess := range ordered[:excess] {
			delete(s.sessions, sess.ID)
			removed++
		}
	}

	if removed > 0 {
		s.log.Debug().Int("removed", removed).Int("remaining", len(s.sessions)).Msg("sessions cleaned up")
	}
	return removed
}

// orderedLocked sorts sessions by last activity, then creation order.
func (s *Store) orderedLocked() []*Session {
	ordered := slices.Collect(maps.Values(s.sessions))
	slices.SortFunc(ordered, func(a, b *Session) int {
		if c := a.LastActivity.Compare(b.LastActivity); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	return ordered
}

func (s *Store) publishLocked() {
	observability.SetActiveSessions(len(s.sessions))
}
