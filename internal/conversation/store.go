// Package conversation keeps per-conversation message history for the
// generation pipeline. The store is process-wide shared state; all access
// is mutex-guarded and bounded by constructor-injected eviction limits.
package conversation

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged message. Insertion order defines prompt replay order.
type Turn struct {
	Role    Role
	Content string
}

// Options bounds the store. Zero values mean unlimited.
type Options struct {
	SystemPrompt     string
	MaxConversations int
	MaxTurns         int
	TTL              time.Duration
}

type record struct {
	turns   []Turn
	touched time.Time
}

type Store struct {
	mu      sync.Mutex
	opts    Options
	now     func() time.Time
	records map[string]*record
}

func NewStore(opts Options) *Store {
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = "You are an email assistant."
	}
	return &Store{
		opts:    opts,
		now:     time.Now,
		records: make(map[string]*record),
	}
}

// SetClock overrides the store's time source. Tests use this to drive TTL
// eviction deterministically.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// NewID mints a globally unique conversation identifier from a nanosecond
// timestamp and a random fragment.
func NewID() string {
	return fmt.Sprintf("conv_%d_%s", time.Now().UnixNano(), uuid.NewString()[:8])
}

// Ensure creates the conversation if absent, seeding it with the base system
// turn and, when a user name is known, a signature instruction. Idempotent:
// an existing conversation is returned untouched and seeding never re-runs.
func (s *Store) Ensure(id, userName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep()

	if rec, ok := s.records[id]; ok {
		rec.touched = s.now()
		return
	}

	if s.opts.MaxConversations > 0 && len(s.records) >= s.opts.MaxConversations {
		s.evictOldest()
	}

	rec := &record{touched: s.now()}
	rec.turns = append(rec.turns, Turn{Role: RoleSystem, Content: s.opts.SystemPrompt})
	if userName != "" {
		rec.turns = append(rec.turns, Turn{
			Role:    RoleSystem,
			Content: fmt.Sprintf("User name: %s. Always sign emails with %s.", userName, userName),
		})
	}
	s.records[id] = rec
}

func (s *Store) AppendUser(id, text string) {
	s.append(id, Turn{Role: RoleUser, Content: text})
}

func (s *Store) AppendAssistant(id, text string) {
	s.append(id, Turn{Role: RoleAssistant, Content: text})
}

func (s *Store) append(id string, turn Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		rec = &record{}
		rec.turns = append(rec.turns, Turn{Role: RoleSystem, Content: s.opts.SystemPrompt})
		s.records[id] = rec
	}
	rec.touched = s.now()
	rec.turns = append(rec.turns, turn)

	if s.opts.MaxTurns > 0 && len(rec.turns) > s.opts.MaxTurns {
		rec.turns = trimOldest(rec.turns, s.opts.MaxTurns)
	}
}

// trimOldest drops the oldest non-system turns until the record fits.
// System turns carry the seeded instructions and are never evicted.
func trimOldest(turns []Turn, max int) []Turn {
	out := turns
	for len(out) > max {
		dropped := false
		for i, t := range out {
			if t.Role != RoleSystem {
				out = append(out[:i], out[i+1:]...)
				dropped = true
				break
			}
		}
		if !dropped {
			break
		}
	}
	return out
}

// SystemPrompt concatenates all system turns, newline-separated, in
// insertion order.
func (s *Store) SystemPrompt(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return ""
	}
	var parts []string
	for _, t := range rec.turns {
		if t.Role == RoleSystem {
			parts = append(parts, t.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// HistoryPrompt renders the user/assistant turns as "User: ..." and
// "Assistant: ..." lines in insertion order.
func (s *Store) HistoryPrompt(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return ""
	}
	var parts []string
	for _, t := range rec.turns {
		switch t.Role {
		case RoleUser:
			parts = append(parts, "User: "+t.Content)
		case RoleAssistant:
			parts = append(parts, "Assistant: "+t.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// LastTurns returns up to n of the most recent user/assistant turns.
func (s *Store) LastTurns(id string, n int) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil
	}
	var conv []Turn
	for _, t := range rec.turns {
		if t.Role == RoleUser || t.Role == RoleAssistant {
			conv = append(conv, t)
		}
	}
	if len(conv) > n {
		conv = conv[len(conv)-n:]
	}
	return conv
}

// Turns returns a copy of the full turn sequence.
func (s *Store) Turns(id string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil
	}
	out := make([]Turn, len(rec.turns))
	copy(out, rec.turns)
	return out
}

// Len reports the number of live conversations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// sweep drops conversations idle past the TTL. Caller holds the lock.
func (s *Store) sweep() {
	if s.opts.TTL <= 0 {
		return
	}
	cutoff := s.now().Add(-s.opts.TTL)
	for id, rec := range s.records {
		if rec.touched.Before(cutoff) {
			delete(s.records, id)
		}
	}
}

// evictOldest removes the least-recently-touched conversation. Caller holds
// the lock.
func (s *Store) evictOldest() {
	var oldestID string
	var oldest time.Time
	for id, rec := range s.records {
		if oldestID == "" || rec.touched.Before(oldest) {
			oldestID = id
			oldest = rec.touched
		}
	}
	if oldestID != "" {
		delete(s.records, oldestID)
	}
}
