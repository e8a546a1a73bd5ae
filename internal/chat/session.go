package chat

import (
	"github.com/google/uuid"

	"github.com/jask/ledgerchat/internal/llm"
)

// Session is the per-conversation state. It is owned by one caller at a time;
// the assistant never locks it.
type Session struct {
	ID               string
	History          []llm.Message
	LastTransactions []Transaction
	LastQuery        string
	LastUsage        *llm.Usage
}

// NewSession starts an empty conversation with a fresh ID.
func NewSession() *Session {
	return &Session{ID: uuid.NewString()}
}

// Snapshot returns the current history length for a later Rollback.
func (s *Session) Snapshot() int { return len(s.History) }

// Rollback truncates history back to a snapshot and forgets usage stats.
func (s *Session) Rollback(snapshot int) {
	if snapshot < 0 {
		snapshot = 0
	}
	if snapshot < len(s.History) {
		s.History = s.History[:snapshot]
	}
	s.LastUsage = nil
}

// Trim keeps the most recent n history messages.
func (s *Session) Trim(n int) {
	if n <= 0 || len(s.History) <= n {
		return
	}
	kept := make([]llm.Message, n)
	copy(kept, s.History[len(s.History)-n:])
	s.History = kept
}

// Begin trims history to limit and returns the snapshot for this turn.
// Transports call it before handing the session to Ask so a cancelled turn
// can be rolled back to the same point Ask started from.
func (s *Session) Begin(limit int) int {
	s.Trim(limit)
	return s.Snapshot()
}

// Clear resets history and the remembered result set.
func (s *Session) Clear() {
	s.History = nil
	s.LastTransactions = nil
	s.LastQuery = ""
	s.LastUsage = nil
}

func (s *Session) append(role, content string) {
	s.History = append(s.History, llm.Message{Role: role, Content: content})
}
