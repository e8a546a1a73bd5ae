package chat

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/ledgerchat/internal/llm"
)

func TestSessionRollbackToSnapshot(t *testing.T) {
	s := NewSession()
	require.NotEmpty(t, s.ID)
	s.append(llm.RoleUser, "first")
	s.append(llm.RoleAssistant, "answer")

	snap := s.Snapshot()
	s.append(llm.RoleUser, "cancelled question")
	s.LastUsage = &llm.Usage{TotalTokens: 3}

	s.Rollback(snap)
	require.Len(t, s.History, 2)
	require.Equal(t, "answer", s.History[1].Content)
	require.Nil(t, s.LastUsage)

	// rolling back to a later point is a no-op
	s.Rollback(10)
	require.Len(t, s.History, 2)
}

func TestSessionBeginTrims(t *testing.T) {
	s := NewSession()
	for i := 0; i < 7; i++ {
		s.append(llm.RoleUser, string(rune('a'+i)))
	}
	snap := s.Begin(4)
	require.Equal(t, 4, snap)
	require.Len(t, s.History, 4)
	require.Equal(t, "d", s.History[0].Content)

	require.Equal(t, 4, s.Begin(4))
}

func TestSessionClear(t *testing.T) {
	s := NewSession()
	s.append(llm.RoleUser, "x")
	s.LastTransactions = []Transaction{{Description: "y"}}
	s.LastQuery = "x"
	s.Clear()
	require.Empty(t, s.History)
	require.Empty(t, s.LastTransactions)
	require.Empty(t, s.LastQuery)
}
