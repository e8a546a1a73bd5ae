package tui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/jask/ledgerchat/internal/chat"
	"github.com/jask/ledgerchat/internal/database"
	"github.com/jask/ledgerchat/internal/database/repository"
	"github.com/jask/ledgerchat/internal/domain"
	"github.com/jask/ledgerchat/internal/llm"
)

// echoCompleter answers "Hello!" unless the context is already cancelled.
type echoCompleter struct{}

func (echoCompleter) Complete(ctx context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return llm.CompletionResponse{}, err
	}
	return llm.CompletionResponse{Content: "Hello!", Usage: &llm.Usage{PromptTokens: 3, CompletionTokens: 1, TotalTokens: 4}}, nil
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	db, err := database.OpenAndMigrate(ctx, filepath.Join(t.TempDir(), "tui.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := repository.NewStore(db)
	return New(ctx, chat.NewAssistant(store, echoCompleter{}, chat.Options{}), store)
}

func typeText(a *App, s string) {
	a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func press(a *App, k tea.KeyType) tea.Cmd {
	_, cmd := a.Update(tea.KeyMsg{Type: k})
	return cmd
}

func TestInitLoadsStats(t *testing.T) {
	a := newTestApp(t)
	msg := a.Init()()
	a.Update(msg)
	require.NotNil(t, a.banner)
	require.Contains(t, a.View(), "0 statements")
}

func TestSendAndReceive(t *testing.T) {
	a := newTestApp(t)
	typeText(a, "hi")
	a.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	typeText(a, "i")
	require.Equal(t, "hi", a.input)

	cmd := press(a, tea.KeyEnter)
	require.NotNil(t, cmd)
	require.True(t, a.busy)
	require.Empty(t, a.input)

	// no second turn while one is running
	typeText(a, "again")
	require.Nil(t, press(a, tea.KeyEnter))

	a.Update(cmd())
	require.False(t, a.busy)
	require.Len(t, a.entries, 2)
	require.Equal(t, "Hello!", a.entries[1].text)
	require.Len(t, a.session.History, 2)
	require.Contains(t, a.View(), "Hello!")
	require.Contains(t, a.status, "tokens")
}

func TestCancelRollsBackHistory(t *testing.T) {
	a := newTestApp(t)
	typeText(a, "hello")
	cmd := press(a, tea.KeyEnter)
	require.Nil(t, press(a, tea.KeyEsc))
	require.True(t, a.cancelling)

	a.Update(cmd())
	require.False(t, a.busy)
	require.Empty(t, a.session.History)
	require.Equal(t, entryNotice, a.entries[len(a.entries)-1].kind)
}

func TestClearResetsConversation(t *testing.T) {
	a := newTestApp(t)
	typeText(a, "hello")
	a.Update(press(a, tea.KeyEnter)())
	require.NotEmpty(t, a.session.History)

	press(a, tea.KeyCtrlL)
	require.Empty(t, a.entries)
	require.Empty(t, a.session.History)
	require.Equal(t, "conversation cleared", a.status)
}

func TestRenderEntryCapsTransactions(t *testing.T) {
	var txs []domain.Transaction
	for i := 0; i < 13; i++ {
		txs = append(txs, domain.Transaction{Date: "2025-02-01", Description: "Checkers", Amount: -100, Type: domain.Debit})
	}
	out := renderEntry(entry{kind: entryAssistant, text: "Here", txs: txs})
	require.Equal(t, maxShown, strings.Count(out, "Checkers"))
	require.Contains(t, out, "and 3 more")
	require.Contains(t, out, "-R100")
}
