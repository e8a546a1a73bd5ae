// Package tui is the terminal chat front end.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jask/ledgerchat/internal/chat"
	"github.com/jask/ledgerchat/internal/domain"
)

// maxShown caps the transactions listed under one answer.
const maxShown = 10

// StatsSource reports ledger totals for the welcome banner.
type StatsSource interface {
	Stats(ctx context.Context) (domain.Stats, error)
}

// App is the chat screen. One App owns one session.
type App struct {
	ctx       context.Context
	assistant *chat.Assistant
	stats     StatsSource
	session   *chat.Session

	entries []entry
	input   string
	status  string
	banner  *domain.Stats

	// in-flight turn
	turnID     int
	busy       bool
	cancelling bool
	cancel     context.CancelFunc
	snapshot   int
}

type entryKind string

const (
	entryUser      entryKind = "user"
	entryAssistant entryKind = "assistant"
	entryNotice    entryKind = "notice"
)

type entry struct {
	kind entryKind
	text string
	txs  []domain.Transaction
}

func New(ctx context.Context, assistant *chat.Assistant, stats StatsSource) *App {
	return &App{
		ctx:       ctx,
		assistant: assistant,
		stats:     stats,
		session:   chat.NewSession(),
	}
}

// Run starts the full-screen program and blocks until the user quits.
func Run(ctx context.Context, assistant *chat.Assistant, stats StatsSource) error {
	_, err := tea.NewProgram(New(ctx, assistant, stats), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func (a *App) Init() tea.Cmd {
	return a.loadStats()
}

func (a *App) loadStats() tea.Cmd {
	return func() tea.Msg {
		if a.stats == nil {
			return nil
		}
		s, err := a.stats.Stats(a.ctx)
		if err != nil {
			return errMsg{err}
		}
		return statsMsg(s)
	}
}

func (a *App) askCmd(ctx context.Context, id int, query string) tea.Cmd {
	return func() tea.Msg {
		reply, err := a.assistant.Ask(ctx, query, a.session)
		return replyMsg{id: id, reply: reply, err: err}
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(m)
	case statsMsg:
		s := domain.Stats(m)
		a.banner = &s
	case replyMsg:
		return a, a.finishTurn(m)
	case errMsg:
		a.status = "error: " + m.Error()
	}
	return a, nil
}

func (a *App) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "ctrl+c":
		if a.cancel != nil {
			a.cancel()
		}
		return a, tea.Quit
	case "esc":
		if a.busy && !a.cancelling {
			a.cancelling = true
			a.cancel()
			a.status = "cancelling..."
		}
	case "ctrl+l":
		if a.busy {
			return a, nil
		}
		a.assistant.Clear(a.session)
		a.entries = nil
		a.status = "conversation cleared"
	case "enter":
		return a, a.submit()
	case "backspace":
		if r := []rune(a.input); len(r) > 0 {
			a.input = string(r[:len(r)-1])
		}
	default:
		if m.Type == tea.KeyRunes || m.Type == tea.KeySpace {
			a.input += string(m.Runes)
		}
	}
	return a, nil
}

func (a *App) submit() tea.Cmd {
	query := strings.TrimSpace(a.input)
	if query == "" || a.busy {
		return nil
	}
	a.input = ""
	a.entries = append(a.entries, entry{kind: entryUser, text: query})
	a.status = "thinking..."

	ctx, cancel := context.WithCancel(a.ctx)
	a.turnID++
	a.busy = true
	a.cancel = cancel
	a.snapshot = a.session.Begin(a.assistant.HistoryLimit())
	return a.askCmd(ctx, a.turnID, query)
}

// finishTurn is the only place the session is touched after a turn starts,
// so a cancelled turn is rolled back once Ask has returned.
func (a *App) finishTurn(m replyMsg) tea.Cmd {
	if m.id != a.turnID || !a.busy {
		return nil
	}
	a.cancel()
	a.busy = false

	if a.cancelling {
		a.cancelling = false
		a.session.Rollback(a.snapshot)
		a.entries = append(a.entries, entry{kind: entryNotice, text: "(cancelled)"})
		a.status = ""
		return nil
	}
	if m.err != nil {
		a.entries = append(a.entries, entry{kind: entryNotice, text: "error: " + m.err.Error()})
		a.status = ""
		return nil
	}
	a.entries = append(a.entries, entry{kind: entryAssistant, text: m.reply.Text, txs: m.reply.Transactions})
	a.status = ""
	if u := m.reply.Usage; u != nil {
		a.status = fmt.Sprintf("tokens: %d prompt, %d completion", u.PromptTokens, u.CompletionTokens)
	}
	return nil
}

type statsMsg domain.Stats

type replyMsg struct {
	id    int
	reply chat.Reply
	err   error
}

type errMsg struct{ error }

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Underline(true)
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#89b4fa"))
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#cdd6f4"))
	noticeStyle    = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#6c7086"))
	debitStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8"))
	creditStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1"))
)

func (a *App) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("LedgerChat"))
	b.WriteString("\n")
	if a.banner != nil {
		b.WriteString(renderBanner(*a.banner))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	for _, e := range a.entries {
		b.WriteString(renderEntry(e))
		b.WriteString("\n")
	}
	b.WriteString("\n> " + a.input)
	if !a.busy {
		b.WriteString("_")
	}
	b.WriteString("\n[enter] Send  [esc] Cancel  [ctrl+l] Clear  [ctrl+c] Quit")
	if a.status != "" {
		b.WriteString("\n" + a.status)
	}
	return b.String()
}

func renderBanner(s domain.Stats) string {
	return fmt.Sprintf("%s statements, %s transactions, %s categories. Debits %s, credits %s.",
		humanize.Comma(int64(s.TotalStatements)),
		humanize.Comma(int64(s.TotalTransactions)),
		humanize.Comma(int64(s.CategoriesCount)),
		chat.FormatRand(s.TotalDebits),
		chat.FormatRand(s.TotalCredits))
}

func renderEntry(e entry) string {
	switch e.kind {
	case entryUser:
		return userStyle.Render("you: ") + e.text
	case entryNotice:
		return noticeStyle.Render(e.text)
	}
	out := assistantStyle.Render(e.text)
	shown := e.txs
	if len(shown) > maxShown {
		shown = shown[:maxShown]
	}
	for _, t := range shown {
		out += "\n  " + transactionLine(t)
	}
	if extra := len(e.txs) - len(shown); extra > 0 {
		out += noticeStyle.Render(fmt.Sprintf("\n  ... and %d more", extra))
	}
	return out
}

func transactionLine(t domain.Transaction) string {
	desc := t.Description
	if r := []rune(desc); len(r) > 40 {
		desc = string(r[:39]) + "…"
	}
	amount := chat.FormatRand(t.Amount)
	style := creditStyle
	if t.Kind() == domain.Debit {
		amount = "-" + amount
		style = debitStyle
	}
	return fmt.Sprintf("%s  %-40s  %s  %s", t.Date, desc, style.Render(fmt.Sprintf("%12s", amount)), t.CategoryName())
}
