package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jask/ledgerchat/internal/llm"
	"github.com/jask/ledgerchat/internal/logger"
)

// ErrEmptyQuery is returned by Ask for blank input.
var ErrEmptyQuery = errors.New("chat: empty query")

const (
	// DefaultHistoryLimit is how many history messages a completion call sees.
	DefaultHistoryLimit = 10
	answerTemperature   = 0.3
)

const systemPrompt = `You are a helpful assistant that answers questions about the user's bank transactions.
Amounts are in South African Rand; write them like R1,234.56.
Lines wrapped in >>> and <<< hold pre-computed totals, budget figures and price changes. Quote those figures exactly and never do your own arithmetic.
Only use the transactions provided. If nothing matches, say so plainly and suggest what else the user could ask.
Be concise.`

// Reply is the outcome of one turn.
type Reply struct {
	Text         string        `json:"message"`
	Transactions []Transaction `json:"transactions"`
	Usage        *llm.Usage    `json:"llm_stats,omitempty"`
	Route        string        `json:"-"`
}

// Options tunes an Assistant. Zero values pick the defaults.
type Options struct {
	HistoryLimit int
	Vocabulary   *Vocabulary
	Logger       *zerolog.Logger
}

// Assistant answers questions about the ledger. It holds no per-conversation
// state; every call works on the Session it is given.
type Assistant struct {
	store        Store
	llm          llm.Completer
	vocab        Vocabulary
	resolver     *Resolver
	context      *ContextBuilder
	log          zerolog.Logger
	historyLimit int
	routes       []route
}

// route is one stage of the turn pipeline. handled=false passes the turn on.
type route struct {
	name   string
	handle func(ctx context.Context, t *turn) (reply Reply, handled bool, err error)
}

// turn carries what earlier stages learned about the current query.
type turn struct {
	query   string
	lower   string
	session *Session

	txs          []Transaction
	resolved     bool
	skipFollowUp bool
	// contextQuery replaces query when building context for a re-run search.
	contextQuery string
}

// NewAssistant wires the resolver, context builder and route pipeline over
// store. A nil completer makes fresh searches answer with an apology.
func NewAssistant(store Store, completer llm.Completer, opts Options) *Assistant {
	vocab := DefaultVocabulary()
	if opts.Vocabulary != nil {
		vocab = *opts.Vocabulary
	}
	log := logger.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	a := &Assistant{
		store:        store,
		llm:          completer,
		vocab:        vocab,
		resolver:     NewResolver(store, completer, vocab, log),
		context:      NewContextBuilder(store),
		log:          log,
		historyLimit: limit,
	}
	a.routes = []route{
		{"budget-update", a.updateBudget},
		{"scope-expansion", a.expandScope},
		{"follow-up", a.followUp},
		{"price-change", a.answerPriceChange},
		{"budget-read", a.answerBudget},
		{"fresh-search", a.answerWithCompletion},
	}
	return a
}

// HistoryLimit is the number of messages kept between turns.
func (a *Assistant) HistoryLimit() int { return a.historyLimit }

// Ask runs one turn. Completion failures become an apology reply; store
// failures are returned.
func (a *Assistant) Ask(ctx context.Context, query string, s *Session) (Reply, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Reply{}, ErrEmptyQuery
	}
	s.Begin(a.historyLimit)

	t := &turn{query: query, lower: strings.ToLower(query), session: s}
	for _, rt := range a.routes {
		reply, handled, err := rt.handle(ctx, t)
		if err != nil {
			return Reply{}, fmt.Errorf("%s: %w", rt.name, err)
		}
		if !handled {
			continue
		}
		reply.Route = rt.name
		a.log.Debug().
			Str("route", rt.name).
			Str("query", query).
			Int("transactions", len(reply.Transactions)).
			Msg("turn answered")
		return reply, nil
	}
	return Reply{}, fmt.Errorf("chat: no route handled %q", query)
}

// Clear resets the session's history and remembered transactions.
func (a *Assistant) Clear(s *Session) {
	s.Clear()
}

func (a *Assistant) expandScope(ctx context.Context, t *turn) (Reply, bool, error) {
	if !a.vocab.isScopeExpansion(t.lower) {
		return Reply{}, false, nil
	}
	if t.session.LastQuery == "" {
		t.skipFollowUp = true
		return Reply{}, false, nil
	}
	txs, err := a.resolver.Resolve(ctx, t.session.LastQuery, true)
	if err != nil {
		return Reply{}, false, err
	}
	t.session.LastTransactions = txs
	t.txs, t.resolved = txs, true
	t.contextQuery = t.session.LastQuery
	return Reply{}, false, nil
}

func (a *Assistant) followUp(ctx context.Context, t *turn) (Reply, bool, error) {
	if t.resolved || t.skipFollowUp || len(t.session.LastTransactions) == 0 {
		return Reply{}, false, nil
	}
	ok, err := a.isFollowUp(ctx, t.query)
	if err != nil || !ok {
		return Reply{}, false, err
	}
	t.txs, t.resolved = t.session.LastTransactions, true
	return Reply{}, false, nil
}

// isFollowUp reports whether query refers to the previous result set.
func (a *Assistant) isFollowUp(ctx context.Context, query string) (bool, error) {
	lower := strings.ToLower(query)
	if a.vocab.isGreeting(lower) {
		return false, nil
	}
	if a.vocab.hasFollowUpCue(lower) {
		return true, nil
	}
	if len(tokens(lower)) > 5 ||
		a.vocab.hasSpecificKeyword(lower) ||
		payNameRe.MatchString(query) ||
		len(a.vocab.properNouns(query)) > 0 {
		return false, nil
	}
	categories, err := a.store.AllCategories(ctx)
	if err != nil {
		return false, fmt.Errorf("categories: %w", err)
	}
	return mentionsCategory(lower, categories) == "", nil
}

// resolve returns the turn's transactions, running a fresh search when no
// earlier stage supplied them.
func (a *Assistant) resolve(ctx context.Context, t *turn) ([]Transaction, error) {
	if t.resolved {
		return t.txs, nil
	}
	txs, err := a.resolver.Resolve(ctx, t.query, false)
	if err != nil {
		return nil, err
	}
	t.session.LastTransactions = txs
	t.session.LastQuery = t.query
	t.txs, t.resolved = txs, true
	return txs, nil
}

func (a *Assistant) answerPriceChange(ctx context.Context, t *turn) (Reply, bool, error) {
	if !isPriceQuery(t.lower) {
		return Reply{}, false, nil
	}
	txs, err := a.resolve(ctx, t)
	if err != nil {
		return Reply{}, false, err
	}
	text := priceAnswer(txs)
	a.recordExchange(t.session, t.query, text)
	return Reply{Text: text, Transactions: txs}, true, nil
}

func (a *Assistant) answerWithCompletion(ctx context.Context, t *turn) (Reply, bool, error) {
	txs, err := a.resolve(ctx, t)
	if err != nil {
		return Reply{}, false, err
	}
	contextQuery := t.query
	if t.contextQuery != "" {
		contextQuery = t.contextQuery
	}
	block, err := a.context.Build(ctx, txs, contextQuery)
	if err != nil {
		return Reply{}, false, err
	}

	s := t.session
	snapshot := s.Snapshot()
	s.append(llm.RoleUser, t.query)

	msgs := make([]llm.Message, 0, len(s.History)+1)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	msgs = append(msgs, s.History[:len(s.History)-1]...)
	msgs = append(msgs, llm.Message{
		Role:    llm.RoleUser,
		Content: fmt.Sprintf("Context about the user's transactions:\n%s\n\nUser question: %s", block, t.query),
	})

	resp, err := a.complete(ctx, msgs)
	if err != nil {
		s.Rollback(snapshot)
		a.log.Warn().Err(err).Str("query", t.query).Msg("completion failed")
		return Reply{
			Text:         fmt.Sprintf("Sorry, I couldn't process your request. Error: %v", err),
			Transactions: txs,
		}, true, nil
	}
	s.append(llm.RoleAssistant, resp.Content)
	s.LastUsage = resp.Usage
	return Reply{Text: resp.Content, Transactions: txs, Usage: resp.Usage}, true, nil
}

func (a *Assistant) complete(ctx context.Context, msgs []llm.Message) (llm.CompletionResponse, error) {
	if a.llm == nil {
		return llm.CompletionResponse{}, errors.New("no completion service configured")
	}
	resp, err := a.llm.Complete(ctx, llm.CompletionRequest{Messages: msgs, Temperature: answerTemperature})
	if err != nil {
		return llm.CompletionResponse{}, err
	}
	resp.Content = strings.TrimSpace(resp.Content)
	return resp, nil
}

// recordExchange stores a deterministic answer so later completions see it.
func (a *Assistant) recordExchange(s *Session, query, answer string) {
	s.append(llm.RoleUser, query)
	s.append(llm.RoleAssistant, answer)
	s.LastUsage = nil
}

// priceAnswer phrases the price-change result for the dominant merchant.
func priceAnswer(txs []Transaction) string {
	var charges []Transaction
	for _, t := range txs {
		if !t.IsFee() {
			charges = append(charges, t)
		}
	}
	if len(charges) == 0 {
		return "I couldn't find any matching charges to check for a price change."
	}
	merchant := dominantMerchant(charges)
	if pc, ok := findPriceChange(charges); ok {
		return fmt.Sprintf("The %s price %s in %s, from %s to %s.",
			merchant, pc.Direction(), pc.Month.Format("January 2006"), FormatRand(pc.From), FormatRand(pc.To))
	}
	latest := latestOnly(charges)[0]
	return fmt.Sprintf("The %s price has stayed the same at %s across %d charges.",
		merchant, FormatRand(latest.Amount), len(charges))
}

func dominantMerchant(txs []Transaction) string {
	counts := make(map[string]int)
	var order []string
	for _, t := range txs {
		name := strings.TrimSpace(t.RecipientOrPayer)
		if name == "" {
			name = strings.TrimSpace(t.Description)
		}
		if counts[name] == 0 {
			order = append(order, name)
		}
		counts[name]++
	}
	best := ""
	for _, name := range order {
		if best == "" || counts[name] > counts[best] {
			best = name
		}
	}
	return best
}
