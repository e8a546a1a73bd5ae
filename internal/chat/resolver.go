package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jask/ledgerchat/internal/domain"
	"github.com/jask/ledgerchat/internal/llm"
)

// vagueFallbackLimit is how many recent rows a purely vague query returns.
const vagueFallbackLimit = 20

// Resolver picks the transactions relevant to a fresh query.
type Resolver struct {
	store Store
	llm   llm.Completer
	vocab Vocabulary
	log   zerolog.Logger
	now   func() time.Time
}

// NewResolver builds a resolver. completer may be nil, which disables typo correction.
func NewResolver(store Store, completer llm.Completer, vocab Vocabulary, log zerolog.Logger) *Resolver {
	return &Resolver{store: store, llm: completer, vocab: vocab, log: log, now: time.Now}
}

type dateWindow struct {
	start, end string
}

// detectWindow maps "last month" and "this month" onto inclusive ISO dates.
func detectWindow(lower string, now time.Time) *dateWindow {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	switch {
	case strings.Contains(lower, "last month"):
		end := first.AddDate(0, 0, -1)
		start := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, now.Location())
		return &dateWindow{start: start.Format(time.DateOnly), end: end.Format(time.DateOnly)}
	case strings.Contains(lower, "this month"):
		return &dateWindow{start: first.Format(time.DateOnly), end: now.Format(time.DateOnly)}
	}
	return nil
}

// Resolve runs the layered lookup. forceAllHistory disables month windows.
func (r *Resolver) Resolve(ctx context.Context, query string, forceAllHistory bool) ([]Transaction, error) {
	lower := strings.ToLower(strings.TrimSpace(query))
	if lower == "" || r.vocab.isGreeting(lower) {
		return nil, nil
	}

	mostRecent := wantsMostRecent(lower)
	finish := func(txs []Transaction) []Transaction {
		if mostRecent {
			return latestOnly(txs)
		}
		return txs
	}

	var window *dateWindow
	if !forceAllHistory {
		window = detectWindow(lower, r.now())
	}

	if containsWord(lower, "doctor") || containsWord(lower, "doctors") {
		txs, err := r.store.TransactionsByCategory(ctx, "medical")
		if err != nil {
			return nil, fmt.Errorf("medical transactions: %w", err)
		}
		return finish(r.doctorVisits(txs)), nil
	}

	category, descFilter, err := r.matchCategory(ctx, lower)
	if err != nil {
		return nil, err
	}

	if isBudgetQuery(lower) {
		if category == "" {
			return nil, nil
		}
		return r.latestStatementCategory(ctx, category)
	}

	switch {
	case window != nil && category != "":
		txs, err := r.store.TransactionsInDateRange(ctx, window.start, window.end)
		if err != nil {
			return nil, fmt.Errorf("date range: %w", err)
		}
		return finish(filterDescription(filterCategory(txs, category), descFilter)), nil
	case category != "":
		txs, err := r.store.TransactionsByCategory(ctx, category)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", category, err)
		}
		return finish(filterDescription(txs, descFilter)), nil
	case window != nil:
		txs, err := r.store.TransactionsInDateRange(ctx, window.start, window.end)
		if err != nil {
			return nil, fmt.Errorf("date range: %w", err)
		}
		return finish(txs), nil
	}

	// debit/expense/payment deliberately fall through: all debits is too broad
	for _, k := range []string{"credit", "deposit", "income"} {
		if strings.Contains(lower, k) {
			txs, err := r.store.TransactionsByType(ctx, domain.Credit)
			if err != nil {
				return nil, fmt.Errorf("credits: %w", err)
			}
			return finish(txs), nil
		}
	}

	includeFees := containsWord(lower, "fee") || containsWord(lower, "fees")

	if nouns := r.vocab.properNouns(query); len(nouns) > 0 {
		phrase := strings.ToLower(strings.Join(nouns, " "))
		txs, err := r.search(ctx, phrase, includeFees)
		if err != nil {
			return nil, err
		}
		if len(txs) > 0 {
			return finish(txs), nil
		}
	}

	simple := r.vocab.searchTerms(query)
	txs, err := r.searchTerms(ctx, simple, includeFees)
	if err != nil {
		return nil, err
	}
	if len(txs) > 0 {
		return finish(txs), nil
	}

	if corrected := r.correctTerms(ctx, query, simple); !sameTerms(corrected, simple) {
		r.log.Debug().Strs("terms", corrected).Msg("searching corrected terms")
		txs, err := r.searchTerms(ctx, corrected, includeFees)
		if err != nil {
			return nil, err
		}
		if len(txs) > 0 {
			return finish(txs), nil
		}
	}

	if r.vocab.isVagueQuery(lower) {
		txs, err := r.store.AllTransactions(ctx, vagueFallbackLimit)
		if err != nil {
			return nil, fmt.Errorf("recent transactions: %w", err)
		}
		return finish(txs), nil
	}
	return nil, nil
}

// matchCategory expands synonyms and returns the first known category named
// by the query, plus a description filter for trade-style synonyms.
func (r *Resolver) matchCategory(ctx context.Context, lower string) (string, string, error) {
	categories, err := r.store.AllCategories(ctx)
	if err != nil {
		return "", "", fmt.Errorf("categories: %w", err)
	}
	expanded := lower
	for _, s := range r.vocab.CategorySynonyms {
		if containsWord(lower, s.Term) {
			expanded += " " + s.Category
		}
	}
	descFilter := ""
	for _, s := range r.vocab.DescriptionSynonyms {
		if containsWord(lower, s.Term) {
			expanded += " " + s.Category
			if descFilter == "" {
				descFilter = s.Term
			}
		}
	}
	for _, c := range categories {
		name := strings.ToLower(strings.TrimSpace(c))
		if name != "" && strings.Contains(expanded, name) {
			return c, descFilter, nil
		}
	}
	return "", "", nil
}

func (r *Resolver) doctorVisits(txs []Transaction) []Transaction {
	var out []Transaction
	for _, t := range txs {
		desc := strings.ToLower(t.Description)
		if containsAny(desc, r.vocab.DoctorTerms) && !containsAny(desc, r.vocab.InsuranceTerms) {
			out = append(out, t)
		}
	}
	return out
}

func (r *Resolver) latestStatementCategory(ctx context.Context, category string) ([]Transaction, error) {
	latest, err := r.store.LatestStatement(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest statement: %w", err)
	}
	if latest == nil {
		txs, err := r.store.TransactionsByCategory(ctx, category)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", category, err)
		}
		return txs, nil
	}
	txs, err := r.store.TransactionsByStatement(ctx, latest.StatementNumber)
	if err != nil {
		return nil, fmt.Errorf("statement %s: %w", latest.StatementNumber, err)
	}
	return filterCategory(txs, category), nil
}

// search runs one full-text lookup and drops fee rows unless asked for.
func (r *Resolver) search(ctx context.Context, term string, includeFees bool) ([]Transaction, error) {
	txs, err := r.store.SearchTransactions(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", term, err)
	}
	if includeFees {
		return txs, nil
	}
	var out []Transaction
	for _, t := range txs {
		if !t.IsFee() {
			out = append(out, t)
		}
	}
	return out, nil
}

// searchTerms tries bigrams, then each unigram followed by its hyphen
// variants. The first non-empty result wins.
func (r *Resolver) searchTerms(ctx context.Context, terms []string, includeFees bool) ([]Transaction, error) {
	var candidates []string
	for i := 0; i+1 < len(terms); i++ {
		candidates = append(candidates, terms[i]+" "+terms[i+1])
	}
	for _, t := range terms {
		candidates = append(candidates, t)
		candidates = append(candidates, r.vocab.hyphenVariants(t)...)
	}

	tried := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if tried[c] {
			continue
		}
		tried[c] = true
		txs, err := r.search(ctx, c, includeFees)
		if err != nil {
			return nil, err
		}
		if len(txs) > 0 {
			return txs, nil
		}
	}
	return nil, nil
}

func latestOnly(txs []Transaction) []Transaction {
	if len(txs) == 0 {
		return txs
	}
	best := txs[0]
	for _, t := range txs[1:] {
		if t.Date > best.Date {
			best = t
		}
	}
	return []Transaction{best}
}

func filterCategory(txs []Transaction, category string) []Transaction {
	var out []Transaction
	for _, t := range txs {
		if strings.EqualFold(t.Category, category) {
			out = append(out, t)
		}
	}
	return out
}

func filterDescription(txs []Transaction, term string) []Transaction {
	if term == "" {
		return txs
	}
	var out []Transaction
	for _, t := range txs {
		if strings.Contains(strings.ToLower(t.Description), term) {
			out = append(out, t)
		}
	}
	return out
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func sameTerms(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
