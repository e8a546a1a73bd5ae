package chat

import (
	"context"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/jask/ledgerchat/internal/llm"
)

const (
	typoTimeout   = 10 * time.Second
	typoMaxTokens = 20
	typoPrompt    = "You extract merchant or company names from questions about bank transactions. " +
		"Reply with only the name the user most likely means, correcting any misspelling. " +
		"If you cannot tell, reply with the single word unknown."
)

// correctTerms asks the completion model which merchant the query names and
// keeps only answers grounded in the query text. Any failure returns simple.
func (r *Resolver) correctTerms(ctx context.Context, query string, simple []string) []string {
	if r.llm == nil {
		return simple
	}
	resp, err := r.llm.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: typoPrompt},
			{Role: llm.RoleUser, Content: query},
		},
		Temperature: 0,
		MaxTokens:   typoMaxTokens,
		Timeout:     typoTimeout,
	})
	if err != nil {
		r.log.Debug().Err(err).Msg("typo correction failed")
		return simple
	}
	terms := parseCorrection(resp.Content, query, simple)
	if len(terms) == 0 {
		return simple
	}
	return terms
}

// parseCorrection applies the acceptance rules to a model reply.
func parseCorrection(reply, query string, simple []string) []string {
	reply = strings.TrimSpace(reply)
	lowerQuery := strings.ToLower(query)

	if idx := strings.Index(reply, "->"); idx >= 0 {
		rhs := strings.Join(tokens(reply[idx+2:]), " ")
		if rhs == "" {
			return nil
		}
		return []string{rhs}
	}

	words := tokens(reply)
	if len(words) == 0 || (len(words) == 1 && words[0] == "unknown") {
		return nil
	}

	if len(words) >= 2 {
		var kept []string
		for _, w := range words {
			if len(w) >= 3 {
				kept = append(kept, w)
			}
		}
		if phrase := strings.Join(kept, " "); len(kept) > 0 && strings.Contains(lowerQuery, phrase) {
			return []string{phrase}
		}
	}

	var accepted []string
	for _, w := range words {
		if w == "unknown" {
			continue
		}
		if strings.Contains(lowerQuery, w) {
			accepted = append(accepted, w)
			continue
		}
		for _, tok := range simple {
			if closeMatch(w, tok) {
				accepted = append(accepted, w)
				break
			}
		}
	}
	return accepted
}

// closeMatch is a restricted edit distance: equal lengths allow up to two
// substitutions; a length difference of one allows one deletion from the
// longer word and at most one further mismatch. The deletion counts against
// the budget of two, otherwise "chanel" (drop the n, then two mismatches)
// would accept "chase".
func closeMatch(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return true
	}
	if levenshtein.ComputeDistance(a, b) > 2 {
		return false
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}
	switch len(ra) - len(rb) {
	case 0:
		mismatches := 0
		for i := range ra {
			if ra[i] != rb[i] {
				mismatches++
			}
		}
		return mismatches <= 2
	case 1:
		// walk both; the first mismatch consumes the deletion and counts
		mismatches, i, j := 0, 0, 0
		deleted := false
		for i < len(ra) && j < len(rb) {
			if ra[i] == rb[j] {
				i++
				j++
				continue
			}
			mismatches++
			if !deleted {
				deleted = true
				i++
				continue
			}
			i++
			j++
		}
		if !deleted {
			mismatches++
		}
		return mismatches <= 2
	default:
		return false
	}
}
