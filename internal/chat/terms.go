package chat

import (
	"regexp"
	"strings"
	"unicode"
)

// Synonym maps a query term onto a category name.
type Synonym struct {
	Term     string
	Category string
}

// Vocabulary holds the word tables the router and resolver match against.
// Tests and callers may extend a copy returned by DefaultVocabulary.
type Vocabulary struct {
	Greetings       map[string]bool
	GreetingPhrases []string
	FollowUpCues    map[string]bool
	CommonStarters  map[string]bool
	StopWords       map[string]bool
	VagueTokens     map[string]bool
	// CategorySynonyms append their category to the query before category matching.
	CategorySynonyms []Synonym
	// DescriptionSynonyms also keep only rows whose description contains the term.
	DescriptionSynonyms []Synonym
	DoctorTerms         []string
	InsuranceTerms      []string
	ScopePhrases        []string
	SpecificKeywords    []string
	HyphenPrefixes      []string
}

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// commonStarters are capitalised words that never name a merchant or person.
var commonStarters = set(
	"i", "i'm", "i've", "i'd", "a", "an", "the", "my", "me", "we", "our", "you", "your",
	"show", "list", "find", "get", "give", "tell", "search", "display",
	"what", "what's", "whats", "when", "where", "which", "who", "whom", "why", "how",
	"did", "do", "does", "have", "has", "had", "is", "are", "was", "were", "can", "could",
	"would", "should", "will", "please", "and", "or", "in", "on", "at", "for", "from", "to", "of",
	"last", "this", "that", "these", "those", "all", "any", "total", "sum", "set", "add",
	"update", "change", "delete", "remove", "clear", "hi", "hello", "hey", "thanks", "ok", "okay",
	"january", "february", "march", "april", "may", "june", "july", "august",
	"september", "october", "november", "december",
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	"r", "zar",
)

// DefaultVocabulary returns a fresh copy of the built-in word tables.
func DefaultVocabulary() Vocabulary {
	starters := make(map[string]bool, len(commonStarters))
	for k := range commonStarters {
		starters[k] = true
	}
	return Vocabulary{
		Greetings:       set("hi", "hello", "hey", "howdy", "greetings", "thanks", "thx", "cheers"),
		GreetingPhrases: []string{"thank you", "good morning", "good afternoon", "good evening"},
		FollowUpCues: set(
			"them", "these", "those", "it", "they", "above", "previous",
			"group", "sort", "filter", "summarize", "summarise", "sum", "average",
			"breakdown", "analyze", "analyse",
		),
		CommonStarters: starters,
		StopWords: set(
			"when", "did", "the", "and", "for", "you", "your", "my", "me", "last", "first",
			"how", "much", "many", "what", "what's", "whats", "where", "why", "who", "which",
			"show", "find", "get", "list", "all", "pay", "paid", "spend", "spent", "spending",
			"make", "made", "payment", "payments", "have", "has", "was", "were", "are", "this",
			"that", "there", "any", "can", "could", "please", "tell", "give", "buy", "bought",
			"does", "about", "since", "ever", "time", "times", "often", "from", "with",
			"price", "prices", "increase", "increased", "change", "changed", "went", "cost", "costs",
			"month", "year", "week", "day", "money", "amount",
		),
		VagueTokens: set("recent", "latest", "transactions", "transaction", "all", "my", "show", "list", "get"),
		CategorySynonyms: []Synonym{
			{"saved", "savings"},
			{"save", "savings"},
			{"petrol", "fuel"},
			{"gas", "fuel"},
			{"medical aid", "medical"},
			{"flowers", "florist"},
			{"flower", "florist"},
		},
		DescriptionSynonyms: []Synonym{
			{"roof", "home_maintenance"},
			{"ceiling", "home_maintenance"},
			{"electrician", "home_maintenance"},
			{"plumber", "home_maintenance"},
			{"garage", "home_maintenance"},
			{"pool", "home_maintenance"},
			{"fence", "home_maintenance"},
		},
		DoctorTerms: []string{
			"dr ", "doctor", "cardiologist", "neurologist", "dentist", "optom",
			"medicross", "mediclinic", "netcare", "hospital",
		},
		InsuranceTerms: []string{"med aid", "medihelp", "health ins", "tms health"},
		ScopePhrases: []string{
			"search everything", "search all", "check everything", "look at everything",
			"all time", "all-time", "not just this month", "not just last month",
			"not only this month", "entire history", "full history", "whole history",
			"all history", "further back", "look back further",
		},
		SpecificKeywords: []string{
			"show", "list", "find", "search", "how much", "spend", "spent", "spending",
			"budget", "price", "income", "deposit", "salary", "credit", "debit",
			"expense", "payment", "transactions", "transaction", "last month", "this month",
			"recent", "latest", "doctor", "petrol", "fuel", "groceries", "electricity",
		},
		HyphenPrefixes: []string{"pre", "re", "x", "e", "t"},
	}
}

var (
	wordRe     = regexp.MustCompile(`[a-z0-9]+(?:['-][a-z0-9]+)*`)
	payNameRe  = regexp.MustCompile(`\b(?:pay|paid)\s+[A-Z]`)
	whenLastRe = regexp.MustCompile(`\bwhen\s+(?:did\s+i\s+)?last\b|\blast\s+time\b|\bmost\s+recent(?:ly)?\b`)
)

// tokens lower-cases text and splits it into words, keeping inner hyphens and apostrophes.
func tokens(text string) []string {
	return wordRe.FindAllString(strings.ToLower(text), -1)
}

// containsWord reports whether phrase occurs in text on word boundaries.
func containsWord(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	for start := 0; start < len(text); {
		idx := strings.Index(text[start:], phrase)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(phrase)
		before := idx == 0 || !isWordByte(text[idx-1])
		after := end == len(text) || !isWordByte(text[end])
		if before && after {
			return true
		}
		start = idx + 1
	}
	return false
}

func isWordByte(b byte) bool {
	return b == '_' || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}

// isGreeting is true for short queries (five words or fewer) that are or
// contain a greeting.
func (v Vocabulary) isGreeting(query string) bool {
	words := tokens(query)
	if len(words) == 0 || len(words) > 5 {
		return false
	}
	for _, w := range words {
		if v.Greetings[w] {
			return true
		}
	}
	lower := strings.ToLower(query)
	for _, p := range v.GreetingPhrases {
		if containsWord(lower, p) {
			return true
		}
	}
	return false
}

func (v Vocabulary) hasFollowUpCue(query string) bool {
	for _, w := range tokens(query) {
		if v.FollowUpCues[w] {
			return true
		}
	}
	return false
}

// properNouns returns capitalised words of the original query that are not
// common sentence starters.
func (v Vocabulary) properNouns(query string) []string {
	var out []string
	for _, raw := range strings.Fields(query) {
		w := strings.TrimFunc(raw, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		if len(w) < 2 {
			continue
		}
		first := []rune(w)[0]
		if !unicode.IsUpper(first) {
			continue
		}
		if v.CommonStarters[strings.ToLower(w)] {
			continue
		}
		out = append(out, w)
	}
	return out
}

// isVagueQuery is true when every word comes from the vague token set.
func (v Vocabulary) isVagueQuery(query string) bool {
	words := tokens(query)
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		if !v.VagueTokens[w] {
			return false
		}
	}
	return true
}

func (v Vocabulary) isScopeExpansion(lower string) bool {
	for _, p := range v.ScopePhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func (v Vocabulary) hasSpecificKeyword(lower string) bool {
	for _, k := range v.SpecificKeywords {
		if containsWord(lower, k) {
			return true
		}
	}
	for _, s := range v.CategorySynonyms {
		if containsWord(lower, s.Term) {
			return true
		}
	}
	return false
}

// searchTerms strips stop words and keeps tokens longer than two characters.
func (v Vocabulary) searchTerms(query string) []string {
	var out []string
	for _, w := range tokens(query) {
		if len(w) <= 2 || v.StopWords[w] {
			continue
		}
		out = append(out, w)
	}
	return out
}

// hyphenVariants returns spellings of term with a hyphen removed or inserted
// after a known prefix.
func (v Vocabulary) hyphenVariants(term string) []string {
	if strings.Contains(term, "-") {
		return []string{strings.ReplaceAll(term, "-", "")}
	}
	var out []string
	for _, p := range v.HyphenPrefixes {
		if strings.HasPrefix(term, p) && len(term) > len(p)+1 {
			out = append(out, p+"-"+term[len(p):])
		}
	}
	return out
}

func wantsMostRecent(lower string) bool {
	return whenLastRe.MatchString(lower)
}

func isPriceQuery(lower string) bool {
	if !strings.Contains(lower, "price") {
		return false
	}
	for _, k := range []string{"increase", "change", "go up", "went up"} {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func isBudgetQuery(lower string) bool {
	return strings.Contains(lower, "budget")
}

// mentionsCategory returns the first known category whose readable form
// (underscores as spaces) occurs in lower.
func mentionsCategory(lower string, categories []string) string {
	for _, c := range categories {
		name := strings.ToLower(strings.TrimSpace(c))
		if name == "" {
			continue
		}
		if strings.Contains(lower, strings.ReplaceAll(name, "_", " ")) || strings.Contains(lower, name) {
			return c
		}
	}
	return ""
}
