package prompt

import (
	"strings"
	"unicode"
)

// condensedMaxLen bounds the identifier stored in the history ledger.
const condensedMaxLen = 50

// Chains recognized when deriving the middle segment of a condensed
// identifier. Order matters: the first one mentioned in the prompt wins.
var knownChains = []string{
	"ethereum",
	"bitcoin",
	"solana",
	"base",
	"arbitrum",
	"optimism",
	"polygon",
	"avalanche",
}

// Verbs and filler that say nothing about the subject.
var stopwords = map[string]bool{
	"analyze": true, "analyse": true, "compare": true, "examine": true,
	"identify": true, "create": true, "deep": true, "dive": true,
	"into": true, "the": true, "a": true, "an": true, "of": true,
	"and": true, "or": true, "across": true, "over": true, "which": true,
	"what": true, "whats": true, "how": true, "this": true, "past": true,
	"are": true, "is": true, "in": true, "on": true, "for": true,
	"with": true, "their": true, "its": true, "most": true,
}

// Condense derives the bounded topic:chain:subject identifier recorded in
// the history ledger. Deterministic: the same prompt always condenses to the
// same identifier.
func Condense(category, text string) string {
	lower := strings.ToLower(text)
	words := splitWords(lower)

	wordSet := make(map[string]bool, len(words))
	for _, w := range words {
		wordSet[w] = true
	}

	// Whole-word match only: "based on" must not read as the Base chain.
	chain := "multi"
	for _, c := range knownChains {
		if wordSet[c] {
			chain = c
			break
		}
	}

	id := category + ":" + chain + ":" + subjectSlug(words)
	runes := []rune(id)
	if len(runes) > condensedMaxLen {
		id = strings.TrimRight(string(runes[:condensedMaxLen]), "-:")
	}
	return id
}

func splitWords(lower string) []string {
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// subjectSlug keeps the first few significant words of the prompt.
func subjectSlug(words []string) string {
	var kept []string
	for _, w := range words {
		if stopwords[w] || len(w) < 3 {
			continue
		}
		kept = append(kept, w)
		if len(kept) == 3 {
			break
		}
	}
	if len(kept) == 0 {
		return "general"
	}
	return strings.Join(kept, "-")
}
