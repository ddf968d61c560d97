// Package match scores free text against small vocabularies of health
// keywords and family-member names.
package match

import (
	"regexp"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// Mode selects the matching policy for a vocabulary.
type Mode int

const (
	// WordBoundary matches an entry only when it occurs as a whole word,
	// case-insensitively. Keeps "er" from matching inside "finger".
	WordBoundary Mode = iota
	// Similarity matches an entry whose partial-similarity score against the
	// text meets the threshold. Tolerates misspelled or partial names.
	Similarity
)

// DefaultThreshold is the similarity score (0..100) required for a match.
const DefaultThreshold = 80

// Find returns the vocabulary entries that match text under the given mode,
// in vocabulary order, without duplicates. A threshold <= 0 uses
// DefaultThreshold; WordBoundary ignores the threshold entirely. Pure and
// deterministic: identical inputs always yield identical output.
func Find(text string, vocab []string, mode Mode, threshold int) []string {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	lower := strings.ToLower(text)

	matches := make([]string, 0, 4)
	seen := make(map[string]struct{}, len(vocab))
	for _, entry := range vocab {
		if _, dup := seen[entry]; dup {
			continue
		}
		trimmed := strings.TrimSpace(entry)
		if trimmed == "" {
			continue
		}
		var ok bool
		switch mode {
		case WordBoundary:
			ok = wholeWord(lower, strings.ToLower(trimmed))
		case Similarity:
			ok = fuzzy.PartialRatio(strings.ToLower(trimmed), lower) >= threshold
		}
		if ok {
			seen[entry] = struct{}{}
			matches = append(matches, entry)
		}
	}
	return matches
}

func wholeWord(text, word string) bool {
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(word) + `\b`)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}
