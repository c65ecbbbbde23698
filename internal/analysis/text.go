// Package analysis holds the deterministic transcript statistics computed
// before any model call.
package analysis

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"sales-insights-go/internal/types"
)

const DefaultTopKeywords = 10

var stopwords = map[string]struct{}{
	"el": {}, "la": {}, "los": {}, "las": {}, "de": {}, "y": {}, "que": {}, "a": {},
	"en": {}, "lo": {}, "un": {}, "una": {}, "por": {}, "con": {}, "se": {}, "para": {},
	"del": {}, "al": {}, "es": {}, "su": {}, "sus": {}, "le": {}, "les": {},
}

// WordCount counts whitespace-separated tokens.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// TopKeywords returns the topN most frequent qualifying terms, most frequent
// first. Terms with equal frequency keep the order of their first appearance.
func TopKeywords(text string, topN int) []types.KeywordCount {
	if topN <= 0 {
		topN = DefaultTopKeywords
	}

	cleaned := strings.Map(keepRune, strings.ToLower(norm.NFC.String(text)))

	counts := map[string]int{}
	var order []string
	for _, word := range strings.Fields(cleaned) {
		if _, stop := stopwords[word]; stop {
			continue
		}
		if utf8.RuneCountInString(word) <= 2 {
			continue
		}
		if counts[word] == 0 {
			order = append(order, word)
		}
		counts[word]++
	}

	out := make([]types.KeywordCount, 0, len(order))
	for _, w := range order {
		out = append(out, types.KeywordCount{Term: w, Count: counts[w]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })

	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

// keepRune drops everything outside lower-case ASCII letters, digits, the
// Spanish accented letters and whitespace.
func keepRune(r rune) rune {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return r
	case unicode.IsSpace(r):
		return r
	}
	switch r {
	case 'á', 'é', 'í', 'ó', 'ú', 'ü', 'ñ':
		return r
	}
	return -1
}
