// Package textmatch provides the normalization, containment, and similarity
// primitives shared by deduplication and grouping. All functions are pure
// and total: empty or whitespace-only input never panics.
package textmatch

import (
	"strings"
)

const punctuation = `.,;:!?"'()[]{}<>«»""''`

// Normalize lowercases text, strips a fixed punctuation set, and collapses
// runs of whitespace into single spaces.
func Normalize(text string) string {
	lowered := strings.ToLower(text)

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if strings.ContainsRune(punctuation, r) {
			continue
		}
		b.WriteRune(r)
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// wordSet returns the set of whitespace-separated words of a normalized text.
func wordSet(normalized string) map[string]struct{} {
	words := strings.Fields(normalized)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Contains reports whether shorter is contained in longer: either as a
// literal substring after normalization, or because at least threshold of
// shorter's words appear in longer's word set.
func Contains(longer, shorter string, threshold float64) bool {
	normLonger := Normalize(longer)
	normShorter := Normalize(shorter)

	if normShorter == "" {
		return false
	}
	if strings.Contains(normLonger, normShorter) {
		return true
	}

	shorterWords := strings.Fields(normShorter)
	if len(shorterWords) == 0 {
		return false
	}
	longerSet := wordSet(normLonger)

	matched := 0
	for _, w := range shorterWords {
		if _, ok := longerSet[w]; ok {
			matched++
		}
	}

	return float64(matched)/float64(len(shorterWords)) >= threshold
}

// Similarity returns the Jaccard similarity of the normalized word sets of
// a and b. Identical normalized strings yield 1.0, empty input yields 0.0.
func Similarity(a, b string) float64 {
	normA := Normalize(a)
	normB := Normalize(b)

	if normA == "" || normB == "" {
		return 0.0
	}
	if normA == normB {
		return 1.0
	}

	setA := wordSet(normA)
	setB := wordSet(normB)

	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0.0
	}

	return float64(intersection) / float64(union)
}
