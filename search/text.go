package search

import (
	"strings"
	"unicode"
)

// Stop words ignored by lexical matching
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true,
}

// tokenize splits text into lowercased words with surrounding punctuation trimmed.
func tokenize(text string) []string {
	words := strings.Fields(text)
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		cleaned := strings.ToLower(strings.TrimFunc(word, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		}))
		if cleaned != "" {
			tokens = append(tokens, cleaned)
		}
	}
	return tokens
}

// queryTerms returns the query words that are not stop words. A query made
// only of stop words keeps all of them.
func queryTerms(query string) []string {
	tokens := tokenize(query)
	terms := make([]string, 0, len(tokens))
	seen := make(map[string]bool, len(tokens))
	for _, token := range tokens {
		if stopWords[token] || seen[token] {
			continue
		}
		seen[token] = true
		terms = append(terms, token)
	}
	if len(terms) == 0 {
		return tokens
	}
	return terms
}

const snippetRadius = 60

// snippet returns the text around the first occurrence of any term, with
// whitespace collapsed and ellipses marking cut ends.
func snippet(text string, terms []string) string {
	runes := []rune(strings.Join(strings.Fields(text), " "))
	if len(runes) == 0 {
		return ""
	}
	lower := []rune(strings.ToLower(string(runes)))

	hit := -1
	for _, term := range terms {
		if i := runeIndex(lower, []rune(term)); i >= 0 && (hit < 0 || i < hit) {
			hit = i
		}
	}
	if hit < 0 {
		hit = 0
	}

	start := max(hit-snippetRadius, 0)
	end := min(hit+snippetRadius, len(runes))
	// Extend to word boundaries.
	for start > 0 && !unicode.IsSpace(runes[start-1]) && hit-start < snippetRadius+15 {
		start--
	}
	for end < len(runes) && !unicode.IsSpace(runes[end]) && end-hit < snippetRadius+15 {
		end++
	}

	s := strings.TrimSpace(string(runes[start:end]))
	if start > 0 {
		s = "…" + s
	}
	if end < len(runes) {
		s += "…"
	}
	return s
}

// runeIndex is strings.Index over rune slices, returning a rune offset.
func runeIndex(s, sub []rune) int {
	if len(sub) == 0 {
		return 0
	}
outer:
	for i := 0; i+len(sub) <= len(s); i++ {
		for j := range sub {
			if s[i+j] != sub[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}
