// Package index implements the in-memory inverted index behind the
// lexical retrieval path: tokenization, posting lists, document
// statistics, and BM25 scoring. Documents are added and removed per
// ingestion event; queries never mutate the index.
package index

import (
	"strings"
	"unicode"
)

// stopwords excluded from both indexing and query tokenization. The
// set is intentionally small; BM25's IDF already damps frequent terms.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "in": {}, "is": {},
	"it": {}, "of": {}, "on": {}, "or": {}, "that": {}, "the": {},
	"to": {}, "was": {}, "were": {}, "with": {},
}

// Tokenize lowercases text, splits on non-alphanumeric runs, drops
// stopwords and single-character tokens, and applies the suffix
// stemmer. Indexing and query parsing share this function so term
// matching is symmetric.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, ok := stopwords[f]; ok {
			continue
		}
		tokens = append(tokens, Stem(f))
	}
	return tokens
}

// Stem strips a few common English suffixes. Deliberately lighter than
// a full Porter stemmer: it only needs to make "searching" match
// "searches" for scoring and highlighting, not to be linguistically
// complete.
func Stem(token string) string {
	for _, suffix := range []string{"ingly", "edly", "ing", "ies", "ed", "ly", "es", "s"} {
		if strings.HasSuffix(token, suffix) && len(token)-len(suffix) >= 3 {
			return token[:len(token)-len(suffix)]
		}
	}
	return token
}

// TermFrequencies counts stemmed token occurrences, the per-document
// statistics stored on a chunk by ingestion.
func TermFrequencies(text string) (map[string]int, int) {
	tokens := Tokenize(text)
	freqs := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		freqs[tok]++
	}
	return freqs, len(tokens)
}
