package grade

import (
	"sort"
	"unicode/utf8"
)

// Vector is a sparse term-count vector keyed by feature index.
type Vector map[int]float64

// Vectorizer maps token lists to term counts over a fixed vocabulary.
type Vectorizer struct {
	index map[string]int
	terms []string
}

// FitVectorizer builds a vocabulary of the tokens that occur in at least
// minDocFreq documents. Feature indices follow lexical order of the terms.
func FitVectorizer(docs [][]string, minDocFreq int) *Vectorizer {
	if minDocFreq < 1 {
		minDocFreq = 1
	}
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{}, len(doc))
		for _, tok := range doc {
			if !keepToken(tok) {
				continue
			}
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	terms := make([]string, 0, len(df))
	for tok, n := range df {
		if n >= minDocFreq {
			terms = append(terms, tok)
		}
	}
	sort.Strings(terms)
	index := make(map[string]int, len(terms))
	for i, t := range terms {
		index[t] = i
	}
	return &Vectorizer{index: index, terms: terms}
}

// keepToken drops single-rune tokens.
func keepToken(tok string) bool {
	return utf8.RuneCountInString(tok) >= 2
}

// Transform counts the in-vocabulary tokens of doc. Unseen tokens are
// ignored.
func (v *Vectorizer) Transform(doc []string) Vector {
	vec := make(Vector)
	for _, tok := range doc {
		if i, ok := v.index[tok]; ok {
			vec[i]++
		}
	}
	return vec
}

// Size returns the vocabulary size.
func (v *Vectorizer) Size() int {
	return len(v.terms)
}

// Term returns the vocabulary term of feature i.
func (v *Vectorizer) Term(i int) string {
	if i < 0 || i >= len(v.terms) {
		return ""
	}
	return v.terms[i]
}
