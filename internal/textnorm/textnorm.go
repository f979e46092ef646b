// Package textnorm turns listing text into the token stream the classifiers
// and the vectorizer consume.
package textnorm

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// Normalizer strips markup, lowercases, drops punctuation, and removes stop
// words. The zero value uses DefaultStopWords.
type Normalizer struct {
	stop map[string]struct{}
}

// New builds a Normalizer with the provided stop words. A nil slice selects
// DefaultStopWords.
func New(stopWords []string) *Normalizer {
	if stopWords == nil {
		stopWords = DefaultStopWords
	}
	stop := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		stop[strings.ToLower(w)] = struct{}{}
	}
	return &Normalizer{stop: stop}
}

// Normalize returns the space-joined tokens of text.
func (n *Normalizer) Normalize(text string) string {
	return strings.Join(n.Tokens(text), " ")
}

// Tokens returns the lowercased non-stop-word tokens of text. Tokens keep
// letters, digits, '+' and '#' so "c++" and "c#" survive.
func (n *Normalizer) Tokens(text string) []string {
	plain := StripHTML(text)
	fields := strings.FieldsFunc(strings.ToLower(plain), isSeparator)
	out := fields[:0]
	for _, f := range fields {
		if n.isStopWord(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func (n *Normalizer) isStopWord(tok string) bool {
	if n == nil || n.stop == nil {
		_, ok := defaultStop[tok]
		return ok
	}
	_, ok := n.stop[tok]
	return ok
}

func isSeparator(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return false
	}
	return r != '+' && r != '#'
}

// StripHTML returns the text content of an HTML fragment. Plain text passes
// through unchanged.
func StripHTML(text string) string {
	if !strings.ContainsAny(text, "<&") {
		return text
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return text
	}
	// Block elements run together in Text(); pad them first.
	doc.Find("p, li, br, div, h1, h2, h3, h4, h5, h6, tr").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	return strings.TrimSpace(doc.Text())
}

// DefaultStopWords is a short English and Russian function-word list.
var DefaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from", "in", "is",
	"it", "of", "on", "or", "the", "to", "with", "we", "you", "our",
	"и", "в", "во", "на", "с", "со", "по", "для", "к", "ко", "от", "до", "из",
	"о", "об", "а", "но", "или", "не", "что", "как", "мы", "вы", "это", "за",
	"у", "же", "бы", "то", "так",
}

var defaultStop = func() map[string]struct{} {
	m := make(map[string]struct{}, len(DefaultStopWords))
	for _, w := range DefaultStopWords {
		m[w] = struct{}{}
	}
	return m
}()
