// Package skills extracts the most requested key skills for a role.
package skills

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/JakeFAU/vacancy-crawler/internal/vacancy"
)

// DefaultTopK is the number of skills reported when k is not positive.
const DefaultTopK = 10

// SkillCount is a skill and the number of times it was seen.
type SkillCount struct {
	Skill string
	Count int
}

// TopSkills returns up to k skills of rows with the given role, most frequent
// first. Equal counts keep first-seen order. An empty role selects every row.
func TopSkills(rows []vacancy.NormalizedRow, role string, k int) []SkillCount {
	if k <= 0 {
		k = DefaultTopK
	}
	var texts []string
	for _, r := range rows {
		if role != "" && r.Role != role {
			continue
		}
		texts = append(texts, r.KeySkillsText)
	}

	var candidates []string
	for _, t := range texts {
		candidates = append(candidates, Abbreviations(t)...)
	}
	for _, t := range texts {
		candidates = append(candidates, Phrases(t)...)
	}
	return rank(candidates, k)
}

func rank(candidates []string, k int) []SkillCount {
	index := make(map[string]int)
	var counts []SkillCount
	for _, c := range candidates {
		if i, ok := index[c]; ok {
			counts[i].Count++
			continue
		}
		index[c] = len(counts)
		counts = append(counts, SkillCount{Skill: c, Count: 1})
	}
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	if len(counts) > k {
		counts = counts[:k]
	}
	return counts
}

// Abbreviations returns the tokens of text made only of uppercase letters
// and underscores, such as "SQL" or "CI_CD".
func Abbreviations(text string) []string {
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	var out []string
	for _, tok := range tokens {
		if isAbbreviation(tok) {
			out = append(out, tok)
		}
	}
	return out
}

func isAbbreviation(tok string) bool {
	hasLetter := false
	for _, r := range tok {
		switch {
		case r == '_':
		case unicode.IsUpper(r):
			hasLetter = true
		default:
			return false
		}
	}
	return hasLetter
}

// Phrases groups the whitespace tokens of text into phrases, starting a new
// phrase at every token whose first rune is uppercase, and keeps the phrases
// longer than two runes. "Python Django REST" yields "Python", "Django" and
// "REST"; "Go" alone is dropped.
func Phrases(text string) []string {
	var out []string
	var current []string
	flush := func() {
		if len(current) == 0 {
			return
		}
		if p := strings.Join(current, " "); utf8.RuneCountInString(p) > 2 {
			out = append(out, p)
		}
		current = current[:0]
	}
	for _, tok := range strings.Fields(text) {
		first, _ := utf8.DecodeRuneInString(tok)
		if unicode.IsUpper(first) {
			flush()
		}
		current = append(current, tok)
	}
	flush()
	return out
}
