// Package classify assigns roles and grades to listings from their titles
// using ordered keyword rules.
package classify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/JakeFAU/vacancy-crawler/internal/vacancy"
)

// TextNormalizer prepares a title for matching.
type TextNormalizer interface {
	Normalize(text string) string
}

type compiledRole struct {
	label string
	terms []*regexp.Regexp
}

type compiledGrade struct {
	label string
	term  *regexp.Regexp
}

// Classifier matches titles against compiled role and grade rules. It is
// immutable and safe for concurrent use.
type Classifier struct {
	roles  []compiledRole
	grades []compiledGrade
}

// New compiles the given rules. Nil slices select the default rules.
func New(roles []RoleRule, grades []GradeRule) (*Classifier, error) {
	if roles == nil {
		roles = DefaultRoleRules
	}
	if grades == nil {
		grades = DefaultGradeRules
	}
	c := &Classifier{
		roles:  make([]compiledRole, 0, len(roles)),
		grades: make([]compiledGrade, 0, len(grades)),
	}
	for _, r := range roles {
		if len(r.AllOf) == 0 {
			return nil, fmt.Errorf("role rule %q has no terms", r.Label)
		}
		cr := compiledRole{label: r.Label}
		for _, term := range r.AllOf {
			re, err := compileTerm(term)
			if err != nil {
				return nil, fmt.Errorf("compile role rule %q: %w", r.Label, err)
			}
			cr.terms = append(cr.terms, re)
		}
		c.roles = append(c.roles, cr)
	}
	for _, g := range grades {
		re, err := compileTerm(g.AnyOf)
		if err != nil {
			return nil, fmt.Errorf("compile grade rule %q: %w", g.Label, err)
		}
		c.grades = append(c.grades, compiledGrade{label: g.Label, term: re})
	}
	return c, nil
}

// MustDefault returns a classifier with the default rules.
func MustDefault() *Classifier {
	c, err := New(nil, nil)
	if err != nil {
		panic(err)
	}
	return c
}

// compileTerm builds a case-insensitive pattern that matches any alternative
// at the start of a word, or as a whole word when it ends in "$". \b is
// ASCII-only in RE2 so the boundaries are spelled out with Unicode classes.
func compileTerm(term Term) (*regexp.Regexp, error) {
	if len(term) == 0 {
		return nil, fmt.Errorf("empty term")
	}
	alts := make([]string, 0, len(term))
	for _, alt := range term {
		whole := strings.HasSuffix(alt, "$")
		words := strings.Fields(strings.TrimSuffix(alt, "$"))
		if len(words) == 0 {
			return nil, fmt.Errorf("blank alternative in %v", term)
		}
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		pattern := strings.Join(words, `[\s\-_]+`)
		if whole {
			pattern += `(?:$|[^\p{L}\p{N}])`
		}
		alts = append(alts, pattern)
	}
	re, err := regexp.Compile(`(?i)(?:^|[^\p{L}\p{N}])(?:` + strings.Join(alts, "|") + `)`)
	if err != nil {
		return nil, fmt.Errorf("compile term %v: %w", term, err)
	}
	return re, nil
}

// ClassifyRole returns the label of the first role rule whose terms all
// match title, or vacancy.Undefined.
func (c *Classifier) ClassifyRole(title string) string {
	for _, r := range c.roles {
		if matchAll(r.terms, title) {
			return r.label
		}
	}
	return vacancy.Undefined
}

// ClassifyGrade returns the label of the first matching grade rule, or
// vacancy.Undefined.
func (c *Classifier) ClassifyGrade(title string) string {
	for _, g := range c.grades {
		if g.term.MatchString(title) {
			return g.label
		}
	}
	return vacancy.Undefined
}

func matchAll(terms []*regexp.Regexp, text string) bool {
	for _, t := range terms {
		if !t.MatchString(text) {
			return false
		}
	}
	return true
}

// Apply returns a copy of rows with role and grade assigned from titles. A
// title that matches no role rule takes the role it was searched for. A nil
// normalizer matches the raw title.
func (c *Classifier) Apply(rows []vacancy.NormalizedRow, tn TextNormalizer) []vacancy.NormalizedRow {
	out := make([]vacancy.NormalizedRow, len(rows))
	for i, row := range rows {
		title := row.Title
		if tn != nil {
			title = tn.Normalize(title)
		}
		row.Role = c.ClassifyRole(title)
		if row.Role == vacancy.Undefined && row.QueryRole != "" {
			row.Role = row.QueryRole
		}
		row.Grade = c.ClassifyGrade(title)
		out[i] = row
	}
	return out
}

// Counts tallies rows per label using key to pick the label.
func Counts(rows []vacancy.NormalizedRow, key func(vacancy.NormalizedRow) string) map[string]int {
	counts := make(map[string]int)
	for _, r := range rows {
		counts[key(r)]++
	}
	return counts
}
