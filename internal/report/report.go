// Package report renders run summaries as terminal tables.
package report

import (
	"cmp"
	"fmt"
	"io"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/JakeFAU/vacancy-crawler/internal/crawler"
	"github.com/JakeFAU/vacancy-crawler/internal/grade"
	"github.com/JakeFAU/vacancy-crawler/internal/normalize"
	"github.com/JakeFAU/vacancy-crawler/internal/skills"
	"github.com/JakeFAU/vacancy-crawler/internal/vacancy"
)

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	if title != "" {
		t.SetTitle(title)
	}
	return t
}

// Crawl prints the crawl counters.
func Crawl(w io.Writer, s crawler.Stats) {
	t := newTable(w, "Crawl")
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"role/region pairs", s.Pairs},
		{"count failures", s.CountFailures},
		{"pages planned", s.PagesPlanned},
		{"pages fetched", s.PagesFetched},
		{"page failures", s.PageFailures},
		{"pages cancelled", s.PagesCancelled},
		{"detail failures", s.DetailFailures},
		{"listings", s.Listings},
	})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	t.Render()
}

// Normalization prints the malformed-record counts per field.
func Normalization(w io.Writer, s normalize.Summary) {
	t := newTable(w, fmt.Sprintf("Normalization: %d rows, %d missing fields", len(s.Rows), s.Issues))
	t.AppendHeader(table.Row{"Field", "Missing"})
	for _, field := range sortedKeys(s.ByField) {
		t.AppendRow(table.Row{field, s.ByField[field]})
	}
	t.Render()
}

// Distribution prints label counts, most frequent first.
func Distribution(w io.Writer, title string, counts map[string]int) {
	t := newTable(w, title)
	t.AppendHeader(table.Row{"Label", "Rows"})
	labels := make([]string, 0, len(counts))
	total := 0
	for label, n := range counts {
		labels = append(labels, label)
		total += n
	}
	slices.SortFunc(labels, func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	for _, label := range labels {
		t.AppendRow(table.Row{label, counts[label]})
	}
	t.AppendFooter(table.Row{"total", total})
	t.Render()
}

// Model prints the grade model's evaluation.
func Model(w io.Writer, r grade.Report, filled int) {
	t := newTable(w, "Grade model")
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"labeled rows", r.Labeled},
		{"train / test", fmt.Sprintf("%d / %d", r.TrainSize, r.TestSize)},
		{"vocabulary", r.Vocabulary},
		{"tree depth", r.Depth},
		{"train F1", fmt.Sprintf("%.3f", r.TrainF1)},
		{fmt.Sprintf("cross-val F1 (%d folds)", r.Folds), fmt.Sprintf("%.3f", r.CrossValF1)},
		{"test F1", fmt.Sprintf("%.3f", r.TestF1)},
		{"grades filled", filled},
	})
	t.Render()
}

// Skills prints the most demanded skills for role ("" for every role).
func Skills(w io.Writer, role string, top []skills.SkillCount) {
	if role == "" {
		role = "all roles"
	}
	t := newTable(w, "Top skills: "+role)
	t.AppendHeader(table.Row{"#", "Skill", "Mentions"})
	for i, sc := range top {
		t.AppendRow(table.Row{i + 1, sc.Skill, sc.Count})
	}
	t.Render()
}

// Roles prints the role taxonomy.
func Roles(w io.Writer, roles []vacancy.RoleQuery) {
	t := newTable(w, "Roles")
	t.AppendHeader(table.Row{"Role", "Search tag"})
	for _, r := range roles {
		t.AppendRow(table.Row{r.Name, r.SearchTag})
	}
	t.Render()
}

// Countries prints the supported countries.
func Countries(w io.Writer, countries []vacancy.Country) {
	t := newTable(w, "Countries")
	t.AppendHeader(table.Row{"Country", "Search tag", "Tax rate"})
	for _, c := range countries {
		t.AppendRow(table.Row{c.Name, c.SearchTag, fmt.Sprintf("%.0f%%", c.TaxRate*100)})
	}
	t.Render()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
