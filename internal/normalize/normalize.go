// Package normalize flattens raw listings into typed rows and converts
// disclosed compensation into a single net amount in the base currency.
package normalize

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/vacancy-crawler/internal/textnorm"
	"github.com/JakeFAU/vacancy-crawler/internal/vacancy"
)

// Rates holds the run-scoped compensation parameters.
type Rates struct {
	// USD is the base-currency value of one US dollar.
	USD float64
	// EUR is the base-currency value of one euro.
	EUR float64
	// Tax is the income tax fraction deducted from gross salaries.
	Tax float64
}

// Validate reports rates that would corrupt every salary.
func (r Rates) Validate() error {
	if r.USD <= 0 {
		return fmt.Errorf("usd rate must be > 0")
	}
	if r.EUR <= 0 {
		return fmt.Errorf("eur rate must be > 0")
	}
	if r.Tax < 0 || r.Tax >= 1 {
		return fmt.Errorf("tax rate must be in [0,1)")
	}
	return nil
}

// MalformedRecordError describes a field that was absent and defaulted.
type MalformedRecordError struct {
	ID    string
	Field string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("listing %s: missing %s", e.ID, e.Field)
}

// Normalizer converts RawListing values into NormalizedRow values.
type Normalizer struct {
	rates  Rates
	logger *zap.Logger
}

// New builds a Normalizer.
func New(rates Rates, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{rates: rates, logger: logger}
}

// Normalize flattens one listing. Absent nested objects become empty values
// and each is reported in the returned issues. Role and grade start
// undefined.
func (n *Normalizer) Normalize(l vacancy.RawListing) (vacancy.NormalizedRow, []*MalformedRecordError) {
	var issues []*MalformedRecordError
	missing := func(field string) {
		issues = append(issues, &MalformedRecordError{ID: l.ID, Field: field})
	}

	row := vacancy.NormalizedRow{
		ID:        l.ID,
		Title:     strings.TrimSpace(l.Name),
		QueryRole: l.QueryRole,
		Role:      vacancy.Undefined,
		Grade:     vacancy.Undefined,
	}

	if l.Employer != nil {
		row.EmployerName = l.Employer.Name
	} else {
		missing("employer")
	}
	switch {
	case l.Region != "":
		row.RegionName = l.Region
	case l.Area != nil:
		row.RegionName = l.Area.Name
	default:
		missing("area")
	}
	if l.Schedule != nil {
		row.ScheduleType = l.Schedule.Name
	} else {
		missing("schedule")
	}
	if l.Experience != nil {
		row.ExperienceBand = l.Experience.Name
	} else {
		missing("experience")
	}
	if l.Description != nil {
		row.Description = textnorm.StripHTML(*l.Description)
	} else {
		missing("description")
	}
	row.KeySkillsText = joinSkills(l.KeySkills)

	if s := l.Salary; s != nil {
		if s.From != nil {
			row.SalaryFrom = *s.From
		}
		if s.To != nil {
			row.SalaryTo = *s.To
		}
		row.SalaryCurrency = strings.ToUpper(s.Currency)
		row.SalaryIsGross = s.Gross != nil && *s.Gross
	}
	row.NormalizedSalary = n.NetSalary(l.Salary)
	return row, issues
}

// NetSalary converts a salary block into a rounded net base-currency amount.
// The midpoint of the present bounds is converted first and the tax is
// deducted from the converted value. An absent block or one without bounds
// yields 0.
func (n *Normalizer) NetSalary(s *vacancy.Salary) int64 {
	if s == nil {
		return 0
	}
	var sum float64
	var count int
	if s.From != nil {
		sum += *s.From
		count++
	}
	if s.To != nil {
		sum += *s.To
		count++
	}
	if count == 0 {
		return 0
	}
	amount := sum / float64(count)
	switch strings.ToUpper(s.Currency) {
	case "USD":
		amount *= n.rates.USD
	case "EUR":
		amount *= n.rates.EUR
	}
	if s.Gross != nil && *s.Gross {
		amount *= 1 - n.rates.Tax
	}
	return int64(math.Round(amount))
}

func joinSkills(skills []vacancy.Skill) string {
	names := make([]string, 0, len(skills))
	for _, s := range skills {
		if name := strings.TrimSpace(s.Name); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, " ")
}

// Summary aggregates a batch normalization.
type Summary struct {
	Rows    []vacancy.NormalizedRow
	Issues  int
	ByField map[string]int
}

// NormalizeAll normalizes listings in order and aggregates the issues.
func (n *Normalizer) NormalizeAll(listings []vacancy.RawListing) Summary {
	sum := Summary{
		Rows:    make([]vacancy.NormalizedRow, 0, len(listings)),
		ByField: make(map[string]int),
	}
	for _, l := range listings {
		row, issues := n.Normalize(l)
		sum.Rows = append(sum.Rows, row)
		for _, issue := range issues {
			sum.Issues++
			sum.ByField[issue.Field]++
			n.logger.Debug("listing field defaulted",
				zap.String("id", issue.ID),
				zap.String("field", issue.Field),
			)
		}
	}
	if sum.Issues > 0 {
		n.logger.Info("normalized listings with missing fields",
			zap.Int("rows", len(sum.Rows)),
			zap.Int("issues", sum.Issues),
		)
	}
	return sum
}
