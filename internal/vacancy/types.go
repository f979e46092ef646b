// Package vacancy defines the listing records that flow through the
// acquisition, normalization, and grading stages.
package vacancy

import (
	"math"
	"strconv"
	"strings"
)

// Undefined marks a role or grade no stage has decided yet.
const Undefined = "undefined"

// Region is a searchable sub-area of a country.
type Region struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Specialization is the API's industry category used to scope a search.
type Specialization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RoleQuery pairs a profession with the text the search API is queried with.
type RoleQuery struct {
	Name      string `json:"name" mapstructure:"name"`
	SearchTag string `json:"search_tag" mapstructure:"search_tag"`
}

// NamedRef is the `{id, name}` object the API nests for employers, areas,
// schedules, and experience bands.
type NamedRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Salary is the disclosed compensation block. Every field may be absent.
type Salary struct {
	From     *float64 `json:"from"`
	To       *float64 `json:"to"`
	Currency string   `json:"currency"`
	Gross    *bool    `json:"gross"`
}

// Skill is a single entry of a listing's key skills.
type Skill struct {
	Name string `json:"name"`
}

// RawListing is one search result in the API's own shape plus the fields
// copied from its detail call. Description, Experience, and KeySkills stay nil
// when the detail call failed.
type RawListing struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Area        *NamedRef `json:"area"`
	Employer    *NamedRef `json:"employer"`
	Schedule    *NamedRef `json:"schedule"`
	Salary      *Salary   `json:"salary"`
	Description *string   `json:"description,omitempty"`
	Experience  *NamedRef `json:"experience,omitempty"`
	KeySkills   []Skill   `json:"key_skills,omitempty"`

	// Region is the name of the region the listing was found under.
	Region string `json:"region,omitempty"`
	// QueryRole is the RoleQuery name whose search produced the listing.
	QueryRole string `json:"query_role,omitempty"`
	// Enriched reports whether the detail call succeeded.
	Enriched bool `json:"enriched"`
}

// Detail is the subset of the detail response merged into a RawListing.
type Detail struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Experience  *NamedRef `json:"experience"`
	KeySkills   []Skill   `json:"key_skills"`
}

// Enrich returns a copy of the listing carrying the detail fields. A nil
// detail clears them instead.
func (l RawListing) Enrich(d *Detail, region, role string) RawListing {
	out := l
	out.Region = region
	out.QueryRole = role
	out.Description = nil
	out.Experience = nil
	out.KeySkills = nil
	out.Enriched = false
	if d == nil {
		return out
	}
	desc := d.Description
	out.Description = &desc
	if d.Experience != nil {
		exp := *d.Experience
		out.Experience = &exp
	}
	out.KeySkills = append([]Skill(nil), d.KeySkills...)
	out.Enriched = true
	return out
}

// NormalizedRow is the flat, typed record every downstream stage works on.
type NormalizedRow struct {
	ID               string
	Title            string
	Description      string
	KeySkillsText    string
	ExperienceBand   string
	ScheduleType     string
	RegionName       string
	EmployerName     string
	SalaryFrom       float64
	SalaryTo         float64
	SalaryCurrency   string
	SalaryIsGross    bool
	NormalizedSalary int64
	QueryRole        string
	Role             string
	Grade            string
}

// Columns is the column order of the tabular export.
var Columns = []string{
	"id",
	"title",
	"description",
	"keySkillsText",
	"experienceBand",
	"role",
	"grade",
	"normalizedSalary",
	"scheduleType",
	"regionName",
	"employerName",
}

// Record renders the row in Columns order.
func (r NormalizedRow) Record() []string {
	return []string{
		r.ID,
		r.Title,
		r.Description,
		r.KeySkillsText,
		r.ExperienceBand,
		r.Role,
		r.Grade,
		strconv.FormatInt(r.NormalizedSalary, 10),
		r.ScheduleType,
		r.RegionName,
		r.EmployerName,
	}
}

// RowFromRecord rebuilds a row from an exported record. The header maps
// column names to positions so reordered exports still load. The exported
// role becomes QueryRole so reclassification can fall back to it.
func RowFromRecord(header map[string]int, record []string) (NormalizedRow, error) {
	get := func(col string) string {
		idx, ok := header[col]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}
	row := NormalizedRow{
		ID:             get("id"),
		Title:          get("title"),
		Description:    get("description"),
		KeySkillsText:  get("keySkillsText"),
		ExperienceBand: get("experienceBand"),
		ScheduleType:   get("scheduleType"),
		RegionName:     get("regionName"),
		EmployerName:   get("employerName"),
		QueryRole:      get("role"),
		Role:           Undefined,
		Grade:          Undefined,
	}
	if row.QueryRole == Undefined {
		row.QueryRole = ""
	}
	if raw := get("normalizedSalary"); raw != "" {
		salary, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return NormalizedRow{}, &RecordError{Column: "normalizedSalary", Value: raw, Err: err}
		}
		row.NormalizedSalary = int64(math.Round(salary))
	}
	return row, nil
}

// RecordError reports an exported value that could not be parsed back.
type RecordError struct {
	Column string
	Value  string
	Err    error
}

func (e *RecordError) Error() string {
	return "column " + e.Column + ": invalid value " + strconv.Quote(e.Value) + ": " + e.Err.Error()
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
