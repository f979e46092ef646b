package vacancy

import "strings"

// Grade labels in seniority order.
const (
	GradeEntry     = "entry"
	GradeJunior    = "junior"
	GradeMiddle    = "middle"
	GradeSenior    = "senior"
	GradePrincipal = "principal"
	GradeTeamLead  = "team lead"
	GradeArchitect = "architect"
)

// Grades lists every grade label in seniority order.
var Grades = []string{
	GradeEntry,
	GradeJunior,
	GradeMiddle,
	GradeSenior,
	GradePrincipal,
	GradeTeamLead,
	GradeArchitect,
}

// Role names of the default taxonomy.
const (
	RoleBackend   = "Backend developer"
	RoleFrontend  = "Frontend developer"
	RoleFullstack = "Fullstack developer"
	RoleEmbedded  = "Embedded developer"
	RoleIOS       = "iOS developer"
	RoleAndroid   = "Android developer"
	RoleAnalyst   = "Data analyst"
	RoleDataEng   = "Data engineer"
	RoleScientist = "Data scientist"
	RoleQA        = "QA engineer"
	RoleDevOps    = "DevOps engineer"
	RoleSysAdmin  = "System administrator"
	RoleInfoSec   = "Information security specialist"
)

// DefaultRoles is the profession taxonomy crawled when no subset is configured.
var DefaultRoles = []RoleQuery{
	{Name: RoleBackend, SearchTag: "back end"},
	{Name: RoleFrontend, SearchTag: "front end"},
	{Name: RoleFullstack, SearchTag: "full stack"},
	{Name: RoleEmbedded, SearchTag: "embedded"},
	{Name: RoleIOS, SearchTag: "ios"},
	{Name: RoleAndroid, SearchTag: "android"},
	{Name: RoleAnalyst, SearchTag: "data analyst"},
	{Name: RoleDataEng, SearchTag: "data engineer"},
	{Name: RoleScientist, SearchTag: "scientist"},
	{Name: RoleQA, SearchTag: "qa"},
	{Name: RoleDevOps, SearchTag: "dev ops"},
	{Name: RoleSysAdmin, SearchTag: "sys admin"},
	{Name: RoleInfoSec, SearchTag: "info security"},
}

// SelectRoles returns the DefaultRoles entries whose names appear in names,
// in taxonomy order. An empty names slice selects every role. Unknown names
// are returned separately.
func SelectRoles(names []string) ([]RoleQuery, []string) {
	if len(names) == 0 {
		return append([]RoleQuery(nil), DefaultRoles...), nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.ToLower(strings.TrimSpace(n))] = false
	}
	var out []RoleQuery
	for _, r := range DefaultRoles {
		key := strings.ToLower(r.Name)
		if _, ok := want[key]; ok {
			out = append(out, r)
			want[key] = true
		}
	}
	var unknown []string
	for _, n := range names {
		if !want[strings.ToLower(strings.TrimSpace(n))] {
			unknown = append(unknown, n)
		}
	}
	return out, unknown
}

// Country ties a country's English name to the name the API uses for it and
// its flat income tax rate.
type Country struct {
	Name      string
	SearchTag string
	TaxRate   float64
}

// Countries is the table of supported countries.
var Countries = []Country{
	{Name: "Russia", SearchTag: "Россия", TaxRate: 0.13},
	{Name: "Belarus", SearchTag: "Беларусь", TaxRate: 0.13},
	{Name: "Kazakhstan", SearchTag: "Казахстан", TaxRate: 0.10},
	{Name: "Uzbekistan", SearchTag: "Узбекистан", TaxRate: 0.12},
	{Name: "Kyrgyzstan", SearchTag: "Кыргызстан", TaxRate: 0.10},
	{Name: "Azerbaijan", SearchTag: "Азербайджан", TaxRate: 0.14},
	{Name: "Georgia", SearchTag: "Грузия", TaxRate: 0.20},
}

// LookupCountry finds a country by English name or search tag. Unknown
// names are returned as-is with a zero tax rate so callers can still query
// the API with them.
func LookupCountry(name string) (Country, bool) {
	name = strings.TrimSpace(name)
	for _, c := range Countries {
		if strings.EqualFold(c.Name, name) || c.SearchTag == name {
			return c, true
		}
	}
	return Country{Name: name, SearchTag: name}, false
}
