package classify

import "github.com/JakeFAU/vacancy-crawler/internal/vacancy"

// Term is a set of alternative spellings. It matches when any alternative
// starts a word of the text. An alternative ending in "$" must match a whole
// word, which keeps abbreviations such as "sr" from matching "sre".
type Term []string

// RoleRule assigns Label when every term in AllOf matches.
type RoleRule struct {
	Label string
	AllOf []Term
}

// GradeRule assigns Label when AnyOf matches.
type GradeRule struct {
	Label string
	AnyOf Term
}

// DefaultRoleRules are evaluated in order; the first match wins. Specific
// professions precede the generic backend and frontend stems.
var DefaultRoleRules = []RoleRule{
	{Label: vacancy.RoleQA, AllOf: []Term{{"тестиров", "tester", "qa$", "sdet", "quality assurance", "автотест"}}},
	{Label: vacancy.RoleScientist, AllOf: []Term{{"scientist", "data science", "machine learning", "машинного обучения", "ml engineer"}}},
	{Label: vacancy.RoleDataEng, AllOf: []Term{{"data", "дата", "данных", "dwh", "etl"}, {"engineer", "инженер"}}},
	{Label: vacancy.RoleAnalyst, AllOf: []Term{{"аналитик", "analyst"}}},
	{Label: vacancy.RoleSysAdmin, AllOf: []Term{{"системн", "system", "sys$"}, {"администр", "administrator", "admin"}}},
	{Label: vacancy.RoleSysAdmin, AllOf: []Term{{"sysadmin", "сисадмин"}}},
	{Label: vacancy.RoleInfoSec, AllOf: []Term{{"информацион", "information", "info"}, {"безопасн", "security"}}},
	{Label: vacancy.RoleInfoSec, AllOf: []Term{{"appsec", "pentest", "пентест", "cybersecurity", "кибербезопасн", "infosec"}}},
	{Label: vacancy.RoleDevOps, AllOf: []Term{{"devops", "dev ops", "девопс", "sre$", "site reliability"}}},
	{Label: vacancy.RoleEmbedded, AllOf: []Term{{"embedded", "встраива", "встроен", "микроконтроллер", "firmware"}}},
	{Label: vacancy.RoleIOS, AllOf: []Term{{"ios$", "swift"}}},
	{Label: vacancy.RoleAndroid, AllOf: []Term{{"android", "андроид"}}},
	{Label: vacancy.RoleFullstack, AllOf: []Term{{"fullstack", "full stack", "full-stack", "фулстек", "фуллстек"}}},
	{Label: vacancy.RoleFrontend, AllOf: []Term{{"frontend", "front end", "front$", "фронтенд", "фронт"}}},
	{Label: vacancy.RoleBackend, AllOf: []Term{{"backend", "back end", "back$", "бэк", "бек"}}},
}

// DefaultGradeRules are evaluated from the most to the least senior label;
// the first match wins. "старший" maps to middle and "ведущий" to senior,
// following local title conventions.
var DefaultGradeRules = []GradeRule{
	{Label: vacancy.GradeArchitect, AnyOf: Term{"архитектор", "architect"}},
	{Label: vacancy.GradePrincipal, AnyOf: Term{"главный", "principal"}},
	{Label: vacancy.GradeTeamLead, AnyOf: Term{"руководитель", "team lead", "teamlead", "tech lead", "techlead", "тимлид", "техлид", "lead$"}},
	{Label: vacancy.GradeSenior, AnyOf: Term{"ведущий", "senior", "сеньор", "sr$"}},
	{Label: vacancy.GradeMiddle, AnyOf: Term{"старший", "middle$", "mid$", "мидл"}},
	{Label: vacancy.GradeJunior, AnyOf: Term{"младший", "junior", "jr$", "джун"}},
	{Label: vacancy.GradeEntry, AnyOf: Term{"стажер", "стажёр", "intern", "trainee", "entry", "начинающий"}},
}
