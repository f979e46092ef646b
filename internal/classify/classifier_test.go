package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/vacancy-crawler/internal/textnorm"
	"github.com/JakeFAU/vacancy-crawler/internal/vacancy"
)

func TestClassifyRole(t *testing.T) {
	t.Parallel()

	c := MustDefault()
	tests := []struct {
		title string
		want  string
	}{
		{"Senior Backend Developer", vacancy.RoleBackend},
		{"Бэкенд-разработчик Python", vacancy.RoleBackend},
		{"Frontend developer (React)", vacancy.RoleFrontend},
		{"Fullstack разработчик", vacancy.RoleFullstack},
		{"Full stack engineer", vacancy.RoleFullstack},
		{"Инженер по тестированию", vacancy.RoleQA},
		{"QA Automation Engineer", vacancy.RoleQA},
		{"Data Engineer", vacancy.RoleDataEng},
		{"Инженер данных", vacancy.RoleDataEng},
		{"Data Scientist", vacancy.RoleScientist},
		{"Аналитик данных", vacancy.RoleAnalyst},
		{"Системный администратор Linux", vacancy.RoleSysAdmin},
		{"Специалист по информационной безопасности", vacancy.RoleInfoSec},
		{"DevOps инженер", vacancy.RoleDevOps},
		{"Разработчик встраиваемых систем", vacancy.RoleEmbedded},
		{"iOS developer", vacancy.RoleIOS},
		{"Android-разработчик", vacancy.RoleAndroid},
		{"Менеджер по продажам", vacancy.Undefined},
		{"Feedback specialist", vacancy.Undefined},
		{"SRE engineer", vacancy.RoleDevOps},
		{"QA-инженер", vacancy.RoleQA},
		{"Qualified accountant", vacancy.Undefined},
		{"Backup administrator", vacancy.Undefined},
		{"Back end developer", vacancy.RoleBackend},
		{"Sys admin", vacancy.RoleSysAdmin},
		{"Iosif support", vacancy.Undefined},
	}
	for _, tc := range tests {
		t.Run(tc.title, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, c.ClassifyRole(tc.title))
		})
	}
}

func TestClassifyGrade(t *testing.T) {
	t.Parallel()

	c := MustDefault()
	tests := []struct {
		title string
		want  string
	}{
		{"Senior Backend Developer", vacancy.GradeSenior},
		{"Ведущий инженер", vacancy.GradeSenior},
		{"Старший аналитик", vacancy.GradeMiddle},
		{"Middle Go developer", vacancy.GradeMiddle},
		{"Junior QA", vacancy.GradeJunior},
		{"Младший системный администратор", vacancy.GradeJunior},
		{"Стажер-разработчик", vacancy.GradeEntry},
		{"Team Lead backend", vacancy.GradeTeamLead},
		{"Руководитель группы разработки", vacancy.GradeTeamLead},
		{"Principal engineer", vacancy.GradePrincipal},
		{"Архитектор решений", vacancy.GradeArchitect},
		{"Senior architect", vacancy.GradeArchitect},
		{"Go developer", vacancy.Undefined},
		{"Misremembered title", vacancy.Undefined},
		{"SRE engineer", vacancy.Undefined},
		{"Sr. Go developer", vacancy.GradeSenior},
		{"Middleware developer", vacancy.Undefined},
		{"Mid Python developer", vacancy.GradeMiddle},
		{"Jr frontend", vacancy.GradeJunior},
		{"Leading Go developer", vacancy.Undefined},
		{"Lead engineer", vacancy.GradeTeamLead},
	}
	for _, tc := range tests {
		t.Run(tc.title, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, c.ClassifyGrade(tc.title))
		})
	}
}

func TestApply(t *testing.T) {
	t.Parallel()

	c := MustDefault()
	rows := []vacancy.NormalizedRow{
		{ID: "1", Title: "Senior Back-end Developer", QueryRole: vacancy.RoleBackend, Role: vacancy.Undefined, Grade: vacancy.Undefined},
		{ID: "2", Title: "Программист 1С", QueryRole: vacancy.RoleBackend, Role: vacancy.Undefined, Grade: vacancy.Undefined},
		{ID: "3", Title: "Программист 1С", Role: vacancy.Undefined, Grade: vacancy.Undefined},
	}

	got := c.Apply(rows, textnorm.New(nil))
	require.Len(t, got, 3)
	assert.Equal(t, vacancy.RoleBackend, got[0].Role)
	assert.Equal(t, vacancy.GradeSenior, got[0].Grade)
	assert.Equal(t, vacancy.RoleBackend, got[1].Role, "falls back to the searched role")
	assert.Equal(t, vacancy.Undefined, got[1].Grade)
	assert.Equal(t, vacancy.Undefined, got[2].Role)
	assert.Equal(t, vacancy.Undefined, rows[0].Role, "input must not be mutated")
}

func TestApplyIsDeterministic(t *testing.T) {
	t.Parallel()

	c := MustDefault()
	rows := []vacancy.NormalizedRow{{Title: "Lead DevOps"}, {Title: "Junior iOS"}}
	first := c.Apply(rows, nil)
	second := c.Apply(first, nil)
	assert.Equal(t, first, second)
}

func TestNewRejectsEmptyRules(t *testing.T) {
	t.Parallel()

	_, err := New([]RoleRule{{Label: "x"}}, nil)
	require.Error(t, err)

	_, err = New(nil, []GradeRule{{Label: "x", AnyOf: Term{" "}}})
	require.Error(t, err)
}

func TestCounts(t *testing.T) {
	t.Parallel()

	rows := []vacancy.NormalizedRow{{Grade: "a"}, {Grade: "b"}, {Grade: "a"}}
	got := Counts(rows, func(r vacancy.NormalizedRow) string { return r.Grade })
	assert.Equal(t, map[string]int{"a": 2, "b": 1}, got)
}
