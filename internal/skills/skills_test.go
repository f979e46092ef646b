package skills

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JakeFAU/vacancy-crawler/internal/vacancy"
)

func TestAbbreviations(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"SQL", "CI_CD", "ООП"}, Abbreviations("Python SQL, CI_CD S3 ООП Git"))
	assert.Empty(t, Abbreviations("python _ 42"))
}

func TestPhrases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{in: "Python Django REST", want: []string{"Python", "Django", "REST"}},
		{in: "Go Linux", want: []string{"Linux"}},
		{in: "Machine learning Apache Spark", want: []string{"Machine learning", "Apache", "Spark"}},
		{in: "git docker", want: []string{"git docker"}},
		{in: "Работа в команде", want: []string{"Работа в команде"}},
		{in: "", want: nil},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Phrases(tc.in))
		})
	}
}

func TestTopSkills(t *testing.T) {
	t.Parallel()

	rows := []vacancy.NormalizedRow{
		{Role: vacancy.RoleBackend, KeySkillsText: "Python Django SQL"},
		{Role: vacancy.RoleBackend, KeySkillsText: "Python SQL Linux"},
		{Role: vacancy.RoleBackend, KeySkillsText: "Linux Docker"},
		{Role: vacancy.RoleQA, KeySkillsText: "Selenium Python"},
	}

	got := TopSkills(rows, vacancy.RoleBackend, 3)
	assert.Equal(t, []SkillCount{
		{Skill: "SQL", Count: 4},
		{Skill: "Python", Count: 2},
		{Skill: "Linux", Count: 2},
	}, got)

	all := TopSkills(rows, "", 0)
	assert.LessOrEqual(t, len(all), DefaultTopK)
	assert.Equal(t, SkillCount{Skill: "SQL", Count: 4}, all[0])
	assert.Equal(t, SkillCount{Skill: "Python", Count: 3}, all[1])
}

func TestTopSkillsBoundedAndOrdered(t *testing.T) {
	t.Parallel()

	rows := []vacancy.NormalizedRow{{Role: "r", KeySkillsText: "Aaa Bbb Ccc Ddd Eee Aaa Bbb Aaa"}}
	got := TopSkills(rows, "r", 2)
	assert.Len(t, got, 2)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Count, got[i].Count)
	}
	assert.Equal(t, "Aaa", got[0].Skill)
	assert.Empty(t, TopSkills(rows, "other", 5))
}
