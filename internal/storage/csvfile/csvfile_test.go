package csvfile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/vacancy-crawler/internal/vacancy"
)

func TestWriteRead(t *testing.T) {
	t.Parallel()

	rows := []vacancy.NormalizedRow{
		{
			ID:               "1",
			Title:            "go developer, \"senior\"",
			Description:      "line one\nline two",
			KeySkillsText:    "Go PostgreSQL",
			ExperienceBand:   "от 3 до 6 лет",
			Role:             vacancy.RoleBackend,
			Grade:            "senior",
			NormalizedSalary: 261000,
			ScheduleType:     "удаленная работа",
			RegionName:       "Москва",
			EmployerName:     "Acme",
		},
		{ID: "2", Title: "qa", Role: vacancy.Undefined, Grade: vacancy.Undefined},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, rows))
	assert.True(t, strings.HasPrefix(buf.String(), strings.Join(vacancy.Columns, ",")+"\n"))

	got, err := Read(&buf)
	require.NoError(t, err)
	want := []vacancy.NormalizedRow{
		{
			ID:               "1",
			Title:            "go developer, \"senior\"",
			Description:      "line one\nline two",
			KeySkillsText:    "Go PostgreSQL",
			ExperienceBand:   "от 3 до 6 лет",
			QueryRole:        vacancy.RoleBackend,
			Role:             vacancy.Undefined,
			Grade:            vacancy.Undefined,
			NormalizedSalary: 261000,
			ScheduleType:     "удаленная работа",
			RegionName:       "Москва",
			EmployerName:     "Acme",
		},
		{ID: "2", Title: "qa", Role: vacancy.Undefined, Grade: vacancy.Undefined},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestReadReorderedColumns(t *testing.T) {
	t.Parallel()

	in := "title,extra,id,normalizedSalary\nandroid dev,x,9,1500.0\n"
	rows, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "9", rows[0].ID)
	assert.Equal(t, "android dev", rows[0].Title)
	assert.Equal(t, int64(1500), rows[0].NormalizedSalary)
}

func TestReadErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: "empty input"},
		{name: "no id", in: "title\nx\n", want: "missing id column"},
		{name: "bad salary", in: "id,normalizedSalary\n1,lots\n", want: "line 2: column normalizedSalary"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Read(strings.NewReader(tc.in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rows.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,title\n5,devops\n"), 0o600))
	rows, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "devops", rows[0].Title)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}
