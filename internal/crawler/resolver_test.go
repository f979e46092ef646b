package crawler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/vacancy-crawler/internal/vacancy"
)

func areaTree() []Area {
	return []Area{
		{ID: "113", Name: "Россия", Areas: []Area{
			{ID: "1", ParentID: "113", Name: "Москва"},
			{ID: "2", ParentID: "113", Name: "Санкт-Петербург"},
		}},
		{ID: "40", Name: "Казахстан", Areas: []Area{{ID: "160", ParentID: "40", Name: "Алматы"}}},
		{ID: "999", Name: "Россия", Areas: []Area{{ID: "x", Name: "duplicate"}}},
	}
}

func TestResolveRegions(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{areas: areaTree()}
	regions, err := ResolveRegions(context.Background(), api, "Россия")
	require.NoError(t, err)
	assert.Equal(t, []vacancy.Region{{ID: "1", Name: "Москва"}, {ID: "2", Name: "Санкт-Петербург"}}, regions)
}

func TestResolveRegionsNotFound(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{areas: areaTree()}
	_, err := ResolveRegions(context.Background(), api, "Казахстн")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "country", nf.Kind)
	assert.Equal(t, "Казахстн", nf.Name)
	assert.Equal(t, "Казахстан", nf.Suggestion)
	assert.Contains(t, err.Error(), "did you mean")

	_, err = ResolveRegions(context.Background(), api, "Atlantis")
	require.ErrorAs(t, err, &nf)
	assert.Empty(t, nf.Suggestion)
	assert.Equal(t, `country "Atlantis" not found`, err.Error())
}

func TestResolveSpecialization(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{specs: []SpecNode{
		{ID: "1", Name: "Информационные технологии, интернет, телеком", Specializations: []SpecNode{
			{ID: "1.221", Name: "Программирование, Разработка"},
			{ID: "1.117", Name: "Тестирование"},
		}},
		{ID: "2", Name: "Бухгалтерия"},
	}}

	top, err := ResolveSpecialization(context.Background(), api, "Информационные технологии, интернет, телеком")
	require.NoError(t, err)
	assert.Equal(t, vacancy.Specialization{ID: "1", Name: "Информационные технологии, интернет, телеком"}, top)

	child, err := ResolveSpecialization(context.Background(), api, "Тестирование")
	require.NoError(t, err)
	assert.Equal(t, "1.117", child.ID)

	_, err = ResolveSpecialization(context.Background(), api, "Astronomy")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "specialization", nf.Kind)
}

type failingAPI struct{ *fakeAPI }

func (failingAPI) Areas(context.Context) ([]Area, error) {
	return nil, &TransientFetchError{URL: "/areas", Attempts: 3, Err: errors.New("connection reset")}
}

func TestResolveRegionsFetchFailure(t *testing.T) {
	t.Parallel()

	_, err := ResolveRegions(context.Background(), failingAPI{&fakeAPI{}}, "Россия")
	var tf *TransientFetchError
	require.ErrorAs(t, err, &tf)
	assert.Equal(t, 3, tf.Attempts)
	assert.Contains(t, err.Error(), "fetch areas")
}

func TestRetryPolicy(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(3, 10*time.Millisecond, 40*time.Millisecond)
	tests := []struct {
		name    string
		err     error
		attempt int
		want    bool
	}{
		{name: "nil", err: nil, attempt: 1, want: false},
		{name: "server error", err: &StatusError{StatusCode: 503}, attempt: 1, want: true},
		{name: "too many requests", err: &StatusError{StatusCode: 429}, attempt: 2, want: true},
		{name: "not found", err: &StatusError{StatusCode: 404}, attempt: 1, want: false},
		{name: "exhausted", err: &StatusError{StatusCode: 500}, attempt: 3, want: false},
		{name: "canceled", err: context.Canceled, attempt: 1, want: false},
		{name: "generic", err: errors.New("eof"), attempt: 1, want: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, p.ShouldRetry(tc.err, tc.attempt))
		})
	}

	for attempt := 1; attempt <= 5; attempt++ {
		d := p.Backoff(attempt)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 40*time.Millisecond)
	}
	assert.Equal(t, 3, p.MaxAttempts())
	assert.Equal(t, 3, NewExponentialRetryPolicy(0, 0, 0).MaxAttempts())
}

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	inner := &StatusError{StatusCode: 502}
	err := &TransientFetchError{URL: "https://api/x", StatusCode: 502, Attempts: 3, Err: inner}
	assert.Equal(t, "fetch https://api/x: status 502 after 3 attempts: unexpected status 502", err.Error())
	assert.ErrorIs(t, err, inner)
}
