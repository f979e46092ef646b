package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/vacancy-crawler/internal/classify"
	"github.com/JakeFAU/vacancy-crawler/internal/crawler"
	"github.com/JakeFAU/vacancy-crawler/internal/grade"
	"github.com/JakeFAU/vacancy-crawler/internal/normalize"
	"github.com/JakeFAU/vacancy-crawler/internal/pipeline"
	"github.com/JakeFAU/vacancy-crawler/internal/storage"
	"github.com/JakeFAU/vacancy-crawler/internal/storage/csvfile"
	"github.com/JakeFAU/vacancy-crawler/internal/storage/memory"
	"github.com/JakeFAU/vacancy-crawler/internal/textnorm"
	"github.com/JakeFAU/vacancy-crawler/internal/vacancy"
)

// fakeAPI serves the same titles in every region. The first listing of each
// region shares one ID so the pipeline sees a duplicate.
type fakeAPI struct {
	titles   []string
	onSearch func(q crawler.SearchQuery)
}

func (f *fakeAPI) Areas(context.Context) ([]crawler.Area, error) {
	return []crawler.Area{{ID: "100", Name: "Testland", Areas: []crawler.Area{
		{ID: "1", ParentID: "100", Name: "A"},
		{ID: "2", ParentID: "100", Name: "B"},
	}}}, nil
}

func (f *fakeAPI) Specializations(context.Context) ([]crawler.SpecNode, error) {
	return []crawler.SpecNode{{ID: "1", Name: "IT", Specializations: []crawler.SpecNode{
		{ID: "1.221", Name: "Programming"},
	}}}, nil
}

func (f *fakeAPI) Search(_ context.Context, q crawler.SearchQuery) (crawler.SearchPage, error) {
	if f.onSearch != nil {
		f.onSearch(q)
	}
	found := len(f.titles)
	if q.PerPage == 1 {
		return crawler.SearchPage{Found: found, PerPage: 1}, nil
	}
	first := q.Page * q.PerPage
	var items []vacancy.RawListing
	for i := first; i < min(found, first+q.PerPage); i++ {
		id := fmt.Sprintf("%s-%d", q.AreaID, i)
		if i == 0 {
			id = "shared"
		}
		salary, gross := 100000.0, true
		items = append(items, vacancy.RawListing{
			ID:       id,
			Name:     f.titles[i],
			Area:     &vacancy.NamedRef{ID: q.AreaID, Name: "area " + q.AreaID},
			Employer: &vacancy.NamedRef{Name: "Acme"},
			Schedule: &vacancy.NamedRef{ID: "remote", Name: "Удаленная работа"},
			Salary:   &vacancy.Salary{From: &salary, Currency: "RUR", Gross: &gross},
		})
	}
	return crawler.SearchPage{Found: found, Page: q.Page, PerPage: q.PerPage, Items: items}, nil
}

func (f *fakeAPI) Vacancy(_ context.Context, id string) (vacancy.Detail, error) {
	return vacancy.Detail{
		ID:          id,
		Description: "<p>We use <b>Go</b> and Kubernetes</p>",
		Experience:  &vacancy.NamedRef{ID: "between1And3", Name: "От 1 года до 3 лет"},
		KeySkills:   []vacancy.Skill{{Name: "Go"}, {Name: "PostgreSQL"}},
	}, nil
}

func titles() []string {
	return []string{
		"Senior Go developer",
		"Senior Go developer",
		"Senior Go developer",
		"Senior Go developer",
		"Junior Go developer",
		"Junior Go developer",
		"Go developer",
		"Go developer",
	}
}

func options() pipeline.Options {
	return pipeline.Options{
		Country:        "Testland",
		Specialization: "Programming",
		Roles:          []vacancy.RoleQuery{{Name: vacancy.RoleBackend, SearchTag: "back end"}},
		Crawler:        crawler.Config{PageSize: 3, MaxResults: 2000, Concurrency: 2},
		Rates:          normalize.Rates{USD: 90, EUR: 100, Tax: 0.13},
		Train:          grade.TrainConfig{MinDocFreq: 1, TestFraction: 0.25, Folds: 3, Seed: 42},
	}
}

func exportedRows(t *testing.T, store *memory.BlobStore) []vacancy.NormalizedRow {
	t.Helper()
	data, ok := store.Get("out/vacancies.csv")
	require.True(t, ok, "export was not written")
	rows, err := csvfile.Read(bytes.NewReader(data))
	require.NoError(t, err)
	return rows
}

func TestRunnerCrawl(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	export, err := storage.NewExport(store, "out/vacancies.csv")
	require.NoError(t, err)

	r := pipeline.New(&fakeAPI{titles: titles()}, pipeline.WithSink(export))
	res, err := r.Crawl(context.Background(), options())
	require.NoError(t, err)

	assert.Equal(t, vacancy.Specialization{ID: "1.221", Name: "Programming"}, res.Specialization)
	assert.Len(t, res.Regions, 2)
	assert.Equal(t, 16, res.Crawl.Listings)
	assert.Equal(t, 1, res.Duplicates)
	require.Len(t, res.Analysis.Rows, 15)
	require.NoError(t, res.Analysis.ModelErr)
	assert.Equal(t, 11, res.Analysis.Model.Labeled)
	assert.Equal(t, 4, res.Analysis.Predicted)

	for _, row := range res.Analysis.Rows {
		assert.NotEqual(t, vacancy.Undefined, row.Grade, "row %s left ungraded", row.ID)
		assert.Equal(t, vacancy.RoleBackend, row.Role, "role falls back to the query role")
		assert.Equal(t, int64(87000), row.NormalizedSalary)
		assert.Equal(t, "We use Go and Kubernetes", row.Description)
	}
	assert.Equal(t, "shared", res.Analysis.Rows[0].ID)
	assert.Equal(t, "A", res.Analysis.Rows[0].RegionName, "the searched region wins over the listing area")
	assert.Zero(t, res.Normalization.Issues)

	exported := exportedRows(t, store)
	require.Len(t, exported, 15)
	assert.Equal(t, res.Analysis.Rows[0].ID, exported[0].ID)
	assert.Equal(t, vacancy.GradeSenior, exported[0].Grade)
}

func TestRunnerCrawlUnknownCountry(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	export, err := storage.NewExport(store, "out/vacancies.csv")
	require.NoError(t, err)

	opts := options()
	opts.Country = "Testlandia"
	_, err = pipeline.New(&fakeAPI{titles: titles()}, pipeline.WithSink(export)).Crawl(context.Background(), opts)

	var nf *crawler.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "country", nf.Kind)
	assert.Equal(t, "Testland", nf.Suggestion)
	_, written := store.Get("out/vacancies.csv")
	assert.False(t, written)
}

func TestRunnerCrawlUnknownSpecialization(t *testing.T) {
	t.Parallel()

	opts := options()
	opts.Specialization = "Astronomy"
	_, err := pipeline.New(&fakeAPI{titles: titles()}).Crawl(context.Background(), opts)

	var nf *crawler.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "specialization", nf.Kind)
}

func TestRunnerCrawlWithoutLabeledRows(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	export, err := storage.NewExport(store, "out/vacancies.csv")
	require.NoError(t, err)

	api := &fakeAPI{titles: []string{"Go developer", "Backend developer"}}
	res, err := pipeline.New(api, pipeline.WithSink(export)).Crawl(context.Background(), options())
	require.NoError(t, err)

	require.ErrorIs(t, res.Analysis.ModelErr, grade.ErrInsufficientTrainingData)
	assert.Zero(t, res.Analysis.Predicted)
	for _, row := range exportedRows(t, store) {
		assert.Equal(t, vacancy.Undefined, row.Grade)
	}
}

func TestRunnerCrawlInterruptedWritesCompletedPages(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := &fakeAPI{
		titles: titles(),
		onSearch: func(q crawler.SearchQuery) {
			if q.AreaID == "2" && q.PerPage > 1 {
				cancel()
			}
		},
	}
	store := memory.NewBlobStore()
	export, err := storage.NewExport(store, "out/vacancies.csv")
	require.NoError(t, err)

	opts := options()
	opts.Crawler.Concurrency = 1
	res, err := pipeline.New(api, pipeline.WithSink(export)).Crawl(ctx, opts)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 8, res.Crawl.Listings)
	assert.Len(t, exportedRows(t, store), 8)
}

type failingSink struct{}

func (failingSink) WriteRows(context.Context, []vacancy.NormalizedRow) error {
	return errors.New("disk full")
}

func (failingSink) Close() error { return nil }

func TestRunnerCrawlSinkFailure(t *testing.T) {
	t.Parallel()

	_, err := pipeline.New(&fakeAPI{titles: titles()}, pipeline.WithSink(failingSink{})).Crawl(context.Background(), options())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write rows: disk full")
}

func TestAnalyze(t *testing.T) {
	t.Parallel()

	rows := []vacancy.NormalizedRow{
		{ID: "1", Title: "Senior QA engineer", Role: vacancy.Undefined, Grade: vacancy.Undefined},
		{ID: "2", Title: "Тестировщик", Role: vacancy.Undefined, Grade: vacancy.Undefined},
		{ID: "3", Title: "Go developer", QueryRole: vacancy.RoleBackend, Role: vacancy.Undefined, Grade: vacancy.Undefined},
	}
	cfg := grade.TrainConfig{MinDocFreq: 1, TestFraction: 0.25, Folds: 2, Seed: 42}
	got := pipeline.Analyze(rows, classify.MustDefault(), textnorm.New(nil), cfg, nil)

	require.NoError(t, got.ModelErr)
	require.Len(t, got.Rows, 3)
	assert.Equal(t, vacancy.RoleQA, got.Rows[0].Role)
	assert.Equal(t, vacancy.GradeSenior, got.Rows[0].Grade)
	assert.Equal(t, vacancy.RoleQA, got.Rows[1].Role)
	assert.Equal(t, vacancy.RoleBackend, got.Rows[2].Role)
	assert.Equal(t, 2, got.Predicted)
	assert.Equal(t, vacancy.Undefined, rows[0].Grade, "input rows are not modified")
}

func TestDedupe(t *testing.T) {
	t.Parallel()

	in := []vacancy.RawListing{
		{ID: "1", Region: "A"},
		{ID: "2", Region: "A"},
		{ID: "1", Region: "B"},
		{ID: "3", Region: "B"},
	}
	out, dropped := pipeline.Dedupe(in)
	assert.Equal(t, 1, dropped)
	require.Len(t, out, 3)
	assert.Equal(t, "A", out[0].Region)
	assert.Equal(t, []string{"1", "2", "3"}, []string{out[0].ID, out[1].ID, out[2].ID})
}
