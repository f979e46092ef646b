package crawler

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/vacancy-crawler/internal/progress"
	"github.com/JakeFAU/vacancy-crawler/internal/vacancy"
)

type fakeAPI struct {
	areas []Area
	specs []SpecNode
	// found maps "tag|area" to the total number of results.
	found map[string]int
	// failSearch maps "tag|area|page" (page -1 for the count query) to true.
	failSearch map[string]bool
	failDetail map[string]bool
	jitter     bool
	onSearch   func(q SearchQuery)

	mu       sync.Mutex
	inFlight int
	peak     int
}

func (f *fakeAPI) Areas(context.Context) ([]Area, error) { return f.areas, nil }

func (f *fakeAPI) Specializations(context.Context) ([]SpecNode, error) { return f.specs, nil }

func (f *fakeAPI) enter() func() {
	f.mu.Lock()
	f.inFlight++
	f.peak = max(f.peak, f.inFlight)
	f.mu.Unlock()
	if f.jitter {
		time.Sleep(time.Duration(rand.IntN(3)) * time.Millisecond)
	}
	return func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}
}

func (f *fakeAPI) Search(ctx context.Context, q SearchQuery) (SearchPage, error) {
	defer f.enter()()
	if f.onSearch != nil {
		f.onSearch(q)
	}
	if err := ctx.Err(); err != nil {
		return SearchPage{}, err
	}
	key := q.Text + "|" + q.AreaID
	page := q.Page
	if q.PerPage == 1 {
		page = -1
	}
	if f.failSearch[fmt.Sprintf("%s|%d", key, page)] {
		return SearchPage{}, &TransientFetchError{URL: key, StatusCode: 503, Attempts: 3, Err: &StatusError{StatusCode: 503}}
	}
	found := f.found[key]
	if q.PerPage == 1 {
		return SearchPage{Found: found, PerPage: 1}, nil
	}
	first := q.Page * q.PerPage
	n := max(0, min(q.PerPage, found-first))
	items := make([]vacancy.RawListing, n)
	for i := range n {
		items[i] = vacancy.RawListing{ID: fmt.Sprintf("%s/%s/%d", q.Text, q.AreaID, first+i), Name: "listing"}
	}
	return SearchPage{Found: found, Page: q.Page, PerPage: q.PerPage, Items: items}, nil
}

func (f *fakeAPI) Vacancy(ctx context.Context, id string) (vacancy.Detail, error) {
	defer f.enter()()
	if err := ctx.Err(); err != nil {
		return vacancy.Detail{}, err
	}
	if f.failDetail[id] {
		return vacancy.Detail{}, errors.New("detail unavailable")
	}
	return vacancy.Detail{ID: id, Description: "about " + id}, nil
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recordingEmitter) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) stages() map[progress.Stage]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[progress.Stage]int)
	for _, e := range r.events {
		out[e.Stage]++
	}
	return out
}

func ids(listings []vacancy.RawListing) []string {
	out := make([]string, len(listings))
	for i, l := range listings {
		out[i] = l.ID
	}
	return out
}

func TestCrawlTestland(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{found: map[string]int{"qa|10": 150}}
	emitter := &recordingEmitter{}
	c := New(api, Config{PageSize: 100, Concurrency: 4}, WithEmitter(emitter))

	res, err := c.Crawl(context.Background(), "1.221",
		[]vacancy.Region{{ID: "10", Name: "Testville"}},
		[]vacancy.RoleQuery{{Name: vacancy.RoleQA, SearchTag: "qa"}},
	)
	require.NoError(t, err)
	require.Len(t, res.Listings, 150)
	assert.Equal(t, 2, res.Stats.PagesPlanned)
	assert.Equal(t, 2, res.Stats.PagesFetched)
	assert.Equal(t, 150, res.Stats.Listings)

	for i, l := range res.Listings {
		assert.Equal(t, fmt.Sprintf("qa/10/%d", i), l.ID)
		assert.True(t, l.Enriched)
		require.NotNil(t, l.Description)
		assert.Equal(t, "about "+l.ID, *l.Description)
		assert.Equal(t, "Testville", l.Region)
		assert.Equal(t, vacancy.RoleQA, l.QueryRole)
	}

	stages := emitter.stages()
	assert.Equal(t, 1, stages[progress.StageRunStart])
	assert.Equal(t, 1, stages[progress.StagePairCounted])
	assert.Equal(t, 2, stages[progress.StagePageDone])
	assert.Equal(t, 1, stages[progress.StageRunDone])
	for _, evt := range emitter.events {
		require.NoError(t, evt.Validate())
	}
}

func TestCrawlPreservesOrderUnderConcurrency(t *testing.T) {
	t.Parallel()

	roles := []vacancy.RoleQuery{
		{Name: vacancy.RoleBackend, SearchTag: "back end"},
		{Name: vacancy.RoleFrontend, SearchTag: "front end"},
	}
	regions := []vacancy.Region{{ID: "1", Name: "A"}, {ID: "2", Name: "B"}, {ID: "3", Name: "C"}}
	found := map[string]int{}
	var want []string
	for ri, role := range roles {
		for gi, region := range regions {
			n := 7*ri + 5*gi + 3
			found[role.SearchTag+"|"+region.ID] = n
			for i := range n {
				want = append(want, fmt.Sprintf("%s/%s/%d", role.SearchTag, region.ID, i))
			}
		}
	}

	api := &fakeAPI{found: found, jitter: true}
	c := New(api, Config{PageSize: 2, MaxResults: 1000, Concurrency: 6})
	res, err := c.Crawl(context.Background(), "1.221", regions, roles)
	require.NoError(t, err)
	assert.Equal(t, want, ids(res.Listings))
	assert.LessOrEqual(t, api.peak, 6, "in-flight calls exceed the worker bound")
}

func TestCrawlRecoversFailures(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		found: map[string]int{"qa|1": 5, "qa|2": 4},
		failSearch: map[string]bool{
			"qa|1|1":  true,
			"qa|2|-1": true,
		},
		failDetail: map[string]bool{"qa/1/0": true},
	}
	c := New(api, Config{PageSize: 2, Concurrency: 2})
	res, err := c.Crawl(context.Background(), "1.221",
		[]vacancy.Region{{ID: "1", Name: "One"}, {ID: "2", Name: "Two"}},
		[]vacancy.RoleQuery{{Name: vacancy.RoleQA, SearchTag: "qa"}},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"qa/1/0", "qa/1/1", "qa/1/4"}, ids(res.Listings))

	first := res.Listings[0]
	assert.False(t, first.Enriched)
	assert.Nil(t, first.Description)
	assert.Equal(t, "One", first.Region)

	assert.Equal(t, 1, res.Stats.CountFailures)
	assert.Equal(t, 1, res.Stats.PageFailures)
	assert.Equal(t, 1, res.Stats.DetailFailures)
	assert.Equal(t, 3, res.Stats.PagesPlanned)
	assert.Equal(t, 2, res.Stats.PagesFetched)
	assert.Zero(t, res.Stats.PagesCancelled)
}

func TestCrawlCapsPagesAtAPIDepth(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{found: map[string]int{"qa|1": 5000}}
	c := New(api, Config{PageSize: 100, MaxResults: 2000, Concurrency: 4})
	res, err := c.Crawl(context.Background(), "1.221",
		[]vacancy.Region{{ID: "1", Name: "One"}},
		[]vacancy.RoleQuery{{Name: vacancy.RoleQA, SearchTag: "qa"}},
	)
	require.NoError(t, err)
	assert.Equal(t, 20, res.Stats.PagesPlanned)
	assert.Len(t, res.Listings, 2000)
}

func TestCrawlCancellationDropsUnfinishedUnits(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := &fakeAPI{
		found: map[string]int{"qa|1": 1000},
		onSearch: func(q SearchQuery) {
			if q.PerPage > 1 && q.Page == 2 {
				cancel()
			}
		},
	}
	c := New(api, Config{PageSize: 100, Concurrency: 1})
	res, err := c.Crawl(ctx, "1.221",
		[]vacancy.Region{{ID: "1", Name: "One"}},
		[]vacancy.RoleQuery{{Name: vacancy.RoleQA, SearchTag: "qa"}},
	)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, res.Listings, 200)
	for i, l := range res.Listings {
		assert.Equal(t, fmt.Sprintf("qa/1/%d", i), l.ID)
		assert.True(t, l.Enriched, "listing %s returned half-enriched", l.ID)
	}
	assert.Equal(t, 8, res.Stats.PagesCancelled)
	assert.Equal(t, 2, res.Stats.PagesFetched)
}

func TestCrawlEmptyInputs(t *testing.T) {
	t.Parallel()

	c := New(&fakeAPI{}, Config{})
	res, err := c.Crawl(context.Background(), "1.221", nil, vacancy.DefaultRoles)
	require.NoError(t, err)
	assert.Empty(t, res.Listings)
	assert.Zero(t, res.Stats.Pairs)
}
