package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	iduuid "github.com/JakeFAU/vacancy-crawler/internal/id/uuid"
	"github.com/JakeFAU/vacancy-crawler/internal/metrics"
	"github.com/JakeFAU/vacancy-crawler/internal/progress"
	"github.com/JakeFAU/vacancy-crawler/internal/vacancy"
)

// Crawler walks search results for every (role, region) pair.
type Crawler struct {
	api     API
	cfg     Config
	emitter progress.Emitter
	ids     IDGenerator
	clock   Clock
	logger  *zap.Logger
}

// Option customizes a Crawler.
type Option func(*Crawler)

// WithEmitter reports progress events to e.
func WithEmitter(e progress.Emitter) Option {
	return func(c *Crawler) { c.emitter = e }
}

// WithIDGenerator overrides the run ID source.
func WithIDGenerator(ids IDGenerator) Option {
	return func(c *Crawler) { c.ids = ids }
}

// WithClock overrides the event clock.
func WithClock(clock Clock) Option {
	return func(c *Crawler) { c.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Crawler) { c.logger = logger }
}

// New builds a Crawler. Zero Config fields take DefaultConfig values.
func New(api API, cfg Config, opts ...Option) *Crawler {
	c := &Crawler{
		api:     api,
		cfg:     cfg.withDefaults(),
		emitter: progress.Nop{},
		ids:     iduuid.New(),
		clock:   systemClock{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.emitter == nil {
		c.emitter = progress.Nop{}
	}
	return c
}

type pair struct {
	role   vacancy.RoleQuery
	region vacancy.Region
	pages  int
}

type unit struct {
	pair int
	page int
}

type unitResult struct {
	listings []vacancy.RawListing
	done     bool
}

type run struct {
	*Crawler
	id     [16]byte
	specID string
	sem    *semaphore.Weighted

	mu    sync.Mutex
	stats Stats
}

// Crawl collects every listing of specID for the given roles and regions.
// Listings are ordered by role, then region, then page, then position on
// the page. Failed count and page queries contribute nothing; failed detail
// calls keep the listing without detail fields. Both are counted in the
// returned stats. When ctx ends, units that had not finished are dropped
// whole and the listings of finished units are returned with ctx's error.
func (c *Crawler) Crawl(ctx context.Context, specID string, regions []vacancy.Region, roles []vacancy.RoleQuery) (Result, error) {
	runID, err := c.ids.NewRawID()
	if err != nil {
		return Result{}, fmt.Errorf("crawl: %w", err)
	}
	r := &run{
		Crawler: c,
		id:      progress.UUIDToBytes(runID),
		specID:  specID,
		sem:     semaphore.NewWeighted(int64(c.cfg.Concurrency)),
	}
	start := c.clock.Now()
	c.logger.Info("crawl started",
		zap.Stringer("run_id", runID),
		zap.Int("roles", len(roles)),
		zap.Int("regions", len(regions)),
		zap.Int("concurrency", c.cfg.Concurrency),
	)
	r.emit(progress.Event{Stage: progress.StageRunStart})

	pairs := make([]pair, 0, len(roles)*len(regions))
	for _, role := range roles {
		for _, region := range regions {
			pairs = append(pairs, pair{role: role, region: region})
		}
	}
	r.stats.Pairs = len(pairs)
	r.countPages(ctx, pairs)

	var units []unit
	for i, p := range pairs {
		for page := range p.pages {
			units = append(units, unit{pair: i, page: page})
		}
	}
	r.stats.PagesPlanned = len(units)
	results := r.crawlUnits(ctx, pairs, units)

	var listings []vacancy.RawListing
	for _, res := range results {
		if !res.done {
			r.stats.PagesCancelled++
			continue
		}
		listings = append(listings, res.listings...)
	}
	r.stats.Listings = len(listings)

	out := Result{Listings: listings, Stats: r.stats}
	elapsed := c.clock.Now().Sub(start)
	if err := ctx.Err(); err != nil {
		r.emit(progress.Event{Stage: progress.StageRunError, Dur: elapsed, Note: err.Error()})
		c.logger.Warn("crawl interrupted",
			zap.Stringer("run_id", runID),
			zap.Int("listings", len(listings)),
			zap.Int("pages_cancelled", out.Stats.PagesCancelled),
			zap.Error(err),
		)
		return out, fmt.Errorf("crawl interrupted: %w", err)
	}
	r.emit(progress.Event{Stage: progress.StageRunDone, Dur: elapsed})
	c.logger.Info("crawl finished",
		zap.Stringer("run_id", runID),
		zap.Int("listings", len(listings)),
		zap.Int("page_failures", out.Stats.PageFailures),
		zap.Int("detail_failures", out.Stats.DetailFailures),
		zap.Duration("elapsed", elapsed),
	)
	return out, nil
}

// countPages fills pairs[i].pages from a one-item count query per pair.
func (r *run) countPages(ctx context.Context, pairs []pair) {
	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	maxPages := r.cfg.MaxResults / r.cfg.PageSize
	for i := range pairs {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			p := &pairs[i]
			page, err := r.search(ctx, p.role, p.region, 0, 1)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.count(func(s *Stats) { s.CountFailures++ })
				r.logger.Warn("count query failed",
					zap.String("role", p.role.Name),
					zap.String("region", p.region.Name),
					zap.Error(err),
				)
				r.emit(progress.Event{Stage: progress.StagePageFailed, Role: p.role.Name, Region: p.region.Name, Note: err.Error()})
				return nil
			}
			p.pages = min((page.Found+r.cfg.PageSize-1)/r.cfg.PageSize, maxPages)
			r.emit(progress.Event{Stage: progress.StagePairCounted, Role: p.role.Name, Region: p.region.Name, Page: p.pages})
			return nil
		})
	}
	_ = g.Wait()
}

// crawlUnits fetches every page unit and returns results indexed like units.
func (r *run) crawlUnits(ctx context.Context, pairs []pair, units []unit) []unitResult {
	results := make([]unitResult, len(units))
	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for i, u := range units {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			listings, ok := r.crawlPage(ctx, pairs[u.pair], u.page)
			if !ok || ctx.Err() != nil {
				return nil
			}
			results[i] = unitResult{listings: listings, done: true}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// crawlPage fetches one page and the detail record of each of its items.
func (r *run) crawlPage(ctx context.Context, p pair, pageIdx int) ([]vacancy.RawListing, bool) {
	start := r.clock.Now()
	page, err := r.search(ctx, p.role, p.region, pageIdx, r.cfg.PageSize)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false
		}
		r.count(func(s *Stats) { s.PageFailures++ })
		r.logger.Warn("page query failed",
			zap.String("role", p.role.Name),
			zap.String("region", p.region.Name),
			zap.Int("page", pageIdx),
			zap.Error(err),
		)
		r.emit(progress.Event{Stage: progress.StagePageFailed, Role: p.role.Name, Region: p.region.Name, Page: pageIdx, Note: err.Error()})
		return nil, true
	}

	listings := make([]vacancy.RawListing, len(page.Items))
	var failures int
	var mu sync.Mutex
	var g errgroup.Group
	for j, item := range page.Items {
		g.Go(func() error {
			detail, err := r.detail(ctx, item.ID)
			if err != nil {
				listings[j] = item.Enrich(nil, p.region.Name, p.role.Name)
				if ctx.Err() == nil {
					mu.Lock()
					failures++
					mu.Unlock()
					r.logger.Debug("detail fetch failed", zap.String("id", item.ID), zap.Error(err))
					metrics.ObserveDetailFailure()
				}
				return nil
			}
			listings[j] = item.Enrich(&detail, p.region.Name, p.role.Name)
			return nil
		})
	}
	_ = g.Wait()
	if ctx.Err() != nil {
		return nil, false
	}

	r.count(func(s *Stats) {
		s.PagesFetched++
		s.DetailFailures += failures
	})
	metrics.ObserveListings(p.role.Name, len(listings))
	r.emit(progress.Event{
		Stage:    progress.StagePageDone,
		Role:     p.role.Name,
		Region:   p.region.Name,
		Page:     pageIdx,
		Listings: len(listings),
		Failures: failures,
		Dur:      r.clock.Now().Sub(start),
	})
	return listings, true
}

func (r *run) search(ctx context.Context, role vacancy.RoleQuery, region vacancy.Region, page, perPage int) (SearchPage, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return SearchPage{}, fmt.Errorf("acquire worker slot: %w", err)
	}
	defer r.sem.Release(1)
	return r.api.Search(ctx, SearchQuery{
		Text:           role.SearchTag,
		AreaID:         region.ID,
		Specialization: r.specID,
		Page:           page,
		PerPage:        perPage,
	})
}

func (r *run) detail(ctx context.Context, id string) (vacancy.Detail, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return vacancy.Detail{}, fmt.Errorf("acquire worker slot: %w", err)
	}
	defer r.sem.Release(1)
	return r.api.Vacancy(ctx, id)
}

func (r *run) count(update func(*Stats)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	update(&r.stats)
}

func (r *run) emit(evt progress.Event) {
	evt.RunID = r.id
	evt.TS = r.clock.Now()
	if evt.Dur < 0 {
		evt.Dur = time.Duration(0)
	}
	r.emitter.Emit(evt)
}
