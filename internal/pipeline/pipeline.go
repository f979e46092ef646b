// Package pipeline runs a crawl end to end: resolution, crawling,
// normalization, classification and persistence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/vacancy-crawler/internal/classify"
	"github.com/JakeFAU/vacancy-crawler/internal/crawler"
	"github.com/JakeFAU/vacancy-crawler/internal/grade"
	"github.com/JakeFAU/vacancy-crawler/internal/normalize"
	"github.com/JakeFAU/vacancy-crawler/internal/progress"
	"github.com/JakeFAU/vacancy-crawler/internal/storage"
	"github.com/JakeFAU/vacancy-crawler/internal/textnorm"
	"github.com/JakeFAU/vacancy-crawler/internal/vacancy"
)

// writeTimeout bounds the final write of an interrupted crawl.
const writeTimeout = 30 * time.Second

// Options describe one crawl.
type Options struct {
	// Country is the API-side name of the country to crawl.
	Country        string
	Specialization string
	Roles          []vacancy.RoleQuery
	Crawler        crawler.Config
	Rates          normalize.Rates
	Train          grade.TrainConfig
}

// Result summarizes a crawl.
type Result struct {
	Specialization vacancy.Specialization
	Regions        []vacancy.Region
	Crawl          crawler.Stats
	Normalization  normalize.Summary
	Duplicates     int
	Analysis       Analysis
}

// Analysis is the outcome of classifying a set of rows.
type Analysis struct {
	Rows      []vacancy.NormalizedRow
	Model     grade.Report
	Predicted int
	// ModelErr is set when the grade model could not be trained. Rows keep
	// their keyword grades in that case.
	ModelErr error
}

// Runner wires the crawl stages together.
type Runner struct {
	api        crawler.API
	sink       storage.RowSink
	emitter    progress.Emitter
	logger     *zap.Logger
	text       *textnorm.Normalizer
	classifier *classify.Classifier
}

// Option customizes a Runner.
type Option func(*Runner)

// WithSink persists the final rows to sink.
func WithSink(sink storage.RowSink) Option {
	return func(r *Runner) { r.sink = sink }
}

// WithEmitter reports crawl progress to e.
func WithEmitter(e progress.Emitter) Option {
	return func(r *Runner) { r.emitter = e }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithClassifier replaces the default keyword rules.
func WithClassifier(c *classify.Classifier) Option {
	return func(r *Runner) { r.classifier = c }
}

// New builds a Runner over api.
func New(api crawler.API, opts ...Option) *Runner {
	r := &Runner{
		api:     api,
		emitter: progress.Nop{},
		logger:  zap.NewNop(),
		text:    textnorm.New(nil),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.emitter == nil {
		r.emitter = progress.Nop{}
	}
	if r.classifier == nil {
		r.classifier = classify.MustDefault()
	}
	return r
}

// Crawl runs every stage for opts. Resolution and sink failures are
// returned as errors. When ctx ends mid-crawl the listings collected so far
// are still analyzed and written, and the interruption is returned.
func (r *Runner) Crawl(ctx context.Context, opts Options) (Result, error) {
	var res Result

	regions, err := crawler.ResolveRegions(ctx, r.api, opts.Country)
	if err != nil {
		return res, fmt.Errorf("resolve regions: %w", err)
	}
	res.Regions = regions
	spec, err := crawler.ResolveSpecialization(ctx, r.api, opts.Specialization)
	if err != nil {
		return res, fmt.Errorf("resolve specialization: %w", err)
	}
	res.Specialization = spec
	r.logger.Info("resolved crawl scope",
		zap.String("country", opts.Country),
		zap.Int("regions", len(regions)),
		zap.String("specialization_id", spec.ID),
		zap.Int("roles", len(opts.Roles)),
	)

	c := crawler.New(r.api, opts.Crawler,
		crawler.WithEmitter(r.emitter),
		crawler.WithLogger(r.logger.Named("crawler")),
	)
	crawled, crawlErr := c.Crawl(ctx, spec.ID, regions, opts.Roles)
	res.Crawl = crawled.Stats
	if crawlErr != nil && !errors.Is(crawlErr, context.Canceled) && !errors.Is(crawlErr, context.DeadlineExceeded) {
		return res, crawlErr
	}

	listings, dupes := Dedupe(crawled.Listings)
	res.Duplicates = dupes
	norm := normalize.New(opts.Rates, r.logger.Named("normalize"))
	res.Normalization = norm.NormalizeAll(listings)
	res.Analysis = Analyze(res.Normalization.Rows, r.classifier, r.text, opts.Train, r.logger)

	writeCtx := ctx
	if crawlErr != nil {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
		defer cancel()
	}
	if err := r.write(writeCtx, res.Analysis.Rows); err != nil {
		return res, err
	}
	return res, crawlErr
}

func (r *Runner) write(ctx context.Context, rows []vacancy.NormalizedRow) error {
	if r.sink == nil {
		return nil
	}
	if err := r.sink.WriteRows(ctx, rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	r.logger.Info("rows written", zap.Int("rows", len(rows)))
	return nil
}

// Analyze assigns keyword roles and grades, then trains the grade model on
// the keyword-graded rows and predicts the rest. A model that cannot be
// trained is reported in ModelErr.
func Analyze(rows []vacancy.NormalizedRow, c *classify.Classifier, tn *textnorm.Normalizer, cfg grade.TrainConfig, logger *zap.Logger) Analysis {
	if logger == nil {
		logger = zap.NewNop()
	}
	out := Analysis{Rows: c.Apply(rows, tn)}
	model, report, err := grade.Train(out.Rows, tn, cfg)
	if err != nil {
		logger.Warn("grade model not trained", zap.Int("rows", len(rows)), zap.Error(err))
		out.ModelErr = fmt.Errorf("train grade model: %w", err)
		return out
	}
	out.Model = report
	out.Rows, out.Predicted = grade.Apply(model, out.Rows, tn)
	logger.Info("grade model applied",
		zap.Int("labeled", report.Labeled),
		zap.Float64("test_f1", report.TestF1),
		zap.Int("predicted", out.Predicted),
	)
	return out
}

// Dedupe drops listings whose ID was already seen, keeping the first
// occurrence, and returns the number dropped.
func Dedupe(listings []vacancy.RawListing) ([]vacancy.RawListing, int) {
	seen := make(map[string]struct{}, len(listings))
	out := make([]vacancy.RawListing, 0, len(listings))
	for _, l := range listings {
		if _, ok := seen[l.ID]; ok {
			continue
		}
		seen[l.ID] = struct{}{}
		out = append(out, l)
	}
	return out, len(listings) - len(out)
}
