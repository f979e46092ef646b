package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/vacancy-crawler/internal/api"
	"github.com/JakeFAU/vacancy-crawler/internal/app"
	"github.com/JakeFAU/vacancy-crawler/internal/classify"
	"github.com/JakeFAU/vacancy-crawler/internal/config"
	"github.com/JakeFAU/vacancy-crawler/internal/pipeline"
	"github.com/JakeFAU/vacancy-crawler/internal/report"
	"github.com/JakeFAU/vacancy-crawler/internal/skills"
	"github.com/JakeFAU/vacancy-crawler/internal/vacancy"
)

const shutdownTimeout = 10 * time.Second

// newCrawlCmd creates the 'crawl' subcommand.
func newCrawlCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Crawl, normalize, classify, and store job listings",
		Long: `Resolves the configured country and specialization, crawls every
(role, region) pair, normalizes and deduplicates the listings, assigns roles
and grades, and writes the rows to every configured output. Interrupting a
crawl keeps the pages finished so far.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, *cfgFile)
		},
	}
}

func runCrawl(cmd *cobra.Command, cfgFile string) (err error) {
	cfg, logger, err := setup(cfgFile)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if err := cfg.ValidateRates(); err != nil {
		return err
	}

	ctx := cmd.Context()
	services, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init services: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		err = errors.Join(err, services.Close(closeCtx))
	}()

	if cfg.Server.MetricsAddr != "" {
		stop, err := startStatusServer(ctx, cfg.Server.MetricsAddr, services, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	runner := pipeline.New(services.API,
		pipeline.WithSink(services.Sinks),
		pipeline.WithEmitter(services.Hub),
		pipeline.WithLogger(logger),
	)
	res, crawlErr := runner.Crawl(ctx, crawlOptions(cfg))
	if res.Analysis.Rows == nil && crawlErr != nil {
		return crawlErr
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Specialization %q (%s), %d regions\n", res.Specialization.Name, res.Specialization.ID, len(res.Regions))
	report.Crawl(out, res.Crawl)
	report.Normalization(out, res.Normalization)
	fmt.Fprintf(out, "%d duplicate listings dropped\n", res.Duplicates)
	printAnalysis(out, res.Analysis, cfg.RoleQueries(), cfg.Skills.TopK)
	for _, export := range services.Exports {
		if uri := export.URI(); uri != "" {
			fmt.Fprintf(out, "Rows exported to %s\n", uri)
		}
	}
	if crawlErr != nil {
		return crawlErr
	}
	return res.Analysis.ModelErr
}

func crawlOptions(cfg config.Config) pipeline.Options {
	return pipeline.Options{
		Country:        cfg.Country().SearchTag,
		Specialization: cfg.Crawler.Specialization,
		Roles:          cfg.RoleQueries(),
		Crawler:        cfg.CrawlerConfig(),
		Rates:          cfg.Rates(),
		Train:          cfg.TrainConfig(),
	}
}

// startStatusServer serves health, metrics, and run progress on addr until
// the returned stop function is called.
func startStatusServer(ctx context.Context, addr string, services *app.App, logger *zap.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	serveCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	srv := api.NewServer(services.Runs, logger)
	go func() {
		defer close(done)
		logger.Info("status server listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(serveCtx, ln); err != nil {
			logger.Error("status server failed", zap.Error(err))
		}
	}()
	return func() {
		cancel()
		<-done
	}, nil
}

// printAnalysis renders the label distributions, the model evaluation, and
// the top skills of every role.
func printAnalysis(out io.Writer, a pipeline.Analysis, roles []vacancy.RoleQuery, topK int) {
	report.Distribution(out, "Roles", classify.Counts(a.Rows, func(r vacancy.NormalizedRow) string { return r.Role }))
	report.Distribution(out, "Grades", classify.Counts(a.Rows, func(r vacancy.NormalizedRow) string { return r.Grade }))
	if a.ModelErr != nil {
		fmt.Fprintf(out, "Grade model not trained: %v; unmatched rows keep grade %q\n", a.ModelErr, vacancy.Undefined)
	} else {
		report.Model(out, a.Model, a.Predicted)
	}
	for _, role := range roles {
		top := skills.TopSkills(a.Rows, role.Name, topK)
		if len(top) == 0 {
			continue
		}
		report.Skills(out, role.Name, top)
	}
}
