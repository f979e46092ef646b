package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/vacancy-crawler/internal/classify"
	"github.com/JakeFAU/vacancy-crawler/internal/pipeline"
	"github.com/JakeFAU/vacancy-crawler/internal/storage"
	"github.com/JakeFAU/vacancy-crawler/internal/storage/csvfile"
	"github.com/JakeFAU/vacancy-crawler/internal/storage/local"
	"github.com/JakeFAU/vacancy-crawler/internal/storage/sqlite"
	"github.com/JakeFAU/vacancy-crawler/internal/textnorm"
	"github.com/JakeFAU/vacancy-crawler/internal/vacancy"
)

// newAnalyzeCmd creates the 'analyze' subcommand.
func newAnalyzeCmd(cfgFile *string) *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Reclassify previously exported rows",
		Long: `Reads rows written by an earlier crawl (a CSV export or a SQLite
database), assigns roles and grades again, retrains the grade model, and
prints the distributions and top skills. --output writes the reclassified
rows as CSV.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(*cfgFile)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			rows, err := loadRows(cmd.Context(), input, cfg.Output.PostgresTable)
			if err != nil {
				return err
			}
			analysis := pipeline.Analyze(rows, classify.MustDefault(), textnorm.New(nil), cfg.TrainConfig(), logger)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d rows read from %s\n", len(rows), input)
			printAnalysis(out, analysis, cfg.RoleQueries(), cfg.Skills.TopK)
			if output != "" {
				uri, err := writeCSV(cmd.Context(), output, analysis.Rows)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Rows exported to %s\n", uri)
			}
			return analysis.ModelErr
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "exported rows (.csv, or .db/.sqlite for a SQLite output)")
	cmd.Flags().StringVar(&output, "output", "", "write the reclassified rows to this CSV file")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// loadRows reads rows from a CSV export or a SQLite database. CSV exports
// carry no query role, so the stored role is used as the fallback role.
func loadRows(ctx context.Context, path, table string) ([]vacancy.NormalizedRow, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	var rows []vacancy.NormalizedRow
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		store, err := sqlite.Open(ctx, path, table)
		if err != nil {
			return nil, err
		}
		defer func() { _ = store.Close() }()
		if rows, err = store.Rows(ctx); err != nil {
			return nil, err
		}
	default:
		var err error
		if rows, err = csvfile.ReadFile(path); err != nil {
			return nil, err
		}
	}
	for i := range rows {
		if rows[i].QueryRole == "" && rows[i].Role != vacancy.Undefined {
			rows[i].QueryRole = rows[i].Role
		}
	}
	return rows, nil
}

func writeCSV(ctx context.Context, path string, rows []vacancy.NormalizedRow) (string, error) {
	store, err := local.New(local.Config{BaseDir: filepath.Dir(path)})
	if err != nil {
		return "", fmt.Errorf("init csv export: %w", err)
	}
	export, err := storage.NewExport(store, filepath.Base(path))
	if err != nil {
		return "", err
	}
	if err := export.WriteRows(ctx, rows); err != nil {
		return "", err
	}
	return export.URI(), nil
}
