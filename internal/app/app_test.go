package app_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/JakeFAU/vacancy-crawler/internal/app"
	"github.com/JakeFAU/vacancy-crawler/internal/config"
	collyfetcher "github.com/JakeFAU/vacancy-crawler/internal/fetcher/colly"
	restyfetcher "github.com/JakeFAU/vacancy-crawler/internal/fetcher/resty"
	"github.com/JakeFAU/vacancy-crawler/internal/progress"
	"github.com/JakeFAU/vacancy-crawler/internal/vacancy"
)

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	dir := t.TempDir()
	cfg.Output.CSVPath = filepath.Join(dir, "out", "rows.csv")
	return cfg
}

func newApp(t *testing.T, cfg config.Config, opts ...app.Option) *app.App {
	t.Helper()
	opts = append([]app.Option{app.WithRegisterer(prometheus.NewRegistry())}, opts...)
	a, err := app.New(context.Background(), cfg, zap.NewNop(), opts...)
	require.NoError(t, err)
	return a
}

func TestNewWritesEnabledSinks(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	cfg.Output.SQLitePath = filepath.Join(t.TempDir(), "rows.db")
	a := newApp(t, cfg)

	require.Len(t, a.Sinks, 2)
	require.Len(t, a.Exports, 1)
	require.NotNil(t, a.Hub)
	require.NotNil(t, a.API)

	rows := []vacancy.NormalizedRow{{ID: "1", Title: "Go developer", Role: vacancy.RoleBackend, Grade: vacancy.GradeMiddle}}
	require.NoError(t, a.Sinks.WriteRows(context.Background(), rows))

	data, err := os.ReadFile(cfg.Output.CSVPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Go developer")
	assert.Contains(t, a.Exports[0].URI(), "file://")

	a.Hub.Emit(progress.Event{RunID: [16]byte{1}, Stage: progress.StageRunStart})
	require.NoError(t, a.Close(context.Background()))
}

func TestNewWithoutOutputs(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	cfg.Output.CSVPath = ""
	a := newApp(t, cfg)
	assert.Empty(t, a.Sinks)
	require.NoError(t, a.Sinks.WriteRows(context.Background(), nil))
	require.NoError(t, a.Close(context.Background()))
}

func TestNewGCSExport(t *testing.T) {
	t.Parallel()

	var uploaded string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		uploaded = string(body)
		fmt.Fprintln(w, `{"bucket":"exports","name":"runs/rows.csv"}`)
	}))
	t.Cleanup(server.Close)

	cfg := baseConfig(t)
	cfg.Output.CSVPath = ""
	cfg.Output.GCSBucket = "exports"
	cfg.Output.GCSObject = "runs/rows.csv"
	a := newApp(t, cfg, app.WithGCSOptions(option.WithEndpoint(server.URL), option.WithoutAuthentication()))

	require.Len(t, a.Exports, 1)
	require.NoError(t, a.Sinks.WriteRows(context.Background(), []vacancy.NormalizedRow{{ID: "42", Title: "QA"}}))
	assert.Equal(t, "gs://exports/runs/rows.csv", a.Exports[0].URI())
	assert.Contains(t, uploaded, "42,QA")
	require.NoError(t, a.Close(context.Background()))
}

func TestNewConfigErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "bad postgres dsn",
			mutate:  func(c *config.Config) { c.Output.PostgresDSN = "postgres://user@localhost:notaport/db" },
			wantErr: "init postgres store",
		},
		{
			name:    "bad sqlite table",
			mutate:  func(c *config.Config) { c.Output.SQLitePath = ":memory:"; c.Output.PostgresTable = "rows; drop" },
			wantErr: "init sqlite store",
		},
		{
			name:    "unknown fetcher",
			mutate:  func(c *config.Config) { c.API.Fetcher = "curl" },
			wantErr: "unknown fetcher: curl",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := baseConfig(t)
			tc.mutate(&cfg)
			_, err := app.New(context.Background(), cfg, nil, app.WithRegisterer(prometheus.NewRegistry()))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestNewFetcher(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	f, err := app.NewFetcher(cfg)
	require.NoError(t, err)
	assert.IsType(t, &collyfetcher.Fetcher{}, f)

	cfg.API.Fetcher = config.FetcherResty
	f, err = app.NewFetcher(cfg)
	require.NoError(t, err)
	assert.IsType(t, &restyfetcher.Fetcher{}, f)
}
