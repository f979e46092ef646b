// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/vacancy-crawler/internal/crawler"
	"github.com/JakeFAU/vacancy-crawler/internal/grade"
	"github.com/JakeFAU/vacancy-crawler/internal/normalize"
	"github.com/JakeFAU/vacancy-crawler/internal/vacancy"
)

// DefaultSpecialization is the API's IT, internet and telecom category.
const DefaultSpecialization = "Информационные технологии, интернет, телеком"

// Fetcher backends accepted by api.fetcher.
const (
	FetcherColly = "colly"
	FetcherResty = "resty"
)

// Config captures every knob of a run.
type Config struct {
	API          APIConfig          `mapstructure:"api"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	Crawler      CrawlerConfig      `mapstructure:"crawler"`
	Compensation CompensationConfig `mapstructure:"compensation"`
	Grade        GradeConfig        `mapstructure:"grade"`
	Skills       SkillsConfig       `mapstructure:"skills"`
	Output       OutputConfig       `mapstructure:"output"`
	Server       ServerConfig       `mapstructure:"server"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// APIConfig points the client at the job board.
type APIConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	UserAgent      string  `mapstructure:"user_agent"`
	Fetcher        string  `mapstructure:"fetcher"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RatePerSecond  float64 `mapstructure:"rate_per_second"`
	Burst          int     `mapstructure:"burst"`
}

// HTTPConfig configures retry behavior.
type HTTPConfig struct {
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// CrawlerConfig selects what is crawled and how wide.
type CrawlerConfig struct {
	Country        string   `mapstructure:"country"`
	Specialization string   `mapstructure:"specialization"`
	Roles          []string `mapstructure:"roles"`
	PageSize       int      `mapstructure:"page_size"`
	MaxResults     int      `mapstructure:"max_results"`
	Concurrency    int      `mapstructure:"concurrency"`
}

// CompensationConfig holds exchange and tax rates. A nil TaxRate takes the
// country's rate.
type CompensationConfig struct {
	USDRate float64  `mapstructure:"usd_rate"`
	EURRate float64  `mapstructure:"eur_rate"`
	TaxRate *float64 `mapstructure:"tax_rate"`
}

// GradeConfig tunes the grade model.
type GradeConfig struct {
	MinDocFreq   int     `mapstructure:"min_doc_freq"`
	TestFraction float64 `mapstructure:"test_fraction"`
	Folds        int     `mapstructure:"folds"`
	Seed         uint64  `mapstructure:"seed"`
	MaxDepth     int     `mapstructure:"max_depth"`
}

// SkillsConfig tunes the skill report.
type SkillsConfig struct {
	TopK int `mapstructure:"top_k"`
}

// OutputConfig lists the row sinks. Empty values disable a sink.
type OutputConfig struct {
	CSVPath       string `mapstructure:"csv_path"`
	SQLitePath    string `mapstructure:"sqlite_path"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	PostgresTable string `mapstructure:"postgres_table"`
	GCSBucket     string `mapstructure:"gcs_bucket"`
	GCSObject     string `mapstructure:"gcs_object"`
}

// ServerConfig controls the status server. An empty address disables it.
type ServerConfig struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	// No default, so AutomaticEnv alone would never surface it.
	if err := v.BindEnv("compensation.tax_rate"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "https://api.hh.ru")
	v.SetDefault("api.user_agent", "vacancy-crawler/1.0")
	v.SetDefault("api.fetcher", FetcherColly)
	v.SetDefault("api.timeout_seconds", 15)
	v.SetDefault("api.rate_per_second", 5)
	v.SetDefault("api.burst", 5)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("crawler.country", "Russia")
	v.SetDefault("crawler.specialization", DefaultSpecialization)
	v.SetDefault("crawler.roles", []string{})
	v.SetDefault("crawler.page_size", 100)
	v.SetDefault("crawler.max_results", 2000)
	v.SetDefault("crawler.concurrency", 4)
	v.SetDefault("compensation.usd_rate", 0)
	v.SetDefault("compensation.eur_rate", 0)
	v.SetDefault("grade.min_doc_freq", 9)
	v.SetDefault("grade.test_fraction", 0.25)
	v.SetDefault("grade.folds", 15)
	v.SetDefault("grade.seed", 42)
	v.SetDefault("grade.max_depth", 0)
	v.SetDefault("skills.top_k", 10)
	v.SetDefault("output.csv_path", "vacancies.csv")
	v.SetDefault("output.sqlite_path", "")
	v.SetDefault("output.postgres_dsn", "")
	v.SetDefault("output.postgres_table", "vacancies")
	v.SetDefault("output.gcs_bucket", "")
	v.SetDefault("output.gcs_object", "")
	v.SetDefault("server.metrics_addr", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits. Exchange rates
// are checked by ValidateRates since only a crawl needs them.
func (c Config) Validate() error {
	switch c.API.Fetcher {
	case FetcherColly, FetcherResty:
	default:
		return fmt.Errorf("api.fetcher must be %q or %q", FetcherColly, FetcherResty)
	}
	if c.API.TimeoutSeconds <= 0 {
		return fmt.Errorf("api.timeout_seconds must be > 0")
	}
	if c.API.RatePerSecond < 0 {
		return fmt.Errorf("api.rate_per_second must be >= 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.PageSize <= 0 || c.Crawler.PageSize > 100 {
		return fmt.Errorf("crawler.page_size must be in [1,100]")
	}
	if c.Crawler.MaxResults < c.Crawler.PageSize {
		return fmt.Errorf("crawler.max_results must be >= crawler.page_size")
	}
	if c.Compensation.USDRate < 0 || c.Compensation.EURRate < 0 {
		return fmt.Errorf("compensation rates must be >= 0")
	}
	if t := c.Compensation.TaxRate; t != nil && (*t < 0 || *t >= 1) {
		return fmt.Errorf("compensation.tax_rate must be in [0,1)")
	}
	if c.Grade.TestFraction <= 0 || c.Grade.TestFraction >= 1 {
		return fmt.Errorf("grade.test_fraction must be in (0,1)")
	}
	if c.Grade.Folds < 2 {
		return fmt.Errorf("grade.folds must be >= 2")
	}
	if c.Grade.MinDocFreq < 1 {
		return fmt.Errorf("grade.min_doc_freq must be >= 1")
	}
	if c.Skills.TopK <= 0 {
		return fmt.Errorf("skills.top_k must be > 0")
	}
	if (c.Output.GCSBucket == "") != (c.Output.GCSObject == "") {
		return fmt.Errorf("output.gcs_bucket and output.gcs_object must be set together")
	}
	if _, unknown := vacancy.SelectRoles(c.Crawler.Roles); len(unknown) > 0 {
		return fmt.Errorf("crawler.roles has unknown roles: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// ValidateRates checks the compensation block a crawl needs.
func (c Config) ValidateRates() error {
	if err := c.Rates().Validate(); err != nil {
		return fmt.Errorf("compensation: %w", err)
	}
	return nil
}

// Country resolves crawler.country against the known country table.
func (c Config) Country() vacancy.Country {
	country, _ := vacancy.LookupCountry(c.Crawler.Country)
	return country
}

// RoleQueries returns the configured roles, all of them when none are named.
func (c Config) RoleQueries() []vacancy.RoleQuery {
	roles, _ := vacancy.SelectRoles(c.Crawler.Roles)
	return roles
}

// Rates returns the normalization rates, taking the tax rate from the
// country table unless it is configured.
func (c Config) Rates() normalize.Rates {
	tax := c.Country().TaxRate
	if c.Compensation.TaxRate != nil {
		tax = *c.Compensation.TaxRate
	}
	return normalize.Rates{USD: c.Compensation.USDRate, EUR: c.Compensation.EURRate, Tax: tax}
}

// CrawlerConfig converts the crawler section.
func (c Config) CrawlerConfig() crawler.Config {
	return crawler.Config{
		PageSize:    c.Crawler.PageSize,
		MaxResults:  c.Crawler.MaxResults,
		Concurrency: c.Crawler.Concurrency,
	}
}

// TrainConfig converts the grade section.
func (c Config) TrainConfig() grade.TrainConfig {
	return grade.TrainConfig{
		MinDocFreq:   c.Grade.MinDocFreq,
		TestFraction: c.Grade.TestFraction,
		Folds:        c.Grade.Folds,
		Seed:         c.Grade.Seed,
		MaxDepth:     c.Grade.MaxDepth,
	}
}

// Timeout is the per-request API timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// RetryPolicy builds the API retry policy; max_retries counts retries, not
// attempts.
func (c Config) RetryPolicy() *crawler.ExponentialRetryPolicy {
	return crawler.NewExponentialRetryPolicy(
		c.HTTP.MaxRetries+1,
		time.Duration(c.HTTP.BackoffInitialMs)*time.Millisecond,
		time.Duration(c.HTTP.BackoffMaxMs)*time.Millisecond,
	)
}
