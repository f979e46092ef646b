// Package hhapi is a client for the job board's public JSON API. Every call
// is paced by a Limiter, sent through a crawler.Fetcher, and retried per a
// RetryPolicy before it is reported as a TransientFetchError.
package hhapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/vacancy-crawler/internal/crawler"
	"github.com/JakeFAU/vacancy-crawler/internal/metrics"
	"github.com/JakeFAU/vacancy-crawler/internal/vacancy"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://api.hh.ru"

// Endpoint labels used for metrics and logs.
const (
	endpointAreas           = "areas"
	endpointSpecializations = "specializations"
	endpointSearch          = "vacancies"
	endpointVacancy         = "vacancy"
)

// Config configures the client.
type Config struct {
	BaseURL   string
	UserAgent string
}

// Client implements crawler.API.
type Client struct {
	base    string
	headers http.Header
	fetcher crawler.Fetcher
	limiter crawler.Limiter
	retry   crawler.RetryPolicy
	logger  *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithLimiter paces every request through l.
func WithLimiter(l crawler.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p crawler.RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New builds a Client on top of fetcher.
func New(cfg Config, fetcher crawler.Fetcher, opts ...Option) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	headers := http.Header{}
	headers.Set("Accept", "application/json")
	if cfg.UserAgent != "" {
		headers.Set("User-Agent", cfg.UserAgent)
		headers.Set("HH-User-Agent", cfg.UserAgent)
	}
	c := &Client{
		base:    base,
		headers: headers,
		fetcher: fetcher,
		retry:   crawler.NewExponentialRetryPolicy(0, 0, 0),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Areas returns the country/region tree.
func (c *Client) Areas(ctx context.Context) ([]crawler.Area, error) {
	return getJSON[[]crawler.Area](ctx, c, endpointAreas, "/areas", nil)
}

// Specializations returns the specialization tree.
func (c *Client) Specializations(ctx context.Context) ([]crawler.SpecNode, error) {
	return getJSON[[]crawler.SpecNode](ctx, c, endpointSpecializations, "/specializations", nil)
}

// Search returns one page of listings whose title matches q.Text.
func (c *Client) Search(ctx context.Context, q crawler.SearchQuery) (crawler.SearchPage, error) {
	params := url.Values{}
	params.Set("text", q.Text)
	params.Set("search_field", "name")
	if q.AreaID != "" {
		params.Set("area", q.AreaID)
	}
	if q.Specialization != "" {
		params.Set("specialization", q.Specialization)
	}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("per_page", strconv.Itoa(q.PerPage))

	return getJSON[crawler.SearchPage](ctx, c, endpointSearch, "/vacancies", params)
}

// Vacancy returns the detail record of one listing.
func (c *Client) Vacancy(ctx context.Context, id string) (vacancy.Detail, error) {
	return getJSON[vacancy.Detail](ctx, c, endpointVacancy, "/vacancies/"+url.PathEscape(id), nil)
}

// getJSON decodes the response into a fresh T on every attempt so a failed
// attempt leaves nothing behind. The zero T is returned on error.
func getJSON[T any](ctx context.Context, c *Client, endpoint, path string, params url.Values) (T, error) {
	var zero T
	target := c.base + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	for attempt := 1; ; attempt++ {
		var out T
		status, err := c.do(ctx, endpoint, target, &out)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return zero, fmt.Errorf("get %s: %w", endpoint, ctx.Err())
		}
		if !c.retry.ShouldRetry(err, attempt) {
			metrics.ObserveTransientFailure(endpoint)
			return zero, &crawler.TransientFetchError{URL: target, StatusCode: status, Attempts: attempt, Err: err}
		}
		metrics.ObserveRetry(endpoint)
		backoff := c.retry.Backoff(attempt)
		c.logger.Debug("retrying api call",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		if err := sleep(ctx, backoff); err != nil {
			return zero, fmt.Errorf("get %s: %w", endpoint, err)
		}
	}
}

// do performs one attempt and returns the response status, 0 if none.
func (c *Client) do(ctx context.Context, endpoint, target string, out any) (int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, target); err != nil {
			return 0, err
		}
	}
	resp, err := c.fetcher.Fetch(ctx, crawler.FetchRequest{URL: target, Headers: c.headers.Clone()})
	if err != nil {
		metrics.ObserveAPIRequest(endpoint, 0, resp.Duration)
		return 0, err
	}
	metrics.ObserveAPIRequest(endpoint, resp.StatusCode, resp.Duration)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &crawler.StatusError{StatusCode: resp.StatusCode}
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return resp.StatusCode, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ crawler.API = (*Client)(nil)
