// Package restyfetcher implements crawler.Fetcher on a resty client.
package restyfetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/JakeFAU/vacancy-crawler/internal/crawler"
)

// Config controls the client.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher issues GET requests through a shared resty client. Non-2xx
// responses are returned, not treated as errors.
type Fetcher struct {
	http *resty.Client
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	client := resty.New()
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client.SetTimeout(timeout)
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	return &Fetcher{http: client}
}

// Fetch implements crawler.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	res, err := f.http.R().
		SetContext(ctx).
		SetHeaderMultiValues(request.Headers).
		Get(request.URL)
	if err != nil {
		return crawler.FetchResponse{}, fmt.Errorf("resty get %s: %w", request.URL, err)
	}
	return crawler.FetchResponse{
		URL:        res.Request.URL,
		StatusCode: res.StatusCode(),
		Headers:    res.Header().Clone(),
		Body:       res.Body(),
		Duration:   res.Time(),
	}, nil
}
