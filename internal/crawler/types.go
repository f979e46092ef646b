package crawler

import (
	"net/http"
	"time"

	"github.com/JakeFAU/vacancy-crawler/internal/vacancy"
)

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Area is a node of the API's area tree. The tree endpoint nests children
// under "areas".
type Area struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id"`
	Name     string `json:"name"`
	Areas    []Area `json:"areas"`
}

// SpecNode is a node of the specialization tree.
type SpecNode struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Specializations []SpecNode `json:"specializations"`
}

// SearchQuery selects one page of search results.
type SearchQuery struct {
	Text           string
	AreaID         string
	Specialization string
	Page           int
	PerPage        int
}

// SearchPage is one page of search results.
type SearchPage struct {
	Found   int                  `json:"found"`
	Pages   int                  `json:"pages"`
	Page    int                  `json:"page"`
	PerPage int                  `json:"per_page"`
	Items   []vacancy.RawListing `json:"items"`
}

// Config tunes pagination and parallelism.
type Config struct {
	// PageSize is the number of listings requested per page.
	PageSize int
	// MaxResults is the deepest result offset the API serves for one query.
	MaxResults int
	// Concurrency bounds in-flight API calls.
	Concurrency int
}

// DefaultConfig returns the API's documented limits with four workers.
func DefaultConfig() Config {
	return Config{PageSize: 100, MaxResults: 2000, Concurrency: 4}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.PageSize <= 0 {
		c.PageSize = def.PageSize
	}
	if c.MaxResults <= 0 {
		c.MaxResults = def.MaxResults
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	return c
}

// Stats counts crawl outcomes. Failures are recovered and never abort a
// crawl.
type Stats struct {
	Pairs          int
	CountFailures  int
	PagesPlanned   int
	PagesFetched   int
	PageFailures   int
	PagesCancelled int
	Listings       int
	DetailFailures int
}

// Result is the outcome of a crawl.
type Result struct {
	Listings []vacancy.RawListing
	Stats    Stats
}
