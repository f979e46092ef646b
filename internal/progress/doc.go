// Package progress carries crawl progress events from the crawler to
// pluggable sinks. A Hub batches events on a background goroutine so
// emitting never blocks a fetch.
package progress
