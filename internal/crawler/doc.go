// Package crawler resolves a country and a specialization against the job
// board API and walks its paginated search results for every role and
// region, enriching each listing with its detail record. Pages are fetched
// by a bounded worker pool and reassembled in role, region, page order.
package crawler
