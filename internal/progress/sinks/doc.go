// Package sinks implements progress consumers: structured logging,
// Prometheus collectors, and an in-memory snapshot served by the status API.
package sinks
