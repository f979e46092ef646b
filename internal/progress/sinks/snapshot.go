package sinks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/vacancy-crawler/internal/progress"
)

// RunSnapshot is the aggregated state of one crawl run.
type RunSnapshot struct {
	RunID          uuid.UUID      `json:"run_id"`
	Status         string         `json:"status"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     *time.Time     `json:"finished_at,omitempty"`
	PagesPlanned   int            `json:"pages_planned"`
	PagesDone      int            `json:"pages_done"`
	PagesFailed    int            `json:"pages_failed"`
	Listings       int            `json:"listings"`
	DetailFailures int            `json:"detail_failures"`
	Roles          map[string]int `json:"listings_by_role"`
	LastError      string         `json:"last_error,omitempty"`
}

// Run statuses.
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// SnapshotSink keeps per-run aggregates in memory for the status API.
type SnapshotSink struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*RunSnapshot
}

// NewSnapshotSink returns an empty SnapshotSink.
func NewSnapshotSink() *SnapshotSink {
	return &SnapshotSink{runs: make(map[uuid.UUID]*RunSnapshot)}
}

// Consume folds batch into the run aggregates.
func (s *SnapshotSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		run := s.run(evt)
		switch evt.Stage {
		case progress.StageRunStart:
			run.StartedAt = evt.TS
		case progress.StagePairCounted:
			run.PagesPlanned += evt.Page
		case progress.StagePageDone:
			run.PagesDone++
			run.Listings += evt.Listings
			run.DetailFailures += evt.Failures
			run.Roles[evt.Role] += evt.Listings
		case progress.StagePageFailed:
			run.PagesFailed++
			run.LastError = evt.Note
		case progress.StageRunDone, progress.StageRunError:
			ts := evt.TS
			run.FinishedAt = &ts
			run.Status = StatusDone
			if evt.Stage == progress.StageRunError {
				run.Status = StatusFailed
				run.LastError = evt.Note
			}
		}
	}
	return nil
}

func (s *SnapshotSink) run(evt progress.Event) *RunSnapshot {
	id := evt.RunUUID()
	run, ok := s.runs[id]
	if !ok {
		run = &RunSnapshot{
			RunID:     id,
			Status:    StatusRunning,
			StartedAt: evt.TS,
			Roles:     make(map[string]int),
		}
		s.runs[id] = run
	}
	return run
}

// Get returns a copy of the run's snapshot.
func (s *SnapshotSink) Get(id uuid.UUID) (RunSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return RunSnapshot{}, false
	}
	return run.clone(), true
}

// List returns every run, most recently started first.
func (s *SnapshotSink) List() []RunSnapshot {
	s.mu.RLock()
	out := make([]RunSnapshot, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run.clone())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

func (r *RunSnapshot) clone() RunSnapshot {
	out := *r
	out.Roles = make(map[string]int, len(r.Roles))
	for k, v := range r.Roles {
		out.Roles[k] = v
	}
	if r.FinishedAt != nil {
		ts := *r.FinishedAt
		out.FinishedAt = &ts
	}
	return out
}

// Close implements progress.Sink.
func (s *SnapshotSink) Close(context.Context) error {
	return nil
}
