package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/vacancy-crawler/internal/progress"
)

// PrometheusSink turns progress events into run and page collectors.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runsActive    prometheus.Gauge
	runDuration   *prometheus.HistogramVec

	pagesPlanned   *prometheus.CounterVec
	pagesCompleted *prometheus.CounterVec
	listings       *prometheus.CounterVec
	detailFailures *prometheus.CounterVec

	mu     sync.Mutex
	active map[[16]byte]struct{}
}

// NewPrometheusSink registers the collectors against reg. A nil reg uses the
// default registerer.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vacancy_runs_started_total",
			Help: "Crawl runs started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vacancy_runs_completed_total",
			Help: "Crawl runs completed, by result.",
		}, []string{"result"}),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vacancy_runs_active",
			Help: "Crawl runs in progress.",
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vacancy_run_duration_seconds",
			Help:    "Wall time per crawl run.",
			Buckets: []float64{10, 30, 60, 300, 600, 1800, 3600, 7200},
		}, []string{"result"}),
		pagesPlanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vacancy_pages_planned_total",
			Help: "Result pages scheduled after the count query, by role.",
		}, []string{"role"}),
		pagesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vacancy_pages_completed_total",
			Help: "Result pages finished, by role and outcome.",
		}, []string{"role", "outcome"}),
		listings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vacancy_page_listings_total",
			Help: "Listings collected from result pages, by role.",
		}, []string{"role"}),
		detailFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vacancy_page_detail_failures_total",
			Help: "Listings kept without detail fields, by role.",
		}, []string{"role"}),
		active: make(map[[16]byte]struct{}),
	}
	for _, c := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runsActive,
		s.runDuration,
		s.pagesPlanned,
		s.pagesCompleted,
		s.listings,
		s.detailFailures,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart:
			s.runsStarted.Inc()
			if s.track(evt.RunID, true) {
				s.runsActive.Inc()
			}
		case progress.StageRunDone, progress.StageRunError:
			result := "success"
			if evt.Stage == progress.StageRunError {
				result = "error"
			}
			s.runsCompleted.WithLabelValues(result).Inc()
			if evt.Dur > 0 {
				s.runDuration.WithLabelValues(result).Observe(evt.Dur.Seconds())
			}
			if s.track(evt.RunID, false) {
				s.runsActive.Dec()
			}
		case progress.StagePairCounted:
			s.pagesPlanned.WithLabelValues(evt.Role).Add(float64(evt.Page))
		case progress.StagePageDone:
			s.pagesCompleted.WithLabelValues(evt.Role, "ok").Inc()
			s.listings.WithLabelValues(evt.Role).Add(float64(evt.Listings))
			if evt.Failures > 0 {
				s.detailFailures.WithLabelValues(evt.Role).Add(float64(evt.Failures))
			}
		case progress.StagePageFailed:
			s.pagesCompleted.WithLabelValues(evt.Role, "failed").Inc()
		}
	}
	return nil
}

// track records a run start or finish and reports whether the active set
// changed.
func (s *PrometheusSink) track(id [16]byte, start bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[id]
	if start {
		if ok {
			return false
		}
		s.active[id] = struct{}{}
		return true
	}
	if !ok {
		return false
	}
	delete(s.active, id)
	return true
}

// Close implements progress.Sink.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
