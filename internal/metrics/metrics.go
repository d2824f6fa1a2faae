// Package metrics holds the pipeline's Prometheus counters. A pipeline run is
// a batch job, so the numbers are pushed to a Pushgateway at the end instead
// of being scraped.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "directory_pipeline"

type Metrics struct {
	registry *prometheus.Registry

	// AICalls counts completion requests by model tier (fast, smart).
	AICalls *prometheus.CounterVec
	// Items counts items leaving a stage by outcome (ok, failed, dropped).
	Items *prometheus.CounterVec
	// Repairs counts repair prompts by problem kind.
	Repairs *prometheus.CounterVec
	// ImageFallbacks counts logos replaced by the placeholder.
	ImageFallbacks prometheus.Counter
	StageDuration  *prometheus.HistogramVec
}

// New registers a fresh set of collectors on a private registry, so several
// instances can live in one process (tests do this).
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		AICalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_calls_total",
			Help:      "Completion requests sent, by model tier",
		}, []string{"tier"}),
		Items: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Items processed per stage, by outcome",
		}, []string{"stage", "outcome"}),
		Repairs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repairs_total",
			Help:      "Repair prompts issued, by problem kind",
		}, []string{"kind"}),
		ImageFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_fallbacks_total",
			Help:      "Logos replaced by the bundled placeholder",
		}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"stage"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Push sends everything gathered so far to a Pushgateway. An empty url is a
// no-op.
func (m *Metrics) Push(ctx context.Context, url, job, runID string) error {
	if url == "" {
		return nil
	}
	if job == "" {
		job = namespace
	}
	pusher := push.New(url, job).Gatherer(m.registry)
	if runID != "" {
		pusher = pusher.Grouping("run_id", runID)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
