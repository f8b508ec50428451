// Package metrics exposes pipeline metrics through Prometheus.
// Clean Architecture: Adapter implementing ports.Metrics.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/0xcro3dile/oqgen/internal/domain/entities"
)

const namespace = "oqgen"

// Prometheus implements ports.Metrics, llm.RequestObserver and
// embedding.CacheObserver on its own registry.
type Prometheus struct {
	registry *prometheus.Registry

	runsTotal         *prometheus.CounterVec
	stepDuration      *prometheus.HistogramVec
	llmRequestsTotal  *prometheus.CounterVec
	llmDuration       *prometheus.HistogramVec
	generatedTests    prometheus.Histogram
	embeddingCacheOps *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Prometheus {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Prometheus{
		registry: reg,
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Pipeline runs by final status",
			},
			[]string{"status"},
		),
		stepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of workflow steps and agents",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"step", "status"},
		),
		llmRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "llm",
				Name:      "requests_total",
				Help:      "LLM requests by provider and status",
			},
			[]string{"provider", "status"},
		),
		llmDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "llm",
				Name:      "request_duration_seconds",
				Help:      "LLM request latency",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"provider"},
		),
		generatedTests: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generated_tests",
				Help:      "OQ tests per successful run",
				Buckets:   []float64{3, 5, 10, 15, 20, 25, 30},
			},
		),
		embeddingCacheOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "embedding_cache",
				Name:      "lookups_total",
				Help:      "Embedding cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

// ObserveStep records a workflow step or agent duration.
func (p *Prometheus) ObserveStep(step string, d time.Duration, err error) {
	p.stepDuration.WithLabelValues(step, status(err)).Observe(d.Seconds())
}

// ObserveRun counts a finished run.
func (p *Prometheus) ObserveRun(s entities.RunStatus, tests int) {
	p.runsTotal.WithLabelValues(string(s)).Inc()
	if s == entities.RunSucceeded {
		p.generatedTests.Observe(float64(tests))
	}
}

// ObserveLLMRequest counts one provider call.
func (p *Prometheus) ObserveLLMRequest(provider string, d time.Duration, err error) {
	p.llmRequestsTotal.WithLabelValues(provider, status(err)).Inc()
	p.llmDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveEmbeddingCache counts a cache hit or miss.
func (p *Prometheus) ObserveEmbeddingCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	p.embeddingCacheOps.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// WriteTextfile writes the current values for the node_exporter textfile collector.
func (p *Prometheus) WriteTextfile(path string) error {
	if path == "" {
		return errors.New("metrics textfile path is empty")
	}
	return prometheus.WriteToTextfile(path, p.registry)
}

// Registry exposes the underlying registry for tests and extra collectors.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
