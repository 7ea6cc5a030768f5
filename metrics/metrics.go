package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Answer outcomes recorded on AnswersTotal.
const (
	OutcomeHit             = "hit"
	OutcomeMiss            = "miss"
	OutcomeQuotaExceeded   = "quota_exceeded"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeInvalid         = "invalid"
	OutcomeError           = "error"
)

// Metrics holds the gateway collectors on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	AnswersTotal        *prometheus.CounterVec
	StageDuration       *prometheus.HistogramVec
	BookkeepingTasks    *prometheus.CounterVec
	CacheInsertFailures prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		AnswersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "solver",
				Name:      "answers_total",
				Help:      "Answer requests by outcome",
			},
			[]string{"outcome"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "solver",
				Name:      "stage_duration_seconds",
				Help:      "Duration of each answer pipeline stage in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		BookkeepingTasks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "solver",
				Name:      "bookkeeping_tasks_total",
				Help:      "Fire-and-forget bookkeeping tasks by status",
			},
			[]string{"task", "status"},
		),
		CacheInsertFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "solver",
				Name:      "cache_insert_failures_total",
				Help:      "Generated answers that could not be persisted",
			},
		),
	}

	m.registry.MustRegister(
		m.AnswersTotal,
		m.StageDuration,
		m.BookkeepingTasks,
		m.CacheInsertFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Answer(outcome string) {
	m.AnswersTotal.WithLabelValues(outcome).Inc()
}

// ObserveStage records the time elapsed since start for stage.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// BookkeepingObserver matches bookkeeping.Observer.
func (m *Metrics) BookkeepingObserver(task string, status string) {
	m.BookkeepingTasks.WithLabelValues(task, status).Inc()
}
