package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "huddle"

// Metrics holds the collectors reported by calendar-service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	rankingDuration *prometheus.HistogramVec
	candidates      *prometheus.HistogramVec
	staleEntries    prometheus.Counter
	outboxEvents    *prometheus.CounterVec
	deadlineClosed  prometheus.Counter
}

// New registers the collectors on a fresh registry together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := MustNewMetrics(reg)
	m.gatherer = reg
	return m
}

// MustNewMetrics registers on reg and panics on duplicate registration.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		gatherer: prometheus.DefaultGatherer,
		rankingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ranking",
			Name:      "evaluate_duration_seconds",
			Help:      "Time spent building the slot index, histogram and ranked candidates.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}, []string{"calendar_type", "status"}),
		candidates: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ranking",
			Name:      "candidates",
			Help:      "Number of ranked candidates returned per evaluation.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"calendar_type"}),
		staleEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ranking",
			Name:      "stale_entries_total",
			Help:      "Availability entries skipped because they fall outside the slot universe.",
		}),
		outboxEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_total",
			Help:      "Outbox events relayed to Kafka.",
		}, []string{"event_type", "result"}),
		deadlineClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deadline",
			Name:      "calendars_closed_total",
			Help:      "Calendars closed by the deadline sweeper.",
		}),
	}
	reg.MustRegister(m.rankingDuration, m.candidates, m.staleEntries, m.outboxEvents, m.deadlineClosed)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveEvaluation(calendarType string, elapsed time.Duration, candidates, stale int, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.rankingDuration.WithLabelValues(calendarType, status).Observe(elapsed.Seconds())
	if err != nil {
		return
	}
	m.candidates.WithLabelValues(calendarType).Observe(float64(candidates))
	if stale > 0 {
		m.staleEntries.Add(float64(stale))
	}
}

func (m *Metrics) OutboxRelayed(eventType string, err error) {
	if m == nil {
		return
	}
	result := "published"
	if err != nil {
		result = "failed"
	}
	m.outboxEvents.WithLabelValues(eventType, result).Inc()
}

func (m *Metrics) DeadlineClosed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.deadlineClosed.Add(float64(n))
}
