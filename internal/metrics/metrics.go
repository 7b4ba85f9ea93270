// Package metrics exports Prometheus counters for extraction requests.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/rmeta/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rmeta"

// Outcome labels for units_total.
const (
	OutcomeOK = "ok"
)

// Metrics holds the extraction metrics registered on one registry.
type Metrics struct {
	Units             *prometheus.CounterVec
	WriteLimitReached prometheus.Counter
	EmbeddedLimit     prometheus.Counter
	ExtractDuration   prometheus.Histogram
	CacheLookups      *prometheus.CounterVec
	Requests          *prometheus.CounterVec
	gatherer          prometheus.Gatherer
}

// New registers the metrics on reg. Passing a fresh prometheus.NewRegistry
// keeps tests independent of the global registry.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Units: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_total",
			Help:      "Units extracted, by outcome (ok or failure category)",
		}, []string{"outcome"}),
		WriteLimitReached: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_limit_reached_total",
			Help:      "Documents whose content was truncated by the write limit",
		}),
		EmbeddedLimit: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedded_limit_reached_total",
			Help:      "Documents whose traversal stopped at the embedded resource limit",
		}),
		ExtractDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extract_duration_seconds",
			Help:      "Time to extract one document",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups, by result (hit or miss)",
		}, []string{"result"}),
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Extraction requests, by HTTP status code",
		}, []string{"code"}),
		gatherer: reg,
	}
}

// ObserveResult records one finished extraction.
func (m *Metrics) ObserveResult(res *models.Result, elapsed time.Duration) {
	m.ExtractDuration.Observe(elapsed.Seconds())
	writeLimited := false
	for _, u := range res.Units {
		m.Units.WithLabelValues(outcome(u)).Inc()
		writeLimited = writeLimited || u.WriteLimitReached
	}
	if writeLimited {
		m.WriteLimitReached.Inc()
	}
	if root := res.Root(); root != nil && root.EmbeddedLimitReached {
		m.EmbeddedLimit.Inc()
	}
}

// ObserveCache records a cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}

// ObserveRequest records the status code of one extraction request.
func (m *Metrics) ObserveRequest(status int) {
	m.Requests.WithLabelValues(strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// outcome maps a unit to its label: "ok" or the short failure category.
func outcome(u *models.Unit) string {
	if u.Failure == nil {
		return OutcomeOK
	}
	c := u.Failure.Category
	if i := strings.LastIndexByte(c, '.'); i >= 0 {
		c = c[i+1:]
	}
	return c
}
