// Package metrics holds the prometheus collectors of the compiler and the alias table.
package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// label values
const (
	LblResult = "result"

	ResultOK        = "ok"
	ResultUserError = "user_error"
	ResultError     = "error"
)

// Metrics are the collectors of one compiler. A nil *Metrics records nothing.
type Metrics struct {
	Compiles        *prometheus.CounterVec
	CompileDuration prometheus.Histogram
	QueryTags       prometheus.Histogram
	AliasRefreshes  *prometheus.CounterVec
	AliasEntries    prometheus.Gauge
}

// New creates the collectors under namespace. They are not registered.
func New(namespace string) *Metrics {
	return &Metrics{
		Compiles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "compiler",
				Name:      "compiles_total",
				Help:      "Counter of compiled tag queries by result.",
			}, []string{LblResult}),
		CompileDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "compiler",
				Name:      "compile_duration_seconds",
				Help:      "Bucketed histogram of the time spent compiling a tag query.",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 16), // 10us ~ 0.3s
			}),
		QueryTags: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "compiler",
				Name:      "query_tags",
				Help:      "Bucketed histogram of the tag quota used by compiled queries.",
				Buckets:   prometheus.LinearBuckets(0, 5, 10),
			}),
		AliasRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "alias",
				Name:      "refreshes_total",
				Help:      "Counter of alias table refreshes by result.",
			}, []string{LblResult}),
		AliasEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "alias",
				Name:      "entries",
				Help:      "Number of aliases loaded by the last successful refresh.",
			}),
	}
}

// Register registers every collector. Collectors that are already registered are left alone.
func (m *Metrics) Register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Compiles, m.CompileDuration, m.QueryTags, m.AliasRefreshes, m.AliasEntries} {
		if err := r.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return errors.Wrap(err, "unable to register metrics")
		}
	}
	return nil
}

// ObserveCompile records one compile that started at start.
func (m *Metrics) ObserveCompile(start time.Time, result string, tags int) {
	if m == nil {
		return
	}
	m.Compiles.WithLabelValues(result).Inc()
	m.CompileDuration.Observe(time.Since(start).Seconds())
	if result == ResultOK {
		m.QueryTags.Observe(float64(tags))
	}
}

// ObserveRefresh records one alias refresh.
func (m *Metrics) ObserveRefresh(entries int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.AliasRefreshes.WithLabelValues(ResultError).Inc()
		return
	}
	m.AliasRefreshes.WithLabelValues(ResultOK).Inc()
	m.AliasEntries.Set(float64(entries))
}
