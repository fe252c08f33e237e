// Package metricsvc exposes attendance counters to Prometheus.
package metricsvc

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/mahudhurio/core/attendance"
)

const namespace = "mahudhurio"

type Metrics struct {
	registry      *prometheus.Registry
	written       prometheus.Counter
	changes       *prometheus.CounterVec
	publishErrors prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		written: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attendance",
			Name:      "records_written_total",
			Help:      "Attendance records inserted or updated.",
		}),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attendance",
			Name:      "status_changes_total",
			Help:      "Attendance status changes, by new status. Re-submitting the same status is not a change.",
		}, []string{"status", "kind"}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attendance",
			Name:      "publish_errors_total",
			Help:      "Attendance changes a subscriber failed to handle.",
		}),
	}
	m.registry.MustRegister(
		m.written,
		m.changes,
		m.publishErrors,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{Namespace: namespace}),
	)
	return m
}

// ObserveMark counts the rows a Mark call wrote.
func (m *Metrics) ObserveMark(res attendance.MarkResult) {
	if m == nil {
		return
	}
	m.written.Add(float64(res.Updated))
}

// Publisher counts every change before handing it to next.
func (m *Metrics) Publisher(next attendance.Publisher) attendance.Publisher {
	return attendance.PublisherFunc(func(ctx context.Context, change attendance.Change) error {
		kind := "created"
		if change.OldStatus != nil {
			kind = "updated"
		}
		m.changes.WithLabelValues(string(change.NewStatus), kind).Inc()
		if next == nil {
			return nil
		}
		err := next.Publish(ctx, change)
		if err != nil {
			m.publishErrors.Inc()
		}
		return err
	})
}

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
