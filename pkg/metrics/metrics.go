// Package metrics exposes Prometheus collectors for batches, items and HTTP traffic.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "docfetch"

// Metrics holds every collector docfetch exports.
type Metrics struct {
	batchesTotal        *prometheus.CounterVec
	itemsTotal          *prometheus.CounterVec
	itemDuration        prometheus.Histogram
	recoveriesTotal     *prometheus.CounterVec
	mirrorUploadsTotal  *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		batchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_total",
				Help:      "Total number of batches by final status",
			},
			[]string{"status"},
		),
		itemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_total",
				Help:      "Total number of processed identifiers by outcome",
			},
			[]string{"outcome"},
		),
		itemDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "item_duration_seconds",
				Help:      "Time spent processing one identifier",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
			},
		),
		recoveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recoveries_total",
				Help:      "Total number of session recovery attempts by result",
			},
			[]string{"result"},
		),
		mirrorUploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mirror_uploads_total",
				Help:      "Total number of mirror uploads by result",
			},
			[]string{"result"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
			},
			[]string{"method", "path", "status"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
	}

	reg.MustRegister(
		m.batchesTotal,
		m.itemsTotal,
		m.itemDuration,
		m.recoveriesTotal,
		m.mirrorUploadsTotal,
		m.httpRequestDuration,
		m.httpRequestsTotal,
	)
	return m
}

// BatchFinished records the final status of a batch.
func (m *Metrics) BatchFinished(status string) {
	m.batchesTotal.WithLabelValues(status).Inc()
}

// ItemFinished records one identifier outcome and its duration.
func (m *Metrics) ItemFinished(success bool, d time.Duration) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.itemsTotal.WithLabelValues(outcome).Inc()
	m.itemDuration.Observe(d.Seconds())
}

// RecoveryAttempted records the result of a recovery attempt.
func (m *Metrics) RecoveryAttempted(ok bool) {
	m.recoveriesTotal.WithLabelValues(result(ok)).Inc()
}

// MirrorUploaded records the result of a mirror upload.
func (m *Metrics) MirrorUploaded(ok bool) {
	m.mirrorUploadsTotal.WithLabelValues(result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
