// Package metrics exposes Prometheus collectors for exports, detections,
// bills and HTTP traffic. A nil *Metrics records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scanbill"

// Metrics holds the collectors.
type Metrics struct {
	gatherer prometheus.Gatherer

	exports        *prometheus.CounterVec
	exportDuration *prometheus.HistogramVec
	detections     *prometheus.CounterVec
	detectDuration prometheus.Histogram
	bills          prometheus.Counter
	billTotal      prometheus.Histogram
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		gatherer: reg,
		exports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exports_total",
				Help:      "Checkpoint exports by format and outcome.",
			},
			[]string{"format", "outcome"},
		),
		exportDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "export_duration_seconds",
				Help:      "Duration of framework export runs.",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"format"},
		),
		detections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "detections_total",
				Help:      "Objects detected by class.",
			},
			[]string{"class"},
		),
		detectDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detect_duration_seconds",
			Help:      "Duration of a single image detection.",
			Buckets:   prometheus.DefBuckets,
		}),
		bills: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bills_total",
			Help:      "Bills generated.",
		}),
		billTotal: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bill_grand_total_dollars",
			Help:      "Grand total of generated bills.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250},
		}),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status code.",
			},
			[]string{"method", "route", "code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	reg.MustRegister(
		m.exports, m.exportDuration,
		m.detections, m.detectDuration,
		m.bills, m.billTotal,
		m.httpRequests, m.httpDuration,
	)

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveExport records one export attempt.
func (m *Metrics) ObserveExport(format string, skipped bool, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "exported"
	switch {
	case err != nil:
		outcome = "failed"
	case skipped:
		outcome = "skipped"
	}
	m.exports.WithLabelValues(format, outcome).Inc()
	if err == nil && !skipped {
		m.exportDuration.WithLabelValues(format).Observe(d.Seconds())
	}
}

// ObserveDetection records the classes found in one image.
func (m *Metrics) ObserveDetection(classes []string, d time.Duration) {
	if m == nil {
		return
	}
	for _, c := range classes {
		m.detections.WithLabelValues(c).Inc()
	}
	m.detectDuration.Observe(d.Seconds())
}

// ObserveBill records a generated bill.
func (m *Metrics) ObserveBill(grandTotal float64) {
	if m == nil {
		return
	}
	m.bills.Inc()
	m.billTotal.Observe(grandTotal)
}

// ObserveHTTP records one request.
func (m *Metrics) ObserveHTTP(method, route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
