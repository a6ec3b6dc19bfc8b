package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SaleMetrics records outcomes of the sale processor.
type SaleMetrics struct {
	created  *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewSaleMetrics registers the sale collectors on reg. A nil registerer yields
// a recorder that drops every observation.
func NewSaleMetrics(reg prometheus.Registerer) *SaleMetrics {
	if reg == nil {
		return &SaleMetrics{}
	}
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sales_created_total",
		Help: "Sales committed, by payment status.",
	}, []string{"payment_status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sale_failures_total",
		Help: "Rejected or failed sale attempts, by error code.",
	}, []string{"code"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pos_sale_duration_seconds",
		Help:    "Time spent creating a sale, including the read-back.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(created, failures, duration)
	return &SaleMetrics{
		created:  created,
		failures: failures,
		duration: duration,
	}
}

func (m *SaleMetrics) IncCreated(status string) {
	if m == nil || m.created == nil {
		return
	}
	m.created.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *SaleMetrics) IncFailure(code string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(code)).Inc()
}

func (m *SaleMetrics) ObserveDuration(d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
