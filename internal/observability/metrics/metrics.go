package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking flow.
type BookingMetrics struct {
	reconciliationsTotal *prometheus.CounterVec
	webhookTotal         *prometheus.CounterVec
	providerLatency      *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		reconciliationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "booking",
			Name:      "reconciliations_total",
			Help:      "Total booking reconciliations by path (primary/fallback) and status",
		}, []string{"path", "status"}),
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "booking",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound scheduling-provider webhooks",
		}, []string{"event_type", "status"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "telehealth",
			Subsystem: "booking",
			Name:      "provider_fetch_seconds",
			Help:      "Latency of scheduling-provider API fetches",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.reconciliationsTotal, m.webhookTotal, m.providerLatency)
	return m
}

func (m *BookingMetrics) ObserveReconciliation(path, status string) {
	if m == nil {
		return
	}
	m.reconciliationsTotal.WithLabelValues(path, status).Inc()
}

func (m *BookingMetrics) ObserveWebhook(eventType, status string) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(eventType, status).Inc()
}

func (m *BookingMetrics) ObserveProviderLatency(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.providerLatency.WithLabelValues(operation).Observe(seconds)
}
