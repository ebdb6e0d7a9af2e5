package metrics

import "github.com/prometheus/client_golang/prometheus"

// WidgetMetrics exposes counters/histograms for the widget flows and the
// upstream legal API they call.
type WidgetMetrics struct {
	upstreamTotal      *prometheus.CounterVec
	upstreamLatency    *prometheus.HistogramVec
	validationRejected *prometheus.CounterVec
	debounceCollapsed  prometheus.Counter
	chatRedirects      prometheus.Counter
}

// NewWidgetMetrics registers the widget collectors on reg (default registerer when nil).
func NewWidgetMetrics(reg prometheus.Registerer) *WidgetMetrics {
	m := &WidgetMetrics{
		upstreamTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "despacho",
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Total calls to the upstream legal API",
		}, []string{"endpoint", "outcome"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "despacho",
			Subsystem: "upstream",
			Name:      "latency_seconds",
			Help:      "Latency of upstream legal API calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		validationRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "despacho",
			Subsystem: "widget",
			Name:      "validation_rejected_total",
			Help:      "Submissions rejected by local validation before any upstream call",
		}, []string{"widget"}),
		debounceCollapsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "despacho",
			Subsystem: "prediction",
			Name:      "debounce_collapsed_total",
			Help:      "Prediction submissions absorbed by the debounce window",
		}),
		chatRedirects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "despacho",
			Subsystem: "chat",
			Name:      "appointment_redirects_total",
			Help:      "Chat replies that sent the visitor to the appointment section",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.upstreamTotal, m.upstreamLatency, m.validationRejected, m.debounceCollapsed, m.chatRedirects)
	return m
}

// ObserveUpstream records one upstream call.
func (m *WidgetMetrics) ObserveUpstream(endpoint, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.upstreamTotal.WithLabelValues(endpoint, outcome).Inc()
	m.upstreamLatency.WithLabelValues(endpoint).Observe(seconds)
}

func (m *WidgetMetrics) ObserveValidationRejected(widget string) {
	if m == nil {
		return
	}
	m.validationRejected.WithLabelValues(widget).Inc()
}

func (m *WidgetMetrics) ObserveDebounceCollapsed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.debounceCollapsed.Add(float64(n))
}

func (m *WidgetMetrics) ObserveChatRedirect() {
	if m == nil {
		return
	}
	m.chatRedirects.Inc()
}
