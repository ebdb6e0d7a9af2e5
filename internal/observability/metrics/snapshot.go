package metrics

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// UpstreamSnapshot summarises upstream traffic per endpoint.
type UpstreamSnapshot struct {
	Endpoint       string             `json:"endpoint"`
	Outcomes       map[string]float64 `json:"outcomes"`
	Count          uint64             `json:"count"`
	AverageSeconds float64            `json:"average_seconds"`
}

// Snapshot is what the admin metrics endpoint returns.
type Snapshot struct {
	Upstream           []UpstreamSnapshot `json:"upstream"`
	ValidationRejected map[string]float64 `json:"validation_rejected"`
	DebounceCollapsed  float64            `json:"debounce_collapsed"`
	ChatRedirects      float64            `json:"chat_redirects"`
}

// TakeSnapshot reads the widget metric families from gatherer.
func TakeSnapshot(gatherer prometheus.Gatherer) (Snapshot, error) {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	snap := Snapshot{ValidationRejected: map[string]float64{}}
	mfs, err := gatherer.Gather()
	if err != nil {
		return snap, err
	}

	byEndpoint := map[string]*UpstreamSnapshot{}
	entry := func(endpoint string) *UpstreamSnapshot {
		if s, ok := byEndpoint[endpoint]; ok {
			return s
		}
		s := &UpstreamSnapshot{Endpoint: endpoint, Outcomes: map[string]float64{}}
		byEndpoint[endpoint] = s
		return s
	}

	for _, mf := range mfs {
		switch mf.GetName() {
		case "despacho_upstream_requests_total":
			for _, metric := range mf.GetMetric() {
				s := entry(labelValue(metric, "endpoint"))
				s.Outcomes[labelValue(metric, "outcome")] += metric.GetCounter().GetValue()
			}
		case "despacho_upstream_latency_seconds":
			for _, metric := range mf.GetMetric() {
				h := metric.GetHistogram()
				s := entry(labelValue(metric, "endpoint"))
				s.Count = h.GetSampleCount()
				if s.Count > 0 {
					s.AverageSeconds = h.GetSampleSum() / float64(s.Count)
				}
			}
		case "despacho_widget_validation_rejected_total":
			for _, metric := range mf.GetMetric() {
				snap.ValidationRejected[labelValue(metric, "widget")] = metric.GetCounter().GetValue()
			}
		case "despacho_prediction_debounce_collapsed_total":
			snap.DebounceCollapsed = sumCounters(mf)
		case "despacho_chat_appointment_redirects_total":
			snap.ChatRedirects = sumCounters(mf)
		}
	}

	for _, s := range byEndpoint {
		snap.Upstream = append(snap.Upstream, *s)
	}
	sort.Slice(snap.Upstream, func(i, j int) bool {
		return snap.Upstream[i].Endpoint < snap.Upstream[j].Endpoint
	})
	return snap, nil
}

func sumCounters(mf *dto.MetricFamily) float64 {
	var total float64
	for _, metric := range mf.GetMetric() {
		total += metric.GetCounter().GetValue()
	}
	return total
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
