package handlers

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/despacho-web/internal/legalapi"
)

const healthProbeTimeout = 3 * time.Second

// HealthProber checks an upstream service.
type HealthProber interface {
	Health(ctx context.Context, svc legalapi.Service) (*legalapi.Health, error)
}

// HealthHandler reports the BFF status and the status of both upstreams.
type HealthHandler struct {
	upstream HealthProber
}

func NewHealthHandler(upstream HealthProber) *HealthHandler {
	return &HealthHandler{upstream: upstream}
}

type upstreamStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HandleHealth serves GET /health. The BFF itself is always "ok"; upstream
// outages are reported but do not fail the check.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Status    string                    `json:"status"`
		Upstreams map[string]upstreamStatus `json:"upstreams,omitempty"`
	}{Status: "ok"}

	if h.upstream != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
		defer cancel()

		services := []legalapi.Service{legalapi.ServiceChat, legalapi.ServicePrediction}
		results := make([]upstreamStatus, len(services))
		var g errgroup.Group
		for i, svc := range services {
			g.Go(func() error {
				health, err := h.upstream.Health(ctx, svc)
				switch {
				case err != nil:
					results[i] = upstreamStatus{Status: "unreachable", Error: err.Error()}
				case health.Healthy():
					results[i] = upstreamStatus{Status: "ok"}
				default:
					results[i] = upstreamStatus{Status: health.Status}
				}
				return nil
			})
		}
		_ = g.Wait()

		resp.Upstreams = make(map[string]upstreamStatus, len(services))
		for i, svc := range services {
			resp.Upstreams[string(svc)] = results[i]
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
