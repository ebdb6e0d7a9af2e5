package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/despacho-web/internal/observability/metrics"
	"github.com/wolfman30/despacho-web/pkg/logging"
)

// AdminMetricsHandler serves a JSON summary of the widget metrics.
type AdminMetricsHandler struct {
	gatherer prometheus.Gatherer
	logger   *logging.Logger
}

func NewAdminMetricsHandler(gatherer prometheus.Gatherer, logger *logging.Logger) *AdminMetricsHandler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminMetricsHandler{gatherer: gatherer, logger: logger}
}

// HandleSnapshot serves GET /admin/metrics.
func (h *AdminMetricsHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := metrics.TakeSnapshot(h.gatherer)
	if err != nil {
		h.logger.Error("admin: metrics snapshot failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to gather metrics")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
