package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/wolfman30/despacho-web/internal/identity"
	"github.com/wolfman30/despacho-web/internal/legalapi"
	"github.com/wolfman30/despacho-web/internal/prediction"
	"github.com/wolfman30/despacho-web/pkg/logging"
)

// PredictionHandler serves the prediction widget.
type PredictionHandler struct {
	svc    *prediction.Service
	logger *logging.Logger
}

func NewPredictionHandler(svc *prediction.Service, logger *logging.Logger) *PredictionHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &PredictionHandler{svc: svc, logger: logger}
}

// HandleSubmit serves POST /api/prediction.
func (h *PredictionHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	intake, err := readIntake(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, _ := identity.FromContext(r.Context())
	view, err := h.svc.Submit(r.Context(), userID, intake)
	var verr *prediction.ValidationError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, view)
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, view)
	case view != nil:
		writeJSON(w, http.StatusBadGateway, view)
	default:
		// The request ended before the collapsed run finished.
		h.logger.Debug("prediction: caller gave up", "user_id", userID, "error", err)
		writeError(w, http.StatusGatewayTimeout, "prediction did not finish")
	}
}

func readIntake(w http.ResponseWriter, r *http.Request) (legalapi.CaseIntake, error) {
	var intake legalapi.CaseIntake
	if isJSON(r) {
		err := decodeJSON(w, r, &intake)
		return intake, err
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return intake, err
	}
	f := r.PostForm
	amount, _ := strconv.ParseFloat(strings.TrimSpace(f.Get("monto_disputa")), 64)
	return legalapi.CaseIntake{
		CaseType:       f.Get("tipo_caso"),
		Description:    f.Get("descripcion"),
		DisputedAmount: amount,
		Complexity:     f.Get("complejidad"),
		Evidence:       f["evidencias"],
		PriorHistory:   f.Get("antecedentes"),
		Jurisdiction:   f.Get("jurisdiccion"),
	}, nil
}

// HandleInit serves GET /api/prediction/init.
func (h *PredictionHandler) HandleInit(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Init(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "init failed")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleCaseTypes serves GET /api/prediction/case_types. The built-in list is
// served when the model is unreachable.
func (h *PredictionHandler) HandleCaseTypes(w http.ResponseWriter, r *http.Request) {
	view, _ := h.svc.CaseTypes(r.Context())
	writeJSON(w, http.StatusOK, view)
}

// HandleStats serves GET /api/prediction/stats.
func (h *PredictionHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleHistory serves GET /api/prediction/history?limit=N.
func (h *PredictionHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	history, err := h.svc.History(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// HandleExport serves POST /api/prediction/export. The body is the result
// view last shown; the response is the export document as a download.
func (h *PredictionHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	var result *prediction.ResultView
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &result); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if result != nil && result.Outcome == "" && result.Percent == 0 && result.ConfidencePercent == 0 {
		result = nil
	}

	view, err := h.svc.Export(result)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, view)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+view.FileName+`"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(view.Document)
}
