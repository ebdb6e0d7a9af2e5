package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/despacho-web/internal/legalapi"
	"github.com/wolfman30/despacho-web/internal/prediction"
	"github.com/wolfman30/despacho-web/pkg/logging"
)

type fakePredictionAPI struct {
	mu      sync.Mutex
	intakes []legalapi.CaseIntake
	health  map[legalapi.Service]error
}

func (f *fakePredictionAPI) Predict(_ context.Context, intake legalapi.CaseIntake) (*legalapi.PredictionResult, error) {
	f.mu.Lock()
	f.intakes = append(f.intakes, intake)
	f.mu.Unlock()
	return &legalapi.PredictionResult{
		SuccessProbability: 0.45,
		ProbableOutcome:    "Parcialmente favorable",
		EstimatedMonths:    9,
		Confidence:         0.6,
		RiskFactors:        []string{"Prescripción"},
	}, nil
}

func (f *fakePredictionAPI) CaseTypes(context.Context) (*legalapi.CaseTypes, error) {
	return nil, errors.New("down")
}

func (f *fakePredictionAPI) PredictionStats(context.Context) (*legalapi.PredictionStats, error) {
	return nil, errors.New("down")
}

func (f *fakePredictionAPI) PredictionHistory(_ context.Context, limit int) (*legalapi.PredictionHistory, error) {
	return &legalapi.PredictionHistory{Predictions: []map[string]any{{"limit": limit}}}, nil
}

func (f *fakePredictionAPI) Health(_ context.Context, svc legalapi.Service) (*legalapi.Health, error) {
	if err := f.health[svc]; err != nil {
		return nil, err
	}
	return &legalapi.Health{Status: "healthy"}, nil
}

func (f *fakePredictionAPI) lastIntake() legalapi.CaseIntake {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.intakes[len(f.intakes)-1]
}

func newPredictionHandler(t *testing.T) (*PredictionHandler, *fakePredictionAPI) {
	t.Helper()
	api := &fakePredictionAPI{}
	svc := prediction.NewService(prediction.Config{
		API:      api,
		Logger:   logging.New("error"),
		Debounce: 5 * time.Millisecond,
		Now:      func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) },
	})
	return NewPredictionHandler(svc, logging.New("error")), api
}

func TestPredictionSubmitAcceptsFormFields(t *testing.T) {
	h, api := newPredictionHandler(t)

	form := url.Values{
		"tipo_caso":     {"civil"},
		"descripcion":   {"Incumplimiento de contrato de arrendamiento"},
		"monto_disputa": {"150000.50"},
		"evidencias":    {"contrato", "recibos"},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/prediction", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.HandleSubmit(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view prediction.SubmitView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.NotNil(t, view.Result)
	assert.Equal(t, prediction.TierMedium, view.Result.Tier)
	assert.Equal(t, 45, view.Result.Percent)

	intake := api.lastIntake()
	assert.Equal(t, []string{"contrato", "recibos"}, intake.Evidence)
	assert.Equal(t, 150000.50, intake.DisputedAmount)
	assert.Equal(t, "civil", intake.Jurisdiction)
	assert.Equal(t, "media", intake.Complexity)
}

func TestPredictionSubmitRejectsBadJSON(t *testing.T) {
	h, _ := newPredictionHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/prediction", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.HandleSubmit(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredictionSubmitAbandonedByCallerIs504(t *testing.T) {
	h, _ := newPredictionHandler(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	body := `{"tipo_caso":"civil","descripcion":"Incumplimiento de contrato"}`
	req := httptest.NewRequest(http.MethodPost, "/api/prediction", strings.NewReader(body)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.HandleSubmit(rec, req)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.JSONEq(t, `{"error":"prediction did not finish"}`, rec.Body.String())
}

func TestCaseTypesFallBackToDefaults(t *testing.T) {
	h, _ := newPredictionHandler(t)
	rec := httptest.NewRecorder()
	h.HandleCaseTypes(rec, httptest.NewRequest(http.MethodGet, "/api/prediction/case_types", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var view prediction.CaseTypesView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Len(t, view.Types, len(prediction.DefaultCaseTypes))
}

func TestStatsUpstreamFailureIs502(t *testing.T) {
	h, _ := newPredictionHandler(t)
	rec := httptest.NewRecorder()
	h.HandleStats(rec, httptest.NewRequest(http.MethodGet, "/api/prediction/stats", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHistoryLimit(t *testing.T) {
	h, _ := newPredictionHandler(t)

	rec := httptest.NewRecorder()
	h.HandleHistory(rec, httptest.NewRequest(http.MethodGet, "/api/prediction/history?limit=3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"limit":3`)

	rec = httptest.NewRecorder()
	h.HandleHistory(rec, httptest.NewRequest(http.MethodGet, "/api/prediction/history?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExport(t *testing.T) {
	h, _ := newPredictionHandler(t)

	body := `{"probabilidad":45,"nivel":"medium","tipo_sentencia":"Parcialmente favorable","tiempo_estimado_meses":9,"confianza":60,"factores_riesgo":["Prescripción"],"recomendaciones":[]}`
	req := httptest.NewRequest(http.MethodPost, "/api/prediction/export", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.HandleExport(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="prediccion_1792411200000.json"`, rec.Header().Get("Content-Disposition"))
	var doc prediction.ExportDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "45%", doc.SuccessProbability)
	assert.Equal(t, "60%", doc.Confidence)

	rec = httptest.NewRecorder()
	h.HandleExport(rec, httptest.NewRequest(http.MethodPost, "/api/prediction/export", strings.NewReader("{}")))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "No hay resultados para exportar")
}

func TestHealthReportsUnreachableUpstream(t *testing.T) {
	api := &fakePredictionAPI{health: map[legalapi.Service]error{
		legalapi.ServicePrediction: errors.New("connection refused"),
	}}
	rec := httptest.NewRecorder()
	NewHealthHandler(api).HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Status    string `json:"status"`
		Upstreams map[string]struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		} `json:"upstreams"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Upstreams["chat"].Status)
	assert.Equal(t, "unreachable", resp.Upstreams["prediction"].Status)
	assert.Contains(t, resp.Upstreams["prediction"].Error, "connection refused")
}
