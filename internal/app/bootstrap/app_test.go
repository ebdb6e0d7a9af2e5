package bootstrap

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/despacho-web/internal/appointment"
	"github.com/wolfman30/despacho-web/internal/chat"
	appconfig "github.com/wolfman30/despacho-web/internal/config"
	"github.com/wolfman30/despacho-web/internal/http/middleware"
	"github.com/wolfman30/despacho-web/internal/identity"
	"github.com/wolfman30/despacho-web/internal/prediction"
	"github.com/wolfman30/despacho-web/pkg/logging"
)

// fakeLegalAPI serves both upstream services; prediction endpoints live
// under /pred.
type fakeLegalAPI struct {
	mu     sync.Mutex
	booked map[string]any
}

func (f *fakeLegalAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasPrefix(r.URL.Path, "/horarios_disponibles/"):
		fecha := strings.TrimPrefix(r.URL.Path, "/horarios_disponibles/")
		_, _ = io.WriteString(w, `{"fecha":"`+fecha+`","horarios_disponibles":["09:00","13:30"],"horarios_ocupados":["10:00"]}`)
	case r.URL.Path == "/agendar_cita":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.booked = body
		f.mu.Unlock()
		_, _ = io.WriteString(w, `{"success":true,"cita_id":7,"mensaje":"ok","detalles":{"fecha":"`+body["fecha"].(string)+`","servicio":"laboral","id":7}}`)
	case r.URL.Path == "/citas":
		_, _ = io.WriteString(w, `{"citas":[{"id":7,"nombre":"Ana","email":"ana@example.com","telefono":"5512345678","fecha":"2026-10-21 09:00","tipo_servicio":"laboral","estado":"pendiente"}]}`)
	case r.URL.Path == "/chat":
		_, _ = io.WriteString(w, `{"respuesta":"Claro, **agendemos** tu cita.","sugerencias":["Derecho Laboral"],"requiere_cita":true}`)
	case r.URL.Path == "/health", r.URL.Path == "/pred/health":
		_, _ = io.WriteString(w, `{"status":"healthy"}`)
	case r.URL.Path == "/pred/predict":
		f.mu.Lock()
		f.mu.Unlock()
		_, _ = io.WriteString(w, `{"probabilidad_exito":0.75,"tipo_sentencia_probable":"Favorable","tiempo_estimado_meses":6,"confianza_prediccion":0.8,"factores_riesgo":[],"recomendaciones":["Reunir testigos"]}`)
	case r.URL.Path == "/pred/case_types":
		_, _ = io.WriteString(w, `{"tipos_casos":["civil","laboral"],"detalles":{}}`)
	case r.URL.Path == "/pred/predictions/stats":
		_, _ = io.WriteString(w, `{"total_predictions":3,"stats_by_type":[{"tipo_caso":"laboral","total":3,"probabilidad_promedio":0.6,"tiempo_promedio":7}]}`)
	case r.URL.Path == "/pred/predictions/history":
		_, _ = io.WriteString(w, `{"predictions":[{"id":1,"tipo_caso":"laboral","limit":"`+r.URL.Query().Get("limit")+`"}]}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail":"Not Found"}`)
	}
}

func (f *fakeLegalAPI) bookedDate() any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.booked == nil {
		return nil
	}
	return f.booked["fecha"]
}

type testApp struct {
	*App
	server   *httptest.Server
	upstream *fakeLegalAPI
	client   *http.Client
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	fake := &fakeLegalAPI{}
	upstream := httptest.NewServer(fake)
	t.Cleanup(upstream.Close)

	cfg := &appconfig.Config{
		ChatAPIURL:            upstream.URL,
		PredictionAPIURL:      upstream.URL + "/pred",
		UpstreamTimeout:       2 * time.Second,
		PredictionDebounce:    30 * time.Millisecond,
		DisplayTimezone:       "UTC",
		TranscriptMaxMessages: 50,
		TranscriptTTL:         time.Hour,
		AdminJWTSecret:        "admin-secret",
	}
	app, err := Build(cfg, logging.New("error"), Deps{})
	require.NoError(t, err)

	srv := httptest.NewServer(app.Handler)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testApp{App: app, server: srv, upstream: fake, client: &http.Client{Jar: jar}}
}

func (a *testApp) do(t *testing.T, method, path, contentType, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, a.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := a.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestBuildRequiresConfig(t *testing.T) {
	_, err := Build(nil, nil, Deps{})
	assert.Error(t, err)
}

func TestBookingFlowEchoesIntoChat(t *testing.T) {
	app := newTestApp(t)
	tomorrow := time.Now().UTC().AddDate(0, 0, 1).Format(appointment.DateLayout)

	resp, body := app.do(t, http.MethodGet, "/api/citas/horarios/"+tomorrow, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var hours appointment.HoursView
	require.NoError(t, json.Unmarshal(body, &hours))
	assert.Len(t, hours.Options, 3)
	assert.Equal(t, "1:30 PM", hours.Options[2].Label)

	var userCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == identity.Key {
			userCookie = c
		}
	}
	require.NotNil(t, userCookie, "first contact issues the visitor cookie")

	resp, body = app.do(t, http.MethodPost, "/api/chat", "application/json", `{"mensaje":"Quiero una cita"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var reply chat.Reply
	require.NoError(t, json.Unmarshal(body, &reply))
	assert.Equal(t, "citas", reply.ScrollTo)

	form := url.Values{
		"nombre":        {"Ana López"},
		"email":         {"ana@example.com"},
		"telefono":      {"5512345678"},
		"fecha":         {tomorrow},
		"hora":          {"09:00"},
		"tipo_servicio": {"laboral"},
	}
	resp, body = app.do(t, http.MethodPost, "/api/citas", "application/x-www-form-urlencoded", form.Encode())
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.Equal(t, tomorrow+" 09:00", app.upstream.bookedDate())

	resp, body = app.do(t, http.MethodGet, "/api/chat/history", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history chat.HistoryView
	require.NoError(t, json.Unmarshal(body, &history))
	require.Len(t, history.Messages, 3)
	assert.Contains(t, history.Messages[2].Text, "ID de cita: 7")
	assert.False(t, history.AwaitingAppointment, "booking closes the chat's appointment request")
}

func TestBookingValidationIs422(t *testing.T) {
	app := newTestApp(t)
	resp, body := app.do(t, http.MethodPost, "/api/citas", "application/json", `{"nombre":"A"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var view appointment.SubmitView
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Contains(t, view.Errors, "El nombre debe tener al menos 2 caracteres")
	assert.Nil(t, app.upstream.bookedDate())
}

func TestPredictionEndpoints(t *testing.T) {
	app := newTestApp(t)

	resp, body := app.do(t, http.MethodPost, "/api/prediction", "application/json",
		`{"tipo_caso":"laboral","descripcion":"Despido injustificado tras 5 años","evidencias":["contrato"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var view prediction.SubmitView
	require.NoError(t, json.Unmarshal(body, &view))
	require.NotNil(t, view.Result)
	assert.Equal(t, prediction.TierHigh, view.Result.Tier)

	resp, body = app.do(t, http.MethodPost, "/api/prediction", "application/json", `{"tipo_caso":"laboral","descripcion":"corta"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(body))

	resp, body = app.do(t, http.MethodGet, "/api/prediction/init", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var init prediction.InitView
	require.NoError(t, json.Unmarshal(body, &init))
	assert.True(t, init.Connection.Connected)
	assert.Len(t, init.CaseTypes.Types, 2)

	resp, body = app.do(t, http.MethodGet, "/api/prediction/history", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"limit":"10"`)

	resp, _ = app.do(t, http.MethodGet, "/api/prediction/history?limit=abc", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = app.do(t, http.MethodGet, "/api/prediction/stats", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"total_predictions":3`)

	result, _ := json.Marshal(view.Result)
	resp, body = app.do(t, http.MethodPost, "/api/prediction/export", "application/json", string(result))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "prediccion_")
	var doc prediction.ExportDocument
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Equal(t, "75%", doc.SuccessProbability)
	assert.Equal(t, "6 meses", doc.EstimatedTime)

	resp, body = app.do(t, http.MethodPost, "/api/prediction/export", "application/json", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), "No hay resultados para exportar")
}

func TestAdminRoutes(t *testing.T) {
	app := newTestApp(t)

	resp, _ := app.do(t, http.MethodGet, "/admin/citas", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.AdminClaims{
		Role:             middleware.AdminRole,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("admin-secret"))
	require.NoError(t, err)

	get := func(path string) (*http.Response, []byte) {
		req, _ := http.NewRequest(http.MethodGet, app.server.URL+path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp, body
	}

	resp, body := get("/admin/citas")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"total":1`)

	// Generate some upstream traffic first so the snapshot has data.
	app.do(t, http.MethodGet, "/api/prediction/case_types", "", "")
	resp, body = get("/admin/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "case_types")
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t)

	resp, body := app.do(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","upstreams":{"chat":{"status":"ok"},"prediction":{"status":"ok"}}}`, string(body))

	resp, body = app.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "despacho_upstream_requests_total")
}
