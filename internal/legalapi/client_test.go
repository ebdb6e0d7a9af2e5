package legalapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/despacho-web/pkg/logging"
)

type recordedCall struct {
	endpoint string
	outcome  string
}

type recordingMetrics struct {
	calls []recordedCall
}

func (r *recordingMetrics) ObserveUpstream(endpoint, outcome string, _ float64) {
	r.calls = append(r.calls, recordedCall{endpoint: endpoint, outcome: outcome})
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *recordingMetrics) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	rec := &recordingMetrics{}
	return New(Options{
		ChatBaseURL:       ts.URL,
		PredictionBaseURL: ts.URL + "/pred",
		Logger:            logging.New("error"),
		Metrics:           rec,
	}), rec
}

func TestClient_AvailableHours(t *testing.T) {
	client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/horarios_disponibles/2026-11-02", r.URL.Path)
		_, _ = w.Write([]byte(`{"fecha":"2026-11-02","horarios_disponibles":["09:00","10:00"],"horarios_ocupados":["08:00"]}`))
	})

	hours, err := client.AvailableHours(context.Background(), "2026-11-02")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "10:00"}, hours.Available)
	assert.Equal(t, []string{"08:00"}, hours.Taken)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, recordedCall{"available_hours", "ok"}, rec.calls[0])
}

func TestClient_AvailableHoursNilListBecomesEmpty(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"fecha":"2026-11-02"}`))
	})

	hours, err := client.AvailableHours(context.Background(), "2026-11-02")
	require.NoError(t, err)
	assert.NotNil(t, hours.Available)
	assert.Empty(t, hours.Available)
}

func TestClient_BookAppointment(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/agendar_cita", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Ana López", body["nombre"])
		assert.Equal(t, "2026-11-02 09:00", body["fecha"])
		assert.Equal(t, "laboral", body["tipo_servicio"])

		_, _ = w.Write([]byte(`{"success":true,"cita_id":42,"detalles":{"fecha":"2026-11-02T09:00:00","servicio":"laboral","id":42}}`))
	})

	resp, err := client.BookAppointment(context.Background(), AppointmentRequest{
		Name:        "Ana López",
		Email:       "ana@example.com",
		Phone:       "5512345678",
		Date:        "2026-11-02 09:00",
		ServiceType: "laboral",
	})
	require.NoError(t, err)
	assert.Equal(t, FlexibleID("42"), resp.ID)
	assert.Equal(t, "laboral", resp.Details.Service)
	assert.Equal(t, "2026-11-02T09:00:00", resp.Details.Date)
}

func TestClient_BookAppointmentSurfacesDetail(t *testing.T) {
	client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"No hay disponibilidad para esa fecha"}`))
	})

	_, err := client.BookAppointment(context.Background(), AppointmentRequest{})
	require.Error(t, err)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "No hay disponibilidad para esa fecha", apiErr.UserMessage())
	assert.Equal(t, "400", rec.calls[0].outcome)
}

func TestClient_ValidationDetailIsNotUserMessage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":[{"loc":["body","email"],"msg":"value is not a valid email address"}]}`))
	})

	_, err := client.BookAppointment(context.Background(), AppointmentRequest{})
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Empty(t, apiErr.UserMessage())
	assert.Contains(t, apiErr.Detail, "valid email")
}

func TestClient_Chat(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Quiero agendar una cita", body["mensaje"])
		assert.Equal(t, "user_1", body["usuario_id"])
		_, _ = w.Write([]byte(`{"respuesta":"Claro","sugerencias":["Derecho Civil"],"requiere_cita":true}`))
	})

	resp, err := client.Chat(context.Background(), "Quiero agendar una cita", "user_1")
	require.NoError(t, err)
	assert.Equal(t, "Claro", resp.Reply)
	assert.Equal(t, []string{"Derecho Civil"}, resp.Suggestions)
	assert.True(t, resp.RequiresAppointment)
}

func TestClient_PredictUsesPredictionBaseURL(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pred/predict", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(raw), `"evidencias":[]`)
		_, _ = w.Write([]byte(`{"probabilidad_exito":0.72,"tipo_sentencia_probable":"favorable","tiempo_estimado_meses":8,"confianza_prediccion":0.8,"factores_riesgo":[],"recomendaciones":["Reunir contratos"]}`))
	})

	res, err := client.Predict(context.Background(), CaseIntake{CaseType: "civil", Description: "Incumplimiento de contrato"})
	require.NoError(t, err)
	assert.InDelta(t, 0.72, res.SuccessProbability, 1e-9)
	assert.Equal(t, 8, res.EstimatedMonths)
	assert.Equal(t, []string{"Reunir contratos"}, res.Recommendations)
}

func TestClient_PredictionHistoryLimit(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pred/predictions/history", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"predictions":[{"id":1,"tipo_caso":"civil"}]}`))
	})

	hist, err := client.PredictionHistory(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, hist.Predictions, 1)
	assert.Equal(t, "civil", hist.Predictions[0]["tipo_caso"])
}

func TestClient_StatsAndCaseTypes(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pred/predictions/stats":
			_, _ = w.Write([]byte(`{"total_predictions":3,"stats_by_type":[{"tipo_caso":"civil","total":3,"probabilidad_promedio":0.61,"tiempo_promedio":8.2}]}`))
		case "/pred/case_types":
			_, _ = w.Write([]byte(`{"tipos_casos":["civil","penal"],"detalles":{"civil":{"probabilidades_base":{"favorable":0.65},"tiempo_promedio":8,"factores_exito":["testigos"]}}}`))
		default:
			http.NotFound(w, r)
		}
	})

	stats, err := client.PredictionStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	require.Len(t, stats.ByType, 1)
	assert.InDelta(t, 8.2, stats.ByType[0].AverageMonths, 1e-9)

	types, err := client.CaseTypes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"civil", "penal"}, types.Types)
	assert.Equal(t, []string{"testigos"}, types.Details["civil"].SuccessFactors)
}

func TestClient_HealthPicksService(t *testing.T) {
	var paths []string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"healthy","model_loaded":true}`))
	})

	h, err := client.Health(context.Background(), ServicePrediction)
	require.NoError(t, err)
	assert.True(t, h.Healthy())
	require.NotNil(t, h.ModelLoaded)
	assert.True(t, *h.ModelLoaded)

	_, err = client.Health(context.Background(), ServiceChat)
	require.NoError(t, err)
	assert.Equal(t, []string{"/pred/health", "/health"}, paths)
}

func TestClient_InvalidJSON(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"citas":[`))
	})

	_, err := client.ListAppointments(context.Background())
	require.Error(t, err)
	_, isAPI := AsAPIError(err)
	assert.False(t, isAPI)
}

func TestClient_ListAppointments(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"citas":[{"id":7,"nombre":"Ana","fecha":"2026-11-02 09:00:00","tipo_servicio":"civil","estado":"pendiente"}]}`))
	})

	citas, err := client.ListAppointments(context.Background())
	require.NoError(t, err)
	require.Len(t, citas, 1)
	assert.Equal(t, FlexibleID("7"), citas[0].ID)
	assert.Equal(t, "pendiente", citas[0].Status)
}

func TestClient_ContextCancelled(t *testing.T) {
	client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte(`{}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Chat(ctx, "hola", "user_1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, "error", rec.calls[0].outcome)
}

func TestFlexibleID(t *testing.T) {
	var payload struct {
		A FlexibleID `json:"a"`
		B FlexibleID `json:"b"`
		C FlexibleID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":12,"b":"CITA-9","c":null}`), &payload))
	assert.Equal(t, FlexibleID("12"), payload.A)
	assert.Equal(t, FlexibleID("CITA-9"), payload.B)
	assert.Equal(t, FlexibleID(""), payload.C)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":12,"b":"CITA-9","c":""}`, string(out))
}

func TestFlexibleIDKeepsNonCanonicalNumbersQuoted(t *testing.T) {
	for _, raw := range []string{`"007"`, `"+5"`, `"-0"`, `42`, `-3`} {
		var id FlexibleID
		require.NoError(t, json.Unmarshal([]byte(raw), &id), raw)

		out, err := json.Marshal(AppointmentResponse{Success: true, ID: id})
		require.NoError(t, err, raw)

		var back AppointmentResponse
		require.NoError(t, json.Unmarshal(out, &back), raw)
		assert.Equal(t, id, back.ID, raw)
	}

	out, err := json.Marshal(FlexibleID("007"))
	require.NoError(t, err)
	assert.Equal(t, `"007"`, string(out))
}

func TestNewAPIErrorTruncatesOnRuneBoundary(t *testing.T) {
	body := strings.Repeat("a", maxErrorBody-1) + strings.Repeat("ñ", 10)

	apiErr := NewAPIError("agendar_cita", http.StatusInternalServerError, []byte(body))

	assert.True(t, utf8.ValidString(apiErr.Detail))
	assert.Equal(t, strings.Repeat("a", maxErrorBody-1), apiErr.Detail)
	assert.Empty(t, apiErr.UserMessage())

	short := NewAPIError("chat", http.StatusBadGateway, []byte("Error interno: ñandú"))
	assert.Equal(t, "Error interno: ñandú", short.Detail)
}
