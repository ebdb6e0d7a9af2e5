// Package legalapi is the typed HTTP+JSON client for the upstream legal
// services: the chat/appointment service and the prediction service.
package legalapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/despacho-web/pkg/logging"
)

const (
	defaultChatBaseURL       = "http://localhost:8000"
	defaultPredictionBaseURL = "http://localhost:8003"
	defaultTimeout           = 20 * time.Second
)

// Service selects which upstream a call goes to.
type Service string

const (
	ServiceChat       Service = "chat"
	ServicePrediction Service = "prediction"
)

// MetricsRecorder receives one observation per upstream call.
type MetricsRecorder interface {
	ObserveUpstream(endpoint, outcome string, seconds float64)
}

// Options configures a Client.
type Options struct {
	ChatBaseURL       string
	PredictionBaseURL string
	// Timeout bounds every call. Zero means the package default.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
	Metrics    MetricsRecorder
}

// Client wraps the upstream REST endpoints used by the widgets.
type Client struct {
	httpClient        *http.Client
	chatBaseURL       string
	predictionBaseURL string
	logger            *logging.Logger
	metrics           MetricsRecorder
	tracer            trace.Tracer
}

// New constructs an upstream client.
func New(opts Options) *Client {
	if strings.TrimSpace(opts.ChatBaseURL) == "" {
		opts.ChatBaseURL = defaultChatBaseURL
	}
	if strings.TrimSpace(opts.PredictionBaseURL) == "" {
		opts.PredictionBaseURL = defaultPredictionBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		httpClient:        httpClient,
		chatBaseURL:       strings.TrimRight(opts.ChatBaseURL, "/"),
		predictionBaseURL: strings.TrimRight(opts.PredictionBaseURL, "/"),
		logger:            opts.Logger,
		metrics:           opts.Metrics,
		tracer:            otel.Tracer("despacho.internal.legalapi"),
	}
}

// AvailableHours lists open slots ("HH:MM") for a date ("YYYY-MM-DD").
func (c *Client) AvailableHours(ctx context.Context, date string) (*AvailableHours, error) {
	path := "/horarios_disponibles/" + url.PathEscape(date)
	var out AvailableHours
	if err := c.doJSON(ctx, ServiceChat, "available_hours", http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("available hours: %w", err)
	}
	if out.Available == nil {
		out.Available = []string{}
	}
	return &out, nil
}

// BookAppointment submits a booking request.
func (c *Client) BookAppointment(ctx context.Context, req AppointmentRequest) (*AppointmentResponse, error) {
	var out AppointmentResponse
	if err := c.doJSON(ctx, ServiceChat, "book_appointment", http.MethodPost, "/agendar_cita", req, &out); err != nil {
		return nil, fmt.Errorf("book appointment: %w", err)
	}
	return &out, nil
}

// ListAppointments returns every stored appointment (admin view).
func (c *Client) ListAppointments(ctx context.Context) ([]Appointment, error) {
	var wrapped struct {
		Appointments []Appointment `json:"citas"`
	}
	if err := c.doJSON(ctx, ServiceChat, "list_appointments", http.MethodGet, "/citas", nil, &wrapped); err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	if wrapped.Appointments == nil {
		return []Appointment{}, nil
	}
	return wrapped.Appointments, nil
}

// Chat posts a visitor message and returns the assistant reply.
func (c *Client) Chat(ctx context.Context, message, userID string) (*ChatResponse, error) {
	var out ChatResponse
	body := chatRequest{Message: message, UserID: userID}
	if err := c.doJSON(ctx, ServiceChat, "chat", http.MethodPost, "/chat", body, &out); err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}
	return &out, nil
}

// CaseTypes lists the case types the prediction model knows.
func (c *Client) CaseTypes(ctx context.Context) (*CaseTypes, error) {
	var out CaseTypes
	if err := c.doJSON(ctx, ServicePrediction, "case_types", http.MethodGet, "/case_types", nil, &out); err != nil {
		return nil, fmt.Errorf("case types: %w", err)
	}
	return &out, nil
}

// Health probes one of the upstream services.
func (c *Client) Health(ctx context.Context, svc Service) (*Health, error) {
	var out Health
	if err := c.doJSON(ctx, svc, "health_"+string(svc), http.MethodGet, "/health", nil, &out); err != nil {
		return nil, fmt.Errorf("health %s: %w", svc, err)
	}
	return &out, nil
}

// Predict requests an outcome prediction for a case.
func (c *Client) Predict(ctx context.Context, intake CaseIntake) (*PredictionResult, error) {
	if intake.Evidence == nil {
		intake.Evidence = []string{}
	}
	var out PredictionResult
	if err := c.doJSON(ctx, ServicePrediction, "predict", http.MethodPost, "/predict", intake, &out); err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	return &out, nil
}

// PredictionStats returns aggregate prediction statistics.
func (c *Client) PredictionStats(ctx context.Context) (*PredictionStats, error) {
	var out PredictionStats
	if err := c.doJSON(ctx, ServicePrediction, "prediction_stats", http.MethodGet, "/predictions/stats", nil, &out); err != nil {
		return nil, fmt.Errorf("prediction stats: %w", err)
	}
	return &out, nil
}

// PredictionHistory returns the latest predictions, newest first.
func (c *Client) PredictionHistory(ctx context.Context, limit int) (*PredictionHistory, error) {
	path := "/predictions/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out PredictionHistory
	if err := c.doJSON(ctx, ServicePrediction, "prediction_history", http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("prediction history: %w", err)
	}
	if out.Predictions == nil {
		out.Predictions = []map[string]any{}
	}
	return &out, nil
}

func (c *Client) baseURL(svc Service) string {
	if svc == ServicePrediction {
		return c.predictionBaseURL
	}
	return c.chatBaseURL
}

func (c *Client) doJSON(ctx context.Context, svc Service, endpoint, method, path string, body interface{}, out interface{}) (err error) {
	ctx, span := c.tracer.Start(ctx, "legalapi."+endpoint, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("despacho.upstream", string(svc)),
		attribute.String("despacho.path", path),
	)

	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			if apiErr, ok := AsAPIError(err); ok {
				outcome = strconv.Itoa(apiErr.StatusCode)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		if c.metrics != nil {
			c.metrics.ObserveUpstream(endpoint, outcome, time.Since(start).Seconds())
		}
	}()

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL(svc)+path, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := NewAPIError(endpoint, resp.StatusCode, respBody)
		c.logger.Warn("legal API non-2xx response", "status", resp.StatusCode, "path", path, "detail", apiErr.Detail)
		return apiErr
	}

	if len(respBody) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
