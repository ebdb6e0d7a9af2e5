package bootstrap

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/despacho-web/internal/api/router"
	"github.com/wolfman30/despacho-web/internal/appointment"
	"github.com/wolfman30/despacho-web/internal/chat"
	appconfig "github.com/wolfman30/despacho-web/internal/config"
	"github.com/wolfman30/despacho-web/internal/http/handlers"
	"github.com/wolfman30/despacho-web/internal/legalapi"
	"github.com/wolfman30/despacho-web/internal/observability/metrics"
	"github.com/wolfman30/despacho-web/internal/prediction"
	"github.com/wolfman30/despacho-web/internal/webchat"
	"github.com/wolfman30/despacho-web/pkg/logging"
)

// Deps are the runtime resources the app is built on. Every field is
// optional.
type Deps struct {
	Redis *redis.Client
	// Registry receives the widget metrics; a fresh registry is used when nil.
	Registry *prometheus.Registry
	// HTTPClient overrides the upstream client's transport.
	HTTPClient *http.Client
}

// App is the wired BFF.
type App struct {
	Handler      http.Handler
	API          *legalapi.Client
	Appointments *appointment.Service
	Chat         *chat.Service
	Prediction   *prediction.Service
	Metrics      *metrics.WidgetMetrics
	Registry     *prometheus.Registry
}

// Build wires the upstream client, the three widget services, and the router.
func Build(cfg *appconfig.Config, logger *logging.Logger, deps Deps) (*App, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	widgetMetrics := metrics.NewWidgetMetrics(registry)
	loc := appointment.LoadLocation(cfg.DisplayTimezone)

	api := legalapi.New(legalapi.Options{
		ChatBaseURL:       cfg.ChatAPIURL,
		PredictionBaseURL: cfg.PredictionAPIURL,
		Timeout:           cfg.UpstreamTimeout,
		HTTPClient:        deps.HTTPClient,
		Logger:            logger,
		Metrics:           widgetMetrics,
	})

	var store chat.Store
	if rs := chat.NewRedisStore(deps.Redis, int(cfg.TranscriptMaxMessages), cfg.TranscriptTTL); rs != nil {
		store = rs
	} else {
		store = chat.NewMemoryStore(int(cfg.TranscriptMaxMessages))
	}
	chatSvc := chat.NewService(chat.Config{
		API:     api,
		Store:   store,
		Metrics: widgetMetrics,
		Logger:  logger,
	})
	chatHandler := webchat.NewHandler(chatSvc, logger)

	appointments := appointment.NewService(appointment.Config{
		API:      api,
		Notifier: chatHandler,
		Metrics:  widgetMetrics,
		Logger:   logger,
		Location: loc,
	})

	predictions := prediction.NewService(prediction.Config{
		API:      api,
		Metrics:  widgetMetrics,
		Logger:   logger,
		Debounce: cfg.PredictionDebounce,
		Location: loc,
	})

	handler := router.New(&router.Config{
		Logger:             logger,
		Health:             handlers.NewHealthHandler(api),
		Appointments:       handlers.NewAppointmentHandler(appointments, logger),
		Chat:               chatHandler,
		Prediction:         handlers.NewPredictionHandler(predictions, logger),
		AdminMetrics:       handlers.NewAdminMetricsHandler(registry, logger),
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		CookieSecure:       cfg.CookieSecure,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	return &App{
		Handler:      handler,
		API:          api,
		Appointments: appointments,
		Chat:         chatSvc,
		Prediction:   predictions,
		Metrics:      widgetMetrics,
		Registry:     registry,
	}, nil
}
