package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/despacho-web/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/despacho-web/internal/http/middleware"
	"github.com/wolfman30/despacho-web/internal/webchat"
	"github.com/wolfman30/despacho-web/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger *logging.Logger

	Health       *handlers.HealthHandler
	Appointments *handlers.AppointmentHandler
	Chat         *webchat.Handler
	Prediction   *handlers.PredictionHandler
	AdminMetrics *handlers.AdminMetricsHandler

	MetricsHandler     http.Handler
	AdminAuthSecret    string
	CORSAllowedOrigins []string
	CookieSecure       bool
	RateLimitRPS       float64
	RateLimitBurst     int
}

// New creates the chi router with every widget route configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Group(func(public chi.Router) {
		if cfg.Health != nil {
			public.Get("/health", cfg.Health.HandleHealth)
		} else {
			public.Get("/health", handlers.NewHealthHandler(nil).HandleHealth)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(httpmiddleware.Visitor(cfg.CookieSecure))

		// The websocket needs the raw connection, so it skips compression
		// and rate limiting.
		if cfg.Chat != nil {
			api.Get("/chat/ws", cfg.Chat.HandleWebSocket)
		}

		api.Group(func(widgets chi.Router) {
			widgets.Use(middleware.Compress(5))
			widgets.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))

			if cfg.Appointments != nil {
				widgets.Route("/citas", func(r chi.Router) {
					r.Get("/horarios/{fecha}", cfg.Appointments.HandleAvailableHours)
					r.Get("/form", cfg.Appointments.HandleForm)
					r.Post("/", cfg.Appointments.HandleSubmit)
				})
			}
			if cfg.Chat != nil {
				widgets.Route("/chat", func(r chi.Router) {
					r.Post("/", cfg.Chat.HandleMessage)
					r.Get("/history", cfg.Chat.HandleHistory)
					r.Post("/quick/{prompt}", cfg.Chat.HandleQuickPrompt)
				})
			}
			if cfg.Prediction != nil {
				widgets.Route("/prediction", func(r chi.Router) {
					r.Post("/", cfg.Prediction.HandleSubmit)
					r.Get("/init", cfg.Prediction.HandleInit)
					r.Get("/case_types", cfg.Prediction.HandleCaseTypes)
					r.Get("/stats", cfg.Prediction.HandleStats)
					r.Get("/history", cfg.Prediction.HandleHistory)
					r.Post("/export", cfg.Prediction.HandleExport)
				})
			}
		})
	})

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
		if cfg.Appointments != nil {
			admin.Get("/citas", cfg.Appointments.HandleList)
		}
		if cfg.AdminMetrics != nil {
			admin.Get("/metrics", cfg.AdminMetrics.HandleSnapshot)
		}
	})

	return r
}
