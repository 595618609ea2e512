package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/sms-dispatch-gateway/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/sms-dispatch-gateway/internal/http/middleware"
	"github.com/wolfman30/sms-dispatch-gateway/internal/line"
	"github.com/wolfman30/sms-dispatch-gateway/pkg/logging"
)

// Config holds router configuration. Nil handlers leave their routes
// unmounted.
type Config struct {
	Logger           *logging.Logger
	Status           *handlers.StatusHandler
	LineWebhook      *line.Handler
	ProviderCallback *handlers.ProviderCallbackHandler
	Quotation        *handlers.QuotationHandler
	AdminBatches     *handlers.AdminBatchesHandler
	AdminAuthSecret  string
	MetricsHandler   http.Handler

	// PublicLimiter throttles the inbound webhook and quotation routes.
	PublicLimiter *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	if cfg.Status != nil {
		r.Get("/", cfg.Status.Index)
		r.Get("/health", cfg.Status.Health)
		r.Get("/api/status", cfg.Status.Status)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	if cfg.ProviderCallback != nil {
		r.Get("/thaibulksms-webhook", cfg.ProviderCallback.Handle)
	}

	// Inbound traffic from the chat platform and the quotation form.
	r.Group(func(public chi.Router) {
		if cfg.PublicLimiter != nil {
			public.Use(httpmiddleware.RateLimit(cfg.PublicLimiter))
		}
		if cfg.LineWebhook != nil {
			public.Post("/webhook", cfg.LineWebhook.Webhook)
		}
		if cfg.Quotation != nil {
			public.Post("/quotation", cfg.Quotation.Create)
		}
	})

	if cfg.AdminBatches != nil && cfg.AdminAuthSecret != "" {
		r.Group(func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret, cfg.Logger))
			admin.Post("/api/batches", cfg.AdminBatches.CreateBatch)
			admin.Get("/api/batches", cfg.AdminBatches.ListBatches)
			admin.Delete("/api/jobs/{jobID}", cfg.AdminBatches.CancelJob)
			admin.Put("/api/lists/{name}", cfg.AdminBatches.PutList)
		})
	}

	return r
}
