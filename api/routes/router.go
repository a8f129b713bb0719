package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/s8nclone/receipt-pipeline/api/controllers"
	webhookcontrollers "github.com/s8nclone/receipt-pipeline/api/controllers/webhooks"
	"github.com/s8nclone/receipt-pipeline/api/middleware"
	"github.com/s8nclone/receipt-pipeline/internal/payment"
	"github.com/s8nclone/receipt-pipeline/internal/webhooks"
	"github.com/s8nclone/receipt-pipeline/pkg/config"
	"github.com/s8nclone/receipt-pipeline/pkg/db"
	"github.com/s8nclone/receipt-pipeline/pkg/logger"
	"github.com/s8nclone/receipt-pipeline/pkg/redis"
	"github.com/s8nclone/receipt-pipeline/pkg/storage/gcs"
)

// Params carries every dependency the router wires into a controller. It replaces the teacher's
// long positional NewRouter argument list now that the authenticated marketplace surface it
// served is gone and the API has exactly one public route group (§6).
type Params struct {
	Config          *config.Config
	Logger          *logger.Logger
	DB              db.Pinger
	Redis           redis.Pinger
	GCS             gcs.Pinger
	WebhookRegistry *webhooks.Registry
	WebhookGuard    *webhooks.PreCheckGuard
	WebhookRepo     *webhooks.Repository
	PaymentService  *payment.Service
}

// NewRouter builds the HTTP surface: the payment webhook intake (§4.1, §6), health checks, and
// Prometheus scrape endpoint.
func NewRouter(p Params) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(p.Logger),
		middleware.RequestID(p.Logger),
		middleware.Logging(p.Logger),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, p.Logger, p.DB, p.Redis, p.GCS))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/webhooks/payment", func(r chi.Router) {
		r.Post("/{provider}", webhookcontrollers.PaymentWebhook(
			p.WebhookRegistry,
			p.WebhookGuard,
			p.WebhookRepo,
			p.PaymentService,
			p.Config.Webhook,
			p.Logger,
		))
	})

	return r
}
