package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nthlam/WEB-NOVA-SCI/internal/service"
	"github.com/nthlam/WEB-NOVA-SCI/pkg/health"
	"github.com/nthlam/WEB-NOVA-SCI/pkg/middleware"
)

// RoleShopClient is the role required for buyer-facing endpoints.
const RoleShopClient = "shop_client"

// NewRouter creates a chi router with all ordering routes registered.
func NewRouter(
	checkoutService *service.CheckoutService,
	webhookService *service.WebhookService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	corsCfg middleware.CORSConfig,
	pprofCIDRs []string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("webnova"))
	r.Use(middleware.Tracing("webnova"))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, pprofCIDRs, logger)

	checkoutHandler := NewCheckoutHandler(checkoutService, logger)
	webhookHandler := NewWebhookHandler(webhookService, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		// Payment processor callback; authenticated by payload signature.
		r.Post("/payment/webhook", webhookHandler.HandlePaymentResult)

		// Status polling is deliberately sessionless. Intermediaries must not
		// cache it; the buyer's client polls until the status moves.
		r.With(middleware.NoStore()).Get("/orders/{id}/status", checkoutHandler.GetOrderStatus)

		// Buyer endpoints behind the identity layer's trusted headers.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Identity())
			r.Use(middleware.RequireRole(RoleShopClient))

			r.Post("/checkout", checkoutHandler.Checkout)
			r.Get("/orders", checkoutHandler.ListOrders)
			r.Get("/orders/{id}", checkoutHandler.GetOrder)
		})
	})

	return r
}
