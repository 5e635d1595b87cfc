package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/stripe-gateway/pkg/health"
	"github.com/utafrali/stripe-gateway/pkg/middleware"
)

// NewRouter creates a chi router with all gateway routes registered.
func NewRouter(
	gatewayHandler *GatewayHandler,
	healthHandler *health.Handler,
	serviceName string,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))

	// Operational endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/gateway", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/authorize", gatewayHandler.Authorize)
		r.Post("/authorize-with-token", gatewayHandler.AuthorizeWithToken)
		r.Post("/capture", gatewayHandler.Capture)
		r.Post("/credit", gatewayHandler.Credit)
		r.Post("/void", gatewayHandler.Void)
		r.Post("/authorize-and-capture", gatewayHandler.AuthorizeAndCapture)
		r.Post("/authorize-and-capture-with-token", gatewayHandler.AuthorizeAndCaptureWithToken)
		r.Post("/gift-cards", gatewayHandler.CreateGiftCard)
		r.Post("/gift-cards/balance", gatewayHandler.GetBalance)
		r.Post("/validate", gatewayHandler.ValidateAuthTransaction)
		r.Get("/authorization-id-key-name", gatewayHandler.GetAuthorizationIDKeyName)
	})

	return r
}
