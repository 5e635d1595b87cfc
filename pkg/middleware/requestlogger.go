package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/stripe-gateway/pkg/logger"
)

// HeaderTransactionID optionally carries the merchant transaction id so the
// request logger can tag lines before the body is decoded.
const HeaderTransactionID = "X-Transaction-ID"

// RequestLogger stores a request-scoped logger in the context, enriched with
// correlation_id, transaction_id and the OpenTelemetry trace ids. Mount it
// after RequestLogging and Tracing.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if id := r.Header.Get(HeaderTransactionID); id != "" && logger.TransactionIDFromContext(ctx) == "" {
				ctx = logger.WithTransactionID(ctx, id)
			}

			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
