package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/peiffer1998/EIPR-Portal-sub001/pkg/resilience"
)

// Timeout bounds each request with the handler timeout unless the caller
// already set a deadline on the context
func Timeout(config *resilience.TimeoutConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, hasDeadline := r.Context().Deadline(); hasDeadline {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := config.HandlerContext(r.Context())
			defer cancel()

			logger.Debug("Applied handler timeout",
				zap.String("path", r.URL.Path),
				zap.Duration("timeout", config.HTTPHandler))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
