package observability

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes mounts the operational endpoints on the router:
// /metrics for Prometheus, /healthz for dependency health and /readyz for a plain liveness answer.
func RegisterRoutes(r chi.Router, healthChecker *HealthChecker) {
	r.Handle("/metrics", promhttp.Handler())

	if healthChecker != nil {
		r.Get("/healthz", healthChecker.HealthHandler())
	}

	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
}
