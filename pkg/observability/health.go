package observability

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/peiffer1998/EIPR-Portal-sub001/pkg/encoding"
)

// HealthStatus represents the health status of the service
type HealthStatus struct {
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Status    string            `json:"status"`
}

// CheckFunc reports a dependency as unhealthy by returning an error
type CheckFunc func(ctx context.Context) error

// HealthChecker runs named dependency checks. Required checks make the
// service unhealthy when they fail; optional ones only mark it degraded.
type HealthChecker struct {
	required map[string]CheckFunc
	optional map[string]CheckFunc
	timeout  time.Duration
	now      func() time.Time
}

// NewHealthChecker creates a HealthChecker with a per-check timeout
func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthChecker{
		required: make(map[string]CheckFunc),
		optional: make(map[string]CheckFunc),
		timeout:  timeout,
		now:      time.Now,
	}
}

// Require registers a check the service cannot run without, such as the database
func (h *HealthChecker) Require(name string, check CheckFunc) {
	h.required[name] = check
}

// Optional registers a check for a dependency the service degrades without, such as the cache
func (h *HealthChecker) Optional(name string, check CheckFunc) {
	h.optional[name] = check
}

// Check performs health checks and returns the status
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	checks := make(map[string]string, len(h.required)+len(h.optional))
	overall := "healthy"

	for _, name := range sortedNames(h.required) {
		if err := h.run(ctx, h.required[name]); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			overall = "unhealthy"
		} else {
			checks[name] = "healthy"
		}
	}
	for _, name := range sortedNames(h.optional) {
		if err := h.run(ctx, h.optional[name]); err != nil {
			checks[name] = "degraded: " + err.Error()
			if overall == "healthy" {
				overall = "degraded"
			}
		} else {
			checks[name] = "healthy"
		}
	}

	return HealthStatus{
		Status:    overall,
		Timestamp: h.now().UTC(),
		Checks:    checks,
	}
}

func (h *HealthChecker) run(ctx context.Context, check CheckFunc) error {
	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return check(checkCtx)
}

// HealthHandler returns an HTTP handler for health checks.
// Only an unhealthy status answers 503.
func (h *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := h.Check(r.Context())

		code := http.StatusOK
		if status.Status == "unhealthy" {
			code = http.StatusServiceUnavailable
		}
		_ = encoding.WriteJSON(w, code, status)
	}
}

func sortedNames(m map[string]CheckFunc) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
