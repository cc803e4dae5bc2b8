// Package httpapi wires the feature handlers into one router behind the
// shared middleware chain.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	certhandler "veritag/internal/certificate/handler"
	"veritag/internal/platform/middleware"
	verifhandler "veritag/internal/verification/handler"
	"veritag/pkg/platform/httputil"
)

// HealthChecker reports readiness of a backing dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Deps carries everything the router mounts.
type Deps struct {
	Logger       *slog.Logger
	Certificates *certhandler.Handler
	Verification *verifhandler.Handler

	// Health checks run on /healthz; nil entries are skipped.
	Checks map[string]HealthChecker
}

// NewRouter assembles the public HTTP surface. Recovery sits outermost so
// any panic below still yields the generic processing-error payload.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Timeout(60 * time.Second))

	d.Verification.Register(r)
	d.Certificates.Register(r)

	r.Get("/healthz", d.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (d Deps) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(d.Checks))
	for name, check := range d.Checks {
		if check == nil {
			continue
		}
		if err := check.Health(ctx); err != nil {
			checks[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	httputil.WriteJSON(w, status, map[string]any{
		"status": http.StatusText(status),
		"checks": checks,
	})
}
