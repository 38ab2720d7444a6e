package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openfreight/linehaul/internal/invoices"
	"github.com/openfreight/linehaul/internal/loads"
	"github.com/openfreight/linehaul/internal/observability"
	"github.com/openfreight/linehaul/internal/payments"
	"github.com/openfreight/linehaul/internal/recon"
)

// RouterDeps aggregates the handlers mounted on the HTTP surface.
type RouterDeps struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	Loads    *loads.Handler
	Payments *payments.Handler
	Invoices *invoices.Handler
	Recon    *recon.Handler

	// Extra mounts, keyed by path prefix. Used for the jobs health surface.
	Extra map[string]func(chi.Router)
}

// NewRouter assembles the service router with the full middleware chain.
func NewRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  deps.Logger,
		Config:  deps.Config,
		Metrics: deps.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	r.Route("/loads", deps.Loads.MountRoutes)
	r.Route("/payments", deps.Payments.MountRoutes)
	r.Route("/invoices", deps.Invoices.MountRoutes)
	r.Route("/recon", deps.Recon.MountRoutes)

	for prefix, mount := range deps.Extra {
		r.Route(prefix, mount)
	}
	return r
}
