// Package httptransport is the thin HTTP layer. Handlers delegate to domain
// services without embedding business logic so transport concerns remain
// isolated; the wire format here is not a stability guarantee.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vigil/internal/audit"
	"vigil/internal/monitor"
	"vigil/internal/trust"
)

// Services bundles the domain dependencies the router needs.
type Services struct {
	Engine   *trust.Engine
	AuditLog *audit.Logger
	Monitor  *monitor.Monitor
	Logger   *slog.Logger
}

// NewRouter wires all public endpoints.
func NewRouter(s Services) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	access := &AccessHandler{engine: s.Engine, logger: s.Logger}
	access.Register(r)

	auditH := &AuditHandler{log: s.AuditLog, logger: s.Logger}
	auditH.Register(r)

	monitorH := &MonitorHandler{monitor: s.Monitor, logger: s.Logger}
	monitorH.Register(r)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
