package httptransport

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"vigil/internal/audit"
	"vigil/internal/audit/store"
	"vigil/internal/monitor"
	"vigil/internal/trust"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/httputil"
	"vigil/pkg/platform/sentinel"
)

// EvaluateRequest is the wire form of an access evaluation.
type EvaluateRequest struct {
	Context  trust.SecurityContext `json:"context"`
	Resource string                `json:"resource"`
	Action   string                `json:"action"`
}

// AccessHandler exposes the zero-trust evaluation endpoint.
type AccessHandler struct {
	engine *trust.Engine
	logger *slog.Logger
}

func (h *AccessHandler) Register(r chi.Router) {
	r.Post("/access/evaluate", h.HandleEvaluate)
}

func (h *AccessHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	req, ok := httputil.DecodeJSON[EvaluateRequest](w, r, h.logger)
	if !ok {
		return
	}
	if req.Resource == "" || req.Action == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "resource and action are required"))
		return
	}
	if req.Context.IPAddress == "" {
		req.Context.IPAddress = r.RemoteAddr
	}
	if req.Context.UserAgent == "" {
		req.Context.UserAgent = r.UserAgent()
	}

	decision, err := h.engine.EvaluateAccess(ctx, req.Context, req.Resource, req.Action)
	if err != nil {
		h.logger.ErrorContext(ctx, "access evaluation failed",
			"resource", req.Resource,
			"action", req.Action,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "access evaluation served",
		"resource", req.Resource,
		"action", req.Action,
		"allowed", decision.Allowed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, decision)
}

// AuditHandler exposes read-side views of the audit chain.
type AuditHandler struct {
	log    *audit.Logger
	logger *slog.Logger
}

func (h *AuditHandler) Register(r chi.Router) {
	r.Get("/audit/events", h.HandleEvents)
	r.Get("/audit/integrity", h.HandleIntegrity)
	r.Get("/audit/proof/{eventID}", h.HandleProof)
	r.Get("/audit/export", h.HandleExport)
	r.Get("/audit/statistics", h.HandleStatistics)
}

func (h *AuditHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.Filter{
		UserID:   q.Get("userId"),
		Action:   q.Get("action"),
		Resource: q.Get("resource"),
		Severity: audit.Severity(q.Get("severity")),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be a non-negative integer"))
			return
		}
		filter.Limit = n
	}

	var out []audit.Event
	for _, e := range h.log.Events() {
		if !filter.Matches(e) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"events": out,
		"count":  len(out),
	})
}

func (h *AuditHandler) HandleIntegrity(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.log.VerifyChainIntegrity())
}

func (h *AuditHandler) HandleProof(w http.ResponseWriter, r *http.Request) {
	proof, err := h.log.CreateProof(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, proof)
}

func (h *AuditHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	start, ok := parseTimeParam(w, r, "start")
	if !ok {
		return
	}
	end, ok := parseTimeParam(w, r, "end")
	if !ok {
		return
	}

	export, err := h.log.ExportLog(start, end)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "audit export failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, export)
}

func (h *AuditHandler) HandleStatistics(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.log.GetStatistics())
}

// MonitorHandler exposes the security dashboard and alert lifecycle.
type MonitorHandler struct {
	monitor *monitor.Monitor
	logger  *slog.Logger
}

func (h *MonitorHandler) Register(r chi.Router) {
	r.Get("/monitor/dashboard", h.HandleDashboard)
	r.Post("/monitor/alerts/{alertID}/acknowledge", h.HandleAcknowledge)
	r.Post("/monitor/alerts/{alertID}/resolve", h.HandleResolve)
}

func (h *MonitorHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.monitor.GetDashboard())
}

func (h *MonitorHandler) HandleAcknowledge(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.monitor.Acknowledge)
}

func (h *MonitorHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.monitor.Resolve)
}

func (h *MonitorHandler) transition(w http.ResponseWriter, r *http.Request, fn func(string) (monitor.Alert, error)) {
	id := chi.URLParam(r, "alertID")
	alert, err := fn(id)
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			httputil.WriteError(w, dErrors.Wrap(dErrors.CodeInvalidInput, "alert state does not permit this transition", err))
			return
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, alert)
}

func parseTimeParam(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, name+" must be RFC3339"))
		return time.Time{}, false
	}
	return t, true
}
