// Package httpserver wires the Orchestrator and Rule Engine behind a chi
// router (C9/C12).
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/hashicorp/go-hclog"

	"github.com/privoscope/privoscope/internal/domain/findings"
	"github.com/privoscope/privoscope/internal/engine"
	"github.com/privoscope/privoscope/internal/middleware"
	"github.com/privoscope/privoscope/internal/orchestrator"
)

// Router exposes the Orchestrator and Rule Engine over HTTP, under
// /v1/{tenant} per spec §6.1.
type Router struct {
	orch *orchestrator.Orchestrator
	eng  *engine.Engine
}

// NewRouter builds the full handler tree: ops endpoints unauthenticated,
// /v1/{tenant}/... behind API-key auth, tenant validation, structured
// logging, request metrics, and per-tenant rate limiting.
func NewRouter(orch *orchestrator.Orchestrator, eng *engine.Engine, validKeys map[string]string, checkers map[string]middleware.HealthChecker, logger hclog.Logger) http.Handler {
	r := &Router{orch: orch, eng: eng}
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	mux.Use(middleware.LoggingMiddleware(logger))
	mux.Use(middleware.MetricsMiddleware)

	mux.Get("/health", middleware.HealthHandler(checkers))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Use(middleware.APIKeyAuth(validKeys))
		rt.Use(middleware.RequireValidTenant)
		rt.Use(middleware.RateLimitMiddleware(60, 1))

		rt.Post("/scans", r.wrap(r.handleTriggerScan))
		rt.Get("/scans", r.wrap(r.handleListScans))
		rt.Get("/scans/{correlation_id}", r.wrap(r.handleGetReport))
		rt.Get("/scans/{correlation_id}/stages/{stage_id}", r.wrap(r.handleGetStage))
		rt.Get("/scans/{correlation_id}/errors", r.wrap(r.handleListScanErrors))
		rt.Get("/rules", r.wrap(r.handleRules))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			if errors.Is(err, errNotFound) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

var errNotFound = errors.New("not found")

// POST /v1/{tenant}/scans
// Body: findings.ScanRequest (project_path XOR inline_source, plus options).
// Runs the Orchestrator synchronously, run-until-done, returning the
// finished Report.
func (r *Router) handleTriggerScan(w http.ResponseWriter, req *http.Request) error {
	var body findings.ScanRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return err
	}
	body.TenantID = chi.URLParam(req, "tenant")
	if body.Options.MaxBytesPerFile == 0 && body.Options.SeverityFloor == "" {
		body.Options = findings.DefaultOptions()
	}
	if err := middleware.ValidateProjectPath(body.ProjectPath); err != nil {
		return err
	}

	middleware.IncrementScans()
	middleware.IncrementScansRunning()
	defer middleware.DecrementScansRunning()

	ctx, cancel := context.WithTimeout(req.Context(), 30*time.Minute)
	defer cancel()

	report, locator := r.orch.Run(ctx, body)
	if report.ExecutiveSummary.Status == findings.StatusPartial {
		middleware.IncrementScansFailed()
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(map[string]any{
		"report":  report,
		"locator": locator,
	})
}

// GET /v1/{tenant}/scans/{correlation_id}
func (r *Router) handleGetReport(w http.ResponseWriter, req *http.Request) error {
	correlationID := chi.URLParam(req, "correlation_id")
	payload, ok, err := r.orch.Store.GetStageResult(req.Context(), correlationID, "S5_REPORT")
	if err != nil {
		return err
	}
	if !ok {
		return errNotFound
	}

	var result findings.StageResult[struct {
		Report  findings.Report `json:"report"`
		Locator string          `json:"locator"`
	}]
	if err := json.Unmarshal(payload, &result); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(result.Output.Report)
}

// GET /v1/{tenant}/scans/{correlation_id}/stages/{stage_id}
func (r *Router) handleGetStage(w http.ResponseWriter, req *http.Request) error {
	correlationID := chi.URLParam(req, "correlation_id")
	stageID := chi.URLParam(req, "stage_id")

	payload, ok, err := r.orch.Store.GetStageResult(req.Context(), correlationID, stageID)
	if err != nil {
		return err
	}
	if !ok {
		return errNotFound
	}

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(payload)
	return err
}

// GET /v1/{tenant}/rules
func (r *Router) handleRules(w http.ResponseWriter, req *http.Request) error {
	stats := r.eng.GetRuleStats()
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(stats)
}

// GET /v1/{tenant}/scans
// Lists past runs for the tenant. With ?cursor_id= (and ?cursor_time=) set,
// returns cursor pagination; otherwise classic ?page=&page_size= offset
// pagination (spec §6.1 "Paginated scan history").
func (r *Router) handleListScans(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	q := req.URL.Query()
	w.Header().Set("Content-Type", "application/json")

	if cursorID := q.Get("cursor_id"); cursorID != "" {
		cursorTime := time.Now().UTC()
		if raw := q.Get("cursor_time"); raw != "" {
			if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
				cursorTime = parsed
			}
		}
		pageSize := middleware.ValidateLimit(atoiOrZero(q.Get("page_size")))
		scans, err := r.orch.Store.CursorScans(req.Context(), tenant, cursorTime, cursorID, pageSize)
		if err != nil {
			return err
		}
		return json.NewEncoder(w).Encode(map[string]any{"data": scans})
	}

	page := atoiOrZero(q.Get("page"))
	pageSize := middleware.ValidateLimit(atoiOrZero(q.Get("page_size")))
	result, err := r.orch.Store.PaginateScans(req.Context(), tenant, page, pageSize)
	if err != nil {
		return err
	}
	return json.NewEncoder(w).Encode(result)
}

// GET /v1/{tenant}/scans/{correlation_id}/errors
func (r *Router) handleListScanErrors(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	correlationID := chi.URLParam(req, "correlation_id")
	limit := middleware.ValidateLimit(atoiOrZero(req.URL.Query().Get("limit")))

	entries, err := r.orch.Store.ListScanErrors(req.Context(), tenant, correlationID, limit)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(map[string]any{"data": entries})
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
