package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/stayguard/stayguard/internal/errors"
	"github.com/stayguard/stayguard/internal/impact"
	"github.com/stayguard/stayguard/internal/logger"
	"github.com/stayguard/stayguard/internal/models"
	"github.com/stayguard/stayguard/internal/store"
)

// ReportProcessor ingests a batch of raw reports and returns the alerts
// created or updated. Satisfied by the orchestrator.
type ReportProcessor interface {
	Process(ctx context.Context, reports []models.DisruptionReport) ([]models.Alert, error)
}

// Handler handles HTTP requests for the API
type Handler struct {
	repo      store.Repository
	processor ReportProcessor
	calc      *impact.Calculator
	version   string
	buildTime string
	gitCommit string
	startTime time.Time
}

// NewHandler creates a new API handler
func NewHandler(repo store.Repository, processor ReportProcessor, calc *impact.Calculator, version, buildTime, gitCommit string) *Handler {
	return &Handler{
		repo:      repo,
		processor: processor,
		calc:      calc,
		version:   version,
		buildTime: buildTime,
		gitCommit: gitCommit,
		startTime: time.Now(),
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Route("/v1", func(r chi.Router) {
		// Health check endpoints
		r.Get("/health", h.healthHandler)
		r.Get("/health/ready", h.readinessHandler)
		r.Get("/health/live", h.livenessHandler)

		// API endpoints
		r.Get("/alerts", h.getAlertsHandler)
		r.Get("/alerts/{id}", h.getAlertHandler)
		r.Post("/reports", h.ingestReportsHandler)
		r.Post("/impact", h.impactHandler)

		// System info
		r.Get("/version", h.versionHandler)
	})

	// Root health check
	r.Get("/health", h.healthHandler)
}

// healthHandler provides basic health check
func (h *Handler) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"version":   h.version,
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// readinessHandler checks if the application is ready to serve traffic
func (h *Handler) readinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checks := map[string]string{
		"repository": "ok",
	}

	statusCode := http.StatusOK

	if err := h.repo.Health(ctx); err != nil {
		checks["repository"] = "error: " + err.Error()
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	}

	h.writeJSONResponse(w, statusCode, response)
}

// livenessHandler checks if the application is alive
func (h *Handler) livenessHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// versionHandler returns version information
func (h *Handler) versionHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"version":    h.version,
		"build_time": h.buildTime,
		"git_commit": h.gitCommit,
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// getAlertsHandler handles GET /alerts
func (h *Handler) getAlertsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, err := h.parseAlertQuery(r)
	if err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	alerts, err := h.repo.Query(ctx, q)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to query alerts", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	response := map[string]interface{}{
		"data":      alerts,
		"count":     len(alerts),
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	h.writeJSONResponse(w, http.StatusOK, response)
}

// getAlertHandler handles GET /alerts/{id}
func (h *Handler) getAlertHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	alertID := chi.URLParam(r, "id")

	if alertID == "" {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "alert ID is required")
		return
	}

	alert, err := h.repo.Get(ctx, alertID)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to get alert", "error", err, "alert_id", alertID)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	if alert == nil {
		h.writeErrorResponse(w, r, http.StatusNotFound, "Alert not found")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	h.writeJSONResponse(w, http.StatusOK, alert)
}

// ingestReportsRequest is the body of POST /reports.
type ingestReportsRequest struct {
	Reports []models.DisruptionReport `json:"reports"`
}

// ingestReportsHandler handles POST /reports: runs a batch of raw
// disruption reports through the full lifecycle and returns the
// resulting alerts.
func (h *Handler) ingestReportsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ingestReportsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Reports) == 0 {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "reports list is empty")
		return
	}

	alerts, err := h.processor.Process(ctx, req.Reports)
	if err != nil {
		logger.WithContext(ctx).Error("Report processing failed", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	response := map[string]interface{}{
		"alerts":    alerts,
		"count":     len(alerts),
		"timestamp": time.Now().UTC(),
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// impactRequest is the body of POST /impact.
type impactRequest struct {
	Hotel           models.HotelProfile `json:"hotel"`
	Disruption      impact.Disruption   `json:"disruption"`
	HasIncentive    bool                `json:"has_incentive"`
	ExtraIncentives int                 `json:"extra_incentives"`
}

// impactHandler handles POST /impact: computes the revenue risk one
// disruption poses to one hotel.
func (h *Handler) impactHandler(w http.ResponseWriter, r *http.Request) {
	var req impactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.calc.Calculate(req.Hotel, req.Disruption, req.HasIncentive, req.ExtraIncentives)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnknownSizeCategory) {
			h.writeErrorResponse(w, r, http.StatusBadRequest, "unknown hotel size category")
			return
		}
		logger.WithContext(r.Context()).Error("Impact calculation failed", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, result)
}

// parseAlertQuery parses query parameters into AlertQuery
func (h *Handler) parseAlertQuery(r *http.Request) (models.AlertQuery, error) {
	q := models.AlertQuery{}

	// Parse limit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return q, fmt.Errorf("invalid limit: %s", limitStr)
		}
		if limit < 0 || limit > 1000 {
			return q, fmt.Errorf("limit must be between 0 and 1000")
		}
		q.Limit = limit
	}

	// Parse offset
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return q, fmt.Errorf("invalid offset: %s", offsetStr)
		}
		if offset < 0 {
			return q, fmt.Errorf("offset must be non-negative")
		}
		q.Offset = offset
	}

	// Parse time filters
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			return q, fmt.Errorf("invalid since format: %s", sinceStr)
		}
		q.Since = since
	}

	if untilStr := r.URL.Query().Get("until"); untilStr != "" {
		until, err := time.Parse(time.RFC3339, untilStr)
		if err != nil {
			return q, fmt.Errorf("invalid until format: %s", untilStr)
		}
		q.Until = until
	}

	// Parse array filters
	q.IDs = r.URL.Query()["id"]
	q.Cities = r.URL.Query()["city"]
	for _, t := range r.URL.Query()["main_type"] {
		q.MainTypes = append(q.MainTypes, models.ParseMainType(t))
	}
	for _, s := range r.URL.Query()["status"] {
		switch models.AlertStatus(s) {
		case models.StatusPending, models.StatusApproved, models.StatusExpired:
			q.Statuses = append(q.Statuses, models.AlertStatus(s))
		default:
			return q, fmt.Errorf("invalid status: %s", s)
		}
	}

	return q, nil
}

// writeJSONResponse writes a JSON response
func (h *Handler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeErrorResponse writes a standardized error response
func (h *Handler) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	response := ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   message,
		Timestamp: time.Now().UTC(),
		RequestID: r.Header.Get("X-Request-ID"),
	}

	h.writeJSONResponse(w, statusCode, response)
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}
