// Package handlers contains the HTTP handlers for the analysis and RAG APIs.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/runsight/runsight/internal/api/response"
	"github.com/runsight/runsight/internal/api/validation"
	"github.com/runsight/runsight/internal/apperrors"
	"github.com/runsight/runsight/internal/models"
)

// AnalysisService defines the orchestration operations the handler needs.
type AnalysisService interface {
	AnalyzeRuns(ctx context.Context, runs []models.RunRecord, forceRefresh bool) (models.AnalysisResult, error)
	ContainsRunData(runs []models.RunRecord) bool
}

// AnalysisHandler handles HTTP requests for run analysis.
type AnalysisHandler struct {
	service AnalysisService
}

// NewAnalysisHandler creates a new analysis handler.
func NewAnalysisHandler(service AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{service: service}
}

// CheckResponse is the body for POST /v1/analysis/check.
type CheckResponse struct {
	ContainsRunData      bool `json:"containsRunData"`
	TotalRecords         int  `json:"totalRecords"`
	RunningActivityCount int  `json:"runningActivityCount"`
}

// Analyze handles POST /v1/analysis.
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAnalyzeRequest(w, r)
	if !ok {
		return
	}

	result, err := h.service.AnalyzeRuns(r.Context(), req.Runs, req.ForceRefresh)
	if err != nil {
		respondAnalysisError(w, r, err)

		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}

// Check handles POST /v1/analysis/check: reports whether the submitted data
// contains analyzable running activities, without running the pipeline.
func (h *AnalysisHandler) Check(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAnalyzeRequest(w, r)
	if !ok {
		return
	}

	runningCount := 0

	for _, run := range req.Runs {
		if run.IsRunning() {
			runningCount++
		}
	}

	response.RespondJSON(w, http.StatusOK, CheckResponse{
		ContainsRunData:      h.service.ContainsRunData(req.Runs),
		TotalRecords:         len(req.Runs),
		RunningActivityCount: runningCount,
	})
}

// AnalyzeSingle handles POST /v1/analysis/single. Non-running activities are
// rejected with a 400 carrying containsRunData=false.
func (h *AnalysisHandler) AnalyzeSingle(w http.ResponseWriter, r *http.Request) {
	var run models.RunRecord

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&run); err != nil {
		response.RespondBadRequest(w, "Invalid request body")

		return
	}

	if details := validation.ValidateRun("run", run); len(details) > 0 {
		response.RespondValidationError(w, details)

		return
	}

	if !run.IsRunning() {
		response.RespondJSON(w, http.StatusBadRequest, models.AnalysisResult{
			ContainsRunData: false,
			Summary:         "The provided activity is not a running activity: " + run.ActivityType,
			Insights:        []models.Insight{},
		})

		return
	}

	result, err := h.service.AnalyzeRuns(r.Context(), []models.RunRecord{run}, false)
	if err != nil {
		respondAnalysisError(w, r, err)

		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}

// decodeAnalyzeRequest decodes and validates the shared analyze/check body.
// On failure, it writes the error response and returns ok=false.
func decodeAnalyzeRequest(w http.ResponseWriter, r *http.Request) (models.AnalyzeRequest, bool) {
	var req models.AnalyzeRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")

		return models.AnalyzeRequest{}, false
	}

	if len(req.Runs) == 0 {
		response.RespondBadRequest(w, "At least one run data entry is required")

		return models.AnalyzeRequest{}, false
	}

	if details := validation.ValidateRuns(req.Runs); len(details) > 0 {
		response.RespondValidationError(w, details)

		return models.AnalyzeRequest{}, false
	}

	return req, true
}

// respondAnalysisError maps service errors: AI failures are distinguishable
// (503 with a machine-readable title); everything else collapses to a generic
// 500 that does not leak internal detail.
func respondAnalysisError(w http.ResponseWriter, r *http.Request, err error) {
	var aiErr *apperrors.AIAnalysisError
	if errors.As(err, &aiErr) {
		slog.ErrorContext(r.Context(), "AI analysis failed", "error", err)
		response.RespondAIAnalysisFailed(w, aiErr.Message)

		return
	}

	slog.ErrorContext(r.Context(), "analysis failed", "error", err)
	response.RespondInternalServerError(w, "An unexpected error occurred")
}
