package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/runsight/runsight/internal/api/response"
	"github.com/runsight/runsight/internal/models"
	"github.com/runsight/runsight/internal/repository"
	"github.com/runsight/runsight/internal/service"
)

// DocumentSearchService defines the read-side lookups over stored analyses.
type DocumentSearchService interface {
	SearchSimilar(ctx context.Context, query string, topK int) ([]models.DocumentWithScore, error)
	FindByDocumentID(ctx context.Context, documentID uuid.UUID) (models.AnalysisDocument, error)
	Recent(ctx context.Context, limit int) ([]models.AnalysisDocument, error)
	FindByActivityID(ctx context.Context, activityID string) ([]models.AnalysisDocument, error)
	FindByMinimumDistance(ctx context.Context, minDistanceKm float64) ([]models.AnalysisDocument, error)
	FindByMinimumRuns(ctx context.Context, minRuns int) ([]models.AnalysisDocument, error)
}

// RagHandler handles HTTP requests for searching and retrieving past analyses.
type RagHandler struct {
	service DocumentSearchService
}

// NewRagHandler creates a new RAG search handler.
func NewRagHandler(service DocumentSearchService) *RagHandler {
	return &RagHandler{service: service}
}

// SearchRequest is the body for POST /v1/rag/search.
type SearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"topK"` //nolint:tagliatelle // API contract
}

// SearchResponse is the response for POST /v1/rag/search.
type SearchResponse struct {
	Query        string                     `json:"query"`
	Results      []models.DocumentWithScore `json:"results"`
	TotalResults int                        `json:"totalResults"`
}

const (
	defaultSearchTopK = 5
	maxSearchTopK     = 50
	defaultRecent     = 10
	maxRecent         = 100
)

// Search handles POST /v1/rag/search: semantic similarity search over stored analyses.
func (h *RagHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")

		return
	}

	topK := req.TopK
	if topK <= 0 {
		topK = defaultSearchTopK
	}

	if topK > maxSearchTopK {
		topK = maxSearchTopK
	}

	results, err := h.service.SearchSimilar(r.Context(), req.Query, topK)
	if err != nil {
		if errors.Is(err, service.ErrEmptyQuery) {
			response.RespondBadRequest(w, "Query is required")

			return
		}

		slog.ErrorContext(r.Context(), "rag search failed", "error", err)
		response.RespondInternalServerError(w, "Search failed")

		return
	}

	if results == nil {
		results = []models.DocumentWithScore{}
	}

	response.RespondJSON(w, http.StatusOK, SearchResponse{
		Query:        req.Query,
		Results:      results,
		TotalResults: len(results),
	})
}

// Recent handles GET /v1/rag/recent.
func (h *RagHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecent

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = min(parsed, maxRecent)
		}
	}

	docs, err := h.service.Recent(r.Context(), limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "recent analyses lookup failed", "error", err)
		response.RespondInternalServerError(w, "Lookup failed")

		return
	}

	respondDocuments(w, docs)
}

// GetDocument handles GET /v1/rag/documents/{documentId}.
func (h *RagHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	documentID, err := uuid.Parse(r.PathValue("documentId"))
	if err != nil {
		response.RespondBadRequest(w, "Invalid document ID")

		return
	}

	doc, err := h.service.FindByDocumentID(r.Context(), documentID)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			response.RespondNotFound(w, "Analysis document not found")

			return
		}

		slog.ErrorContext(r.Context(), "document lookup failed", "error", err, "documentId", documentID.String())
		response.RespondInternalServerError(w, "Lookup failed")

		return
	}

	response.RespondJSON(w, http.StatusOK, doc)
}

// ByActivity handles GET /v1/rag/activities/{activityId}.
func (h *RagHandler) ByActivity(w http.ResponseWriter, r *http.Request) {
	activityID := r.PathValue("activityId")
	if activityID == "" {
		response.RespondBadRequest(w, "Activity ID is required")

		return
	}

	docs, err := h.service.FindByActivityID(r.Context(), activityID)
	if err != nil {
		slog.ErrorContext(r.Context(), "activity lookup failed", "error", err, "activityId", activityID)
		response.RespondInternalServerError(w, "Lookup failed")

		return
	}

	respondDocuments(w, docs)
}

// ByMinimumDistance handles GET /v1/rag/distance?minDistanceKm=.
func (h *RagHandler) ByMinimumDistance(w http.ResponseWriter, r *http.Request) {
	minDistance, err := strconv.ParseFloat(r.URL.Query().Get("minDistanceKm"), 64)
	if err != nil || minDistance < 0 {
		response.RespondBadRequest(w, "minDistanceKm query parameter must be a non-negative number")

		return
	}

	docs, err := h.service.FindByMinimumDistance(r.Context(), minDistance)
	if err != nil {
		slog.ErrorContext(r.Context(), "distance lookup failed", "error", err)
		response.RespondInternalServerError(w, "Lookup failed")

		return
	}

	respondDocuments(w, docs)
}

// ByMinimumRuns handles GET /v1/rag/runs?minRuns=.
func (h *RagHandler) ByMinimumRuns(w http.ResponseWriter, r *http.Request) {
	minRuns, err := strconv.Atoi(r.URL.Query().Get("minRuns"))
	if err != nil || minRuns < 0 {
		response.RespondBadRequest(w, "minRuns query parameter must be a non-negative integer")

		return
	}

	docs, err := h.service.FindByMinimumRuns(r.Context(), minRuns)
	if err != nil {
		slog.ErrorContext(r.Context(), "minimum runs lookup failed", "error", err)
		response.RespondInternalServerError(w, "Lookup failed")

		return
	}

	respondDocuments(w, docs)
}

func respondDocuments(w http.ResponseWriter, docs []models.AnalysisDocument) {
	if docs == nil {
		docs = []models.AnalysisDocument{}
	}

	response.RespondJSON(w, http.StatusOK, docs)
}
