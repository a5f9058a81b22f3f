package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/runsight/runsight/internal/models"
)

// ErrEmptyQuery is returned when a search is requested with an empty query.
var ErrEmptyQuery = errors.New("query is required and must be non-empty")

// DocumentReader provides the read operations over stored analysis documents.
type DocumentReader interface {
	FindByDocumentID(ctx context.Context, documentID uuid.UUID) (models.AnalysisDocument, error)
	Recent(ctx context.Context, limit int) ([]models.AnalysisDocument, error)
	FindByActivityID(ctx context.Context, activityID string) ([]models.AnalysisDocument, error)
	FindByMinimumDistance(ctx context.Context, minDistanceKm float64) ([]models.AnalysisDocument, error)
	FindByMinimumRuns(ctx context.Context, minRuns int) ([]models.AnalysisDocument, error)
}

// DocumentSearchService serves the read-side lookups over past analyses:
// similarity search plus pass-through structured queries. These are not part
// of the cache protocol; errors surface to the caller instead of degrading.
type DocumentSearchService struct {
	embeddingClient EmbeddingClient
	index           EmbeddingIndex
	docs            DocumentReader
	logger          *slog.Logger
}

// NewDocumentSearchService creates a DocumentSearchService.
func NewDocumentSearchService(
	embeddingClient EmbeddingClient, index EmbeddingIndex, docs DocumentReader, logger *slog.Logger,
) *DocumentSearchService {
	if logger == nil {
		logger = slog.Default()
	}

	return &DocumentSearchService{
		embeddingClient: embeddingClient,
		index:           index,
		docs:            docs,
		logger:          logger,
	}
}

// SearchSimilar returns up to topK stored analyses nearest to the query text,
// with similarity scores. No threshold is applied; callers see the raw ranking.
func (s *DocumentSearchService) SearchSimilar(ctx context.Context, query string, topK int) ([]models.DocumentWithScore, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	embedding, err := s.embeddingClient.CreateEmbedding(ctx, query)
	if err != nil {
		s.logger.ErrorContext(ctx, "similarity search: create embedding failed", "error", err)

		return nil, fmt.Errorf("create embedding: %w", err)
	}

	results, err := s.index.Nearest(ctx, embedding, topK, 0)
	if err != nil {
		s.logger.ErrorContext(ctx, "similarity search: nearest failed", "error", err)

		return nil, fmt.Errorf("nearest documents: %w", err)
	}

	return results, nil
}

// FindByDocumentID returns one stored analysis document.
// Passes through repository.ErrDocumentNotFound.
func (s *DocumentSearchService) FindByDocumentID(ctx context.Context, documentID uuid.UUID) (models.AnalysisDocument, error) {
	return s.docs.FindByDocumentID(ctx, documentID)
}

// Recent returns the most recent analyses, newest first.
func (s *DocumentSearchService) Recent(ctx context.Context, limit int) ([]models.AnalysisDocument, error) {
	return s.docs.Recent(ctx, limit)
}

// FindByActivityID returns analyses that include the given activity.
func (s *DocumentSearchService) FindByActivityID(ctx context.Context, activityID string) ([]models.AnalysisDocument, error) {
	return s.docs.FindByActivityID(ctx, activityID)
}

// FindByMinimumDistance returns analyses with at least the given total distance.
func (s *DocumentSearchService) FindByMinimumDistance(ctx context.Context, minDistanceKm float64) ([]models.AnalysisDocument, error) {
	return s.docs.FindByMinimumDistance(ctx, minDistanceKm)
}

// FindByMinimumRuns returns analyses covering at least the given run count.
func (s *DocumentSearchService) FindByMinimumRuns(ctx context.Context, minRuns int) ([]models.AnalysisDocument, error) {
	return s.docs.FindByMinimumRuns(ctx, minRuns)
}
