package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runsight/runsight/internal/models"
	"github.com/runsight/runsight/internal/repository"
)

type mockEmbeddingClient struct {
	createFunc func(ctx context.Context, input string) ([]float32, error)
}

func (m *mockEmbeddingClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, input)
	}

	return []float32{0.1, 0.2}, nil
}

type mockEmbeddingIndex struct {
	upsertFunc  func(ctx context.Context, documentID uuid.UUID, content string, embedding []float32, meta models.EmbeddingMetadata) error
	nearestFunc func(ctx context.Context, queryEmbedding []float32, limit int, minScore float64) ([]models.DocumentWithScore, error)
}

func (m *mockEmbeddingIndex) Upsert(
	ctx context.Context, documentID uuid.UUID, content string, embedding []float32, meta models.EmbeddingMetadata,
) error {
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, documentID, content, embedding, meta)
	}

	return nil
}

func (m *mockEmbeddingIndex) Nearest(
	ctx context.Context, queryEmbedding []float32, limit int, minScore float64,
) ([]models.DocumentWithScore, error) {
	if m.nearestFunc != nil {
		return m.nearestFunc(ctx, queryEmbedding, limit, minScore)
	}

	return nil, nil
}

type mockDocumentStore struct {
	saveFunc func(ctx context.Context, doc models.AnalysisDocument) (models.AnalysisDocument, error)
	findFunc func(ctx context.Context, documentID uuid.UUID) (models.AnalysisDocument, error)
}

func (m *mockDocumentStore) Save(ctx context.Context, doc models.AnalysisDocument) (models.AnalysisDocument, error) {
	if m.saveFunc != nil {
		return m.saveFunc(ctx, doc)
	}

	return doc, nil
}

func (m *mockDocumentStore) FindByDocumentID(ctx context.Context, documentID uuid.UUID) (models.AnalysisDocument, error) {
	if m.findFunc != nil {
		return m.findFunc(ctx, documentID)
	}

	return models.AnalysisDocument{}, repository.ErrDocumentNotFound
}

func enabledConfig() CacheConfig {
	return CacheConfig{Enabled: true, SimilarityThreshold: 0.85, TTLDays: 7}
}

func newTestCache(cfg CacheConfig, client EmbeddingClient, index EmbeddingIndex, store DocumentStore) *SemanticCache {
	return NewSemanticCache(SemanticCacheParams{
		Config:          cfg,
		EmbeddingClient: client,
		Index:           index,
		Store:           store,
	})
}

func TestSemanticCache_FindCachedAnalysis(t *testing.T) {
	t.Run("disabled cache never queries the index", func(t *testing.T) {
		indexCalled := false
		cache := newTestCache(
			CacheConfig{Enabled: false, SimilarityThreshold: 0.85, TTLDays: 7},
			&mockEmbeddingClient{},
			&mockEmbeddingIndex{
				nearestFunc: func(_ context.Context, _ []float32, _ int, _ float64) ([]models.DocumentWithScore, error) {
					indexCalled = true

					return nil, nil
				},
			},
			&mockDocumentStore{},
		)

		lookup := cache.FindCachedAnalysis(context.Background(), "query")

		assert.Equal(t, CacheDisabled, lookup.Outcome)
		assert.False(t, indexCalled)
	})

	t.Run("embedding failure degrades to miss", func(t *testing.T) {
		cache := newTestCache(enabledConfig(),
			&mockEmbeddingClient{
				createFunc: func(_ context.Context, _ string) ([]float32, error) {
					return nil, errors.New("embeddings API down")
				},
			},
			&mockEmbeddingIndex{},
			&mockDocumentStore{},
		)

		lookup := cache.FindCachedAnalysis(context.Background(), "query")

		assert.Equal(t, CacheMiss, lookup.Outcome)
	})

	t.Run("index error degrades to miss", func(t *testing.T) {
		cache := newTestCache(enabledConfig(),
			&mockEmbeddingClient{},
			&mockEmbeddingIndex{
				nearestFunc: func(_ context.Context, _ []float32, _ int, _ float64) ([]models.DocumentWithScore, error) {
					return nil, errors.New("connection refused")
				},
			},
			&mockDocumentStore{},
		)

		lookup := cache.FindCachedAnalysis(context.Background(), "query")

		assert.Equal(t, CacheMiss, lookup.Outcome)
	})

	t.Run("no result above threshold is a miss", func(t *testing.T) {
		cache := newTestCache(enabledConfig(),
			&mockEmbeddingClient{},
			&mockEmbeddingIndex{
				nearestFunc: func(_ context.Context, _ []float32, limit int, minScore float64) ([]models.DocumentWithScore, error) {
					assert.Equal(t, 1, limit)
					assert.InDelta(t, 0.85, minScore, 1e-9)

					return nil, nil
				},
			},
			&mockDocumentStore{},
		)

		lookup := cache.FindCachedAnalysis(context.Background(), "query")

		assert.Equal(t, CacheMiss, lookup.Outcome)
	})

	t.Run("missing documentId in metadata is a miss", func(t *testing.T) {
		storeCalled := false
		cache := newTestCache(enabledConfig(),
			&mockEmbeddingClient{},
			&mockEmbeddingIndex{
				nearestFunc: func(_ context.Context, _ []float32, _ int, _ float64) ([]models.DocumentWithScore, error) {
					return []models.DocumentWithScore{{Content: "text", Score: 0.93}}, nil
				},
			},
			&mockDocumentStore{
				findFunc: func(_ context.Context, _ uuid.UUID) (models.AnalysisDocument, error) {
					storeCalled = true

					return models.AnalysisDocument{}, nil
				},
			},
		)

		lookup := cache.FindCachedAnalysis(context.Background(), "query")

		assert.Equal(t, CacheMiss, lookup.Outcome)
		assert.False(t, storeCalled)
	})

	t.Run("orphaned index entry is a miss", func(t *testing.T) {
		docID := uuid.New()
		cache := newTestCache(enabledConfig(),
			&mockEmbeddingClient{},
			&mockEmbeddingIndex{
				nearestFunc: func(_ context.Context, _ []float32, _ int, _ float64) ([]models.DocumentWithScore, error) {
					return []models.DocumentWithScore{{
						Metadata: models.EmbeddingMetadata{DocumentID: &docID},
						Score:    0.95,
					}}, nil
				},
			},
			&mockDocumentStore{
				findFunc: func(_ context.Context, id uuid.UUID) (models.AnalysisDocument, error) {
					assert.Equal(t, docID, id)

					return models.AnalysisDocument{}, repository.ErrDocumentNotFound
				},
			},
		)

		lookup := cache.FindCachedAnalysis(context.Background(), "query")

		assert.Equal(t, CacheMiss, lookup.Outcome)
	})

	t.Run("stale document is a miss", func(t *testing.T) {
		docID := uuid.New()
		cache := newTestCache(enabledConfig(),
			&mockEmbeddingClient{},
			&mockEmbeddingIndex{
				nearestFunc: func(_ context.Context, _ []float32, _ int, _ float64) ([]models.DocumentWithScore, error) {
					return []models.DocumentWithScore{{
						Metadata: models.EmbeddingMetadata{DocumentID: &docID},
						Score:    0.99,
					}}, nil
				},
			},
			&mockDocumentStore{
				findFunc: func(_ context.Context, _ uuid.UUID) (models.AnalysisDocument, error) {
					return models.AnalysisDocument{
						DocumentID: docID,
						CreatedAt:  time.Now().AddDate(0, 0, -8),
					}, nil
				},
			},
		)

		lookup := cache.FindCachedAnalysis(context.Background(), "query")

		assert.Equal(t, CacheMiss, lookup.Outcome)
	})

	t.Run("fresh similar document is a hit", func(t *testing.T) {
		docID := uuid.New()
		createdAt := time.Now().AddDate(0, 0, -2)
		cache := newTestCache(enabledConfig(),
			&mockEmbeddingClient{},
			&mockEmbeddingIndex{
				nearestFunc: func(_ context.Context, _ []float32, _ int, _ float64) ([]models.DocumentWithScore, error) {
					return []models.DocumentWithScore{{
						Metadata: models.EmbeddingMetadata{DocumentID: &docID},
						Score:    0.91,
					}}, nil
				},
			},
			&mockDocumentStore{
				findFunc: func(_ context.Context, _ uuid.UUID) (models.AnalysisDocument, error) {
					return models.AnalysisDocument{
						DocumentID: docID,
						Summary:    "cached summary",
						CreatedAt:  createdAt,
					}, nil
				},
			},
		)

		lookup := cache.FindCachedAnalysis(context.Background(), "query")

		require.Equal(t, CacheHit, lookup.Outcome)
		assert.Equal(t, docID, lookup.Document.DocumentID)
		assert.Equal(t, "cached summary", lookup.Document.Summary)
		assert.InDelta(t, 0.91, lookup.Score, 1e-9)
	})
}

func TestSemanticCache_StoreAnalysis(t *testing.T) {
	distance := 12.5
	result := models.AnalysisResult{
		ContainsRunData: true,
		Summary:         "summary",
		RawAnalysis:     "narrative",
		Metrics: &models.PerformanceMetrics{
			TotalRuns:       2,
			TotalDistanceKm: distance,
			TotalDuration:   "01:15:00",
		},
	}
	runs := []models.RunRecord{
		runningRecord("101", func(r *models.RunRecord) { r.ActivityDate = "2025-01-10" }),
		runningRecord("102", func(r *models.RunRecord) { r.ActivityDate = "2025-01-12" }),
	}

	t.Run("saves document with joined activity ids and metadata", func(t *testing.T) {
		var saved models.AnalysisDocument

		cache := newTestCache(enabledConfig(),
			&mockEmbeddingClient{},
			&mockEmbeddingIndex{},
			&mockDocumentStore{
				saveFunc: func(_ context.Context, doc models.AnalysisDocument) (models.AnalysisDocument, error) {
					saved = doc

					return doc, nil
				},
			},
		)

		doc, err := cache.StoreAnalysis(context.Background(), runs, result, "query text")

		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, doc.DocumentID)
		assert.Equal(t, "101,102", saved.ActivityIDs)
		assert.Equal(t, "query text", saved.QueryText)
		assert.Equal(t, "narrative", saved.AnalysisContent)
		assert.Equal(t, "summary", saved.Summary)
		assert.Equal(t, 2, saved.TotalRuns)
		require.NotNil(t, saved.TotalDistanceKm)
		assert.InDelta(t, 12.5, *saved.TotalDistanceKm, 1e-9)
		assert.Equal(t, []string{"2025-01-10", "2025-01-12"}, saved.Metadata.ActivityDates)
		require.NotNil(t, saved.Metadata.DateRange)
		assert.Equal(t, "2025-01-10 to 2025-01-12", *saved.Metadata.DateRange)
	})

	t.Run("structured store failure propagates", func(t *testing.T) {
		storeErr := errors.New("insert failed")
		indexCalled := false
		cache := newTestCache(enabledConfig(),
			&mockEmbeddingClient{},
			&mockEmbeddingIndex{
				upsertFunc: func(_ context.Context, _ uuid.UUID, _ string, _ []float32, _ models.EmbeddingMetadata) error {
					indexCalled = true

					return nil
				},
			},
			&mockDocumentStore{
				saveFunc: func(_ context.Context, _ models.AnalysisDocument) (models.AnalysisDocument, error) {
					return models.AnalysisDocument{}, storeErr
				},
			},
		)

		_, err := cache.StoreAnalysis(context.Background(), runs, result, "query text")

		require.Error(t, err)
		assert.ErrorIs(t, err, storeErr)
		assert.False(t, indexCalled)
	})

	t.Run("embedding index failure is swallowed", func(t *testing.T) {
		cache := newTestCache(enabledConfig(),
			&mockEmbeddingClient{},
			&mockEmbeddingIndex{
				upsertFunc: func(_ context.Context, _ uuid.UUID, _ string, _ []float32, _ models.EmbeddingMetadata) error {
					return errors.New("index unavailable")
				},
			},
			&mockDocumentStore{},
		)

		_, err := cache.StoreAnalysis(context.Background(), runs, result, "query text")

		assert.NoError(t, err)
	})

	t.Run("embedding client failure during store is swallowed", func(t *testing.T) {
		upsertCalled := false
		cache := newTestCache(enabledConfig(),
			&mockEmbeddingClient{
				createFunc: func(_ context.Context, _ string) ([]float32, error) {
					return nil, errors.New("embeddings API down")
				},
			},
			&mockEmbeddingIndex{
				upsertFunc: func(_ context.Context, _ uuid.UUID, _ string, _ []float32, _ models.EmbeddingMetadata) error {
					upsertCalled = true

					return nil
				},
			},
			&mockDocumentStore{},
		)

		_, err := cache.StoreAnalysis(context.Background(), runs, result, "query text")

		assert.NoError(t, err)
		assert.False(t, upsertCalled)
	})

	t.Run("round-trip: stored analysis is immediately retrievable", func(t *testing.T) {
		// In-memory index and store: a single entry with perfect similarity.
		var (
			indexed  models.DocumentWithScore
			stored   models.AnalysisDocument
			hasEntry bool
		)

		index := &mockEmbeddingIndex{
			upsertFunc: func(_ context.Context, _ uuid.UUID, content string, _ []float32, meta models.EmbeddingMetadata) error {
				indexed = models.DocumentWithScore{Content: content, Metadata: meta, Score: 1.0}
				hasEntry = true

				return nil
			},
			nearestFunc: func(_ context.Context, _ []float32, _ int, minScore float64) ([]models.DocumentWithScore, error) {
				if !hasEntry || indexed.Score < minScore {
					return nil, nil
				}

				return []models.DocumentWithScore{indexed}, nil
			},
		}
		store := &mockDocumentStore{
			saveFunc: func(_ context.Context, doc models.AnalysisDocument) (models.AnalysisDocument, error) {
				stored = doc

				return doc, nil
			},
			findFunc: func(_ context.Context, id uuid.UUID) (models.AnalysisDocument, error) {
				if id != stored.DocumentID {
					return models.AnalysisDocument{}, repository.ErrDocumentNotFound
				}

				return stored, nil
			},
		}
		cache := newTestCache(enabledConfig(), &mockEmbeddingClient{}, index, store)

		saved, err := cache.StoreAnalysis(context.Background(), runs, result, "query text")
		require.NoError(t, err)

		lookup := cache.FindCachedAnalysis(context.Background(), "query text")

		require.Equal(t, CacheHit, lookup.Outcome)
		assert.Equal(t, saved.DocumentID, lookup.Document.DocumentID)
		assert.Equal(t, saved.TotalRuns, lookup.Document.TotalRuns)
		require.NotNil(t, lookup.Document.TotalDistanceKm)
		assert.InDelta(t, 12.5, *lookup.Document.TotalDistanceKm, 1e-9)
	})

	t.Run("index row carries document id and metrics footer", func(t *testing.T) {
		var (
			gotMeta    models.EmbeddingMetadata
			gotContent string
		)

		cache := newTestCache(enabledConfig(),
			&mockEmbeddingClient{},
			&mockEmbeddingIndex{
				upsertFunc: func(_ context.Context, _ uuid.UUID, content string, _ []float32, meta models.EmbeddingMetadata) error {
					gotContent = content
					gotMeta = meta

					return nil
				},
			},
			&mockDocumentStore{},
		)

		doc, err := cache.StoreAnalysis(context.Background(), runs, result, "query text")

		require.NoError(t, err)
		require.NotNil(t, gotMeta.DocumentID)
		assert.Equal(t, doc.DocumentID, *gotMeta.DocumentID)
		assert.Equal(t, 2, gotMeta.TotalRuns)
		assert.True(t, strings.HasPrefix(gotContent, "query text"))
		assert.Contains(t, gotContent, "Total Runs: 2")
		assert.Contains(t, gotContent, "Total Distance: 12.50 km")
	})
}
