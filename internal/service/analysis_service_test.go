package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runsight/runsight/internal/apperrors"
	"github.com/runsight/runsight/internal/models"
)

type mockAnalysisCache struct {
	findFunc  func(ctx context.Context, queryText string) CacheLookup
	storeFunc func(ctx context.Context, runs []models.RunRecord, result models.AnalysisResult, queryText string) (models.AnalysisDocument, error)
}

func (m *mockAnalysisCache) FindCachedAnalysis(ctx context.Context, queryText string) CacheLookup {
	if m.findFunc != nil {
		return m.findFunc(ctx, queryText)
	}

	return CacheLookup{Outcome: CacheMiss}
}

func (m *mockAnalysisCache) StoreAnalysis(
	ctx context.Context, runs []models.RunRecord, result models.AnalysisResult, queryText string,
) (models.AnalysisDocument, error) {
	if m.storeFunc != nil {
		return m.storeFunc(ctx, runs, result, queryText)
	}

	return models.AnalysisDocument{}, nil
}

type mockCompletionClient struct {
	completeFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

func (m *mockCompletionClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if m.completeFunc != nil {
		return m.completeFunc(ctx, systemPrompt, userPrompt)
	}

	return "narrative analysis", nil
}

func newTestAnalysisService(cache AnalysisCache, llm CompletionClient) *AnalysisService {
	return NewAnalysisService(AnalysisServiceParams{Cache: cache, LLM: llm})
}

func TestAnalysisService_AnalyzeRuns(t *testing.T) {
	t.Run("no running data short-circuits without cache or LLM", func(t *testing.T) {
		cacheCalled := false
		llmCalled := false
		svc := newTestAnalysisService(
			&mockAnalysisCache{
				findFunc: func(_ context.Context, _ string) CacheLookup {
					cacheCalled = true

					return CacheLookup{Outcome: CacheMiss}
				},
			},
			&mockCompletionClient{
				completeFunc: func(_ context.Context, _, _ string) (string, error) {
					llmCalled = true

					return "", nil
				},
			},
		)

		runs := []models.RunRecord{{ActivityType: models.ActivityTypeStrengthTraining}}

		result, err := svc.AnalyzeRuns(context.Background(), runs, false)

		require.NoError(t, err)
		assert.False(t, result.ContainsRunData)
		assert.Equal(t, "No running activity data found in the provided dataset.", result.Summary)
		assert.NotNil(t, result.Insights)
		assert.Empty(t, result.Insights)
		assert.Nil(t, result.Metrics)
		assert.False(t, cacheCalled)
		assert.False(t, llmCalled)
	})

	t.Run("cache hit reconstructs from document without LLM call", func(t *testing.T) {
		llmCalled := false
		distance := 12.5
		duration := "01:15:00"
		pace := 6.0
		docID := uuid.New()

		svc := newTestAnalysisService(
			&mockAnalysisCache{
				findFunc: func(_ context.Context, queryText string) CacheLookup {
					assert.Contains(t, queryText, "=== Running Activities ===")

					return CacheLookup{
						Outcome: CacheHit,
						Score:   0.92,
						Document: models.AnalysisDocument{
							DocumentID:      docID,
							Summary:         "cached summary",
							AnalysisContent: "cached narrative",
							TotalRuns:       2,
							TotalDistanceKm: &distance,
							Metadata: models.DocumentMetadata{
								TotalDuration:       &duration,
								AveragePaceMinPerKm: &pace,
							},
						},
					}
				},
			},
			&mockCompletionClient{
				completeFunc: func(_ context.Context, _, _ string) (string, error) {
					llmCalled = true

					return "", nil
				},
			},
		)

		runs := []models.RunRecord{runningRecord("1", nil), runningRecord("2", nil)}

		result, err := svc.AnalyzeRuns(context.Background(), runs, false)

		require.NoError(t, err)
		assert.True(t, result.CachedResult)
		assert.True(t, result.ContainsRunData)
		assert.Equal(t, "cached summary", result.Summary)
		assert.Equal(t, "cached narrative", result.RawAnalysis)
		require.NotNil(t, result.Metrics)
		assert.Equal(t, 2, result.Metrics.TotalRuns)
		assert.InDelta(t, 12.5, result.Metrics.TotalDistanceKm, 1e-9)
		assert.Equal(t, "01:15:00", result.Metrics.TotalDuration)
		require.NotNil(t, result.Metrics.AveragePaceMinPerKm)
		assert.InDelta(t, 6.0, *result.Metrics.AveragePaceMinPerKm, 1e-9)
		require.NotEmpty(t, result.Insights)
		assert.False(t, llmCalled)
	})

	t.Run("cache miss runs the full pipeline and stores", func(t *testing.T) {
		storeCalled := false
		svc := newTestAnalysisService(
			&mockAnalysisCache{
				storeFunc: func(_ context.Context, runs []models.RunRecord, result models.AnalysisResult, queryText string) (models.AnalysisDocument, error) {
					storeCalled = true

					assert.Len(t, runs, 2)
					assert.Equal(t, "the narrative", result.RawAnalysis)
					assert.Contains(t, queryText, "Run #1:")

					return models.AnalysisDocument{}, nil
				},
			},
			&mockCompletionClient{
				completeFunc: func(_ context.Context, system, user string) (string, error) {
					assert.Contains(t, system, "expert running coach")
					assert.Contains(t, user, "Please analyze the following Garmin running data:")

					return "the narrative", nil
				},
			},
		)

		runs := []models.RunRecord{
			runningRecord("1", func(r *models.RunRecord) { r.Distance = "5.0"; r.ElapsedTime = "00:30:00" }),
			runningRecord("2", func(r *models.RunRecord) { r.Distance = "7.5"; r.ElapsedTime = "00:45:00" }),
		}

		result, err := svc.AnalyzeRuns(context.Background(), runs, false)

		require.NoError(t, err)
		assert.True(t, storeCalled)
		assert.False(t, result.CachedResult)
		assert.True(t, result.ContainsRunData)
		assert.Equal(t, "the narrative", result.RawAnalysis)
		assert.Equal(t, "Analysis of 2 running activities covering 12.50 km in 01:15:00. Average pace: 6.00 min/km.", result.Summary)
		require.NotNil(t, result.Metrics)
		assert.Equal(t, 2, result.Metrics.TotalRuns)
	})

	t.Run("non-running records excluded from pipeline", func(t *testing.T) {
		svc := newTestAnalysisService(
			&mockAnalysisCache{
				findFunc: func(_ context.Context, queryText string) CacheLookup {
					assert.NotContains(t, queryText, "Gym Session")

					return CacheLookup{Outcome: CacheMiss}
				},
			},
			&mockCompletionClient{},
		)

		runs := []models.RunRecord{
			runningRecord("1", nil),
			{ActivityID: "2", ActivityType: models.ActivityTypeStrengthTraining, ActivityName: "Gym Session"},
		}

		result, err := svc.AnalyzeRuns(context.Background(), runs, false)

		require.NoError(t, err)
		require.NotNil(t, result.Metrics)
		assert.Equal(t, 1, result.Metrics.TotalRuns)
	})

	t.Run("forceRefresh bypasses lookup but not store", func(t *testing.T) {
		lookupCalled := false
		storeCalled := false
		svc := newTestAnalysisService(
			&mockAnalysisCache{
				findFunc: func(_ context.Context, _ string) CacheLookup {
					lookupCalled = true

					return CacheLookup{Outcome: CacheHit}
				},
				storeFunc: func(_ context.Context, _ []models.RunRecord, _ models.AnalysisResult, _ string) (models.AnalysisDocument, error) {
					storeCalled = true

					return models.AnalysisDocument{}, nil
				},
			},
			&mockCompletionClient{},
		)

		result, err := svc.AnalyzeRuns(context.Background(), []models.RunRecord{runningRecord("1", nil)}, true)

		require.NoError(t, err)
		assert.False(t, lookupCalled)
		assert.True(t, storeCalled)
		assert.False(t, result.CachedResult)
	})

	t.Run("LLM failure returns AIAnalysisError", func(t *testing.T) {
		llmErr := errors.New("model overloaded")
		svc := newTestAnalysisService(
			&mockAnalysisCache{},
			&mockCompletionClient{
				completeFunc: func(_ context.Context, _, _ string) (string, error) {
					return "", llmErr
				},
			},
		)

		_, err := svc.AnalyzeRuns(context.Background(), []models.RunRecord{runningRecord("1", nil)}, false)

		require.Error(t, err)

		var aiErr *apperrors.AIAnalysisError

		require.ErrorAs(t, err, &aiErr)
		assert.ErrorIs(t, err, llmErr)
	})

	t.Run("persist failure returns AIAnalysisError", func(t *testing.T) {
		storeErr := errors.New("insert failed")
		svc := newTestAnalysisService(
			&mockAnalysisCache{
				storeFunc: func(_ context.Context, _ []models.RunRecord, _ models.AnalysisResult, _ string) (models.AnalysisDocument, error) {
					return models.AnalysisDocument{}, storeErr
				},
			},
			&mockCompletionClient{},
		)

		_, err := svc.AnalyzeRuns(context.Background(), []models.RunRecord{runningRecord("1", nil)}, false)

		require.Error(t, err)

		var aiErr *apperrors.AIAnalysisError

		require.ErrorAs(t, err, &aiErr)
		assert.ErrorIs(t, err, storeErr)
	})
}
