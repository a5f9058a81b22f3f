package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/runsight/runsight/internal/apperrors"
	"github.com/runsight/runsight/internal/models"
)

// systemPrompt frames the LLM as a running coach. Fixed per process so the
// canonical query text alone determines the completion input.
const systemPrompt = `You are an expert running coach and sports analyst. Analyze the provided Garmin running data
and provide actionable insights. Focus on:
1. Overall performance assessment
2. Pace analysis and trends
3. Heart rate zone observations (if available)
4. Recovery and training load recommendations
5. Areas for improvement

Be specific, encouraging, and data-driven in your analysis.
Format your response with clear sections for Summary, Key Insights, and Recommendations.
`

const (
	userPromptPrefix = "Please analyze the following Garmin running data:\n\n"
	noRunDataSummary = "No running activity data found in the provided dataset."
)

// CompletionClient is the LLM completion provider: synchronous, single-shot.
type CompletionClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// AnalysisCache is the semantic cache consulted and populated by the orchestrator.
type AnalysisCache interface {
	FindCachedAnalysis(ctx context.Context, queryText string) CacheLookup
	StoreAnalysis(ctx context.Context, runs []models.RunRecord, result models.AnalysisResult, queryText string) (models.AnalysisDocument, error)
}

// AnalysisService orchestrates an analysis request:
// filter -> format query -> consult cache -> on miss compute metrics, invoke
// the LLM, derive insights, persist -> return.
type AnalysisService struct {
	cache    AnalysisCache
	llm      CompletionClient
	insights InsightDeriver
	logger   *slog.Logger
}

// AnalysisServiceParams configures AnalysisService. Insights defaults to the
// rule-based deriver; Logger defaults to slog.Default().
type AnalysisServiceParams struct {
	Cache    AnalysisCache
	LLM      CompletionClient
	Insights InsightDeriver
	Logger   *slog.Logger
}

// NewAnalysisService creates an AnalysisService.
func NewAnalysisService(p AnalysisServiceParams) *AnalysisService {
	insights := p.Insights
	if insights == nil {
		insights = RuleBasedInsightDeriver{}
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AnalysisService{
		cache:    p.Cache,
		llm:      p.LLM,
		insights: insights,
		logger:   logger,
	}
}

// ContainsRunData reports whether the records include any running activity.
func (s *AnalysisService) ContainsRunData(runs []models.RunRecord) bool {
	return ContainsRunData(runs)
}

// AnalyzeRuns runs the full pipeline over the submitted records. With no
// running activity present it short-circuits without touching the cache or
// the LLM. forceRefresh bypasses the cache lookup but not storage.
func (s *AnalysisService) AnalyzeRuns(ctx context.Context, runs []models.RunRecord, forceRefresh bool) (models.AnalysisResult, error) {
	s.logger.DebugContext(ctx, "analyzing runs", "count", len(runs), "forceRefresh", forceRefresh)

	if !ContainsRunData(runs) {
		return models.AnalysisResult{
			ContainsRunData: false,
			Summary:         noRunDataSummary,
			Insights:        []models.Insight{},
			AnalyzedAt:      time.Now(),
		}, nil
	}

	running := FilterRunning(runs)
	queryText := FormatRunData(running)

	if !forceRefresh {
		if lookup := s.cache.FindCachedAnalysis(ctx, queryText); lookup.Outcome == CacheHit {
			s.logger.InfoContext(ctx, "serving analysis from semantic cache",
				"documentId", lookup.Document.DocumentID.String(), "score", lookup.Score)

			return s.resultFromDocument(lookup.Document, running), nil
		}
	}

	metrics := CalculateMetrics(running)

	narrative, err := s.llm.Complete(ctx, systemPrompt, userPromptPrefix+queryText)
	if err != nil {
		return models.AnalysisResult{}, apperrors.NewAIAnalysisError("AI analysis failed", err)
	}

	result := models.AnalysisResult{
		ContainsRunData: true,
		Summary:         generateSummary(metrics),
		Insights:        s.insights.Derive(narrative, running),
		Metrics:         &metrics,
		RawAnalysis:     narrative,
		AnalyzedAt:      time.Now(),
		CachedResult:    false,
	}

	// The embedding-index half of the store is best-effort inside the cache;
	// only a structured-store failure surfaces here.
	if _, err := s.cache.StoreAnalysis(ctx, running, result, queryText); err != nil {
		return models.AnalysisResult{}, apperrors.NewAIAnalysisError("failed to persist analysis", err)
	}

	return result, nil
}

// resultFromDocument reconstructs a response from a cached document. The
// cached totals are authoritative; metrics are not recomputed from the raw
// records. Insights are re-derived over the cached narrative and the current
// request's records.
func (s *AnalysisService) resultFromDocument(doc models.AnalysisDocument, running []models.RunRecord) models.AnalysisResult {
	metrics := models.PerformanceMetrics{
		TotalRuns:           doc.TotalRuns,
		AveragePaceMinPerKm: doc.Metadata.AveragePaceMinPerKm,
		AverageHeartRate:    doc.Metadata.AverageHeartRate,
		TotalCalories:       doc.Metadata.TotalCalories,
	}

	if doc.TotalDistanceKm != nil {
		metrics.TotalDistanceKm = *doc.TotalDistanceKm
	}

	if doc.Metadata.TotalDuration != nil {
		metrics.TotalDuration = *doc.Metadata.TotalDuration
	}

	return models.AnalysisResult{
		ContainsRunData: true,
		Summary:         doc.Summary,
		Insights:        s.insights.Derive(doc.AnalysisContent, running),
		Metrics:         &metrics,
		RawAnalysis:     doc.AnalysisContent,
		AnalyzedAt:      time.Now(),
		CachedResult:    true,
	}
}

// generateSummary renders the one-line human-readable summary. Pace reads as
// 0.00 when undefined.
func generateSummary(metrics models.PerformanceMetrics) string {
	pace := 0.0
	if metrics.AveragePaceMinPerKm != nil {
		pace = *metrics.AveragePaceMinPerKm
	}

	return fmt.Sprintf(
		"Analysis of %d running activities covering %.2f km in %s. Average pace: %.2f min/km.",
		metrics.TotalRuns, metrics.TotalDistanceKm, metrics.TotalDuration, pace,
	)
}
