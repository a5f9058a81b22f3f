package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/runsight/runsight/internal/models"
	"github.com/runsight/runsight/internal/repository"
	"github.com/runsight/runsight/pkg/cache"
)

// EmbeddingClient generates the embedding vector for a piece of text.
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}

// EmbeddingIndex is the vector-searchable store over canonical query texts.
type EmbeddingIndex interface {
	Upsert(ctx context.Context, documentID uuid.UUID, content string, embedding []float32, meta models.EmbeddingMetadata) error
	Nearest(ctx context.Context, queryEmbedding []float32, limit int, minScore float64) ([]models.DocumentWithScore, error)
}

// DocumentStore is the structured store for analysis documents.
type DocumentStore interface {
	Save(ctx context.Context, doc models.AnalysisDocument) (models.AnalysisDocument, error)
	FindByDocumentID(ctx context.Context, documentID uuid.UUID) (models.AnalysisDocument, error)
}

// CacheConfig is the fixed per-process semantic cache policy.
type CacheConfig struct {
	// Enabled false makes every lookup miss without touching the embedding index.
	Enabled bool
	// SimilarityThreshold is the minimum similarity score (0..1) for a hit.
	SimilarityThreshold float64
	// TTLDays marks documents older than this as stale regardless of similarity.
	TTLDays int
}

// CacheOutcome classifies a cache lookup.
type CacheOutcome int

const (
	// CacheMiss means no sufficiently similar, fresh, resolvable document exists.
	CacheMiss CacheOutcome = iota
	// CacheHit means Document holds a reusable prior analysis.
	CacheHit
	// CacheDisabled means caching is turned off; the index was not queried.
	CacheDisabled
)

// String returns the outcome name for logging.
func (o CacheOutcome) String() string {
	switch o {
	case CacheHit:
		return "hit"
	case CacheDisabled:
		return "disabled"
	default:
		return "miss"
	}
}

// CacheLookup is the result of a semantic cache lookup. Document and Score
// are populated only when Outcome is CacheHit.
type CacheLookup struct {
	Outcome  CacheOutcome
	Document models.AnalysisDocument
	Score    float64
}

// SemanticCache layers similarity lookup plus staleness policy over the
// embedding index and the structured document store. Lookup failures of any
// kind degrade to a miss: a broken cache must never block the analysis path.
type SemanticCache struct {
	cfg             CacheConfig
	embeddingClient EmbeddingClient
	index           EmbeddingIndex
	store           DocumentStore
	queryCache      *cache.LoaderCache[[]float32]
	logger          *slog.Logger
}

// SemanticCacheParams configures SemanticCache. QueryCache may be nil (every
// lookup re-embeds the query text).
type SemanticCacheParams struct {
	Config          CacheConfig
	EmbeddingClient EmbeddingClient
	Index           EmbeddingIndex
	Store           DocumentStore
	QueryCache      *cache.LoaderCache[[]float32]
	Logger          *slog.Logger
}

// NewSemanticCache creates a SemanticCache.
func NewSemanticCache(p SemanticCacheParams) *SemanticCache {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SemanticCache{
		cfg:             p.Config,
		embeddingClient: p.EmbeddingClient,
		index:           p.Index,
		store:           p.Store,
		queryCache:      p.QueryCache,
		logger:          logger,
	}
}

// FindCachedAnalysis looks for a prior analysis whose canonical query text is
// similar enough to queryText and not stale. The outcome is explicit: callers
// branch on Hit/Miss/Disabled instead of inspecting errors, and every failure
// mode (index error, missing metadata, orphaned reference) is a miss.
func (c *SemanticCache) FindCachedAnalysis(ctx context.Context, queryText string) CacheLookup {
	if !c.cfg.Enabled {
		c.logger.DebugContext(ctx, "semantic cache disabled, skipping lookup")

		return CacheLookup{Outcome: CacheDisabled}
	}

	embedding, err := c.embedQuery(ctx, queryText)
	if err != nil {
		c.logger.ErrorContext(ctx, "cache lookup: create embedding failed", "error", err)

		return CacheLookup{Outcome: CacheMiss}
	}

	results, err := c.index.Nearest(ctx, embedding, 1, c.cfg.SimilarityThreshold)
	if err != nil {
		c.logger.ErrorContext(ctx, "cache lookup: nearest neighbor search failed", "error", err)

		return CacheLookup{Outcome: CacheMiss}
	}

	if len(results) == 0 {
		c.logger.DebugContext(ctx, "no cached analysis above similarity threshold",
			"threshold", c.cfg.SimilarityThreshold)

		return CacheLookup{Outcome: CacheMiss}
	}

	top := results[0]
	if top.Metadata.DocumentID == nil {
		// Data-integrity gap in the index row, not an error condition.
		c.logger.WarnContext(ctx, "similar document found but missing documentId in metadata",
			"score", top.Score)

		return CacheLookup{Outcome: CacheMiss}
	}

	documentID := *top.Metadata.DocumentID

	doc, err := c.store.FindByDocumentID(ctx, documentID)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			c.logger.WarnContext(ctx, "document found in embedding index but not in store",
				"documentId", documentID.String())
		} else {
			c.logger.ErrorContext(ctx, "cache lookup: resolve document failed",
				"error", err, "documentId", documentID.String())
		}

		return CacheLookup{Outcome: CacheMiss}
	}

	staleBefore := time.Now().AddDate(0, 0, -c.cfg.TTLDays)
	if doc.CreatedAt.Before(staleBefore) {
		c.logger.DebugContext(ctx, "cached analysis is stale",
			"documentId", documentID.String(), "createdAt", doc.CreatedAt, "staleBefore", staleBefore)

		return CacheLookup{Outcome: CacheMiss}
	}

	c.logger.InfoContext(ctx, "found valid cached analysis",
		"documentId", documentID.String(), "score", top.Score)

	return CacheLookup{Outcome: CacheHit, Document: doc, Score: top.Score}
}

// StoreAnalysis durably records a fresh analysis: the structured document
// first, then the embedding index row. A structured-store failure propagates
// (the cache entry would be meaningless without it); an embedding-index
// failure is logged and swallowed (it only degrades future hit rate).
func (c *SemanticCache) StoreAnalysis(
	ctx context.Context, runs []models.RunRecord, result models.AnalysisResult, queryText string,
) (models.AnalysisDocument, error) {
	documentID := uuid.New()

	activityIDs := make([]string, 0, len(runs))
	for _, run := range runs {
		activityIDs = append(activityIDs, run.ActivityID)
	}

	doc := models.AnalysisDocument{
		DocumentID:      documentID,
		ActivityIDs:     strings.Join(activityIDs, ","),
		QueryText:       queryText,
		AnalysisContent: result.RawAnalysis,
		Summary:         result.Summary,
		TotalRuns:       len(runs),
		Metadata:        buildDocumentMetadata(runs, result),
		CreatedAt:       time.Now(),
	}

	if result.Metrics != nil {
		doc.TotalRuns = result.Metrics.TotalRuns
		distance := result.Metrics.TotalDistanceKm
		doc.TotalDistanceKm = &distance
	}

	saved, err := c.store.Save(ctx, doc)
	if err != nil {
		return models.AnalysisDocument{}, fmt.Errorf("save analysis document: %w", err)
	}

	c.logger.InfoContext(ctx, "saved analysis document", "documentId", saved.DocumentID.String())

	c.storeInIndex(ctx, saved)

	return saved, nil
}

// storeInIndex writes the embedding row for the saved document. Failures are
// logged and swallowed: the structured write already succeeded and the
// primary response is already computed.
func (c *SemanticCache) storeInIndex(ctx context.Context, doc models.AnalysisDocument) {
	content := buildEmbeddingContent(doc)

	embedding, err := c.embeddingClient.CreateEmbedding(ctx, content)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to embed analysis for index",
			"error", err, "documentId", doc.DocumentID.String())

		return
	}

	meta := models.EmbeddingMetadata{
		DocumentID:      &doc.DocumentID,
		TotalRuns:       doc.TotalRuns,
		TotalDistanceKm: doc.TotalDistanceKm,
		CreatedAt:       doc.CreatedAt,
	}

	if err := c.index.Upsert(ctx, doc.DocumentID, content, embedding, meta); err != nil {
		c.logger.ErrorContext(ctx, "failed to store document in embedding index",
			"error", err, "documentId", doc.DocumentID.String())

		return
	}

	c.logger.DebugContext(ctx, "stored document in embedding index", "documentId", doc.DocumentID.String())
}

// buildEmbeddingContent is the text payload embedded for cache matching: the
// canonical query text (inputs must match on input similarity, not output
// similarity) plus a short metrics footer that sharpens near-duplicate matches.
func buildEmbeddingContent(doc models.AnalysisDocument) string {
	var sb strings.Builder

	sb.WriteString(doc.QueryText)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Total Runs: %d\n", doc.TotalRuns)

	if doc.TotalDistanceKm != nil {
		fmt.Fprintf(&sb, "Total Distance: %.2f km\n", *doc.TotalDistanceKm)
	}

	return sb.String()
}

func buildDocumentMetadata(runs []models.RunRecord, result models.AnalysisResult) models.DocumentMetadata {
	meta := models.DocumentMetadata{RunCount: len(runs)}

	if m := result.Metrics; m != nil {
		distance := m.TotalDistanceKm
		duration := m.TotalDuration
		meta.TotalDistanceKm = &distance
		meta.TotalDuration = &duration
		meta.AveragePaceMinPerKm = m.AveragePaceMinPerKm
		meta.AverageHeartRate = m.AverageHeartRate
		meta.TotalCalories = m.TotalCalories
	}

	var dates []string

	for _, run := range runs {
		if run.ActivityDate != "" {
			dates = append(dates, run.ActivityDate)
		}
	}

	if len(dates) > 0 {
		meta.ActivityDates = dates
		dateRange := dates[0] + " to " + dates[len(dates)-1]
		meta.DateRange = &dateRange
	}

	return meta
}

// embedQuery returns the embedding for queryText, via the loader cache when
// configured so repeated lookups of the same canonical text don't re-call the
// embeddings API.
func (c *SemanticCache) embedQuery(ctx context.Context, queryText string) ([]float32, error) {
	if c.queryCache == nil {
		return c.embeddingClient.CreateEmbedding(ctx, queryText)
	}

	return c.queryCache.Get(ctx, queryText, func(ctx context.Context, key string) ([]float32, error) {
		return c.embeddingClient.CreateEmbedding(ctx, key)
	})
}
