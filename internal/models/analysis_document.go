package models

import (
	"time"

	"github.com/google/uuid"
)

// DocumentMetadata is the structured metadata stored alongside an analysis
// document. Fields mirror the metrics at store time; Extra holds genuinely
// unstructured values that have no named field.
type DocumentMetadata struct {
	RunCount            int            `json:"runCount"`
	TotalDistanceKm     *float64       `json:"totalDistanceKm,omitempty"`
	TotalDuration       *string        `json:"totalDuration,omitempty"`
	AveragePaceMinPerKm *float64       `json:"averagePace,omitempty"`
	AverageHeartRate    *int           `json:"averageHeartRate,omitempty"`
	TotalCalories       *int           `json:"totalCalories,omitempty"`
	ActivityDates       []string       `json:"activityDates,omitempty"`
	DateRange           *string        `json:"dateRange,omitempty"`
	Extra               map[string]any `json:"extra,omitempty"`
}

// AnalysisDocument is the durable cache entry for one completed analysis.
// DocumentID is the join key between the structured store and the embedding
// index. Documents are written once and never updated in place.
type AnalysisDocument struct {
	DocumentID      uuid.UUID        `json:"documentId"`
	ActivityIDs     string           `json:"activityIds"` // comma-joined source activity IDs
	QueryText       string           `json:"queryText"`
	AnalysisContent string           `json:"analysisContent"`
	Summary         string           `json:"summary"`
	TotalRuns       int              `json:"totalRuns"`
	TotalDistanceKm *float64         `json:"totalDistanceKm,omitempty"`
	Metadata        DocumentMetadata `json:"metadata"`
	CreatedAt       time.Time        `json:"createdAt"`
}

// EmbeddingMetadata is the metadata subset carried on each embedding index
// row: enough to resolve back to the structured document without a second
// round trip. DocumentID is a pointer so a missing value (a data-integrity
// gap in the index) is distinguishable from the zero UUID.
type EmbeddingMetadata struct {
	DocumentID      *uuid.UUID `json:"documentId,omitempty"`
	TotalRuns       int        `json:"totalRuns"`
	TotalDistanceKm *float64   `json:"totalDistanceKm,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// DocumentWithScore is one nearest-neighbor result from the embedding index:
// the embedded content, its metadata, and the cosine similarity score (0..1).
type DocumentWithScore struct {
	Content  string            `json:"content"`
	Metadata EmbeddingMetadata `json:"metadata"`
	Score    float64           `json:"score"`
}
