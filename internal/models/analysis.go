package models

import "time"

// PerformanceMetrics is the aggregate over a set of running records.
// Pointer fields are nil when the underlying data was not supplied:
// pace when total distance is zero, heart rate when no record carried one,
// calories when the summed value is zero.
type PerformanceMetrics struct {
	TotalRuns           int      `json:"totalRuns"`
	TotalDistanceKm     float64  `json:"totalDistanceKm"`
	TotalDuration       string   `json:"totalDuration"`
	AveragePaceMinPerKm *float64 `json:"averagePaceMinPerKm,omitempty"`
	AverageHeartRate    *int     `json:"averageHeartRate,omitempty"`
	TotalCalories       *int     `json:"totalCalories,omitempty"`
}

// Insight is one categorized observation/recommendation pair derived
// from the narrative analysis.
type Insight struct {
	Category       string `json:"category"`
	Observation    string `json:"observation"`
	Recommendation string `json:"recommendation"`
}

// AnalysisResult is the response artifact for an analysis request.
// CachedResult is true when the result was reconstructed from a stored
// document instead of a fresh LLM call.
type AnalysisResult struct {
	ContainsRunData bool                `json:"containsRunData"`
	Summary         string              `json:"summary"`
	Insights        []Insight           `json:"insights"`
	Metrics         *PerformanceMetrics `json:"metrics,omitempty"`
	RawAnalysis     string              `json:"rawAnalysis,omitempty"`
	AnalyzedAt      time.Time           `json:"analyzedAt"`
	CachedResult    bool                `json:"cachedResult"`
}
