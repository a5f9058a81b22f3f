package models

import "strings"

// Activity types accepted by the API.
const (
	ActivityTypeRunning          = "running"
	ActivityTypeStrengthTraining = "strength_training"
	ActivityTypeElliptical       = "elliptical"
)

// RunRecord is a single workout entry as exported from the tracker.
// Numeric fields arrive as strings in the export format and are parsed
// leniently during metrics calculation.
type RunRecord struct {
	ActivityID          string  `json:"activityId"`
	ActivityDate        string  `json:"activityDate"`
	ActivityType        string  `json:"activityType"`
	ActivityName        string  `json:"activityName"`
	ActivityDescription *string `json:"activityDescription,omitempty"`
	ElapsedTime         string  `json:"elapsedTime"`
	Distance            string  `json:"distance"`
	MaxHeartRate        *string `json:"maxHeartRate,omitempty"`
	Calories            *string `json:"calories,omitempty"`
}

// IsRunning reports whether the record's activity type is "running",
// matched case-insensitively.
func (r RunRecord) IsRunning() bool {
	return strings.EqualFold(r.ActivityType, ActivityTypeRunning)
}

// AnalyzeRequest is the body for POST /v1/analysis.
type AnalyzeRequest struct {
	Runs []RunRecord `json:"runs"`

	// ForceRefresh bypasses the semantic cache lookup (but not storage)
	// and always produces a fresh analysis.
	ForceRefresh bool `json:"forceRefresh,omitempty"` //nolint:tagliatelle // API contract
}
