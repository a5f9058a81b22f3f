// Package validation checks incoming run records before the pipeline runs.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/runsight/runsight/internal/api/response"
	"github.com/runsight/runsight/internal/models"
)

var (
	elapsedTimePattern = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}$`)
	distancePattern    = regexp.MustCompile(`^\d+(\.\d+)?$`)
	integerPattern     = regexp.MustCompile(`^\d+$`)
)

var allowedActivityTypes = map[string]struct{}{
	models.ActivityTypeRunning:          {},
	models.ActivityTypeStrengthTraining: {},
	models.ActivityTypeElliptical:       {},
}

// ValidateRuns validates every record and returns one ErrorDetail per
// violation. An empty result means the request is valid.
func ValidateRuns(runs []models.RunRecord) []response.ErrorDetail {
	var details []response.ErrorDetail

	for i, run := range runs {
		details = append(details, ValidateRun(fmt.Sprintf("runs[%d]", i), run)...)
	}

	return details
}

// ValidateRun validates a single record. location prefixes each field path.
func ValidateRun(location string, run models.RunRecord) []response.ErrorDetail {
	var details []response.ErrorDetail

	requireNonBlank := func(field, value, message string) {
		if strings.TrimSpace(value) == "" {
			details = append(details, response.ErrorDetail{
				Location: location + "." + field,
				Message:  message,
			})
		}
	}

	requireNonBlank("activityId", run.ActivityID, "Activity ID is required")
	requireNonBlank("activityDate", run.ActivityDate, "Activity date is required")
	requireNonBlank("activityType", run.ActivityType, "Activity type is required")
	requireNonBlank("activityName", run.ActivityName, "Activity name is required")

	if run.ActivityType != "" {
		if _, ok := allowedActivityTypes[strings.ToLower(run.ActivityType)]; !ok {
			details = append(details, response.ErrorDetail{
				Location: location + ".activityType",
				Message:  "Activity type must be running, strength_training, or elliptical",
				Value:    run.ActivityType,
			})
		}
	}

	if run.ElapsedTime != "" && !elapsedTimePattern.MatchString(run.ElapsedTime) {
		details = append(details, response.ErrorDetail{
			Location: location + ".elapsedTime",
			Message:  "Elapsed time must be in HH:MM:SS format",
			Value:    run.ElapsedTime,
		})
	}

	if run.Distance == "" {
		details = append(details, response.ErrorDetail{
			Location: location + ".distance",
			Message:  "Distance is required",
		})
	} else if !distancePattern.MatchString(run.Distance) {
		details = append(details, response.ErrorDetail{
			Location: location + ".distance",
			Message:  "Distance must be a valid number",
			Value:    run.Distance,
		})
	}

	if run.MaxHeartRate != nil && !integerPattern.MatchString(*run.MaxHeartRate) {
		details = append(details, response.ErrorDetail{
			Location: location + ".maxHeartRate",
			Message:  "Max heart rate must be a valid integer",
			Value:    *run.MaxHeartRate,
		})
	}

	if run.Calories != nil && !integerPattern.MatchString(*run.Calories) {
		details = append(details, response.ErrorDetail{
			Location: location + ".calories",
			Message:  "Calories must be a valid integer",
			Value:    *run.Calories,
		})
	}

	return details
}
