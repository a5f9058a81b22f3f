package service

import (
	"math"
	"regexp"
	"strconv"

	"github.com/runsight/runsight/internal/models"
)

// elapsedTimePattern matches the HH:MM:SS export format. Values that don't
// match contribute zero seconds to the aggregate.
var elapsedTimePattern = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}$`)

// ContainsRunData reports whether at least one record is a running activity.
func ContainsRunData(runs []models.RunRecord) bool {
	for _, run := range runs {
		if run.IsRunning() {
			return true
		}
	}

	return false
}

// FilterRunning returns the sub-sequence of running records, preserving order.
func FilterRunning(runs []models.RunRecord) []models.RunRecord {
	var running []models.RunRecord

	for _, run := range runs {
		if run.IsRunning() {
			running = append(running, run)
		}
	}

	return running
}

// CalculateMetrics computes aggregate performance metrics over running
// records. Malformed numeric input degrades the aggregate (contributes zero)
// rather than failing the request. Deterministic and side-effect free.
func CalculateMetrics(runs []models.RunRecord) models.PerformanceMetrics {
	var (
		totalDistance float64
		totalSeconds  int64
	)

	for _, run := range runs {
		totalDistance += parseDistance(run.Distance)
		totalSeconds += parseTimeToSeconds(run.ElapsedTime)
	}

	metrics := models.PerformanceMetrics{
		TotalRuns:       len(runs),
		TotalDistanceKm: round2(totalDistance),
		TotalDuration:   formatSecondsToTime(totalSeconds),
	}

	// Pace is undefined without distance.
	if totalDistance > 0 {
		pace := round2((float64(totalSeconds) / 60.0) / totalDistance)
		metrics.AveragePaceMinPerKm = &pace
	}

	var (
		heartRateSum   int
		heartRateCount int
		caloriesSum    int
	)

	for _, run := range runs {
		if run.MaxHeartRate != nil {
			heartRateSum += parseInt(*run.MaxHeartRate)
			heartRateCount++
		}

		if run.Calories != nil {
			caloriesSum += parseInt(*run.Calories)
		}
	}

	if heartRateCount > 0 {
		avg := heartRateSum / heartRateCount
		metrics.AverageHeartRate = &avg
	}

	if caloriesSum > 0 {
		metrics.TotalCalories = &caloriesSum
	}

	return metrics
}

// parseDistance parses a non-negative decimal kilometers value; malformed or
// negative input contributes 0.
func parseDistance(value string) float64 {
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 {
		return 0
	}

	return parsed
}

func parseInt(value string) int {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}

	return parsed
}

// parseTimeToSeconds converts an HH:MM:SS string to seconds; non-matching
// values contribute 0.
func parseTimeToSeconds(elapsed string) int64 {
	if !elapsedTimePattern.MatchString(elapsed) {
		return 0
	}

	hours, _ := strconv.ParseInt(elapsed[0:2], 10, 64)
	minutes, _ := strconv.ParseInt(elapsed[3:5], 10, 64)
	seconds, _ := strconv.ParseInt(elapsed[6:8], 10, 64)

	return hours*3600 + minutes*60 + seconds
}

// formatSecondsToTime renders seconds as HH:MM:SS. Hours are unbounded and
// may exceed 24 when summing many records.
func formatSecondsToTime(totalSeconds int64) string {
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	return pad2(hours) + ":" + pad2(minutes) + ":" + pad2(seconds)
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}

	return strconv.FormatInt(n, 10)
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
