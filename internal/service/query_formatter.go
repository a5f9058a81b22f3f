package service

import (
	"fmt"
	"strings"

	"github.com/runsight/runsight/internal/models"
)

// FormatRunData renders the canonical text block for a set of running
// records. The output serves as both the LLM prompt body and the semantic
// cache key, so field order and presence rules are fixed: the same records
// always produce byte-identical output.
func FormatRunData(runs []models.RunRecord) string {
	var sb strings.Builder

	sb.WriteString("=== Running Activities ===\n\n")

	for i, run := range runs {
		fmt.Fprintf(&sb, "Run #%d:\n", i+1)
		fmt.Fprintf(&sb, "  - Date: %s\n", run.ActivityDate)
		fmt.Fprintf(&sb, "  - Name: %s\n", run.ActivityName)
		fmt.Fprintf(&sb, "  - Distance: %s km\n", run.Distance)
		fmt.Fprintf(&sb, "  - Duration: %s\n", run.ElapsedTime)

		if run.MaxHeartRate != nil {
			fmt.Fprintf(&sb, "  - Max Heart Rate: %s bpm\n", *run.MaxHeartRate)
		}

		if run.Calories != nil {
			fmt.Fprintf(&sb, "  - Calories: %s\n", *run.Calories)
		}

		if run.ActivityDescription != nil && strings.TrimSpace(*run.ActivityDescription) != "" {
			fmt.Fprintf(&sb, "  - Notes: %s\n", *run.ActivityDescription)
		}

		sb.WriteString("\n")
	}

	return sb.String()
}
