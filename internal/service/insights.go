package service

import (
	"fmt"

	"github.com/runsight/runsight/internal/models"
)

// InsightDeriver turns narrative analysis text plus the run records into a
// structured list of categorized insights. It is a strategy interface so a
// richer rule set (or a secondary LLM pass) can replace the baseline without
// touching the orchestrator.
type InsightDeriver interface {
	Derive(narrative string, runs []models.RunRecord) []models.Insight
}

// consistencyMinRuns is the run count at which a Consistency insight is emitted.
const consistencyMinRuns = 3

// RuleBasedInsightDeriver is the baseline deriver: a Volume insight always,
// plus a Consistency insight at three or more runs.
type RuleBasedInsightDeriver struct{}

var _ InsightDeriver = RuleBasedInsightDeriver{}

// Derive returns the baseline insight list for the given runs.
func (RuleBasedInsightDeriver) Derive(_ string, runs []models.RunRecord) []models.Insight {
	insights := []models.Insight{
		{
			Category:       "Volume",
			Observation:    fmt.Sprintf("Analyzed %d running activities", len(runs)),
			Recommendation: "Consistent training is key to improvement",
		},
	}

	if len(runs) >= consistencyMinRuns {
		insights = append(insights, models.Insight{
			Category:       "Consistency",
			Observation:    "Good training frequency detected",
			Recommendation: "Maintain this consistency while varying intensity",
		})
	}

	return insights
}
