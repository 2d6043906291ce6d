package engine

import (
	"math"

	"github.com/veilscan/veilscan/pkg/models"
)

// ScoreMatch computes the 0-100 match score for a finding: the summed field
// match weights, amplified by source reputation and severity, halved to keep
// typical two-field matches out of the saturated band. Pure and
// deterministic; equal inputs always produce equal scores.
func ScoreMatch(w Weights, f models.RawFinding) int {
	var raw float64
	for _, field := range f.MatchedFields {
		raw += w.FieldMatchWeight(field)
	}

	score := raw * w.SourceMultiplier(string(f.SourceType)) * w.SeverityMultiplier(string(f.Severity)) * 0.5
	return clampScore(score)
}

func clampScore(score float64) int {
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return int(math.Round(score))
}
