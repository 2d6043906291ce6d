package engine

import (
	"time"

	"github.com/veilscan/veilscan/pkg/models"
)

const (
	// Correlation multipliers arrive from an external analysis step and are
	// only trusted inside this band; anything else collapses to neutral.
	minCorrelation = 1.0
	maxCorrelation = 3.0

	// assumedAgeDays stands in for a missing scan date.
	assumedAgeDays = 30
)

// RiskScorer recomputes exposure risk for already-persisted records. It is
// the rescoring counterpart to ScoreMatch: where the match score judges "is
// this about the right person", the risk score judges "how much does this
// exposure hurt them today".
type RiskScorer struct {
	weights Weights
}

func NewRiskScorer(weights Weights) *RiskScorer {
	return &RiskScorer{weights: weights}
}

// ComputeRisk scores one record: mean sensitivity of the exposed data types,
// amplified by source reputation, recency, and the externally supplied
// correlation multiplier. Always in [0,100].
func (rs *RiskScorer) ComputeRisk(record models.ExposureRecord, correlationMultiplier float64, now time.Time) int {
	sensitivity := rs.meanSensitivity(record.DataExposed)
	reputation := rs.weights.SourceMultiplier(string(record.SourceType))
	recency := rs.weights.RecencyMultiplier(daysSince(record.ScanDate, now))
	correlation := ClampCorrelation(correlationMultiplier)

	return clampScore(sensitivity * reputation * recency * correlation * 0.8)
}

// RecomputeRiskScores returns updated copies of the given records with fresh
// risk scores. The caller persists them; nothing here touches storage.
func (rs *RiskScorer) RecomputeRiskScores(records []models.ExposureRecord, correlationMultiplier float64, now time.Time) []models.ExposureRecord {
	updated := make([]models.ExposureRecord, len(records))
	copy(updated, records)
	for i := range updated {
		updated[i].RiskScore = rs.ComputeRisk(updated[i], correlationMultiplier, now)
	}
	return updated
}

func (rs *RiskScorer) meanSensitivity(dataExposed []string) float64 {
	var total float64
	for _, dataType := range dataExposed {
		total += rs.weights.SensitivityWeight(dataType)
	}
	divisor := float64(len(dataExposed))
	if divisor == 0 {
		divisor = 1
	}
	return total / divisor
}

// ClampCorrelation forces the pass-through multiplier into [1.0, 3.0].
// A zero or negative value means the upstream analysis failed; neutral 1.0
// applies and the caller is expected to have logged the failure.
func ClampCorrelation(m float64) float64 {
	if m < minCorrelation {
		return minCorrelation
	}
	if m > maxCorrelation {
		return maxCorrelation
	}
	return m
}

func daysSince(t time.Time, now time.Time) int {
	if t.IsZero() {
		return assumedAgeDays
	}
	d := int(now.Sub(t).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}
