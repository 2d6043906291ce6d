package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilscan/veilscan/pkg/models"
)

var rescoreNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func exposureFixture() models.ExposureRecord {
	return models.ExposureRecord{
		ID:          "exp-1",
		ProfileID:   "prof-1",
		SourceName:  "ShadowLeaks",
		SourceType:  models.SourceBreachDatabase,
		DataExposed: []string{"ssn", "email"},
		ScanDate:    rescoreNow.Add(-10 * 24 * time.Hour),
		Status:      models.ExposureStatusActive,
	}
}

func TestComputeRisk(t *testing.T) {
	rs := NewRiskScorer(DefaultWeights())

	// sensitivity mean = (100+45)/2 = 72.5; breach 2.0; 10 days old -> 1.3
	// 72.5 * 2.0 * 1.3 * 1.0 * 0.8 = 150.8 -> capped at 100
	assert.Equal(t, 100, rs.ComputeRisk(exposureFixture(), 1.0, rescoreNow))
}

func TestComputeRiskLowSensitivity(t *testing.T) {
	rs := NewRiskScorer(DefaultWeights())

	rec := exposureFixture()
	rec.SourceType = models.SourceNews
	rec.DataExposed = []string{"employer"}
	rec.ScanDate = rescoreNow.Add(-200 * 24 * time.Hour)
	// 25 * 1.0 * 1.0 * 1.0 * 0.8 = 20
	assert.Equal(t, 20, rs.ComputeRisk(rec, 1.0, rescoreNow))
}

func TestComputeRiskUnknownDataTypeDefaults(t *testing.T) {
	rs := NewRiskScorer(DefaultWeights())

	rec := exposureFixture()
	rec.SourceType = models.SourceNews
	rec.DataExposed = []string{"favorite_color"}
	rec.ScanDate = rescoreNow.Add(-200 * 24 * time.Hour)
	// default sensitivity 30 * 0.8 = 24
	assert.Equal(t, 24, rs.ComputeRisk(rec, 1.0, rescoreNow))
}

func TestComputeRiskEmptyDataExposed(t *testing.T) {
	rs := NewRiskScorer(DefaultWeights())

	rec := exposureFixture()
	rec.DataExposed = nil
	assert.Equal(t, 0, rs.ComputeRisk(rec, 1.0, rescoreNow))
}

func TestComputeRiskMissingScanDateAssumesThirtyDays(t *testing.T) {
	rs := NewRiskScorer(DefaultWeights())

	rec := exposureFixture()
	rec.SourceType = models.SourceNews
	rec.DataExposed = []string{"employer"}
	rec.ScanDate = time.Time{}
	// 30 days -> 1.1 recency band: 25 * 1.1 * 0.8 = 22
	assert.Equal(t, 22, rs.ComputeRisk(rec, 1.0, rescoreNow))
}

func TestComputeRiskCorrelationClamped(t *testing.T) {
	rs := NewRiskScorer(DefaultWeights())

	rec := exposureFixture()
	rec.SourceType = models.SourceNews
	rec.DataExposed = []string{"employer"}
	rec.ScanDate = rescoreNow.Add(-200 * 24 * time.Hour)

	base := rs.ComputeRisk(rec, 1.0, rescoreNow)
	assert.Equal(t, base, rs.ComputeRisk(rec, 0, rescoreNow), "failed correlation falls back to neutral")
	assert.Equal(t, base, rs.ComputeRisk(rec, -4, rescoreNow))
	assert.Equal(t, rs.ComputeRisk(rec, 3.0, rescoreNow), rs.ComputeRisk(rec, 9.5, rescoreNow), "multiplier capped at 3.0")
	assert.GreaterOrEqual(t, rs.ComputeRisk(rec, 2.0, rescoreNow), base)
}

func TestRecomputeRiskScoresReturnsCopies(t *testing.T) {
	rs := NewRiskScorer(DefaultWeights())

	records := []models.ExposureRecord{exposureFixture()}
	records[0].RiskScore = 1

	updated := rs.RecomputeRiskScores(records, 1.0, rescoreNow)
	require.Len(t, updated, 1)
	assert.Equal(t, 100, updated[0].RiskScore)
	assert.Equal(t, 1, records[0].RiskScore, "input slice must not be mutated")
}

func TestRecencyBands(t *testing.T) {
	w := DefaultWeights()
	assert.Equal(t, 1.3, w.RecencyMultiplier(0))
	assert.Equal(t, 1.3, w.RecencyMultiplier(29))
	assert.Equal(t, 1.1, w.RecencyMultiplier(30))
	assert.Equal(t, 1.1, w.RecencyMultiplier(89))
	assert.Equal(t, 1.0, w.RecencyMultiplier(90))
	assert.Equal(t, 1.0, w.RecencyMultiplier(4000))
}
