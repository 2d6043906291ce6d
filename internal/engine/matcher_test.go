package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veilscan/veilscan/pkg/models"
)

func TestScoreMatchWorkedExample(t *testing.T) {
	// raw = 65 (email) + 100 (ssn) = 165
	// 165 * 2.0 (breach db) * 2.5 (critical) * 0.5 = 412.5 -> capped at 100
	f := models.RawFinding{
		SourceType:    models.SourceBreachDatabase,
		MatchedFields: []string{"email", "ssn"},
		Severity:      models.SeverityCritical,
	}
	assert.Equal(t, 100, ScoreMatch(DefaultWeights(), f))
}

func TestScoreMatchUncapped(t *testing.T) {
	// 20 (name) * 1.2 (social) * 1.0 (low) * 0.5 = 12
	f := models.RawFinding{
		SourceType:    models.SourceSocialMedia,
		MatchedFields: []string{"full_name"},
		Severity:      models.SeverityLow,
	}
	assert.Equal(t, 12, ScoreMatch(DefaultWeights(), f))
}

func TestScoreMatchSubstringLabels(t *testing.T) {
	w := DefaultWeights()

	// Labels are matched by substring, first table entry wins.
	assert.Equal(t, float64(100), w.FieldMatchWeight("customer_ssn"))
	assert.Equal(t, float64(65), w.FieldMatchWeight("Email Address"))
	assert.Equal(t, float64(55), w.FieldMatchWeight("username"))
	assert.Equal(t, float64(20), w.FieldMatchWeight("full_name"))
	assert.Equal(t, float64(0), w.FieldMatchWeight("shoe_size"))
}

func TestScoreMatchSeverityMonotonic(t *testing.T) {
	critical := models.RawFinding{
		SourceType:    models.SourceForum,
		MatchedFields: []string{"email"},
		Severity:      models.SeverityCritical,
	}
	low := critical
	low.Severity = models.SeverityLow

	assert.GreaterOrEqual(t, ScoreMatch(DefaultWeights(), critical), ScoreMatch(DefaultWeights(), low))
}

func TestScoreMatchUnknownEnumsDegrade(t *testing.T) {
	f := models.RawFinding{
		SourceType:    models.SourceType("carrier_pigeon"),
		MatchedFields: []string{"email"},
		Severity:      models.Severity("apocalyptic"),
	}
	// 65 * 1.0 * 1.0 * 0.5 = 32.5 -> 33; never panics, never errors.
	assert.Equal(t, 33, ScoreMatch(DefaultWeights(), f))
}

func TestScoreMatchRange(t *testing.T) {
	w := DefaultWeights()
	fields := [][]string{
		nil,
		{"ssn", "dob", "phone", "email", "address", "username", "alias", "employer", "name"},
		{"email"},
	}
	for _, mf := range fields {
		for _, st := range []models.SourceType{models.SourceDarkWeb, models.SourceNews, "??"} {
			for _, sev := range []models.Severity{models.SeverityCritical, models.SeverityLow, "??"} {
				got := ScoreMatch(w, models.RawFinding{SourceType: st, MatchedFields: mf, Severity: sev})
				assert.GreaterOrEqual(t, got, 0)
				assert.LessOrEqual(t, got, 100)
			}
		}
	}
}

func TestScoreMatchDeterminism(t *testing.T) {
	f := models.RawFinding{
		SourceType:    models.SourceDataBroker,
		MatchedFields: []string{"phone", "address"},
		Severity:      models.SeverityMedium,
	}
	first := ScoreMatch(DefaultWeights(), f)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, ScoreMatch(DefaultWeights(), f))
	}
}
