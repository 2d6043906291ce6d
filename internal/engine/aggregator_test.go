package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilscan/veilscan/pkg/models"
)

func validatedMatch(st models.SourceType, sev models.Severity, score int) models.ValidatedMatch {
	return models.ValidatedMatch{
		RawFinding: models.RawFinding{
			SourceName:    "src-" + string(st),
			SourceURL:     "https://intel.osintwatch.io/x",
			SourceType:    st,
			MatchedFields: []string{"email"},
			Severity:      sev,
		},
		MatchScore: score,
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	res := NewAggregator().Aggregate(nil)
	assert.Equal(t, 0, res.RiskScore)
	assert.Equal(t, 0, res.Stats.TotalValidated)
	assert.Zero(t, res.Stats.AverageMatch)
}

func TestAggregateWorkedExample(t *testing.T) {
	// One critical breach match with score 100:
	// 100*0.4 + breach 10 + critical 10 = 60
	m := validatedMatch(models.SourceBreachDatabase, models.SeverityCritical, 100)
	res := NewAggregator().Aggregate([]models.ValidatedMatch{m})

	require.Len(t, res.BreachFindings, 1)
	assert.Equal(t, 60, res.RiskScore)
}

func TestAggregateCategoriesAreExclusive(t *testing.T) {
	matches := []models.ValidatedMatch{
		validatedMatch(models.SourceDataBroker, models.SeverityLow, 50),
		validatedMatch(models.SourcePeopleFinder, models.SeverityLow, 50),
		validatedMatch(models.SourceBreachDatabase, models.SeverityLow, 50),
		validatedMatch(models.SourcePaste, models.SeverityLow, 50),
		validatedMatch(models.SourceSocialMedia, models.SeverityLow, 50),
		validatedMatch(models.SourceCourtRecord, models.SeverityLow, 50),
		validatedMatch(models.SourceNews, models.SeverityLow, 50),
		validatedMatch(models.SourceForum, models.SeverityLow, 50),
	}
	res := NewAggregator().Aggregate(matches)

	assert.Len(t, res.BrokerFindings, 2)
	assert.Len(t, res.BreachFindings, 2)
	assert.Len(t, res.SocialFindings, 1)
	assert.Len(t, res.CourtFindings, 1)
	assert.Len(t, res.OSINTFindings, 2)

	total := len(res.BrokerFindings) + len(res.BreachFindings) + len(res.SocialFindings) +
		len(res.CourtFindings) + len(res.OSINTFindings)
	assert.Equal(t, len(matches), total)
}

func TestAggregateImpersonationIsNonExclusive(t *testing.T) {
	m := validatedMatch(models.SourceSocialMedia, models.SeverityHigh, 80)
	m.IsImpersonation = true
	res := NewAggregator().Aggregate([]models.ValidatedMatch{m})

	assert.Len(t, res.SocialFindings, 1, "impersonation keeps its source category")
	assert.Len(t, res.ImpersonationAlerts, 1)
}

func TestAggregateVolumeCap(t *testing.T) {
	// 50 low-severity, non-impersonation, non-breach matches: the volume
	// term must contribute at most 20 points.
	matches := make([]models.ValidatedMatch, 50)
	for i := range matches {
		matches[i] = validatedMatch(models.SourceSocialMedia, models.SeverityLow, 12)
	}
	res := NewAggregator().Aggregate(matches)

	// avg 12 * 0.4 = 4.8, plus the capped volume term of 20 -> 24.8 -> 25.
	assert.Equal(t, 25, res.RiskScore)
}

func TestAggregateScoreRange(t *testing.T) {
	matches := make([]models.ValidatedMatch, 60)
	for i := range matches {
		m := validatedMatch(models.SourceBreachDatabase, models.SeverityCritical, 100)
		m.IsImpersonation = true
		matches[i] = m
	}
	res := NewAggregator().Aggregate(matches)
	assert.Equal(t, 100, res.RiskScore, "score stays clamped under extreme input")
}

func TestAggregateDeterminism(t *testing.T) {
	matches := []models.ValidatedMatch{
		validatedMatch(models.SourceDataBroker, models.SeverityMedium, 61),
		validatedMatch(models.SourceBreachDatabase, models.SeverityCritical, 95),
		validatedMatch(models.SourceSocialMedia, models.SeverityLow, 14),
	}
	first := NewAggregator().Aggregate(matches)
	second := NewAggregator().Aggregate(matches)
	assert.Equal(t, first.RiskScore, second.RiskScore)
	assert.Equal(t, first.Stats, second.Stats)
}

func TestSnapshot(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	agg := NewAggregator()

	m := validatedMatch(models.SourceDataBroker, models.SeverityHigh, 70)
	res := agg.Aggregate([]models.ValidatedMatch{m})
	snap := agg.Snapshot("prof-1", res, []string{"ssn+dob"}, now)

	assert.Equal(t, "prof-1", snap.ProfileID)
	assert.Equal(t, res.RiskScore, snap.OverallRiskScore)
	assert.Equal(t, 1, snap.ExposureCount)
	assert.Equal(t, 1, snap.Brokers)
	assert.Equal(t, []string{"ssn+dob"}, snap.HighRiskCombinations)
	assert.Equal(t, now, snap.ComputedAt)
}

func TestEngineProcessEndToEnd(t *testing.T) {
	eng := New()

	findings := []models.RawFinding{
		{
			SourceName:    "ShadowLeaks",
			SourceURL:     "https://shadowleaks.io/records/4812",
			SourceType:    models.SourceBreachDatabase,
			MatchedFields: []string{"email", "ssn"},
			DataExposed:   []string{"email", "ssn"},
			Confidence:    90,
			Severity:      models.SeverityCritical,
		},
		{
			// Name-only: must be dropped silently.
			SourceName:    "WhoIsWho",
			SourceURL:     "https://whoiswho.directory/p/991",
			SourceType:    models.SourcePeopleFinder,
			MatchedFields: []string{"full_name"},
			Confidence:    88,
			Severity:      models.SeverityLow,
		},
	}

	res := eng.Process(findings)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, 2, res.Stats.TotalCandidates)
	assert.Equal(t, 1, res.Stats.TotalRejected)
	assert.Equal(t, 100, res.Matches[0].MatchScore)
	assert.Equal(t, 60, res.RiskScore)

	again := eng.Process(findings)
	assert.Equal(t, res.RiskScore, again.RiskScore, "processing is deterministic")
}
