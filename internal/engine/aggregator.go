package engine

import (
	"math"
	"time"

	"github.com/veilscan/veilscan/pkg/models"
)

// Result is the full output of the validate-and-score pipeline for one
// profile: every validated match, the category buckets, and the rolled-up
// profile risk score.
type Result struct {
	Matches             []models.ValidatedMatch `json:"matches"`
	ImpersonationAlerts []models.ValidatedMatch `json:"impersonation_alerts"`
	BrokerFindings      []models.ValidatedMatch `json:"broker_findings"`
	BreachFindings      []models.ValidatedMatch `json:"breach_findings"`
	SocialFindings      []models.ValidatedMatch `json:"social_findings"`
	OSINTFindings       []models.ValidatedMatch `json:"osint_findings"`
	CourtFindings       []models.ValidatedMatch `json:"court_findings"`
	RiskScore           int                     `json:"risk_score"`
	Stats               ResultStats             `json:"stats"`
}

type ResultStats struct {
	TotalCandidates  int     `json:"total_candidates"`
	TotalValidated   int     `json:"total_validated"`
	TotalRejected    int     `json:"total_rejected"`
	AverageMatch     float64 `json:"average_match"`
	CriticalSeverity int     `json:"critical_severity"`
	HighSeverity     int     `json:"high_severity"`
}

// Aggregator buckets validated matches by source category and combines their
// scores into one profile-level number. The formula is deliberately additive
// so an analyst can see exactly why a score moved: no term can outgrow its
// cap, and a flood of weak matches can never drown out one impersonation or
// breach.
type Aggregator struct{}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

func (a *Aggregator) Aggregate(matches []models.ValidatedMatch) *Result {
	res := &Result{
		Matches: matches,
		Stats:   ResultStats{TotalValidated: len(matches)},
	}

	var matchTotal float64
	var volumeCount int
	for _, m := range matches {
		matchTotal += float64(m.MatchScore)

		switch m.Severity {
		case models.SeverityCritical:
			res.Stats.CriticalSeverity++
		case models.SeverityHigh:
			res.Stats.HighSeverity++
		}

		// Categories are mutually exclusive by source type; the
		// impersonation flag additionally routes a copy into alerts.
		weighted := m.IsImpersonation
		switch m.SourceType {
		case models.SourceDataBroker, models.SourcePeopleFinder:
			res.BrokerFindings = append(res.BrokerFindings, m)
			weighted = true
		case models.SourceBreachDatabase, models.SourcePaste:
			res.BreachFindings = append(res.BreachFindings, m)
			weighted = true
		case models.SourceSocialMedia:
			res.SocialFindings = append(res.SocialFindings, m)
		case models.SourceCourtRecord:
			res.CourtFindings = append(res.CourtFindings, m)
		default:
			res.OSINTFindings = append(res.OSINTFindings, m)
		}

		if m.IsImpersonation {
			res.ImpersonationAlerts = append(res.ImpersonationAlerts, m)
		}

		// Matches without a per-hit penalty still count toward the capped
		// volume term, so sheer breadth of exposure is never free.
		if !weighted {
			volumeCount++
		}
	}

	if len(matches) > 0 {
		res.Stats.AverageMatch = matchTotal / float64(len(matches))
	}

	res.RiskScore = a.profileScore(res, volumeCount)
	return res
}

// profileScore: 40% average match quality, fixed penalties per
// impersonation/breach/broker hit, a volume term capped at 20 over the
// remaining matches, and 10 per critical finding. Clamped to [0,100].
func (a *Aggregator) profileScore(res *Result, volumeCount int) int {
	score := res.Stats.AverageMatch * 0.4
	score += float64(len(res.ImpersonationAlerts)) * 15
	score += float64(len(res.BreachFindings)) * 10
	score += float64(len(res.BrokerFindings)) * 8
	score += math.Min(20, float64(volumeCount)*2)
	score += float64(res.Stats.CriticalSeverity) * 10

	return clampScore(score)
}

// Snapshot projects a Result into the persisted summary shape. High-risk
// combinations come from the external correlation analysis and are attached
// by the caller.
func (a *Aggregator) Snapshot(profileID string, res *Result, highRiskCombos []string, now time.Time) models.ProfileRiskSnapshot {
	return models.ProfileRiskSnapshot{
		ProfileID:            profileID,
		OverallRiskScore:     res.RiskScore,
		ExposureCount:        len(res.Matches),
		Impersonations:       len(res.ImpersonationAlerts),
		Breaches:             len(res.BreachFindings),
		Brokers:              len(res.BrokerFindings),
		Social:               len(res.SocialFindings),
		OSINT:                len(res.OSINTFindings),
		Court:                len(res.CourtFindings),
		HighRiskCombinations: highRiskCombos,
		ComputedAt:           now,
	}
}
