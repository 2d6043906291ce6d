package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
)

const (
	ExposureStatusActive       = "active"
	ExposureStatusAcknowledged = "acknowledged"
	ExposureStatusRemoval      = "removal_requested"
	ExposureStatusResolved     = "resolved"
)

// ExposureRecord is the persisted, scored representation of a validated
// finding tied to a profile. Records are updated in place when risk scores
// are recomputed; they are never deleted by the scoring pipeline.
type ExposureRecord struct {
	ID          string                 `json:"id" yaml:"id" bson:"_id"`
	ProfileID   string                 `json:"profile_id" yaml:"profile_id" bson:"profile_id"`
	SourceName  string                 `json:"source_name" yaml:"source_name" bson:"source_name"`
	SourceURL   string                 `json:"source_url,omitempty" yaml:"source_url,omitempty" bson:"source_url"`
	SourceType  SourceType             `json:"source_type" yaml:"source_type" bson:"source_type"`
	RiskScore   int                    `json:"risk_score" yaml:"risk_score" bson:"risk_score"`
	DataExposed []string               `json:"data_exposed" yaml:"data_exposed" bson:"data_exposed"`
	ScanDate    time.Time              `json:"scan_date" yaml:"scan_date" bson:"scan_date"`
	Status      string                 `json:"status" yaml:"status" bson:"status"`
	Metadata    map[string]interface{} `json:"metadata" yaml:"metadata" bson:"metadata"`
}

// ProfileRiskSnapshot summarizes one profile's exposure at a point in time.
type ProfileRiskSnapshot struct {
	ProfileID            string    `json:"profile_id" yaml:"profile_id" bson:"profile_id"`
	OverallRiskScore     int       `json:"overall_risk_score" yaml:"overall_risk_score" bson:"overall_risk_score"`
	ExposureCount        int       `json:"exposure_count" yaml:"exposure_count" bson:"exposure_count"`
	Impersonations       int       `json:"impersonations" yaml:"impersonations" bson:"impersonations"`
	Breaches             int       `json:"breaches" yaml:"breaches" bson:"breaches"`
	Brokers              int       `json:"brokers" yaml:"brokers" bson:"brokers"`
	Social               int       `json:"social" yaml:"social" bson:"social"`
	OSINT                int       `json:"osint" yaml:"osint" bson:"osint"`
	Court                int       `json:"court" yaml:"court" bson:"court"`
	HighRiskCombinations []string  `json:"high_risk_combinations,omitempty" yaml:"high_risk_combinations,omitempty" bson:"high_risk_combinations"`
	ComputedAt           time.Time `json:"computed_at" yaml:"computed_at" bson:"computed_at"`
}

// NewExposureRecord builds a record from a validated match. The metadata map
// preserves the validation context so later rescoring and display do not need
// the transient match.
func NewExposureRecord(id, profileID string, m ValidatedMatch, scanDate time.Time) ExposureRecord {
	return ExposureRecord{
		ID:          id,
		ProfileID:   profileID,
		SourceName:  m.SourceName,
		SourceURL:   m.SourceURL,
		SourceType:  m.SourceType,
		RiskScore:   m.MatchScore,
		DataExposed: append([]string(nil), m.DataExposed...),
		ScanDate:    scanDate,
		Status:      ExposureStatusActive,
		Metadata: map[string]interface{}{
			"matched_fields":   append([]string(nil), m.MatchedFields...),
			"confidence":       m.Confidence,
			"is_impersonation": m.IsImpersonation,
			"explanation":      m.Explanation,
			"match_score":      m.MatchScore,
			"severity":         string(m.Severity),
			"provider":         m.Provider,
		},
	}
}

func (r *ExposureRecord) Validate() error {
	if r.ProfileID == "" {
		return fmt.Errorf("exposure record requires a profile_id")
	}
	if r.SourceName == "" {
		return fmt.Errorf("exposure record requires a source_name")
	}
	if r.RiskScore < 0 || r.RiskScore > 100 {
		return fmt.Errorf("risk score must be between 0 and 100")
	}
	if len(r.MatchedFields()) == 0 {
		return fmt.Errorf("exposure record requires at least one matched field")
	}
	return nil
}

func (r *ExposureRecord) MatchedFields() []string {
	if r.Metadata == nil {
		return nil
	}
	switch v := r.Metadata["matched_fields"].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, f := range v {
			if s, ok := f.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func (r *ExposureRecord) IsImpersonation() bool {
	if r.Metadata == nil {
		return false
	}
	b, _ := r.Metadata["is_impersonation"].(bool)
	return b
}

func (r *ExposureRecord) SeverityLabel() Severity {
	if r.Metadata != nil {
		if s, ok := r.Metadata["severity"].(string); ok && Severity(s).Valid() {
			return Severity(s)
		}
	}
	switch {
	case r.RiskScore >= 75:
		return SeverityCritical
	case r.RiskScore >= 50:
		return SeverityHigh
	case r.RiskScore >= 25:
		return SeverityMedium
	}
	return SeverityLow
}

// DedupeKey identifies a record by (profile_id, source_name). Re-running a
// scan over an unchanged finding set must map to the same key so the store
// upserts instead of duplicating.
func (r *ExposureRecord) DedupeKey() uint64 {
	return DedupeKey(r.ProfileID, r.SourceName)
}

func DedupeKey(profileID, sourceName string) uint64 {
	k := strings.ToLower(strings.TrimSpace(profileID)) + "\x00" + strings.ToLower(strings.TrimSpace(sourceName))
	return xxh3.HashString(k)
}
