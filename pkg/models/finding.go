package models

import (
	"fmt"
	"strings"
)

type SourceType string

const (
	SourceBreachDatabase SourceType = "breach_database"
	SourceDataBroker     SourceType = "data_broker"
	SourcePeopleFinder   SourceType = "people_finder"
	SourceSocialMedia    SourceType = "social_media"
	SourceCourtRecord    SourceType = "court_record"
	SourcePaste          SourceType = "paste"
	SourceForum          SourceType = "forum"
	SourceNews           SourceType = "news"
	SourceDarkWeb        SourceType = "dark_web"
	SourcePublicRecord   SourceType = "public_record"
	SourceOther          SourceType = "other"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// RawFinding is an unvalidated candidate match produced by an intelligence
// provider. It carries everything the engine needs to decide whether the
// finding is really about the scanned person.
type RawFinding struct {
	SourceName      string     `json:"source_name" bson:"source_name"`
	SourceURL       string     `json:"source_url" bson:"source_url"`
	SourceType      SourceType `json:"source_type" bson:"source_type"`
	MatchedFields   []string   `json:"matched_fields" bson:"matched_fields"`
	MatchedValues   []string   `json:"matched_values" bson:"matched_values"`
	DataExposed     []string   `json:"data_exposed" bson:"data_exposed"`
	Confidence      int        `json:"confidence" bson:"confidence"`
	Severity        Severity   `json:"severity" bson:"severity"`
	IsImpersonation bool       `json:"is_impersonation" bson:"is_impersonation"`
	Explanation     string     `json:"explanation" bson:"explanation"`
	Provider        string     `json:"provider,omitempty" bson:"provider"`
}

// ValidatedMatch is a RawFinding that survived the validation rules and
// received a 0-100 match score.
type ValidatedMatch struct {
	RawFinding `bson:",inline"`
	MatchScore int `json:"match_score" bson:"match_score"`
}

func (f *RawFinding) Validate() error {
	if f.SourceName == "" {
		return fmt.Errorf("finding source_name is required")
	}

	switch f.Severity {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
	default:
		return fmt.Errorf("invalid severity: %s", f.Severity)
	}

	if f.Confidence < 0 || f.Confidence > 100 {
		return fmt.Errorf("confidence must be between 0 and 100")
	}

	return nil
}

func (f *RawFinding) HasField(field string) bool {
	for _, mf := range f.MatchedFields {
		if strings.EqualFold(mf, field) {
			return true
		}
	}
	return false
}

func (s SourceType) Valid() bool {
	switch s {
	case SourceBreachDatabase, SourceDataBroker, SourcePeopleFinder,
		SourceSocialMedia, SourceCourtRecord, SourcePaste, SourceForum,
		SourceNews, SourceDarkWeb, SourcePublicRecord, SourceOther:
		return true
	}
	return false
}

// NormalizeSourceType maps free-form provider strings onto the known source
// types, degrading to SourceOther rather than erroring.
func NormalizeSourceType(s string) SourceType {
	st := SourceType(strings.ToLower(strings.TrimSpace(s)))
	if st.Valid() {
		return st
	}
	return SourceOther
}

func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}
