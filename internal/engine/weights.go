package engine

import "strings"

// Weights is the immutable reference data the engine scores against: field
// sensitivity, field match weights, source reputation, severity and recency
// multipliers. Construct once via DefaultWeights (optionally overridden) and
// share; nothing mutates a Weights value after construction.
type Weights struct {
	fieldSensitivity map[string]float64
	fieldMatch       []fieldMatchWeight
	sourceReputation map[string]float64
	severity         map[string]float64

	defaultSensitivity float64
	defaultMultiplier  float64
}

// fieldMatchWeight entries are evaluated in order; field labels are matched
// by lowercase substring and the first hit wins. Order matters: "username"
// must be tried before "name".
type fieldMatchWeight struct {
	label  string
	weight float64
}

func DefaultWeights() Weights {
	return Weights{
		fieldSensitivity: map[string]float64{
			"ssn":             100,
			"passport":        95,
			"drivers_license": 90,
			"credit_card":     90,
			"green_card":      90,
			"bank_account":    85,
			"tax_id":          85,
			"dob":             70,
			"address":         60,
			"property_deed":   50,
			"phone":           50,
			"email":           45,
			"full_name":       40,
			"vehicle_vin":     40,
			"username":        30,
			"student_id":      30,
			"employer":        25,
			"relative":        20,
			"alias":           20,
		},
		fieldMatch: []fieldMatchWeight{
			{"ssn", 100},
			{"dob", 80},
			{"phone", 70},
			{"email", 65},
			{"address", 60},
			{"username", 55},
			{"alias", 50},
			{"employer", 40},
			{"name", 20},
		},
		sourceReputation: map[string]float64{
			"dark_web":        2.5,
			"breach_database": 2.0,
			"data_broker":     1.8,
			"people_finder":   1.7,
			"court_record":    1.6,
			"paste":           1.5,
			"forum":           1.3,
			"public_record":   1.3,
			"social_media":    1.2,
			"news":            1.0,
			"other":           1.0,
		},
		severity: map[string]float64{
			"critical": 2.5,
			"high":     1.8,
			"medium":   1.3,
			"low":      1.0,
		},
		defaultSensitivity: 30,
		defaultMultiplier:  1.0,
	}
}

// WithSourceOverrides returns a copy with selected source reputation
// multipliers replaced, mirroring how operators tune severity weights.
func (w Weights) WithSourceOverrides(overrides map[string]float64) Weights {
	if len(overrides) == 0 {
		return w
	}
	merged := make(map[string]float64, len(w.sourceReputation))
	for k, v := range w.sourceReputation {
		merged[k] = v
	}
	for k, v := range overrides {
		if v > 0 {
			merged[strings.ToLower(k)] = v
		}
	}
	out := w
	out.sourceReputation = merged
	return out
}

// SensitivityWeight looks up how sensitive an exposed data type is.
// Unknown types degrade to the default, never error.
func (w Weights) SensitivityWeight(dataType string) float64 {
	if v, ok := w.fieldSensitivity[normalizeLabel(dataType)]; ok {
		return v
	}
	return w.defaultSensitivity
}

// FieldMatchWeight scores a matched field label. Matching is substring-based
// on the lowercased label ("customer_ssn" hits the ssn weight); unmatched
// labels contribute 0.
func (w Weights) FieldMatchWeight(fieldLabel string) float64 {
	label := normalizeLabel(fieldLabel)
	for _, fm := range w.fieldMatch {
		if strings.Contains(label, fm.label) {
			return fm.weight
		}
	}
	return 0
}

func (w Weights) SourceMultiplier(sourceType string) float64 {
	if v, ok := w.sourceReputation[normalizeLabel(sourceType)]; ok {
		return v
	}
	return w.defaultMultiplier
}

func (w Weights) SeverityMultiplier(severity string) float64 {
	if v, ok := w.severity[normalizeLabel(severity)]; ok {
		return v
	}
	return w.defaultMultiplier
}

// RecencyMultiplier boosts recently observed exposures. daysSince below zero
// (clock skew) is treated as fresh.
func (w Weights) RecencyMultiplier(daysSince int) float64 {
	switch {
	case daysSince < 30:
		return 1.3
	case daysSince < 90:
		return 1.1
	default:
		return 1.0
	}
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
