package engine

import (
	"net/url"
	"strings"

	"github.com/veilscan/veilscan/pkg/models"
)

const (
	// DefaultMinConfidence is the canonical acceptance threshold.
	DefaultMinConfidence = 50
	// StrictMinConfidence is used by call sites that prefer false negatives
	// over noisy matches (rescoring over already-persisted profiles).
	StrictMinConfidence = 70
)

// strongFields are identifiers individually dispositive for a match: one hit
// is enough to accept a finding. A bare name never is, because common names
// produce high false-positive rates.
var strongFields = []string{"email", "phone", "username", "ssn", "dob", "address", "alias"}

// placeholderSuffixes are hosts that only ever appear in fabricated or
// template findings.
var placeholderSuffixes = []string{
	"example.com", "example.org", "example.net",
	"test.com", "localhost", "invalid",
	"placeholder.com", "yoursite.com", "domain.com",
}

// Validator applies the matching rules that decide whether a candidate
// finding is really about this person. Findings that fail are dropped
// silently; a dropped finding is a non-event, not an error.
type Validator struct {
	weights       Weights
	minConfidence int
}

type ValidatorOption func(*Validator)

func WithMinConfidence(min int) ValidatorOption {
	return func(v *Validator) {
		if min > 0 {
			v.minConfidence = min
		}
	}
}

func Strict() ValidatorOption {
	return func(v *Validator) { v.minConfidence = StrictMinConfidence }
}

func NewValidator(weights Weights, opts ...ValidatorOption) *Validator {
	v := &Validator{weights: weights, minConfidence: DefaultMinConfidence}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs the rejection rules in order and, on acceptance, returns the
// finding with its match score attached. The second return is false when the
// finding was rejected.
func (v *Validator) Validate(f models.RawFinding) (models.ValidatedMatch, bool) {
	if !v.hasCredibleSource(f) {
		return models.ValidatedMatch{}, false
	}
	if f.Confidence < v.minConfidence {
		return models.ValidatedMatch{}, false
	}
	if len(f.MatchedFields) == 0 {
		return models.ValidatedMatch{}, false
	}
	if !v.passesNameRule(f.MatchedFields) {
		return models.ValidatedMatch{}, false
	}
	if !v.passesStrongMatchRule(f.MatchedFields) {
		return models.ValidatedMatch{}, false
	}

	match := models.ValidatedMatch{RawFinding: f}
	match.MatchScore = ScoreMatch(v.weights, f)
	return match, true
}

func (v *Validator) hasCredibleSource(f models.RawFinding) bool {
	raw := strings.TrimSpace(f.SourceURL)
	if raw == "" {
		return false
	}
	return !IsPlaceholderHost(hostOf(raw))
}

// passesNameRule rejects findings anchored only on a name. A name alongside
// other fields needs at least two non-name corroborating fields.
func (v *Validator) passesNameRule(fields []string) bool {
	nameCount, otherCount := 0, 0
	for _, field := range fields {
		if isNameField(field) {
			nameCount++
		} else {
			otherCount++
		}
	}
	if nameCount == 0 {
		return true
	}
	if otherCount == 0 {
		return false
	}
	return otherCount >= 2
}

// passesStrongMatchRule accepts a finding with at least one strong
// identifier, or with two or more matched fields of any kind.
func (v *Validator) passesStrongMatchRule(fields []string) bool {
	if len(fields) >= 2 {
		return true
	}
	for _, field := range fields {
		if isStrongField(field) {
			return true
		}
	}
	return false
}

func isNameField(label string) bool {
	l := normalizeLabel(label)
	return strings.Contains(l, "name") && !strings.Contains(l, "user") && !strings.Contains(l, "screen")
}

func isStrongField(label string) bool {
	l := normalizeLabel(label)
	for _, strong := range strongFields {
		if strings.Contains(l, strong) {
			return true
		}
	}
	return false
}

// IsPlaceholderHost reports whether a host is an obvious template domain.
// Pure string check; live DNS screening is the caller's business.
func IsPlaceholderHost(host string) bool {
	h := normalizeLabel(host)
	if h == "" {
		return true
	}
	for _, suffix := range placeholderSuffixes {
		if h == suffix || strings.HasSuffix(h, "."+suffix) {
			return true
		}
	}
	return false
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		// Providers sometimes return bare hosts without a scheme.
		if !strings.Contains(rawURL, "://") {
			return strings.Split(rawURL, "/")[0]
		}
		return ""
	}
	return u.Hostname()
}
