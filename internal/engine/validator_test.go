package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilscan/veilscan/pkg/models"
)

func candidateFinding() models.RawFinding {
	return models.RawFinding{
		SourceName:    "ShadowLeaks",
		SourceURL:     "https://shadowleaks.io/records/4812",
		SourceType:    models.SourceBreachDatabase,
		MatchedFields: []string{"email", "ssn"},
		DataExposed:   []string{"email", "ssn"},
		Confidence:    90,
		Severity:      models.SeverityCritical,
	}
}

func TestValidatorRejections(t *testing.T) {
	v := NewValidator(DefaultWeights())

	t.Run("missing source url", func(t *testing.T) {
		f := candidateFinding()
		f.SourceURL = ""
		_, ok := v.Validate(f)
		assert.False(t, ok)
	})

	t.Run("placeholder domain", func(t *testing.T) {
		f := candidateFinding()
		f.SourceURL = "https://breach.example.com/record/1"
		_, ok := v.Validate(f)
		assert.False(t, ok)
	})

	t.Run("low confidence", func(t *testing.T) {
		f := candidateFinding()
		f.Confidence = 49
		_, ok := v.Validate(f)
		assert.False(t, ok)
	})

	t.Run("confidence at threshold accepted", func(t *testing.T) {
		f := candidateFinding()
		f.Confidence = 50
		_, ok := v.Validate(f)
		assert.True(t, ok)
	})

	t.Run("no matched fields", func(t *testing.T) {
		f := candidateFinding()
		f.MatchedFields = nil
		_, ok := v.Validate(f)
		assert.False(t, ok)
	})

	t.Run("name only is always rejected", func(t *testing.T) {
		f := candidateFinding()
		f.MatchedFields = []string{"full_name"}
		_, ok := v.Validate(f)
		assert.False(t, ok)
	})

	t.Run("name with one corroborating field rejected", func(t *testing.T) {
		f := candidateFinding()
		f.MatchedFields = []string{"full_name", "email"}
		_, ok := v.Validate(f)
		assert.False(t, ok)
	})

	t.Run("name with two corroborating fields accepted", func(t *testing.T) {
		f := candidateFinding()
		f.MatchedFields = []string{"full_name", "email", "phone"}
		_, ok := v.Validate(f)
		assert.True(t, ok)
	})

	t.Run("single strong field accepted", func(t *testing.T) {
		f := candidateFinding()
		f.MatchedFields = []string{"email"}
		_, ok := v.Validate(f)
		assert.True(t, ok)
	})

	t.Run("two weak fields accepted", func(t *testing.T) {
		f := candidateFinding()
		f.MatchedFields = []string{"employer", "relative"}
		_, ok := v.Validate(f)
		assert.True(t, ok)
	})

	t.Run("single weak field rejected", func(t *testing.T) {
		f := candidateFinding()
		f.MatchedFields = []string{"employer"}
		_, ok := v.Validate(f)
		assert.False(t, ok)
	})
}

func TestValidatorStrictThreshold(t *testing.T) {
	strict := NewValidator(DefaultWeights(), Strict())

	f := candidateFinding()
	f.Confidence = 60
	_, ok := strict.Validate(f)
	assert.False(t, ok, "confidence 60 must fail the strict threshold")

	f.Confidence = 70
	_, ok = strict.Validate(f)
	assert.True(t, ok)
}

func TestValidatorUsernameIsNotANameField(t *testing.T) {
	v := NewValidator(DefaultWeights())

	// "username" contains "name" but is a strong identifier, not a name.
	f := candidateFinding()
	f.MatchedFields = []string{"username"}
	_, ok := v.Validate(f)
	assert.True(t, ok)
}

func TestValidatorAttachesMatchScore(t *testing.T) {
	v := NewValidator(DefaultWeights())

	m, ok := v.Validate(candidateFinding())
	require.True(t, ok)
	assert.Equal(t, 100, m.MatchScore)
}

func TestValidatorDeterminism(t *testing.T) {
	v := NewValidator(DefaultWeights())
	f := candidateFinding()

	first, ok1 := v.Validate(f)
	second, ok2 := v.Validate(f)
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, first, second)
}

func TestIsPlaceholderHost(t *testing.T) {
	assert.True(t, IsPlaceholderHost("example.com"))
	assert.True(t, IsPlaceholderHost("api.example.com"))
	assert.True(t, IsPlaceholderHost("broker.invalid"))
	assert.True(t, IsPlaceholderHost(""))
	assert.False(t, IsPlaceholderHost("spokeo.com"))
	assert.False(t, IsPlaceholderHost("myexample.com.au"))
}
