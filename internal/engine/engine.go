// Package engine implements the identity finding validation and risk scoring
// rules: deciding whether a candidate match is really about this person,
// weighting it, and rolling many findings into one profile-level risk number.
//
// Everything in this package is pure and synchronous. The engine performs no
// I/O, holds no mutable state, and may be shared freely across goroutines;
// fetching findings and persisting results belong to the orchestration layer.
package engine

import (
	"github.com/veilscan/veilscan/pkg/models"
)

type Engine struct {
	weights    Weights
	validator  *Validator
	riskScorer *RiskScorer
	aggregator *Aggregator
}

type Option func(*options)

type options struct {
	validatorOpts   []ValidatorOption
	sourceOverrides map[string]float64
}

// WithValidation forwards options to the finding validator (confidence
// threshold, strict mode).
func WithValidation(opts ...ValidatorOption) Option {
	return func(o *options) { o.validatorOpts = append(o.validatorOpts, opts...) }
}

// WithSourceReputation overrides source reputation multipliers.
func WithSourceReputation(overrides map[string]float64) Option {
	return func(o *options) { o.sourceOverrides = overrides }
}

func New(opts ...Option) *Engine {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	weights := DefaultWeights().WithSourceOverrides(o.sourceOverrides)
	return &Engine{
		weights:    weights,
		validator:  NewValidator(weights, o.validatorOpts...),
		riskScorer: NewRiskScorer(weights),
		aggregator: NewAggregator(),
	}
}

// Process validates every candidate finding, scores the survivors, and
// aggregates them into a profile result. Rejected findings are dropped
// silently by design: a false negative costs a missed alert, a false
// positive costs the user's trust.
func (e *Engine) Process(findings []models.RawFinding) *Result {
	matches := make([]models.ValidatedMatch, 0, len(findings))
	for _, f := range findings {
		if m, ok := e.validator.Validate(f); ok {
			matches = append(matches, m)
		}
	}

	res := e.aggregator.Aggregate(matches)
	res.Stats.TotalCandidates = len(findings)
	res.Stats.TotalRejected = len(findings) - len(matches)
	return res
}

func (e *Engine) Validator() *Validator     { return e.validator }
func (e *Engine) RiskScorer() *RiskScorer   { return e.riskScorer }
func (e *Engine) Aggregator() *Aggregator   { return e.aggregator }
func (e *Engine) Weights() Weights          { return e.weights }
