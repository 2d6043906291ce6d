package intelligence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/veilscan/veilscan/pkg/models"
)

const (
	minCorrelationMultiplier = 1.0
	maxCorrelationMultiplier = 3.0
)

// CorrelationAdvisor asks a language model whether the exposures on a profile
// compound each other (same password reused across breached sites, home
// address plus daily schedule, and so on) and turns the answer into a bounded
// risk multiplier. The advisor is advisory only: any failure, timeout, or
// malformed reply degrades to the neutral multiplier.
type CorrelationAdvisor struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *logrus.Logger
}

type correlationReply struct {
	Multiplier   float64  `json:"multiplier"`
	Combinations []string `json:"high_risk_combinations"`
	Rationale    string   `json:"rationale"`
}

// CorrelationResult is the advisor's typed output. Multiplier is always in
// [1.0, 3.0] by the time callers see it.
type CorrelationResult struct {
	Multiplier   float64
	Combinations []string
}

func NewCorrelationAdvisor(apiKey, baseURL, model string, timeout time.Duration, logger *logrus.Logger) *CorrelationAdvisor {
	if logger == nil {
		logger = logrus.New()
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &CorrelationAdvisor{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

// Neutral is the result used when the advisor is disabled or fails.
func Neutral() CorrelationResult {
	return CorrelationResult{Multiplier: minCorrelationMultiplier}
}

// Assess summarizes the profile's exposure surface for the model and parses
// its reply. Only exposed field names and source types cross the wire; raw
// identifier values never leave the process.
func (a *CorrelationAdvisor) Assess(ctx context.Context, records []*models.ExposureRecord) CorrelationResult {
	if a == nil || len(records) < 2 {
		return Neutral()
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: `You assess how exposures of one person's data compound each other.
Reply with a JSON object: {"multiplier": <number between 1.0 and 3.0>,
"high_risk_combinations": [<short labels>], "rationale": <one sentence>}.
1.0 means the exposures are independent; 3.0 means they combine into a
severe compound risk such as identity theft or physical tracking.`,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: exposureSummary(records),
			},
		},
	})
	if err != nil {
		a.logger.Warnf("Correlation assessment failed, using neutral multiplier: %v", err)
		return Neutral()
	}
	if len(resp.Choices) == 0 {
		a.logger.Warn("Correlation assessment returned no choices, using neutral multiplier")
		return Neutral()
	}

	result, err := ParseCorrelationReply(resp.Choices[0].Message.Content)
	if err != nil {
		a.logger.Warnf("Correlation reply unparseable, using neutral multiplier: %v", err)
		return Neutral()
	}
	return result
}

// ParseCorrelationReply parses and clamps a model reply. The reply must be a
// JSON object with a numeric multiplier; anything else is an error and the
// caller falls back to neutral.
func ParseCorrelationReply(content string) (CorrelationResult, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var reply correlationReply
	if err := json.Unmarshal([]byte(content), &reply); err != nil {
		return Neutral(), fmt.Errorf("parse correlation reply: %w", err)
	}
	if reply.Multiplier == 0 {
		return Neutral(), fmt.Errorf("correlation reply missing multiplier")
	}

	m := reply.Multiplier
	if m < minCorrelationMultiplier {
		m = minCorrelationMultiplier
	}
	if m > maxCorrelationMultiplier {
		m = maxCorrelationMultiplier
	}

	combos := make([]string, 0, len(reply.Combinations))
	for _, c := range reply.Combinations {
		c = strings.TrimSpace(c)
		if c != "" {
			combos = append(combos, c)
		}
	}

	return CorrelationResult{Multiplier: m, Combinations: combos}, nil
}

func exposureSummary(records []*models.ExposureRecord) string {
	var sb strings.Builder
	sb.WriteString("Exposures found for one person:\n")
	for _, r := range records {
		fmt.Fprintf(&sb, "- source_type=%s exposed=[%s]",
			r.SourceType, strings.Join(r.DataExposed, ", "))
		if r.IsImpersonation() {
			sb.WriteString(" impersonation=true")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
