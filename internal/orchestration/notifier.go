package orchestration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/veilscan/veilscan/internal/engine"
	"github.com/veilscan/veilscan/pkg/models"
	"github.com/veilscan/veilscan/pkg/utils"
)

// Notifier delivers webhook alerts when a scan surfaces something urgent:
// any impersonation, any critical finding, or an overall risk score above
// the configured threshold. Payloads are signed with a short-lived JWT so
// the receiver can verify origin.
type Notifier struct {
	webhookURL    string
	signingSecret string
	riskThreshold int
	httpClient    *http.Client
	metrics       *utils.MetricsCollector
	logger        *logrus.Logger
}

type NotifierConfig struct {
	WebhookURL    string `yaml:"webhook_url" json:"webhook_url"`
	SigningSecret string `yaml:"signing_secret" json:"signing_secret"`
	RiskThreshold int    `yaml:"risk_threshold" json:"risk_threshold"`
}

type alertPayload struct {
	ProfileID      string    `json:"profile_id"`
	RiskScore      int       `json:"risk_score"`
	Impersonations int       `json:"impersonations"`
	CriticalCount  int       `json:"critical_count"`
	ExposureCount  int       `json:"exposure_count"`
	Reasons        []string  `json:"reasons"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewNotifier(config NotifierConfig, metrics *utils.MetricsCollector, logger *logrus.Logger) *Notifier {
	if logger == nil {
		logger = logrus.New()
	}
	if config.RiskThreshold <= 0 {
		config.RiskThreshold = 75
	}
	return &Notifier{
		webhookURL:    config.WebhookURL,
		signingSecret: config.SigningSecret,
		riskThreshold: config.RiskThreshold,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		metrics:       metrics,
		logger:        logger,
	}
}

// NotifyIfNeeded checks the alert conditions and fires the webhook when any
// holds. Returns whether a notification was sent.
func (n *Notifier) NotifyIfNeeded(ctx context.Context, snapshot models.ProfileRiskSnapshot, result *engine.Result) (bool, error) {
	if n.webhookURL == "" {
		return false, nil
	}

	reasons := alertReasons(snapshot, result, n.riskThreshold)
	if len(reasons) == 0 {
		return false, nil
	}

	payload := alertPayload{
		ProfileID:      snapshot.ProfileID,
		RiskScore:      snapshot.OverallRiskScore,
		Impersonations: snapshot.Impersonations,
		CriticalCount:  result.Stats.CriticalSeverity,
		ExposureCount:  snapshot.ExposureCount,
		Reasons:        reasons,
		Timestamp:      time.Now().UTC(),
	}

	if err := n.deliver(ctx, payload); err != nil {
		if n.metrics != nil {
			n.metrics.NotificationsSent.WithLabelValues("failed").Inc()
		}
		return false, err
	}
	if n.metrics != nil {
		n.metrics.NotificationsSent.WithLabelValues("delivered").Inc()
	}
	n.logger.WithFields(logrus.Fields{
		"profile_id": snapshot.ProfileID,
		"reasons":    strings.Join(reasons, "; "),
	}).Info("Alert notification delivered")
	return true, nil
}

func alertReasons(snapshot models.ProfileRiskSnapshot, result *engine.Result, threshold int) []string {
	var reasons []string
	if snapshot.Impersonations > 0 {
		reasons = append(reasons, fmt.Sprintf("%d possible impersonation(s)", snapshot.Impersonations))
	}
	if result.Stats.CriticalSeverity > 0 {
		reasons = append(reasons, fmt.Sprintf("%d critical finding(s)", result.Stats.CriticalSeverity))
	}
	if snapshot.OverallRiskScore >= threshold {
		reasons = append(reasons, fmt.Sprintf("risk score %d at or above threshold %d", snapshot.OverallRiskScore, threshold))
	}
	return reasons
}

func (n *Notifier) deliver(ctx context.Context, payload alertPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode alert payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "VeilScan/1.0 (notifier)")

	if n.signingSecret != "" {
		token, err := utils.SignJWT(n.signingSecret, map[string]interface{}{
			"profile_id":  payload.ProfileID,
			"body_sha256": utils.SHA256Hash(string(body)),
		}, 5*time.Minute)
		if err != nil {
			return fmt.Errorf("sign alert payload: %w", err)
		}
		req.Header.Set("X-VeilScan-Signature", token)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("alert webhook status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}
