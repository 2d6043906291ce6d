package intelligence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/veilscan/veilscan/pkg/models"
)

type BreachIndexConfig struct {
	APIKey    string
	BaseURL   string
	RateLimit time.Duration
}

// BreachIndexProvider queries a breach index API for each email in the
// profile. The index returns one entry per breached site with the data
// classes that leaked.
type BreachIndexProvider struct {
	config *BreachIndexConfig
}

func NewBreachIndexProvider(config *BreachIndexConfig) *BreachIndexProvider {
	if config.BaseURL == "" {
		config.BaseURL = "https://haveibeenpwned.com/api/v3"
	}
	if config.RateLimit == 0 {
		config.RateLimit = 1500 * time.Millisecond
	}
	return &BreachIndexProvider{config: config}
}

func (b *BreachIndexProvider) Name() string             { return "breachindex" }
func (b *BreachIndexProvider) RateLimit() time.Duration { return b.config.RateLimit }
func (b *BreachIndexProvider) RequiresAPIKey() bool     { return true }

func (b *BreachIndexProvider) Search(ctx context.Context, httpClient *http.Client, ids models.SearchIdentifiers) ([]models.RawFinding, error) {
	findings := make([]models.RawFinding, 0, 16)

	for _, email := range ids.Emails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			continue
		}

		breaches, err := b.queryAccount(ctx, httpClient, "breachedaccount", email)
		if err != nil {
			return nil, err
		}
		for _, entry := range breaches {
			findings = append(findings, models.RawFinding{
				SourceName:    entry.Name,
				SourceURL:     fmt.Sprintf("https://%s", entry.Domain),
				SourceType:    models.SourceBreachDatabase,
				MatchedFields: []string{"email"},
				MatchedValues: []string{email},
				DataExposed:   normalizeDataClasses(entry.DataClasses),
				Confidence:    confidenceForBreach(entry),
				Severity:      severityForBreach(entry),
				Explanation:   fmt.Sprintf("Email found in the %s breach (%s)", entry.Title, entry.BreachDate),
			})
		}

		pastes, err := b.queryAccount(ctx, httpClient, "pasteaccount", email)
		if err != nil {
			return nil, err
		}
		for _, entry := range pastes {
			findings = append(findings, models.RawFinding{
				SourceName:    "paste:" + entry.Name,
				SourceURL:     entry.SourceURL(),
				SourceType:    models.SourcePaste,
				MatchedFields: []string{"email"},
				MatchedValues: []string{email},
				DataExposed:   []string{"email"},
				Confidence:    70,
				Severity:      models.SeverityMedium,
				Explanation:   "Email found in a public paste",
			})
		}
	}

	return findings, nil
}

type breachEntry struct {
	Name        string   `json:"Name"`
	Title       string   `json:"Title"`
	Domain      string   `json:"Domain"`
	BreachDate  string   `json:"BreachDate"`
	DataClasses []string `json:"DataClasses"`
	IsVerified  bool     `json:"IsVerified"`
	IsSensitive bool     `json:"IsSensitive"`
	Source      string   `json:"Source"`
	ID          string   `json:"Id"`
}

func (e breachEntry) SourceURL() string {
	if e.Source != "" && e.ID != "" {
		return fmt.Sprintf("https://%s/%s", strings.ToLower(e.Source), e.ID)
	}
	return "https://pastebin.com/" + e.ID
}

func (b *BreachIndexProvider) queryAccount(ctx context.Context, httpClient *http.Client, endpoint, account string) ([]breachEntry, error) {
	u := fmt.Sprintf("%s/%s/%s?truncateResponse=false",
		strings.TrimRight(b.config.BaseURL, "/"), endpoint, url.PathEscape(account))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("breachindex: new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("hibp-api-key", b.config.APIKey)
	req.Header.Set("User-Agent", "VeilScan/1.0 (breachindex)")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("breachindex: do request: %w", err)
	}
	defer resp.Body.Close()

	// 404 means the account is clean, not an error.
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("breachindex: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var entries []breachEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("breachindex: parse response: %w", err)
	}
	return entries, nil
}

func normalizeDataClasses(classes []string) []string {
	out := make([]string, 0, len(classes))
	for _, c := range classes {
		c = strings.ToLower(strings.TrimSpace(c))
		switch {
		case strings.Contains(c, "email"):
			c = "email"
		case strings.Contains(c, "password"):
			c = "password"
		case strings.Contains(c, "phone"):
			c = "phone"
		case strings.Contains(c, "social security"):
			c = "ssn"
		case strings.Contains(c, "date") && strings.Contains(c, "birth"):
			c = "dob"
		case strings.Contains(c, "address"):
			c = "address"
		case strings.Contains(c, "username"):
			c = "username"
		case strings.Contains(c, "name"):
			c = "name"
		}
		out = append(out, c)
	}
	return out
}

func confidenceForBreach(e breachEntry) int {
	// Email match against a breach index is near-certain; unverified dumps
	// carry mislabeled accounts often enough to discount.
	if e.IsVerified {
		return 95
	}
	return 75
}

func severityForBreach(e breachEntry) models.Severity {
	for _, c := range e.DataClasses {
		lc := strings.ToLower(c)
		if strings.Contains(lc, "social security") || strings.Contains(lc, "password") {
			return models.SeverityCritical
		}
	}
	if e.IsSensitive {
		return models.SeverityHigh
	}
	return models.SeverityMedium
}
