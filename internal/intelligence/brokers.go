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

type PeopleSearchConfig struct {
	APIKey    string
	BaseURL   string
	RateLimit time.Duration
	MaxPages  int
}

// PeopleSearchProvider queries a people-search aggregator that mirrors the
// listings of data broker sites. Each listing names the broker that holds the
// record and which identifier matched.
type PeopleSearchProvider struct {
	config *PeopleSearchConfig
}

func NewPeopleSearchProvider(config *PeopleSearchConfig) *PeopleSearchProvider {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.peoplesearch.example.com/v2"
	}
	if config.RateLimit == 0 {
		config.RateLimit = 1 * time.Second
	}
	if config.MaxPages == 0 {
		config.MaxPages = 5
	}
	return &PeopleSearchProvider{config: config}
}

func (p *PeopleSearchProvider) Name() string             { return "peoplesearch" }
func (p *PeopleSearchProvider) RateLimit() time.Duration { return p.config.RateLimit }
func (p *PeopleSearchProvider) RequiresAPIKey() bool     { return true }

type brokerListing struct {
	Broker      string   `json:"broker"`
	ListingURL  string   `json:"listing_url"`
	Category    string   `json:"category"`
	Matched     []string `json:"matched_fields"`
	MatchValues []string `json:"matched_values"`
	Exposed     []string `json:"exposed_fields"`
	Confidence  int      `json:"confidence"`
	Impersonate bool     `json:"possible_impersonation"`
	Summary     string   `json:"summary"`
}

func (p *PeopleSearchProvider) Search(ctx context.Context, httpClient *http.Client, ids models.SearchIdentifiers) ([]models.RawFinding, error) {
	params := url.Values{}
	if ids.FullName != "" {
		params.Set("name", ids.FullName)
	}
	for _, e := range ids.Emails {
		params.Add("email", e)
	}
	for _, ph := range ids.Phones {
		params.Add("phone", ph)
	}
	for _, u := range ids.Usernames {
		params.Add("username", u)
	}
	if len(params) == 0 {
		return nil, nil
	}

	findings := make([]models.RawFinding, 0, 32)
	base := strings.TrimRight(p.config.BaseURL, "/")

	for page := 1; page <= p.config.MaxPages; page++ {
		params.Set("page", fmt.Sprintf("%d", page))
		u := base + "/listings?" + params.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("peoplesearch: new request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
		req.Header.Set("User-Agent", "VeilScan/1.0 (peoplesearch)")

		resp, err := httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("peoplesearch: do request: %w", err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("peoplesearch: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		var out struct {
			Listings []brokerListing `json:"listings"`
			HasMore  bool            `json:"has_more"`
		}
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("peoplesearch: parse response: %w", err)
		}

		for _, l := range out.Listings {
			findings = append(findings, listingToFinding(l))
		}
		if !out.HasMore {
			break
		}
	}

	return findings, nil
}

func listingToFinding(l brokerListing) models.RawFinding {
	sourceType := models.SourceDataBroker
	switch strings.ToLower(l.Category) {
	case "people_finder", "people-finder":
		sourceType = models.SourcePeopleFinder
	case "public_record", "public-record":
		sourceType = models.SourcePublicRecord
	case "social_media", "social":
		sourceType = models.SourceSocialMedia
	case "court_record", "court":
		sourceType = models.SourceCourtRecord
	}

	severity := models.SeverityMedium
	for _, f := range l.Exposed {
		switch strings.ToLower(f) {
		case "ssn", "dob":
			severity = models.SeverityHigh
		}
	}
	if l.Impersonate {
		severity = models.SeverityHigh
	}

	return models.RawFinding{
		SourceName:      l.Broker,
		SourceURL:       l.ListingURL,
		SourceType:      sourceType,
		MatchedFields:   l.Matched,
		MatchedValues:   l.MatchValues,
		DataExposed:     l.Exposed,
		Confidence:      l.Confidence,
		Severity:        severity,
		IsImpersonation: l.Impersonate,
		Explanation:     l.Summary,
	}
}
