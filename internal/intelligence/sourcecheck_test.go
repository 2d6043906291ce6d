package intelligence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veilscan/veilscan/pkg/models"
)

func TestRegisteredDomain(t *testing.T) {
	tests := []struct {
		url    string
		domain string
		ok     bool
	}{
		{"https://examplebroker.io/profile/881", "examplebroker.io", true},
		{"https://listings.peoplefinder.co.uk/p/123", "peoplefinder.co.uk", true},
		{"http://192.168.1.10/dump", "", false},
		{"http://localhost:8080/x", "", false},
		{"http://abcdef1234.onion/market", "", false},
		{"", "", false},
		{"not a url", "", false},
		{"https://intranet/page", "", false},
	}
	for _, tt := range tests {
		domain, ok := registeredDomain(tt.url)
		assert.Equal(t, tt.ok, ok, tt.url)
		assert.Equal(t, tt.domain, domain, tt.url)
	}
}

func TestScreenPassesUncheckableHosts(t *testing.T) {
	checker := NewSourceChecker(nil, 0, nil)

	findings := []models.RawFinding{
		{SourceName: "DarkMarket", SourceURL: "http://abcdef1234.onion/market", SourceType: models.SourceDarkWeb},
		{SourceName: "ShadowLeaks", SourceURL: "", SourceType: models.SourceBreachDatabase},
	}

	kept, dropped := checker.Screen(context.Background(), findings)
	assert.Len(t, kept, 2)
	assert.Zero(t, dropped)
}

func TestScreenUsesCachedVerdicts(t *testing.T) {
	checker := NewSourceChecker(nil, 0, nil)
	checker.cache["deadbroker.example"] = false
	checker.cache["livebroker.io"] = true

	findings := []models.RawFinding{
		{SourceName: "DeadBroker", SourceURL: "https://www.deadbroker.example/p/1"},
		{SourceName: "LiveBroker", SourceURL: "https://livebroker.io/p/2"},
	}

	kept, dropped := checker.Screen(context.Background(), findings)
	assert.Len(t, kept, 1)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, "LiveBroker", kept[0].SourceName)

	stats := checker.CheckStats()
	assert.Equal(t, 2, stats["domains_checked"])
	assert.Equal(t, 1, stats["dead"])
}
