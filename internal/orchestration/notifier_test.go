package orchestration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilscan/veilscan/internal/engine"
	"github.com/veilscan/veilscan/pkg/models"
	"github.com/veilscan/veilscan/pkg/utils"
)

func quietResult(critical int) *engine.Result {
	res := &engine.Result{}
	res.Stats.CriticalSeverity = critical
	return res
}

func TestNotifyFiresOnImpersonation(t *testing.T) {
	var received alertPayload
	var signature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature = r.Header.Get("X-VeilScan-Signature")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewNotifier(NotifierConfig{
		WebhookURL:    server.URL,
		SigningSecret: "webhook-secret",
	}, nil, nil)

	snapshot := models.ProfileRiskSnapshot{
		ProfileID:        "prof-1",
		OverallRiskScore: 30,
		Impersonations:   1,
		ExposureCount:    4,
	}

	sent, err := n.NotifyIfNeeded(context.Background(), snapshot, quietResult(0))
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, "prof-1", received.ProfileID)
	assert.Contains(t, received.Reasons[0], "impersonation")

	ok, err := utils.ValidateJWT(signature, "webhook-secret")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNotifySkipsQuietScan(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("webhook must not be called for a quiet scan")
	}))
	defer server.Close()

	n := NewNotifier(NotifierConfig{WebhookURL: server.URL, RiskThreshold: 75}, nil, nil)

	snapshot := models.ProfileRiskSnapshot{ProfileID: "prof-1", OverallRiskScore: 40}
	sent, err := n.NotifyIfNeeded(context.Background(), snapshot, quietResult(0))
	require.NoError(t, err)
	assert.False(t, sent)
}

func TestNotifyFiresAboveRiskThreshold(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	n := NewNotifier(NotifierConfig{WebhookURL: server.URL, RiskThreshold: 75}, nil, nil)

	snapshot := models.ProfileRiskSnapshot{ProfileID: "prof-1", OverallRiskScore: 80}
	sent, err := n.NotifyIfNeeded(context.Background(), snapshot, quietResult(0))
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, 1, calls)
}

func TestNotifyReportsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "broken", http.StatusBadGateway)
	}))
	defer server.Close()

	n := NewNotifier(NotifierConfig{WebhookURL: server.URL}, nil, nil)

	snapshot := models.ProfileRiskSnapshot{ProfileID: "prof-1", Impersonations: 1}
	sent, err := n.NotifyIfNeeded(context.Background(), snapshot, quietResult(1))
	assert.Error(t, err)
	assert.False(t, sent)
}

func TestNotifyDisabledWithoutURL(t *testing.T) {
	n := NewNotifier(NotifierConfig{}, nil, nil)
	snapshot := models.ProfileRiskSnapshot{ProfileID: "prof-1", Impersonations: 3}
	sent, err := n.NotifyIfNeeded(context.Background(), snapshot, quietResult(2))
	require.NoError(t, err)
	assert.False(t, sent)
}
