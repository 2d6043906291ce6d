package orchestration

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilscan/veilscan/internal/engine"
	"github.com/veilscan/veilscan/internal/intelligence"
	"github.com/veilscan/veilscan/internal/storage"
	"github.com/veilscan/veilscan/pkg/models"
)

// stubProvider feeds canned findings into the pipeline.
type stubProvider struct {
	name     string
	findings []models.RawFinding
	err      error
	calls    int
}

func (p *stubProvider) Name() string             { return p.name }
func (p *stubProvider) RateLimit() time.Duration { return time.Millisecond }
func (p *stubProvider) RequiresAPIKey() bool     { return false }
func (p *stubProvider) Search(ctx context.Context, _ *http.Client, ids models.SearchIdentifiers) ([]models.RawFinding, error) {
	p.calls++
	return p.findings, p.err
}

func testFindings() []models.RawFinding {
	return []models.RawFinding{
		{
			SourceName:    "ShadowLeaks",
			SourceURL:     "https://shadowleaks.sx/breach/42",
			SourceType:    models.SourceBreachDatabase,
			MatchedFields: []string{"email", "ssn"},
			DataExposed:   []string{"email", "ssn", "password"},
			Confidence:    90,
			Severity:      models.SeverityCritical,
		},
		{
			// Name-only match with no corroboration; the validator drops it.
			SourceName:    "GossipWire",
			SourceURL:     "https://gossipwire.press/article/7",
			SourceType:    models.SourceNews,
			MatchedFields: []string{"name"},
			DataExposed:   []string{"name"},
			Confidence:    80,
			Severity:      models.SeverityLow,
		},
	}
}

func newTestScanner(t *testing.T, provider intelligence.Provider) (*Scanner, *storage.ExposureRepository) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	store, err := storage.NewLocalStorage(t.TempDir(), false, 0, logger)
	require.NoError(t, err)
	repo := storage.NewExposureRepository(store, logger)

	intel := intelligence.NewClient(logger)
	require.NoError(t, intel.AddProvider(provider, ""))

	scanner := NewScanner(intel, nil, nil, engine.New(), repo, store, nil, nil,
		ScanConfig{MaxConcurrentScans: 1, DefaultTimeout: time.Minute}, logger)
	return scanner, repo
}

func testProfile() *models.Profile {
	return &models.Profile{
		ID:       "prof-1",
		FullName: "Jordan Reyes",
		Emails:   []string{"jordan@mail.com"},
	}
}

func TestScanEndToEnd(t *testing.T) {
	provider := &stubProvider{name: "stub", findings: testFindings()}
	scanner, repo := newTestScanner(t, provider)

	summary, err := scanner.Scan(context.Background(), testProfile())
	require.NoError(t, err)

	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, 2, summary.Result.Stats.TotalCandidates)
	assert.Equal(t, 1, summary.Result.Stats.TotalValidated)
	assert.Equal(t, 1, summary.RecordsUpserted)
	assert.Equal(t, "prof-1", summary.Snapshot.ProfileID)
	assert.Equal(t, 1, summary.Snapshot.Breaches)

	records, err := repo.ListByProfile("prof-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ShadowLeaks", records[0].SourceName)
	// Rescore phase replaced the match score with a risk score; fresh
	// ssn+password breach data lands at the ceiling.
	assert.Greater(t, records[0].RiskScore, 80)
}

func TestScanIsIdempotentAcrossRuns(t *testing.T) {
	provider := &stubProvider{name: "stub", findings: testFindings()}
	scanner, repo := newTestScanner(t, provider)

	profile := testProfile()
	_, err := scanner.Scan(context.Background(), profile)
	require.NoError(t, err)
	_, err = scanner.Scan(context.Background(), profile)
	require.NoError(t, err)

	count, err := repo.Count("prof-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "re-scanning the same source must not duplicate records")
}

func TestScanRejectsInvalidProfile(t *testing.T) {
	scanner, _ := newTestScanner(t, &stubProvider{name: "stub"})

	_, err := scanner.Scan(context.Background(), &models.Profile{ID: "prof-2"})
	assert.Error(t, err)
	_, err = scanner.Scan(context.Background(), nil)
	assert.Error(t, err)
}

func TestRescoreWithoutRecords(t *testing.T) {
	scanner, _ := newTestScanner(t, &stubProvider{name: "stub"})
	updated, err := scanner.Rescore(context.Background(), "prof-unknown")
	require.NoError(t, err)
	assert.Zero(t, updated)
}

func TestSchedulerCollectsFailures(t *testing.T) {
	provider := &stubProvider{name: "stub", findings: testFindings()}
	scanner, _ := newTestScanner(t, provider)
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	profiles := []*models.Profile{
		testProfile(),
		{ID: "prof-bad"}, // no searchable identifiers
	}

	batch := NewScheduler(scanner, logger).ScanAll(context.Background(), profiles)
	assert.Len(t, batch.Summaries, 1)
	require.Len(t, batch.Failures, 1)
	assert.Contains(t, batch.Failures["prof-bad"], "profile")
}
