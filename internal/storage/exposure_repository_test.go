package storage

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilscan/veilscan/pkg/models"
)

func newTestRepository(t *testing.T) *ExposureRepository {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	store, err := NewLocalStorage(t.TempDir(), false, 0, logger)
	require.NoError(t, err)
	return NewExposureRepository(store, logger)
}

func brokerMatch(score int) models.ValidatedMatch {
	return models.ValidatedMatch{
		RawFinding: models.RawFinding{
			SourceName:    "ExampleBroker",
			SourceURL:     "https://examplebroker.io/profile/881",
			SourceType:    models.SourceDataBroker,
			MatchedFields: []string{"email", "phone"},
			DataExposed:   []string{"email", "phone", "address"},
			Confidence:    85,
			Severity:      models.SeverityHigh,
			Provider:      "brokerwatch",
		},
		MatchScore: score,
	}
}

func TestUpsertDeduplicatesBySource(t *testing.T) {
	repo := newTestRepository(t)
	scanDate := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	first := models.NewExposureRecord("rec-1", "prof-1", brokerMatch(62), scanDate)
	_, err := repo.Upsert(&first)
	require.NoError(t, err)

	// Same profile and source a week later with a fresh score.
	second := models.NewExposureRecord("rec-2", "prof-1", brokerMatch(71), scanDate.AddDate(0, 0, 7))
	merged, err := repo.Upsert(&second)
	require.NoError(t, err)

	records, err := repo.ListByProfile("prof-1")
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "rec-1", merged.ID, "original record ID survives the upsert")
	assert.Equal(t, 71, records[0].RiskScore)
	assert.Equal(t, scanDate.AddDate(0, 0, 7), records[0].ScanDate)
}

func TestUpsertRejectsInvalidRecords(t *testing.T) {
	repo := newTestRepository(t)

	rec := models.NewExposureRecord("rec-1", "", brokerMatch(50), time.Now())
	_, err := repo.Upsert(&rec)
	assert.Error(t, err)

	_, err = repo.Upsert(nil)
	assert.Error(t, err)
}

func TestListByProfileOrdersByRisk(t *testing.T) {
	repo := newTestRepository(t)
	now := time.Now().UTC()

	low := brokerMatch(30)
	low.SourceName = "LowTierFinder"
	high := brokerMatch(90)
	high.SourceName = "ShadowLeaks"
	mid := brokerMatch(55)
	mid.SourceName = "MidBroker"

	for i, m := range []models.ValidatedMatch{low, high, mid} {
		rec := models.NewExposureRecord(string(rune('a'+i)), "prof-1", m, now)
		_, err := repo.Upsert(&rec)
		require.NoError(t, err)
	}

	records, err := repo.ListByProfile("prof-1")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "ShadowLeaks", records[0].SourceName)
	assert.Equal(t, "MidBroker", records[1].SourceName)
	assert.Equal(t, "LowTierFinder", records[2].SourceName)
}

func TestApplyScoresUpdatesMatchingRecords(t *testing.T) {
	repo := newTestRepository(t)
	now := time.Now().UTC()

	rec := models.NewExposureRecord("rec-1", "prof-1", brokerMatch(40), now)
	_, err := repo.Upsert(&rec)
	require.NoError(t, err)

	rescored := rec
	rescored.RiskScore = 66
	missing := rec
	missing.ID = "rec-ghost"
	missing.RiskScore = 99

	updated, err := repo.ApplyScores("prof-1", []*models.ExposureRecord{&rescored, &missing})
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	records, err := repo.ListByProfile("prof-1")
	require.NoError(t, err)
	assert.Equal(t, 66, records[0].RiskScore)
}

func TestResolvedRecordReactivatesOnResurface(t *testing.T) {
	repo := newTestRepository(t)
	now := time.Now().UTC()

	rec := models.NewExposureRecord("rec-1", "prof-1", brokerMatch(50), now)
	_, err := repo.Upsert(&rec)
	require.NoError(t, err)
	require.NoError(t, repo.SetStatus("prof-1", "rec-1", models.ExposureStatusResolved))

	again := models.NewExposureRecord("rec-2", "prof-1", brokerMatch(58), now.AddDate(0, 1, 0))
	merged, err := repo.Upsert(&again)
	require.NoError(t, err)
	assert.Equal(t, models.ExposureStatusActive, merged.Status)
}

func TestSetStatusRejectsUnknownStatus(t *testing.T) {
	repo := newTestRepository(t)
	now := time.Now().UTC()

	rec := models.NewExposureRecord("rec-1", "prof-1", brokerMatch(50), now)
	_, err := repo.Upsert(&rec)
	require.NoError(t, err)

	assert.Error(t, repo.SetStatus("prof-1", "rec-1", "archived"))
	assert.Error(t, repo.SetStatus("prof-1", "rec-missing", models.ExposureStatusAcknowledged))
	assert.NoError(t, repo.SetStatus("prof-1", "rec-1", models.ExposureStatusAcknowledged))
}

func TestRepositorySurvivesReload(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	dir := t.TempDir()

	store, err := NewLocalStorage(dir, false, 0, logger)
	require.NoError(t, err)
	repo := NewExposureRepository(store, logger)

	rec := models.NewExposureRecord("rec-1", "prof-1", brokerMatch(44), time.Now().UTC())
	_, err = repo.Upsert(&rec)
	require.NoError(t, err)

	// Fresh repository over the same directory sees the persisted record and
	// still deduplicates against it.
	store2, err := NewLocalStorage(dir, false, 0, logger)
	require.NoError(t, err)
	repo2 := NewExposureRepository(store2, logger)

	again := models.NewExposureRecord("rec-2", "prof-1", brokerMatch(47), time.Now().UTC())
	_, err = repo2.Upsert(&again)
	require.NoError(t, err)

	records, err := repo2.ListByProfile("prof-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "rec-1", records[0].ID)

	count, err := repo2.Count("prof-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	profiles, err := repo2.Profiles()
	require.NoError(t, err)
	assert.Contains(t, profiles, "prof-1")
}

func TestAuditRemovesOrphanedAndInvalidRecords(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	store, err := NewLocalStorage(t.TempDir(), false, 0, logger)
	require.NoError(t, err)

	good := models.NewExposureRecord("rec-good", "prof-x", brokerMatch(50), time.Now().UTC())
	orphan := models.NewExposureRecord("rec-orphan", "prof-y", brokerMatch(50), time.Now().UTC())
	invalid := models.NewExposureRecord("rec-invalid", "prof-x", brokerMatch(50), time.Now().UTC())
	invalid.SourceName = ""

	// A document that was corrupted outside the repository path.
	require.NoError(t, store.SaveDocument("exposures", "prof-x", profileDocument{
		ProfileID: "prof-x",
		UpdatedAt: time.Now().UTC(),
		Records:   []*models.ExposureRecord{&good, &orphan, &invalid},
	}))

	repo := NewExposureRepository(store, logger)
	report, err := repo.Audit()
	require.NoError(t, err)

	assert.Equal(t, 1, report.Profiles)
	assert.Equal(t, 3, report.Records)
	assert.Equal(t, []string{"rec-orphan"}, report.OrphansRemoved)
	assert.Equal(t, []string{"rec-invalid"}, report.InvalidRemoved)

	records, err := repo.ListByProfile("prof-x")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "rec-good", records[0].ID)
}
