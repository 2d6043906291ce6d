package storage

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/veilscan/veilscan/pkg/models"
)

// ExposureRepository keeps the exposure records for each profile. Records are
// keyed by their dedupe key, so re-scanning the same source updates the
// existing record instead of inserting a second one.
type ExposureRepository struct {
	store  *LocalStorage
	logger *logrus.Logger

	mu    sync.RWMutex
	cache map[string]map[uint64]*models.ExposureRecord // profileID -> dedupe key -> record
}

type profileDocument struct {
	ProfileID string                   `json:"profile_id"`
	UpdatedAt time.Time                `json:"updated_at"`
	Records   []*models.ExposureRecord `json:"records"`
}

func NewExposureRepository(store *LocalStorage, logger *logrus.Logger) *ExposureRepository {
	if logger == nil {
		logger = logrus.New()
	}
	return &ExposureRepository{
		store:  store,
		logger: logger,
		cache:  make(map[string]map[uint64]*models.ExposureRecord),
	}
}

// Upsert inserts the record, or merges it into the existing record for the
// same (profile, source) pair. The record's own ID and first-seen scan date
// are preserved on update; score, exposed data and metadata are refreshed.
func (r *ExposureRepository) Upsert(record *models.ExposureRecord) (*models.ExposureRecord, error) {
	if record == nil {
		return nil, fmt.Errorf("nil exposure record")
	}
	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("invalid exposure record: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoadedLocked(record.ProfileID); err != nil {
		return nil, err
	}

	byKey := r.cache[record.ProfileID]
	key := record.DedupeKey()

	if existing, ok := byKey[key]; ok {
		existing.SourceURL = record.SourceURL
		existing.SourceType = record.SourceType
		existing.RiskScore = record.RiskScore
		existing.DataExposed = record.DataExposed
		existing.Metadata = record.Metadata
		existing.ScanDate = record.ScanDate
		if existing.Status == models.ExposureStatusResolved {
			// A source that resurfaces after being marked resolved is a
			// regression and must show up as active again.
			existing.Status = models.ExposureStatusActive
		}
		record = existing
	} else {
		byKey[key] = record
	}

	if err := r.persistLocked(record.ProfileID); err != nil {
		return nil, err
	}
	return record, nil
}

// ListByProfile returns the profile's records ordered by risk score
// descending, then source name for a stable tiebreak.
func (r *ExposureRepository) ListByProfile(profileID string) ([]*models.ExposureRecord, error) {
	if strings.TrimSpace(profileID) == "" {
		return nil, fmt.Errorf("empty profile id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoadedLocked(profileID); err != nil {
		return nil, err
	}

	records := make([]*models.ExposureRecord, 0, len(r.cache[profileID]))
	for _, rec := range r.cache[profileID] {
		copied := *rec
		records = append(records, &copied)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].RiskScore != records[j].RiskScore {
			return records[i].RiskScore > records[j].RiskScore
		}
		return records[i].SourceName < records[j].SourceName
	})
	return records, nil
}

// ApplyScores writes back recomputed risk scores. Records are matched by ID;
// records that disappeared since the scores were computed are skipped.
func (r *ExposureRepository) ApplyScores(profileID string, scored []*models.ExposureRecord) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoadedLocked(profileID); err != nil {
		return 0, err
	}

	byID := make(map[string]*models.ExposureRecord)
	for _, rec := range r.cache[profileID] {
		byID[rec.ID] = rec
	}

	updated := 0
	for _, s := range scored {
		rec, ok := byID[s.ID]
		if !ok {
			continue
		}
		if rec.RiskScore != s.RiskScore {
			rec.RiskScore = s.RiskScore
			updated++
		}
	}

	if updated > 0 {
		if err := r.persistLocked(profileID); err != nil {
			return 0, err
		}
	}
	return updated, nil
}

// SetStatus updates the remediation status of a single record.
func (r *ExposureRepository) SetStatus(profileID, recordID, status string) error {
	switch status {
	case models.ExposureStatusActive, models.ExposureStatusAcknowledged, models.ExposureStatusRemoval, models.ExposureStatusResolved:
	default:
		return fmt.Errorf("unknown status %q", status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoadedLocked(profileID); err != nil {
		return err
	}
	for _, rec := range r.cache[profileID] {
		if rec.ID == recordID {
			rec.Status = status
			return r.persistLocked(profileID)
		}
	}
	return fmt.Errorf("record %s not found for profile %s", recordID, profileID)
}

// AuditReport summarizes an integrity sweep over the exposure store.
type AuditReport struct {
	Profiles       int      `json:"profiles"`
	Records        int      `json:"records"`
	OrphansRemoved []string `json:"orphans_removed,omitempty"`
	InvalidRemoved []string `json:"invalid_removed,omitempty"`
}

// Audit sweeps every stored profile document and drops records that do not
// belong there: records filed under the wrong profile, and records that no
// longer pass validation.
func (r *ExposureRepository) Audit() (*AuditReport, error) {
	profiles, err := r.Profiles()
	if err != nil {
		return nil, fmt.Errorf("list stored profiles: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	report := &AuditReport{}
	for _, profileID := range profiles {
		if err := r.ensureLoadedLocked(profileID); err != nil {
			return nil, err
		}
		report.Profiles++

		byKey := r.cache[profileID]
		dirty := false
		for key, rec := range byKey {
			report.Records++
			switch {
			case rec.ProfileID != profileID:
				delete(byKey, key)
				report.OrphansRemoved = append(report.OrphansRemoved, rec.ID)
				dirty = true
			case rec.Validate() != nil:
				delete(byKey, key)
				report.InvalidRemoved = append(report.InvalidRemoved, rec.ID)
				dirty = true
			}
		}
		if dirty {
			if err := r.persistLocked(profileID); err != nil {
				return nil, err
			}
			r.logger.Warnf("Audit removed records from profile %s", profileID)
		}
	}
	return report, nil
}

// Profiles lists every profile ID with stored exposures.
func (r *ExposureRepository) Profiles() ([]string, error) {
	return r.store.ListDocuments("exposures")
}

// Count returns the number of stored records for a profile.
func (r *ExposureRepository) Count(profileID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoadedLocked(profileID); err != nil {
		return 0, err
	}
	return len(r.cache[profileID]), nil
}

func (r *ExposureRepository) ensureLoadedLocked(profileID string) error {
	if strings.TrimSpace(profileID) == "" {
		return fmt.Errorf("empty profile id")
	}
	if _, ok := r.cache[profileID]; ok {
		return nil
	}

	var doc profileDocument
	err := r.store.LoadDocument("exposures", profileID, &doc)
	if err != nil {
		if os.IsNotExist(err) {
			r.cache[profileID] = make(map[uint64]*models.ExposureRecord)
			return nil
		}
		return fmt.Errorf("load exposures for %s: %w", profileID, err)
	}

	byKey := make(map[uint64]*models.ExposureRecord, len(doc.Records))
	for _, rec := range doc.Records {
		byKey[rec.DedupeKey()] = rec
	}
	r.cache[profileID] = byKey
	return nil
}

func (r *ExposureRepository) persistLocked(profileID string) error {
	byKey := r.cache[profileID]
	records := make([]*models.ExposureRecord, 0, len(byKey))
	for _, rec := range byKey {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].SourceName < records[j].SourceName
	})

	doc := profileDocument{
		ProfileID: profileID,
		UpdatedAt: time.Now().UTC(),
		Records:   records,
	}
	if err := r.store.SaveDocument("exposures", profileID, doc); err != nil {
		return fmt.Errorf("persist exposures for %s: %w", profileID, err)
	}
	return nil
}
