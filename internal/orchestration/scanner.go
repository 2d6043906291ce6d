package orchestration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/veilscan/veilscan/internal/engine"
	"github.com/veilscan/veilscan/internal/intelligence"
	"github.com/veilscan/veilscan/internal/storage"
	"github.com/veilscan/veilscan/pkg/models"
	"github.com/veilscan/veilscan/pkg/utils"
)

// Scanner drives a full scan for one profile: query providers, screen dead
// sources, validate and score through the engine, persist exposure records,
// rescore them with the correlation multiplier, and fire notifications.
type Scanner struct {
	intel      *intelligence.Client
	checker    *intelligence.SourceChecker
	advisor    *intelligence.CorrelationAdvisor
	engine     *engine.Engine
	repository *storage.ExposureRepository
	store      *storage.LocalStorage
	notifier   *Notifier
	metrics    *utils.MetricsCollector
	logger     *logrus.Logger

	mu          sync.RWMutex
	activeScans map[string]*ScanContext
	config      ScanConfig
}

type ScanContext struct {
	ScanID    string
	ProfileID string
	StartTime time.Time
	Status    string
	Phase     string
}

type ScanConfig struct {
	MaxConcurrentScans int           `yaml:"max_concurrent_scans" json:"max_concurrent_scans"`
	DefaultTimeout     time.Duration `yaml:"default_timeout" json:"default_timeout"`
	ScreenSources      bool          `yaml:"screen_sources" json:"screen_sources"`
	ExpandIdentifiers  bool          `yaml:"expand_identifiers" json:"expand_identifiers"`
}

// ScanSummary is what a completed scan hands back to the CLI.
type ScanSummary struct {
	ScanID          string                     `json:"scan_id"`
	ProfileID       string                     `json:"profile_id"`
	StartedAt       time.Time                  `json:"started_at"`
	Duration        time.Duration              `json:"duration"`
	Snapshot        models.ProfileRiskSnapshot `json:"snapshot"`
	Result          *engine.Result             `json:"result"`
	RecordsUpserted int                        `json:"records_upserted"`
	SourcesDropped  int                        `json:"sources_dropped"`
	Notified        bool                       `json:"notified"`
}

func NewScanner(
	intel *intelligence.Client,
	checker *intelligence.SourceChecker,
	advisor *intelligence.CorrelationAdvisor,
	eng *engine.Engine,
	repository *storage.ExposureRepository,
	store *storage.LocalStorage,
	notifier *Notifier,
	metrics *utils.MetricsCollector,
	config ScanConfig,
	logger *logrus.Logger,
) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	if config.MaxConcurrentScans <= 0 {
		config.MaxConcurrentScans = 3
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = 10 * time.Minute
	}
	return &Scanner{
		intel:       intel,
		checker:     checker,
		advisor:     advisor,
		engine:      eng,
		repository:  repository,
		store:       store,
		notifier:    notifier,
		metrics:     metrics,
		logger:      logger,
		activeScans: make(map[string]*ScanContext),
		config:      config,
	}
}

// Scan runs the whole pipeline synchronously and returns the summary.
func (s *Scanner) Scan(ctx context.Context, profile *models.Profile) (*ScanSummary, error) {
	if profile == nil {
		return nil, fmt.Errorf("nil profile")
	}
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.DefaultTimeout)
	defer cancel()

	scanID := uuid.NewString()
	scanCtx := &ScanContext{
		ScanID:    scanID,
		ProfileID: profile.ID,
		StartTime: time.Now(),
		Status:    "running",
	}

	s.mu.Lock()
	s.activeScans[scanID] = scanCtx
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.ActiveScans.Inc()
	}
	defer func() {
		s.mu.Lock()
		delete(s.activeScans, scanID)
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.ActiveScans.Dec()
		}
	}()

	log := s.logger.WithFields(logrus.Fields{"scan_id": scanID, "profile_id": profile.ID})
	log.Info("Starting exposure scan")

	summary, err := s.execute(ctx, scanCtx, profile, log)
	if err != nil {
		scanCtx.Status = "failed"
		if s.metrics != nil {
			s.metrics.ScansTotal.WithLabelValues("failed").Inc()
		}
		return nil, err
	}

	scanCtx.Status = "completed"
	if s.metrics != nil {
		s.metrics.ScansTotal.WithLabelValues("completed").Inc()
		s.metrics.ProfileRiskScore.Observe(float64(summary.Snapshot.OverallRiskScore))
	}
	log.WithFields(logrus.Fields{
		"risk_score": summary.Snapshot.OverallRiskScore,
		"exposures":  summary.Snapshot.ExposureCount,
		"duration":   summary.Duration.Round(time.Millisecond),
	}).Info("Scan completed")
	return summary, nil
}

func (s *Scanner) execute(ctx context.Context, scanCtx *ScanContext, profile *models.Profile, log *logrus.Entry) (*ScanSummary, error) {
	summary := &ScanSummary{
		ScanID:    scanCtx.ScanID,
		ProfileID: profile.ID,
		StartedAt: scanCtx.StartTime,
	}

	// Intelligence phase.
	s.setPhase(scanCtx, "intelligence")
	ids := profile.Identifiers()
	if s.config.ExpandIdentifiers {
		ids = intelligence.ExpandIdentifiers(ids)
	}

	var recorder intelligence.ProviderErrorRecorder
	if s.metrics != nil {
		recorder = s.metrics
	}

	var findings []models.RawFinding
	err := s.timePhase("intelligence", func() error {
		var err error
		findings, err = s.intel.SearchAll(ctx, ids, recorder)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("intelligence phase: %w", err)
	}
	log.Infof("Providers returned %d candidate findings", len(findings))

	// Source screening phase.
	if s.config.ScreenSources && s.checker != nil {
		s.setPhase(scanCtx, "screening")
		_ = s.timePhase("screening", func() error {
			var dropped int
			findings, dropped = s.checker.Screen(ctx, findings)
			summary.SourcesDropped = dropped
			return nil
		})
		if summary.SourcesDropped > 0 {
			log.Infof("Dropped %d findings from unreachable sources", summary.SourcesDropped)
		}
	}

	// Validation and scoring phase. Pure computation; never fails.
	s.setPhase(scanCtx, "scoring")
	var result *engine.Result
	_ = s.timePhase("scoring", func() error {
		result = s.engine.Process(findings)
		return nil
	})
	summary.Result = result
	if s.metrics != nil {
		s.metrics.FindingsValidated.Add(float64(result.Stats.TotalValidated))
		s.metrics.FindingsRejected.Add(float64(result.Stats.TotalRejected))
	}

	// Persistence phase.
	s.setPhase(scanCtx, "persist")
	err = s.timePhase("persist", func() error {
		for _, m := range result.Matches {
			record := models.NewExposureRecord(uuid.NewString(), profile.ID, m, scanCtx.StartTime.UTC())
			if _, err := s.repository.Upsert(&record); err != nil {
				return err
			}
			summary.RecordsUpserted++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("persist phase: %w", err)
	}

	// Correlation and rescoring phase.
	s.setPhase(scanCtx, "rescore")
	var combos []string
	err = s.timePhase("rescore", func() error {
		records, err := s.repository.ListByProfile(profile.ID)
		if err != nil {
			return err
		}

		correlation := intelligence.Neutral()
		if s.advisor != nil {
			correlation = s.advisor.Assess(ctx, records)
		}
		combos = correlation.Combinations

		values := make([]models.ExposureRecord, len(records))
		for i, r := range records {
			values[i] = *r
		}
		rescored := s.engine.RiskScorer().RecomputeRiskScores(values, correlation.Multiplier, time.Now().UTC())

		ptrs := make([]*models.ExposureRecord, len(rescored))
		for i := range rescored {
			ptrs[i] = &rescored[i]
		}
		_, err = s.repository.ApplyScores(profile.ID, ptrs)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("rescore phase: %w", err)
	}

	summary.Snapshot = s.engine.Aggregator().Snapshot(profile.ID, result, combos, time.Now().UTC())
	if err := s.store.SaveDocument("snapshots", profile.ID, summary.Snapshot); err != nil {
		log.Warnf("Failed to persist risk snapshot: %v", err)
	}

	// Notification phase.
	if s.notifier != nil {
		s.setPhase(scanCtx, "notify")
		notified, err := s.notifier.NotifyIfNeeded(ctx, summary.Snapshot, result)
		if err != nil {
			log.Warnf("Notification delivery failed: %v", err)
		}
		summary.Notified = notified
	}

	summary.Duration = time.Since(scanCtx.StartTime)
	return summary, nil
}

// Rescore refreshes the risk scores of a profile's stored records without
// querying providers. Used by the rescore command and scheduled refreshes.
func (s *Scanner) Rescore(ctx context.Context, profileID string) (int, error) {
	records, err := s.repository.ListByProfile(profileID)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	correlation := intelligence.Neutral()
	if s.advisor != nil {
		correlation = s.advisor.Assess(ctx, records)
	}

	values := make([]models.ExposureRecord, len(records))
	for i, r := range records {
		values[i] = *r
	}
	rescored := s.engine.RiskScorer().RecomputeRiskScores(values, correlation.Multiplier, time.Now().UTC())

	ptrs := make([]*models.ExposureRecord, len(rescored))
	for i := range rescored {
		ptrs[i] = &rescored[i]
	}
	updated, err := s.repository.ApplyScores(profileID, ptrs)
	if err != nil {
		return 0, err
	}

	s.logger.WithFields(logrus.Fields{
		"profile_id": profileID,
		"updated":    updated,
		"multiplier": correlation.Multiplier,
	}).Info("Rescored stored exposures")
	return updated, nil
}

func (s *Scanner) setPhase(scanCtx *ScanContext, phase string) {
	s.mu.Lock()
	scanCtx.Phase = phase
	s.mu.Unlock()
}

func (s *Scanner) timePhase(phase string, fn func() error) error {
	if s.metrics != nil {
		return s.metrics.TimePhase(phase, fn)
	}
	return fn()
}

// ActiveScans reports in-flight scans for the stats command.
func (s *Scanner) ActiveScans() []ScanContext {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ScanContext, 0, len(s.activeScans))
	for _, sc := range s.activeScans {
		out = append(out, *sc)
	}
	return out
}

func (s *Scanner) GetStats() map[string]interface{} {
	stats := map[string]interface{}{
		"active_scans":   len(s.ActiveScans()),
		"max_concurrent": s.config.MaxConcurrentScans,
	}
	if s.intel != nil {
		stats["intelligence"] = s.intel.GetStats()
	}
	if s.checker != nil {
		stats["source_checks"] = s.checker.CheckStats()
	}
	return stats
}
