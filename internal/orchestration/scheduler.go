package orchestration

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/veilscan/veilscan/pkg/models"
)

// Scheduler runs scans for several profiles with bounded concurrency.
// One failing profile does not stop the batch; its error is collected in
// the batch report instead.
type Scheduler struct {
	scanner *Scanner
	logger  *logrus.Logger
}

type BatchResult struct {
	Summaries []*ScanSummary    `json:"summaries"`
	Failures  map[string]string `json:"failures,omitempty"`
}

func NewScheduler(scanner *Scanner, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scheduler{scanner: scanner, logger: logger}
}

func (sch *Scheduler) ScanAll(ctx context.Context, profiles []*models.Profile) *BatchResult {
	batch := &BatchResult{
		Summaries: make([]*ScanSummary, 0, len(profiles)),
		Failures:  make(map[string]string),
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(sch.scanner.config.MaxConcurrentScans)

	for _, profile := range profiles {
		profile := profile
		g.Go(func() error {
			summary, err := sch.scanner.Scan(ctx, profile)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				sch.logger.Errorf("Scan failed for profile %s: %v", profile.ID, err)
				batch.Failures[profile.ID] = err.Error()
				return nil
			}
			batch.Summaries = append(batch.Summaries, summary)
			return nil
		})
	}

	_ = g.Wait()
	if len(batch.Failures) == 0 {
		batch.Failures = nil
	}
	return batch
}
