// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	importservice "github.com/FACorreiaa/orixis-statements/internal/domain/import/service"
	"github.com/FACorreiaa/orixis-statements/pkg/metrics"
)

// DefaultSchedule runs retention daily at 3:00 AM
const DefaultSchedule = "0 3 * * *"

var ErrInvalidRetention = errors.New("retention must be at least one day")

// Purger removes imports created before a cutoff.
type Purger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (importservice.PurgeReport, error)
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron      *cron.Cron
	purger    Purger
	retention time.Duration
	schedule  string
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewScheduler creates a retention scheduler that keeps imports for retentionDays.
func NewScheduler(purger Purger, schedule string, retentionDays int, m *metrics.Metrics, logger *slog.Logger) (*Scheduler, error) {
	if retentionDays < 1 {
		return nil, ErrInvalidRetention
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}

	// Create cron with seconds disabled (standard 5-field format)
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:      c,
		purger:    purger,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		schedule:  schedule,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() { s.purgeExpiredImports() }); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
		slog.String("schedule", s.schedule),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow runs the retention job synchronously.
func (s *Scheduler) RunNow() importservice.PurgeReport {
	return s.purgeExpiredImports()
}

// purgeExpiredImports removes imports older than the retention window.
func (s *Scheduler) purgeExpiredImports() importservice.PurgeReport {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	cutoff := s.now().Add(-s.retention)
	s.logger.Info("starting import retention purge", slog.Time("cutoff", cutoff))

	report, err := s.purger.PurgeOlderThan(ctx, cutoff)
	purged := int(report.Jobs)
	if purged == 0 {
		purged = report.Files
	}
	s.metrics.AddPurged(purged)

	if err != nil {
		s.logger.Error("import retention purge failed",
			slog.Int("files_removed", report.Files),
			slog.Int64("imports_removed", report.Jobs),
			slog.Any("error", err),
		)
		return report
	}

	s.logger.Info("import retention purge completed",
		slog.Int("files_removed", report.Files),
		slog.Int64("imports_removed", report.Jobs),
	)
	return report
}
