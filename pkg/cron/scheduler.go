// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs the purge daily at 3:00 AM.
const DefaultSchedule = "0 3 * * *"

// UploadPurger deletes stored photos created before a cutoff.
type UploadPurger interface {
	Purge(ctx context.Context, cutoff time.Time) (int, error)
}

// LedgerPurger deletes saved ledgers not touched since a cutoff.
type LedgerPurger interface {
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// Config controls what is purged and when. A zero retention disables that
// half of the job.
type Config struct {
	Schedule        string
	UploadRetention time.Duration
	LedgerRetention time.Duration
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron    *cron.Cron
	cfg     Config
	uploads UploadPurger
	ledgers LedgerPurger
	logger  *slog.Logger
	now     func() time.Time
}

// NewScheduler creates a new job scheduler. Either purger may be nil.
func NewScheduler(cfg Config, uploads UploadPurger, ledgers LedgerPurger, logger *slog.Logger) *Scheduler {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:    c,
		cfg:     cfg,
		uploads: uploads,
		ledgers: ledgers,
		logger:  logger,
		now:     time.Now,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.Schedule, s.purge); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
		slog.String("schedule", s.cfg.Schedule),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers the purge.
func (s *Scheduler) RunNow() {
	go s.purge()
}

func (s *Scheduler) purge() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	s.PurgeOnce(ctx)
}

// PurgeReport counts what one run removed.
type PurgeReport struct {
	Uploads int
	Ledgers int64
}

// PurgeOnce runs both purges synchronously. Failures are logged, not returned,
// so one half failing does not stop the other.
func (s *Scheduler) PurgeOnce(ctx context.Context) PurgeReport {
	var report PurgeReport
	now := s.now()

	if s.uploads != nil && s.cfg.UploadRetention > 0 {
		n, err := s.uploads.Purge(ctx, now.Add(-s.cfg.UploadRetention))
		if err != nil {
			s.logger.Error("failed to purge uploads", slog.Any("error", err))
		}
		report.Uploads = n
	}

	if s.ledgers != nil && s.cfg.LedgerRetention > 0 {
		n, err := s.ledgers.DeleteOlderThan(ctx, now.Add(-s.cfg.LedgerRetention))
		if err != nil {
			s.logger.Error("failed to purge ledgers", slog.Any("error", err))
		}
		report.Ledgers = n
	}

	s.logger.Info("purge completed",
		slog.Int("uploads_purged", report.Uploads),
		slog.Int64("ledgers_purged", report.Ledgers),
	)
	return report
}
