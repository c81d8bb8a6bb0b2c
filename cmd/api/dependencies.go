package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger/handler"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger/normalizer"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger/repository"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger/search"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger/service"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ocr"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ocr/tesseract"
	"github.com/FACorreiaa/gift-ledger/pkg/config"
	"github.com/FACorreiaa/gift-ledger/pkg/cron"
	"github.com/FACorreiaa/gift-ledger/pkg/db"
	"github.com/FACorreiaa/gift-ledger/pkg/mail"
	"github.com/FACorreiaa/gift-ledger/pkg/metrics"
	"github.com/FACorreiaa/gift-ledger/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Repositories
	LedgerRepo  *repository.PostgresLedgerRepository
	Corrections *normalizer.CorrectionStore

	// Services
	Metrics       *metrics.Metrics
	Roster        *normalizer.Roster
	Processor     *service.Processor
	SearchIndex   *search.Index
	FileStorage   storage.Storage
	Mailer        *mail.Mailer
	LedgerService *service.LedgerService
	Scheduler     *cron.Scheduler

	// Handlers
	LedgerHandler *handler.LedgerHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := deps.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	if err := deps.initServices(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	if err := deps.initHandlers(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase connects and migrates when Postgres is enabled. Without it
// saved ledgers, corrections and the ledger purge are unavailable.
func (d *Dependencies) initDatabase() error {
	if !d.Config.Database.Enabled {
		d.Logger.Warn("postgres disabled, saved ledgers and name corrections are off")
		return nil
	}

	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		d.DB.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() error {
	if d.DB == nil {
		return nil
	}
	d.LedgerRepo = repository.NewPostgresLedgerRepository(d.DB.Pool)
	d.Corrections = normalizer.NewCorrectionStore(d.DB.Pool, d.Logger)

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	cfg := d.Config

	if cfg.Observability.MetricsEnabled {
		d.Metrics = metrics.New()
	}

	roster, err := normalizer.LoadRosterFile(cfg.Ledger.RosterPath)
	if err != nil {
		return fmt.Errorf("failed to load roster: %w", err)
	}
	d.Roster = roster
	if roster.Len() > 0 {
		d.Logger.Info("guest roster loaded", slog.Int("names", roster.Len()))
	}

	var engine ocr.Engine = tesseract.New(tesseract.Config{
		Languages:      cfg.OCR.Languages,
		PageSegMode:    cfg.OCR.PageSegMode,
		TessdataPrefix: cfg.OCR.TessdataPrefix,
	})
	if cfg.OCR.Preprocess {
		engine = &ocr.Preprocessed{Engine: engine, Config: ocr.DefaultPreprocessConfig()}
	}
	d.Processor = service.NewProcessor(engine, service.ProcessorConfig{
		Concurrency:   cfg.OCR.Concurrency,
		Timeout:       cfg.OCR.Timeout,
		RatePerSecond: cfg.OCR.RatePerSecond,
		RateBurst:     cfg.OCR.RateBurst,
	}, d.Metrics, d.Logger)

	d.SearchIndex, err = search.NewIndex(cfg.Ledger.SearchIndexPath)
	if err != nil {
		return fmt.Errorf("failed to open search index: %w", err)
	}

	d.FileStorage, err = storage.New(&storage.Config{LocalPath: cfg.Storage.LocalPath})
	if err != nil {
		return fmt.Errorf("failed to init file storage: %w", err)
	}

	d.Mailer = mail.New(cfg.Mail.ResendAPIKey, cfg.Mail.FromEmail, d.Logger)
	if !d.Mailer.Enabled() {
		d.Logger.Warn("RESEND_API_KEY not set, ledger emails will be skipped")
	}

	var finder normalizer.CorrectionFinder
	if d.Corrections != nil {
		finder = d.Corrections
	}
	suggester := normalizer.NewSuggester(d.Roster, finder, cfg.Ledger.FuzzyThreshold, d.Logger)

	d.LedgerService, err = service.NewLedgerService(cfg.Ledger.Strategy, cfg.Ledger.ShareBaseURL, d.Logger)
	if err != nil {
		return err
	}
	d.LedgerService.
		WithProcessor(d.Processor).
		WithSuggester(suggester).
		WithSearchIndex(d.SearchIndex).
		WithUploads(d.FileStorage).
		WithMailer(d.Mailer).
		WithMetrics(d.Metrics)

	var ledgers cron.LedgerPurger
	if d.LedgerRepo != nil {
		d.LedgerService.WithRepository(d.LedgerRepo).WithCorrections(d.Corrections)
		ledgers = d.LedgerRepo
	}

	d.Scheduler = cron.NewScheduler(cron.Config{
		Schedule:        cfg.Storage.PurgeSchedule,
		UploadRetention: cfg.Storage.Retention,
		LedgerRetention: cfg.Ledger.Retention,
	}, d.FileStorage, ledgers, d.Logger)

	d.Logger.Info("services initialized",
		slog.String("strategy", cfg.Ledger.Strategy),
		slog.String("ocr_engine", engine.Name()),
	)
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() error {
	d.LedgerHandler = handler.NewLedgerHandler(d.LedgerService, d.Logger)

	d.Logger.Info("handlers initialized")
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.Scheduler != nil {
		<-d.Scheduler.Stop().Done()
	}
	if d.SearchIndex != nil {
		if err := d.SearchIndex.Close(); err != nil {
			d.Logger.Warn("failed to close search index", slog.Any("error", err))
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
