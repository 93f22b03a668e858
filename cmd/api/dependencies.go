package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FACorreiaa/orixis-statements/internal/domain/import/catalog"
	importhandler "github.com/FACorreiaa/orixis-statements/internal/domain/import/handler"
	"github.com/FACorreiaa/orixis-statements/internal/domain/import/parser"
	importrepo "github.com/FACorreiaa/orixis-statements/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/orixis-statements/internal/domain/import/service"
	"github.com/FACorreiaa/orixis-statements/pkg/config"
	"github.com/FACorreiaa/orixis-statements/pkg/cron"
	"github.com/FACorreiaa/orixis-statements/pkg/db"
	"github.com/FACorreiaa/orixis-statements/pkg/metrics"
	"github.com/FACorreiaa/orixis-statements/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	Pool   *pgxpool.Pool
	Logger *slog.Logger

	Catalog     catalog.Catalog
	Metrics     *metrics.Metrics
	FileStorage storage.Storage

	// Repositories
	ImportRepo importrepo.ImportRepository

	// Services
	ImportService *importservice.ImportService
	Scheduler     *cron.Scheduler

	// Handlers
	ImportHandler *importhandler.ImportHandler
	Router        http.Handler
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initCatalog(); err != nil {
		return nil, fmt.Errorf("failed to init catalog: %w", err)
	}

	// Import history is optional; without a database imports are stateless
	if cfg.Database.Enabled {
		if err := deps.initDatabase(ctx); err != nil {
			return nil, fmt.Errorf("failed to init database: %w", err)
		}
		deps.initRepositories()
	}

	if err := deps.initServices(ctx); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	deps.initHandlers()

	logger.Info("all dependencies initialized successfully",
		slog.Bool("history", deps.ImportRepo != nil),
		slog.Bool("retention", deps.Scheduler != nil),
	)

	return deps, nil
}

// initCatalog loads the bank format catalog, overlaying the configured YAML file
func (d *Dependencies) initCatalog() error {
	if d.Config.Import.CatalogPath == "" {
		d.Catalog = catalog.Default()
		return nil
	}
	cat, err := catalog.LoadFile(d.Config.Import.CatalogPath)
	if err != nil {
		return err
	}
	d.Catalog = cat
	d.Logger.Info("catalog loaded",
		slog.String("path", d.Config.Import.CatalogPath),
		slog.Int("formats", len(cat.Formats)),
	)
	return nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase(ctx context.Context) error {
	pool, err := db.Connect(ctx, d.Config.Database.DSN(), d.Logger)
	if err != nil {
		return err
	}
	d.Pool = pool

	if err := db.Migrate(ctx, pool, d.Logger); err != nil {
		pool.Close()
		d.Pool = nil
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() {
	d.ImportRepo = importrepo.NewPostgresImportRepository(d.Pool)
	d.Logger.Info("repositories initialized")
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices(ctx context.Context) error {
	if d.Config.Observability.MetricsEnabled {
		d.Metrics = metrics.New()
	}

	fileStorage, err := storage.New(ctx, &d.Config.Storage)
	if err != nil {
		return fmt.Errorf("failed to init file storage: %w", err)
	}
	d.FileStorage = fileStorage

	d.ImportService = importservice.NewImportService(d.Catalog, d.Logger).
		WithSpreadsheetReader(parser.NewWorkbookReader()).
		WithStorage(d.FileStorage).
		WithMetrics(d.Metrics).
		WithEncodings(d.Config.Import.Encodings)
	if d.ImportRepo != nil {
		d.ImportService.WithRepository(d.ImportRepo)
	}

	if d.Config.Retention.Enabled {
		scheduler, err := cron.NewScheduler(
			d.ImportService,
			d.Config.Retention.Schedule,
			d.Config.Retention.Days,
			d.Metrics,
			d.Logger,
		)
		if err != nil {
			return fmt.Errorf("failed to init retention scheduler: %w", err)
		}
		d.Scheduler = scheduler
	}

	d.Logger.Info("services initialized", slog.String("storage", string(d.Config.Storage.Type)))
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() {
	d.ImportHandler = importhandler.NewImportHandler(d.ImportService, d.Logger).
		WithMaxUploadBytes(d.Config.Server.MaxUploadBytes)
	d.Router = importhandler.NewRouter(d.ImportHandler, d.Metrics, importhandler.RouterConfig{
		CORSOrigins:        d.Config.Server.CORSOrigins,
		RateLimitPerSecond: d.Config.Server.RateLimitPerSecond,
		RateLimitBurst:     d.Config.Server.RateLimitBurst,
	}, d.Logger)

	d.Logger.Info("handlers initialized")
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.Pool != nil {
		d.Pool.Close()
	}
	d.Logger.Info("cleanup completed")
}
