// Package server wires the document server together: configuration,
// PostgreSQL and migrations, the document backend, services and the gRPC
// endpoint with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/growthvault/internal/logging"
	"github.com/dmitrijs2005/growthvault/internal/server/config"
	gs "github.com/dmitrijs2005/growthvault/internal/server/grpc"
	"github.com/dmitrijs2005/growthvault/internal/server/hub"
	"github.com/dmitrijs2005/growthvault/internal/server/repositories/documents"
	"github.com/dmitrijs2005/growthvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/growthvault/internal/server/services"
)

var (
	openDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("pgx", dsn)
	}
	newRepositoryManager = func() repomanager.RepositoryManager {
		return repomanager.NewPostgresRepositoryManager()
	}
	newS3Client = documents.NewS3Client
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *gs.GRPCServer
}

// NewApp connects to the database, applies migrations and builds the
// services. The caller must Close the app.
func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	logger = logging.OrNop(logger)

	db, err := openDB(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := newRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	var docs documents.Repository
	switch cfg.DocumentBackend {
	case config.BackendS3:
		client, err := newS3Client(ctx, documents.S3Settings{
			User:         cfg.S3RootUser,
			Password:     cfg.S3RootPassword,
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
		})
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		docs = documents.NewS3Repository(client, cfg.S3Bucket)
	default:
		docs = rm.Documents(db)
	}
	logger.Info(ctx, "document backend selected", "backend", cfg.DocumentBackend)

	us := services.NewUserService(db, rm, cfg, logger)
	ds := services.NewDocumentService(docs, hub.New(), logger)

	return &App{
		config: cfg,
		logger: logger,
		db:     db,
		server: gs.NewGRPCServer(cfg.EndpointAddrGRPC, logger, us, ds, cfg.SecretKey),
	}, nil
}

// Run serves until ctx is cancelled or the process receives SIGINT,
// SIGTERM or SIGQUIT.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...")
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, "gRPC server failed", "error", err)
		return err
	}
	app.logger.Info(ctx, "App stopped")
	return nil
}

func (app *App) Close() error {
	return app.db.Close()
}
