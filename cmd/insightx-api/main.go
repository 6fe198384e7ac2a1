package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/insightx/insightx/internal/api"
	"github.com/insightx/insightx/internal/auth"
	"github.com/insightx/insightx/internal/config"
	"github.com/insightx/insightx/internal/insight"
	"github.com/insightx/insightx/internal/nl2sql"
	"github.com/insightx/insightx/internal/observability"
	"github.com/insightx/insightx/internal/query"
	duckdbengine "github.com/insightx/insightx/internal/query/duckdb"
	"github.com/insightx/insightx/internal/query/sqlstore"
	"github.com/insightx/insightx/internal/schema"
	s3store "github.com/insightx/insightx/internal/storage/s3"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to load .env", slog.Any("error", err))
		os.Exit(1)
	}

	cfg, err := config.LoadFromEnv("insightx-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	descriptor, err := schema.Default()
	if err != nil {
		logger.Error("failed to load schema descriptor", slog.Any("error", err))
		os.Exit(1)
	}

	engine, readiness, closeDataset, err := openDataset(context.Background(), cfg, descriptor)
	if err != nil {
		logger.Error("failed to open dataset", slog.String("driver", cfg.Dataset.Driver), slog.Any("error", err))
		os.Exit(1)
	}
	defer closeDataset()

	model := cfg.AI.Model
	if model == "" {
		model = nl2sql.DefaultModel(cfg.AI.Provider)
	}
	backend, err := nl2sql.NewBackend(context.Background(), nl2sql.BackendConfig{
		Provider: cfg.AI.Provider,
		BaseURL:  cfg.AI.BaseURL,
		APIKey:   cfg.AI.APIKey,
		Model:    model,
	})
	if err != nil {
		logger.Error("failed to initialize translation backend", slog.String("provider", cfg.AI.Provider), slog.Any("error", err))
		os.Exit(1)
	}
	translator, err := nl2sql.NewTranslator(backend, descriptor, nl2sql.Config{
		Provider:     cfg.AI.Provider,
		Model:        model,
		Timeout:      cfg.AI.Timeout,
		MaxTokens:    cfg.AI.MaxTokens,
		RateLimitRPS: cfg.AI.RateLimitRPS,
	})
	if err != nil {
		logger.Error("failed to initialize query translator", slog.Any("error", err))
		os.Exit(1)
	}

	service, err := insight.NewService(translator, engine, insight.Config{
		Table:       descriptor.Table(),
		LedgerLimit: cfg.Dataset.LedgerLimit,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize insight service", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:            logger,
		Readiness:         readiness,
		DependencyTimeout: 2 * time.Second,
		Schema:            descriptor,
		Insight:           service,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      api.NewHandler(cfg, deps),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("dataset_driver", cfg.Dataset.Driver),
			slog.String("provider", translator.Provider()),
			slog.String("model", translator.Model()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

func openDataset(ctx context.Context, cfg config.Config, descriptor *schema.Descriptor) (query.Engine, api.ReadinessCheck, func(), error) {
	if cfg.Dataset.Driver == config.DriverDuckDB {
		store, err := s3store.New(ctx, s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		engine := duckdbengine.NewEngine(store, descriptor.Table(), cfg.Dataset.Objects)
		readiness := api.CombineReadinessChecks(
			api.CheckObjects(store, cfg.Dataset.Objects),
			api.CheckDatasetSchema(engine, descriptor),
		)
		return engine, readiness, func() {}, nil
	}

	db, err := sqlstore.Open(ctx, sqlstore.DBConfig{
		Driver:          cfg.Dataset.Driver,
		DSN:             cfg.Dataset.DSN,
		MaxOpenConns:    cfg.Dataset.MaxOpenConns,
		ConnMaxIdleTime: cfg.Dataset.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	engine := sqlstore.NewEngineForDriver(db, cfg.Dataset.Driver)
	readiness := api.CombineReadinessChecks(
		api.CheckDatabase(db),
		api.CheckDatasetSchema(engine, descriptor),
	)
	return engine, readiness, func() { _ = db.Close() }, nil
}
