package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/insightx/insightx/internal/config"
	"github.com/insightx/insightx/internal/loader"
	"github.com/insightx/insightx/internal/observability"
	"github.com/insightx/insightx/internal/storage"
	s3store "github.com/insightx/insightx/internal/storage/s3"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to load .env", slog.Any("error", err))
		os.Exit(1)
	}

	cfg, err := config.LoadFromEnv("insightx-load")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	loadCfg, err := loader.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		logger.Error("failed to load loader config", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store storage.ObjectStore
	if loadCfg.Upload {
		store, err = s3store.New(ctx, s3store.Config{
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
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
	}

	service, err := loader.NewService(loadCfg, logger, store)
	if err != nil {
		logger.Error("failed to initialize loader", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("loading dataset",
		slog.String("csv", loadCfg.CSVPath),
		slog.Int("rows", loadCfg.Rows),
		slog.String("sqlite_path", loadCfg.SQLitePath),
		slog.Bool("upload", loadCfg.Upload),
	)
	summary, err := service.Run(ctx)
	if err != nil {
		logger.Error("dataset load failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("dataset loaded",
		slog.Int("rows", summary.Rows),
		slog.String("sqlite_path", summary.SQLitePath),
		slog.String("object_key", summary.ObjectKey),
		slog.Int("checks", len(summary.Checks)),
	)
}
