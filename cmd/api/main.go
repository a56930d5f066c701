package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/s4cindia/ninja-backend-sub007/internal/app"
	"github.com/s4cindia/ninja-backend-sub007/internal/auth"
	"github.com/s4cindia/ninja-backend-sub007/internal/config"
	"github.com/s4cindia/ninja-backend-sub007/internal/export"
	"github.com/s4cindia/ninja-backend-sub007/internal/metrics"
	"github.com/s4cindia/ninja-backend-sub007/internal/report"
	"github.com/s4cindia/ninja-backend-sub007/internal/storage"
	"github.com/s4cindia/ninja-backend-sub007/internal/store"
	"github.com/s4cindia/ninja-backend-sub007/internal/style"
)

func main() {
	cfg := config.Load()
	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger setup failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Service stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir, logger.Named("migrate")); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	dataStore := store.NewPostgresStore(db)

	styles, err := style.Load(cfg.StyleRegistryFile)
	if err != nil {
		return err
	}

	m, err := metrics.New()
	if err != nil {
		return err
	}

	checks := map[string]app.Pinger{}
	fetcher := storage.NewFetcher(cfg.MaxContainerBytes).
		Register(storage.KindLocal, storage.NewLocalBackend(cfg.StorageLocalRoot))
	if cfg.S3Enabled() {
		s3, err := storage.NewS3Backend(storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			return err
		}
		fetcher.Register(storage.KindS3, s3)
		checks["s3"] = s3
		logger.Info("S3 storage backend enabled", zap.String("endpoint", cfg.S3Endpoint), zap.String("bucket", cfg.S3Bucket))
	}

	deps := export.Deps{
		Store:         dataStore,
		Fetcher:       fetcher,
		Styles:        styles,
		Metrics:       m,
		Logger:        logger.Named("export"),
		MaxPartBytes:  cfg.MaxPartBytes,
		DefaultAuthor: cfg.RevisionAuthor,
	}
	if strings.TrimSpace(cfg.RedisURL) != "" {
		reports, err := report.NewRedisStore(cfg.RedisURL, cfg.ReportTTL)
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		defer reports.Close()
		deps.Reports = reports
		checks["redis"] = reports
		logger.Info("Using Redis for export reports", zap.Duration("ttl", cfg.ReportTTL))
	} else {
		logger.Warn("REDIS_URL not set, export reports are not kept")
	}

	service := app.New(dataStore, export.NewService(deps), m, logger.Named("app"), checks)
	httpServer := app.NewHTTPServer(service, app.ServerOptions{
		CORSOrigin: cfg.CORSOrigin,
		Verifier:   auth.NewVerifier(cfg.ServiceToken),
		Logger:     logger.Named("http"),
		Metrics:    m,
	})
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Citation export API listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-sigCh:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Shutdown error", zap.Error(err))
	}
	return nil
}
