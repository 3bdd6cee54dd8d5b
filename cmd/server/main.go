// Command server runs the artifact dissemination HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/preprintworks/dissemination/internal/api"
	"github.com/preprintworks/dissemination/internal/config"
	"github.com/preprintworks/dissemination/internal/invalidate"
	"github.com/preprintworks/dissemination/internal/logging"
	"github.com/preprintworks/dissemination/internal/metrics"
	"github.com/preprintworks/dissemination/internal/objstore"
	"github.com/preprintworks/dissemination/internal/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.InitDefault()
		logging.Fatal("invalid configuration", zap.Error(err))
	}

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		logging.InitDefault()
		logging.Fatal("logger setup failed", zap.Error(err))
	}
	defer logging.Sync()

	ctx := context.Background()

	store, err := newStore(ctx, cfg)
	if err != nil {
		logging.Fatal("storage backend setup failed",
			zap.String("backend", cfg.StorageBackend), zap.Error(err))
	}
	defer store.Close()

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := store.HealthCheck(checkCtx); err != nil {
		cancel()
		logging.Fatal("storage backend unreachable",
			zap.String("backend", store.Type()), zap.Error(err))
	}
	cancel()
	logging.Info("storage backend ready", zap.String("backend", store.Type()))

	var purger *invalidate.Purger
	if cfg.CDNEndpoint != "" {
		purger = invalidate.NewPurger(invalidate.DefaultPurgerConfig(cfg.CDNEndpoint), nil)
		logging.Info("cdn invalidation enabled", zap.String("endpoint", cfg.CDNEndpoint))
	} else {
		logging.Info("cdn invalidation disabled")
	}

	streamer := stream.New(stream.DefaultConfig(cfg.PublishLocation()))
	server := api.New(store, streamer, purger)

	metricsSrv := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("metrics server failed", zap.Error(err))
		}
	}()

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	go func() {
		logging.Info("server listening", zap.String("addr", cfg.ListenAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("server failed", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logging.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logging.Error("shutdown incomplete", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logging.Error("metrics shutdown incomplete", zap.Error(err))
	}
	logging.Info("server stopped")
}

// newStore builds the object store named by the configuration.
func newStore(ctx context.Context, cfg *config.Config) (objstore.Store, error) {
	switch cfg.StorageBackend {
	case "gcs":
		return objstore.NewGCSStore(ctx, cfg.GCSBucket)
	case "s3":
		return objstore.NewS3Store(ctx, objstore.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
		})
	case "local":
		return objstore.NewLocalStore(cfg.LocalStoragePath)
	}
	return nil, errors.New("unknown storage backend " + cfg.StorageBackend)
}
