package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/notifyhub/notification-dispatcher/internal/api"
	"github.com/notifyhub/notification-dispatcher/internal/bus"
	"github.com/notifyhub/notification-dispatcher/internal/config"
	"github.com/notifyhub/notification-dispatcher/internal/db"
	"github.com/notifyhub/notification-dispatcher/internal/dispatch"
	"github.com/notifyhub/notification-dispatcher/internal/metrics"
	"github.com/notifyhub/notification-dispatcher/internal/repository"
	"github.com/notifyhub/notification-dispatcher/internal/scheduler"
)

func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()

	// ---- store ----
	bootCtx, bootCancel := context.WithTimeout(ctx, cfg.OperationTimeout)
	client, coll, err := db.Connect(bootCtx, cfg.MongoURI)
	bootCancel()
	if err != nil {
		logger.Fatal("failed to connect to mongodb", zap.Error(err))
	}
	defer client.Disconnect(ctx) //nolint:errcheck
	logger.Info("mongodb connected, indexes provisioned")

	// ---- bus ----
	bootCtx, bootCancel = context.WithTimeout(ctx, cfg.OperationTimeout)
	nc, publisher, err := bus.Connect(bootCtx, cfg.NATSURL, cfg.OperationTimeout)
	bootCancel()
	if err != nil {
		logger.Fatal("failed to connect to nats", zap.Error(err))
	}
	defer nc.Close()
	logger.Info("nats connected, streams provisioned")

	// ---- core dependencies ----
	m := metrics.New()
	repo := repository.NewMongoNotificationRepository(coll, cfg.OperationTimeout)

	onPublished, onFailed := m.DispatchHooks()
	svc := dispatch.NewService(repo, publisher, logger, dispatch.Options{
		BatchSize:    cfg.DispatchBatchSize,
		SendAttempts: cfg.SendAttempts,
		RetryDelay:   cfg.RetryDelay,
	}, dispatch.Hooks{
		OnPublished: onPublished,
		OnFailed:    onFailed,
	})

	// ---- scheduler loops ----
	// Context for the tier loops; cancelled on shutdown signal.
	loopCtx, cancelLoops := context.WithCancel(ctx)
	defer cancelLoops()

	sched := scheduler.New(svc, cfg.HighTickInterval, cfg.LowTickInterval, logger)
	sched.Start(loopCtx)

	// ---- HTTP servers ----
	appSrv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.AppPort),
		Handler:      api.NewRouter(svc, m, logger),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	metricsSrv := &http.Server{
		Addr:    net.JoinHostPort(cfg.Host, cfg.PrometheusPort),
		Handler: m.Handler(),
	}

	go func() {
		logger.Info("server starting", zap.String("addr", appSrv.Addr))
		if err := appSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()
	go func() {
		logger.Info("metrics server starting", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("metrics server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := appSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", zap.Error(err))
	}

	// 2. Signal the tier loops to stop ticking.
	cancelLoops()

	// 3. Wait for in-flight dispatches to drain.
	sched.Wait()

	logger.Info("server stopped cleanly")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}
