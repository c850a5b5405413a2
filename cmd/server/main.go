package main

import (
	// Standard library
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// External dependencies
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	// Internal packages
	"github.com/houzhh15/scribe/cmd/server/internal/api"
	"github.com/houzhh15/scribe/cmd/server/internal/config"
	"github.com/houzhh15/scribe/cmd/server/internal/jobs"
	"github.com/houzhh15/scribe/cmd/server/internal/middleware"
	"github.com/houzhh15/scribe/cmd/server/internal/orchestrator/health"
	"github.com/houzhh15/scribe/pkg/logger"
)

const serviceName = "scribe"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "transcribe" {
		os.Exit(runTranscribe(os.Args[2:]))
	}
	os.Exit(runServer())
}

// loadConfig 加载并校验配置，随后初始化全局 logger
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logInstance, err := logger.Init(logger.Config{
		Level:       cfg.Log.Level,
		Environment: cfg.LoggerEnvironment(),
		WithSource:  !cfg.IsProduction(),
		File:        cfg.Log.File,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger init failed: %w", err)
	}
	return cfg, logInstance, nil
}

func newJobStore(cfg *config.Config) (jobs.Store, func() error, error) {
	switch cfg.Jobs.Store {
	case "redis":
		store, err := jobs.NewRedisStore(jobs.RedisOptions{
			Addr:     cfg.Jobs.RedisAddr,
			Password: cfg.Jobs.RedisPassword,
			DB:       cfg.Jobs.RedisDB,
			TTL:      cfg.Jobs.TTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return jobs.NewMemoryStore(cfg.Jobs.TTL), func() error { return nil }, nil
	}
}

func runServer() int {
	cfg, logInstance, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	appLogger := logInstance.With("component", "web-server")
	appLogger.Info("configuration loaded", "env", cfg.Server.Env, "port", cfg.Server.Port)
	appLogger.Debug(cfg.PrintConfig())

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	pipeline, recognizer, err := buildPipeline(cfg, logInstance)
	if err != nil {
		appLogger.Error("pipeline init failed", "error", err)
		return 1
	}

	store, closeStore, err := newJobStore(cfg)
	if err != nil {
		appLogger.Error("job store init failed", "store", cfg.Jobs.Store, "error", err)
		return 1
	}
	defer func() {
		if err := closeStore(); err != nil {
			appLogger.Warn("job store close failed", "error", err)
		}
	}()
	appLogger.Info("job store ready", "store", cfg.Jobs.Store, "ttl", cfg.Jobs.TTL)

	runner := jobs.NewRunner(store, pipeline, cfg.Jobs.MaxConcurrent, logInstance)

	// 识别后端健康检查
	healthChecker := health.NewHealthChecker(recognizer, cfg.Health.Interval, cfg.Health.FailThreshold, logInstance)
	healthCtx, stopHealth := context.WithCancel(context.Background())
	defer stopHealth()
	go healthChecker.Start(healthCtx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logInstance.With("component", "http")))

	api.Routes{
		Service:        serviceName,
		Transcriptions: api.NewTranscriptionHandler(store, runner, uploadDir(cfg), cfg.Jobs.MaxUploadBytes, logInstance),
		HealthChecker:  healthChecker,
		Environment:    api.NewEnvironmentHandler(environmentInput(cfg, recognizer)),
	}.Register(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    cfg.GetServerAddr(),
		Handler: r,
	}

	serverErr := make(chan error, 1)
	go func() {
		appLogger.Info("server starting", "addr", srv.Addr, "env", cfg.Server.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	select {
	case sig := <-quit:
		appLogger.Info("shutdown signal received, shutting down server...", "signal", sig.String())
	case err := <-serverErr:
		appLogger.Error("server failed", "error", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	healthChecker.Stop()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("server forced to shutdown", "error", err)
	}
	// 进行中的任务被取消，切片文件由流水线清理
	if err := runner.Shutdown(ctx); err != nil {
		appLogger.Warn("jobs still running at shutdown", "active", runner.Active(), "error", err)
	}
	appLogger.Info("server shutdown complete")
	return 0
}
