package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/I3lackEye/linuxgamebench/internal/app/migrate"
	httpx "github.com/I3lackEye/linuxgamebench/internal/http"
	"github.com/I3lackEye/linuxgamebench/internal/repository"
	"github.com/I3lackEye/linuxgamebench/internal/repository/memory"
	"github.com/I3lackEye/linuxgamebench/internal/repository/postgres"
	"github.com/I3lackEye/linuxgamebench/internal/service/benchmark"
	"github.com/I3lackEye/linuxgamebench/internal/service/report"
	"github.com/I3lackEye/linuxgamebench/internal/ws"
	"github.com/I3lackEye/linuxgamebench/pkg/config"
	"github.com/I3lackEye/linuxgamebench/pkg/logger"
)

type store interface {
	repository.GameRepository
	repository.SystemRepository
	repository.RunRepository
}

func main() {
	cfg := config.LoadServerConfig()
	log := logger.New("lgbd", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	profile, err := config.LoadAnalysisProfile(cfg.AnalysisProfile)
	if err != nil {
		log.Error("failed to load analysis profile", "error", err)
		os.Exit(1)
	}
	targets := profile.Targets
	if len(cfg.FPSTargets) > 0 {
		targets = cfg.FPSTargets
	}

	var (
		repo     store
		dbHealth func(context.Context) error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Storage)) {
	case "memory":
		log.Warn("using in-memory storage; runs are lost on restart")
		repo = memory.New()
	default:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
		if err != nil {
			log.Error("failed to configure migrations", "error", err)
			os.Exit(1)
		}
		defer runner.Close()
		if err := runner.Ping(ctx); err != nil {
			log.Error("database ping failed", "error", err)
			os.Exit(1)
		}
		if cfg.AutoMigrate {
			if err := runner.Ensure(ctx); err != nil {
				log.Error("migrations failed", "error", err)
				os.Exit(1)
			}
		}
		repo = postgres.New(pool)
		dbHealth = pool.Ping
	}

	hub := ws.NewHub()
	defer hub.Close()

	benchSvc := benchmark.New(repo, repo, repo, hub, log, benchmark.Config{
		Options:     profile.Options(),
		Targets:     targets,
		TokenSecret: cfg.TokenSecret,
		TokenTTL:    cfg.UploadTokenTTL,
		CacheSize:   cfg.AnalysisCacheSize,
		CacheTTL:    cfg.AnalysisCacheTTL,
		Workers:     cfg.AnalysisWorkers,
	})
	reportSvc := report.New(repo, repo, repo, targets, log)

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter.Close()
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, benchSvc, reportSvc, limiter, dbHealth, cfg.MaxCaptureBytes)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "storage", cfg.Storage, "env", cfg.Environment)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
