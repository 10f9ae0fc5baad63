package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kristian206/agent-ascend-server/internal/cache"
	"github.com/kristian206/agent-ascend-server/internal/config"
	"github.com/kristian206/agent-ascend-server/internal/leaderboard"
	"github.com/kristian206/agent-ascend-server/internal/points"
	"github.com/kristian206/agent-ascend-server/internal/season"
	"github.com/kristian206/agent-ascend-server/internal/server"
	"github.com/kristian206/agent-ascend-server/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect db", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := store.Migrate(ctx, db); err != nil {
		logger.Error("migrate", "err", err)
		os.Exit(1)
	}

	rdb, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	pointsCfg := points.Default()
	if cfg.PointsConfigPath != "" {
		pointsCfg, err = points.Load(cfg.PointsConfigPath)
		if err != nil {
			logger.Error("load points config", "err", err)
			os.Exit(1)
		}
	}

	svc := season.NewService(
		pointsCfg,
		store.NewMemberStore(db),
		store.NewSeasonStore(db),
		store.NewProgressStore(db),
		store.NewLifetimeStore(db),
		store.NewEventStore(db),
		logger,
	)
	svc.SetBoard(leaderboard.NewMirror(rdb))

	metrics := server.NewMetrics()
	hub := server.NewHub(metrics, logger)
	svc.SetNotifier(hub)

	srv := server.New(cfg, db, rdb, svc, hub, metrics, logger)

	httpSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		logger.Error("shutdown", "err", err)
	}
}
