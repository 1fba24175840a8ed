package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Simplici0/producao/internal/config"
	"github.com/Simplici0/producao/internal/db"
	"github.com/Simplici0/producao/internal/erpclient"
	"github.com/Simplici0/producao/internal/logger"
	"github.com/Simplici0/producao/internal/migrations"
	"github.com/Simplici0/producao/internal/scheduler"
	"github.com/Simplici0/producao/internal/seed"
	"github.com/Simplici0/producao/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		panic(err)
	}

	log := logger.Must(logger.New(cfg.LogLevel, cfg.IsDev()))
	defer log.Sync()

	for _, warning := range cfg.Warnings() {
		log.Warn("configuration warning", zap.String("detail", warning))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer database.Close()

	if err := migrations.Up(ctx, database, logger.Named(log, "migrations")); err != nil {
		log.Fatal("failed to run database migrations", zap.Error(err))
	}
	schema, err := migrations.Version(ctx, database)
	if err != nil {
		log.Fatal("failed to read schema version", zap.Error(err))
	}
	log.Info("database ready", zap.String("path", cfg.DBPath), zap.Int64("schema_version", schema))

	if cfg.IsDev() {
		stats, err := seed.Run(ctx, database)
		if err != nil {
			log.Fatal("failed to seed database", zap.Error(err))
		}
		log.Info("seed finished", zap.Int("inserts", stats.Inserts))
	}

	st := store.New(database)

	var (
		sched    *scheduler.Scheduler
		upstream bomFetcher
	)
	if cfg.SyncEnabled() {
		client := erpclient.New(cfg.Upstream, logger.Named(log, "erpclient"))
		upstream = client
		syncer := scheduler.NewSyncer(client, st, logger.Named(log, "sync"))
		sched, err = scheduler.New(cfg.Upstream.SyncSchedule, syncer, logger.Named(log, "scheduler"))
		if err != nil {
			log.Fatal("failed to configure bom sync", zap.Error(err))
		}
		sched.Start()
	}

	srv := newServer(st, upstream, cfg.Currency, logger.Named(log, "http"))
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("listening", zap.String("addr", httpServer.Addr), zap.String("env", cfg.Env))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	log.Info("server stopped")
}
