package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/voxture/voxture-backend/internal/config"
	"github.com/voxture/voxture-backend/internal/database"
	"github.com/voxture/voxture-backend/internal/document"
	"github.com/voxture/voxture-backend/internal/ingest"
	"github.com/voxture/voxture-backend/internal/knowledge"
	"github.com/voxture/voxture-backend/internal/logging"
	"github.com/voxture/voxture-backend/internal/monitoring"
	"github.com/voxture/voxture-backend/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(&cfg.Logging, cfg.Server.Env)

	log.Info().
		Str("env", cfg.Server.Env).
		Str("agent_id", cfg.Knowledge.AgentID).
		Msg("Starting Voxture API server")

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrationsFromPath(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
			log.Fatal().Err(err).Msg("Failed to run database migrations")
		}
	}

	db, err := database.New(cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	monitoring.Init()
	if cfg.Monitoring.PrometheusEnabled {
		go startMetricsServer(cfg.Monitoring.PrometheusPort)
		go reportDBStats(db)
	}

	// The lock is only engaged when per-agent serialization is on; the
	// default pipeline is unsynchronized per the inherited behavior.
	var locks ingest.Locker
	if cfg.Ingestion.SerializePerAgent {
		if cfg.Redis.URL != "" {
			opts, err := redis.ParseURL(cfg.Redis.URL)
			if err != nil {
				log.Fatal().Err(err).Msg("Invalid Redis URL")
			}
			locks = ingest.NewRedisLocker(redis.NewClient(opts), 2*time.Minute)
			log.Info().Msg("Per-agent serialization enabled (redis lease)")
		} else {
			locks = ingest.NewKeyedMutex()
			log.Info().Msg("Per-agent serialization enabled (in-process mutex)")
		}
	}

	store := document.NewStore(db.Pool)
	client := knowledge.NewHTTPClient(&cfg.Knowledge, &cfg.Ingestion)
	orchestrator := ingest.NewOrchestrator(client, &cfg.Ingestion, cfg.Knowledge.AgentID, store, locks)

	reconciler := ingest.NewReconciler(client, store, locks, cfg.Ingestion.ReconcileInterval)
	reconcileCtx, cancelReconcile := context.WithCancel(context.Background())
	defer cancelReconcile()
	if err := reconciler.Start(reconcileCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start orphan reconciler")
	}
	defer reconciler.Stop()

	srv := server.NewAPIServer(cfg, db.Pool, orchestrator)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("API server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().
		Str("signal", sig.String()).
		Msg("Shutdown signal received, gracefully shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited gracefully")
}

func reportDBStats(db *database.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		stat := db.Pool.Stat()
		monitoring.SetDBConnections(int(stat.AcquiredConns()), int(stat.IdleConns()))
	}
}

func startMetricsServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.Handler())

	metricsServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Info().Int("port", port).Msg("Prometheus metrics server listening")

	if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("Metrics server error")
	}
}
