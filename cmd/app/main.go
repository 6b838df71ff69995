package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/local/pisoprint/internal/cache"
	cfgpkg "github.com/local/pisoprint/internal/config"
	"github.com/local/pisoprint/internal/database"
	"github.com/local/pisoprint/internal/database/migration"
	"github.com/local/pisoprint/internal/estimator"
	"github.com/local/pisoprint/internal/ledger"
	ledgerpg "github.com/local/pisoprint/internal/ledger/postgres"
	logpkg "github.com/local/pisoprint/internal/logger"
	"github.com/local/pisoprint/internal/metrics"
	"github.com/local/pisoprint/internal/orchestrator"
	"github.com/local/pisoprint/internal/statuscheck"
	"github.com/local/pisoprint/internal/storage"
	"github.com/local/pisoprint/internal/store"
)

func main() {
	// .env is optional
	_ = godotenv.Load()
	cfg := cfgpkg.FromEnv()

	_ = logpkg.Init(logpkg.Options{
		Service:      "pisoprint",
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
	defer logpkg.Close()
	metrics.Init()

	ctx := context.Background()

	cm, err := cache.New(cfg.Cache.Dir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Cache.Dir).Msg("failed to prepare cache")
	}
	cm.SweepTemps(time.Hour)

	// Sessions
	var sessions store.Sessions
	if cfg.Session.RedisURL != "" {
		rs, err := store.NewRedisSessions(cfg.Session.RedisURL, cfg.Session.TTL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rs.Close()
		sessions = rs
	} else {
		log.Warn().Msg("REDIS_URL not set, sessions kept in memory")
		sessions = store.NewMemorySessions(cfg.Session.TTL)
	}

	// Ledger
	var (
		repo ledger.Repository
		db   *sql.DB
	)
	if cfg.Database.URL != "" {
		db, err = database.NewPostgres(ctx, database.Options{
			URL:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()
		if err := migration.EnsureMigrated(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("database migration failed")
		}
		repo = ledgerpg.NewOrderPostgres(db)
	} else {
		log.Warn().Msg("DATABASE_URL not set, orders kept in memory")
		repo = ledger.NewMemoryRepository()
	}

	// Archive
	var (
		archive     orchestrator.Archiver
		archivePing statuscheck.Pinger
	)
	if cfg.Archive.Bucket != "" {
		a, err := storage.NewS3Archive(ctx, storage.Options{
			Bucket:   cfg.Archive.Bucket,
			Prefix:   cfg.Archive.Prefix,
			Password: cfg.Archive.Password,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init source archive")
		}
		archive, archivePing = a, a
	}

	var dbPing statuscheck.Pinger
	if db != nil {
		dbPing = statuscheck.PingFunc(db.PingContext)
	} else {
		dbPing = statuscheck.PingFunc(func(context.Context) error { return nil })
	}

	pipeline := orchestrator.NewPipeline(orchestrator.PipelineDeps{
		Cache:    cm,
		Sessions: sessions,
		Archive:  archive,
		Timeout:  cfg.Cache.UploadTimeout,
	})
	srv := orchestrator.New(orchestrator.Dependencies{
		Pipeline:  pipeline,
		Cache:     cm,
		Estimator: estimator.New(cm),
		Ledger:    ledger.NewService(repo),
		Sessions:  sessions,
		Status: statuscheck.New(statuscheck.Options{
			Sessions: sessions,
			Database: dbPing,
			Archive:  archivePing,
			CacheDir: cm.Writable,
		}),
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      orchestrator.Logged(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Msgf("HTTP server listening on :%s", cfg.Server.Port)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	log.Info().Msg("shutdown complete")
}
