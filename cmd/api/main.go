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

	token "medpal/internal/adapters/auth/token"
	bloblocal "medpal/internal/adapters/blob/local"
	pg "medpal/internal/adapters/storage/postgres"
	"medpal/internal/config"
	"medpal/internal/domain/reminders"
	"medpal/internal/platform/logger"
	"medpal/internal/ports/blob"
	"medpal/internal/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logger.NewFromEnv()
		l.Fatal().Err(err).Msg("loading config")
	}

	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: logger.ParseFormat(cfg.LogFormat),
		App:    "medpal-api",
	})

	var db *sql.DB
	if cfg.DatabaseDSN != "" {
		db, err = pg.Open(cfg.DatabaseDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("connecting to postgres")
		}
		defer db.Close()
		log.Info().Msg("storage: postgres")
	} else {
		log.Info().Msg("storage: in-memory")
	}

	var blobs blob.Store
	if cfg.BlobDir != "" {
		blobs, err = bloblocal.New(cfg.BlobDir)
		if err != nil {
			log.Fatal().Err(err).Str("dir", cfg.BlobDir).Msg("opening blob dir")
		}
	}

	var opts router.Options
	opts.DB = db
	opts.Blob = blobs
	opts.Logger = &log
	opts.Dev = cfg.IsDev()
	if cfg.JWTSecret != "" {
		ts := token.New(token.Config{Secret: []byte(cfg.JWTSecret), TTL: cfg.TokenTTL})
		opts.TokenIssuer = ts
		opts.TokenRevoker = ts
		opts.AuthVerifier = ts
	}

	handler, matcher := router.NewRouter(opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := reminders.NewScheduler(matcher, cfg.ReminderInterval, log)
	go sched.Run(ctx)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
