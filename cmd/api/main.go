package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"launchkit/api/internal/app"
	"launchkit/api/internal/cache"
	"launchkit/api/internal/config"
	"launchkit/api/internal/email"
	"launchkit/api/internal/export"
	"launchkit/api/internal/logging"
	"launchkit/api/internal/media"
	"launchkit/api/internal/rbac"
	"launchkit/api/internal/realtime"
	"launchkit/api/internal/revisions"
	"launchkit/api/internal/search"
	"launchkit/api/internal/session"
	"launchkit/api/internal/store"
	"launchkit/api/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New(logging.Options{})
		bootLogger.Fatal().Err(err).Msg("config load failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracker, err := telemetry.NewTracker(telemetry.Options{DSN: cfg.SentryDSN, Environment: cfg.SentryEnvironment})
	if err != nil {
		bootLogger := logging.New(logging.Options{})
		bootLogger.Fatal().Err(err).Msg("error tracker init failed")
	}
	var hooks []zerolog.Hook
	if tracker.Enabled() {
		hooks = append(hooks, telemetry.NewHook(tracker))
	}
	logger := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Hooks: hooks})

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}

	if err := os.MkdirAll(cfg.RevisionsDir, 0o755); err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.RevisionsDir).Msg("failed to create revisions dir")
	}

	redisClient, err := session.NewRedisClient(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	sessions := session.NewRedisStore(redisClient)
	defer sessions.Close()

	dataStore := store.NewPostgresStore(db)

	var engine search.Engine
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meili := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logging.Component(logger, "meili"))
		defer meili.Close()
		engine = meili
	} else {
		logger.Info().Msg("meilisearch not configured, using postgres full text search")
	}
	searchService := search.NewService(engine, search.NewPgFTS(dataStore), logging.Component(logger, "search"))

	mediaClient, err := media.NewClient(media.Config{
		Endpoint:        cfg.MinioEndpoint,
		AccessKeyID:     cfg.MinioAccessKey,
		SecretAccessKey: cfg.MinioSecretKey,
		Bucket:          cfg.MinioBucket,
		UseSSL:          cfg.MinioUseSSL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("media storage init failed")
	}
	if !mediaClient.Enabled() {
		logger.Info().Msg("media storage not configured, uploads disabled")
	}

	policy, err := rbac.NewPolicy()
	if err != nil {
		logger.Fatal().Err(err).Msg("rbac policy load failed")
	}

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
		AppName:  "Launchkit",
	})

	service := app.New(app.Deps{
		Config:    cfg,
		Store:     dataStore,
		Sessions:  sessions,
		Cache:     cache.New(redisClient, logging.Component(logger, "cache")),
		Hub:       realtime.NewHub(redisClient, logging.Component(logger, "realtime")),
		Search:    searchService,
		Revisions: revisions.New(cfg.RevisionsDir),
		Media:     mediaClient,
		Export:    export.NewService(logging.Component(logger, "export"), 30*time.Second),
		Email:     mailer,
		Policy:    policy,
		Logger:    logger,
	})

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	// Request contexts derive from ctx so open event streams end on SIGTERM
	// and Shutdown can finish. WriteTimeout stays off for the same streams.
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("app_host", cfg.AppHost).Msg("Launchkit API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
	if !tracker.Close(5 * time.Second) {
		logger.Warn().Msg("error tracker buffer not drained")
	}
}
