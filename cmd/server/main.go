package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nagi1/baileys-api/internal/config"
	"github.com/nagi1/baileys-api/internal/credential"
	"github.com/nagi1/baileys-api/internal/database"
	"github.com/nagi1/baileys-api/internal/handler"
	"github.com/nagi1/baileys-api/internal/jobs"
	"github.com/nagi1/baileys-api/internal/middleware"
	"github.com/nagi1/baileys-api/internal/redis"
	"github.com/nagi1/baileys-api/internal/repository"
	"github.com/nagi1/baileys-api/internal/session"
	"github.com/nagi1/baileys-api/internal/sse"
	"github.com/nagi1/baileys-api/internal/transport"
	"github.com/nagi1/baileys-api/internal/webhook"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	chatRepo := repository.NewChatRepository(db.DB)
	contactRepo := repository.NewContactRepository(db.DB)
	groupRepo := repository.NewGroupRepository(db.DB)
	messageRepo := repository.NewMessageRepository(db.DB)
	credentialRepo := repository.NewCredentialRepository(db.DB)
	configRepo := repository.NewSessionConfigRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	cipher, err := credential.NewCipher(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid encryption key")
	}

	relay := webhook.NewRelay(cfg.WebhookURL, cfg.WebhookTimeout(), cfg.WebhookRetryDelay())

	factory := transport.DefaultFactory()
	if factory == nil {
		log.Fatal().Msg("no transport factory registered, link a protocol client package")
	}

	manager := session.NewManager(cfg, factory, session.Stores{
		Configs:     configRepo,
		Credentials: credentialRepo,
		Chats:       chatRepo,
		Contacts:    contactRepo,
		Groups:      groupRepo,
		Messages:    messageRepo,
	}, relay, broker, cipher)

	restoreCtx, restoreCancel := context.WithTimeout(context.Background(), time.Minute)
	if err := manager.Restore(restoreCtx); err != nil {
		log.Error().Err(err).Msg("session restore failed")
	}
	restoreCancel()
	log.Info().Int("sessions", manager.SessionCount()).Msg("session restore complete")

	authMiddleware := middleware.NewAuthMiddleware(cfg.APIKey)
	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client, cfg.RateLimitPerMin)

	entityHandler := handler.NewEntityHandler(manager, chatRepo, contactRepo, groupRepo, messageRepo)
	sessionHandler := handler.NewSessionHandler(manager, broker, cfg, entityHandler)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Use(rateLimitMiddleware.Handler)
		r.Mount("/", sessionHandler.Routes())
	})

	cleanupJob := jobs.NewCleanupJob(
		chatRepo, contactRepo, groupRepo, messageRepo, credentialRepo,
		config.CleanupJobInterval,
	)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	manager.Shutdown(shutdownCtx)
	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
