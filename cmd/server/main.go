package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/driftline/matchmaker/internal/config"
	"github.com/driftline/matchmaker/internal/database"
	"github.com/driftline/matchmaker/internal/handler"
	"github.com/driftline/matchmaker/internal/jobs"
	"github.com/driftline/matchmaker/internal/matchmaking"
	"github.com/driftline/matchmaker/internal/middleware"
	"github.com/driftline/matchmaker/internal/redis"
	"github.com/driftline/matchmaker/internal/repository"
	"github.com/driftline/matchmaker/internal/service"
	"github.com/driftline/matchmaker/internal/sse"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("failed to load .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	timeouts := matchmaking.Timeouts{
		Presence: cfg.PresenceTimeout(),
		Waiting:  cfg.WaitingTimeout(),
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), config.BackendPingTimeout)
		redisClient, err = redis.NewClient(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected")
	}

	sweepHook := repository.WithSweepHook(service.LogSweep)

	var lobby repository.LobbyRepository
	switch cfg.StoreBackend {
	case config.BackendRedis:
		lobby = repository.NewRedisLobbyRepository(redisClient.Client, cfg.RedisKeyPrefix, timeouts, sweepHook)

	case config.BackendPostgres:
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), config.BackendPingTimeout)
		if err := db.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to ping database")
		}
		if err := repository.EnsureLobbySchema(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("failed to prepare lobby schema")
		}
		cancel()
		log.Info().Msg("database connected")

		lobby = repository.NewPostgresLobbyRepository(db, timeouts, sweepHook)

	default:
		lobby = repository.NewMemoryLobbyRepository(timeouts, sweepHook)
	}

	log.Info().
		Str("backend", lobby.Backend()).
		Dur("presenceTimeout", timeouts.Presence).
		Dur("waitingTimeout", timeouts.Waiting).
		Msg("lobby ready")

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	matchmakingService := service.NewMatchmakingService(lobby, broker, nil)

	var limiter middleware.Limiter = middleware.NewRateLimiter()
	if redisClient != nil {
		limiter = middleware.NewRedisRateLimiter(redisClient.Client, cfg.RedisKeyPrefix)
	}
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(limiter, cfg.RateLimitPerMin)
	if cfg.RateLimitPerMin == 0 {
		log.Warn().Msg("RATE_LIMIT_PER_MIN=0: rate limiting disabled")
	}
	corsMiddleware := middleware.NewCORSMiddleware(cfg.CORSAllowedOrigin)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(config.MaxSignalBodySize)

	signalingHandler := handler.NewSignalingHandler(matchmakingService, broker)
	healthHandler := handler.NewHealthHandler(matchmakingService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", healthHandler.ServeHTTP)

	r.Route("/api/chat", func(r chi.Router) {
		r.Use(corsMiddleware.Handler)
		r.Use(rateLimitMiddleware.Handler)
		r.Use(bodyLimitMiddleware.Handler)
		r.Mount("/", signalingHandler.Routes())
	})

	if cfg.SweepInterval() > 0 {
		sweepJob := jobs.NewSweepJob(matchmakingService, cfg.SweepInterval())
		sweepJob.Start()
		defer sweepJob.Stop()
	}

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

	// open event streams only end when the broker closes them
	broker.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
