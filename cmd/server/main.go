package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"user-service/internal/api"
	"user-service/internal/config"
	"user-service/internal/logging"
	"user-service/internal/metrics"
	"user-service/internal/repository"
	"user-service/internal/service"
	"user-service/internal/store"
	"user-service/migrations"
)

func serviceOptions(ctx context.Context, cfg *config.Config, logger zerolog.Logger) ([]service.Option, func()) {
	opts := []service.Option{service.WithPageSize(cfg.DefaultPageSize, cfg.MaxPageSize)}
	var closers []func() error

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unreachable, cache disabled")
			rdb.Close()
		} else {
			opts = append(opts, service.WithCache(service.NewCache(rdb, cfg.CacheTTL)))
			closers = append(closers, rdb.Close)
		}
	}

	if kafkaWriter := config.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic); kafkaWriter != nil {
		opts = append(opts, service.WithPublisher(service.NewPublisher(kafkaWriter)))
		closers = append(closers, kafkaWriter.Close)
	}

	return opts, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn().Err(err).Msg("Error closing client")
			}
		}
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	service.SetLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("db", cfg.DBPath).Msg("Failed to open database")
	}
	defer db.Close()

	if err := migrations.AutoMigrate(ctx, db, logger); err != nil {
		logger.Fatal().Err(err).Msg("Failed to migrate database")
	}

	opts, closeClients := serviceOptions(ctx, cfg, logger)
	defer closeClients()

	// Initialize UserService
	userRepo := repository.NewUserRepository(db)
	userService := service.NewUserService(userRepo, opts...)
	userHandler := api.NewUserHandler(userService)

	e := api.NewRouter(cfg, userHandler, metrics.NewCollector("user_service"), logger)

	go func() {
		logger.Info().Str("addr", cfg.Addr()).Str("env", cfg.AppEnv).Msgf("Server is running on port %s", cfg.Port)
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Server stopped")
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error shutting down server")
	}
	logger.Info().Msg("Server stopped")
}
