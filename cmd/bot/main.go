package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/reelrate/reelrate/internal/app"
	"github.com/reelrate/reelrate/internal/config"
	"github.com/reelrate/reelrate/internal/database"
	"github.com/reelrate/reelrate/internal/discord"
	"github.com/reelrate/reelrate/internal/domain"
	"github.com/reelrate/reelrate/internal/imdb"
	"github.com/reelrate/reelrate/internal/logging"
	"github.com/reelrate/reelrate/internal/rating"
	"github.com/reelrate/reelrate/internal/redis"
	"github.com/reelrate/reelrate/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrations(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

// setupGuard picks the guard implementation: Redis when configured (required
// for multi-instance deployments), in-process otherwise. The returned stop
// function tears down the memory guard's sweep timer.
func setupGuard(cfg *config.Config, redisClient *goredis.Client, clock clockwork.Clock) (domain.SelfActionGuard, func()) {
	if redisClient != nil {
		return rating.NewRedisGuard(redisClient, cfg.GuardCooldown), func() {}
	}

	guard := rating.NewMemoryGuard(cfg.GuardCooldown, clock)
	stopSweep := guard.StartSweepTimer(time.Minute)
	return guard, stopSweep
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupDB(cfg)
	defer pool.Close()

	var redisClient *goredis.Client
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(context.Background(), cfg.RedisURL)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		redisClient = client
		defer func() { _ = redisClient.Close() }()
	}

	guard, stopSweep := setupGuard(cfg, redisClient, clock)
	defer stopSweep()

	statsCache := rating.NewStatsCache(cfg.StatsCacheTTL, clock)
	stopEviction := statsCache.StartEvictionTimer(time.Minute)
	defer stopEviction()

	ratingRepo := database.NewRatingRepo(pool)
	movieRepo := database.NewMovieRepo(pool)
	settingsRepo := database.NewSettingsRepo(pool)

	rest := discord.NewRestClient(cfg.DiscordToken, "")
	notifier := discord.NewNotifier(rest, cfg.NoticeTTL, clock)
	refresher := discord.NewEmbedRefresher(rest)
	omdb := imdb.NewClient(cfg.OmdbAPIKey, "")

	ratingSvc := rating.NewService(guard, ratingRepo, movieRepo, statsCache, rest, notifier, refresher)
	appSvc := app.NewService(movieRepo, settingsRepo, omdb, notifier, rest, ratingSvc)

	gateway := discord.NewGateway(cfg.DiscordToken, "", appSvc)

	srv := server.NewServer(cfg, pool, redisClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	gatewayDone := make(chan error, 1)
	go func() {
		gatewayDone <- gateway.Run(ctx)
	}()

	go func() {
		slog.Info("Server starting", "port", cfg.Port)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	<-sigChan
	slog.Info("Shutdown signal received, cleaning up...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown error", "error", err)
	}

	select {
	case <-gatewayDone:
	case <-time.After(5 * time.Second):
		slog.Warn("Gateway did not shut down in time")
	}

	slog.Info("Shutdown complete")
}
