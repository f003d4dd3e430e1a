package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"topicbridge/internal/bridge"
	"topicbridge/internal/cache"
	"topicbridge/internal/config"
	"topicbridge/internal/gateway"
	"topicbridge/internal/search"
	"topicbridge/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("configuration failed")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL, 10)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}
	dataStore := store.NewPostgresStore(db)

	// The ephemeral store carries console state and confirmation flags;
	// the bridge does not start without it.
	redisCache, err := cache.NewRedisCache(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer redisCache.Close()

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, log)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, dataStore, log)
	searchService.Reindex(ctx)

	var (
		roles  gateway.Roles
		source gateway.Source
	)
	switch cfg.Gateway {
	case "memory":
		world := gateway.NewMemory(cfg.GroupID)
		var relay gateway.Client
		if cfg.AnonymousMode {
			relay = world.Client("relay")
		}
		roles = gateway.NewRoles(world.Client("bot"), world.Client("operator"), relay)
		source = world
		log.Warn().Msg("running on the in-process loopback gateway")
	default:
		log.Fatal().Str("gateway", cfg.Gateway).Msg("unknown gateway")
	}
	defer source.Close()

	service := bridge.NewService(dataStore, redisCache, searchService, roles, bridge.Options{
		GroupID:       cfg.GroupID,
		SuperAdminIDs: cfg.SuperAdminIDs,
		DownloadLimit: cfg.DownloadLimitBytes,
		ConfirmTTL:    cfg.ConfirmTTL,
	}, log)

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := service.Run(runCtx, source); err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("bridge stopped")
	}
	log.Info().Msg("bridge shut down")
}
