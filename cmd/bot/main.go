package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ntrli-bot/internal/ai"
	"ntrli-bot/internal/bot"
	"ntrli-bot/internal/catalog"
	"ntrli-bot/internal/config"
	"ntrli-bot/internal/database"
	"ntrli-bot/internal/logger"
	"ntrli-bot/internal/middleware"
	"ntrli-bot/internal/nft"
	"ntrli-bot/internal/outbox"
	"ntrli-bot/internal/repository"
	"ntrli-bot/internal/server"
	"ntrli-bot/internal/store"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	dbConnectAttempts = 8
	shutdownTimeout   = 30 * time.Second
	outboxTTL         = 24 * time.Hour
)

func gracefulShutdown(ctx context.Context, apiServer *server.Server, logger *zap.Logger) error {
	<-ctx.Done()

	logger.Info("Shutting down gracefully")

	// The server gets shutdownTimeout to finish the requests it is handling
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := apiServer.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}

	logger.Info("Server exiting")
	return nil
}

// connectRedis returns nil when Redis is disabled or unreachable. The bot
// then keeps replies in memory and runs without rate limiting.
func connectRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *redis.Client {
	if !cfg.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis unreachable, falling back to in-memory outbox", zap.Error(err))
		client.Close()
		return nil
	}

	logger.Info("Redis connected", zap.String("addr", client.Options().Addr))
	return client
}

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting NTRLI' bot",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.Bool("live", cfg.Bot.Live),
		zap.Int("admins", len(cfg.Bot.AdminIDs)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Subscription ledger
	dbService, err := database.New(cfg.Database)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	db := dbService.DB()

	if err := database.WaitForDatabase(ctx, db, dbConnectAttempts, logger.Layer(log, "database")); err != nil {
		log.Fatal("Database unreachable", zap.Error(err))
	}
	log.Info("Database health check", zap.Any("health", dbService.Health(ctx)))

	if err := database.RunMigrations(db, cfg.Storage.MigrationsDir, log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}
	if cfg.IsDevelopment() {
		if err := database.GetMigrationStatus(db, cfg.Storage.MigrationsDir); err != nil {
			log.Warn("Migration status unavailable", zap.Error(err))
		}
	}

	// Replies and rate limiting
	var (
		box            outbox.Outbox
		senderLimiter  middleware.Limiter
		gatewayLimiter middleware.Limiter
	)
	if rdb := connectRedis(ctx, cfg.Redis, log); rdb != nil {
		defer rdb.Close()
		window := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
		box = outbox.NewRedis(rdb, outbox.RedisConfig{TTL: outboxTTL})
		senderLimiter = middleware.NewRedisLimiter(rdb, middleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            window,
			KeyPrefix:         "sender_rate_limit",
		})
		gatewayLimiter = middleware.NewRedisLimiter(rdb, middleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.GatewayRequests,
			Window:            window,
			KeyPrefix:         "gateway_rate_limit",
		})
	} else {
		box = outbox.NewMemory()
	}

	// Document stores
	st := store.NewJSONStore(afero.NewOsFs())

	engine := ai.NewEngine(ai.EchoCompleter{}, st.Fs(), ai.Config{
		MemoryLimit:    cfg.Bot.MemoryLimit,
		MilestonesFile: cfg.Storage.MilestonesFile,
		MaxRetries:     ai.DefaultMaxRetries,
	}, logger.Layer(log, "ai"))

	catalogRepo := catalog.NewRepository(st, cfg.Storage.CatalogFile, catalog.Defaults{
		Brand:   cfg.Bot.Brand,
		Tagline: cfg.Bot.Tagline,
	}, engine, logger.Layer(log, "catalog"))

	registry, err := nft.NewRegistry(st, cfg.Storage.NFTDir, catalogRepo, logger.Layer(log, "nft"))
	if err != nil {
		log.Fatal("Failed to open NFT registry", zap.Error(err))
	}

	live := func() bool { return cfg.Bot.Live }
	b := bot.New(bot.Config{
		Live:      live,
		IsAdmin:   bot.IsAdminFunc(cfg.Bot.AdminIDs),
		QueueSize: cfg.Bot.QueueSize,
	}, bot.Deps{
		Catalog:       catalogRepo,
		NFTs:          registry,
		AI:            engine,
		Subscriptions: repository.NewSubscriptionRepository(db),
		Outbox:        box,
		Limiter:       senderLimiter,
	}, logger.Layer(log, "bot"))

	srv := server.NewServer(cfg, logger.Layer(log, "http"), server.Deps{
		DB:             dbService,
		Bot:            b,
		Outbox:         box,
		Live:           live,
		GatewayLimiter: gatewayLimiter,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return b.Run(gctx)
	})
	g.Go(func() error {
		return gracefulShutdown(gctx, srv, log)
	})

	if err := g.Wait(); err != nil {
		log.Error("Bot stopped with error", zap.Error(err))
		return
	}
	log.Info("Graceful shutdown complete")
}
