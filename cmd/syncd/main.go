package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	appsync "github.com/foodhub/ordersync/internal/application/sync"
	"github.com/foodhub/ordersync/internal/domain/order"
	"github.com/foodhub/ordersync/internal/infrastructure/auth"
	"github.com/foodhub/ordersync/internal/infrastructure/config"
	"github.com/foodhub/ordersync/internal/infrastructure/gateway"
	"github.com/foodhub/ordersync/internal/infrastructure/logger"
	"github.com/foodhub/ordersync/internal/infrastructure/persistence"
	"github.com/foodhub/ordersync/internal/infrastructure/realtime"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting order sync daemon",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("realtime_driver", cfg.Realtime.Driver),
	)

	// Resolve the session identity up front; everything downstream is
	// scoped to one authenticated role and owner.
	credentials, err := buildCredentialProvider(cfg)
	if err != nil {
		log.Fatal("Failed to initialize credential provider", zap.Error(err))
	}
	cred, err := credentials.Credential(context.Background())
	if err != nil {
		log.Fatal("Failed to resolve session credential", zap.Error(err))
	}
	log.Info("Session identity resolved",
		zap.String("role", cred.Role.String()),
		zap.String("owner_id", cred.OwnerID),
	)

	// REST gateway to the backend of record
	gw, err := gateway.NewClient(gateway.Config{
		BaseURL:        cfg.Gateway.BaseURL,
		RequestTimeout: cfg.Gateway.RequestTimeout,
	}, credentials, log)
	if err != nil {
		log.Fatal("Failed to initialize gateway client", zap.Error(err))
	}

	// Push transport
	transport := buildTransport(cfg, log)

	// Sync core
	store := appsync.NewStore(log)
	channel := appsync.NewChannel(
		appsync.ChannelConfig{
			ReconnectBase: cfg.Realtime.ReconnectBase,
			ReconnectMax:  cfg.Realtime.ReconnectMax,
		},
		transport,
		appsync.Room{Role: cred.Role, OwnerID: cred.OwnerID},
		store,
		log,
	)
	poller := appsync.NewPoller(
		appsync.PollerConfig{
			Interval:     cfg.Poller.Interval,
			FetchTimeout: cfg.Poller.FetchTimeout,
			Jitter:       cfg.Poller.Jitter,
		},
		store,
		gw,
		log,
	)
	coordinator := appsync.NewCoordinator(store, gw, cred.Role, cfg.Gateway.RequestTimeout, log)

	// Optional local snapshot cache
	var cache appsync.SnapshotCache
	if cfg.Cache.Enabled {
		db, err := persistence.NewDatabase(cfg.Cache.Path, log)
		if err != nil {
			log.Fatal("Failed to open snapshot cache", zap.Error(err))
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Error("Error closing snapshot cache", zap.Error(err))
			}
		}()
		cache = persistence.NewGormSnapshotRepository(db.DB, log)
		log.Info("Snapshot cache enabled", zap.String("path", cfg.Cache.Path))
	}

	session := appsync.NewSession(appsync.SessionDeps{
		Store:       store,
		Channel:     channel,
		Poller:      poller,
		Coordinator: coordinator,
		Cache:       cache,
		Logger:      log,
	})

	ctx, cancel := context.WithCancel(context.Background())
	session.Start(ctx)
	log.Info("Order sync session started")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down order sync session...")
	cancel()
	session.Close()
	log.Info("Order sync session stopped")
}

func buildCredentialProvider(cfg *config.Config) (auth.Provider, error) {
	switch cfg.Credential.Provider {
	case "jwt":
		return auth.NewJWTProvider(cfg.Credential.Token, []byte(cfg.Credential.Secret)), nil
	default:
		return auth.NewStaticProvider(
			order.Role(cfg.Credential.Role),
			cfg.Credential.OwnerID,
			cfg.Credential.Token,
		)
	}
}

func buildTransport(cfg *config.Config, log *zap.Logger) appsync.Transport {
	switch cfg.Realtime.Driver {
	case "rabbitmq":
		return realtime.NewRabbitTransport(realtime.RabbitConfig{
			URL:      cfg.Realtime.Rabbit.URL(),
			Exchange: cfg.Realtime.Rabbit.Exchange,
		}, log)
	default:
		return realtime.NewRedisTransport(realtime.RedisConfig{
			Addr:     cfg.Realtime.Redis.Addr(),
			Password: cfg.Realtime.Redis.Password,
			DB:       cfg.Realtime.Redis.DB,
		}, log)
	}
}
