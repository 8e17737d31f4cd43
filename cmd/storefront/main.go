package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maison-edition/storefront/internal/api"
	"github.com/maison-edition/storefront/internal/core/service"
	"github.com/maison-edition/storefront/internal/infrastructure/config"
	"github.com/maison-edition/storefront/internal/kv"
	kvfile "github.com/maison-edition/storefront/internal/kv/file"
	kvmemory "github.com/maison-edition/storefront/internal/kv/memory"
	kvmongo "github.com/maison-edition/storefront/internal/kv/mongo"
	kvredis "github.com/maison-edition/storefront/internal/kv/redis"
	"github.com/maison-edition/storefront/pkg/logger"
)

func main() {
	cfg := config.Load(slog.Default())

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to open backing store")
	}
	defer store.Close()

	sessions := service.NewSessionManager(ctx, store, service.SessionConfig{
		Secret:      cfg.Session.JWTSecret,
		TokenTTL:    cfg.Session.TokenTTL,
		AdminEmail:  cfg.Session.AdminEmail,
		AdminSecret: cfg.Session.AdminSecret,
	}, log)
	defer sessions.Close()

	orders := service.NewOrderService(ctx, store, sessions, log)
	defer orders.Close()

	cart := service.NewCartService(ctx, store, log)
	defer cart.Close()

	favorites := service.NewFavoriteService(ctx, store, sessions, log)
	defer favorites.Close()

	e := api.NewRouter(api.Deps{
		Sessions:  sessions,
		Orders:    orders,
		Cart:      cart,
		Favorites: favorites,
		Store:     store,
		JWTSecret: cfg.Session.JWTSecret,
		Log:       log,
	})

	go func() {
		addr := ":" + cfg.Port
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting storefront server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// openStore selects the backing store from configuration. The memory driver
// keeps everything in-process and is mainly useful for local development.
func openStore(ctx context.Context, cfg *config.Config) (kv.Store, error) {
	log := logger.Get()

	switch cfg.Storage.Driver {
	case "memory":
		return kvmemory.NewHub().OpenContext(), nil
	case "file":
		return kvfile.Open(cfg.Storage.Path, log), nil
	case "redis":
		return kvredis.Open(ctx, kvredis.Config{
			Addr:   cfg.Redis.Addr,
			DB:     cfg.Redis.DB,
			Prefix: cfg.Redis.Prefix,
		}, log)
	case "mongo":
		return kvmongo.Open(ctx, kvmongo.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
		}, log)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
