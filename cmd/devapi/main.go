// Command devapi serves the accounts and purchases API the orderdesk client
// talks to. Without MONGO_URI it keeps everything in memory.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	driver "go.mongodb.org/mongo-driver/mongo"

	"github.com/99minutos/orderdesk/internal/api"
	"github.com/99minutos/orderdesk/internal/core/ports"
	"github.com/99minutos/orderdesk/internal/core/service"
	"github.com/99minutos/orderdesk/internal/infrastructure/config"
	"github.com/99minutos/orderdesk/internal/infrastructure/db/memory"
	"github.com/99minutos/orderdesk/internal/infrastructure/db/mongo"
	"github.com/99minutos/orderdesk/internal/infrastructure/db/redis"
	"github.com/99minutos/orderdesk/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load(ctx)
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.Development(),
		Service: "devapi",
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("devapi stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	var (
		users  ports.UserRepository
		orders ports.OrderRepository
		mdb    *driver.Database
		rdb    *goredis.Client
	)

	if cfg.Mongo.URI != "" {
		store, err := mongo.Open(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database, Timeout: cfg.Mongo.Timeout})
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = store.Close(closeCtx)
		}()
		users, orders, mdb = store.Users, store.Orders, store.DB
		log.Info().Str("database", cfg.Mongo.Database).Msg("using mongodb persistence")
	} else {
		users, orders = memory.NewUserRepository(), memory.NewOrderRepository()
		log.Warn().Msg("MONGO_URI not set, data is kept in memory")
	}

	if cfg.Redis.Addr != "" {
		client, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, readiness will not report it")
		} else {
			defer client.Close()
			rdb = client
		}
	}

	accounts := service.NewAccountService(users, cfg.JWTSecret, cfg.TokenTTL, logger.Component("accounts"))
	orderService := service.NewOrderService(orders, logger.Component("orders"))

	if _, err := accounts.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password, cfg.Admin.Email); err != nil {
		return err
	}

	e := api.NewRouter(api.Deps{
		Accounts:   accounts,
		Orders:     orderService,
		JWTSecret:  cfg.JWTSecret,
		Logger:     logger.Component("http"),
		Mongo:      mdb,
		Redis:      rdb,
		RequestLog: cfg.Development(),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("devapi listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("shutting down")
	return e.Shutdown(shutdownCtx)
}
