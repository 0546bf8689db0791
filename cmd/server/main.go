package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/user-accounts/internal/api"
	"github.com/99minutos/user-accounts/internal/api/handler"
	"github.com/99minutos/user-accounts/internal/core/domain"
	"github.com/99minutos/user-accounts/internal/core/service"
	"github.com/99minutos/user-accounts/internal/infrastructure/crypto"
	mongodb "github.com/99minutos/user-accounts/internal/infrastructure/db/mongo"
	redisdb "github.com/99minutos/user-accounts/internal/infrastructure/db/redis"
	"github.com/99minutos/user-accounts/internal/infrastructure/queue"
	"github.com/99minutos/user-accounts/internal/infrastructure/token"
	"github.com/99minutos/user-accounts/internal/pkg/config"
	"github.com/99minutos/user-accounts/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// @title                       User Accounts API
// @version                     1.0
// @description                 Stores user accounts, authenticates them and issues identity tokens.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "user-accounts",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	if cfg.Auth.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is empty, tokens are signed with an empty key")
	}

	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		AppName:  "user-accounts",
	})
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = mongoClient.Disconnect(dctx)
	}()

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer rdb.Close()

	users := mongodb.NewUserRepository(db, mongodb.DefaultUserSchema())
	events := mongodb.NewEventRepository(db)
	if err := mongodb.EnsureIndexes(ctx, users, events); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	// Workers outlive ctx so Close can drain events recorded during shutdown.
	audit := queue.NewDispatcher(cfg.Audit.Workers, events, logger.Component("audit"))
	audit.Start(context.Background())
	defer audit.Close()

	tokens := token.NewJWT(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.JWTTTL)
	userService := service.NewUserService(service.UserServiceConfig{
		Repo: users,
		Hasher: crypto.NewHasher(crypto.Params{
			Memory:     cfg.Argon2.MemoryKiB,
			Iterations: cfg.Argon2.Iterations,
			Threads:    cfg.Argon2.Parallelism,
		}),
		Tokens: tokens,
		Permissions: domain.Permissions{
			Roles:        cfg.Permissions.Roles,
			Applications: cfg.Permissions.Applications,
		},
		Audit:       audit,
		Idempotency: redisdb.NewIdempotencyStore(rdb, cfg.Audit.IdempotencyTTL),
		Logger:      logger.Component("users"),
	})

	e := api.NewRouter(api.RouterConfig{
		Users:        userService,
		Tokens:       tokens,
		AuthRequired: cfg.Auth.Required,
		Checks: map[string]handler.Check{
			"mongodb": handler.MongoCheck(db),
			"redis":   handler.RedisCheck(rdb),
		},
		Logger: logger.Component("http"),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Bool("auth_required", cfg.Auth.Required).Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}
