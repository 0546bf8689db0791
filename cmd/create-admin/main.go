// Command create-admin seeds the first administrator when no user holds the
// admin role. It is safe to run on every deploy.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/user-accounts/internal/core/domain"
	"github.com/99minutos/user-accounts/internal/core/service"
	"github.com/99minutos/user-accounts/internal/infrastructure/crypto"
	mongodb "github.com/99minutos/user-accounts/internal/infrastructure/db/mongo"
	"github.com/99minutos/user-accounts/internal/infrastructure/queue"
	"github.com/99minutos/user-accounts/internal/pkg/config"
	"github.com/99minutos/user-accounts/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "create-admin",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("create admin failed")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	client, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		AppName:  "user-accounts-create-admin",
	})
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(dctx)
	}()

	users := mongodb.NewUserRepository(db, mongodb.DefaultUserSchema())
	events := mongodb.NewEventRepository(db)
	if err := mongodb.EnsureIndexes(ctx, users, events); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	audit := queue.NewDispatcher(1, events, logger.Component("audit"))
	audit.Start(context.Background())
	defer audit.Close()

	svc := service.NewUserService(service.UserServiceConfig{
		Repo: users,
		Hasher: crypto.NewHasher(crypto.Params{
			Memory:     cfg.Argon2.MemoryKiB,
			Iterations: cfg.Argon2.Iterations,
			Threads:    cfg.Argon2.Parallelism,
		}),
		Permissions: domain.Permissions{
			Roles:        cfg.Permissions.Roles,
			Applications: cfg.Permissions.Applications,
		},
		Audit:  audit,
		Logger: log,
	})

	created, err := svc.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password, cfg.Admin.Email)
	if err != nil {
		return err
	}
	if !created {
		log.Warn().Msg("There is already one admin. Nothing to do.")
		return nil
	}
	log.Info().Str("username", cfg.Admin.Username).Msg("admin user created")
	return nil
}
