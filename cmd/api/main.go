package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/secure-api/internal/auth"
	"github.com/spec-kit/secure-api/internal/config"
	"github.com/spec-kit/secure-api/internal/observability"
	"github.com/spec-kit/secure-api/internal/persistence"
)

var version = "dev"

func main() {
	cmd := &cli.Command{
		Name:    "secure-api",
		Usage:   "Stateless bearer token authentication service",
		Version: version,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runServer(ctx)
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start the HTTP server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runServer(ctx)
				},
			},
			{
				Name:  "migrate",
				Usage: "Apply database migrations and exit",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runMigrate()
				},
			},
			{
				Name:  "hash-password",
				Usage: "Print the bcrypt hash of a password",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "password",
						Aliases:  []string{"p"},
						Required: true,
						Usage:    "Plaintext password to hash",
					},
					&cli.IntFlag{
						Name:  "cost",
						Value: 0,
						Usage: "bcrypt cost (defaults to AUTH_BCRYPT_COST)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runHashPassword(cmd.String("password"), int(cmd.Int("cost")))
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatalf("secure-api: %v", err)
	}
}

func loadRuntime() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.App.Version == "dev" {
		cfg.App.Version = version
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

func runMigrate() error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.Postgres.DSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required to run migrations")
	}
	return persistence.RunMigrations(cfg.Postgres.DSN, logger)
}

func runHashPassword(password string, cost int) error {
	if cost == 0 {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cost = cfg.Auth.BcryptCost
	}
	hash, err := auth.HashPassword(password, cost)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}
