// Command migrate applies, rolls back or lists the gamification schema
// migrations.
//
//	migrate -action=up
//	migrate -action=down
//	migrate -action=status
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/learnloop/learnloop-hub/config"
	"github.com/learnloop/learnloop-hub/internal/bootstrap"
	"github.com/learnloop/learnloop-hub/internal/infrastructure/persistence/postgres"
	"github.com/learnloop/learnloop-hub/pkg/logger"
)

func main() {
	action := flag.String("action", "up", "migration action: up, down or status")
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *action, *envFile); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, action, envFile string) error {
	cfg, err := config.LoadFile(envFile)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	log := bootstrap.NewLogger(cfg.Observability).With(logger.Component("migrate"), logger.Operation(action))
	defer func() { _ = log.Sync() }()

	conn, err := postgres.NewConnection(ctx, bootstrap.PostgresConfig(cfg.Database))
	if err != nil {
		return err
	}
	defer conn.Close()

	migrator := postgres.NewMigrator(conn)

	switch action {
	case "up":
		n, err := migrator.Migrate(ctx)
		if err != nil {
			return err
		}
		log.Info("migrations applied", logger.Int("count", n))

	case "down":
		version, err := migrator.Rollback(ctx)
		if err != nil {
			return err
		}
		if version == 0 {
			log.Info("nothing to roll back")
			return nil
		}
		log.Info("migration rolled back", logger.Int("version", version))

	case "status":
		migrations, err := migrator.Status(ctx)
		if err != nil {
			return err
		}
		for _, m := range migrations {
			state := "pending"
			if m.IsApplied {
				state = "applied " + m.AppliedAt.UTC().Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%03d  %-32s %s\n", m.Version, m.Name, state)
		}

	default:
		return fmt.Errorf("unknown action %q (want up, down or status)", action)
	}

	return nil
}
