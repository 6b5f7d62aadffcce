package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/flopinger/leads-sample-sub000/internal/adapter/repository/postgres"
	"github.com/flopinger/leads-sample-sub000/internal/pkg/config"
	"github.com/flopinger/leads-sample-sub000/internal/pkg/logger"

	_ "github.com/lib/pq"
)

func main() {
	steps := flag.Int("steps", 1, "number of migrations to roll back with 'down'")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-steps n] up|down|version\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	if cfg.PostgresURL == "" {
		log.Error("POSTGRES_URL is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := run(ctx, db, command, *steps, log); err != nil {
		log.Error("migration failed", "command", command, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, db *sql.DB, command string, steps int, log *slog.Logger) error {
	switch command {
	case "up":
		if err := postgres.RunMigrations(ctx, db); err != nil {
			return err
		}
	case "down":
		if err := postgres.RollbackMigrations(ctx, db, steps); err != nil {
			return err
		}
	case "version":
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}

	version, err := postgres.MigrationVersion(ctx, db)
	if err != nil {
		return err
	}
	log.Info("migrations done", "command", command, "version", version)
	return nil
}
