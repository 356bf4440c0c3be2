// migrate applies the booking engine schema without starting the server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/smarttransit/booking-engine/internal/config"
	"github.com/smarttransit/booking-engine/internal/database"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	_ = godotenv.Load()

	cfg := config.DatabaseConfig{}
	var action string

	flagSet := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	flagSet.StringVarP(&action, "action", "a", database.MigrateUp, "one of up, down, step-up, drop")
	flagSet.StringVar(&cfg.URL, "database-url", os.Getenv("DATABASE_URL"), "postgres connection URL")
	flagSet.StringVar(&cfg.MigrationsPath, "path", envOr("DATABASE_MIGRATIONS_PATH", "file://migrations/postgres"), "migration source URL")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if cfg.URL == "" {
		return fmt.Errorf("--database-url or DATABASE_URL is required")
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return database.RunMigrations(cfg, action, logger)
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
