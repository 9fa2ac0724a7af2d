package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/getmentor/getmentor-sessions/config"
	"github.com/getmentor/getmentor-sessions/pkg/db"
	"github.com/getmentor/getmentor-sessions/pkg/logger"
	"go.uber.org/zap"
)

const migrationsSource = "file://migrations"

const usage = `usage: migrate [command]

commands:
  up        apply all pending migrations (default)
  down N    roll back the last N migrations
  version   print the applied schema version`

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	err = logger.Initialize(logger.Config{
		Level:       cfg.Logging.Level,
		LogDir:      cfg.Logging.Dir,
		Environment: cfg.Server.AppEnv,
		ServiceName: "getmentor-sessions-migrate",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.Database.WorkOffline {
		logger.Info("DB_WORK_OFFLINE is set, nothing to migrate")
		return
	}

	if err := run(cfg, os.Args[1:]); err != nil {
		logger.Error("Migration command failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, args []string) error {
	command := "up"
	if len(args) > 0 {
		command = args[0]
	}

	logger.Info("Connecting for migrations",
		zap.String("command", command),
		zap.String("database", maskDatabaseURL(cfg.Database.URL)))

	migrator, err := db.NewMigrator(cfg.Database.URL, cfg.Database.CACertPath, migrationsSource)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("Failed to close migrator", zap.Error(closeErr))
		}
	}()

	switch command {
	case "up":
		if err := migrator.Up(); err != nil {
			return err
		}
	case "down":
		if len(args) < 2 {
			return fmt.Errorf("down needs a step count\n%s", usage)
		}
		steps, convErr := strconv.Atoi(args[1])
		if convErr != nil {
			return fmt.Errorf("invalid step count %q: %w", args[1], convErr)
		}
		if err := migrator.Down(steps); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	logger.Info("Schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// maskDatabaseURL hides the password of a database URL for logging
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
