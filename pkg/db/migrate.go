package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/getmentor/getmentor-sessions/pkg/logger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file" // file:// source driver
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// Migrator applies the schema migrations found at a source URL such as
// "file://migrations".
type Migrator struct {
	m *migrate.Migrate
}

// NewMigrator connects with the same TLS settings as the pool
func NewMigrator(databaseURL, caCertPath, sourceURL string) (*Migrator, error) {
	connConfig, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	tlsConfig, err := configureTLS(databaseURL, caCertPath)
	if err != nil {
		return nil, fmt.Errorf("failed to configure TLS: %w", err)
	}
	if tlsConfig != nil {
		connConfig.TLSConfig = tlsConfig
	}

	conn := stdlib.OpenDB(*connConfig)
	if pingErr := conn.Ping(); pingErr != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", pingErr)
	}

	driver, err := postgres.WithInstance(conn, &postgres.Config{})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}

	return &Migrator{m: m}, nil
}

// Up applies every pending migration. Being up to date is not an error.
func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Down rolls back n applied migrations
func (mg *Migrator) Down(n int) error {
	if n <= 0 {
		return fmt.Errorf("rollback step count must be positive, got %d", n)
	}
	if err := mg.m.Steps(-n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back %d migrations: %w", n, err)
	}
	return nil
}

// Version reports the applied schema version. A fresh database has version 0.
func (mg *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// Close releases the source and the database connection
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

// RunMigrations applies all pending migrations and closes the connection
func RunMigrations(databaseURL, caCertPath, sourceURL string) error {
	mg, err := NewMigrator(databaseURL, caCertPath, sourceURL)
	if err != nil {
		return err
	}
	defer mg.Close() //nolint:errcheck
	return mg.Up()
}

// migrateLogger forwards golang-migrate progress to the service logger
type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	logger.Info("migrate", zap.String("message", strings.TrimSpace(fmt.Sprintf(format, v...))))
}

func (migrateLogger) Verbose() bool { return false }
