package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"sentiment-dashboard/internal/config"
	"sentiment-dashboard/internal/monitoring"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type DB struct {
	conn   *sql.DB
	logger *logrus.Logger
}

func NewConnection(cfg *config.DatabaseConfig, logger *logrus.Logger) (*DB, error) {
	logger.Infof("Connecting to database: host=%s port=%d dbname=%s user=%s", cfg.Host, cfg.Port, cfg.Name, cfg.User)

	db, err := Open(cfg.DSN(), logger)
	if err != nil {
		return nil, err
	}
	db.configurePool(cfg)

	logger.Info("Database connection established")
	return db, nil
}

// Open connects with a ready-made DSN (postgres://... or key=value form).
func Open(dsn string, logger *logrus.Logger) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn: conn, logger: logger}, nil
}

func (db *DB) configurePool(cfg *config.DatabaseConfig) {
	if cfg.MaxOpenConns > 0 {
		db.conn.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.conn.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
}

// RunMigrations applies the embedded schema files in name order. Every file is
// written to be re-runnable.
func (db *DB) RunMigrations(ctx context.Context) error {
	db.logger.Info("Running database migrations...")

	migrationFiles, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("failed to find migration files: %w", err)
	}

	sort.Strings(migrationFiles)

	for _, file := range migrationFiles {
		db.logger.Infof("Running migration: %s", file)

		content, err := migrationFS.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		if _, err := db.conn.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", file, err)
		}
	}

	db.logger.Info("Migrations completed successfully")
	return nil
}

// withConn runs one unit of work on a single pooled connection and releases it.
func (db *DB) withConn(ctx context.Context, operation string, fn func(q querier) error) error {
	start := time.Now()
	conn, err := db.conn.Conn(ctx)
	if err != nil {
		monitoring.ObserveQuery(operation, time.Since(start), err)
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	err = fn(conn)
	if errors.Is(err, errHidden) {
		monitoring.ObserveQuery(operation, time.Since(start), nil)
		return err
	}
	monitoring.ObserveQuery(operation, time.Since(start), err)
	if err != nil {
		db.logger.WithFields(logrus.Fields{
			"operation": operation,
			"duration":  time.Since(start).String(),
		}).WithError(err).Debug("query failed")
	}
	return err
}

// withTx runs fn inside a transaction, rolling back on error.
func (db *DB) withTx(ctx context.Context, operation string, fn func(tx *sql.Tx) error) error {
	start := time.Now()
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		monitoring.ObserveQuery(operation, time.Since(start), err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		monitoring.ObserveQuery(operation, time.Since(start), err)
		return err
	}

	err = tx.Commit()
	monitoring.ObserveQuery(operation, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ping checks if the database connection is alive
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.conn.Close()
}
