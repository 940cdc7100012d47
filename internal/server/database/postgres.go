package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrations contains all database migrations in order.
// Each migration has a version key and SQL to execute.
var migrations = []struct {
	Version string
	SQL     string
}{
	{
		Version: "000001_create_users",
		SQL: `
			CREATE TABLE IF NOT EXISTS users (
				id            UUID         PRIMARY KEY,
				email         VARCHAR(255) NOT NULL UNIQUE,
				password_hash VARCHAR(255) NOT NULL
			);
		`,
	},
	{
		Version: "000002_create_storages",
		SQL: `
			CREATE TABLE IF NOT EXISTS storages (
				id      UUID         PRIMARY KEY,
				name    VARCHAR(255) NOT NULL,
				chat_id BIGINT       NOT NULL UNIQUE
			);
		`,
	},
	{
		Version: "000003_create_storage_workers",
		SQL: `
			CREATE TABLE IF NOT EXISTS storage_workers (
				id         UUID         PRIMARY KEY,
				name       VARCHAR(255) NOT NULL,
				token      VARCHAR(255) NOT NULL UNIQUE,
				user_id    UUID         NOT NULL REFERENCES users
				                        ON DELETE CASCADE
				                        ON UPDATE CASCADE,
				storage_id UUID         REFERENCES storages
				                        ON DELETE CASCADE
				                        ON UPDATE CASCADE
			);
		`,
	},
	{
		Version: "000004_create_access",
		SQL: `
			DO
			$$
			BEGIN
			IF NOT EXISTS (
				SELECT *
				FROM pg_type typ
				INNER JOIN pg_namespace nsp ON nsp.oid = typ.typnamespace
				WHERE nsp.nspname = current_schema() AND typ.typname = 'access_type'
			) THEN
				CREATE TYPE access_type AS ENUM ('r', 'w', 'a');
			END IF;
			END;
			$$;

			CREATE TABLE IF NOT EXISTS access (
				id          UUID        PRIMARY KEY,
				user_id     UUID        NOT NULL REFERENCES users
				                        ON DELETE CASCADE
				                        ON UPDATE CASCADE,
				storage_id  UUID        NOT NULL REFERENCES storages
				                        ON DELETE CASCADE
				                        ON UPDATE CASCADE,
				access_type access_type NOT NULL,

				UNIQUE (user_id, storage_id)
			);
		`,
	},
	{
		Version: "000005_create_files",
		SQL: `
			CREATE TABLE IF NOT EXISTS files (
				id          UUID    PRIMARY KEY,
				path        VARCHAR NOT NULL,
				size        BIGINT  NOT NULL,
				storage_id  UUID    NOT NULL REFERENCES storages
				                    ON DELETE CASCADE
				                    ON UPDATE CASCADE,
				is_uploaded BOOL    NOT NULL,

				UNIQUE (path, storage_id)
			);

			CREATE TABLE IF NOT EXISTS file_chunks (
				id               UUID         PRIMARY KEY,
				file_id          UUID         NOT NULL REFERENCES files
				                              ON DELETE CASCADE
				                              ON UPDATE CASCADE,
				telegram_file_id VARCHAR(255) NOT NULL,
				position         SMALLINT     NOT NULL
			);
		`,
	},
	{
		Version: "000006_create_storage_worker_usages",
		SQL: `
			CREATE TABLE IF NOT EXISTS storage_worker_usages (
				id                UUID        PRIMARY KEY,
				storage_worker_id UUID        NOT NULL REFERENCES storage_workers
				                              ON DELETE CASCADE
				                              ON UPDATE CASCADE,
				dt                TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_storage_worker_usages_dt
				ON storage_worker_usages(dt);
		`,
	},
}

// DB wraps a pgxpool connection pool and provides health checks and migrations.
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("connected to database")
	return &DB{Pool: pool}, nil
}

// RunMigrations applies all pending database migrations in order.
func (db *DB) RunMigrations(ctx context.Context) error {
	// Create migrations tracking table
	_, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, m := range migrations {
		// Check if already applied
		var exists bool
		err := db.Pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
			m.Version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration status for %s: %w", m.Version, err)
		}
		if exists {
			continue
		}

		// Execute migration in a transaction
		tx, err := db.Pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %s: %w", m.Version, err)
		}

		if _, err := tx.Exec(ctx, m.SQL); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("failed to execute migration %s: %w", m.Version, err)
		}

		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.Version); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("failed to record migration %s: %w", m.Version, err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", m.Version, err)
		}

		slog.Info("applied migration", "version", m.Version)
	}

	return nil
}

// HealthCheck verifies the database connection is alive.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}
