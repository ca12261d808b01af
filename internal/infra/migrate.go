package infra

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

// Migrator applies schema migrations with goose over pgx's database/sql driver.
type Migrator struct {
	dsn    string
	dir    string
	logger zerolog.Logger
}

func NewMigrator(dsn, dir string, logger zerolog.Logger) (*Migrator, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty database dsn")
	}
	if dir == "" {
		dir = "migrations"
	}
	return &Migrator{dsn: dsn, dir: dir, logger: logger}, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	return m.withDB(func(db *sql.DB) error {
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()

		m.logger.Info().Str("dir", m.dir).Msg("applying migrations")
		if err := goose.UpContext(runCtx, db, m.dir); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		m.logger.Info().Msg("migrations applied")
		return nil
	})
}

// Down rolls back the latest migration.
func (m *Migrator) Down(ctx context.Context) error {
	return m.withDB(func(db *sql.DB) error {
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()

		m.logger.Info().Msg("rolling back latest migration")
		if err := goose.DownContext(runCtx, db, m.dir); err != nil {
			return fmt.Errorf("rollback latest migration: %w", err)
		}
		return nil
	})
}

// Status prints applied and pending migrations.
func (m *Migrator) Status(ctx context.Context) error {
	return m.withDB(func(db *sql.DB) error {
		if err := goose.StatusContext(ctx, db, m.dir); err != nil {
			return fmt.Errorf("migration status: %w", err)
		}
		return nil
	})
}

func (m *Migrator) withDB(fn func(*sql.DB) error) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("configure goose: %w", err)
	}

	db, err := sql.Open("pgx", m.dsn)
	if err != nil {
		return fmt.Errorf("open sql connection: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping sql connection: %w", err)
	}

	return fn(db)
}
