package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"veritas/internal/middleware"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"
)

// Migrator applies the embedded SQL migrations through goose.
type Migrator struct {
	provider *goose.Provider
}

// NewMigrator builds a migrator for an open connection. dialect is the gorm
// dialector name ("postgres" or "sqlite").
func NewMigrator(db *sql.DB, dialect string) (*Migrator, error) {
	gd := goose.DialectPostgres
	if dialect == "sqlite" {
		gd = goose.DialectSQLite3
	}
	provider, err := goose.NewProvider(gd, db, migrationFiles())
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Migrator{provider: provider}, nil
}

func migratorFor(db *gorm.DB) (*Migrator, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return NewMigrator(sqlDB, db.Dialector.Name())
}

// Up applies every pending migration.
func (m *Migrator) Up(ctx context.Context) error {
	results, err := m.provider.Up(ctx)
	for _, r := range results {
		middleware.Logger.Info("Migration applied",
			slog.Int64("version", r.Source.Version),
			slog.String("path", r.Source.Path),
			slog.Duration("duration", r.Duration),
		)
	}
	if err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) error {
	r, err := m.provider.Down(ctx)
	if err != nil {
		return fmt.Errorf("goose down: %w", err)
	}
	if r != nil {
		middleware.Logger.Info("Migration rolled back", slog.Int64("version", r.Source.Version), slog.String("path", r.Source.Path))
	}
	return nil
}

// Applied returns the versions recorded in the goose version table.
func (m *Migrator) Applied(ctx context.Context) ([]int64, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	var applied []int64
	for _, s := range statuses {
		if s.State == goose.StateApplied {
			applied = append(applied, s.Source.Version)
		}
	}
	return applied, nil
}

// Version returns the current schema version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	return m.provider.GetDBVersion(ctx)
}

// RunMigrations applies all pending migrations on db.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	m, err := migratorFor(db)
	if err != nil {
		return err
	}
	return m.Up(ctx)
}

