package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"

	"taskservice/internal/db/migrations"
)

// gooseUpContext and gooseResetContext are seams for testing.
var (
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return goose.UpContext(ctx, db, dir, opts...)
	}
	gooseResetContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return goose.ResetContext(ctx, db, dir, opts...)
	}
)

// Migrate applies the embedded schema migrations. With reset, every applied
// migration is rolled back first, which drops all tables.
func Migrate(ctx context.Context, gormDB *gorm.DB, reset bool) error {
	sqlDB, err := gormDB.DB()
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("mysql"); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if reset {
		if err := gooseResetContext(ctx, sqlDB, "."); err != nil {
			return fmt.Errorf("migrate reset: %w", err)
		}
	}
	if err := gooseUpContext(ctx, sqlDB, "."); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}
