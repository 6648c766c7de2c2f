package repository

import (
	"context"
	"database/sql"
	"fmt"

	"taskservice/internal/config"
	"taskservice/internal/db"
	"taskservice/internal/logging"
)

// Stores bundles the repositories for the configured backend.
type Stores struct {
	Users UserRepository
	Tasks TaskRepository
	// SQL is the underlying pool, nil for in-memory storage.
	SQL *sql.DB
}

// Close releases the database pool, if any.
func (s *Stores) Close() error {
	if s == nil || s.SQL == nil {
		return nil
	}
	return s.SQL.Close()
}

// Open builds the stores selected by cfg.Storage. MySQL storage is migrated
// before use.
func Open(ctx context.Context, cfg *config.Config, log logging.Logger) (*Stores, error) {
	if cfg.Storage == config.StorageMemory {
		log.Warn(ctx, "using in-memory storage, data is lost on restart")
		return &Stores{Users: NewMemoryUserRepository(), Tasks: NewMemoryTaskRepository()}, nil
	}

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		return nil, fmt.Errorf("database init: %w", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("database init: %w", err)
	}

	if cfg.ResetDB {
		log.Warn(ctx, "reset_db set, dropping all tables")
	}
	if err := db.Migrate(ctx, gormDB, cfg.ResetDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return &Stores{
		Users: NewUserRepository(gormDB),
		Tasks: NewTaskRepository(gormDB),
		SQL:   sqlDB,
	}, nil
}
