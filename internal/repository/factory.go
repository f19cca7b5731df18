package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/willjrcristo/premium-bridge/internal/config"
)

// New cria o Repository do driver configurado, rodando as migrations antes quando habilitadas.
func New(ctx context.Context, cfg config.StorageConfig) (Repository, error) {
	switch cfg.Driver {
	case "sqlite", "":
		db, err := OpenSQLite(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if cfg.Migrate {
			if err := MigrateSQLite(db); err != nil {
				db.Close()
				return nil, err
			}
		}
		return NewSQLiteRepository(db), nil

	case "postgres":
		if cfg.Migrate {
			if err := MigratePostgres(cfg.DSN); err != nil {
				return nil, err
			}
		}
		return NewPostgresRepository(ctx, cfg.DSN)

	case "memory":
		slog.Warn("⚠️ Usando ledger em memória, os dados somem ao encerrar")
		return NewMemoryRepository(), nil

	default:
		return nil, fmt.Errorf("unsupported storage driver: %q", cfg.Driver)
	}
}
