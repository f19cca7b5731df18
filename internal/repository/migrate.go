package repository

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // registra pgx5://
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// migrationsTable não pode colidir com a schema_migrations que o banco hospedado já pode ter.
const migrationsTable = "bridge_schema_migrations"

//go:embed migrations
var migrationsFS embed.FS

// MigrateSQLite aplica em db as migrations SQLite embutidas.
// Quem chama continua dono de db.
func MigrateSQLite(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations/sqlite")
	if err != nil {
		return fmt.Errorf("load sqlite migrations: %w", err)
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return fmt.Errorf("sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return err
	}
	// m.Close fecharia db também, então só liberamos a source.
	defer src.Close()

	return runUp(m)
}

// MigratePostgres aplica as migrations Postgres embutidas com uma conexão própria.
func MigratePostgres(dsn string) error {
	url, err := pgx5URL(dsn)
	if err != nil {
		return err
	}
	src, err := iofs.New(migrationsFS, "migrations/postgres")
	if err != nil {
		return fmt.Errorf("load postgres migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	defer m.Close()

	return runUp(m)
}

func runUp(m *migrate.Migrate) error {
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Debug("Schema já está atualizado")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, _, _ := m.Version()
	slog.Info("📦 Migrations aplicadas", "version", version)
	return nil
}

// pgx5URL reescreve uma URL postgres:// para o esquema que o driver pgx/v5 do migrate registra.
func pgx5URL(dsn string) (string, error) {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, scheme) {
			url := "pgx5://" + strings.TrimPrefix(dsn, scheme)
			sep := "?"
			if strings.Contains(url, "?") {
				sep = "&"
			}
			return url + sep + "x-migrations-table=" + migrationsTable, nil
		}
	}
	return "", fmt.Errorf("postgres dsn must be a postgres:// URL to run migrations")
}
