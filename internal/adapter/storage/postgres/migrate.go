package postgres

import (
	"database/sql"
	"fmt"

	"saturn/config"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

// RunMigrations applies every pending migration under cfg.MigrationsPath
// using golang-migrate. It opens its own database/sql connection since
// golang-migrate doesn't speak pgx's native pool interface.
func RunMigrations(cfg config.DatabaseConfig, log zerolog.Logger) error {
	sqlDB, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return fmt.Errorf("opening database for migrations: %w", err)
	}
	defer sqlDB.Close()

	driver, err := migratepg.WithInstance(sqlDB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("creating migrate driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://"+cfg.MigrationsPath,
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}

	log.Info().Str("path", cfg.MigrationsPath).Msg("Running database migrations")
	if err := m.Up(); err != nil {
		if err == migrate.ErrNoChange {
			log.Info().Msg("No new migrations to apply")
			return nil
		}
		return fmt.Errorf("applying migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("reading migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is in dirty state at version %d", version)
	}

	log.Info().Uint("version", version).Msg("Migrations completed")
	return nil
}
