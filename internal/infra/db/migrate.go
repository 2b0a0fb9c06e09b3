package db

import (
	"database/sql"
	"embed"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies every pending migration.
func Migrate(dsn string, log *slog.Logger) error {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	before, _ := goose.GetDBVersion(sqlDB)
	if err := goose.Up(sqlDB, "migrations"); err != nil {
		return err
	}
	after, _ := goose.GetDBVersion(sqlDB)
	log.Info("migrations applied", "from", before, "to", after)
	return nil
}
