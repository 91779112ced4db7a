package store

import (
	"database/sql"
	"fmt"
	"path"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	assets "github.com/haatos/fisherman"
	"github.com/haatos/fisherman/internal"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// RunMigrations applies the embedded migrations of dialect to db.
func RunMigrations(db *sql.DB, dialect string) error {
	goose.SetBaseFS(assets.MigrationsFS)
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	if err := goose.Up(db, path.Join(internal.MigrationsDir, dialect)); err != nil {
		return fmt.Errorf("err running %s migrations: %w", dialect, err)
	}
	return nil
}

func RunPostgresMigrations(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	return RunMigrations(db, DialectPostgres)
}
