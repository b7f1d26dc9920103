// Package postgres opens a conversation store backed by PostgreSQL.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/koscakluka/ema-voice/core/store"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Open connects to the database at databaseURL and migrates it.
func Open(ctx context.Context, databaseURL string, opts ...store.Option) (*store.Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)

	migrationsFS, err := fs.Sub(migrations, "migrations")
	if err != nil {
		db.Close()
		pool.Close()
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	if err := store.Migrate(ctx, db, goose.DialectPostgres, migrationsFS); err != nil {
		db.Close()
		pool.Close()
		return nil, err
	}

	return store.New(db, append([]store.Option{
		store.WithNumberedPlaceholders(),
		store.WithOnClose(pool.Close),
	}, opts...)...), nil
}
