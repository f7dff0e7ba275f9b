// Package db provides the persistence layer for operational parameter state
// and the error log. The PostgreSQL repositories accept a DBTX interface that
// is satisfied by both *pgxpool.Pool and pgx.Tx; SQLite and in-memory stores
// implement the same contracts for single-node and local deployments.
package db

import (
	"context"
	"fmt"
	"maps"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"wpre/internal/config"
	"wpre/internal/types"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
// Repositories accept this so the same code works inside or outside a
// transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Schema statements shared by the Postgres and SQLite stores. Both dialects
// accept them unchanged.
const (
	createParametersTable = `CREATE TABLE IF NOT EXISTS wpre_parameters (
		id INTEGER PRIMARY KEY,
		doc TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`
	createErrorLogTable = `CREATE TABLE IF NOT EXISTS wpre_error_log (
		message TEXT NOT NULL,
		recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`
)

// singletonID is the only row of wpre_parameters.
const singletonID = 1

// EnsureSchema creates the tables used by the Postgres repositories.
func EnsureSchema(ctx context.Context, db DBTX) error {
	for _, stmt := range []string{createParametersTable, createErrorLogTable} {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// NewPool opens a pgx pool sized from cfg and verifies connectivity.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.AcquireTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database not available: %w", err)
	}
	return pool, nil
}

// cloneParams returns a shallow copy so callers never share the defaults map.
func cloneParams(p types.Parameters) types.Parameters {
	if p == nil {
		return types.Parameters{}
	}
	return maps.Clone(p)
}

func storeError(message string, err error) error {
	return types.NewAppError(types.ErrCodeUnexpected, message, err)
}
