package db

import (
	"context"
	"fmt"
	"log/slog"

	"wpre/internal/config"
	"wpre/internal/types"
)

// Store bundles the parameter store and the error log selected by
// DATABASE_URL.
type Store struct {
	Params types.ParameterStore
	Errors types.ErrorRecorder
	Driver string

	ping  func(ctx context.Context) error
	close func()
}

// Open selects and initializes the backend for cfg. The returned error log is
// always mirrored to logger.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Store, error) {
	defaults, err := cfg.Defaults()
	if err != nil {
		return nil, fmt.Errorf("invalid default parameters: %w", err)
	}

	driver := cfg.Driver()
	switch driver {
	case config.DriverMemory:
		mem := NewMemoryStore(defaults)
		return &Store{
			Params: mem,
			Errors: NewErrorLog(mem, logger),
			Driver: driver,
		}, nil

	case config.DriverSQLite:
		lite, err := NewSQLiteStore(cfg.SQLitePath(), defaults)
		if err != nil {
			return nil, err
		}
		return &Store{
			Params: lite,
			Errors: NewErrorLog(lite, logger),
			Driver: driver,
			ping:   lite.Ping,
			close:  func() { _ = lite.Close() },
		}, nil

	case config.DriverPostgres:
		pool, err := NewPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &Store{
			Params: NewParamsRepository(pool, defaults),
			Errors: NewErrorLog(NewErrorLogRepository(pool), logger),
			Driver: driver,
			ping:   pool.Ping,
			close:  pool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported DATABASE_URL scheme")
	}
}

// Ping probes the backend. The memory store is always reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Close releases the backend.
func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}
