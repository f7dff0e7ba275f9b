package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"wpre/internal/types"
)

// SQLiteStore keeps parameters and the error log in a local SQLite file. It
// implements both types.ParameterStore and types.ErrorRecorder.
type SQLiteStore struct {
	db       *sql.DB
	defaults types.Parameters
	Path     string
}

// NewSQLiteStore opens (creating if needed) the database at path and applies
// the schema.
func NewSQLiteStore(path string, defaults types.Parameters) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// :memory: databases live on a single connection.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{createParametersTable, createErrorLogTable} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}

	return &SQLiteStore{db: db, defaults: cloneParams(defaults), Path: path}, nil
}

// Load returns the saved parameters or the defaults.
func (s *SQLiteStore) Load(ctx context.Context) (types.Parameters, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM wpre_parameters WHERE id = ?`, singletonID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return cloneParams(s.defaults), nil
	}
	if err != nil {
		return nil, storeError("failed to load parameters", err)
	}

	var params types.Parameters
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, storeError("stored parameters are not valid JSON", err)
	}
	return cloneParams(params), nil
}

// Save upserts the parameter row.
func (s *SQLiteStore) Save(ctx context.Context, params types.Parameters) error {
	raw, err := json.Marshal(cloneParams(params))
	if err != nil {
		return storeError("failed to encode parameters", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO wpre_parameters (id, doc, updated_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(id) DO UPDATE SET doc = excluded.doc, updated_at = CURRENT_TIMESTAMP`,
		singletonID, string(raw),
	)
	if err != nil {
		return storeError("failed to save parameters", err)
	}
	return nil
}

// Reset overwrites the row with the defaults.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	return s.Save(ctx, s.defaults)
}

// RecordError appends a message to the error log.
func (s *SQLiteStore) RecordError(ctx context.Context, message string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO wpre_error_log (message) VALUES (?)`, message,
	)
	if err != nil {
		return storeError("failed to record error", err)
	}
	return nil
}

// RecentErrors returns up to limit messages, newest first.
func (s *SQLiteStore) RecentErrors(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message FROM wpre_error_log ORDER BY rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, storeError("failed to list errors", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, storeError("failed to scan error row", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// Ping checks the database handle.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
