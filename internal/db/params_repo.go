package db

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"wpre/internal/types"
)

// ParamsRepository stores the parameter document as a single JSON row in
// wpre_parameters.
type ParamsRepository struct {
	db       DBTX
	defaults types.Parameters
}

// NewParamsRepository creates a ParamsRepository. defaults is returned by
// Load until something is saved and is restored by Reset.
func NewParamsRepository(db DBTX, defaults types.Parameters) *ParamsRepository {
	return &ParamsRepository{db: db, defaults: cloneParams(defaults)}
}

// Load returns the saved parameters, or a copy of the defaults when the row
// does not exist yet.
func (r *ParamsRepository) Load(ctx context.Context) (types.Parameters, error) {
	var raw []byte
	err := r.db.QueryRow(ctx,
		`SELECT doc FROM wpre_parameters WHERE id = $1`,
		singletonID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return cloneParams(r.defaults), nil
	}
	if err != nil {
		return nil, storeError("failed to load parameters", err)
	}

	var params types.Parameters
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, storeError("stored parameters are not valid JSON", err)
	}
	return cloneParams(params), nil
}

// Save upserts the parameter row.
func (r *ParamsRepository) Save(ctx context.Context, params types.Parameters) error {
	raw, err := json.Marshal(cloneParams(params))
	if err != nil {
		return storeError("failed to encode parameters", err)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO wpre_parameters (id, doc, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()`,
		singletonID,
		string(raw),
	)
	if err != nil {
		return storeError("failed to save parameters", err)
	}
	return nil
}

// Reset overwrites the row with the defaults.
func (r *ParamsRepository) Reset(ctx context.Context) error {
	return r.Save(ctx, r.defaults)
}
