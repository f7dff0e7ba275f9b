package types

import (
	"context"
	"time"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// FixedClock is a Clock frozen at a single instant.
type FixedClock struct {
	T time.Time
}

// Now returns the frozen instant.
func (c FixedClock) Now() time.Time { return c.T }

// ErrorRecorder persists operational error messages (rejected requests,
// failed predictions) for later inspection by operators.
type ErrorRecorder interface {
	RecordError(ctx context.Context, message string) error
}

// ParameterStore owns the operational parameter state exposed by the status
// and reset endpoints.
type ParameterStore interface {
	// Load returns the current parameters, or the defaults if nothing was saved.
	Load(ctx context.Context) (Parameters, error)
	// Save replaces the stored parameters.
	Save(ctx context.Context, params Parameters) error
	// Reset restores the default parameters.
	Reset(ctx context.Context) error
}

// Parameters is the free-form operational configuration document.
type Parameters map[string]any
