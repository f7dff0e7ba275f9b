package forecasts

import (
	"context"
	"log/slog"

	"wpre/internal/types"
)

// DefaultWindowSeconds is the admission tolerance around "now".
const DefaultWindowSeconds = 3600

// Admission is the outcome of a window check.
type Admission int

const (
	Admit Admission = iota
	RejectFuture
	RejectPast
)

func (a Admission) String() string {
	switch a {
	case Admit:
		return "admit"
	case RejectFuture:
		return "reject_future"
	case RejectPast:
		return "reject_past"
	default:
		return "unknown"
	}
}

// WindowValidator admits requests whose ts_start lies within the window
// around the current time. Both bounds are inclusive.
type WindowValidator struct {
	clock    types.Clock
	window   int64
	recorder types.ErrorRecorder
	logger   *slog.Logger
}

// NewWindowValidator creates a validator. A non-positive window falls back
// to DefaultWindowSeconds; recorder may be nil.
func NewWindowValidator(clock types.Clock, windowSeconds int64, recorder types.ErrorRecorder, logger *slog.Logger) *WindowValidator {
	if clock == nil {
		clock = types.RealClock{}
	}
	if windowSeconds <= 0 {
		windowSeconds = DefaultWindowSeconds
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WindowValidator{
		clock:    clock,
		window:   windowSeconds,
		recorder: recorder,
		logger:   logger,
	}
}

// Check classifies tsStart against the current time. It has no side effects.
func (v *WindowValidator) Check(tsStart int64) Admission {
	now := v.clock.Now().Unix()
	switch {
	case tsStart > now+v.window:
		return RejectFuture
	case tsStart < now-v.window:
		return RejectPast
	default:
		return Admit
	}
}

// Admit runs Check and, on rejection, records the message to the error log
// before returning a validation AppError.
func (v *WindowValidator) Admit(ctx context.Context, tsStart int64) error {
	var appErr *types.AppError
	switch v.Check(tsStart) {
	case RejectFuture:
		appErr = types.NewAppError(types.ErrCodeValidationFuture, types.MsgFutureTime, nil)
	case RejectPast:
		appErr = types.NewAppError(types.ErrCodeValidationPast, types.MsgPastUnsupported, nil)
	default:
		return nil
	}

	v.logger.InfoContext(ctx, "forecast request rejected",
		"ts_start", tsStart,
		"code", string(appErr.Code),
	)
	recordError(ctx, v.recorder, v.logger, appErr.Message)
	return appErr
}

func recordError(ctx context.Context, recorder types.ErrorRecorder, logger *slog.Logger, msg string) {
	if recorder == nil {
		return
	}
	if err := recorder.RecordError(ctx, msg); err != nil {
		logger.ErrorContext(ctx, "failed to record error", "message", msg, "error", err)
	}
}
