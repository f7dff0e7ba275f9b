// Package forecasts implements the forecast-request pipeline: admission
// against the time window, acquisition of observations from the weather
// source, and the rain and temperature engines.
package forecasts

import (
	"context"
	"log/slog"
	"time"

	"wpre/internal/types"
)

// Default observation windows requested from the source.
const (
	DefaultRainHorizon = time.Hour
	DefaultTempHistory = 36 * time.Hour
)

// Source is the weather data adapter consumed by the pipeline.
type Source interface {
	FetchRain(ctx context.Context, window types.TimeWindow) (*types.Observation, error)
	FetchTemperature(ctx context.Context, window types.TimeWindow) (*types.Observation, error)
}

// Service runs Validator -> Source -> Engine for each request kind.
type Service struct {
	validator   *WindowValidator
	source      Source
	rain        RainEngine
	temperature *TemperatureEngine
	recorder    types.ErrorRecorder
	rainHorizon time.Duration
	tempHistory time.Duration
	logger      *slog.Logger
}

// ServiceOptions holds the optional collaborators of a Service.
type ServiceOptions struct {
	Recorder    types.ErrorRecorder
	RainHorizon time.Duration
	TempHistory time.Duration
	Logger      *slog.Logger
}

// NewService wires the pipeline.
func NewService(validator *WindowValidator, source Source, temperature *TemperatureEngine, opts ServiceOptions) *Service {
	if opts.RainHorizon <= 0 {
		opts.RainHorizon = DefaultRainHorizon
	}
	if opts.TempHistory <= 0 {
		opts.TempHistory = DefaultTempHistory
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		validator:   validator,
		source:      source,
		temperature: temperature,
		recorder:    opts.Recorder,
		rainHorizon: opts.RainHorizon,
		tempHistory: opts.TempHistory,
		logger:      opts.Logger,
	}
}

// Rain returns the rain prediction for tsStart. Validation rejections return
// before any fetch. Source failures return an ErrCodeExternalData error and
// the engine is not run; engine failures return the error result together
// with an ErrCodePrediction error.
func (s *Service) Rain(ctx context.Context, tsStart int64) (*types.PredictionResult, error) {
	if err := s.validator.Admit(ctx, tsStart); err != nil {
		return nil, err
	}

	start := time.Unix(tsStart, 0).UTC()
	window := types.TimeWindow{Start: start, End: start.Add(s.rainHorizon)}

	obs, err := s.source.FetchRain(ctx, window)
	if err != nil {
		return nil, s.fail(ctx, types.KindRain, err)
	}

	result := s.rain.Predict(tsStart, obs)
	if !result.OK() {
		return result, s.fail(ctx, types.KindRain, types.NewAppError(types.ErrCodePrediction, result.Message, nil))
	}

	s.logger.InfoContext(ctx, "rain prediction computed",
		"ts_start", tsStart,
		"probability", result.Probability,
		"accumulated", result.Accumulated,
		"samples", len(obs.Rain),
	)
	return result, nil
}

// Temperature returns the 24-step temperature forecast for tsStart, computed
// from the history that ends at tsStart.
func (s *Service) Temperature(ctx context.Context, tsStart int64) (*types.PredictionResult, error) {
	if err := s.validator.Admit(ctx, tsStart); err != nil {
		return nil, err
	}

	end := time.Unix(tsStart, 0).UTC()
	window := types.TimeWindow{Start: end.Add(-s.tempHistory), End: end}

	obs, err := s.source.FetchTemperature(ctx, window)
	if err != nil {
		return nil, s.fail(ctx, types.KindTemperature, err)
	}

	result := s.temperature.Predict(tsStart, obs)
	if !result.OK() {
		return result, s.fail(ctx, types.KindTemperature, types.NewAppError(types.ErrCodePrediction, result.Message, nil))
	}

	s.logger.InfoContext(ctx, "temperature forecast computed",
		"ts_start", tsStart,
		"steps", len(result.Values),
	)
	return result, nil
}

// fail records a non-validation pipeline error and passes it through.
func (s *Service) fail(ctx context.Context, kind types.ForecastKind, err error) error {
	c := types.Classify(err)
	s.logger.WarnContext(ctx, "forecast pipeline failed",
		"kind", string(kind),
		"code", string(c.Code),
		"error", c.Message,
	)
	recordError(ctx, s.recorder, s.logger, c.Message)
	return err
}
