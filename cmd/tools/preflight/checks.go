package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"wpre/internal/config"
	"wpre/internal/db"
	"wpre/internal/external"
	"wpre/internal/model"
	"wpre/internal/types"
)

// ValidationResult holds the outcome of a single check.
type ValidationResult struct {
	Valid   bool
	Message string
}

// Check is a named preflight step.
type Check struct {
	Name string
	Run  func(ctx context.Context) ValidationResult
}

func pass(format string, args ...any) ValidationResult {
	return ValidationResult{Valid: true, Message: fmt.Sprintf(format, args...)}
}

func fail(format string, args ...any) ValidationResult {
	return ValidationResult{Valid: false, Message: fmt.Sprintf(format, args...)}
}

// ArtifactsCheck loads the model and scaler exactly as the server does.
func ArtifactsCheck(cfg config.ModelConfig) Check {
	return Check{Name: "artifacts", Run: func(context.Context) ValidationResult {
		a, err := model.LoadArtifacts(model.OSOpener, cfg.ModelPath, cfg.ScalerPath)
		if err != nil {
			return fail("%v", err)
		}
		return pass("model %dx%d, %s scaler", a.Network.InputWidth(), a.Network.OutputWidth(), a.Scaler.Kind())
	}}
}

// StoreCheck opens the configured parameter store, pings it and loads the
// current parameters.
func StoreCheck(cfg config.DatabaseConfig, logger *slog.Logger) Check {
	return Check{Name: "store", Run: func(ctx context.Context) ValidationResult {
		store, err := db.Open(ctx, cfg, logger)
		if err != nil {
			return fail("%v", err)
		}
		defer store.Close()

		if err := store.Ping(ctx); err != nil {
			return fail("%s store unreachable: %v", store.Driver, err)
		}
		params, err := store.Params.Load(ctx)
		if err != nil {
			return fail("%s store: %v", store.Driver, err)
		}
		return pass("%s store reachable, %d parameter keys", store.Driver, len(params))
	}}
}

// TemplatesCheck resolves the rain and temperature URL templates for the
// windows a request at now would use.
func TemplatesCheck(cfg config.SourceConfig, now time.Time) Check {
	return Check{Name: "source_templates", Run: func(context.Context) ValidationResult {
		window := types.TimeWindow{Start: now.Add(-time.Hour), End: now}

		stations := []string{""}
		if strings.Contains(cfg.RainURLTemplate, "{station}") {
			if len(cfg.Stations) == 0 {
				return fail("rain template uses {station} but SOURCE_STATIONS is empty")
			}
			stations = cfg.Stations
		}
		for _, st := range stations {
			if _, err := external.ResolveURL(cfg.RainURLTemplate, window, st); err != nil {
				return fail("rain: %s", types.Classify(err).Message)
			}
		}
		if _, err := external.ResolveURL(cfg.TempURLTemplate, window, ""); err != nil {
			return fail("temperature: %s", types.Classify(err).Message)
		}
		return pass("rain (%d fetches) and temperature templates resolve", len(stations))
	}}
}

// FetchCheck pulls the current windows from the live weather source.
func FetchCheck(cfg *config.Config, logger *slog.Logger, now time.Time) Check {
	return Check{Name: "source_fetch", Run: func(ctx context.Context) ValidationResult {
		source := external.NewWeatherSource(external.NewSourceClient(cfg.Source), cfg.Source, model.InputSize, logger, nil)

		rain, err := source.FetchRain(ctx, types.TimeWindow{Start: now.Add(-cfg.Forecast.RainHorizon), End: now})
		if err != nil {
			return fail("rain: %s", types.Classify(err).Message)
		}
		temp, err := source.FetchTemperature(ctx, types.TimeWindow{Start: now.Add(-cfg.Forecast.TempHistory), End: now})
		if err != nil {
			return fail("temperature: %s", types.Classify(err).Message)
		}
		return pass("%d rain samples, %d temperature points", len(rain.Rain), len(temp.Series))
	}}
}
