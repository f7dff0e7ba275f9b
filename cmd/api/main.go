// Package main is the entry point for the WPRE forecast relay.
//
// It loads configuration, loads the temperature model once, opens the
// parameter store, starts the notification dispatcher and builds the HTTP
// chassis.
//
// With RUN_MODE=http it listens on the configured port. With RUN_MODE=lambda,
// or when the Lambda runtime is detected, the same router is served behind
// the API Gateway proxy integration.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"wpre/internal/api/handlers"
	"wpre/internal/config"
	"wpre/internal/core"
	"wpre/internal/db"
	"wpre/internal/external"
	"wpre/internal/forecasts"
	"wpre/internal/model"
	"wpre/internal/notifications"
	"wpre/internal/telemetry"
	"wpre/internal/types"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("wpre starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"run_mode", cfg.RunMode,
		"port", cfg.Server.Port,
	)

	srv, err := buildServer(context.Background(), cfg, logger)
	if err != nil {
		return err
	}

	if cfg.RunMode == "lambda" || isLambdaEnvironment() {
		runLambda(srv, logger)
		return nil
	}
	return runHTTPServer(srv, cfg, logger)
}

// buildServer wires every component behind the router. Artifact and store
// failures abort start-up.
func buildServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*core.Server, error) {
	artifacts, err := model.LoadArtifacts(model.OSOpener, cfg.Model.ModelPath, cfg.Model.ScalerPath)
	if err != nil {
		return nil, fmt.Errorf("loading temperature model: %w", err)
	}
	logger.Info("temperature model loaded",
		"model_path", cfg.Model.ModelPath,
		"scaler_path", cfg.Model.ScalerPath,
	)

	store, err := db.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("opening parameter store: %w", err)
	}
	logger.Info("parameter store ready", "driver", store.Driver)

	var (
		sourceFailures  external.FailureRecorder
		deliveryMetrics notifications.DeliveryMetrics
		apiMetrics      core.MetricsCollector
	)
	if cfg.Observability.MetricsEnabled {
		cw, err := telemetry.NewCloudWatchClient(ctx, cfg.Observability)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("creating cloudwatch client: %w", err)
		}
		metrics := telemetry.NewCloudWatchMetrics(cw, cfg.Observability.MetricNamespace, logger)
		sourceFailures = metrics
		deliveryMetrics = metrics
		apiMetrics = metrics
	}

	sourceClient := external.NewSourceClient(cfg.Source)
	source := external.NewWeatherSource(sourceClient, cfg.Source, model.InputSize, logger, sourceFailures)

	validator := forecasts.NewWindowValidator(types.RealClock{}, cfg.Forecast.WindowSeconds, store.Errors, logger)
	svc := forecasts.NewService(validator, source, forecasts.NewTemperatureEngine(artifacts), forecasts.ServiceOptions{
		Recorder:    store.Errors,
		RainHorizon: cfg.Forecast.RainHorizon,
		TempHistory: cfg.Forecast.TempHistory,
		Logger:      logger,
	})

	sender, err := notifications.NewDSSSender(cfg.Dispatch, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating dss sender: %w", err)
	}
	dispatcher := notifications.NewDispatcher(
		sender,
		notifications.DispatcherConfig{Workers: cfg.Dispatch.Workers, QueueSize: cfg.Dispatch.QueueSize},
		logger,
		deliveryMetrics,
	)
	dispatcher.Start()

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		_ = dispatcher.Shutdown(ctx)
		store.Close()
		return nil, fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = apiMetrics

	// Port is validated as numeric by config.
	port, _ := strconv.Atoi(cfg.Server.Port)

	forecastHandler := handlers.NewForecastHandler(svc, logger)
	algHandler := handlers.NewAlgHandler(svc, dispatcher, srv.Validator, types.RealClock{}, port, logger)
	paramsHandler := handlers.NewParamsHandler(store.Params, logger)
	srv.RouteRegistrars = append(srv.RouteRegistrars,
		forecastHandler.RegisterRoutes,
		algHandler.RegisterRoutes,
		paramsHandler.RegisterRoutes,
	)

	srv.HealthProbes = append(srv.HealthProbes,
		core.ProbeFunc{ProbeName: "store", Fn: store.Ping},
		core.ProbeFunc{ProbeName: "dispatcher", Fn: func(context.Context) error {
			if depth := dispatcher.QueueDepth(); depth >= cfg.Dispatch.QueueSize {
				return fmt.Errorf("notification queue full (%d)", depth)
			}
			return nil
		}},
		core.ProbeFunc{ProbeName: "weather_source", Fn: func(context.Context) error {
			if state := sourceClient.BreakerState(); state == "open" {
				return errors.New("circuit breaker open")
			}
			return nil
		}},
	)

	srv.Closers = append(srv.Closers,
		dispatcher.Shutdown,
		func(context.Context) error {
			store.Close()
			return nil
		},
	)

	srv.MountRoutes()
	return srv, nil
}

// runLambda serves the router behind API Gateway. Queued notifications are
// drained when the runtime signals SIGTERM.
func runLambda(srv *core.Server, logger *slog.Logger) {
	proxy := core.NewLambdaProxy(srv.Handler(), logger)
	logger.Info("starting in lambda mode")
	lambda.StartWithOptions(proxy.Handle, lambda.WithEnableSIGTERM(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("server resource shutdown error", "error", err)
		}
	}))
}

// newLogger creates a structured JSON logger at the specified level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// isLambdaEnvironment detects the Lambda runtime from its injected variables.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}

// runHTTPServer starts the HTTP listener and blocks until a shutdown signal
// is received or the server fails.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			// Release the store and drain the dispatcher before exiting.
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(ctx)
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}
