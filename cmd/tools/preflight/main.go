// Package main implements the preflight CLI tool. It checks a deployment's
// configuration before the relay is started: the temperature artifacts load
// with the expected shape, the parameter store is reachable, and the weather
// source URL templates resolve.
//
// Usage:
//
//	go run ./cmd/tools/preflight
//	go run ./cmd/tools/preflight --fetch
//
// Configuration is read the same way as the server (environment, then .env).
// With --fetch the tool also pulls the current rain and temperature windows
// from the weather source. The exit status is 1 when any check fails.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wpre/internal/config"
)

func main() {
	fetchFlag := flag.Bool("fetch", false, "Also fetch the current observation windows from the weather source")
	timeoutFlag := flag.Duration("timeout", 30*time.Second, "Overall deadline for all checks")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "WPRE Preflight Tool\n\n")
		fmt.Fprintf(os.Stderr, "Checks model artifacts, the parameter store and the weather source\n")
		fmt.Fprintf(os.Stderr, "configuration before the relay is started.\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  preflight [--fetch] [--timeout=30s]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeoutFlag)
	defer cancel()

	checks := []Check{
		ArtifactsCheck(cfg.Model),
		StoreCheck(cfg.Database, logger),
		TemplatesCheck(cfg.Source, time.Now()),
	}
	if *fetchFlag {
		checks = append(checks, FetchCheck(cfg, logger, time.Now()))
	}

	if !runChecks(ctx, os.Stdout, checks) {
		os.Exit(1)
	}
}

// runChecks runs every check in order, prints one line per check and reports
// whether all of them passed.
func runChecks(ctx context.Context, out io.Writer, checks []Check) bool {
	ok := true
	for _, c := range checks {
		res := c.Run(ctx)
		mark := "PASS"
		if !res.Valid {
			mark = "FAIL"
			ok = false
		}
		fmt.Fprintf(out, "[%s] %s: %s\n", mark, c.Name, res.Message)
	}
	return ok
}
