package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"wpre/internal/config"
	"wpre/internal/model"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeArtifact(t *testing.T, dir, name string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestArtifactsCheck(t *testing.T) {
	dir := t.TempDir()
	weights := make([][]float64, model.Horizon)
	for i := range weights {
		weights[i] = make([]float64, model.InputSize)
	}
	modelPath := writeArtifact(t, dir, "model.json", map[string]any{
		"layers": []model.Layer{{Weights: weights, Bias: make([]float64, model.Horizon)}},
	})
	scalerPath := writeArtifact(t, dir, "scaler.json", model.ScalerParams{Kind: model.ScalerStandard, Mean: 15, Scale: 5})

	res := ArtifactsCheck(config.ModelConfig{ModelPath: modelPath, ScalerPath: scalerPath}).Run(context.Background())
	if !res.Valid {
		t.Fatalf("expected pass, got %q", res.Message)
	}
	if !strings.Contains(res.Message, "36x24") {
		t.Errorf("expected shape in message, got %q", res.Message)
	}

	res = ArtifactsCheck(config.ModelConfig{ModelPath: filepath.Join(dir, "missing.json"), ScalerPath: scalerPath}).Run(context.Background())
	if res.Valid {
		t.Error("expected a missing model to fail")
	}
}

func TestStoreCheck_Memory(t *testing.T) {
	res := StoreCheck(config.DatabaseConfig{DefaultParams: `{"mode":"auto"}`}, quietLogger()).Run(context.Background())
	if !res.Valid {
		t.Fatalf("expected pass, got %q", res.Message)
	}
	if !strings.Contains(res.Message, "memory store reachable, 1 parameter keys") {
		t.Errorf("unexpected message %q", res.Message)
	}
}

func TestTemplatesCheck(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tests := []struct {
		name  string
		cfg   config.SourceConfig
		valid bool
	}{
		{
			name: "single fetch",
			cfg: config.SourceConfig{
				RainURLTemplate: "https://wx.example.com/rain?from={start}&to={end}",
				TempURLTemplate: "https://wx.example.com/temp?from={start}&to={end}",
			},
			valid: true,
		},
		{
			name: "per station",
			cfg: config.SourceConfig{
				RainURLTemplate: "https://wx.example.com/rain/{station}",
				TempURLTemplate: "https://wx.example.com/temp",
				Stations:        []string{"0016A", "0009X"},
			},
			valid: true,
		},
		{
			name: "station placeholder without stations",
			cfg: config.SourceConfig{
				RainURLTemplate: "https://wx.example.com/rain/{station}",
				TempURLTemplate: "https://wx.example.com/temp",
			},
		},
		{
			name: "missing temperature template",
			cfg: config.SourceConfig{
				RainURLTemplate: "https://wx.example.com/rain",
			},
		},
		{
			name: "relative URL",
			cfg: config.SourceConfig{
				RainURLTemplate: "/rain",
				TempURLTemplate: "https://wx.example.com/temp",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := TemplatesCheck(tt.cfg, now).Run(context.Background())
			if res.Valid != tt.valid {
				t.Errorf("expected valid=%v, got %v (%q)", tt.valid, res.Valid, res.Message)
			}
		})
	}
}

func TestRunChecks(t *testing.T) {
	checks := []Check{
		{Name: "first", Run: func(context.Context) ValidationResult { return pass("fine") }},
		{Name: "second", Run: func(context.Context) ValidationResult { return fail("broken: %d", 2) }},
	}

	var out bytes.Buffer
	if runChecks(context.Background(), &out, checks) {
		t.Error("expected overall failure")
	}
	want := "[PASS] first: fine\n[FAIL] second: broken: 2\n"
	if out.String() != want {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}
