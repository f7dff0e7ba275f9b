package external

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"wpre/internal/config"
	"wpre/internal/types"
)

var testWindow = types.TimeWindow{
	Start: time.Unix(1700000000, 0).UTC(),
	End:   time.Unix(1700003600, 0).UTC(),
}

type countingFailures struct {
	mu    sync.Mutex
	kinds []types.ForecastKind
}

func (c *countingFailures) RecordSourceFailure(_ context.Context, kind types.ForecastKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds = append(c.kinds, kind)
}

func newTestSource(cfg config.SourceConfig, failures FailureRecorder) *WeatherSource {
	if cfg.MaxConcurrency == 0 {
		cfg.MaxConcurrency = 4
	}
	return NewWeatherSource(newTestClient(BreakerPolicy{}), cfg, 36, nil, failures)
}

func TestResolveURL(t *testing.T) {
	got, err := ResolveURL("https://src.example.com/rain/{station}?from={start}&to={end}", testWindow, "0016 A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "https://src.example.com/rain/0016%20A?from=1700000000&to=1700003600"
	if got != want {
		t.Errorf("ResolveURL = %q, want %q", got, want)
	}
}

func TestResolveURL_Failures(t *testing.T) {
	tests := []struct {
		name     string
		template string
	}{
		{"empty template", ""},
		{"relative", "/rain?from={start}"},
		{"ftp scheme", "ftp://src.example.com/{start}"},
		{"no host", "https:///rain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveURL(tt.template, testWindow, "x")
			c := types.Classify(err)
			if c.Code != types.ErrCodeExternalData {
				t.Fatalf("expected external data error, got %v", err)
			}
			if !strings.HasPrefix(c.Message, "failed to resolve source URL") {
				t.Errorf("unexpected message %q", c.Message)
			}
		})
	}
}

func TestFetchRain_JSONStations(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		if r.Header.Get("api_key") != "k-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/rain/A":
			fmt.Fprint(w, `{"samples":[
				{"time":1700000000,"probability":40,"accumulated":1.5},
				{"time":"2023-11-14T22:43:20Z","probability":60,"accumulated":0.5}]}`)
		case "/rain/B":
			fmt.Fprint(w, `[{"station":"B-override","time":1700001000,"probability":20,"accumulated":0}]`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	src := newTestSource(config.SourceConfig{
		RainURLTemplate: server.URL + "/rain/{station}?from={start}&to={end}",
		Stations:        []string{"A", "B"},
		APIKey:          "k-123",
	}, nil)

	obs, err := src.FetchRain(context.Background(), testWindow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obs.Status != types.ObservationOK || obs.Kind != types.KindRain {
		t.Fatalf("unexpected observation %+v", obs)
	}
	if len(obs.Rain) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(obs.Rain))
	}
	if obs.Rain[0].Station != "A" || obs.Rain[2].Station != "B-override" {
		t.Errorf("unexpected stations %q %q", obs.Rain[0].Station, obs.Rain[2].Station)
	}
	if !obs.Rain[1].Time.Equal(time.Unix(1700001800, 0)) {
		t.Errorf("unexpected parsed time %v", obs.Rain[1].Time)
	}
	if len(paths) != 2 {
		t.Errorf("expected 2 station requests, got %v", paths)
	}
}

func TestFetchRain_StationFailureFailsFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rain/bad" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	failures := &countingFailures{}
	src := newTestSource(config.SourceConfig{
		RainURLTemplate: server.URL + "/rain/{station}",
		Stations:        []string{"good", "bad"},
	}, failures)

	obs, err := src.FetchRain(context.Background(), testWindow)
	if types.Classify(err).Code != types.ErrCodeExternalData {
		t.Fatalf("expected external data error, got %v", err)
	}
	if obs.Status != types.ObservationError || obs.Message == "" {
		t.Errorf("expected error observation with message, got %+v", obs)
	}
	if obs.Rain != nil {
		t.Error("error observation must not carry samples")
	}
	if len(failures.kinds) != 1 || failures.kinds[0] != types.KindRain {
		t.Errorf("expected one rain failure recorded, got %v", failures.kinds)
	}
}

func TestFetchRain_StationTemplateWithoutStations(t *testing.T) {
	src := newTestSource(config.SourceConfig{RainURLTemplate: "https://src.example.com/{station}"}, nil)

	_, err := src.FetchRain(context.Background(), testWindow)
	if !strings.Contains(types.Classify(err).Message, "none are configured") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestFetchRain_MissingTemplate(t *testing.T) {
	src := newTestSource(config.SourceConfig{}, nil)

	obs, err := src.FetchRain(context.Background(), testWindow)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.HasPrefix(obs.Message, "failed to resolve source URL") {
		t.Errorf("unexpected message %q", obs.Message)
	}
}

func TestFetchRain_HTMLTable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>
			<table><tr><td>navigation</td></tr></table>
			<table>
				<tr><th>Station</th><th>Time</th><th>Probability</th><th>Accumulated</th></tr>
				<tr><td>0016A</td><td>2023-11-14 22:13</td><td>35</td><td>1,2</td></tr>
				<tr><td>0016A</td><td>2023-11-14 22:43</td><td></td><td>0</td></tr>
			</table></body></html>`)
	}))
	defer server.Close()

	src := newTestSource(config.SourceConfig{
		RainURLTemplate: server.URL + "/rain",
		Format:          FormatHTML,
	}, nil)

	obs, err := src.FetchRain(context.Background(), testWindow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(obs.Rain) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(obs.Rain))
	}
	if obs.Rain[0].Accumulated != 1.2 || obs.Rain[0].Probability != 35 {
		t.Errorf("unexpected first sample %+v", obs.Rain[0])
	}
	if !math.IsNaN(obs.Rain[1].Probability) {
		t.Errorf("blank cell should be NaN, got %v", obs.Rain[1].Probability)
	}
}

func TestFetchRain_FollowsDescriptor(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/descriptor":
			fmt.Fprintf(w, `{"estado":200,"datos":"%s/payload"}`, server.URL)
		case "/payload":
			fmt.Fprint(w, `[{"station":"X","time":1700000100,"probability":10,"accumulated":0.2}]`)
		}
	}))
	defer server.Close()

	src := newTestSource(config.SourceConfig{RainURLTemplate: server.URL + "/descriptor"}, nil)

	obs, err := src.FetchRain(context.Background(), testWindow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(obs.Rain) != 1 || obs.Rain[0].Station != "X" {
		t.Errorf("unexpected samples %+v", obs.Rain)
	}
}

func TestFetchRain_UnparsablePayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<<<not json>>>`)
	}))
	defer server.Close()

	src := newTestSource(config.SourceConfig{RainURLTemplate: server.URL}, nil)

	_, err := src.FetchRain(context.Background(), testWindow)
	if !strings.Contains(types.Classify(err).Message, "failed to parse rain payload") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestFetchTemperature_TrimsToMostRecent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var b strings.Builder
		b.WriteString(`{"series":[`)
		// 40 hourly points ending one hour after the window end, out of order.
		for i := 39; i >= 0; i-- {
			ts := testWindow.End.Unix() - int64(38-i)*3600
			if i != 39 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, `{"time":%d,"value":%d}`, ts, i)
		}
		b.WriteString(`]}`)
		fmt.Fprint(w, b.String())
	}))
	defer server.Close()

	src := newTestSource(config.SourceConfig{TempURLTemplate: server.URL + "/temp?end={end}"}, nil)

	obs, err := src.FetchTemperature(context.Background(), testWindow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(obs.Series) != 36 {
		t.Fatalf("expected 36 values, got %d", len(obs.Series))
	}
	// value 39 is after the window end and must be dropped; the series ends at 38.
	if obs.Series[0] != 3 || obs.Series[35] != 38 {
		t.Errorf("unexpected series bounds %v .. %v", obs.Series[0], obs.Series[35])
	}
}

func TestFetchTemperature_PlainArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[10.5, 11, 11.5]`)
	}))
	defer server.Close()

	src := newTestSource(config.SourceConfig{TempURLTemplate: server.URL}, nil)

	obs, err := src.FetchTemperature(context.Background(), testWindow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(obs.Series) != 3 || obs.Series[2] != 11.5 {
		t.Errorf("unexpected series %v", obs.Series)
	}
}

func TestFetchTemperature_HTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<table>
			<tr><th>time</th><th>value</th></tr>
			<tr><td>1700000000</td><td>12.5</td></tr>
			<tr><td>1699996400</td><td>11.0</td></tr>
			<tr><td>1700003000</td><td>-</td></tr>
		</table>`)
	}))
	defer server.Close()

	src := newTestSource(config.SourceConfig{TempURLTemplate: server.URL, Format: FormatHTML}, nil)

	obs, err := src.FetchTemperature(context.Background(), testWindow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(obs.Series) != 2 || obs.Series[0] != 11.0 || obs.Series[1] != 12.5 {
		t.Errorf("unexpected series %v", obs.Series)
	}
}

func TestFetchTemperature_SourceDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	failures := &countingFailures{}
	src := newTestSource(config.SourceConfig{TempURLTemplate: url}, failures)

	obs, err := src.FetchTemperature(context.Background(), testWindow)
	if types.Classify(err).Code != types.ErrCodeExternalData {
		t.Fatalf("expected external data error, got %v", err)
	}
	if obs.Status != types.ObservationError {
		t.Errorf("expected error observation, got %s", obs.Status)
	}
	if len(failures.kinds) != 1 || failures.kinds[0] != types.KindTemperature {
		t.Errorf("expected temperature failure recorded, got %v", failures.kinds)
	}
}
