package external

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"wpre/internal/config"
	"wpre/internal/types"
)

// Source payload formats.
const (
	FormatJSON = "json"
	FormatHTML = "html"
)

// URL template placeholders.
const (
	placeholderStart   = "{start}"
	placeholderEnd     = "{end}"
	placeholderStation = "{station}"
)

// maxSourceBody caps how much of a source response is read.
const maxSourceBody = 8 << 20

// FailureRecorder receives one call per failed source fetch.
type FailureRecorder interface {
	RecordSourceFailure(ctx context.Context, kind types.ForecastKind)
}

// WeatherSource fetches and parses raw observations from the external
// weather service.
type WeatherSource struct {
	client   *BaseClient
	cfg      config.SourceConfig
	series   int
	logger   *slog.Logger
	failures FailureRecorder
}

// NewWeatherSource builds the adapter. seriesLen is the number of
// temperature values the model consumes.
func NewWeatherSource(client *BaseClient, cfg config.SourceConfig, seriesLen int, logger *slog.Logger, failures FailureRecorder) *WeatherSource {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Format == "" {
		cfg.Format = FormatJSON
	}
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 1
	}
	return &WeatherSource{
		client:   client,
		cfg:      cfg,
		series:   seriesLen,
		logger:   logger,
		failures: failures,
	}
}

// NewSourceClient builds the BaseClient used for the weather source.
func NewSourceClient(cfg config.SourceConfig) *BaseClient {
	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		},
	}
	return NewBaseClient(httpClient, BreakerPolicy{
		Name:                "weather-source",
		ConsecutiveFailures: cfg.BreakerFailures,
		Cooldown:            cfg.BreakerCooldown,
	}, cfg.UserAgent)
}

// FetchRain retrieves per-station rain samples for the window. Stations are
// fetched concurrently; any station failure fails the whole fetch.
func (s *WeatherSource) FetchRain(ctx context.Context, window types.TimeWindow) (*types.Observation, error) {
	stations, err := s.rainStations()
	if err != nil {
		return s.fail(ctx, types.KindRain, window, err)
	}

	urls := make([]string, len(stations))
	for i, st := range stations {
		u, err := ResolveURL(s.cfg.RainURLTemplate, window, st)
		if err != nil {
			return s.fail(ctx, types.KindRain, window, err)
		}
		urls[i] = u
	}

	results := make([][]types.RainSample, len(stations))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrency)

	for i := range stations {
		g.Go(func() error {
			body, err := s.get(gCtx, urls[i])
			if err != nil {
				return err
			}
			samples, err := s.parseRain(body, stations[i])
			if err != nil {
				return types.NewAppError(types.ErrCodeExternalData,
					fmt.Sprintf("failed to parse rain payload for station %q: %v", stations[i], err), err)
			}
			results[i] = samples
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return s.fail(ctx, types.KindRain, window, err)
	}

	var all []types.RainSample
	for _, r := range results {
		all = append(all, r...)
	}

	s.logger.DebugContext(ctx, "rain observations fetched",
		"stations", len(stations),
		"samples", len(all),
	)
	return &types.Observation{
		Status: types.ObservationOK,
		Kind:   types.KindRain,
		Window: window,
		Rain:   all,
	}, nil
}

// FetchTemperature retrieves the historical temperature series ending at the
// window end. The series is ordered by time and trimmed to the most recent
// values the model consumes.
func (s *WeatherSource) FetchTemperature(ctx context.Context, window types.TimeWindow) (*types.Observation, error) {
	station := ""
	if len(s.cfg.Stations) > 0 {
		station = s.cfg.Stations[0]
	}
	u, err := ResolveURL(s.cfg.TempURLTemplate, window, station)
	if err != nil {
		return s.fail(ctx, types.KindTemperature, window, err)
	}

	body, err := s.get(ctx, u)
	if err != nil {
		return s.fail(ctx, types.KindTemperature, window, err)
	}
	points, err := s.parseSeries(body)
	if err != nil {
		return s.fail(ctx, types.KindTemperature, window, types.NewAppError(types.ErrCodeExternalData,
			fmt.Sprintf("failed to parse temperature payload: %v", err), err))
	}

	return &types.Observation{
		Status: types.ObservationOK,
		Kind:   types.KindTemperature,
		Window: window,
		Series: trimSeries(points, window.End, s.series),
	}, nil
}

func (s *WeatherSource) rainStations() ([]string, error) {
	if !strings.Contains(s.cfg.RainURLTemplate, placeholderStation) {
		return []string{""}, nil
	}
	if len(s.cfg.Stations) == 0 {
		return nil, types.NewAppError(types.ErrCodeExternalData,
			"failed to resolve source URL: template needs a station but none are configured", nil)
	}
	return s.cfg.Stations, nil
}

// get performs one GET and follows a single level of descriptor indirection:
// a JSON body of the form {"datos": "<url>"} points at the actual payload.
func (s *WeatherSource) get(ctx context.Context, rawURL string) ([]byte, error) {
	body, err := s.getOnce(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if next, ok := descriptorURL(body); ok {
		if err := checkSourceURL(next); err != nil {
			return nil, err
		}
		return s.getOnce(ctx, next)
	}
	return body, nil
}

func (s *WeatherSource) getOnce(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeExternalData, "failed to resolve source URL: "+err.Error(), err)
	}
	if key := s.cfg.APIKey.Unmask(); key != "" {
		req.Header.Set("api_key", key)
	}
	if s.cfg.Format == FormatHTML {
		req.Header.Set("Accept", "text/html")
	} else {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, types.NewAppError(types.ErrCodeExternalData,
			fmt.Sprintf("%s returned %d", req.URL.Host, resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBody))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeExternalData, "failed to read source response", err)
	}
	return body, nil
}

func (s *WeatherSource) parseRain(body []byte, station string) ([]types.RainSample, error) {
	var (
		samples []types.RainSample
		err     error
	)
	if s.cfg.Format == FormatHTML {
		samples, err = parseRainHTML(body)
	} else {
		samples, err = parseRainJSON(body)
	}
	if err != nil {
		return nil, err
	}
	for i := range samples {
		if samples[i].Station == "" {
			samples[i].Station = station
		}
	}
	return samples, nil
}

func (s *WeatherSource) parseSeries(body []byte) ([]types.SeriesPoint, error) {
	if s.cfg.Format == FormatHTML {
		return parseSeriesHTML(body)
	}
	return parseSeriesJSON(body)
}

func (s *WeatherSource) fail(ctx context.Context, kind types.ForecastKind, window types.TimeWindow, err error) (*types.Observation, error) {
	if s.failures != nil {
		s.failures.RecordSourceFailure(ctx, kind)
	}
	msg := types.Classify(err).Message
	s.logger.WarnContext(ctx, "weather source fetch failed",
		"kind", string(kind),
		"error", err,
	)
	return &types.Observation{
		Status:  types.ObservationError,
		Kind:    kind,
		Window:  window,
		Message: msg,
	}, err
}

// ResolveURL fills a source URL template for the window and station and
// checks that the result is an absolute http(s) URL.
func ResolveURL(template string, window types.TimeWindow, station string) (string, error) {
	if strings.TrimSpace(template) == "" {
		return "", types.NewAppError(types.ErrCodeExternalData,
			"failed to resolve source URL: no URL template configured", nil)
	}
	r := strings.NewReplacer(
		placeholderStart, strconv.FormatInt(window.Start.Unix(), 10),
		placeholderEnd, strconv.FormatInt(window.End.Unix(), 10),
		placeholderStation, url.PathEscape(station),
	)
	resolved := r.Replace(template)
	if err := checkSourceURL(resolved); err != nil {
		return "", err
	}
	return resolved, nil
}

func checkSourceURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return types.NewAppError(types.ErrCodeExternalData,
			fmt.Sprintf("failed to resolve source URL: %q is not an absolute http(s) URL", raw), err)
	}
	return nil
}

// trimSeries orders points by time, drops anything after end, and keeps at
// most n of the most recent values.
func trimSeries(points []types.SeriesPoint, end time.Time, n int) []float64 {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Time.Before(points[j].Time)
	})

	values := make([]float64, 0, len(points))
	for _, p := range points {
		if !p.Time.IsZero() && p.Time.After(end) {
			continue
		}
		values = append(values, p.Value)
	}
	if n > 0 && len(values) > n {
		values = values[len(values)-n:]
	}
	return values
}
