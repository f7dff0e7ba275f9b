package external

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"wpre/internal/types"
)

var errEmptyPayload = errors.New("empty payload")

// Timestamp layouts accepted from the source, in addition to epoch seconds.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// flexTime decodes either an epoch-seconds number or a timestamp string.
type flexTime struct {
	time.Time
}

func (t *flexTime) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		parsed, err := parseTime(s)
		if err != nil {
			return err
		}
		t.Time = parsed
		return nil
	}
	secs, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %s", b)
	}
	t.Time = time.Unix(int64(secs), 0).UTC()
	return nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

type rainRecord struct {
	Station     string   `json:"station"`
	Time        flexTime `json:"time"`
	Probability *float64 `json:"probability"`
	Accumulated *float64 `json:"accumulated"`
}

type seriesRecord struct {
	Time  flexTime `json:"time"`
	Value *float64 `json:"value"`
}

// unwrapList returns the JSON array held either at the top level or under
// one of the given keys of a top-level object.
func unwrapList(body []byte, keys ...string) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errEmptyPayload
	}
	if trimmed[0] == '[' {
		return trimmed, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, err
	}
	for _, k := range keys {
		if raw, ok := obj[k]; ok {
			return raw, nil
		}
	}
	return nil, fmt.Errorf("payload has none of the keys %v", keys)
}

// descriptorURL detects an indirection document pointing at the real payload.
func descriptorURL(body []byte) (string, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return "", false
	}
	var d struct {
		Datos string `json:"datos"`
	}
	if err := json.Unmarshal(trimmed, &d); err != nil || d.Datos == "" {
		return "", false
	}
	return d.Datos, true
}

func parseRainJSON(body []byte) ([]types.RainSample, error) {
	raw, err := unwrapList(body, "samples", "data")
	if err != nil {
		return nil, err
	}
	var records []rainRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}

	samples := make([]types.RainSample, 0, len(records))
	for _, r := range records {
		samples = append(samples, types.RainSample{
			Station:     r.Station,
			Time:        r.Time.Time,
			Probability: valueOrNaN(r.Probability),
			Accumulated: valueOrNaN(r.Accumulated),
		})
	}
	return samples, nil
}

func parseSeriesJSON(body []byte) ([]types.SeriesPoint, error) {
	raw, err := unwrapList(body, "series", "data")
	if err != nil {
		return nil, err
	}

	// A bare list of numbers is an already ordered series.
	var plain []float64
	if err := json.Unmarshal(raw, &plain); err == nil {
		points := make([]types.SeriesPoint, len(plain))
		for i, v := range plain {
			points[i] = types.SeriesPoint{Value: v}
		}
		return points, nil
	}

	var records []seriesRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	points := make([]types.SeriesPoint, 0, len(records))
	for _, r := range records {
		if r.Value == nil {
			continue
		}
		points = append(points, types.SeriesPoint{Time: r.Time.Time, Value: *r.Value})
	}
	return points, nil
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
