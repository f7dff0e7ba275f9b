package types

import "time"

// ForecastKind identifies which prediction a request asks for.
type ForecastKind string

const (
	KindRain        ForecastKind = "rain"
	KindTemperature ForecastKind = "temp"
)

// ForecastRequest is one inbound ask for rain or temperature data.
type ForecastRequest struct {
	TsStart int64        // epoch seconds
	Kind    ForecastKind // fixed at creation
}

// TimeWindow is the half-open observation range [Start, End) pulled from the
// weather source.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// RainSample is a single per-station, per-interval reading.
type RainSample struct {
	Station     string    `json:"station"`
	Time        time.Time `json:"time"`
	Probability float64   `json:"probability"` // percent, 0-100
	Accumulated float64   `json:"accumulated"` // mm
}

// SeriesPoint is one value of a historical temperature series.
type SeriesPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// ObservationStatus reports whether a fetch produced data.
type ObservationStatus string

const (
	ObservationOK    ObservationStatus = "ok"
	ObservationError ObservationStatus = "error"
)

// Observation is the raw data pulled from the weather source for one window.
// Payload fields are populated iff Status is ObservationOK; Message is
// populated iff Status is ObservationError.
type Observation struct {
	Status  ObservationStatus
	Kind    ForecastKind
	Window  TimeWindow
	Rain    []RainSample
	Series  []float64
	Message string
}

// PredictionStatus is the outcome tag of an engine run.
type PredictionStatus string

const (
	PredictionOK    PredictionStatus = "OK"
	PredictionError PredictionStatus = "ERROR"
)

// PredictionResult is the shared engine contract. For rain, Probability and
// Accumulated are set; for temperature, Values holds one entry per forecast
// step. On error only Message is set.
type PredictionResult struct {
	Status      PredictionStatus `json:"status"`
	Kind        ForecastKind     `json:"kind"`
	Timestamp   int64            `json:"timestamp"`
	Probability float64          `json:"probability,omitempty"`
	Accumulated float64          `json:"accumulated,omitempty"`
	Values      []float64        `json:"values,omitempty"`
	Message     string           `json:"message,omitempty"`
}

// OK reports whether the result carries a prediction.
func (r *PredictionResult) OK() bool {
	return r != nil && r.Status == PredictionOK
}

// NewRainResult builds a successful rain prediction.
func NewRainResult(ts int64, probability, accumulated float64) *PredictionResult {
	return &PredictionResult{
		Status:      PredictionOK,
		Kind:        KindRain,
		Timestamp:   ts,
		Probability: probability,
		Accumulated: accumulated,
	}
}

// NewTemperatureResult builds a successful temperature forecast.
func NewTemperatureResult(ts int64, values []float64) *PredictionResult {
	return &PredictionResult{
		Status:    PredictionOK,
		Kind:      KindTemperature,
		Timestamp: ts,
		Values:    values,
	}
}

// NewErrorResult builds a failed prediction carrying a human-readable message.
func NewErrorResult(kind ForecastKind, ts int64, message string) *PredictionResult {
	return &PredictionResult{
		Status:    PredictionError,
		Kind:      kind,
		Timestamp: ts,
		Message:   message,
	}
}
