package types

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
)

// Labels used in notifications sent to the decision-support system.
const (
	ObservationIrrigation = "irrigation"
	DataTypeNumber        = "number"
)

// ErrInvalidPayload is returned when a notification cannot be delivered as built.
var ErrInvalidPayload = errors.New("invalid notification payload")

// NotificationPayload is the message relayed downstream after a successful
// rain prediction on the run-algorithm flow.
type NotificationPayload struct {
	RequestID   string
	DSSEndpoint string
	Timestamp   int64
	Observation string
	Units       string
	Result      float64
}

// RainUnitsLabel renders the units label carried alongside the probability.
func RainUnitsLabel(accumulated float64) string {
	return fmt.Sprintf("%%. Cummulated: %s mm", formatFloat(accumulated))
}

// NewRainNotification builds the payload for a rain prediction.
func NewRainNotification(requestID, endpoint string, result *PredictionResult) NotificationPayload {
	return NotificationPayload{
		RequestID:   requestID,
		DSSEndpoint: endpoint,
		Timestamp:   result.Timestamp,
		Observation: ObservationIrrigation,
		Units:       RainUnitsLabel(result.Accumulated),
		Result:      result.Probability,
	}
}

// Validate checks that every field is present and deliverable.
func (p NotificationPayload) Validate() error {
	if strings.TrimSpace(p.RequestID) == "" {
		return fmt.Errorf("%w: request_id is empty", ErrInvalidPayload)
	}
	u, err := url.Parse(p.DSSEndpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: dss endpoint %q is not an http(s) URL", ErrInvalidPayload, p.DSSEndpoint)
	}
	if p.Observation == "" || p.Units == "" {
		return fmt.Errorf("%w: observation and units labels are required", ErrInvalidPayload)
	}
	if math.IsNaN(p.Result) || math.IsInf(p.Result, 0) {
		return fmt.Errorf("%w: result is not a finite number", ErrInvalidPayload)
	}
	return nil
}

func formatFloat(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
