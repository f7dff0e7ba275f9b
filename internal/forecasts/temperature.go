package forecasts

import (
	"fmt"

	"wpre/internal/model"
	"wpre/internal/types"
)

// TemperatureEngine runs the fitted scaler and the pre-trained network over
// a fixed-length history. Both are loaded once at start-up and shared.
type TemperatureEngine struct {
	network *model.Network
	scaler  *model.Scaler
}

// NewTemperatureEngine wires the loaded artifacts into an engine.
func NewTemperatureEngine(artifacts *model.Artifacts) *TemperatureEngine {
	return &TemperatureEngine{
		network: artifacts.Network,
		scaler:  artifacts.Scaler,
	}
}

// InputSize is the history length the engine requires.
func (e *TemperatureEngine) InputSize() int { return e.network.InputWidth() }

// Predict normalizes the series, runs inference and maps the output back to
// degrees.
func (e *TemperatureEngine) Predict(ts int64, obs *types.Observation) *types.PredictionResult {
	if obs == nil || obs.Status != types.ObservationOK {
		msg := "no temperature observations available"
		if obs != nil && obs.Message != "" {
			msg = obs.Message
		}
		return types.NewErrorResult(types.KindTemperature, ts, msg)
	}

	want := e.network.InputWidth()
	if len(obs.Series) != want {
		return types.NewErrorResult(types.KindTemperature, ts,
			fmt.Sprintf("temperature history has %d values, model needs %d", len(obs.Series), want))
	}
	for i, v := range obs.Series {
		if !isFinite(v) {
			return types.NewErrorResult(types.KindTemperature, ts,
				fmt.Sprintf("temperature history value %d is not a finite number", i))
		}
	}

	out, err := e.network.Predict(e.scaler.Transform(obs.Series))
	if err != nil {
		return types.NewErrorResult(types.KindTemperature, ts, err.Error())
	}
	return types.NewTemperatureResult(ts, e.scaler.InverseTransform(out))
}
