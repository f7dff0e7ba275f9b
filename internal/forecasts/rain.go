package forecasts

import (
	"math"
	"sort"

	"wpre/internal/types"
)

// MsgNoRainObservations is returned when nothing usable remains after
// filtering.
const MsgNoRainObservations = "no rain observations available for the requested window"

// RainEngine aggregates per-station samples into one probability and one
// accumulated amount.
type RainEngine struct{}

// Predict drops non-finite samples and samples outside the observation
// window, then takes each station's peak probability and total accumulation.
// The result is the mean across stations, clamped to its valid range and
// rounded to two decimals.
func (RainEngine) Predict(ts int64, obs *types.Observation) *types.PredictionResult {
	if obs == nil || obs.Status != types.ObservationOK {
		msg := MsgNoRainObservations
		if obs != nil && obs.Message != "" {
			msg = obs.Message
		}
		return types.NewErrorResult(types.KindRain, ts, msg)
	}

	type stationAgg struct {
		peak  float64
		total float64
	}
	stations := make(map[string]*stationAgg)

	for _, s := range obs.Rain {
		if !isFinite(s.Probability) || !isFinite(s.Accumulated) {
			continue
		}
		if !s.Time.IsZero() && !obs.Window.Start.IsZero() && !obs.Window.Contains(s.Time) {
			continue
		}
		agg, ok := stations[s.Station]
		if !ok {
			agg = &stationAgg{peak: s.Probability}
			stations[s.Station] = agg
		}
		agg.peak = math.Max(agg.peak, s.Probability)
		agg.total += s.Accumulated
	}

	if len(stations) == 0 {
		return types.NewErrorResult(types.KindRain, ts, MsgNoRainObservations)
	}

	// Sum in a stable order so the result does not depend on map iteration.
	names := make([]string, 0, len(stations))
	for name := range stations {
		names = append(names, name)
	}
	sort.Strings(names)

	var probSum, accSum float64
	for _, name := range names {
		probSum += stations[name].peak
		accSum += stations[name].total
	}
	n := float64(len(names))

	probability := round2(clamp(probSum/n, 0, 100))
	accumulated := round2(math.Max(accSum/n, 0))
	return types.NewRainResult(ts, probability, accumulated)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
