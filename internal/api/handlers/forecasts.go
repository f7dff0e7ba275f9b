// Package handlers contains the HTTP handlers for the WPRE service: the
// forecast read path, the run/stop/status algorithm endpoints used by the
// decision-support system, and the parameter status/reset endpoints.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"wpre/internal/core"
	"wpre/internal/types"
)

// BasePath prefixes the forecast and parameter routes.
const BasePath = "/api_afc_enc_wpre"

// MsgInvalidTimestamp is returned when the path segment is not an integer.
const MsgInvalidTimestamp = "ts_start must be an integer epoch timestamp"

// ForecastService is the pipeline contract the handlers depend on.
type ForecastService interface {
	Rain(ctx context.Context, tsStart int64) (*types.PredictionResult, error)
	Temperature(ctx context.Context, tsStart int64) (*types.PredictionResult, error)
}

// ForecastHandler serves the rain and temperature read endpoints.
type ForecastHandler struct {
	service ForecastService
	logger  *slog.Logger
}

// NewForecastHandler creates a ForecastHandler.
func NewForecastHandler(svc ForecastService, logger *slog.Logger) *ForecastHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ForecastHandler{service: svc, logger: logger}
}

// RegisterRoutes mounts the read endpoints on the root router.
func (h *ForecastHandler) RegisterRoutes(r chi.Router) {
	r.Get(BasePath+"/t/{ts_start}", h.HandleTemperature)
	r.Get(BasePath+"/r/{ts_start}", h.HandleRain)
}

// rainResponse is the success body of the rain endpoint.
type rainResponse struct {
	Timestamp   int64   `json:"timestamp"`
	Probability float64 `json:"probability"`
	Accumulated float64 `json:"accumulated"`
}

// HandleTemperature handles GET /api_afc_enc_wpre/t/{ts_start}. Success is a
// bare JSON array of the forecast values; every failure is 400 {"ERROR": msg}.
func (h *ForecastHandler) HandleTemperature(w http.ResponseWriter, r *http.Request) {
	ts, ok := parseTimestamp(w, r)
	if !ok {
		return
	}

	result, err := h.service.Temperature(r.Context(), ts)
	if err != nil {
		c := types.Classify(err)
		h.logger.WarnContext(r.Context(), "temperature request failed",
			"ts_start", ts,
			"code", string(c.Code),
			"error", c.Message,
		)
		core.JSON(w, r, http.StatusBadRequest, map[string]string{"ERROR": c.Message})
		return
	}

	core.JSON(w, r, http.StatusOK, result.Values)
}

// HandleRain handles GET /api_afc_enc_wpre/r/{ts_start}. Window rejections
// answer {"ERROR": msg}; source and prediction failures answer {"msg": msg}.
// Both are 400.
func (h *ForecastHandler) HandleRain(w http.ResponseWriter, r *http.Request) {
	ts, ok := parseTimestamp(w, r)
	if !ok {
		return
	}

	result, err := h.service.Rain(r.Context(), ts)
	if err != nil {
		c := types.Classify(err)
		h.logger.WarnContext(r.Context(), "rain request failed",
			"ts_start", ts,
			"code", string(c.Code),
			"error", c.Message,
		)
		if c.Code.IsValidation() {
			core.JSON(w, r, http.StatusBadRequest, map[string]string{"ERROR": c.Message})
			return
		}
		core.JSON(w, r, http.StatusBadRequest, map[string]string{"msg": c.Message})
		return
	}

	core.JSON(w, r, http.StatusOK, rainResponse{
		Timestamp:   result.Timestamp,
		Probability: result.Probability,
		Accumulated: result.Accumulated,
	})
}

// parseTimestamp reads {ts_start}. On failure it writes the 400 and returns
// false.
func parseTimestamp(w http.ResponseWriter, r *http.Request) (int64, bool) {
	ts, err := strconv.ParseInt(chi.URLParam(r, "ts_start"), 10, 64)
	if err != nil {
		core.JSON(w, r, http.StatusBadRequest, map[string]string{"ERROR": MsgInvalidTimestamp})
		return 0, false
	}
	return ts, true
}
