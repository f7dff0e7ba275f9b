package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"wpre/internal/core"
	"wpre/internal/notifications"
	"wpre/internal/types"
)

// Response statuses of the algorithm endpoints.
const (
	AlgStatusStarted = "STARTED"
	AlgStatusStopped = "STOPPED"
	AlgStatusError   = "ERROR"
)

// RainPredictor is the slice of the pipeline /run_alg needs.
type RainPredictor interface {
	Rain(ctx context.Context, tsStart int64) (*types.PredictionResult, error)
}

// Notifier accepts a payload without blocking.
type Notifier interface {
	Submit(payload types.NotificationPayload) error
}

// AlgHandler serves /run_alg, /stop_alg and /status_alg.
type AlgHandler struct {
	predictor RainPredictor
	notifier  Notifier
	validator *core.Validator
	clock     types.Clock
	port      int
	logger    *slog.Logger
}

// NewAlgHandler creates an AlgHandler. port is echoed by /status_alg.
func NewAlgHandler(
	predictor RainPredictor,
	notifier Notifier,
	val *core.Validator,
	clock types.Clock,
	port int,
	logger *slog.Logger,
) *AlgHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if val == nil {
		val = core.NewValidator(logger)
	}
	return &AlgHandler{
		predictor: predictor,
		notifier:  notifier,
		validator: val,
		clock:     clock,
		port:      port,
		logger:    logger,
	}
}

// RegisterRoutes mounts the algorithm endpoints on the root router.
func (h *AlgHandler) RegisterRoutes(r chi.Router) {
	r.Post("/run_alg", h.HandleRun)
	r.Get("/stop_alg", h.HandleStop)
	r.Get("/status_alg", h.HandleStatus)
}

// runAlgRequest is the DSS trigger body. config is opaque; only its presence
// is required.
type runAlgRequest struct {
	Config      json.RawMessage `json:"config" validate:"required"`
	RequestID   string          `json:"request_id" validate:"required"`
	DSSEndpoint string          `json:"dss_api_endpoint" validate:"required"`
}

type algResponse struct {
	Status string `json:"status"`
	Msg    any    `json:"msg"`
}

// HandleRun handles POST /run_alg. It predicts rain for now, submits the
// notification to the dispatcher, and answers without waiting for delivery.
// Window rejections are 400; request-shape and pipeline failures are 500.
func (h *AlgHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req runAlgRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "run_alg requested",
		"dss_request_id", req.RequestID,
		"dss_endpoint", req.DSSEndpoint,
	)

	ts := h.clock.Now().Unix()
	result, err := h.predictor.Rain(ctx, ts)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	payload := types.NewRainNotification(req.RequestID, req.DSSEndpoint, result)
	if err := h.notifier.Submit(payload); err != nil {
		level := slog.LevelWarn
		if errors.Is(err, types.ErrInvalidPayload) {
			level = slog.LevelError
		}
		h.logger.Log(ctx, level, "notification not dispatched",
			"dss_request_id", req.RequestID,
			"queue_full", errors.Is(err, notifications.ErrQueueFull),
			"error", err,
		)
	}

	core.JSON(w, r, http.StatusOK, algResponse{
		Status: AlgStatusStarted,
		Msg:    map[string]string{"OK": "Algorithm started and info sent to MMT"},
	})
}

// HandleStop handles GET /stop_alg. The service has no long-running
// algorithm to stop, so it only acknowledges.
func (h *AlgHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	h.logger.InfoContext(r.Context(), "stop_alg requested")
	core.JSON(w, r, http.StatusOK, algResponse{
		Status: AlgStatusStopped,
		Msg:    map[string]string{"OK": "Algorithm stopped"},
	})
}

// HandleStatus handles GET /status_alg.
func (h *AlgHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, algResponse{
		Status: AlgStatusStarted,
		Msg:    map[string]int{"flask_port": h.port},
	})
}

func (h *AlgHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	c := types.Classify(err)
	status := http.StatusInternalServerError
	if c.Code.IsValidation() {
		status = http.StatusBadRequest
	}
	h.logger.WarnContext(r.Context(), "run_alg failed",
		"code", string(c.Code),
		"status", status,
		"error", c.Message,
	)
	core.JSON(w, r, status, algResponse{Status: AlgStatusError, Msg: c.Message})
}
