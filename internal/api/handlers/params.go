package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"wpre/internal/core"
	"wpre/internal/types"
)

// ParamsHandler serves the operational parameter endpoints.
type ParamsHandler struct {
	store  types.ParameterStore
	logger *slog.Logger
}

// NewParamsHandler creates a ParamsHandler.
func NewParamsHandler(store types.ParameterStore, logger *slog.Logger) *ParamsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ParamsHandler{store: store, logger: logger}
}

// RegisterRoutes mounts the parameter endpoints on the root router.
func (h *ParamsHandler) RegisterRoutes(r chi.Router) {
	r.Post(BasePath+"/status", h.HandleStatus)
	r.Get(BasePath+"/reset", h.HandleReset)
}

// HandleStatus handles POST /api_afc_enc_wpre/status. A non-empty JSON
// object replaces the stored parameters; an empty body or {} returns them.
func (h *ParamsHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := core.ReadBody(w, r)
	if err != nil {
		core.JSON(w, r, http.StatusBadRequest, map[string]string{"ERROR": types.Classify(err).Message})
		return
	}

	var params types.Parameters
	if !core.IsEmptyBody(body) {
		if err := json.Unmarshal(body, &params); err != nil {
			core.JSON(w, r, http.StatusBadRequest, map[string]string{"ERROR": "parameters must be a JSON object"})
			return
		}
	}

	if len(params) == 0 {
		current, err := h.store.Load(ctx)
		if err != nil {
			h.storeFailed(w, r, "load", err)
			return
		}
		core.JSON(w, r, http.StatusOK, map[string]any{"OK": current})
		return
	}

	if err := h.store.Save(ctx, params); err != nil {
		h.storeFailed(w, r, "save", err)
		return
	}
	h.logger.InfoContext(ctx, "parameters updated", "keys", len(params))
	core.JSON(w, r, http.StatusOK, map[string]string{"OK": "Status file updated"})
}

// HandleReset handles GET /api_afc_enc_wpre/reset.
func (h *ParamsHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Reset(r.Context()); err != nil {
		h.storeFailed(w, r, "reset", err)
		return
	}
	h.logger.InfoContext(r.Context(), "parameters reset to defaults")
	core.JSON(w, r, http.StatusOK, map[string]string{"OK": "Reset Done"})
}

func (h *ParamsHandler) storeFailed(w http.ResponseWriter, r *http.Request, op string, err error) {
	c := types.Classify(err)
	h.logger.ErrorContext(r.Context(), "parameter store failed", "op", op, "error", err)
	core.JSON(w, r, http.StatusInternalServerError, map[string]string{"ERROR": c.Message})
}
