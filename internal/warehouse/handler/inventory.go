package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pharmstock/pharmstock-backend/internal/warehouse/service"
	"github.com/pharmstock/pharmstock-backend/internal/warehouse/settings"
	"github.com/pharmstock/pharmstock-backend/pkg/httputil"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// InventoryHandler handles stock ledger read endpoints and runtime settings
type InventoryHandler struct {
	service  *service.InventoryService
	settings *settings.Provider
	logger   *logger.Logger
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(svc *service.InventoryService, provider *settings.Provider, log *logger.Logger) *InventoryHandler {
	return &InventoryHandler{
		service:  svc,
		settings: provider,
		logger:   log,
	}
}

// GetOverview returns the ledger overview
func (h *InventoryHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.GetOverview(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, overview)
}

// ListDrugs lists the active drug catalog
func (h *InventoryHandler) ListDrugs(w http.ResponseWriter, r *http.Request) {
	drugs, err := h.service.ListDrugs(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, drugs)
}

// ListBatches lists all batches of a drug
func (h *InventoryHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	drugID := chi.URLParam(r, "drugID")

	batches, err := h.service.ListBatches(r.Context(), drugID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// ListAvailableBatches lists the allocatable batches of a drug in
// allocation order
func (h *InventoryHandler) ListAvailableBatches(w http.ResponseWriter, r *http.Request) {
	drugID := chi.URLParam(r, "drugID")

	batches, err := h.service.ListAvailableBatches(r.Context(), drugID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// UpdateSetting writes a runtime setting and refreshes the cache
func (h *InventoryHandler) UpdateSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req struct {
		Value string `json:"value" validate:"required"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.settings.Set(r.Context(), key, req.Value); err != nil {
		httputil.Error(w, err)
		return
	}

	h.logger.Info().Str("key", key).Msg("setting updated")
	httputil.NoContent(w)
}
