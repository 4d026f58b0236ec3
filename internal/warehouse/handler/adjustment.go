package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pharmstock/pharmstock-backend/internal/warehouse/service"
	"github.com/pharmstock/pharmstock-backend/pkg/httputil"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// AdjustmentHandler handles inventory adjustment endpoints
type AdjustmentHandler struct {
	service *service.AdjustmentService
	logger  *logger.Logger
}

// NewAdjustmentHandler creates a new adjustment handler
func NewAdjustmentHandler(svc *service.AdjustmentService, log *logger.Logger) *AdjustmentHandler {
	return &AdjustmentHandler{
		service: svc,
		logger:  log,
	}
}

// Create records an absolute quantity correction for a batch
func (h *AdjustmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DrugID           string  `json:"drug_id" validate:"required"`
		BatchNumber      string  `json:"batch_number" validate:"required"`
		NewQuantity      *int    `json:"new_quantity" validate:"required"`
		Reason           string  `json:"reason" validate:"required"`
		SecondOperatorID *string `json:"second_operator_id"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	adj, err := h.service.CreateAdjustment(r.Context(), &service.AdjustmentInput{
		DrugID:           req.DrugID,
		BatchNumber:      req.BatchNumber,
		NewQuantity:      *req.NewQuantity,
		Reason:           req.Reason,
		OperatorID:       r.Header.Get("X-Operator-ID"),
		SecondOperatorID: req.SecondOperatorID,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, adj)
}

// ListByDrug lists adjustments for a drug
func (h *AdjustmentHandler) ListByDrug(w http.ResponseWriter, r *http.Request) {
	drugID := chi.URLParam(r, "drugID")

	adjs, err := h.service.ListByDrug(r.Context(), drugID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, adjs)
}
