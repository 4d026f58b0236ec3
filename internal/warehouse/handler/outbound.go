package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pharmstock/pharmstock-backend/internal/warehouse/service"
	"github.com/pharmstock/pharmstock-backend/pkg/httputil"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// OutboundHandler handles outbound application endpoints
type OutboundHandler struct {
	service *service.OutboundService
	logger  *logger.Logger
}

// NewOutboundHandler creates a new outbound handler
func NewOutboundHandler(svc *service.OutboundService, log *logger.Logger) *OutboundHandler {
	return &OutboundHandler{
		service: svc,
		logger:  log,
	}
}

type applicationLineRequest struct {
	DrugID      string  `json:"drug_id" validate:"required"`
	BatchNumber *string `json:"batch_number"`
	Quantity    int     `json:"quantity" validate:"required,gt=0"`
}

type applicationRequest struct {
	Department string                   `json:"department" validate:"required"`
	Purpose    *string                  `json:"purpose"`
	Lines      []applicationLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// Create creates a new outbound application
func (h *OutboundHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req applicationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	input := &service.ApplicationInput{
		ApplicantID: r.Header.Get("X-Operator-ID"),
		Department:  req.Department,
		Purpose:     req.Purpose,
		Lines:       make([]service.ApplicationLineInput, len(req.Lines)),
	}
	for i, line := range req.Lines {
		input.Lines[i] = service.ApplicationLineInput{
			DrugID:      line.DrugID,
			BatchNumber: line.BatchNumber,
			Quantity:    line.Quantity,
		}
	}

	app, err := h.service.Create(r.Context(), input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, app)
}

// Get gets an application with its lines
func (h *OutboundHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	app, lines, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"application": app,
		"lines":       lines,
	})
}

// List lists applications with pagination
func (h *OutboundHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := pagination(r)
	status := r.URL.Query().Get("status")

	apps, total, err := h.service.List(r.Context(), page, perPage, status)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, apps, paginationMeta(page, perPage, total))
}

// Approve approves a pending application
func (h *OutboundHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		SecondApproverID *string `json:"second_approver_id"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	approverID := r.Header.Get("X-Operator-ID")
	if err := h.service.Approve(r.Context(), id, approverID, req.SecondApproverID); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Reject rejects a pending application
func (h *OutboundHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Reason string `json:"reason" validate:"required"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	approverID := r.Header.Get("X-Operator-ID")
	if err := h.service.Reject(r.Context(), id, approverID, req.Reason); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Cancel withdraws a pending or approved application
func (h *OutboundHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Cancel(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

type executeLineRequest struct {
	DrugID         string  `json:"drug_id" validate:"required"`
	BatchNumber    *string `json:"batch_number"`
	ActualQuantity int     `json:"actual_quantity" validate:"gte=0"`
}

// Execute issues the stock for an approved application. The body is
// optional; without one every line issues its requested quantity.
func (h *OutboundHandler) Execute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Lines []executeLineRequest `json:"lines" validate:"dive"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	actuals := make([]service.ExecuteLineInput, len(req.Lines))
	for i, line := range req.Lines {
		actuals[i] = service.ExecuteLineInput{
			DrugID:         line.DrugID,
			BatchNumber:    line.BatchNumber,
			ActualQuantity: line.ActualQuantity,
		}
	}

	allocations, err := h.service.Execute(r.Context(), id, actuals)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"allocations": allocations,
	})
}
