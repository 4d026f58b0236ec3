package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pharmstock/pharmstock-backend/internal/warehouse/service"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/pharmstock/pharmstock-backend/pkg/httputil"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// InboundHandler handles inbound receipt endpoints
type InboundHandler struct {
	service *service.InboundService
	logger  *logger.Logger
}

// NewInboundHandler creates a new inbound handler
func NewInboundHandler(svc *service.InboundService, log *logger.Logger) *InboundHandler {
	return &InboundHandler{
		service: svc,
		logger:  log,
	}
}

type receiveRequest struct {
	DrugID           string     `json:"drug_id" validate:"required"`
	BatchNumber      string     `json:"batch_number" validate:"required"`
	Quantity         int        `json:"quantity" validate:"required,gt=0"`
	ExpiryDate       *time.Time `json:"expiry_date"`
	ProductionDate   *time.Time `json:"production_date"`
	ArrivalDate      *time.Time `json:"arrival_date"`
	Manufacturer     *string    `json:"manufacturer"`
	StorageLocation  *string    `json:"storage_location"`
	DeliveryNoteRef  *string    `json:"delivery_note_ref"`
	Status           string     `json:"status" validate:"required,oneof=QUALIFIED UNQUALIFIED"`
	WarningAck       bool       `json:"warning_acknowledged"`
	ForceReason      *string    `json:"force_reason"`
	SecondOperatorID *string    `json:"second_operator_id"`
}

func (req *receiveRequest) toInput(r *http.Request) *service.ReceiveInput {
	return &service.ReceiveInput{
		DrugID:           req.DrugID,
		BatchNumber:      req.BatchNumber,
		Quantity:         req.Quantity,
		ExpiryDate:       req.ExpiryDate,
		ProductionDate:   req.ProductionDate,
		ArrivalDate:      req.ArrivalDate,
		Manufacturer:     req.Manufacturer,
		StorageLocation:  req.StorageLocation,
		DeliveryNoteRef:  req.DeliveryNoteRef,
		Status:           req.Status,
		WarningAck:       req.WarningAck,
		ForceReason:      req.ForceReason,
		OperatorID:       r.Header.Get("X-Operator-ID"),
		SecondOperatorID: req.SecondOperatorID,
	}
}

// ReceiveFromOrder records a receipt against a purchase order
func (h *InboundHandler) ReceiveFromOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	var req receiveRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	input := req.toInput(r)
	input.OrderID = &orderID

	rec, err := h.service.ReceiveFromOrder(r.Context(), input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, rec)
}

// ReceiveTemporary records a receipt without a purchase order
func (h *InboundHandler) ReceiveTemporary(w http.ResponseWriter, r *http.Request) {
	var req receiveRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	rec, err := h.service.ReceiveTemporary(r.Context(), req.toInput(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, rec)
}

// Get gets a receipt by document number
func (h *InboundHandler) Get(w http.ResponseWriter, r *http.Request) {
	documentNumber := chi.URLParam(r, "documentNumber")

	rec, err := h.service.GetByDocumentNumber(r.Context(), documentNumber)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rec)
}

// ListByOrder lists receipts against an order
func (h *InboundHandler) ListByOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	recs, err := h.service.ListByOrder(r.Context(), orderID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, recs)
}

// ReceivedQuantity reports the qualified quantity received against one
// order line
func (h *InboundHandler) ReceivedQuantity(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	drugID := r.URL.Query().Get("drug_id")
	if drugID == "" {
		httputil.Error(w, errors.BadRequest("drug_id is required"))
		return
	}

	received, err := h.service.ReceivedQuantity(r.Context(), orderID, drugID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"order_id":          orderID,
		"drug_id":           drugID,
		"received_quantity": received,
	})
}

// List lists receipts with pagination
func (h *InboundHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := pagination(r)

	recs, total, err := h.service.List(r.Context(), page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, recs, paginationMeta(page, perPage, total))
}

// pagination parses page/per_page query parameters with sane bounds
func pagination(r *http.Request) (page, perPage int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}

func paginationMeta(page, perPage int, total int64) *httputil.Meta {
	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}
	return &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}
}
