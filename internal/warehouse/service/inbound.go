package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pharmstock/pharmstock-backend/internal/warehouse/events"
	"github.com/pharmstock/pharmstock-backend/internal/warehouse/repository"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
	"github.com/pharmstock/pharmstock-backend/pkg/messaging"
)

// InboundService handles receipt of stock into the warehouse
type InboundService struct {
	db          *database.DB
	inboundRepo *repository.InboundRepository
	batchRepo   *repository.BatchRepository
	orderRepo   *repository.OrderRepository
	drugRepo    *repository.DrugRepository
	sequencer   *DocumentSequencer
	admission   *AdmissionService
	gate        *ApprovalGate
	publisher   *events.WarehouseEventPublisher
	logger      *logger.Logger
}

// NewInboundService creates a new inbound service
func NewInboundService(
	db *database.DB,
	inboundRepo *repository.InboundRepository,
	batchRepo *repository.BatchRepository,
	orderRepo *repository.OrderRepository,
	drugRepo *repository.DrugRepository,
	sequencer *DocumentSequencer,
	admission *AdmissionService,
	gate *ApprovalGate,
	publisher *events.WarehouseEventPublisher,
	log *logger.Logger,
) *InboundService {
	return &InboundService{
		db:          db,
		inboundRepo: inboundRepo,
		batchRepo:   batchRepo,
		orderRepo:   orderRepo,
		drugRepo:    drugRepo,
		sequencer:   sequencer,
		admission:   admission,
		gate:        gate,
		publisher:   publisher,
		logger:      log,
	}
}

// ReceiveInput describes one receipt of one drug batch
type ReceiveInput struct {
	OrderID          *string
	DrugID           string
	BatchNumber      string
	Quantity         int
	ExpiryDate       *time.Time
	ProductionDate   *time.Time
	ArrivalDate      *time.Time
	Manufacturer     *string
	StorageLocation  *string
	DeliveryNoteRef  *string
	Status           string
	WarningAck       bool
	ForceReason      *string
	OperatorID       string
	SecondOperatorID *string
}

// ReceiveFromOrder records a receipt against a purchase order line.
// Qualified quantities count toward the line and may not exceed it; the
// order flips to RECEIVED once every line is fully covered.
func (s *InboundService) ReceiveFromOrder(ctx context.Context, input *ReceiveInput) (*repository.InboundRecord, error) {
	if input.OrderID == nil || *input.OrderID == "" {
		return nil, errors.BadRequest("order id is required")
	}

	order, err := s.orderRepo.GetByID(ctx, *input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != repository.OrderShipped {
		return nil, errors.StateConflict("cannot receive against order in status " + order.Status)
	}

	if _, err := s.orderRepo.GetLine(ctx, order.ID, input.DrugID); err != nil {
		return nil, err
	}

	rec, err := s.prepare(ctx, input)
	if err != nil {
		return nil, err
	}

	var newQty int
	var orderDone bool
	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if rec.Status == repository.InboundQualified {
			// Re-read the line under lock so concurrent receipts
			// serialize on the over-receipt check.
			line, err := s.orderRepo.WithTx(tx).GetLineForUpdate(ctx, order.ID, input.DrugID)
			if err != nil {
				return err
			}

			received, err := s.inboundRepo.WithTx(tx).SumQualified(ctx, order.ID, input.DrugID)
			if err != nil {
				return err
			}
			if received+input.Quantity > line.OrderedQuantity {
				return errors.OverReceipt(order.ID, input.DrugID, line.OrderedQuantity, received+input.Quantity)
			}
		}

		if err := s.inboundRepo.WithTx(tx).Create(ctx, rec); err != nil {
			return database.MapError(err)
		}

		if rec.Status == repository.InboundQualified {
			newQty, err = s.batchRepo.WithTx(tx).Increase(ctx, &repository.StockBatch{
				DrugID:          input.DrugID,
				BatchNumber:     input.BatchNumber,
				Quantity:        input.Quantity,
				ExpiryDate:      input.ExpiryDate,
				ProductionDate:  input.ProductionDate,
				Manufacturer:    input.Manufacturer,
				StorageLocation: input.StorageLocation,
			})
			if err != nil {
				return database.MapError(err)
			}

			orderDone, err = s.flipOrderIfComplete(ctx, tx, order.ID)
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logReceipt(rec, newQty)
	if rec.Status == repository.InboundQualified {
		s.publisher.PublishStockReceived(ctx, messaging.StockReceivedEvent{
			DocumentNumber: rec.DocumentNumber,
			DrugID:         rec.DrugID,
			BatchNumber:    rec.BatchNumber,
			Quantity:       rec.Quantity,
			NewQuantity:    newQty,
			AdmissionTier:  rec.AdmissionTier,
			OperatorID:     rec.OperatorID,
		})
	}
	if orderDone {
		s.publisher.PublishOrderReceived(ctx, order.ID)
	}

	return rec, nil
}

// ReceiveTemporary records a receipt with no purchase order behind it,
// for deliveries that arrive ahead of the paperwork.
func (s *InboundService) ReceiveTemporary(ctx context.Context, input *ReceiveInput) (*repository.InboundRecord, error) {
	input.OrderID = nil

	rec, err := s.prepare(ctx, input)
	if err != nil {
		return nil, err
	}

	var newQty int
	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := s.inboundRepo.WithTx(tx).Create(ctx, rec); err != nil {
			return database.MapError(err)
		}

		if rec.Status == repository.InboundQualified {
			var err error
			newQty, err = s.batchRepo.WithTx(tx).Increase(ctx, &repository.StockBatch{
				DrugID:          input.DrugID,
				BatchNumber:     input.BatchNumber,
				Quantity:        input.Quantity,
				ExpiryDate:      input.ExpiryDate,
				ProductionDate:  input.ProductionDate,
				Manufacturer:    input.Manufacturer,
				StorageLocation: input.StorageLocation,
			})
			if err != nil {
				return database.MapError(err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logReceipt(rec, newQty)
	if rec.Status == repository.InboundQualified {
		s.publisher.PublishStockReceived(ctx, messaging.StockReceivedEvent{
			DocumentNumber: rec.DocumentNumber,
			DrugID:         rec.DrugID,
			BatchNumber:    rec.BatchNumber,
			Quantity:       rec.Quantity,
			NewQuantity:    newQty,
			AdmissionTier:  rec.AdmissionTier,
			OperatorID:     rec.OperatorID,
		})
	}

	return rec, nil
}

// prepare validates a receipt, runs the admission and approval checks
// and allocates its document number.
func (s *InboundService) prepare(ctx context.Context, input *ReceiveInput) (*repository.InboundRecord, error) {
	if input.Quantity <= 0 {
		return nil, errors.BadRequest("quantity must be positive")
	}
	if input.BatchNumber == "" {
		return nil, errors.BadRequest("batch number is required")
	}
	if input.Status != repository.InboundQualified && input.Status != repository.InboundUnqualified {
		return nil, errors.BadRequest("status must be QUALIFIED or UNQUALIFIED")
	}

	drug, err := s.drugRepo.GetByID(ctx, input.DrugID)
	if err != nil {
		return nil, err
	}

	if err := CheckOperators(input.OperatorID, input.SecondOperatorID, drug.IsSpecial); err != nil {
		return nil, err
	}

	tier := s.admission.Evaluate(ctx, input.ExpiryDate)
	if err := CheckAdmission(tier, input.ForceReason); err != nil {
		return nil, err
	}

	documentNumber, err := s.sequencer.Next(ctx, DocKindInbound)
	if err != nil {
		return nil, err
	}

	return &repository.InboundRecord{
		DocumentNumber:      documentNumber,
		OrderID:             input.OrderID,
		DrugID:              input.DrugID,
		BatchNumber:         input.BatchNumber,
		Quantity:            input.Quantity,
		ExpiryDate:          input.ExpiryDate,
		ProductionDate:      input.ProductionDate,
		ArrivalDate:         input.ArrivalDate,
		Manufacturer:        input.Manufacturer,
		StorageLocation:     input.StorageLocation,
		DeliveryNoteRef:     input.DeliveryNoteRef,
		AdmissionTier:       tier,
		WarningAcknowledged: input.WarningAck,
		ForceReason:         input.ForceReason,
		Status:              input.Status,
		OperatorID:          input.OperatorID,
		SecondOperatorID:    input.SecondOperatorID,
	}, nil
}

// flipOrderIfComplete flips the order to RECEIVED when every line is
// fully covered by qualified receipts. Runs inside the receipt
// transaction so the flip and the receipt commit together.
func (s *InboundService) flipOrderIfComplete(ctx context.Context, tx *sqlx.Tx, orderID string) (bool, error) {
	orderRepo := s.orderRepo.WithTx(tx)
	inboundRepo := s.inboundRepo.WithTx(tx)

	lines, err := orderRepo.ListLines(ctx, orderID)
	if err != nil {
		return false, err
	}

	for _, line := range lines {
		received, err := inboundRepo.SumQualified(ctx, orderID, line.DrugID)
		if err != nil {
			return false, err
		}
		if received < line.OrderedQuantity {
			return false, nil
		}
	}

	return orderRepo.MarkReceived(ctx, orderID)
}

func (s *InboundService) logReceipt(rec *repository.InboundRecord, newQty int) {
	event := s.logger.Info().
		Str("document_number", rec.DocumentNumber).
		Str("drug_id", rec.DrugID).
		Str("batch_number", rec.BatchNumber).
		Int("quantity", rec.Quantity).
		Str("admission_tier", rec.AdmissionTier).
		Str("status", rec.Status)
	if rec.Status == repository.InboundQualified {
		event = event.Int("new_quantity", newQty)
	}
	event.Msg("inbound receipt recorded")
}

// GetByDocumentNumber gets a receipt by document number
func (s *InboundService) GetByDocumentNumber(ctx context.Context, documentNumber string) (*repository.InboundRecord, error) {
	return s.inboundRepo.GetByDocumentNumber(ctx, documentNumber)
}

// ReceivedQuantity returns the qualified quantity received so far
// against one purchase order line
func (s *InboundService) ReceivedQuantity(ctx context.Context, orderID, drugID string) (int, error) {
	if _, err := s.orderRepo.GetLine(ctx, orderID, drugID); err != nil {
		return 0, err
	}
	return s.inboundRepo.SumQualified(ctx, orderID, drugID)
}

// ListByOrder lists receipts against a purchase order
func (s *InboundService) ListByOrder(ctx context.Context, orderID string) ([]*repository.InboundRecord, error) {
	if _, err := s.orderRepo.GetByID(ctx, orderID); err != nil {
		return nil, err
	}
	return s.inboundRepo.ListByOrder(ctx, orderID)
}

// List lists receipts with pagination
func (s *InboundService) List(ctx context.Context, page, perPage int) ([]*repository.InboundRecord, int64, error) {
	return s.inboundRepo.List(ctx, page, perPage)
}
