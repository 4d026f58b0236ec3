package service

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pharmstock/pharmstock-backend/internal/warehouse/events"
	"github.com/pharmstock/pharmstock-backend/internal/warehouse/repository"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
	"github.com/pharmstock/pharmstock-backend/pkg/messaging"
)

// AdjustmentService corrects batch quantities to counted values,
// leaving an immutable audit row for every correction.
type AdjustmentService struct {
	db             *database.DB
	adjustmentRepo *repository.AdjustmentRepository
	batchRepo      *repository.BatchRepository
	drugRepo       *repository.DrugRepository
	sequencer      *DocumentSequencer
	gate           *ApprovalGate
	publisher      *events.WarehouseEventPublisher
	logger         *logger.Logger
}

// NewAdjustmentService creates a new adjustment service
func NewAdjustmentService(
	db *database.DB,
	adjustmentRepo *repository.AdjustmentRepository,
	batchRepo *repository.BatchRepository,
	drugRepo *repository.DrugRepository,
	sequencer *DocumentSequencer,
	gate *ApprovalGate,
	publisher *events.WarehouseEventPublisher,
	log *logger.Logger,
) *AdjustmentService {
	return &AdjustmentService{
		db:             db,
		adjustmentRepo: adjustmentRepo,
		batchRepo:      batchRepo,
		drugRepo:       drugRepo,
		sequencer:      sequencer,
		gate:           gate,
		publisher:      publisher,
		logger:         log,
	}
}

// AdjustmentInput describes one absolute quantity correction
type AdjustmentInput struct {
	DrugID           string
	BatchNumber      string
	NewQuantity      int
	Reason           string
	OperatorID       string
	SecondOperatorID *string
}

// CreateAdjustment sets a batch to an absolute counted quantity. The
// batch row is locked for the duration so the recorded before value is
// the value actually replaced.
func (s *AdjustmentService) CreateAdjustment(ctx context.Context, input *AdjustmentInput) (*repository.InventoryAdjustment, error) {
	if input.NewQuantity < 0 {
		return nil, errors.BadRequest("adjusted quantity cannot be negative")
	}
	if input.Reason == "" {
		return nil, errors.BadRequest("adjustment requires a reason")
	}

	drug, err := s.drugRepo.GetByID(ctx, input.DrugID)
	if err != nil {
		return nil, err
	}
	if err := CheckOperators(input.OperatorID, input.SecondOperatorID, drug.IsSpecial); err != nil {
		return nil, err
	}

	documentNumber, err := s.sequencer.Next(ctx, DocKindAdjustment)
	if err != nil {
		return nil, err
	}

	adj := &repository.InventoryAdjustment{
		DocumentNumber:   documentNumber,
		DrugID:           input.DrugID,
		BatchNumber:      input.BatchNumber,
		QuantityAfter:    input.NewQuantity,
		Reason:           input.Reason,
		OperatorID:       input.OperatorID,
		SecondOperatorID: input.SecondOperatorID,
	}

	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		batchRepo := s.batchRepo.WithTx(tx)

		batch, err := batchRepo.GetByKeyForUpdate(ctx, input.DrugID, input.BatchNumber)
		if err != nil {
			return err
		}
		adj.QuantityBefore = batch.Quantity

		if err := batchRepo.SetQuantity(ctx, input.DrugID, input.BatchNumber, input.NewQuantity); err != nil {
			return err
		}

		if err := s.adjustmentRepo.WithTx(tx).Create(ctx, adj); err != nil {
			return database.MapError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("document_number", adj.DocumentNumber).
		Str("drug_id", adj.DrugID).
		Str("batch_number", adj.BatchNumber).
		Int("quantity_before", adj.QuantityBefore).
		Int("quantity_after", adj.QuantityAfter).
		Str("operator_id", adj.OperatorID).
		Msg("inventory adjustment recorded")

	s.publisher.PublishStockAdjusted(ctx, messaging.StockAdjustedEvent{
		DocumentNumber: adj.DocumentNumber,
		DrugID:         adj.DrugID,
		BatchNumber:    adj.BatchNumber,
		QuantityBefore: adj.QuantityBefore,
		QuantityAfter:  adj.QuantityAfter,
		Delta:          adj.AdjustmentQuantity,
		OperatorID:     adj.OperatorID,
	})

	return adj, nil
}

// ListByDrug lists adjustments for a drug
func (s *AdjustmentService) ListByDrug(ctx context.Context, drugID string) ([]*repository.InventoryAdjustment, error) {
	return s.adjustmentRepo.ListByDrug(ctx, drugID)
}
