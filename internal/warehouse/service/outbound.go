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

// OutboundService drives outbound applications through their lifecycle:
// PENDING, then APPROVED or REJECTED, then OUTBOUND on execution.
// CANCELLED is reachable from PENDING and APPROVED.
type OutboundService struct {
	db           *database.DB
	outboundRepo *repository.OutboundRepository
	batchRepo    *repository.BatchRepository
	drugRepo     *repository.DrugRepository
	sequencer    *DocumentSequencer
	gate         *ApprovalGate
	publisher    *events.WarehouseEventPublisher
	logger       *logger.Logger
}

// NewOutboundService creates a new outbound service
func NewOutboundService(
	db *database.DB,
	outboundRepo *repository.OutboundRepository,
	batchRepo *repository.BatchRepository,
	drugRepo *repository.DrugRepository,
	sequencer *DocumentSequencer,
	gate *ApprovalGate,
	publisher *events.WarehouseEventPublisher,
	log *logger.Logger,
) *OutboundService {
	return &OutboundService{
		db:           db,
		outboundRepo: outboundRepo,
		batchRepo:    batchRepo,
		drugRepo:     drugRepo,
		sequencer:    sequencer,
		gate:         gate,
		publisher:    publisher,
		logger:       log,
	}
}

// ApplicationInput describes a new outbound application
type ApplicationInput struct {
	ApplicantID string
	Department  string
	Purpose     *string
	Lines       []ApplicationLineInput
}

// ApplicationLineInput is one requested drug position. A pinned batch
// number bypasses FIFO allocation for that line.
type ApplicationLineInput struct {
	DrugID      string
	BatchNumber *string
	Quantity    int
}

// Allocation records stock taken from one batch during execution
type Allocation struct {
	DrugID      string `json:"drug_id"`
	BatchNumber string `json:"batch_number"`
	Quantity    int    `json:"quantity"`
}

// ExecuteLineInput overrides the quantity actually issued for one
// application line, identified by drug and pinned batch. Lines without
// an override issue their requested quantity.
type ExecuteLineInput struct {
	DrugID         string
	BatchNumber    *string
	ActualQuantity int
}

// Create creates a new PENDING application
func (s *OutboundService) Create(ctx context.Context, input *ApplicationInput) (*repository.OutboundApplication, error) {
	if input.ApplicantID == "" {
		return nil, errors.BadRequest("applicant is required")
	}
	if input.Department == "" {
		return nil, errors.BadRequest("department is required")
	}
	if len(input.Lines) == 0 {
		return nil, errors.BadRequest("application requires at least one line")
	}

	lines := make([]*repository.OutboundLine, len(input.Lines))
	for i, in := range input.Lines {
		if in.Quantity <= 0 {
			return nil, errors.BadRequest("line quantity must be positive")
		}
		if _, err := s.drugRepo.GetByID(ctx, in.DrugID); err != nil {
			return nil, err
		}
		lines[i] = &repository.OutboundLine{
			DrugID:            in.DrugID,
			BatchNumber:       in.BatchNumber,
			RequestedQuantity: in.Quantity,
		}
	}

	documentNumber, err := s.sequencer.Next(ctx, DocKindOutbound)
	if err != nil {
		return nil, err
	}

	app := &repository.OutboundApplication{
		DocumentNumber: documentNumber,
		ApplicantID:    input.ApplicantID,
		Department:     input.Department,
		Purpose:        input.Purpose,
		Status:         repository.OutboundPending,
	}

	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		return s.outboundRepo.WithTx(tx).Create(ctx, app, lines)
	})
	if err != nil {
		return nil, database.MapError(err)
	}

	s.logger.Info().
		Str("document_number", app.DocumentNumber).
		Str("applicant_id", app.ApplicantID).
		Int("lines", len(lines)).
		Msg("outbound application created")

	return app, nil
}

// Approve moves a PENDING application to APPROVED. An applicant may not
// approve their own application, and applications touching controlled
// drugs need a distinct second approver.
func (s *OutboundService) Approve(ctx context.Context, id, approverID string, secondApproverID *string) error {
	app, err := s.outboundRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if approverID == "" {
		return errors.BadRequest("approver is required")
	}
	if approverID == app.ApplicantID {
		return errors.BadRequest("applicant cannot approve their own application")
	}

	lines, err := s.outboundRepo.GetLines(ctx, id)
	if err != nil {
		return err
	}
	drugIDs := make([]string, len(lines))
	for i, line := range lines {
		drugIDs[i] = line.DrugID
	}

	dual, err := s.gate.RequiresDualControl(ctx, drugIDs...)
	if err != nil {
		return err
	}
	if err := CheckOperators(approverID, secondApproverID, dual); err != nil {
		return err
	}

	if err := s.outboundRepo.Approve(ctx, id, approverID, secondApproverID); err != nil {
		return err
	}

	s.publisher.PublishOutboundApproved(ctx, messaging.OutboundDecisionEvent{
		ApplicationID:  id,
		DocumentNumber: app.DocumentNumber,
		ApproverID:     approverID,
	})
	return nil
}

// Reject moves a PENDING application to REJECTED with a reason
func (s *OutboundService) Reject(ctx context.Context, id, approverID, reason string) error {
	if approverID == "" {
		return errors.BadRequest("approver is required")
	}
	if reason == "" {
		return errors.BadRequest("rejection requires a reason")
	}

	app, err := s.outboundRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.outboundRepo.Reject(ctx, id, approverID, reason); err != nil {
		return err
	}

	s.publisher.PublishOutboundRejected(ctx, messaging.OutboundDecisionEvent{
		ApplicationID:  id,
		DocumentNumber: app.DocumentNumber,
		ApproverID:     approverID,
		Reason:         reason,
	})
	return nil
}

// Cancel withdraws a PENDING or APPROVED application
func (s *OutboundService) Cancel(ctx context.Context, id string) error {
	return s.outboundRepo.Cancel(ctx, id)
}

// Execute issues the stock for an APPROVED application and moves it to
// OUTBOUND. Callers may supply per-line actual quantities when the
// issued amount differs from the requested one; uncovered lines issue
// their requested quantity. The whole execution is one transaction: the
// status flip, the batch deductions and the recorded actuals commit
// together, and any shortfall rolls everything back.
func (s *OutboundService) Execute(ctx context.Context, id string, actuals []ExecuteLineInput) ([]Allocation, error) {
	app, err := s.outboundRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	actualFor := make(map[lineKey]int, len(actuals))
	for _, in := range actuals {
		if in.ActualQuantity < 0 {
			return nil, errors.BadRequest("actual quantity must not be negative")
		}
		actualFor[newLineKey(in.DrugID, in.BatchNumber)] = in.ActualQuantity
	}

	var allocations []Allocation
	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		outboundRepo := s.outboundRepo.WithTx(tx)
		batchRepo := s.batchRepo.WithTx(tx)

		// The guarded flip goes first: it locks the application row
		// and makes a concurrent execution lose with a state conflict.
		if err := outboundRepo.MarkExecuted(ctx, id); err != nil {
			return err
		}

		lines, err := outboundRepo.GetLines(ctx, id)
		if err != nil {
			return err
		}

		allocations = allocations[:0]
		for _, line := range lines {
			quantity := line.RequestedQuantity
			key := newLineKey(line.DrugID, line.BatchNumber)
			if override, ok := actualFor[key]; ok {
				quantity = override
				delete(actualFor, key)
			}

			lineAllocs, err := s.allocateLine(ctx, batchRepo, line, quantity)
			if err != nil {
				return err
			}

			if err := outboundRepo.SetLineActual(ctx, line.ID, quantity); err != nil {
				return err
			}

			allocations = append(allocations, lineAllocs...)
		}

		if len(actualFor) > 0 {
			return errors.BadRequest("actual quantity supplied for a line not on the application")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("document_number", app.DocumentNumber).
		Int("allocations", len(allocations)).
		Msg("outbound application executed")

	for _, a := range allocations {
		s.publisher.PublishStockIssued(ctx, messaging.StockIssuedEvent{
			DocumentNumber: app.DocumentNumber,
			DrugID:         a.DrugID,
			BatchNumber:    a.BatchNumber,
			Quantity:       a.Quantity,
		})
	}

	return allocations, nil
}

// allocateLine draws the given quantity for one application line. A
// pinned batch is drawn down directly; otherwise available batches are
// consumed earliest expiry first until the quantity is covered.
func (s *OutboundService) allocateLine(ctx context.Context, batchRepo *repository.BatchRepository, line *repository.OutboundLine, quantity int) ([]Allocation, error) {
	if quantity == 0 {
		return nil, nil
	}

	if line.BatchNumber != nil {
		if err := batchRepo.Decrease(ctx, line.DrugID, *line.BatchNumber, quantity); err != nil {
			return nil, err
		}
		return []Allocation{{
			DrugID:      line.DrugID,
			BatchNumber: *line.BatchNumber,
			Quantity:    quantity,
		}}, nil
	}

	batches, err := batchRepo.ListAvailableForUpdate(ctx, line.DrugID)
	if err != nil {
		return nil, err
	}

	var allocs []Allocation
	remaining := quantity
	for _, batch := range batches {
		if remaining == 0 {
			break
		}

		take := remaining
		if batch.Quantity < take {
			take = batch.Quantity
		}

		if err := batchRepo.Decrease(ctx, line.DrugID, batch.BatchNumber, take); err != nil {
			return nil, err
		}

		allocs = append(allocs, Allocation{
			DrugID:      line.DrugID,
			BatchNumber: batch.BatchNumber,
			Quantity:    take,
		})
		remaining -= take
	}

	if remaining > 0 {
		return nil, errors.InsufficientStock(line.DrugID, "")
	}

	return allocs, nil
}

// lineKey identifies an application line by drug and pinned batch
type lineKey struct {
	drugID string
	batch  string
}

func newLineKey(drugID string, batchNumber *string) lineKey {
	key := lineKey{drugID: drugID}
	if batchNumber != nil {
		key.batch = *batchNumber
	}
	return key
}

// Get returns an application with its lines
func (s *OutboundService) Get(ctx context.Context, id string) (*repository.OutboundApplication, []*repository.OutboundLine, error) {
	app, err := s.outboundRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	lines, err := s.outboundRepo.GetLines(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return app, lines, nil
}

// List lists applications with pagination
func (s *OutboundService) List(ctx context.Context, page, perPage int, status string) ([]*repository.OutboundApplication, int64, error) {
	return s.outboundRepo.List(ctx, page, perPage, status)
}
