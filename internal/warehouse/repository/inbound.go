package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
)

// Inbound acceptance statuses
const (
	InboundQualified   = "QUALIFIED"
	InboundUnqualified = "UNQUALIFIED"
)

// InboundRecord is an immutable receipt event. Records are append-only;
// corrections happen through inventory adjustments, never by rewriting a
// receipt.
type InboundRecord struct {
	ID                  string     `db:"id" json:"id"`
	DocumentNumber      string     `db:"document_number" json:"document_number"`
	OrderID             *string    `db:"order_id" json:"order_id,omitempty"`
	DrugID              string     `db:"drug_id" json:"drug_id"`
	BatchNumber         string     `db:"batch_number" json:"batch_number"`
	Quantity            int        `db:"quantity" json:"quantity"`
	ExpiryDate          *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	ProductionDate      *time.Time `db:"production_date" json:"production_date,omitempty"`
	ArrivalDate         *time.Time `db:"arrival_date" json:"arrival_date,omitempty"`
	Manufacturer        *string    `db:"manufacturer" json:"manufacturer,omitempty"`
	StorageLocation     *string    `db:"storage_location" json:"storage_location,omitempty"`
	DeliveryNoteRef     *string    `db:"delivery_note_ref" json:"delivery_note_ref,omitempty"`
	AdmissionTier       string     `db:"admission_tier" json:"admission_tier"`
	WarningAcknowledged bool       `db:"warning_acknowledged" json:"warning_acknowledged"`
	ForceReason         *string    `db:"force_reason" json:"force_reason,omitempty"`
	Status              string     `db:"status" json:"status"`
	OperatorID          string     `db:"operator_id" json:"operator_id"`
	SecondOperatorID    *string    `db:"second_operator_id" json:"second_operator_id,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
}

// InboundRepository handles inbound receipt persistence
type InboundRepository struct {
	q database.Queryer
}

// NewInboundRepository creates a new inbound repository
func NewInboundRepository(db *database.DB) *InboundRepository {
	return &InboundRepository{q: db.DB}
}

// WithTx returns a copy of the repository bound to the transaction.
func (r *InboundRepository) WithTx(tx *sqlx.Tx) *InboundRepository {
	return &InboundRepository{q: tx}
}

// Create creates a new inbound record
func (r *InboundRepository) Create(ctx context.Context, rec *InboundRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	query := `
		INSERT INTO inbound_records (
			id, document_number, order_id, drug_id, batch_number, quantity,
			expiry_date, production_date, arrival_date, manufacturer,
			storage_location, delivery_note_ref, admission_tier,
			warning_acknowledged, force_reason, status, operator_id, second_operator_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING created_at
	`

	return r.q.QueryRowxContext(ctx, query,
		rec.ID, rec.DocumentNumber, rec.OrderID, rec.DrugID, rec.BatchNumber, rec.Quantity,
		rec.ExpiryDate, rec.ProductionDate, rec.ArrivalDate, rec.Manufacturer,
		rec.StorageLocation, rec.DeliveryNoteRef, rec.AdmissionTier,
		rec.WarningAcknowledged, rec.ForceReason, rec.Status, rec.OperatorID, rec.SecondOperatorID,
	).Scan(&rec.CreatedAt)
}

// GetByDocumentNumber gets a receipt by its document number
func (r *InboundRepository) GetByDocumentNumber(ctx context.Context, documentNumber string) (*InboundRecord, error) {
	var rec InboundRecord
	query := `SELECT * FROM inbound_records WHERE document_number = $1`
	if err := r.q.GetContext(ctx, &rec, query, documentNumber); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("inbound record")
		}
		return nil, err
	}
	return &rec, nil
}

// SumQualified returns the cumulative qualified quantity received against
// an order line.
func (r *InboundRepository) SumQualified(ctx context.Context, orderID, drugID string) (int, error) {
	var total sql.NullInt64
	query := `
		SELECT SUM(quantity) FROM inbound_records
		WHERE order_id = $1 AND drug_id = $2 AND status = $3
	`
	if err := r.q.GetContext(ctx, &total, query, orderID, drugID, InboundQualified); err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return int(total.Int64), nil
}

// ListByOrder lists receipts against an order, newest first
func (r *InboundRepository) ListByOrder(ctx context.Context, orderID string) ([]*InboundRecord, error) {
	var recs []*InboundRecord
	query := `
		SELECT * FROM inbound_records
		WHERE order_id = $1
		ORDER BY created_at DESC
	`
	if err := r.q.SelectContext(ctx, &recs, query, orderID); err != nil {
		return nil, err
	}
	return recs, nil
}

// List lists receipts with pagination, newest first
func (r *InboundRepository) List(ctx context.Context, page, perPage int) ([]*InboundRecord, int64, error) {
	var total int64
	if err := r.q.GetContext(ctx, &total, `SELECT COUNT(*) FROM inbound_records`); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	var recs []*InboundRecord
	query := `
		SELECT * FROM inbound_records
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	if err := r.q.SelectContext(ctx, &recs, query, perPage, offset); err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}
