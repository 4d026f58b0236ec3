package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
)

// InventoryAdjustment is an append-only audit row for an absolute
// quantity correction. Never mutated after creation.
type InventoryAdjustment struct {
	ID                 string    `db:"id" json:"id"`
	DocumentNumber     string    `db:"document_number" json:"document_number"`
	DrugID             string    `db:"drug_id" json:"drug_id"`
	BatchNumber        string    `db:"batch_number" json:"batch_number"`
	QuantityBefore     int       `db:"quantity_before" json:"quantity_before"`
	QuantityAfter      int       `db:"quantity_after" json:"quantity_after"`
	AdjustmentQuantity int       `db:"adjustment_quantity" json:"adjustment_quantity"`
	Reason             string    `db:"reason" json:"reason"`
	OperatorID         string    `db:"operator_id" json:"operator_id"`
	SecondOperatorID   *string   `db:"second_operator_id" json:"second_operator_id,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// AdjustmentRepository handles adjustment audit persistence
type AdjustmentRepository struct {
	q database.Queryer
}

// NewAdjustmentRepository creates a new adjustment repository
func NewAdjustmentRepository(db *database.DB) *AdjustmentRepository {
	return &AdjustmentRepository{q: db.DB}
}

// WithTx returns a copy of the repository bound to the transaction.
func (r *AdjustmentRepository) WithTx(tx *sqlx.Tx) *AdjustmentRepository {
	return &AdjustmentRepository{q: tx}
}

// Create creates a new adjustment row. The delta is derived, never
// supplied by the caller.
func (r *AdjustmentRepository) Create(ctx context.Context, adj *InventoryAdjustment) error {
	if adj.ID == "" {
		adj.ID = uuid.New().String()
	}
	adj.AdjustmentQuantity = adj.QuantityAfter - adj.QuantityBefore

	query := `
		INSERT INTO inventory_adjustments (
			id, document_number, drug_id, batch_number, quantity_before,
			quantity_after, adjustment_quantity, reason, operator_id, second_operator_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`

	return r.q.QueryRowxContext(ctx, query,
		adj.ID, adj.DocumentNumber, adj.DrugID, adj.BatchNumber, adj.QuantityBefore,
		adj.QuantityAfter, adj.AdjustmentQuantity, adj.Reason, adj.OperatorID, adj.SecondOperatorID,
	).Scan(&adj.CreatedAt)
}

// ListByDrug lists adjustments for a drug, newest first
func (r *AdjustmentRepository) ListByDrug(ctx context.Context, drugID string) ([]*InventoryAdjustment, error) {
	var adjs []*InventoryAdjustment
	query := `
		SELECT * FROM inventory_adjustments
		WHERE drug_id = $1
		ORDER BY created_at DESC
	`
	if err := r.q.SelectContext(ctx, &adjs, query, drugID); err != nil {
		return nil, err
	}
	return adjs, nil
}
