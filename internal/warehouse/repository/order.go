package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
)

// Purchase order statuses
const (
	OrderCreated  = "CREATED"
	OrderShipped  = "SHIPPED"
	OrderReceived = "RECEIVED"
)

// PurchaseOrder is read-only from the warehouse core's perspective except
// for the SHIPPED to RECEIVED flip once every line is fully received.
type PurchaseOrder struct {
	ID             string    `db:"id" json:"id"`
	DocumentNumber string    `db:"document_number" json:"document_number"`
	Supplier       *string   `db:"supplier" json:"supplier,omitempty"`
	Status         string    `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// PurchaseOrderLine is one drug position on a purchase order
type PurchaseOrderLine struct {
	ID              string `db:"id" json:"id"`
	OrderID         string `db:"order_id" json:"order_id"`
	DrugID          string `db:"drug_id" json:"drug_id"`
	OrderedQuantity int    `db:"ordered_quantity" json:"ordered_quantity"`
}

// OrderRepository handles purchase order persistence
type OrderRepository struct {
	q database.Queryer
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *database.DB) *OrderRepository {
	return &OrderRepository{q: db.DB}
}

// WithTx returns a copy of the repository bound to the transaction.
func (r *OrderRepository) WithTx(tx *sqlx.Tx) *OrderRepository {
	return &OrderRepository{q: tx}
}

// GetByID gets a purchase order by ID
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*PurchaseOrder, error) {
	var order PurchaseOrder
	query := `SELECT * FROM purchase_orders WHERE id = $1`
	if err := r.q.GetContext(ctx, &order, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("purchase order")
		}
		return nil, err
	}
	return &order, nil
}

// GetLine gets the order line for a drug
func (r *OrderRepository) GetLine(ctx context.Context, orderID, drugID string) (*PurchaseOrderLine, error) {
	var line PurchaseOrderLine
	query := `SELECT * FROM purchase_order_lines WHERE order_id = $1 AND drug_id = $2`
	if err := r.q.GetContext(ctx, &line, query, orderID, drugID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("purchase order line")
		}
		return nil, err
	}
	return &line, nil
}

// GetLineForUpdate gets the order line for a drug and locks it for the
// duration of the transaction. The over-receipt check sums existing
// receipts against the lock so two concurrent receipts cannot both pass
// against the same remaining quantity.
func (r *OrderRepository) GetLineForUpdate(ctx context.Context, orderID, drugID string) (*PurchaseOrderLine, error) {
	var line PurchaseOrderLine
	query := `SELECT * FROM purchase_order_lines WHERE order_id = $1 AND drug_id = $2 FOR UPDATE`
	if err := r.q.GetContext(ctx, &line, query, orderID, drugID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("purchase order line")
		}
		return nil, err
	}
	return &line, nil
}

// ListLines lists all lines of an order
func (r *OrderRepository) ListLines(ctx context.Context, orderID string) ([]*PurchaseOrderLine, error) {
	var lines []*PurchaseOrderLine
	query := `SELECT * FROM purchase_order_lines WHERE order_id = $1 ORDER BY drug_id`
	if err := r.q.SelectContext(ctx, &lines, query, orderID); err != nil {
		return nil, err
	}
	return lines, nil
}

// MarkReceived flips the order to RECEIVED. The flip is only valid from
// SHIPPED; the guarded update makes a concurrent flip lose cleanly.
// Returns whether this call performed the transition.
func (r *OrderRepository) MarkReceived(ctx context.Context, orderID string) (bool, error) {
	query := `
		UPDATE purchase_orders
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`

	result, err := r.q.ExecContext(ctx, query, orderID, OrderReceived, OrderShipped)
	if err != nil {
		return false, err
	}

	affected, _ := result.RowsAffected()
	return affected > 0, nil
}
