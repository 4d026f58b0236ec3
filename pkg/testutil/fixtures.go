package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// DrugFixture represents test drug catalog data
type DrugFixture struct {
	ID        string
	Code      string
	Name      string
	Unit      string
	IsSpecial bool
}

// BatchFixture represents test stock batch data
type BatchFixture struct {
	ID          string
	DrugID      string
	BatchNumber string
	Quantity    int
	ExpiryDate  *time.Time
}

// OrderFixture represents test purchase order data
type OrderFixture struct {
	ID             string
	DocumentNumber string
	Status         string
	Lines          []OrderLineFixture
}

// OrderLineFixture represents one test purchase order line
type OrderLineFixture struct {
	ID              string
	DrugID          string
	OrderedQuantity int
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Drug creates a drug fixture with defaults
func (f *FixtureFactory) Drug(opts ...func(*DrugFixture)) DrugFixture {
	seq := f.nextSeq()

	drug := DrugFixture{
		ID:        uuid.New().String(),
		Code:      fmt.Sprintf("DRUG-%04d", seq),
		Name:      fmt.Sprintf("Test Drug %d", seq),
		Unit:      "box",
		IsSpecial: false,
	}

	for _, opt := range opts {
		opt(&drug)
	}

	return drug
}

// AsSpecial marks the drug as controlled
func AsSpecial() func(*DrugFixture) {
	return func(d *DrugFixture) {
		d.IsSpecial = true
	}
}

// Batch creates a batch fixture for a drug. Expiry defaults to one year
// out so the batch is allocatable.
func (f *FixtureFactory) Batch(drugID string, quantity int, opts ...func(*BatchFixture)) BatchFixture {
	seq := f.nextSeq()
	expiry := time.Now().AddDate(1, 0, 0)

	batch := BatchFixture{
		ID:          uuid.New().String(),
		DrugID:      drugID,
		BatchNumber: fmt.Sprintf("LOT%04d", seq),
		Quantity:    quantity,
		ExpiryDate:  &expiry,
	}

	for _, opt := range opts {
		opt(&batch)
	}

	return batch
}

// WithExpiry sets the batch expiry date
func WithExpiry(expiry time.Time) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.ExpiryDate = &expiry
	}
}

// WithBatchNumber sets the batch number
func WithBatchNumber(number string) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.BatchNumber = number
	}
}

// Order creates a shipped purchase order fixture with the given lines
func (f *FixtureFactory) Order(lines ...OrderLineFixture) OrderFixture {
	seq := f.nextSeq()

	return OrderFixture{
		ID:             uuid.New().String(),
		DocumentNumber: fmt.Sprintf("PO2026%04d", seq),
		Status:         "SHIPPED",
		Lines:          lines,
	}
}

// OrderLine creates a purchase order line fixture
func (f *FixtureFactory) OrderLine(drugID string, quantity int) OrderLineFixture {
	return OrderLineFixture{
		ID:              uuid.New().String(),
		DrugID:          drugID,
		OrderedQuantity: quantity,
	}
}

// SeedDrug inserts a drug fixture
func (f *FixtureFactory) SeedDrug(t *testing.T, ctx context.Context, db *sqlx.DB, drug DrugFixture) {
	t.Helper()
	_, err := db.ExecContext(ctx, `
		INSERT INTO drugs (id, code, name, unit, is_special)
		VALUES ($1, $2, $3, $4, $5)
	`, drug.ID, drug.Code, drug.Name, drug.Unit, drug.IsSpecial)
	if err != nil {
		t.Fatalf("failed to seed drug: %v", err)
	}
}

// SeedBatch inserts a stock batch fixture
func (f *FixtureFactory) SeedBatch(t *testing.T, ctx context.Context, db *sqlx.DB, batch BatchFixture) {
	t.Helper()
	_, err := db.ExecContext(ctx, `
		INSERT INTO stock_batches (id, drug_id, batch_number, quantity, expiry_date)
		VALUES ($1, $2, $3, $4, $5)
	`, batch.ID, batch.DrugID, batch.BatchNumber, batch.Quantity, batch.ExpiryDate)
	if err != nil {
		t.Fatalf("failed to seed batch: %v", err)
	}
}

// SeedOrder inserts a purchase order fixture with its lines
func (f *FixtureFactory) SeedOrder(t *testing.T, ctx context.Context, db *sqlx.DB, order OrderFixture) {
	t.Helper()
	_, err := db.ExecContext(ctx, `
		INSERT INTO purchase_orders (id, document_number, status)
		VALUES ($1, $2, $3)
	`, order.ID, order.DocumentNumber, order.Status)
	if err != nil {
		t.Fatalf("failed to seed order: %v", err)
	}

	for _, line := range order.Lines {
		_, err := db.ExecContext(ctx, `
			INSERT INTO purchase_order_lines (id, order_id, drug_id, ordered_quantity)
			VALUES ($1, $2, $3, $4)
		`, line.ID, order.ID, line.DrugID, line.OrderedQuantity)
		if err != nil {
			t.Fatalf("failed to seed order line: %v", err)
		}
	}
}
