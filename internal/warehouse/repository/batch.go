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

// StockBatch represents the stock of one drug under one batch number.
// A batch is created on first qualified receipt and never physically
// removed; it may sit at quantity zero.
type StockBatch struct {
	ID              string     `db:"id" json:"id"`
	DrugID          string     `db:"drug_id" json:"drug_id"`
	BatchNumber     string     `db:"batch_number" json:"batch_number"`
	Quantity        int        `db:"quantity" json:"quantity"`
	ExpiryDate      *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	ProductionDate  *time.Time `db:"production_date" json:"production_date,omitempty"`
	Manufacturer    *string    `db:"manufacturer" json:"manufacturer,omitempty"`
	StorageLocation *string    `db:"storage_location" json:"storage_location,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// NearExpiryCounts holds the two near-expiry buckets. Red counts batches
// inside the tighter window and is a subset of yellow's window.
type NearExpiryCounts struct {
	Yellow int64 `json:"yellow"`
	Red    int64 `json:"red"`
}

// BatchRepository owns per-(drug, batch) quantities. All quantity
// mutations are single atomic statements.
type BatchRepository struct {
	q database.Queryer
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{q: db.DB}
}

// WithTx returns a copy of the repository bound to the transaction.
func (r *BatchRepository) WithTx(tx *sqlx.Tx) *BatchRepository {
	return &BatchRepository{q: tx}
}

// GetByKey gets a batch by its (drug, batch number) key
func (r *BatchRepository) GetByKey(ctx context.Context, drugID, batchNumber string) (*StockBatch, error) {
	var batch StockBatch
	query := `SELECT * FROM stock_batches WHERE drug_id = $1 AND batch_number = $2`
	if err := r.q.GetContext(ctx, &batch, query, drugID, batchNumber); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &batch, nil
}

// GetByKeyForUpdate is GetByKey with a row lock, for use inside an
// adjustment transaction so the before snapshot stays valid.
func (r *BatchRepository) GetByKeyForUpdate(ctx context.Context, drugID, batchNumber string) (*StockBatch, error) {
	var batch StockBatch
	query := `SELECT * FROM stock_batches WHERE drug_id = $1 AND batch_number = $2 FOR UPDATE`
	if err := r.q.GetContext(ctx, &batch, query, drugID, batchNumber); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &batch, nil
}

// Increase adds qty to the batch, creating it on first receipt. Metadata
// of an existing batch is left as originally recorded. Returns the
// resulting quantity.
func (r *BatchRepository) Increase(ctx context.Context, batch *StockBatch) (int, error) {
	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}

	query := `
		INSERT INTO stock_batches (
			id, drug_id, batch_number, quantity, expiry_date,
			production_date, manufacturer, storage_location
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (drug_id, batch_number) DO UPDATE
		SET quantity = stock_batches.quantity + EXCLUDED.quantity,
		    updated_at = NOW()
		RETURNING quantity
	`

	var newQty int
	err := r.q.QueryRowxContext(ctx, query,
		batch.ID, batch.DrugID, batch.BatchNumber, batch.Quantity,
		batch.ExpiryDate, batch.ProductionDate, batch.Manufacturer, batch.StorageLocation,
	).Scan(&newQty)
	if err != nil {
		return 0, err
	}
	return newQty, nil
}

// Decrease subtracts qty from the batch with a conditional update, so a
// concurrent execution can never drive the quantity negative.
func (r *BatchRepository) Decrease(ctx context.Context, drugID, batchNumber string, qty int) error {
	query := `
		UPDATE stock_batches
		SET quantity = quantity - $3, updated_at = NOW()
		WHERE drug_id = $1 AND batch_number = $2 AND quantity >= $3
	`

	result, err := r.q.ExecContext(ctx, query, drugID, batchNumber, qty)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		if _, err := r.GetByKey(ctx, drugID, batchNumber); err != nil {
			return err
		}
		return errors.InsufficientStock(drugID, batchNumber)
	}

	return nil
}

// SetQuantity sets the batch quantity to an absolute value. Adjustments
// always target an existing batch snapshot.
func (r *BatchRepository) SetQuantity(ctx context.Context, drugID, batchNumber string, newQty int) error {
	query := `
		UPDATE stock_batches
		SET quantity = $3, updated_at = NOW()
		WHERE drug_id = $1 AND batch_number = $2
	`

	result, err := r.q.ExecContext(ctx, query, drugID, batchNumber, newQty)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("batch")
	}

	return nil
}

// TotalQuantity sums the quantity over all batches holding stock
func (r *BatchRepository) TotalQuantity(ctx context.Context) (int64, error) {
	var total sql.NullInt64
	query := `SELECT SUM(quantity) FROM stock_batches WHERE quantity > 0`
	if err := r.q.GetContext(ctx, &total, query); err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return total.Int64, nil
}

// CountNearExpiry counts batches holding stock whose expiry falls within
// (today, today+warningDays] and (today, today+criticalDays].
func (r *BatchRepository) CountNearExpiry(ctx context.Context, warningDays, criticalDays int) (*NearExpiryCounts, error) {
	var counts NearExpiryCounts
	query := `
		SELECT
			COUNT(*) FILTER (WHERE expiry_date <= CURRENT_DATE + $1::int) AS yellow,
			COUNT(*) FILTER (WHERE expiry_date <= CURRENT_DATE + $2::int) AS red
		FROM stock_batches
		WHERE quantity > 0 AND expiry_date > CURRENT_DATE
	`
	if err := r.q.QueryRowxContext(ctx, query, warningDays, criticalDays).Scan(&counts.Yellow, &counts.Red); err != nil {
		return nil, err
	}
	return &counts, nil
}

// ListAvailable returns the batches eligible for allocation: stock on
// hand and not yet expired, earliest expiry first. Ties break on batch
// number so the order is deterministic.
func (r *BatchRepository) ListAvailable(ctx context.Context, drugID string) ([]*StockBatch, error) {
	var batches []*StockBatch
	query := `
		SELECT * FROM stock_batches
		WHERE drug_id = $1 AND quantity > 0 AND expiry_date >= CURRENT_DATE
		ORDER BY expiry_date, batch_number
	`
	if err := r.q.SelectContext(ctx, &batches, query, drugID); err != nil {
		return nil, err
	}
	return batches, nil
}

// ListAvailableForUpdate is ListAvailable with row locks, for use inside
// an outbound execution transaction.
func (r *BatchRepository) ListAvailableForUpdate(ctx context.Context, drugID string) ([]*StockBatch, error) {
	var batches []*StockBatch
	query := `
		SELECT * FROM stock_batches
		WHERE drug_id = $1 AND quantity > 0 AND expiry_date >= CURRENT_DATE
		ORDER BY expiry_date, batch_number
		FOR UPDATE
	`
	if err := r.q.SelectContext(ctx, &batches, query, drugID); err != nil {
		return nil, err
	}
	return batches, nil
}

// ListByDrug lists all batches for a drug, including empty ones
func (r *BatchRepository) ListByDrug(ctx context.Context, drugID string) ([]*StockBatch, error) {
	var batches []*StockBatch
	query := `
		SELECT * FROM stock_batches
		WHERE drug_id = $1
		ORDER BY expiry_date, batch_number
	`
	if err := r.q.SelectContext(ctx, &batches, query, drugID); err != nil {
		return nil, err
	}
	return batches, nil
}
