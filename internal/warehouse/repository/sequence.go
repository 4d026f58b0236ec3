package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
)

// SequenceRepository backs the document sequencer with a per-(kind, day)
// counter row. The upsert increments atomically, so two concurrent
// callers always observe distinct values.
type SequenceRepository struct {
	q database.Queryer
}

// NewSequenceRepository creates a new sequence repository
func NewSequenceRepository(db *database.DB) *SequenceRepository {
	return &SequenceRepository{q: db.DB}
}

// WithTx returns a copy of the repository bound to the transaction.
func (r *SequenceRepository) WithTx(tx *sqlx.Tx) *SequenceRepository {
	return &SequenceRepository{q: tx}
}

// NextValue allocates the next sequence value for the document kind on
// the given day.
func (r *SequenceRepository) NextValue(ctx context.Context, kind string, day time.Time) (int, error) {
	query := `
		INSERT INTO document_sequences (doc_type, seq_date, last_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (doc_type, seq_date) DO UPDATE
		SET last_value = document_sequences.last_value + 1
		RETURNING last_value
	`

	var value int
	if err := r.q.QueryRowxContext(ctx, query, kind, day.Format("2006-01-02")).Scan(&value); err != nil {
		return 0, err
	}
	return value, nil
}
