package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
)

// Drug is a catalog entry. IsSpecial marks controlled drugs whose
// movements require dual-operator confirmation.
type Drug struct {
	ID           string    `db:"id" json:"id"`
	Code         string    `db:"code" json:"code"`
	Name         string    `db:"name" json:"name"`
	Unit         string    `db:"unit" json:"unit"`
	Manufacturer *string   `db:"manufacturer" json:"manufacturer,omitempty"`
	IsSpecial    bool      `db:"is_special" json:"is_special"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// DrugRepository handles drug catalog lookups
type DrugRepository struct {
	q database.Queryer
}

// NewDrugRepository creates a new drug repository
func NewDrugRepository(db *database.DB) *DrugRepository {
	return &DrugRepository{q: db.DB}
}

// WithTx returns a copy of the repository bound to the transaction.
func (r *DrugRepository) WithTx(tx *sqlx.Tx) *DrugRepository {
	return &DrugRepository{q: tx}
}

// GetByID gets a drug by ID
func (r *DrugRepository) GetByID(ctx context.Context, id string) (*Drug, error) {
	var drug Drug
	query := `SELECT * FROM drugs WHERE id = $1 AND is_active = true`
	if err := r.q.GetContext(ctx, &drug, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("drug")
		}
		return nil, err
	}
	return &drug, nil
}

// AnySpecial reports whether any of the given drugs is controlled
func (r *DrugRepository) AnySpecial(ctx context.Context, drugIDs []string) (bool, error) {
	if len(drugIDs) == 0 {
		return false, nil
	}

	query, args, err := sqlx.In(`SELECT COUNT(*) FROM drugs WHERE is_special = true AND id IN (?)`, drugIDs)
	if err != nil {
		return false, err
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)

	var count int
	if err := r.q.GetContext(ctx, &count, query, args...); err != nil {
		return false, err
	}
	return count > 0, nil
}

// List lists active drugs
func (r *DrugRepository) List(ctx context.Context) ([]*Drug, error) {
	var drugs []*Drug
	query := `SELECT * FROM drugs WHERE is_active = true ORDER BY name`
	if err := r.q.SelectContext(ctx, &drugs, query); err != nil {
		return nil, err
	}
	return drugs, nil
}
