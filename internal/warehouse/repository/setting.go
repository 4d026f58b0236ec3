package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
)

// Setting is one key/value configuration row
type Setting struct {
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SettingRepository handles system settings persistence
type SettingRepository struct {
	q database.Queryer
}

// NewSettingRepository creates a new setting repository
func NewSettingRepository(db *database.DB) *SettingRepository {
	return &SettingRepository{q: db.DB}
}

// WithTx returns a copy of the repository bound to the transaction.
func (r *SettingRepository) WithTx(tx *sqlx.Tx) *SettingRepository {
	return &SettingRepository{q: tx}
}

// Get gets a setting by key
func (r *SettingRepository) Get(ctx context.Context, key string) (*Setting, error) {
	var s Setting
	query := `SELECT * FROM system_settings WHERE key = $1`
	if err := r.q.GetContext(ctx, &s, query, key); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("setting")
		}
		return nil, err
	}
	return &s, nil
}

// Upsert creates or replaces a setting
func (r *SettingRepository) Upsert(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO system_settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = NOW()
	`
	_, err := r.q.ExecContext(ctx, query, key, value)
	return err
}
