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

// Outbound application statuses. PENDING is the only non-terminal state
// besides APPROVED; OUTBOUND, REJECTED and CANCELLED are final.
const (
	OutboundPending   = "PENDING"
	OutboundApproved  = "APPROVED"
	OutboundExecuted  = "OUTBOUND"
	OutboundRejected  = "REJECTED"
	OutboundCancelled = "CANCELLED"
)

// OutboundApplication is a request to issue stock out of the warehouse
type OutboundApplication struct {
	ID               string     `db:"id" json:"id"`
	DocumentNumber   string     `db:"document_number" json:"document_number"`
	ApplicantID      string     `db:"applicant_id" json:"applicant_id"`
	Department       string     `db:"department" json:"department"`
	Purpose          *string    `db:"purpose" json:"purpose,omitempty"`
	Status           string     `db:"status" json:"status"`
	ApproverID       *string    `db:"approver_id" json:"approver_id,omitempty"`
	SecondApproverID *string    `db:"second_approver_id" json:"second_approver_id,omitempty"`
	RejectReason     *string    `db:"reject_reason" json:"reject_reason,omitempty"`
	ApprovedAt       *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	ExecutedAt       *time.Time `db:"executed_at" json:"executed_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// OutboundLine is one drug position on an outbound application. A line
// may pin a batch number; unpinned lines are satisfied FIFO.
type OutboundLine struct {
	ID                string  `db:"id" json:"id"`
	ApplicationID     string  `db:"application_id" json:"application_id"`
	DrugID            string  `db:"drug_id" json:"drug_id"`
	BatchNumber       *string `db:"batch_number" json:"batch_number,omitempty"`
	RequestedQuantity int     `db:"requested_quantity" json:"requested_quantity"`
	ActualQuantity    *int    `db:"actual_quantity" json:"actual_quantity,omitempty"`
}

// OutboundRepository handles outbound application persistence
type OutboundRepository struct {
	q database.Queryer
}

// NewOutboundRepository creates a new outbound repository
func NewOutboundRepository(db *database.DB) *OutboundRepository {
	return &OutboundRepository{q: db.DB}
}

// WithTx returns a copy of the repository bound to the transaction.
func (r *OutboundRepository) WithTx(tx *sqlx.Tx) *OutboundRepository {
	return &OutboundRepository{q: tx}
}

// Create creates an application and its lines
func (r *OutboundRepository) Create(ctx context.Context, app *OutboundApplication, lines []*OutboundLine) error {
	if app.ID == "" {
		app.ID = uuid.New().String()
	}

	query := `
		INSERT INTO outbound_applications (
			id, document_number, applicant_id, department, purpose, status
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRowxContext(ctx, query,
		app.ID, app.DocumentNumber, app.ApplicantID, app.Department, app.Purpose, app.Status,
	).Scan(&app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		return err
	}

	lineQuery := `
		INSERT INTO outbound_application_lines (
			id, application_id, drug_id, batch_number, requested_quantity
		) VALUES ($1, $2, $3, $4, $5)
	`

	for _, line := range lines {
		if line.ID == "" {
			line.ID = uuid.New().String()
		}
		line.ApplicationID = app.ID
		if _, err := r.q.ExecContext(ctx, lineQuery,
			line.ID, line.ApplicationID, line.DrugID, line.BatchNumber, line.RequestedQuantity,
		); err != nil {
			return err
		}
	}

	return nil
}

// GetByID gets an application by ID
func (r *OutboundRepository) GetByID(ctx context.Context, id string) (*OutboundApplication, error) {
	var app OutboundApplication
	query := `SELECT * FROM outbound_applications WHERE id = $1`
	if err := r.q.GetContext(ctx, &app, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("outbound application")
		}
		return nil, err
	}
	return &app, nil
}

// GetLines lists the lines of an application
func (r *OutboundRepository) GetLines(ctx context.Context, applicationID string) ([]*OutboundLine, error) {
	var lines []*OutboundLine
	query := `
		SELECT * FROM outbound_application_lines
		WHERE application_id = $1
		ORDER BY drug_id
	`
	if err := r.q.SelectContext(ctx, &lines, query, applicationID); err != nil {
		return nil, err
	}
	return lines, nil
}

// Approve transitions PENDING to APPROVED. The guarded update enforces
// the state machine under concurrency: a second approver of the same
// application loses with a state conflict.
func (r *OutboundRepository) Approve(ctx context.Context, id, approverID string, secondApproverID *string) error {
	query := `
		UPDATE outbound_applications
		SET status = $2, approver_id = $3, second_approver_id = $4,
		    approved_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $5
	`

	result, err := r.q.ExecContext(ctx, query, id, OutboundApproved, approverID, secondApproverID, OutboundPending)
	if err != nil {
		return err
	}
	return r.checkTransition(ctx, result, id, "approve")
}

// Reject transitions PENDING to REJECTED
func (r *OutboundRepository) Reject(ctx context.Context, id, approverID, reason string) error {
	query := `
		UPDATE outbound_applications
		SET status = $2, approver_id = $3, reject_reason = $4, updated_at = NOW()
		WHERE id = $1 AND status = $5
	`

	result, err := r.q.ExecContext(ctx, query, id, OutboundRejected, approverID, reason, OutboundPending)
	if err != nil {
		return err
	}
	return r.checkTransition(ctx, result, id, "reject")
}

// Cancel transitions PENDING or APPROVED to CANCELLED
func (r *OutboundRepository) Cancel(ctx context.Context, id string) error {
	query := `
		UPDATE outbound_applications
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status IN ($3, $4)
	`

	result, err := r.q.ExecContext(ctx, query, id, OutboundCancelled, OutboundPending, OutboundApproved)
	if err != nil {
		return err
	}
	return r.checkTransition(ctx, result, id, "cancel")
}

// MarkExecuted transitions APPROVED to OUTBOUND
func (r *OutboundRepository) MarkExecuted(ctx context.Context, id string) error {
	query := `
		UPDATE outbound_applications
		SET status = $2, executed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $3
	`

	result, err := r.q.ExecContext(ctx, query, id, OutboundExecuted, OutboundApproved)
	if err != nil {
		return err
	}
	return r.checkTransition(ctx, result, id, "execute")
}

// SetLineActual records the actually issued quantity on a line
func (r *OutboundRepository) SetLineActual(ctx context.Context, lineID string, actual int) error {
	query := `UPDATE outbound_application_lines SET actual_quantity = $2 WHERE id = $1`

	result, err := r.q.ExecContext(ctx, query, lineID, actual)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("outbound application line")
	}
	return nil
}

// checkTransition turns a zero-row guarded update into the right typed
// error: not found when the application is missing, state conflict when
// it exists in another state.
func (r *OutboundRepository) checkTransition(ctx context.Context, result sql.Result, id, action string) error {
	affected, _ := result.RowsAffected()
	if affected > 0 {
		return nil
	}

	app, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return errors.StateConflict("cannot " + action + " application in status " + app.Status)
}

// List lists applications with pagination, newest first
func (r *OutboundRepository) List(ctx context.Context, page, perPage int, status string) ([]*OutboundApplication, int64, error) {
	var total int64
	countQuery := `SELECT COUNT(*) FROM outbound_applications WHERE ($1 = '' OR status = $1)`
	if err := r.q.GetContext(ctx, &total, countQuery, status); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	var apps []*OutboundApplication
	query := `
		SELECT * FROM outbound_applications
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.q.SelectContext(ctx, &apps, query, status, perPage, offset); err != nil {
		return nil, 0, err
	}
	return apps, total, nil
}
