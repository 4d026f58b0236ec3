package service

import (
	"context"

	"github.com/pharmstock/pharmstock-backend/internal/warehouse/repository"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
)

// ApprovalGate decides when an operation needs a second operator and
// validates the pair it is given. Controlled drugs always require dual
// control, and the two operators must be distinct people.
type ApprovalGate struct {
	drugRepo *repository.DrugRepository
}

// NewApprovalGate creates a new approval gate
func NewApprovalGate(drugRepo *repository.DrugRepository) *ApprovalGate {
	return &ApprovalGate{drugRepo: drugRepo}
}

// RequiresDualControl reports whether any of the drugs is controlled
func (g *ApprovalGate) RequiresDualControl(ctx context.Context, drugIDs ...string) (bool, error) {
	return g.drugRepo.AnySpecial(ctx, drugIDs)
}

// CheckOperators validates the operator pair for an operation.
// When dual control is required the second operator must be present and
// must not be the primary.
func CheckOperators(primaryID string, secondID *string, dualControl bool) error {
	if primaryID == "" {
		return errors.BadRequest("operator is required")
	}

	if !dualControl {
		return nil
	}

	if secondID == nil || *secondID == "" {
		return errors.BadRequest("controlled drug operations require a second operator")
	}
	if *secondID == primaryID {
		return errors.BadRequest("second operator must differ from the primary operator")
	}
	return nil
}
