package service

import (
	"context"
	"time"

	"github.com/pharmstock/pharmstock-backend/internal/warehouse/settings"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
)

// Admission tiers, strictest last. PASS admits silently, WARNING admits
// with an operator acknowledgement on record, FORCE admits only with a
// written justification.
const (
	TierPass    = "PASS"
	TierWarning = "WARNING"
	TierForce   = "FORCE"
)

// AdmissionService classifies incoming batches by remaining shelf life
type AdmissionService struct {
	settings *settings.Provider
}

// NewAdmissionService creates a new admission service
func NewAdmissionService(provider *settings.Provider) *AdmissionService {
	return &AdmissionService{settings: provider}
}

// ClassifyTier places a batch into an admission tier given its expiry
// date and the thresholds in effect. A missing expiry date is treated as
// the worst case. Boundaries are inclusive on the safe side: exactly
// warningDays of shelf life passes, exactly criticalDays warns.
func ClassifyTier(expiryDate *time.Time, now time.Time, warningDays, criticalDays int) string {
	if expiryDate == nil {
		return TierForce
	}

	days := daysUntil(now, *expiryDate)
	switch {
	case days >= warningDays:
		return TierPass
	case days >= criticalDays:
		return TierWarning
	default:
		return TierForce
	}
}

// Evaluate classifies a batch using the current runtime thresholds
func (s *AdmissionService) Evaluate(ctx context.Context, expiryDate *time.Time) string {
	warningDays, criticalDays := s.settings.ExpiryThresholds(ctx)
	return ClassifyTier(expiryDate, time.Now(), warningDays, criticalDays)
}

// CheckAdmission verifies that the receipt carries what its tier
// demands: a FORCE admission needs a non-empty justification. A WARNING
// acknowledgement is recorded but never blocks.
func CheckAdmission(tier string, forceReason *string) error {
	if tier == TierForce && (forceReason == nil || *forceReason == "") {
		return errors.BadRequest("force admission requires a justification")
	}
	return nil
}

// daysUntil counts whole calendar days from now to the expiry date,
// comparing dates rather than instants so time of day never shifts a
// batch across a tier boundary.
func daysUntil(now, expiry time.Time) int {
	nowDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	expiryDate := time.Date(expiry.Year(), expiry.Month(), expiry.Day(), 0, 0, 0, 0, time.UTC)
	return int(expiryDate.Sub(nowDate) / (24 * time.Hour))
}
