package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pharmstock/pharmstock-backend/internal/warehouse/repository"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// Document kinds and their number prefixes
const (
	DocKindInbound    = "IN"
	DocKindOutbound   = "OUT"
	DocKindAdjustment = "ADJ"
	DocKindOrder      = "PO"
)

// DocumentSequencer allocates unique document numbers of the form
// {PREFIX}{yyyyMMdd}{seq:03d}, e.g. IN20260828001. The per-day counter
// row makes allocation atomic; numbers are allocated before the
// enclosing business transaction, so a rolled-back operation leaves a
// gap in the sequence rather than a duplicate.
type DocumentSequencer struct {
	repo     *repository.SequenceRepository
	attempts int
	backoff  time.Duration
	logger   *logger.Logger

	// now is swappable for tests
	now func() time.Time
}

// NewDocumentSequencer creates a new document sequencer
func NewDocumentSequencer(repo *repository.SequenceRepository, attempts int, backoff time.Duration, log *logger.Logger) *DocumentSequencer {
	if attempts < 1 {
		attempts = 1
	}
	return &DocumentSequencer{
		repo:     repo,
		attempts: attempts,
		backoff:  backoff,
		logger:   log,
		now:      time.Now,
	}
}

// Next allocates the next document number for the kind. Serialization
// failures on the counter row are retried with a fixed backoff.
func (s *DocumentSequencer) Next(ctx context.Context, kind string) (string, error) {
	day := s.now()

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		value, err := s.repo.NextValue(ctx, kind, day)
		if err == nil {
			return FormatDocumentNumber(kind, day, value), nil
		}

		if !database.IsSerializationFailure(err) {
			return "", err
		}

		lastErr = err
		s.logger.Warn().
			Err(err).
			Str("kind", kind).
			Int("attempt", attempt).
			Msg("sequence allocation conflict, retrying")

		if attempt < s.attempts {
			select {
			case <-time.After(s.backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}

	s.logger.Error().Err(lastErr).Str("kind", kind).Msg("sequence allocation exhausted retries")
	return "", errors.SequenceExhausted(kind)
}

// FormatDocumentNumber renders a document number from its parts
func FormatDocumentNumber(kind string, day time.Time, value int) string {
	return fmt.Sprintf("%s%s%03d", kind, day.Format("20060102"), value)
}
