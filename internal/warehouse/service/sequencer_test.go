package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/pharmstock/pharmstock-backend/internal/warehouse/repository"
	"github.com/pharmstock/pharmstock-backend/internal/warehouse/service"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
	"github.com/pharmstock/pharmstock-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDocumentNumber(t *testing.T) {
	day := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "IN20260828001", service.FormatDocumentNumber(service.DocKindInbound, day, 1))
	assert.Equal(t, "OUT20260828042", service.FormatDocumentNumber(service.DocKindOutbound, day, 42))
	assert.Equal(t, "ADJ20260828007", service.FormatDocumentNumber(service.DocKindAdjustment, day, 7))
	// Width grows past three digits instead of truncating
	assert.Equal(t, "PO202608281000", service.FormatDocumentNumber(service.DocKindOrder, day, 1000))
}

func newMockSequencer(t *testing.T, attempts int) (*service.DocumentSequencer, *testutil.MockDB) {
	t.Helper()
	mockDB := testutil.NewMockDB(t)
	log := logger.New("test", "test")
	repo := repository.NewSequenceRepository(database.NewFromSqlx(mockDB.DB, log))
	return service.NewDocumentSequencer(repo, attempts, time.Millisecond, log), mockDB
}

func TestDocumentSequencer_RetriesSerializationFailures(t *testing.T) {
	seq, mockDB := newMockSequencer(t, 3)
	defer mockDB.Close()

	mockDB.ExpectQuery("INSERT INTO document_sequences").
		WillReturnError(&pq.Error{Code: "40001"})
	mockDB.ExpectQuery("INSERT INTO document_sequences").
		WillReturnRows(testutil.MockRows("last_value").AddRow(3))

	number, err := seq.Next(context.Background(), service.DocKindInbound)
	require.NoError(t, err)
	assert.Equal(t, service.FormatDocumentNumber(service.DocKindInbound, time.Now(), 3), number)

	mockDB.ExpectationsWereMet(t)
}

func TestDocumentSequencer_ExhaustsRetries(t *testing.T) {
	seq, mockDB := newMockSequencer(t, 3)
	defer mockDB.Close()

	for i := 0; i < 3; i++ {
		mockDB.ExpectQuery("INSERT INTO document_sequences").
			WillReturnError(&pq.Error{Code: "40001"})
	}

	_, err := seq.Next(context.Background(), service.DocKindOutbound)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSequenceExhausted))

	mockDB.ExpectationsWereMet(t)
}

func TestDocumentSequencer_DoesNotRetryOtherErrors(t *testing.T) {
	seq, mockDB := newMockSequencer(t, 3)
	defer mockDB.Close()

	mockDB.ExpectQuery("INSERT INTO document_sequences").
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := seq.Next(context.Background(), service.DocKindAdjustment)
	require.Error(t, err)
	assert.False(t, errors.Is(err, errors.ErrSequenceExhausted))

	mockDB.ExpectationsWereMet(t)
}
