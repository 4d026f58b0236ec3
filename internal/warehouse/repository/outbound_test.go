package repository_test

import (
	"context"
	"testing"

	"github.com/pharmstock/pharmstock-backend/internal/warehouse/repository"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/pharmstock/pharmstock-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestApplication(t *testing.T, ctx context.Context, repo *repository.OutboundRepository, drugID string) *repository.OutboundApplication {
	t.Helper()
	app := &repository.OutboundApplication{
		DocumentNumber: "OUT20260828001",
		ApplicantID:    "op-applicant",
		Department:     "internal-medicine",
		Status:         repository.OutboundPending,
	}
	lines := []*repository.OutboundLine{
		{DrugID: drugID, RequestedQuantity: 10},
	}
	require.NoError(t, repo.Create(ctx, app, lines))
	return app
}

func TestOutboundRepository_ApproveTransition(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	drug := seedDrug(t, ctx, false)
	repo := repository.NewOutboundRepository(suite.DB)
	app := createTestApplication(t, ctx, repo, drug.ID)

	require.NoError(t, repo.Approve(ctx, app.ID, "op-approver", nil))

	got, err := repo.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.OutboundApproved, got.Status)
	require.NotNil(t, got.ApproverID)
	assert.Equal(t, "op-approver", *got.ApproverID)
	assert.NotNil(t, got.ApprovedAt)

	// A second approval of the same application loses
	err = repo.Approve(ctx, app.ID, "op-other", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStateConflict))
}

func TestOutboundRepository_RejectOnlyFromPending(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	drug := seedDrug(t, ctx, false)
	repo := repository.NewOutboundRepository(suite.DB)
	app := createTestApplication(t, ctx, repo, drug.ID)

	require.NoError(t, repo.Approve(ctx, app.ID, "op-approver", nil))

	err := repo.Reject(ctx, app.ID, "op-approver", "too late")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStateConflict))
}

func TestOutboundRepository_CancelFromPendingAndApproved(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	drug := seedDrug(t, ctx, false)
	repo := repository.NewOutboundRepository(suite.DB)

	pending := createTestApplication(t, ctx, repo, drug.ID)
	require.NoError(t, repo.Cancel(ctx, pending.ID))

	approved := &repository.OutboundApplication{
		DocumentNumber: "OUT20260828900",
		ApplicantID:    "op-applicant",
		Department:     "surgery",
		Status:         repository.OutboundPending,
	}
	require.NoError(t, repo.Create(ctx, approved, []*repository.OutboundLine{
		{DrugID: drug.ID, RequestedQuantity: 5},
	}))
	require.NoError(t, repo.Approve(ctx, approved.ID, "op-approver", nil))
	require.NoError(t, repo.Cancel(ctx, approved.ID))

	// Cancelled is terminal
	err := repo.Cancel(ctx, approved.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStateConflict))
}

func TestOutboundRepository_MarkExecutedRequiresApproved(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	drug := seedDrug(t, ctx, false)
	repo := repository.NewOutboundRepository(suite.DB)
	app := createTestApplication(t, ctx, repo, drug.ID)

	// Straight from PENDING is forbidden
	err := repo.MarkExecuted(ctx, app.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStateConflict))

	require.NoError(t, repo.Approve(ctx, app.ID, "op-approver", nil))
	require.NoError(t, repo.MarkExecuted(ctx, app.ID))

	got, err := repo.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.OutboundExecuted, got.Status)
	assert.NotNil(t, got.ExecutedAt)

	// Executing twice loses
	err = repo.MarkExecuted(ctx, app.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStateConflict))
}

func TestOutboundRepository_MissingApplication(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	repo := repository.NewOutboundRepository(suite.DB)

	err := repo.Approve(ctx, "00000000-0000-0000-0000-000000000000", "op-approver", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
