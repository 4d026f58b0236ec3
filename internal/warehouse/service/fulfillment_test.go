package service_test

import (
	"context"
	"log"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pharmstock/pharmstock-backend/internal/warehouse/repository"
	"github.com/pharmstock/pharmstock-backend/internal/warehouse/service"
	"github.com/pharmstock/pharmstock-backend/internal/warehouse/settings"
	"github.com/pharmstock/pharmstock-backend/pkg/config"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/pharmstock/pharmstock-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		log.Fatalf("failed to create integration suite: %v", err)
	}
	defer testutil.TerminateContainer(ctx)

	os.Exit(m.Run())
}

// testEnv wires the full service stack against the test database. Events
// are not published in tests.
type testEnv struct {
	inbound    *service.InboundService
	outbound   *service.OutboundService
	adjustment *service.AdjustmentService
	inventory  *service.InventoryService

	batchRepo    *repository.BatchRepository
	orderRepo    *repository.OrderRepository
	inboundRepo  *repository.InboundRepository
	outboundRepo *repository.OutboundRepository
	adjRepo      *repository.AdjustmentRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := suite.DB
	logg := suite.Logger

	drugRepo := repository.NewDrugRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	inboundRepo := repository.NewInboundRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	outboundRepo := repository.NewOutboundRepository(db)
	adjRepo := repository.NewAdjustmentRepository(db)
	seqRepo := repository.NewSequenceRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	defaults := config.InventoryConfig{
		ExpiryWarningDays:  180,
		ExpiryCriticalDays: 90,
		SequencerAttempts:  3,
		SequencerBackoff:   10 * time.Millisecond,
	}

	provider := settings.NewProvider(settingRepo, defaults, logg)
	sequencer := service.NewDocumentSequencer(seqRepo, defaults.SequencerAttempts, defaults.SequencerBackoff, logg)
	admission := service.NewAdmissionService(provider)
	gate := service.NewApprovalGate(drugRepo)

	return &testEnv{
		inbound:      service.NewInboundService(db, inboundRepo, batchRepo, orderRepo, drugRepo, sequencer, admission, gate, nil, logg),
		outbound:     service.NewOutboundService(db, outboundRepo, batchRepo, drugRepo, sequencer, gate, nil, logg),
		adjustment:   service.NewAdjustmentService(db, adjRepo, batchRepo, drugRepo, sequencer, gate, nil, logg),
		inventory:    service.NewInventoryService(batchRepo, drugRepo, provider, logg),
		batchRepo:    batchRepo,
		orderRepo:    orderRepo,
		inboundRepo:  inboundRepo,
		outboundRepo: outboundRepo,
		adjRepo:      adjRepo,
	}
}

func seedDrug(t *testing.T, ctx context.Context, special bool) testutil.DrugFixture {
	t.Helper()
	var drug testutil.DrugFixture
	if special {
		drug = suite.Fixtures.Drug(testutil.AsSpecial())
	} else {
		drug = suite.Fixtures.Drug()
	}
	suite.Fixtures.SeedDrug(t, ctx, suite.RawDB, drug)
	return drug
}

func qualifiedReceipt(drugID string, qty int, operator string) *service.ReceiveInput {
	expiry := time.Now().AddDate(1, 0, 0)
	return &service.ReceiveInput{
		DrugID:      drugID,
		BatchNumber: "LOT-RCV",
		Quantity:    qty,
		ExpiryDate:  &expiry,
		Status:      repository.InboundQualified,
		OperatorID:  operator,
	}
}

func TestReceiveFromOrder_FlipsOrderWhenFullyReceived(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)
	env := newTestEnv(t)

	drug := seedDrug(t, ctx, false)
	order := suite.Fixtures.Order(suite.Fixtures.OrderLine(drug.ID, 100))
	suite.Fixtures.SeedOrder(t, ctx, suite.RawDB, order)

	input := qualifiedReceipt(drug.ID, 60, "op-1")
	input.OrderID = &order.ID
	rec, err := env.inbound.ReceiveFromOrder(ctx, input)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rec.DocumentNumber, "IN"))
	assert.Equal(t, service.TierPass, rec.AdmissionTier)

	got, err := env.orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.OrderShipped, got.Status)

	// The remainder completes the order
	input = qualifiedReceipt(drug.ID, 40, "op-1")
	input.OrderID = &order.ID
	_, err = env.inbound.ReceiveFromOrder(ctx, input)
	require.NoError(t, err)

	got, err = env.orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.OrderReceived, got.Status)

	batch, err := env.batchRepo.GetByKey(ctx, drug.ID, "LOT-RCV")
	require.NoError(t, err)
	assert.Equal(t, 100, batch.Quantity)

	// A received order accepts no further receipts
	input = qualifiedReceipt(drug.ID, 1, "op-1")
	input.OrderID = &order.ID
	_, err = env.inbound.ReceiveFromOrder(ctx, input)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStateConflict))
}

func TestReceiveFromOrder_RejectsOverReceipt(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)
	env := newTestEnv(t)

	drug := seedDrug(t, ctx, false)
	order := suite.Fixtures.Order(suite.Fixtures.OrderLine(drug.ID, 50))
	suite.Fixtures.SeedOrder(t, ctx, suite.RawDB, order)

	input := qualifiedReceipt(drug.ID, 30, "op-1")
	input.OrderID = &order.ID
	_, err := env.inbound.ReceiveFromOrder(ctx, input)
	require.NoError(t, err)

	// 30 + 30 > 50
	input = qualifiedReceipt(drug.ID, 30, "op-1")
	input.OrderID = &order.ID
	_, err = env.inbound.ReceiveFromOrder(ctx, input)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrOverReceipt))

	// Nothing from the rejected receipt stuck
	batch, err := env.batchRepo.GetByKey(ctx, drug.ID, "LOT-RCV")
	require.NoError(t, err)
	assert.Equal(t, 30, batch.Quantity)

	recs, err := env.inboundRepo.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestReceiveFromOrder_ConcurrentReceiptsRespectOrderedQuantity(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)
	env := newTestEnv(t)

	drug := seedDrug(t, ctx, false)
	order := suite.Fixtures.Order(suite.Fixtures.OrderLine(drug.ID, 100))
	suite.Fixtures.SeedOrder(t, ctx, suite.RawDB, order)

	input := qualifiedReceipt(drug.ID, 80, "op-1")
	input.OrderID = &order.ID
	_, err := env.inbound.ReceiveFromOrder(ctx, input)
	require.NoError(t, err)

	// Two racing receipts of 15 against the remaining 20: the line lock
	// serializes the over-receipt check, so exactly one commits
	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			in := qualifiedReceipt(drug.ID, 15, "op-race")
			in.OrderID = &order.ID
			_, err := env.inbound.ReceiveFromOrder(ctx, in)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, overReceipts int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, errors.ErrOverReceipt):
			overReceipts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, overReceipts)

	received, err := env.inbound.ReceivedQuantity(ctx, order.ID, drug.ID)
	require.NoError(t, err)
	assert.Equal(t, 95, received)
}

func TestReceivedQuantity(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)
	env := newTestEnv(t)

	drug := seedDrug(t, ctx, false)
	order := suite.Fixtures.Order(suite.Fixtures.OrderLine(drug.ID, 50))
	suite.Fixtures.SeedOrder(t, ctx, suite.RawDB, order)

	received, err := env.inbound.ReceivedQuantity(ctx, order.ID, drug.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, received)

	input := qualifiedReceipt(drug.ID, 30, "op-1")
	input.OrderID = &order.ID
	_, err = env.inbound.ReceiveFromOrder(ctx, input)
	require.NoError(t, err)

	received, err = env.inbound.ReceivedQuantity(ctx, order.ID, drug.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, received)

	_, err = env.inbound.ReceivedQuantity(ctx, order.ID, "no-such-drug")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestReceiveFromOrder_UnqualifiedIsAuditOnly(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)
	env := newTestEnv(t)

	drug := seedDrug(t, ctx, false)
	order := suite.Fixtures.Order(suite.Fixtures.OrderLine(drug.ID, 50))
	suite.Fixtures.SeedOrder(t, ctx, suite.RawDB, order)

	input := qualifiedReceipt(drug.ID, 50, "op-1")
	input.OrderID = &order.ID
	input.Status = repository.InboundUnqualified
	rec, err := env.inbound.ReceiveFromOrder(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, repository.InboundUnqualified, rec.Status)

	// No stock was created and the order did not move
	_, err = env.batchRepo.GetByKey(ctx, drug.ID, "LOT-RCV")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	got, err := env.orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.OrderShipped, got.Status)

	// The rejected goods do not count toward the line either
	input = qualifiedReceipt(drug.ID, 50, "op-1")
	input.OrderID = &order.ID
	_, err = env.inbound.ReceiveFromOrder(ctx, input)
	require.NoError(t, err)
}

func TestReceiveTemporary_ForceAdmissionNeedsJustification(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)
	env := newTestEnv(t)

	drug := seedDrug(t, ctx, false)

	input := qualifiedReceipt(drug.ID, 10, "op-1")
	soon := time.Now().AddDate(0, 0, 30)
	input.ExpiryDate = &soon

	_, err := env.inbound.ReceiveTemporary(ctx, input)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))

	input.ForceReason = testutil.PtrString("emergency restock approved by chief pharmacist")
	rec, err := env.inbound.ReceiveTemporary(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, service.TierForce, rec.AdmissionTier)
	assert.Nil(t, rec.OrderID)
}

func TestReceiveTemporary_SpecialDrugNeedsDistinctSecondOperator(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)
	env := newTestEnv(t)

	drug := seedDrug(t, ctx, true)

	input := qualifiedReceipt(drug.ID, 10, "op-1")
	_, err := env.inbound.ReceiveTemporary(ctx, input)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))

	input.SecondOperatorID = testutil.PtrString("op-1")
	_, err = env.inbound.ReceiveTemporary(ctx, input)
	require.Error(t, err)

	input.SecondOperatorID = testutil.PtrString("op-2")
	rec, err := env.inbound.ReceiveTemporary(ctx, input)
	require.NoError(t, err)
	require.NotNil(t, rec.SecondOperatorID)
	assert.Equal(t, "op-2", *rec.SecondOperatorID)
}

func TestOutbound_ExecuteAllocatesEarliestExpiryFirst(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)
	env := newTestEnv(t)

	drug := seedDrug(t, ctx, false)
	now := time.Now()
	early := suite.Fixtures.Batch(drug.ID, 30,
		testutil.WithBatchNumber("LOT-EARLY"), testutil.WithExpiry(now.AddDate(0, 6, 0)))
	late := suite.Fixtures.Batch(drug.ID, 50,
		testutil.WithBatchNumber("LOT-LATE"), testutil.WithExpiry(now.AddDate(1, 6, 0)))
	suite.Fixtures.SeedBatch(t, ctx, suite.RawDB, early)
	suite.Fixtures.SeedBatch(t, ctx, suite.RawDB, late)

	app, err := env.outbound.Create(ctx, &service.ApplicationInput{
		ApplicantID: "op-applicant",
		Department:  "icu",
		Lines:       []service.ApplicationLineInput{{DrugID: drug.ID, Quantity: 60}},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(app.DocumentNumber, "OUT"))

	require.NoError(t, env.outbound.Approve(ctx, app.ID, "op-approver", nil))

	allocations, err := env.outbound.Execute(ctx, app.ID, nil)
	require.NoError(t, err)
	require.Len(t, allocations, 2)
	assert.Equal(t, "LOT-EARLY", allocations[0].BatchNumber)
	assert.Equal(t, 30, allocations[0].Quantity)
	assert.Equal(t, "LOT-LATE", allocations[1].BatchNumber)
	assert.Equal(t, 30, allocations[1].Quantity)

	gotEarly, err := env.batchRepo.GetByKey(ctx, drug.ID, "LOT-EARLY")
	require.NoError(t, err)
	assert.Equal(t, 0, gotEarly.Quantity)
	gotLate, err := env.batchRepo.GetByKey(ctx, drug.ID, "LOT-LATE")
	require.NoError(t, err)
	assert.Equal(t, 20, gotLate.Quantity)

	got, lines, err := env.outbound.Get(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.OutboundExecuted, got.Status)
	require.Len(t, lines, 1)
	require.NotNil(t, lines[0].ActualQuantity)
	assert.Equal(t, 60, *lines[0].ActualQuantity)
}

func TestOutbound_ExecuteWithActualQuantities(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)
	env := newTestEnv(t)

	drug := seedDrug(t, ctx, false)
	now := time.Now()
	early := suite.Fixtures.Batch(drug.ID, 30,
		testutil.WithBatchNumber("LOT-EARLY"), testutil.WithExpiry(now.AddDate(0, 6, 0)))
	late := suite.Fixtures.Batch(drug.ID, 50,
		testutil.WithBatchNumber("LOT-LATE"), testutil.WithExpiry(now.AddDate(1, 6, 0)))
	suite.Fixtures.SeedBatch(t, ctx, suite.RawDB, early)
	suite.Fixtures.SeedBatch(t, ctx, suite.RawDB, late)

	app, err := env.outbound.Create(ctx, &service.ApplicationInput{
		ApplicantID: "op-applicant",
		Department:  "icu",
		Lines:       []service.ApplicationLineInput{{DrugID: drug.ID, Quantity: 60}},
	})
	require.NoError(t, err)
	require.NoError(t, env.outbound.Approve(ctx, app.ID, "op-approver", nil))

	// Only 40 of the requested 60 actually leave the warehouse
	allocations, err := env.outbound.Execute(ctx, app.ID, []service.ExecuteLineInput{
		{DrugID: drug.ID, ActualQuantity: 40},
	})
	require.NoError(t, err)
	require.Len(t, allocations, 2)
	assert.Equal(t, 30, allocations[0].Quantity)
	assert.Equal(t, 10, allocations[1].Quantity)

	_, lines, err := env.outbound.Get(ctx, app.ID)
	require.NoError(t, err)
	require.NotNil(t, lines[0].ActualQuantity)
	assert.Equal(t, 40, *lines[0].ActualQuantity)

	gotLate, err := env.batchRepo.GetByKey(ctx, drug.ID, "LOT-LATE")
	require.NoError(t, err)
	assert.Equal(t, 40, gotLate.Quantity)
}

func TestOutbound_ExecuteRejectsUnknownLineOverride(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)
	env := newTestEnv(t)

	drug := seedDrug(t, ctx, false)
	suite.Fixtures.SeedBatch(t, ctx, suite.RawDB,
		suite.Fixtures.Batch(drug.ID, 20, testutil.WithBatchNumber("LOT-A")))

	app, err := env.outbound.Create(ctx, &service.ApplicationInput{
		ApplicantID: "op-applicant",
		Department:  "icu",
		Lines:       []service.ApplicationLineInput{{DrugID: drug.ID, Quantity: 10}},
	})
	require.NoError(t, err)
	require.NoError(t, env.outbound.Approve(ctx, app.ID, "op-approver", nil))

	_, err = env.outbound.Execute(ctx, app.ID, []service.ExecuteLineInput{
		{DrugID: "no-such-drug", ActualQuantity: 5},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))

	// The failed execution rolled back: status and stock untouched
	got, _, err := env.outbound.Get(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.OutboundApproved, got.Status)

	batch, err := env.batchRepo.GetByKey(ctx, drug.ID, "LOT-A")
	require.NoError(t, err)
	assert.Equal(t, 20, batch.Quantity)
}

func TestOutbound_ExecuteShortfallRollsBack(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)
	env := newTestEnv(t)

	drug := seedDrug(t, ctx, false)
	batch := suite.Fixtures.Batch(drug.ID, 40, testutil.WithBatchNumber("LOT-ONLY"))
	suite.Fixtures.SeedBatch(t, ctx, suite.RawDB, batch)

	app, err := env.outbound.Create(ctx, &service.ApplicationInput{
		ApplicantID: "op-applicant",
		Department:  "icu",
		Lines:       []service.ApplicationLineInput{{DrugID: drug.ID, Quantity: 60}},
	})
	require.NoError(t, err)
	require.NoError(t, env.outbound.Approve(ctx, app.ID, "op-approver", nil))

	_, err = env.outbound.Execute(ctx, app.ID, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	// Everything rolled back: status, stock, line actuals
	got, lines, err := env.outbound.Get(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.OutboundApproved, got.Status)
	assert.Nil(t, lines[0].ActualQuantity)

	gotBatch, err := env.batchRepo.GetByKey(ctx, drug.ID, "LOT-ONLY")
	require.NoError(t, err)
	assert.Equal(t, 40, gotBatch.Quantity)
}

func TestOutbound_PinnedBatchBypassesFIFO(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)
	env := newTestEnv(t)

	drug := seedDrug(t, ctx, false)
	now := time.Now()
	early := suite.Fixtures.Batch(drug.ID, 30,
		testutil.WithBatchNumber("LOT-EARLY"), testutil.WithExpiry(now.AddDate(0, 6, 0)))
	late := suite.Fixtures.Batch(drug.ID, 30,
		testutil.WithBatchNumber("LOT-LATE"), testutil.WithExpiry(now.AddDate(1, 6, 0)))
	suite.Fixtures.SeedBatch(t, ctx, suite.RawDB, early)
	suite.Fixtures.SeedBatch(t, ctx, suite.RawDB, late)

	app, err := env.outbound.Create(ctx, &service.ApplicationInput{
		ApplicantID: "op-applicant",
		Department:  "pharmacy",
		Lines: []service.ApplicationLineInput{
			{DrugID: drug.ID, BatchNumber: testutil.PtrString("LOT-LATE"), Quantity: 10},
		},
	})
	require.NoError(t, err)
	require.NoError(t, env.outbound.Approve(ctx, app.ID, "op-approver", nil))

	allocations, err := env.outbound.Execute(ctx, app.ID, nil)
	require.NoError(t, err)
	require.Len(t, allocations, 1)
	assert.Equal(t, "LOT-LATE", allocations[0].BatchNumber)

	gotEarly, err := env.batchRepo.GetByKey(ctx, drug.ID, "LOT-EARLY")
	require.NoError(t, err)
	assert.Equal(t, 30, gotEarly.Quantity)
}

func TestOutbound_SelfApprovalForbidden(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)
	env := newTestEnv(t)

	drug := seedDrug(t, ctx, false)
	suite.Fixtures.SeedBatch(t, ctx, suite.RawDB, suite.Fixtures.Batch(drug.ID, 10))

	app, err := env.outbound.Create(ctx, &service.ApplicationInput{
		ApplicantID: "op-applicant",
		Department:  "icu",
		Lines:       []service.ApplicationLineInput{{DrugID: drug.ID, Quantity: 5}},
	})
	require.NoError(t, err)

	err = env.outbound.Approve(ctx, app.ID, "op-applicant", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}

func TestOutbound_SpecialDrugNeedsSecondApprover(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)
	env := newTestEnv(t)

	drug := seedDrug(t, ctx, true)
	suite.Fixtures.SeedBatch(t, ctx, suite.RawDB, suite.Fixtures.Batch(drug.ID, 10))

	app, err := env.outbound.Create(ctx, &service.ApplicationInput{
		ApplicantID: "op-applicant",
		Department:  "icu",
		Lines:       []service.ApplicationLineInput{{DrugID: drug.ID, Quantity: 5}},
	})
	require.NoError(t, err)

	err = env.outbound.Approve(ctx, app.ID, "op-approver", nil)
	require.Error(t, err)

	err = env.outbound.Approve(ctx, app.ID, "op-approver", testutil.PtrString("op-approver"))
	require.Error(t, err)

	require.NoError(t, env.outbound.Approve(ctx, app.ID, "op-approver", testutil.PtrString("op-second")))
}

func TestAdjustment_RecordsSnapshotAndDelta(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)
	env := newTestEnv(t)

	drug := seedDrug(t, ctx, false)
	batch := suite.Fixtures.Batch(drug.ID, 100, testutil.WithBatchNumber("LOT-COUNT"))
	suite.Fixtures.SeedBatch(t, ctx, suite.RawDB, batch)

	adj, err := env.adjustment.CreateAdjustment(ctx, &service.AdjustmentInput{
		DrugID:      drug.ID,
		BatchNumber: "LOT-COUNT",
		NewQuantity: 88,
		Reason:      "physical count after spillage",
		OperatorID:  "op-1",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(adj.DocumentNumber, "ADJ"))
	assert.Equal(t, 100, adj.QuantityBefore)
	assert.Equal(t, 88, adj.QuantityAfter)
	assert.Equal(t, -12, adj.AdjustmentQuantity)

	got, err := env.batchRepo.GetByKey(ctx, drug.ID, "LOT-COUNT")
	require.NoError(t, err)
	assert.Equal(t, 88, got.Quantity)

	audits, err := env.adjustment.ListByDrug(ctx, drug.ID)
	require.NoError(t, err)
	require.Len(t, audits, 1)
}

func TestAdjustment_Validation(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)
	env := newTestEnv(t)

	drug := seedDrug(t, ctx, false)
	suite.Fixtures.SeedBatch(t, ctx, suite.RawDB, suite.Fixtures.Batch(drug.ID, 10, testutil.WithBatchNumber("LOT-X")))

	_, err := env.adjustment.CreateAdjustment(ctx, &service.AdjustmentInput{
		DrugID:      drug.ID,
		BatchNumber: "LOT-X",
		NewQuantity: 5,
		OperatorID:  "op-1",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))

	_, err = env.adjustment.CreateAdjustment(ctx, &service.AdjustmentInput{
		DrugID:      drug.ID,
		BatchNumber: "LOT-X",
		NewQuantity: -1,
		Reason:      "count",
		OperatorID:  "op-1",
	})
	require.Error(t, err)
}

func TestInventory_Overview(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)
	env := newTestEnv(t)

	drug := seedDrug(t, ctx, false)
	now := time.Now()
	suite.Fixtures.SeedBatch(t, ctx, suite.RawDB,
		suite.Fixtures.Batch(drug.ID, 40, testutil.WithExpiry(now.AddDate(0, 0, 30))))
	suite.Fixtures.SeedBatch(t, ctx, suite.RawDB,
		suite.Fixtures.Batch(drug.ID, 60, testutil.WithExpiry(now.AddDate(1, 0, 0))))

	overview, err := env.inventory.GetOverview(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), overview.TotalQuantity)
	assert.Equal(t, int64(1), overview.NearExpiryYellow)
	assert.Equal(t, int64(1), overview.NearExpiryRed)
	assert.Equal(t, 180, overview.ExpiryWarningDays)
	assert.Equal(t, 90, overview.ExpiryCriticalDays)
}
