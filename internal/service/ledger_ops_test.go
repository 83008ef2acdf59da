package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-stock-ledger/internal/model"
)

func ptr[T any](v T) *T { return &v }

func TestUpdateSameProduct(t *testing.T) {
	f := newFixture(t, DefaultLedgerConfig())
	ctx := context.Background()
	res, err := f.ledger.Apply(ctx, testActor, importOf("Widget", "W-1", 50))
	require.NoError(t, err)

	updated, err := f.ledger.Update(ctx, testActor, res.Transaction.ID, UpdateInput{Quantity: ptr(30), Note: ptr("recount")})
	require.NoError(t, err)
	assert.Equal(t, 30, updated.Quantity)
	assert.Equal(t, "recount", updated.Note)

	p := f.productBySKU(t, "W-1")
	assert.Equal(t, 30, p.Quantity)
	assert.Equal(t, 30, p.NewStock)
	assert.EqualValues(t, 1, f.historyCount(t, model.ActionUpdateTransaction))
	f.requireInvariant(t)

	// import 30 -> export 30 swings stock by 60 and must be refused.
	_, err = f.ledger.Update(ctx, testActor, res.Transaction.ID, UpdateInput{Type: ptr(model.TxExport)})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 30, f.productBySKU(t, "W-1").Quantity)

	_, err = f.ledger.Apply(ctx, testActor, importOf("Widget", "W-1", 40))
	require.NoError(t, err)
	_, err = f.ledger.Update(ctx, testActor, res.Transaction.ID, UpdateInput{Type: ptr(model.TxExport)})
	require.NoError(t, err)

	p = f.productBySKU(t, "W-1")
	assert.Equal(t, 10, p.Quantity)
	assert.Equal(t, 40, p.NewStock)
	assert.Equal(t, 30, p.SoldStock)
	f.requireInvariant(t)
}

func TestUpdateMovesTransactionToAnotherProduct(t *testing.T) {
	f := newFixture(t, DefaultLedgerConfig())
	ctx := context.Background()
	res, err := f.ledger.Apply(ctx, testActor, importOf("Widget", "W-1", 10))
	require.NoError(t, err)

	updated, err := f.ledger.Update(ctx, testActor, res.Transaction.ID, UpdateInput{SKU: ptr("G-1"), ProductName: ptr("Gadget")})
	require.NoError(t, err)

	gadget := f.productBySKU(t, "G-1")
	assert.Equal(t, gadget.ID, updated.ProductID)
	assert.Equal(t, 10, gadget.Quantity)
	assert.Equal(t, 10, gadget.NewStock)

	widget := f.productBySKU(t, "W-1")
	assert.Equal(t, 0, widget.Quantity)
	assert.Equal(t, 0, widget.NewStock)
	f.requireInvariant(t)

	// Same SKU as the current product is not a move.
	_, err = f.ledger.Update(ctx, testActor, res.Transaction.ID, UpdateInput{SKU: ptr("G-1"), Quantity: ptr(12)})
	require.NoError(t, err)
	assert.Equal(t, 12, f.productBySKU(t, "G-1").Quantity)
	f.requireInvariant(t)
}

func TestUpdateMoveRefusedWhenOldProductWouldGoNegative(t *testing.T) {
	f := newFixture(t, DefaultLedgerConfig())
	ctx := context.Background()
	imp, err := f.ledger.Apply(ctx, testActor, importOf("Widget", "W-1", 10))
	require.NoError(t, err)
	_, err = f.ledger.Apply(ctx, testActor, exportOf("Widget", "W-1", 8))
	require.NoError(t, err)

	_, err = f.ledger.Update(ctx, testActor, imp.Transaction.ID, UpdateInput{SKU: ptr("G-1")})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 2, f.productBySKU(t, "W-1").Quantity)
	_, lookupErr := f.products.FindBySKUTx(f.db, "G-1", false)
	assert.Error(t, lookupErr, "product created during the failed move is rolled back")
}

func TestUpdateAndDeleteUnknownTransaction(t *testing.T) {
	f := newFixture(t, DefaultLedgerConfig())
	ctx := context.Background()

	_, err := f.ledger.Update(ctx, testActor, uuid.New(), UpdateInput{Quantity: ptr(1)})
	assert.ErrorIs(t, err, ErrTransactionNotFound)

	err = f.ledger.Delete(ctx, testActor, uuid.New())
	assert.ErrorIs(t, err, ErrTransactionNotFound)
	assert.True(t, IsNotFound(err))

	_, err = f.ledger.Update(ctx, testActor, uuid.New(), UpdateInput{Quantity: ptr(0)})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestDeleteManyContinuesPastFailures(t *testing.T) {
	f := newFixture(t, DefaultLedgerConfig())
	ctx := context.Background()

	a, err := f.ledger.Apply(ctx, testActor, importOf("Widget", "W-1", 10))
	require.NoError(t, err)
	b, err := f.ledger.Apply(ctx, testActor, importOf("Gadget", "G-1", 5))
	require.NoError(t, err)
	_, err = f.ledger.Apply(ctx, testActor, exportOf("Gadget", "G-1", 4))
	require.NoError(t, err)
	c, err := f.ledger.Apply(ctx, testActor, importOf("Widget", "W-1", 3))
	require.NoError(t, err)

	ids := []uuid.UUID{a.Transaction.ID, b.Transaction.ID, uuid.New(), c.Transaction.ID, a.Transaction.ID}
	res, err := f.ledger.DeleteMany(ctx, testActor, ids)
	require.NoError(t, err)

	assert.Equal(t, 2, res.DeletedCount)
	assert.ElementsMatch(t, []uuid.UUID{a.Transaction.ID, c.Transaction.ID}, res.DeletedIDs)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, b.Transaction.ID, res.Failed[0].ID)

	assert.Equal(t, 0, f.productBySKU(t, "W-1").Quantity)
	assert.Equal(t, 1, f.productBySKU(t, "G-1").Quantity)
	assert.EqualValues(t, 2, f.historyCount(t, model.ActionDeleteTransaction))
	assert.Zero(t, f.historyCount(t, model.ActionDeleteTransactions))
	f.requireInvariant(t)
}

func TestDeleteManySummarisesLargeBatches(t *testing.T) {
	cfg := DefaultLedgerConfig()
	cfg.HistoryBatchThreshold = 2
	f := newFixture(t, cfg)
	ctx := context.Background()

	var ids []uuid.UUID
	for _, in := range []ApplyInput{importOf("Widget", "W-1", 1), importOf("Widget", "W-1", 2), importOf("Gadget", "G-1", 3)} {
		res, err := f.ledger.Apply(ctx, testActor, in)
		require.NoError(t, err)
		ids = append(ids, res.Transaction.ID)
	}

	res, err := f.ledger.DeleteMany(ctx, testActor, ids)
	require.NoError(t, err)
	assert.Equal(t, 3, res.DeletedCount)
	assert.Zero(t, f.historyCount(t, model.ActionDeleteTransaction))
	assert.EqualValues(t, 2, f.historyCount(t, model.ActionDeleteTransactions))

	var entry model.HistoryLog
	require.NoError(t, f.db.Where("action = ? AND product_sku = ?", model.ActionDeleteTransactions, "W-1").First(&entry).Error)
	assert.Contains(t, entry.Details, "Deleted 2 transactions")
	f.requireInvariant(t)
}

func TestApplyBatchSharesResolvedProduct(t *testing.T) {
	cfg := DefaultLedgerConfig()
	cfg.BatchWorkers = 4
	f := newFixture(t, cfg)

	items := make([]BatchItem, 6)
	for i := range items {
		items[i] = importOf("Fresh Part", "FP-1", 2)
	}
	res := f.ledger.ApplyBatch(context.Background(), testActor, items)

	assert.Equal(t, 6, res.SucceededCount)
	assert.Zero(t, res.FailedCount)
	assert.EqualValues(t, 1, f.count(t, &model.Product{}, "sku = ?", "FP-1"))
	assert.Equal(t, 12, f.productBySKU(t, "FP-1").Quantity)
	assert.EqualValues(t, 1, f.historyCount(t, model.ActionCreateProduct))

	for i, s := range res.Succeeded {
		assert.Equal(t, i, s.Index)
		assert.Equal(t, res.Succeeded[0].ProductID, s.ProductID)
	}
	f.requireInvariant(t)
}

func TestApplyBatchStopsWhenBudgetIsGone(t *testing.T) {
	f := newFixture(t, DefaultLedgerConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := f.ledger.ApplyBatch(ctx, testActor, []BatchItem{
		importOf("Widget", "W-1", 1),
		{Type: "bogus", SKU: "W-1", Quantity: 1},
		importOf("Widget", "W-1", 1),
	})

	assert.True(t, res.Partial)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 1, res.FailedCount)
	assert.Zero(t, res.SucceededCount)
	assert.Zero(t, f.count(t, &model.Transaction{}, ""))
}

func TestApplyBatchTruncatesFailures(t *testing.T) {
	cfg := DefaultLedgerConfig()
	cfg.BatchFailureLimit = 2
	f := newFixture(t, cfg)

	items := make([]BatchItem, 5)
	for i := range items {
		items[i] = exportOf("Ghost", "", 1)
		items[i].SKU = "GHOST-" + string(rune('A'+i))
	}
	res := f.ledger.ApplyBatch(context.Background(), testActor, items)

	assert.Equal(t, 5, res.FailedCount)
	assert.Len(t, res.Failed, 2)
	assert.True(t, res.FailedTruncated)
	assert.Equal(t, 0, res.Failed[0].Index)
	assert.Equal(t, 1, res.Failed[1].Index)
}

func TestReconcileDetectsAndFixesDrift(t *testing.T) {
	f := newFixture(t, DefaultLedgerConfig())
	ctx := context.Background()
	res, err := f.ledger.Apply(ctx, testActor, importOf("Widget", "W-1", 9))
	require.NoError(t, err)
	_, err = f.ledger.Apply(ctx, testActor, exportOf("Widget", "W-1", 4))
	require.NoError(t, err)
	f.seedProduct(t, "Idle", "I-1")

	require.NoError(t, f.products.SetCountersTx(f.db, res.Product.ID, 99, 1, 1))

	drifts, err := f.ledger.Reconcile(ctx, SystemActor, false)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, "W-1", drifts[0].SKU)
	assert.Equal(t, 99, drifts[0].Quantity)
	assert.Equal(t, 5, drifts[0].ExpectedQuantity)
	assert.Equal(t, 9, drifts[0].ExpectedNew)
	assert.Equal(t, 4, drifts[0].ExpectedSold)
	assert.False(t, drifts[0].Fixed)
	assert.Equal(t, 99, f.product(t, res.Product.ID).Quantity)

	drifts, err = f.ledger.Reconcile(ctx, SystemActor, true)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.True(t, drifts[0].Fixed)

	p := f.product(t, res.Product.ID)
	assert.Equal(t, 5, p.Quantity)
	assert.Equal(t, 5, p.EndingStock)
	assert.EqualValues(t, 1, f.historyCount(t, model.ActionReconcileProduct))
	f.requireInvariant(t)
}

func TestInvariantHoldsAcrossMixedOperations(t *testing.T) {
	f := newFixture(t, DefaultLedgerConfig())
	ctx := context.Background()

	var ids []uuid.UUID
	skus := []string{"A-1", "B-1", "C-1"}
	for i := 0; i < 12; i++ {
		sku := skus[i%len(skus)]
		res, err := f.ledger.Apply(ctx, testActor, importOf("", sku, 5+i))
		require.NoError(t, err)
		ids = append(ids, res.Transaction.ID)
		if i%3 == 0 {
			_, err = f.ledger.Apply(ctx, testActor, exportOf("", sku, 2))
			require.NoError(t, err)
		}
	}
	_, err := f.ledger.Update(ctx, testActor, ids[4], UpdateInput{Quantity: ptr(1)})
	require.NoError(t, err)
	_, err = f.ledger.Update(ctx, testActor, ids[5], UpdateInput{SKU: ptr("A-1")})
	require.NoError(t, err)
	require.NoError(t, f.ledger.Delete(ctx, testActor, ids[7]))
	_, err = f.ledger.DeleteMany(ctx, testActor, ids[9:])
	require.NoError(t, err)
	f.ledger.ApplyBatch(ctx, testActor, []BatchItem{exportOf("", "B-1", 1), importOf("", "D-1", 4)})

	f.requireInvariant(t)
}
