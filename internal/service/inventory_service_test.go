package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-stock-ledger/internal/events"
	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"
)

func widgetInput() ProductInput {
	return ProductInput{
		Name:        "Widget",
		SKU:         "W-1",
		Group:       "Parts",
		Unit:        "pcs",
		Cost:        decimal.RequireFromString("1.25"),
		RetailPrice: decimal.RequireFromString("3.00"),
	}
}

func TestCreateProductWithOpeningStock(t *testing.T) {
	f := newFixture(t, DefaultLedgerConfig())
	in := widgetInput()
	in.OpeningQuantity = 15

	p, err := f.inventory.CreateProduct(context.Background(), testActor, in)
	require.NoError(t, err)
	assert.Equal(t, 15, p.Quantity)
	assert.Equal(t, 15, p.NewStock)
	assert.Equal(t, "Parts", p.Group)

	assert.EqualValues(t, 1, f.count(t, &model.Transaction{}, "product_id = ?", p.ID))
	assert.EqualValues(t, 1, f.historyCount(t, model.ActionCreateProduct))
	assert.EqualValues(t, 1, f.historyCount(t, model.ActionImportTransaction))
	f.requireInvariant(t)

	evts := f.recorder.Events()
	require.NotEmpty(t, evts)
	assert.Equal(t, events.ActionProductCreated, evts[len(evts)-1].Action)
}

func TestCreateProductRejectsDuplicateSKU(t *testing.T) {
	f := newFixture(t, DefaultLedgerConfig())
	ctx := context.Background()
	_, err := f.inventory.CreateProduct(ctx, testActor, widgetInput())
	require.NoError(t, err)

	_, err = f.inventory.CreateProduct(ctx, testActor, widgetInput())
	assert.ErrorIs(t, err, ErrDuplicateSKU)
	assert.True(t, IsConflict(err))
}

func TestCreateProductValidation(t *testing.T) {
	f := newFixture(t, DefaultLedgerConfig())
	in := widgetInput()
	in.Name = ""
	in.Cost = decimal.NewFromInt(-1)

	_, err := f.inventory.CreateProduct(context.Background(), testActor, in)
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	in = widgetInput()
	in.Cost = decimal.NewFromInt(-1)
	_, err = f.inventory.CreateProduct(context.Background(), testActor, in)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "cost", verr.Fields[0].FailedField)
}

func TestUpdateProductLeavesLedgerCountersAlone(t *testing.T) {
	f := newFixture(t, DefaultLedgerConfig())
	ctx := context.Background()
	res, err := f.ledger.Apply(ctx, testActor, importOf("Widget", "W-1", 8))
	require.NoError(t, err)

	in := widgetInput()
	in.Name = "Widget Mk2"
	in.SKU = "W-2"
	in.DisplayStock = 3
	updated, err := f.inventory.UpdateProduct(ctx, testActor, res.Product.ID, in)
	require.NoError(t, err)

	assert.Equal(t, "Widget Mk2", updated.Name)
	assert.Equal(t, "W-2", updated.SKU)
	assert.Equal(t, 3, updated.DisplayStock)
	assert.Equal(t, 8, updated.Quantity)
	assert.Equal(t, 8, updated.NewStock)

	var entry model.HistoryLog
	require.NoError(t, f.db.Where("action = ?", model.ActionUpdateProduct).First(&entry).Error)
	assert.Contains(t, entry.Details, "sku: W-1 -> W-2")
	f.requireInvariant(t)
}

func TestUpdateProductSKUCollision(t *testing.T) {
	f := newFixture(t, DefaultLedgerConfig())
	ctx := context.Background()
	f.seedProduct(t, "Gadget", "G-1")
	w := f.seedProduct(t, "Widget", "W-1")

	in := widgetInput()
	in.SKU = "G-1"
	_, err := f.inventory.UpdateProduct(ctx, testActor, w.ID, in)
	assert.ErrorIs(t, err, ErrDuplicateSKU)

	_, err = f.inventory.UpdateProduct(ctx, testActor, uuid.New(), widgetInput())
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestDeleteProductInUse(t *testing.T) {
	f := newFixture(t, DefaultLedgerConfig())
	ctx := context.Background()
	res, err := f.ledger.Apply(ctx, testActor, importOf("Widget", "W-1", 1))
	require.NoError(t, err)
	idle := f.seedProduct(t, "Idle", "I-1")

	err = f.inventory.DeleteProduct(ctx, testActor, res.Product.ID)
	assert.ErrorIs(t, err, ErrProductInUse)

	out, err := f.inventory.DeleteProducts(ctx, testActor, []uuid.UUID{res.Product.ID, idle.ID, uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, 1, out.DeletedCount)
	assert.Equal(t, []uuid.UUID{idle.ID}, out.DeletedIDs)
	assert.Len(t, out.Failed, 2)

	_, err = f.inventory.GetProduct(ctx, idle.ID)
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.EqualValues(t, 1, f.historyCount(t, model.ActionDeleteProduct))
}

func TestInventoryStatsAreCachedUntilLedgerChanges(t *testing.T) {
	f := newFixture(t, DefaultLedgerConfig())
	ctx := context.Background()
	res, err := f.ledger.Apply(ctx, testActor, importOf("Widget", "W-1", 4))
	require.NoError(t, err)

	stats, err := f.inventory.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalProducts)
	assert.EqualValues(t, 4, stats.TotalQuantity)
	assert.EqualValues(t, 1, stats.LowStockCount)

	// Writes that bypass the ledger do not invalidate the cache.
	require.NoError(t, f.products.SetCountersTx(f.db, res.Product.ID, 40, 40, 0))
	stats, err = f.inventory.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, stats.TotalQuantity)

	_, err = f.ledger.Apply(ctx, testActor, importOf("Widget", "W-1", 1))
	require.NoError(t, err)
	stats, err = f.inventory.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 41, stats.TotalQuantity)
	assert.Zero(t, stats.LowStockCount)
}

func TestListProductsPaging(t *testing.T) {
	f := newFixture(t, DefaultLedgerConfig())
	for _, sku := range []string{"A-1", "B-1", "C-1"} {
		f.seedProduct(t, "Item "+sku, sku)
	}

	page, err := f.inventory.ListProducts(context.Background(), repository.ProductFilter{Page: repository.Page{Page: 2, Limit: 2}})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.Limit)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "C-1", page.Data[0].SKU)
}

func TestDashboardStats(t *testing.T) {
	f := newFixture(t, DefaultLedgerConfig())
	ctx := context.Background()
	_, err := f.ledger.Apply(ctx, testActor, importOf("Widget", "W-1", 10))
	require.NoError(t, err)
	_, err = f.ledger.Apply(ctx, testActor, exportOf("Widget", "W-1", 3))
	require.NoError(t, err)

	dash := NewDashboardService(f.inventory, f.txs, f.cache)
	stats, err := dash.GetDashboardStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, stats.PeriodDays)
	assert.EqualValues(t, 7, stats.Inventory.TotalQuantity)
	assert.EqualValues(t, 1, stats.Transactions.Import.Count)
	assert.EqualValues(t, 10, stats.Transactions.Import.Quantity)
	assert.EqualValues(t, 3, stats.Transactions.Export.Quantity)

	movement, err := dash.GetStockMovement(ctx, 7)
	require.NoError(t, err)
	require.Len(t, movement, 1)
}
