package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"go-stock-ledger/internal/events"
	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"
	"go-stock-ledger/internal/testdb"
)

const defaultTestTTL = time.Minute

var testActor = Actor{Name: "Tester", Email: "tester@example.com"}

type fixture struct {
	db        *gorm.DB
	products  repository.ProductRepository
	txs       repository.TransactionRepository
	history   repository.HistoryRepository
	recorder  *events.Recorder
	cache     *StatsCache
	ledger    LedgerService
	inventory InventoryService
}

func newFixture(t *testing.T, cfg LedgerConfig) *fixture {
	t.Helper()
	db := testdb.Open(t)
	f := &fixture{
		db:       db,
		products: repository.NewProductRepo(db),
		txs:      repository.NewTransactionRepo(db),
		history:  repository.NewHistoryRepo(db),
		recorder: events.NewRecorder(256),
		cache:    NewStatsCache(defaultTestTTL),
	}
	f.ledger = NewLedgerService(db, f.products, f.txs, f.history, f.recorder, f.cache, cfg)
	f.inventory = NewInventoryService(db, f.products, f.txs, f.history, f.ledger, f.recorder, f.cache, 10)
	return f
}

func (f *fixture) seedProduct(t *testing.T, name, sku string) *model.Product {
	t.Helper()
	p := &model.Product{
		Name:        name,
		SKU:         sku,
		Cost:        decimal.RequireFromString("2.50"),
		RetailPrice: decimal.RequireFromString("4.00"),
	}
	require.NoError(t, f.products.Create(context.Background(), p))
	return p
}

func (f *fixture) product(t *testing.T, id uuid.UUID) *model.Product {
	t.Helper()
	p, err := f.products.FindByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (f *fixture) productBySKU(t *testing.T, sku string) *model.Product {
	t.Helper()
	p, err := f.products.FindBySKUTx(f.db, sku, false)
	require.NoError(t, err)
	return p
}

func (f *fixture) count(t *testing.T, m interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := f.db.Model(m)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func (f *fixture) historyCount(t *testing.T, action string) int64 {
	return f.count(t, &model.HistoryLog{}, "action = ?", action)
}

// requireInvariant checks every product's counters against its transactions.
func (f *fixture) requireInvariant(t *testing.T) {
	t.Helper()
	drifts, err := f.ledger.Reconcile(context.Background(), SystemActor, false)
	require.NoError(t, err)
	require.Empty(t, drifts)
}

func importOf(name, sku string, qty int) ApplyInput {
	return ApplyInput{Type: model.TxImport, ProductName: name, SKU: sku, Quantity: qty}
}

func exportOf(name, sku string, qty int) ApplyInput {
	return ApplyInput{Type: model.TxExport, ProductName: name, SKU: sku, Quantity: qty}
}

// failingHistory breaks the audit write to prove the unit of work rolls back.
type failingHistory struct {
	repository.HistoryRepository
}

var errHistoryDown = errors.New("history store unavailable")

func (failingHistory) CreateTx(*gorm.DB, *model.HistoryLog) error { return errHistoryDown }

// blindOnce misses the first SKU and name lookups, as if another writer
// inserted the product between our lookup and our insert.
type blindOnce struct {
	repository.ProductRepository
	skuMissed, nameMissed bool
}

func (b *blindOnce) FindBySKUTx(tx *gorm.DB, sku string, lock bool) (*model.Product, error) {
	if !b.skuMissed {
		b.skuMissed = true
		return nil, repository.ErrNotFound
	}
	return b.ProductRepository.FindBySKUTx(tx, sku, lock)
}

func (b *blindOnce) FindByNameTx(tx *gorm.DB, name string, lock bool) (*model.Product, error) {
	if !b.nameMissed {
		b.nameMissed = true
		return nil, repository.ErrNotFound
	}
	return b.ProductRepository.FindByNameTx(tx, name, lock)
}
