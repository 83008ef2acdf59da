package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"go-stock-ledger/internal/model"
)

// CounterDelta is a change applied to the ledger-owned product counters.
// Quantity moves quantity and ending_stock together.
type CounterDelta struct {
	Quantity  int
	NewStock  int
	SoldStock int
}

func (d CounterDelta) IsZero() bool {
	return d.Quantity == 0 && d.NewStock == 0 && d.SoldStock == 0
}

// Add combines two deltas.
func (d CounterDelta) Add(o CounterDelta) CounterDelta {
	return CounterDelta{
		Quantity:  d.Quantity + o.Quantity,
		NewStock:  d.NewStock + o.NewStock,
		SoldStock: d.SoldStock + o.SoldStock,
	}
}

// Negate returns the delta that undoes d.
func (d CounterDelta) Negate() CounterDelta {
	return CounterDelta{Quantity: -d.Quantity, NewStock: -d.NewStock, SoldStock: -d.SoldStock}
}

// DeltaFor is the counter effect of one movement.
func DeltaFor(t model.TransactionType, qty int) CounterDelta {
	if t == model.TxExport {
		return CounterDelta{Quantity: -qty, SoldStock: qty}
	}
	return CounterDelta{Quantity: qty, NewStock: qty}
}

// InventoryStats aggregates the product table.
type InventoryStats struct {
	TotalProducts    int64           `json:"total_products"`
	TotalQuantity    int64           `json:"total_quantity"`
	TotalEndingStock int64           `json:"total_ending_stock"`
	DisplayStock     int64           `json:"display_stock"`
	WarehouseStock   int64           `json:"warehouse_stock"`
	NewStock         int64           `json:"new_stock"`
	SoldStock        int64           `json:"sold_stock"`
	DamagedStock     int64           `json:"damaged_stock"`
	TotalValue       decimal.Decimal `json:"total_value"`
	LowStockCount    int64           `json:"low_stock_count"`
}

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	CreateTx(tx *gorm.DB, product *model.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindByIDTx(tx *gorm.DB, id uuid.UUID, lock bool) (*model.Product, error)
	FindBySKUTx(tx *gorm.DB, sku string, lock bool) (*model.Product, error)
	FindByNameTx(tx *gorm.DB, name string, lock bool) (*model.Product, error)
	FindByIDsTx(tx *gorm.DB, ids []uuid.UUID) ([]model.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]model.Product, int64, error)
	All(ctx context.Context, filter ProductFilter) ([]model.Product, error)
	AllTx(tx *gorm.DB, lock bool) ([]model.Product, error)
	Groups(ctx context.Context) ([]string, error)
	UpdateDetailsTx(tx *gorm.DB, product *model.Product) error
	AdjustCountersTx(tx *gorm.DB, id uuid.UUID, delta CounterDelta, guard bool, updatedBy string) error
	SetCountersTx(tx *gorm.DB, id uuid.UUID, quantity, newStock, soldStock int) error
	DeleteTx(tx *gorm.DB, id uuid.UUID) error
	Stats(ctx context.Context, lowStockThreshold int) (*InventoryStats, error)
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepository {
	return &productRepo{db}
}

func (r *productRepo) Create(ctx context.Context, product *model.Product) error {
	return r.CreateTx(r.db.WithContext(ctx), product)
}

func (r *productRepo) CreateTx(tx *gorm.DB, product *model.Product) error {
	return translate(tx.Create(product).Error)
}

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	return r.FindByIDTx(r.db.WithContext(ctx), id, false)
}

func locked(tx *gorm.DB, lock bool) *gorm.DB {
	if lock {
		// No-op on dialects without row locks (sqlite).
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func (r *productRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID, lock bool) (*model.Product, error) {
	var product model.Product
	if err := locked(tx, lock).First(&product, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &product, nil
}

func (r *productRepo) FindBySKUTx(tx *gorm.DB, sku string, lock bool) (*model.Product, error) {
	var product model.Product
	if err := locked(tx, lock).Where("sku = ?", sku).Take(&product).Error; err != nil {
		return nil, translate(err)
	}
	return &product, nil
}

// FindByNameTx returns the oldest product with exactly this name.
func (r *productRepo) FindByNameTx(tx *gorm.DB, name string, lock bool) (*model.Product, error) {
	var product model.Product
	err := locked(tx, lock).Where("name = ?", name).Order("created_at ASC").Order("id ASC").Take(&product).Error
	if err != nil {
		return nil, translate(err)
	}
	return &product, nil
}

func (r *productRepo) FindByIDsTx(tx *gorm.DB, ids []uuid.UUID) ([]model.Product, error) {
	var products []model.Product
	if len(ids) == 0 {
		return products, nil
	}
	err := tx.Where("id IN ?", ids).Find(&products).Error
	return products, translate(err)
}

func (r *productRepo) filtered(ctx context.Context, filter ProductFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.Product{})
	if filter.Group != "" && filter.Group != "all" {
		q = q.Where("product_group = ?", filter.Group)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ?", like, like)
	}
	return q
}

func (r *productRepo) List(ctx context.Context, filter ProductFilter) ([]model.Product, int64, error) {
	q := r.filtered(ctx, filter)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var products []model.Product
	err := filter.Page.apply(q, 20).Order("name ASC").Find(&products).Error
	return products, total, err
}

// All is List without pagination, used by exports.
func (r *productRepo) All(ctx context.Context, filter ProductFilter) ([]model.Product, error) {
	var products []model.Product
	err := r.filtered(ctx, filter).Order("name ASC").Find(&products).Error
	return products, err
}

func (r *productRepo) AllTx(tx *gorm.DB, lock bool) ([]model.Product, error) {
	var products []model.Product
	err := locked(tx, lock).Order("sku ASC").Find(&products).Error
	return products, err
}

func (r *productRepo) Groups(ctx context.Context) ([]string, error) {
	var groups []string
	err := r.db.WithContext(ctx).Model(&model.Product{}).
		Distinct("product_group").Order("product_group ASC").Pluck("product_group", &groups).Error
	return groups, err
}

// UpdateDetailsTx writes the operator-editable columns only; ledger counters are never touched here.
func (r *productRepo) UpdateDetailsTx(tx *gorm.DB, product *model.Product) error {
	res := tx.Model(product).
		Select("Name", "SKU", "Group", "Unit", "Cost", "RetailPrice",
			"DisplayStock", "WarehouseStock", "DamagedStock", "UpdatedBy").
		Updates(product)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustCountersTx applies delta in a single UPDATE. With guard set, a negative
// quantity change only applies while the row still holds enough stock; otherwise
// ErrStockConflict is returned and nothing changes.
func (r *productRepo) AdjustCountersTx(tx *gorm.DB, id uuid.UUID, delta CounterDelta, guard bool, updatedBy string) error {
	if delta.IsZero() {
		return nil
	}
	updates := map[string]interface{}{
		"quantity":     gorm.Expr("quantity + ?", delta.Quantity),
		"ending_stock": gorm.Expr("ending_stock + ?", delta.Quantity),
		"new_stock":    gorm.Expr("new_stock + ?", delta.NewStock),
		"sold_stock":   gorm.Expr("sold_stock + ?", delta.SoldStock),
	}
	if updatedBy != "" {
		updates["updated_by"] = updatedBy
	}

	q := tx.Model(&model.Product{}).Where("id = ?", id)
	if guard && delta.Quantity < 0 {
		q = q.Where("quantity >= ?", -delta.Quantity)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := tx.Model(&model.Product{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrStockConflict
}

func (r *productRepo) SetCountersTx(tx *gorm.DB, id uuid.UUID, quantity, newStock, soldStock int) error {
	res := tx.Model(&model.Product{}).Where("id = ?", id).Updates(map[string]interface{}{
		"quantity":     quantity,
		"ending_stock": quantity,
		"new_stock":    newStock,
		"sold_stock":   soldStock,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *productRepo) DeleteTx(tx *gorm.DB, id uuid.UUID) error {
	res := tx.Delete(&model.Product{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *productRepo) Stats(ctx context.Context, lowStockThreshold int) (*InventoryStats, error) {
	db := r.db.WithContext(ctx)
	var stats InventoryStats

	row := db.Model(&model.Product{}).Select(`
		COUNT(*),
		COALESCE(SUM(quantity), 0),
		COALESCE(SUM(ending_stock), 0),
		COALESCE(SUM(display_stock), 0),
		COALESCE(SUM(warehouse_stock), 0),
		COALESCE(SUM(new_stock), 0),
		COALESCE(SUM(sold_stock), 0),
		COALESCE(SUM(damaged_stock), 0)`).Row()
	if err := row.Scan(&stats.TotalProducts, &stats.TotalQuantity, &stats.TotalEndingStock,
		&stats.DisplayStock, &stats.WarehouseStock, &stats.NewStock, &stats.SoldStock, &stats.DamagedStock); err != nil {
		return nil, err
	}

	if err := db.Model(&model.Product{}).Where("quantity < ?", lowStockThreshold).Count(&stats.LowStockCount).Error; err != nil {
		return nil, err
	}

	// Valuation is summed in Go so decimal precision does not depend on the dialect.
	var rows []struct {
		Quantity int
		Cost     decimal.Decimal
	}
	if err := db.Model(&model.Product{}).Select("quantity, cost").Find(&rows).Error; err != nil {
		return nil, err
	}
	stats.TotalValue = decimal.Zero
	for _, p := range rows {
		stats.TotalValue = stats.TotalValue.Add(p.Cost.Mul(decimal.NewFromInt(int64(p.Quantity))))
	}
	return &stats, nil
}
