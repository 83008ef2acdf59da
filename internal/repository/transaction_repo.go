package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"go-stock-ledger/internal/model"
)

// StockMovementData is one day of the dashboard movement chart.
type StockMovementData struct {
	Date     string `json:"date"`
	Inbound  int    `json:"inbound"`
	Outbound int    `json:"outbound"`
}

// TypeStats summarises the movements of one type.
type TypeStats struct {
	Count    int64           `json:"count"`
	Quantity int64           `json:"quantity"`
	Value    decimal.Decimal `json:"value"`
}

type TransactionStats struct {
	Import TypeStats `json:"import"`
	Export TypeStats `json:"export"`
}

// ProductTotals are the ledger sums for one product.
type ProductTotals struct {
	ProductID uuid.UUID
	Imported  int
	Exported  int
}

type TransactionRepository interface {
	CreateTx(tx *gorm.DB, t *model.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	FindByIDTx(tx *gorm.DB, id uuid.UUID, lock bool) (*model.Transaction, error)
	FindByIDsTx(tx *gorm.DB, ids []uuid.UUID) ([]model.Transaction, error)
	UpdateTx(tx *gorm.DB, t *model.Transaction) error
	DeleteTx(tx *gorm.DB, id uuid.UUID) error
	List(ctx context.Context, filter TransactionFilter) ([]model.Transaction, int64, error)
	All(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	CountByProductsTx(tx *gorm.DB, productIDs []uuid.UUID) (map[uuid.UUID]int64, error)
	Stats(ctx context.Context, from, to time.Time) (*TransactionStats, error)
	StockMovement(ctx context.Context, from, to time.Time) ([]StockMovementData, error)
	TotalsTx(tx *gorm.DB) ([]ProductTotals, error)
}

type transactionRepo struct {
	db *gorm.DB
}

func NewTransactionRepo(db *gorm.DB) TransactionRepository {
	return &transactionRepo{db}
}

func (r *transactionRepo) CreateTx(tx *gorm.DB, t *model.Transaction) error {
	return translate(tx.Omit(clause.Associations).Create(t).Error)
}

func (r *transactionRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	var t model.Transaction
	err := r.db.WithContext(ctx).Preload("Product").Preload("User").First(&t, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *transactionRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID, lock bool) (*model.Transaction, error) {
	var t model.Transaction
	if err := locked(tx, lock).First(&t, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *transactionRepo) FindByIDsTx(tx *gorm.DB, ids []uuid.UUID) ([]model.Transaction, error) {
	var txs []model.Transaction
	if len(ids) == 0 {
		return txs, nil
	}
	err := tx.Where("id IN ?", ids).Find(&txs).Error
	return txs, err
}

func (r *transactionRepo) UpdateTx(tx *gorm.DB, t *model.Transaction) error {
	res := tx.Omit(clause.Associations).Save(t)
	return translate(res.Error)
}

func (r *transactionRepo) DeleteTx(tx *gorm.DB, id uuid.UUID) error {
	res := tx.Delete(&model.Transaction{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *transactionRepo) filtered(ctx context.Context, filter TransactionFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.Transaction{})
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.ProductID != nil {
		q = q.Where("product_id = ?", *filter.ProductID)
	}
	if filter.From != nil {
		q = q.Where("date >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("date <= ?", *filter.To)
	}
	return q
}

func (r *transactionRepo) List(ctx context.Context, filter TransactionFilter) ([]model.Transaction, int64, error) {
	q := r.filtered(ctx, filter)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var txs []model.Transaction
	err := filter.Page.apply(q, 20).
		Preload("Product").Preload("User").
		Order("date DESC").Order("created_at DESC").
		Find(&txs).Error
	return txs, total, err
}

func (r *transactionRepo) All(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := r.filtered(ctx, filter).Preload("Product").Order("date DESC").Find(&txs).Error
	return txs, err
}

func (r *transactionRepo) CountByProductsTx(tx *gorm.DB, productIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(productIDs))
	if len(productIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		ProductID uuid.UUID
		Total     int64
	}
	err := tx.Model(&model.Transaction{}).
		Select("product_id, COUNT(*) AS total").
		Where("product_id IN ?", productIDs).
		Group("product_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.ProductID] = row.Total
	}
	return counts, nil
}

func (r *transactionRepo) Stats(ctx context.Context, from, to time.Time) (*TransactionStats, error) {
	var rows []struct {
		Type      model.TransactionType
		Quantity  int
		UnitPrice decimal.Decimal
	}
	err := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Select("type, quantity, unit_price").
		Where("date BETWEEN ? AND ?", from, to).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &TransactionStats{
		Import: TypeStats{Value: decimal.Zero},
		Export: TypeStats{Value: decimal.Zero},
	}
	for _, row := range rows {
		bucket := &stats.Import
		if row.Type == model.TxExport {
			bucket = &stats.Export
		}
		bucket.Count++
		bucket.Quantity += int64(row.Quantity)
		bucket.Value = bucket.Value.Add(row.UnitPrice.Mul(decimal.NewFromInt(int64(row.Quantity))))
	}
	return stats, nil
}

func (r *transactionRepo) StockMovement(ctx context.Context, from, to time.Time) ([]StockMovementData, error) {
	var results []StockMovementData

	rows, err := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Select(`
			DATE(date) as day,
			COALESCE(SUM(CASE WHEN type = ? THEN quantity ELSE 0 END), 0) as inbound,
			COALESCE(SUM(CASE WHEN type = ? THEN quantity ELSE 0 END), 0) as outbound
		`, model.TxImport, model.TxExport).
		Where("date BETWEEN ? AND ?", from, to).
		Group("DATE(date)").
		Order("day ASC").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var data StockMovementData
		var day interface{}
		if err := rows.Scan(&day, &data.Inbound, &data.Outbound); err != nil {
			return nil, err
		}
		data.Date = formatDay(day)
		results = append(results, data)
	}
	return results, rows.Err()
}

// formatDay normalises DATE() output, which is a time on postgres and a string on sqlite.
func formatDay(v interface{}) string {
	switch d := v.(type) {
	case time.Time:
		return d.Format("2006-01-02")
	case []byte:
		return string(d)
	case string:
		return d
	default:
		return ""
	}
}

// TotalsTx recomputes the ledger sums per product, including products with no movements.
func (r *transactionRepo) TotalsTx(tx *gorm.DB) ([]ProductTotals, error) {
	var totals []ProductTotals
	err := tx.Model(&model.Product{}).
		Select(`products.id AS product_id,
			COALESCE(SUM(CASE WHEN transactions.type = ? THEN transactions.quantity ELSE 0 END), 0) AS imported,
			COALESCE(SUM(CASE WHEN transactions.type = ? THEN transactions.quantity ELSE 0 END), 0) AS exported`,
			model.TxImport, model.TxExport).
		Joins("LEFT JOIN transactions ON transactions.product_id = products.id").
		Group("products.id").
		Scan(&totals).Error
	return totals, err
}
