package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"go-stock-ledger/internal/model"
)

// HistoryRepository is append-only: entries are never updated or removed.
type HistoryRepository interface {
	CreateTx(tx *gorm.DB, entry *model.HistoryLog) error
	CreateBatchTx(tx *gorm.DB, entries []model.HistoryLog) error
	List(ctx context.Context, filter HistoryFilter) ([]model.HistoryLog, int64, error)
}

type historyRepo struct {
	db *gorm.DB
}

func NewHistoryRepo(db *gorm.DB) HistoryRepository {
	return &historyRepo{db}
}

func (r *historyRepo) CreateTx(tx *gorm.DB, entry *model.HistoryLog) error {
	return tx.Omit(clause.Associations).Create(entry).Error
}

func (r *historyRepo) CreateBatchTx(tx *gorm.DB, entries []model.HistoryLog) error {
	if len(entries) == 0 {
		return nil
	}
	return tx.Omit(clause.Associations).CreateInBatches(entries, 200).Error
}

func (r *historyRepo) List(ctx context.Context, filter HistoryFilter) ([]model.HistoryLog, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.HistoryLog{})
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if filter.ProductID != nil {
		q = q.Where("product_id = ?", *filter.ProductID)
	}
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []model.HistoryLog
	err := filter.Page.apply(q, 50).Preload("User").Order("created_at DESC").Find(&entries).Error
	return entries, total, err
}
