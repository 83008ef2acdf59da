package service

import (
	"context"
	"fmt"
	"time"

	"go-stock-ledger/internal/repository"
)

type DashboardService interface {
	GetStockMovement(ctx context.Context, days int) ([]repository.StockMovementData, error)
	GetDashboardStats(ctx context.Context) (*DashboardStats, error)
}

// DashboardStats combines inventory totals with the last 30 days of movements.
type DashboardStats struct {
	Inventory    *repository.InventoryStats   `json:"inventory"`
	Transactions *repository.TransactionStats `json:"transactions"`
	PeriodDays   int                          `json:"period_days"`
}

type dashboardService struct {
	inventory InventoryService
	txRepo    repository.TransactionRepository
	cache     *StatsCache
	now       func() time.Time
}

func NewDashboardService(inventory InventoryService, txRepo repository.TransactionRepository, cache *StatsCache) DashboardService {
	return &dashboardService{inventory: inventory, txRepo: txRepo, cache: cache, now: time.Now}
}

func (s *dashboardService) GetStockMovement(ctx context.Context, days int) ([]repository.StockMovementData, error) {
	if days <= 0 {
		days = 7
	}
	key := fmt.Sprintf("stock_movement:%d", days)
	if v, ok := s.cache.get(key); ok {
		return v.([]repository.StockMovementData), nil
	}

	endDate := s.now()
	startDate := endDate.AddDate(0, 0, -days)
	data, err := s.txRepo.StockMovement(ctx, startDate, endDate)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []repository.StockMovementData{}
	}
	s.cache.set(key, data)
	return data, nil
}

func (s *dashboardService) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	const period = 30

	inv, err := s.inventory.Stats(ctx)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("transaction_stats:%d", period)
	if v, ok := s.cache.get(key); ok {
		stats := v.(repository.TransactionStats)
		return &DashboardStats{Inventory: inv, Transactions: &stats, PeriodDays: period}, nil
	}

	end := s.now()
	txStats, err := s.txRepo.Stats(ctx, end.AddDate(0, 0, -period), end)
	if err != nil {
		return nil, err
	}
	s.cache.set(key, *txStats)
	return &DashboardStats{Inventory: inv, Transactions: txStats, PeriodDays: period}, nil
}
