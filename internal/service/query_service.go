package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"
)

// QueryService serves the read side of transactions and history.
type QueryService interface {
	ListTransactions(ctx context.Context, filter repository.TransactionFilter) (*PagedResult[model.Transaction], error)
	ExportTransactions(ctx context.Context, filter repository.TransactionFilter) ([]model.Transaction, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	TransactionStats(ctx context.Context, from, to time.Time) (*repository.TransactionStats, error)
	ListHistory(ctx context.Context, filter repository.HistoryFilter) (*PagedResult[model.HistoryLog], error)
}

type queryService struct {
	transactionRepo repository.TransactionRepository
	historyRepo     repository.HistoryRepository
}

func NewQueryService(tRepo repository.TransactionRepository, hRepo repository.HistoryRepository) QueryService {
	return &queryService{transactionRepo: tRepo, historyRepo: hRepo}
}

func (s *queryService) ListTransactions(ctx context.Context, filter repository.TransactionFilter) (*PagedResult[model.Transaction], error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, ErrInvalidType
	}
	items, total, err := s.transactionRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return paged(items, total, filter.Page, 20), nil
}

func (s *queryService) ExportTransactions(ctx context.Context, filter repository.TransactionFilter) ([]model.Transaction, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, ErrInvalidType
	}
	return s.transactionRepo.All(ctx, filter)
}

func (s *queryService) GetTransaction(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	t, err := s.transactionRepo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTransactionNotFound
	}
	return t, err
}

func (s *queryService) TransactionStats(ctx context.Context, from, to time.Time) (*repository.TransactionStats, error) {
	if to.IsZero() {
		to = time.Now()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	return s.transactionRepo.Stats(ctx, from, to)
}

func (s *queryService) ListHistory(ctx context.Context, filter repository.HistoryFilter) (*PagedResult[model.HistoryLog], error) {
	items, total, err := s.historyRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return paged(items, total, filter.Page, 50), nil
}
