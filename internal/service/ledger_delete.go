package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go-stock-ledger/internal/events"
	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"
)

type DeleteFailure struct {
	ID    uuid.UUID `json:"id"`
	Error string    `json:"error"`
}

type DeleteManyResult struct {
	DeletedCount int             `json:"deleted_count"`
	DeletedIDs   []uuid.UUID     `json:"deleted_ids"`
	Failed       []DeleteFailure `json:"failed"`
}

func (s *ledgerService) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	var (
		deleted *model.Transaction
		product *model.Product
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		deleted, product, err = s.deleteTx(tx, actor, id, true)
		return err
	})
	if err != nil {
		logLedgerError(err, "delete transaction")
		return err
	}

	s.cache.Invalidate()
	log.Info().
		Str("transaction_id", id.String()).
		Str("product_id", product.ID.String()).
		Int("quantity", product.Quantity).
		Msg("transaction deleted")

	s.publish(ctx, events.NewStockUpdate(events.ActionTransactionDeleted,
		map[string]interface{}{"transaction_id": id, "product": product}, actor.eventUser(),
		fmt.Sprintf("%s deleted transaction %s", actor.displayName(), deleted.Code)))
	return nil
}

// deleteTx reverses one transaction's effect and removes it.
func (s *ledgerService) deleteTx(tx *gorm.DB, actor Actor, id uuid.UUID, writeHistory bool) (*model.Transaction, *model.Product, error) {
	existing, err := s.transactions.FindByIDTx(tx, id, true)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load transaction: %w", err)
	}

	product, err := s.products.FindByIDTx(tx, existing.ProductID, true)
	if err != nil {
		return nil, nil, fmt.Errorf("load product: %w", err)
	}

	reversal := repository.DeltaFor(existing.Type, existing.Quantity).Negate()
	guard := !s.cfg.AllowNegativeReversal
	if guard && product.Quantity+reversal.Quantity < 0 {
		return nil, nil, insufficient(product, product.Quantity, -reversal.Quantity)
	}
	if err := s.adjust(tx, product, reversal, guard, actor); err != nil {
		return nil, nil, err
	}
	if err := s.transactions.DeleteTx(tx, existing.ID); err != nil {
		return nil, nil, fmt.Errorf("delete transaction: %w", err)
	}

	if product, err = s.products.FindByIDTx(tx, product.ID, false); err != nil {
		return nil, nil, fmt.Errorf("reload product: %w", err)
	}

	if writeHistory {
		details := fmt.Sprintf("Deleted %s of %d %s (code %s), stock now %d",
			existing.Type, existing.Quantity, unitOf(product), existing.Code, product.Quantity)
		if err := s.history.CreateTx(tx, historyEntry(model.ActionDeleteTransaction, product, actor, details)); err != nil {
			return nil, nil, fmt.Errorf("write history: %w", err)
		}
	}
	return existing, product, nil
}

type deleteSummary struct {
	product  *model.Product
	count    int
	imported int
	exported int
}

// DeleteMany removes each transaction in its own savepoint so one failure does
// not undo the others. Unknown ids are skipped. Above the history threshold a
// single summary entry per product replaces the per-transaction entries.
func (s *ledgerService) DeleteMany(ctx context.Context, actor Actor, ids []uuid.UUID) (*DeleteManyResult, error) {
	ids = uniqueIDs(ids)
	res := &DeleteManyResult{DeletedIDs: []uuid.UUID{}, Failed: []DeleteFailure{}}
	perItemHistory := len(ids) <= s.cfg.HistoryBatchThreshold

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res.DeletedCount = 0
		res.DeletedIDs = res.DeletedIDs[:0]
		res.Failed = res.Failed[:0]

		var order []uuid.UUID
		summaries := map[uuid.UUID]*deleteSummary{}

		for _, id := range ids {
			var (
				deleted *model.Transaction
				product *model.Product
			)
			err := tx.Transaction(func(sp *gorm.DB) error {
				var err error
				deleted, product, err = s.deleteTx(sp, actor, id, perItemHistory)
				return err
			})
			if errors.Is(err, ErrTransactionNotFound) {
				continue
			}
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				res.Failed = append(res.Failed, DeleteFailure{ID: id, Error: err.Error()})
				continue
			}

			res.DeletedCount++
			res.DeletedIDs = append(res.DeletedIDs, id)

			sum, ok := summaries[product.ID]
			if !ok {
				sum = &deleteSummary{}
				summaries[product.ID] = sum
				order = append(order, product.ID)
			}
			sum.product = product
			sum.count++
			if deleted.Type == model.TxExport {
				sum.exported += deleted.Quantity
			} else {
				sum.imported += deleted.Quantity
			}
		}

		if perItemHistory {
			return nil
		}
		entries := make([]model.HistoryLog, 0, len(order))
		for _, pid := range order {
			sum := summaries[pid]
			details := fmt.Sprintf("Deleted %d transactions in bulk (imports %d, exports %d), stock now %d",
				sum.count, sum.imported, sum.exported, sum.product.Quantity)
			entries = append(entries, *historyEntry(model.ActionDeleteTransactions, sum.product, actor, details))
		}
		if err := s.history.CreateBatchTx(tx, entries); err != nil {
			return fmt.Errorf("write history: %w", err)
		}
		return nil
	})
	if err != nil {
		logLedgerError(err, "delete transactions")
		return nil, err
	}

	if res.DeletedCount > 0 {
		s.cache.Invalidate()
		s.publish(ctx, events.NewStockUpdate(events.ActionTransactionsDeleted,
			map[string]interface{}{"deleted_ids": res.DeletedIDs, "deleted_count": res.DeletedCount}, actor.eventUser(),
			fmt.Sprintf("%s deleted %d transactions", actor.displayName(), res.DeletedCount)))
	}
	log.Info().
		Int("requested", len(ids)).
		Int("deleted", res.DeletedCount).
		Int("failed", len(res.Failed)).
		Msg("bulk delete finished")
	return res, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
