package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"go-stock-ledger/internal/events"
)

type BatchSuccess struct {
	Index         int       `json:"index"`
	TransactionID uuid.UUID `json:"transaction_id"`
	ProductID     uuid.UUID `json:"product_id"`
}

type BatchFailure struct {
	Index int       `json:"index"`
	Item  BatchItem `json:"item"`
	Error string    `json:"error"`
}

type BatchResult struct {
	Total           int            `json:"total"`
	SucceededCount  int            `json:"succeeded_count"`
	FailedCount     int            `json:"failed_count"`
	Skipped         int            `json:"skipped"`
	Partial         bool           `json:"partial"`
	FailedTruncated bool           `json:"failed_truncated"`
	Succeeded       []BatchSuccess `json:"succeeded"`
	Failed          []BatchFailure `json:"failed"`
}

// batchRun collects per-item outcomes from concurrent workers.
type batchRun struct {
	mu        sync.Mutex
	succeeded []BatchSuccess
	failed    []BatchFailure
	skipped   int
	products  map[string]uuid.UUID
}

func (r *batchRun) fail(index int, item BatchItem, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, BatchFailure{Index: index, Item: item, Error: err.Error()})
}

func (r *batchRun) succeed(index int, key string, res *ApplyResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.succeeded = append(r.succeeded, BatchSuccess{
		Index:         index,
		TransactionID: res.Transaction.ID,
		ProductID:     res.Product.ID,
	})
	r.products[key] = res.Product.ID
}

func (r *batchRun) skip(n int) {
	r.mu.Lock()
	r.skipped += n
	r.mu.Unlock()
}

func (r *batchRun) cachedProduct(key string) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.products[key]
	return id, ok
}

// ApplyBatch applies each item as an independent movement. Items naming the same
// product never run concurrently, and a product id resolved by an earlier item is
// reused by later ones. Once the batch budget is spent no further items start and
// the result is marked partial.
func (s *ledgerService) ApplyBatch(ctx context.Context, actor Actor, items []BatchItem) *BatchResult {
	run := &batchRun{products: make(map[string]uuid.UUID)}
	locks := newKeyedMutex()

	budget, cancel := context.WithTimeout(ctx, s.cfg.BatchTimeout)
	defer cancel()

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.BatchWorkers)

	for i, item := range items {
		if err := item.Validate(); err != nil {
			run.fail(i, item, err)
			continue
		}
		if budget.Err() != nil {
			run.skip(countValid(items[i:]))
			for j := i; j < len(items); j++ {
				if err := items[j].Validate(); err != nil {
					run.fail(j, items[j], err)
				}
			}
			break
		}

		i, item := i, item
		g.Go(func() error {
			key := item.normalized().ref().key()
			unlock := locks.Lock(key)
			defer unlock()

			if budget.Err() != nil {
				run.skip(1)
				return nil
			}

			in := item
			if in.ProductID == nil {
				if id, ok := run.cachedProduct(key); ok {
					in.ProductID = &id
				}
			}

			res, err := s.applyOnce(ctx, actor, in)
			if err != nil {
				run.fail(i, item, err)
				return nil
			}
			run.succeed(i, key, res)
			return nil
		})
	}
	_ = g.Wait()

	result := run.result(len(items), s.cfg.BatchFailureLimit)
	if result.SucceededCount > 0 {
		s.publish(ctx, events.NewStockUpdate(events.ActionBatchApplied, map[string]int{
			"total":     result.Total,
			"succeeded": result.SucceededCount,
			"failed":    result.FailedCount,
			"skipped":   result.Skipped,
		}, actor.eventUser(), fmt.Sprintf("%s applied %d of %d batch items", actor.displayName(), result.SucceededCount, result.Total)))
	}

	log.Info().
		Int("total", result.Total).
		Int("succeeded", result.SucceededCount).
		Int("failed", result.FailedCount).
		Int("skipped", result.Skipped).
		Bool("partial", result.Partial).
		Msg("batch applied")
	return result
}

func (r *batchRun) result(total, failureLimit int) *BatchResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	sort.Slice(r.succeeded, func(a, b int) bool { return r.succeeded[a].Index < r.succeeded[b].Index })
	sort.Slice(r.failed, func(a, b int) bool { return r.failed[a].Index < r.failed[b].Index })

	res := &BatchResult{
		Total:          total,
		SucceededCount: len(r.succeeded),
		FailedCount:    len(r.failed),
		Skipped:        r.skipped,
		Partial:        r.skipped > 0,
		Succeeded:      append([]BatchSuccess{}, r.succeeded...),
		Failed:         append([]BatchFailure{}, r.failed...),
	}
	if len(res.Failed) > failureLimit {
		res.Failed = res.Failed[:failureLimit]
		res.FailedTruncated = true
	}
	return res
}

func countValid(items []BatchItem) int {
	n := 0
	for _, item := range items {
		if item.Validate() == nil {
			n++
		}
	}
	return n
}
