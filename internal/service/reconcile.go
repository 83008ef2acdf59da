package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go-stock-ledger/internal/model"
)

// Drift is a product whose counters disagree with its transactions.
type Drift struct {
	ProductID        uuid.UUID `json:"product_id"`
	SKU              string    `json:"sku"`
	Name             string    `json:"name"`
	Quantity         int       `json:"quantity"`
	EndingStock      int       `json:"ending_stock"`
	NewStock         int       `json:"new_stock"`
	SoldStock        int       `json:"sold_stock"`
	ExpectedQuantity int       `json:"expected_quantity"`
	ExpectedNew      int       `json:"expected_new_stock"`
	ExpectedSold     int       `json:"expected_sold_stock"`
	Fixed            bool      `json:"fixed"`
}

// Reconcile recomputes every product's counters from its transactions and
// reports the differences. With fix set the counters are rewritten in the
// same unit of work.
func (s *ledgerService) Reconcile(ctx context.Context, actor Actor, fix bool) ([]Drift, error) {
	drifts := []Drift{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		products, err := s.products.AllTx(tx, fix)
		if err != nil {
			return fmt.Errorf("load products: %w", err)
		}
		totals, err := s.transactions.TotalsTx(tx)
		if err != nil {
			return fmt.Errorf("sum transactions: %w", err)
		}

		type sums struct{ imported, exported int }
		byProduct := make(map[uuid.UUID]sums, len(totals))
		for _, t := range totals {
			byProduct[t.ProductID] = sums{imported: t.Imported, exported: t.Exported}
		}

		for i := range products {
			p := &products[i]
			sum := byProduct[p.ID]
			expected := sum.imported - sum.exported
			if p.Quantity == expected && p.EndingStock == expected &&
				p.NewStock == sum.imported && p.SoldStock == sum.exported {
				continue
			}

			d := Drift{
				ProductID:        p.ID,
				SKU:              p.SKU,
				Name:             p.Name,
				Quantity:         p.Quantity,
				EndingStock:      p.EndingStock,
				NewStock:         p.NewStock,
				SoldStock:        p.SoldStock,
				ExpectedQuantity: expected,
				ExpectedNew:      sum.imported,
				ExpectedSold:     sum.exported,
			}
			if fix {
				if err := s.products.SetCountersTx(tx, p.ID, expected, sum.imported, sum.exported); err != nil {
					return fmt.Errorf("rewrite counters for %s: %w", p.SKU, err)
				}
				details := fmt.Sprintf("Reconciled counters: quantity %d -> %d, new %d -> %d, sold %d -> %d",
					p.Quantity, expected, p.NewStock, sum.imported, p.SoldStock, sum.exported)
				if err := s.history.CreateTx(tx, historyEntry(model.ActionReconcileProduct, p, actor, details)); err != nil {
					return fmt.Errorf("write history: %w", err)
				}
				d.Fixed = true
			}
			drifts = append(drifts, d)
		}
		return nil
	})
	if err != nil {
		logLedgerError(err, "reconcile")
		return nil, err
	}

	if fix && len(drifts) > 0 {
		s.cache.Invalidate()
	}
	log.Info().Int("drifted", len(drifts)).Bool("fix", fix).Msg("ledger reconciled")
	return drifts, nil
}
