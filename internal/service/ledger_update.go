package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"go-stock-ledger/internal/events"
	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"
	"go-stock-ledger/pkg/validator"
)

// UpdateInput carries the fields to change; nil fields keep their value.
type UpdateInput struct {
	Type        *model.TransactionType `json:"type,omitempty"`
	ProductID   *uuid.UUID             `json:"product_id,omitempty"`
	ProductName *string                `json:"product_name,omitempty"`
	SKU         *string                `json:"sku,omitempty"`
	Quantity    *int                   `json:"quantity,omitempty"`
	UnitPrice   *decimal.Decimal       `json:"unit_price,omitempty"`
	Reason      *string                `json:"reason,omitempty"`
	Note        *string                `json:"note,omitempty"`
	Summary     *string                `json:"summary,omitempty"`
	Code        *string                `json:"code,omitempty"`
	Date        *time.Time             `json:"date,omitempty"`
}

func (in UpdateInput) validate() error {
	if in.Type != nil {
		t := model.TransactionType(strings.ToLower(strings.TrimSpace(string(*in.Type))))
		if !t.Valid() {
			return ErrInvalidType
		}
	}
	if in.Quantity != nil && *in.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}

// target returns the product reference the update moves the transaction to,
// or nil when it stays on current.
func (in UpdateInput) target(current *model.Product) *ProductRef {
	ref := ProductRef{}
	moved := false
	if in.ProductID != nil && *in.ProductID != uuid.Nil && *in.ProductID != current.ID {
		ref.ID = in.ProductID
		moved = true
	}
	if in.SKU != nil {
		if sku := strings.TrimSpace(*in.SKU); sku != "" && sku != current.SKU {
			ref.SKU = sku
			moved = true
		}
	}
	if in.ProductName != nil {
		if name := strings.TrimSpace(*in.ProductName); name != "" && name != current.Name {
			ref.Name = name
			moved = true
		}
	}
	if !moved {
		return nil
	}
	return &ref
}

type change struct {
	field    string
	old, new string
}

func (s *ledgerService) Update(ctx context.Context, actor Actor, id uuid.UUID, in UpdateInput) (*model.Transaction, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var (
		updated     *model.Transaction
		moved       bool
		fromProduct *model.Product
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.transactions.FindByIDTx(tx, id, true)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTransactionNotFound
		}
		if err != nil {
			return fmt.Errorf("load transaction: %w", err)
		}

		oldProduct, err := s.products.FindByIDTx(tx, existing.ProductID, true)
		if err != nil {
			return fmt.Errorf("load product: %w", err)
		}

		newProduct := oldProduct
		if ref := in.target(oldProduct); ref != nil {
			resolved, created, err := s.directory.Resolve(tx, *ref, actor)
			if err != nil {
				return err
			}
			if created {
				if err := s.history.CreateTx(tx, historyEntry(model.ActionCreateProduct, resolved, actor,
					"Created automatically by transaction update")); err != nil {
					return fmt.Errorf("write history: %w", err)
				}
			}
			newProduct = resolved
		}
		moved = newProduct.ID != oldProduct.ID

		oldDelta := repository.DeltaFor(existing.Type, existing.Quantity)
		changes := s.applyChanges(existing, in, oldProduct, newProduct)
		existing.UpdatedBy = actor.Label()
		newDelta := repository.DeltaFor(existing.Type, existing.Quantity)

		if moved {
			// Reverse on the old product, then apply on the new one.
			reversal := oldDelta.Negate()
			guard := !s.cfg.AllowNegativeReversal
			if guard && oldProduct.Quantity+reversal.Quantity < 0 {
				return insufficient(oldProduct, oldProduct.Quantity, -reversal.Quantity)
			}
			if err := s.adjust(tx, oldProduct, reversal, guard, actor); err != nil {
				return err
			}
			if newProduct.Quantity+newDelta.Quantity < 0 {
				return insufficient(newProduct, newProduct.Quantity, -newDelta.Quantity)
			}
			if err := s.adjust(tx, newProduct, newDelta, true, actor); err != nil {
				return err
			}
		} else {
			diff := newDelta.Add(oldDelta.Negate())
			if oldProduct.Quantity+diff.Quantity < 0 {
				return insufficient(oldProduct, oldProduct.Quantity, -diff.Quantity)
			}
			if err := s.adjust(tx, oldProduct, diff, true, actor); err != nil {
				return err
			}
		}

		if err := s.transactions.UpdateTx(tx, existing); err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}

		if newProduct, err = s.products.FindByIDTx(tx, newProduct.ID, false); err != nil {
			return fmt.Errorf("reload product: %w", err)
		}
		existing.Product = newProduct
		if moved {
			if fromProduct, err = s.products.FindByIDTx(tx, oldProduct.ID, false); err != nil {
				return fmt.Errorf("reload product: %w", err)
			}
		}

		if err := s.history.CreateTx(tx, historyEntry(model.ActionUpdateTransaction, newProduct, actor,
			describeUpdate(existing, changes))); err != nil {
			return fmt.Errorf("write history: %w", err)
		}
		updated = existing
		return nil
	})
	if err != nil {
		logLedgerError(err, "update transaction")
		return nil, err
	}

	s.cache.Invalidate()
	log.Info().
		Str("transaction_id", id.String()).
		Str("product_id", updated.ProductID.String()).
		Bool("moved", moved).
		Msg("transaction updated")

	data := map[string]interface{}{"transaction": updated, "product": updated.Product}
	if fromProduct != nil {
		data["previous_product"] = fromProduct
	}
	s.publish(ctx, events.NewStockUpdate(events.ActionTransactionUpdated, data, actor.eventUser(),
		fmt.Sprintf("%s updated transaction %s", actor.displayName(), updated.Code)))
	return updated, nil
}

// applyChanges mutates t in place and returns what changed.
func (s *ledgerService) applyChanges(t *model.Transaction, in UpdateInput, from, to *model.Product) []change {
	var changes []change
	record := func(field, old, new string) {
		if old != new {
			changes = append(changes, change{field: field, old: old, new: new})
		}
	}

	if to.ID != from.ID {
		record("product", from.SKU, to.SKU)
		t.ProductID = to.ID
	}
	if in.Type != nil {
		typ := model.TransactionType(strings.ToLower(strings.TrimSpace(string(*in.Type))))
		record("type", string(t.Type), string(typ))
		t.Type = typ
	}
	if in.Quantity != nil {
		record("quantity", fmt.Sprint(t.Quantity), fmt.Sprint(*in.Quantity))
		t.Quantity = *in.Quantity
	}
	if in.UnitPrice != nil {
		record("unit_price", t.UnitPrice.String(), in.UnitPrice.String())
		t.UnitPrice = *in.UnitPrice
	}
	if in.Reason != nil {
		v := validator.SanitizeText(*in.Reason)
		record("reason", t.Reason, v)
		t.Reason = v
	}
	if in.Note != nil {
		v := validator.SanitizeText(*in.Note)
		record("note", t.Note, v)
		t.Note = v
	}
	if in.Summary != nil {
		v := validator.SanitizeText(*in.Summary)
		record("summary", t.Summary, v)
		t.Summary = v
	}
	if in.Code != nil {
		if v := validator.SanitizeText(*in.Code); v != "" {
			record("code", t.Code, v)
			t.Code = v
		}
	}
	if in.Date != nil && !in.Date.IsZero() {
		record("date", t.Date.Format(time.RFC3339), in.Date.Format(time.RFC3339))
		t.Date = *in.Date
	}
	return changes
}

func describeUpdate(t *model.Transaction, changes []change) string {
	if len(changes) == 0 {
		return fmt.Sprintf("Updated transaction %s (no field changes)", t.Code)
	}
	parts := make([]string, 0, len(changes))
	for _, c := range changes {
		parts = append(parts, fmt.Sprintf("%s: %s -> %s", c.field, c.old, c.new))
	}
	return fmt.Sprintf("Updated transaction %s: %s", t.Code, strings.Join(parts, "; "))
}
