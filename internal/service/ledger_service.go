package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"go-stock-ledger/internal/events"
	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"
	"go-stock-ledger/pkg/validator"
)

// LedgerService is the only write path for transactions and the ledger-owned
// product counters. Every call runs as a single unit of work.
type LedgerService interface {
	ResolveProduct(ctx context.Context, actor Actor, ref ProductRef) (*ResolveResult, error)
	Apply(ctx context.Context, actor Actor, in ApplyInput) (*ApplyResult, error)
	// ApplyTx joins the caller's unit of work; the caller publishes and
	// invalidates caches after commit.
	ApplyTx(tx *gorm.DB, actor Actor, in ApplyInput) (*ApplyResult, error)
	Update(ctx context.Context, actor Actor, id uuid.UUID, in UpdateInput) (*model.Transaction, error)
	Delete(ctx context.Context, actor Actor, id uuid.UUID) error
	DeleteMany(ctx context.Context, actor Actor, ids []uuid.UUID) (*DeleteManyResult, error)
	ApplyBatch(ctx context.Context, actor Actor, items []BatchItem) *BatchResult
	Reconcile(ctx context.Context, actor Actor, fix bool) ([]Drift, error)
}

// ApplyInput describes one stock movement. The product is named by ProductID,
// SKU or ProductName; unknown SKUs/names create the product.
type ApplyInput struct {
	Type        model.TransactionType `json:"type"`
	ProductID   *uuid.UUID            `json:"product_id,omitempty"`
	ProductName string                `json:"product_name,omitempty"`
	SKU         string                `json:"sku,omitempty"`
	Quantity    int                   `json:"quantity"`
	UnitPrice   *decimal.Decimal      `json:"unit_price,omitempty"`
	Reason      string                `json:"reason,omitempty"`
	Note        string                `json:"note,omitempty"`
	Summary     string                `json:"summary,omitempty"`
	Code        string                `json:"code,omitempty"`
	Date        *time.Time            `json:"date,omitempty"`
}

// BatchItem is one entry of ApplyBatch.
type BatchItem = ApplyInput

func (in ApplyInput) normalized() ApplyInput {
	in.Type = model.TransactionType(strings.ToLower(strings.TrimSpace(string(in.Type))))
	in.ProductName = strings.TrimSpace(in.ProductName)
	in.SKU = strings.TrimSpace(in.SKU)
	in.Code = strings.TrimSpace(in.Code)
	return in
}

func (in ApplyInput) ref() ProductRef {
	return ProductRef{ID: in.ProductID, Name: in.ProductName, SKU: in.SKU}
}

// Validate checks the input without touching storage.
func (in ApplyInput) Validate() error {
	in = in.normalized()
	if !in.Type.Valid() {
		return ErrInvalidType
	}
	if in.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if in.ref().Empty() {
		return ErrMissingProductIdentity
	}
	return nil
}

type ApplyResult struct {
	Transaction    *model.Transaction `json:"transaction"`
	Product        *model.Product     `json:"product"`
	ProductCreated bool               `json:"product_created"`
}

type ResolveResult struct {
	Product *model.Product `json:"product"`
	Created bool           `json:"created"`
}

type ledgerService struct {
	db           *gorm.DB
	products     repository.ProductRepository
	transactions repository.TransactionRepository
	history      repository.HistoryRepository
	directory    *ProductDirectory
	publisher    events.Publisher
	cache        *StatsCache
	cfg          LedgerConfig
	now          func() time.Time
}

func NewLedgerService(
	db *gorm.DB,
	products repository.ProductRepository,
	transactions repository.TransactionRepository,
	history repository.HistoryRepository,
	publisher events.Publisher,
	cache *StatsCache,
	cfg LedgerConfig,
) LedgerService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &ledgerService{
		db:           db,
		products:     products,
		transactions: transactions,
		history:      history,
		directory:    NewProductDirectory(products),
		publisher:    publisher,
		cache:        cache,
		cfg:          cfg.withDefaults(),
		now:          time.Now,
	}
}

func (s *ledgerService) ResolveProduct(ctx context.Context, actor Actor, ref ProductRef) (*ResolveResult, error) {
	var res ResolveResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, created, err := s.directory.Resolve(tx, ref, actor)
		if err != nil {
			return err
		}
		res = ResolveResult{Product: product, Created: created}
		if created {
			return s.history.CreateTx(tx, historyEntry(model.ActionCreateProduct, product, actor, "Created by product resolution"))
		}
		return nil
	})
	if err != nil {
		logLedgerError(err, "resolve product")
		return nil, err
	}

	if res.Created {
		s.cache.Invalidate()
		s.publish(ctx, events.NewStockUpdate(events.ActionProductCreated, res.Product, actor.eventUser(),
			fmt.Sprintf("%s created product '%s'", actor.displayName(), res.Product.Name)))
	}
	return &res, nil
}

func (s *ledgerService) Apply(ctx context.Context, actor Actor, in ApplyInput) (*ApplyResult, error) {
	res, err := s.applyOnce(ctx, actor, in)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.NewStockUpdate(events.ActionTransactionCreated, res, actor.eventUser(),
		fmt.Sprintf("%s recorded %s of %d x '%s'", actor.displayName(), res.Transaction.Type, res.Transaction.Quantity, res.Product.Name)))
	return res, nil
}

// applyOnce runs one movement in its own unit of work without publishing.
func (s *ledgerService) applyOnce(ctx context.Context, actor Actor, in ApplyInput) (*ApplyResult, error) {
	in = in.normalized()
	if err := in.Validate(); err != nil {
		log.Debug().Err(err).Msg("apply rejected")
		return nil, err
	}

	var res *ApplyResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = s.applyTx(tx, actor, in)
		return err
	})
	if err != nil {
		logLedgerError(err, "apply transaction")
		return nil, err
	}

	s.cache.Invalidate()
	log.Info().
		Str("type", string(in.Type)).
		Str("product_id", res.Product.ID.String()).
		Int("quantity", in.Quantity).
		Str("transaction_id", res.Transaction.ID.String()).
		Msg("transaction applied")
	return res, nil
}

func (s *ledgerService) ApplyTx(tx *gorm.DB, actor Actor, in ApplyInput) (*ApplyResult, error) {
	in = in.normalized()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return s.applyTx(tx, actor, in)
}

func (s *ledgerService) applyTx(tx *gorm.DB, actor Actor, in ApplyInput) (*ApplyResult, error) {
	product, created, err := s.directory.Resolve(tx, in.ref(), actor)
	if err != nil {
		return nil, err
	}
	if created {
		entry := historyEntry(model.ActionCreateProduct, product, actor,
			fmt.Sprintf("Created automatically by %s transaction", in.Type))
		if err := s.history.CreateTx(tx, entry); err != nil {
			return nil, fmt.Errorf("write history: %w", err)
		}
	}

	if in.Type == model.TxExport && product.Quantity < in.Quantity {
		return nil, insufficient(product, product.Quantity, in.Quantity)
	}

	t := s.newTransaction(actor, in, product)
	if err := s.transactions.CreateTx(tx, t); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	if err := s.adjust(tx, product, repository.DeltaFor(t.Type, t.Quantity), true, actor); err != nil {
		return nil, err
	}

	product, err = s.products.FindByIDTx(tx, product.ID, false)
	if err != nil {
		return nil, fmt.Errorf("reload product: %w", err)
	}
	t.Product = product

	if err := s.history.CreateTx(tx, historyEntry(t.Type.HistoryAction(), product, actor, describeMovement(t, product))); err != nil {
		return nil, fmt.Errorf("write history: %w", err)
	}
	return &ApplyResult{Transaction: t, Product: product, ProductCreated: created}, nil
}

func (s *ledgerService) newTransaction(actor Actor, in ApplyInput, product *model.Product) *model.Transaction {
	now := s.now()

	code := in.Code
	if code == "" {
		prefix := "IMP"
		if in.Type == model.TxExport {
			prefix = "EXP"
		}
		code = fmt.Sprintf("%s-%d", prefix, now.UnixNano())
	}

	price := product.Cost
	if in.Type == model.TxExport {
		price = product.RetailPrice
	}
	if in.UnitPrice != nil {
		price = *in.UnitPrice
	}

	date := now
	if in.Date != nil && !in.Date.IsZero() {
		date = *in.Date
	}

	t := &model.Transaction{
		ProductID: product.ID,
		UserID:    actor.UserID,
		Type:      in.Type,
		Quantity:  in.Quantity,
		UnitPrice: price,
		Reason:    validator.SanitizeText(in.Reason),
		Note:      validator.SanitizeText(in.Note),
		Summary:   validator.SanitizeText(in.Summary),
		Code:      validator.SanitizeText(code),
		Date:      date,
	}
	t.CreatedBy = actor.Label()
	t.UpdatedBy = actor.Label()
	return t
}

// adjust applies delta to the product counters; with guard set a decrement
// that would leave negative stock fails with *InsufficientStockError.
func (s *ledgerService) adjust(tx *gorm.DB, product *model.Product, delta repository.CounterDelta, guard bool, actor Actor) error {
	err := s.products.AdjustCountersTx(tx, product.ID, delta, guard, actor.Label())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrStockConflict):
		current := product.Quantity
		if fresh, ferr := s.products.FindByIDTx(tx, product.ID, false); ferr == nil {
			current = fresh.Quantity
		}
		return insufficient(product, current, -delta.Quantity)
	case errors.Is(err, repository.ErrNotFound):
		return ErrProductNotFound
	default:
		return fmt.Errorf("adjust counters: %w", err)
	}
}

func (s *ledgerService) publish(ctx context.Context, evt events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.publisher.Publish(ctx, evt); err != nil {
		log.Warn().Err(err).Str("action", evt.Action).Msg("event publish failed")
	}
}

func insufficient(product *model.Product, current, requested int) *InsufficientStockError {
	return &InsufficientStockError{
		ProductID: product.ID,
		SKU:       product.SKU,
		Current:   current,
		Requested: requested,
	}
}

func historyEntry(action string, product *model.Product, actor Actor, details string) *model.HistoryLog {
	name, sku := product.Snapshot()
	entry := &model.HistoryLog{
		Action:      action,
		ProductName: name,
		ProductSKU:  sku,
		UserID:      actor.UserID,
		Details:     details,
	}
	if product != nil {
		id := product.ID
		entry.ProductID = &id
	}
	return entry
}

func describeMovement(t *model.Transaction, product *model.Product) string {
	verb := "Imported"
	if t.Type == model.TxExport {
		verb = "Exported"
	}
	details := fmt.Sprintf("%s %d %s of %s (%s), code %s, stock now %d",
		verb, t.Quantity, unitOf(product), product.Name, product.SKU, t.Code, product.Quantity)
	if t.Reason != "" {
		details += ", reason: " + t.Reason
	}
	return details
}

func unitOf(product *model.Product) string {
	if product.Unit != "" {
		return product.Unit
	}
	return "unit(s)"
}

// logLedgerError keeps caller mistakes at debug and surfaces storage failures.
func logLedgerError(err error, op string) {
	level := zerolog.ErrorLevel
	if IsValidation(err) || IsConflict(err) || IsNotFound(err) {
		level = zerolog.DebugLevel
	}
	log.WithLevel(level).Err(err).Str("op", op).Msg("ledger operation failed")
}
