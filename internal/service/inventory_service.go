package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"go-stock-ledger/internal/events"
	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"
	"go-stock-ledger/pkg/validator"
)

const inventoryStatsKey = "inventory_stats"

type InventoryService interface {
	CreateProduct(ctx context.Context, actor Actor, in ProductInput) (*model.Product, error)
	UpdateProduct(ctx context.Context, actor Actor, id uuid.UUID, in ProductInput) (*model.Product, error)
	DeleteProduct(ctx context.Context, actor Actor, id uuid.UUID) error
	DeleteProducts(ctx context.Context, actor Actor, ids []uuid.UUID) (*DeleteManyResult, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error)
	ListProducts(ctx context.Context, filter repository.ProductFilter) (*PagedResult[model.Product], error)
	ExportProducts(ctx context.Context, filter repository.ProductFilter) ([]model.Product, error)
	Groups(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (*repository.InventoryStats, error)
}

// ProductInput is the operator-editable part of a product. OpeningQuantity is
// only honoured on create, where it is recorded as an import.
type ProductInput struct {
	Name            string          `json:"name" validate:"required,max=255"`
	SKU             string          `json:"sku" validate:"required,max=100"`
	Group           string          `json:"group" validate:"max=100"`
	Unit            string          `json:"unit" validate:"max=20"`
	Cost            decimal.Decimal `json:"cost"`
	RetailPrice     decimal.Decimal `json:"retail_price"`
	DisplayStock    int             `json:"display_stock" validate:"gte=0"`
	WarehouseStock  int             `json:"warehouse_stock" validate:"gte=0"`
	DamagedStock    int             `json:"damaged_stock" validate:"gte=0"`
	OpeningQuantity int             `json:"opening_quantity" validate:"gte=0"`
}

func (in ProductInput) check() error {
	if err := validate(in); err != nil {
		return err
	}
	var fields []*validator.ErrorResponse
	if in.Cost.IsNegative() {
		fields = append(fields, &validator.ErrorResponse{FailedField: "cost", Tag: "gte", Value: "0"})
	}
	if in.RetailPrice.IsNegative() {
		fields = append(fields, &validator.ErrorResponse{FailedField: "retail_price", Tag: "gte", Value: "0"})
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (in ProductInput) applyTo(p *model.Product) {
	p.Name = strings.TrimSpace(validator.SanitizeText(in.Name))
	p.SKU = strings.TrimSpace(in.SKU)
	p.Group = strings.TrimSpace(validator.SanitizeText(in.Group))
	if p.Group == "" {
		p.Group = model.DefaultGroup
	}
	p.Unit = strings.TrimSpace(in.Unit)
	p.Cost = in.Cost
	p.RetailPrice = in.RetailPrice
	p.DisplayStock = in.DisplayStock
	p.WarehouseStock = in.WarehouseStock
	p.DamagedStock = in.DamagedStock
}

// PagedResult is a page of rows with the unpaginated total.
type PagedResult[T any] struct {
	Data  []T   `json:"data"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

type inventoryService struct {
	db                *gorm.DB
	productRepo       repository.ProductRepository
	transactionRepo   repository.TransactionRepository
	historyRepo       repository.HistoryRepository
	ledger            LedgerService
	publisher         events.Publisher
	cache             *StatsCache
	lowStockThreshold int
}

func NewInventoryService(
	db *gorm.DB,
	pRepo repository.ProductRepository,
	tRepo repository.TransactionRepository,
	hRepo repository.HistoryRepository,
	ledger LedgerService,
	publisher events.Publisher,
	cache *StatsCache,
	lowStockThreshold int,
) InventoryService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &inventoryService{
		db:                db,
		productRepo:       pRepo,
		transactionRepo:   tRepo,
		historyRepo:       hRepo,
		ledger:            ledger,
		publisher:         publisher,
		cache:             cache,
		lowStockThreshold: lowStockThreshold,
	}
}

func (s *inventoryService) CreateProduct(ctx context.Context, actor Actor, in ProductInput) (*model.Product, error) {
	if err := in.check(); err != nil {
		return nil, err
	}

	product := &model.Product{}
	in.applyTo(product)
	product.CreatedBy = actor.Label()
	product.UpdatedBy = actor.Label()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.productRepo.FindBySKUTx(tx, product.SKU, false); err == nil {
			return &DuplicateSKUError{SKU: product.SKU}
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		if err := s.productRepo.CreateTx(tx, product); err != nil {
			if repository.IsDuplicateKey(err) {
				return &DuplicateSKUError{SKU: product.SKU}
			}
			return err
		}
		if err := s.historyRepo.CreateTx(tx, historyEntry(model.ActionCreateProduct, product, actor,
			fmt.Sprintf("Created product %s (%s)", product.Name, product.SKU))); err != nil {
			return err
		}

		if in.OpeningQuantity > 0 {
			res, err := s.ledger.ApplyTx(tx, actor, ApplyInput{
				Type:      model.TxImport,
				ProductID: &product.ID,
				Quantity:  in.OpeningQuantity,
				Reason:    "Opening stock",
			})
			if err != nil {
				return err
			}
			product = res.Product
		}
		return nil
	})
	if err != nil {
		logLedgerError(err, "create product")
		return nil, err
	}

	s.cache.Invalidate()
	log.Info().Str("product_id", product.ID.String()).Str("sku", product.SKU).Msg("product created")
	s.publish(ctx, events.NewStockUpdate(events.ActionProductCreated, product, actor.eventUser(),
		fmt.Sprintf("%s created product '%s'", actor.displayName(), product.Name)))
	return product, nil
}

func (s *inventoryService) UpdateProduct(ctx context.Context, actor Actor, id uuid.UUID, in ProductInput) (*model.Product, error) {
	if err := in.check(); err != nil {
		return nil, err
	}

	var updated *model.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.productRepo.FindByIDTx(tx, id, true)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProductNotFound
		}
		if err != nil {
			return err
		}

		before := *existing
		in.applyTo(existing)
		existing.UpdatedBy = actor.Label()

		if existing.SKU != before.SKU {
			if other, err := s.productRepo.FindBySKUTx(tx, existing.SKU, false); err == nil && other.ID != existing.ID {
				return &DuplicateSKUError{SKU: existing.SKU}
			}
		}
		if err := s.productRepo.UpdateDetailsTx(tx, existing); err != nil {
			if repository.IsDuplicateKey(err) {
				return &DuplicateSKUError{SKU: existing.SKU}
			}
			return err
		}

		if updated, err = s.productRepo.FindByIDTx(tx, id, false); err != nil {
			return err
		}
		return s.historyRepo.CreateTx(tx, historyEntry(model.ActionUpdateProduct, updated, actor, describeProductEdit(&before, updated)))
	})
	if err != nil {
		logLedgerError(err, "update product")
		return nil, err
	}

	s.cache.Invalidate()
	s.publish(ctx, events.NewStockUpdate(events.ActionProductUpdated, updated, actor.eventUser(),
		fmt.Sprintf("%s updated product '%s'", actor.displayName(), updated.Name)))
	return updated, nil
}

func (s *inventoryService) DeleteProduct(ctx context.Context, actor Actor, id uuid.UUID) error {
	var deleted *model.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		deleted, err = s.deleteProductTx(tx, actor, id)
		return err
	})
	if err != nil {
		logLedgerError(err, "delete product")
		return err
	}

	s.cache.Invalidate()
	s.publish(ctx, events.NewStockUpdate(events.ActionProductDeleted, deleted, actor.eventUser(),
		fmt.Sprintf("%s deleted product '%s'", actor.displayName(), deleted.Name)))
	return nil
}

func (s *inventoryService) deleteProductTx(tx *gorm.DB, actor Actor, id uuid.UUID) (*model.Product, error) {
	product, err := s.productRepo.FindByIDTx(tx, id, true)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	counts, err := s.transactionRepo.CountByProductsTx(tx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if counts[id] > 0 {
		return nil, ErrProductInUse
	}

	if err := s.productRepo.DeleteTx(tx, id); err != nil {
		return nil, err
	}
	if err := s.historyRepo.CreateTx(tx, historyEntry(model.ActionDeleteProduct, product, actor,
		fmt.Sprintf("Deleted product %s (%s)", product.Name, product.SKU))); err != nil {
		return nil, err
	}
	return product, nil
}

// DeleteProducts deletes what it can and reports the rest.
func (s *inventoryService) DeleteProducts(ctx context.Context, actor Actor, ids []uuid.UUID) (*DeleteManyResult, error) {
	ids = uniqueIDs(ids)
	res := &DeleteManyResult{DeletedIDs: []uuid.UUID{}, Failed: []DeleteFailure{}}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range ids {
			err := tx.Transaction(func(sp *gorm.DB) error {
				_, err := s.deleteProductTx(sp, actor, id)
				return err
			})
			if err != nil {
				if !IsNotFound(err) && !IsConflict(err) {
					return err
				}
				res.Failed = append(res.Failed, DeleteFailure{ID: id, Error: err.Error()})
				continue
			}
			res.DeletedCount++
			res.DeletedIDs = append(res.DeletedIDs, id)
		}
		return nil
	})
	if err != nil {
		logLedgerError(err, "delete products")
		return nil, err
	}

	if res.DeletedCount > 0 {
		s.cache.Invalidate()
		s.publish(ctx, events.NewStockUpdate(events.ActionProductDeleted,
			map[string]interface{}{"deleted_ids": res.DeletedIDs}, actor.eventUser(),
			fmt.Sprintf("%s deleted %d products", actor.displayName(), res.DeletedCount)))
	}
	return res, nil
}

func (s *inventoryService) GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	p, err := s.productRepo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	return p, err
}

func (s *inventoryService) ListProducts(ctx context.Context, filter repository.ProductFilter) (*PagedResult[model.Product], error) {
	items, total, err := s.productRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return paged(items, total, filter.Page, 20), nil
}

func (s *inventoryService) ExportProducts(ctx context.Context, filter repository.ProductFilter) ([]model.Product, error) {
	return s.productRepo.All(ctx, filter)
}

func (s *inventoryService) Groups(ctx context.Context) ([]string, error) {
	return s.productRepo.Groups(ctx)
}

// Stats is served from cache until the next ledger mutation or TTL expiry.
func (s *inventoryService) Stats(ctx context.Context) (*repository.InventoryStats, error) {
	if v, ok := s.cache.get(inventoryStatsKey); ok {
		stats := v.(repository.InventoryStats)
		return &stats, nil
	}
	stats, err := s.productRepo.Stats(ctx, s.lowStockThreshold)
	if err != nil {
		return nil, err
	}
	s.cache.set(inventoryStatsKey, *stats)
	return stats, nil
}

func (s *inventoryService) publish(ctx context.Context, evt events.Event) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), evt); err != nil {
		log.Warn().Err(err).Str("action", evt.Action).Msg("event publish failed")
	}
}

func paged[T any](items []T, total int64, page repository.Page, defaultLimit int) *PagedResult[T] {
	if items == nil {
		items = []T{}
	}
	page = page.Normalize(defaultLimit)
	return &PagedResult[T]{Data: items, Total: total, Page: page.Page, Limit: page.Limit}
}

func describeProductEdit(before, after *model.Product) string {
	var parts []string
	diff := func(field, old, new string) {
		if old != new {
			parts = append(parts, fmt.Sprintf("%s: %s -> %s", field, old, new))
		}
	}
	diff("name", before.Name, after.Name)
	diff("sku", before.SKU, after.SKU)
	diff("group", before.Group, after.Group)
	diff("unit", before.Unit, after.Unit)
	diff("cost", before.Cost.String(), after.Cost.String())
	diff("retail_price", before.RetailPrice.String(), after.RetailPrice.String())
	diff("display_stock", fmt.Sprint(before.DisplayStock), fmt.Sprint(after.DisplayStock))
	diff("warehouse_stock", fmt.Sprint(before.WarehouseStock), fmt.Sprint(after.WarehouseStock))
	diff("damaged_stock", fmt.Sprint(before.DamagedStock), fmt.Sprint(after.DamagedStock))
	if len(parts) == 0 {
		return "No changes"
	}
	return strings.Join(parts, "; ")
}
