package service

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"
)

// ProductRef identifies a product by id, SKU or name, in that order of precedence.
type ProductRef struct {
	ID   *uuid.UUID `json:"id,omitempty"`
	Name string     `json:"name"`
	SKU  string     `json:"sku"`
}

func (r ProductRef) normalized() ProductRef {
	r.Name = strings.TrimSpace(r.Name)
	r.SKU = strings.TrimSpace(r.SKU)
	if r.ID != nil && *r.ID == uuid.Nil {
		r.ID = nil
	}
	return r
}

// Empty reports a reference that cannot identify anything.
func (r ProductRef) Empty() bool {
	r = r.normalized()
	return r.ID == nil && r.Name == "" && r.SKU == ""
}

// key groups references that resolve to the same product within one batch.
func (r ProductRef) key() string {
	r = r.normalized()
	switch {
	case r.SKU != "":
		return "sku:" + r.SKU
	case r.Name != "":
		return "name:" + r.Name
	case r.ID != nil:
		return "id:" + r.ID.String()
	}
	return ""
}

// ProductDirectory resolves product references, creating products on first sight.
type ProductDirectory struct {
	products repository.ProductRepository
	now      func() time.Time
}

func NewProductDirectory(products repository.ProductRepository) *ProductDirectory {
	return &ProductDirectory{products: products, now: time.Now}
}

// Resolve returns the product ref points at, creating it when no SKU or name
// match exists. Found rows are locked for the rest of tx. Existing products are
// never modified. created reports whether this call inserted the row.
func (d *ProductDirectory) Resolve(tx *gorm.DB, ref ProductRef, actor Actor) (product *model.Product, created bool, err error) {
	ref = ref.normalized()

	if ref.ID != nil {
		product, err = d.products.FindByIDTx(tx, *ref.ID, true)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, ErrProductNotFound
		}
		return product, false, err
	}
	if ref.Name == "" && ref.SKU == "" {
		return nil, false, ErrMissingProductIdentity
	}

	if product, err = d.lookup(tx, ref); product != nil || err != nil {
		return product, false, err
	}

	product, err = d.create(tx, ref, actor)
	if err == nil {
		return product, true, nil
	}
	if !repository.IsDuplicateKey(err) {
		return nil, false, err
	}

	// A concurrent caller inserted the same SKU first; its row wins.
	log.Debug().Str("sku", ref.SKU).Msg("product create lost race, re-resolving")
	if product, err = d.lookup(tx, ref); product != nil || err != nil {
		return product, false, err
	}
	return nil, false, &DuplicateSKUError{SKU: ref.SKU}
}

func (d *ProductDirectory) lookup(tx *gorm.DB, ref ProductRef) (*model.Product, error) {
	if ref.SKU != "" {
		p, err := d.products.FindBySKUTx(tx, ref.SKU, true)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("find product by sku: %w", err)
		}
	}
	if ref.Name != "" {
		p, err := d.products.FindByNameTx(tx, ref.Name, true)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("find product by name: %w", err)
		}
	}
	return nil, nil
}

// create inserts inside a savepoint so a unique violation leaves tx usable.
func (d *ProductDirectory) create(tx *gorm.DB, ref ProductRef, actor Actor) (*model.Product, error) {
	sku := ref.SKU
	if sku == "" {
		sku = d.fallbackSKU()
	}
	name := ref.Name
	if name == "" {
		name = sku
	}

	product := &model.Product{Name: name, SKU: sku, Group: model.DefaultGroup}
	product.CreatedBy = actor.Label()
	product.UpdatedBy = actor.Label()

	err := tx.Transaction(func(sp *gorm.DB) error {
		return d.products.CreateTx(sp, product)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("product_id", product.ID.String()).Str("sku", product.SKU).Msg("product created by ledger")
	return product, nil
}

func (d *ProductDirectory) fallbackSKU() string {
	id := uuid.New()
	return fmt.Sprintf("AUTO-%d-%s", d.now().UnixNano(), hex.EncodeToString(id[:4]))
}
