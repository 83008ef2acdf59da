package model

import "github.com/shopspring/decimal"

// DefaultGroup is assigned to products created implicitly by the ledger.
const DefaultGroup = "unclassified"

// Product is a stock-keeping unit. The quantity, ending, new and sold counters
// are owned by the ledger and only change together with a transaction row.
type Product struct {
	BaseModel
	Name        string          `gorm:"type:varchar(255);not null;index" json:"name"`
	SKU         string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"sku"`
	Group       string          `gorm:"column:product_group;type:varchar(100);default:'unclassified';index" json:"group"`
	Unit        string          `gorm:"type:varchar(20)" json:"unit"`
	Cost        decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"cost"`
	RetailPrice decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"retail_price"`

	// Stock counters
	Quantity       int `gorm:"not null;default:0" json:"quantity"`
	DisplayStock   int `gorm:"not null;default:0" json:"display_stock"`
	WarehouseStock int `gorm:"not null;default:0" json:"warehouse_stock"`
	NewStock       int `gorm:"not null;default:0" json:"new_stock"`
	SoldStock      int `gorm:"not null;default:0" json:"sold_stock"`
	DamagedStock   int `gorm:"not null;default:0" json:"damaged_stock"`
	EndingStock    int `gorm:"not null;default:0" json:"ending_stock"`
}

// Snapshot freezes the identity fields copied into history entries.
func (p *Product) Snapshot() (name, sku string) {
	if p == nil {
		return "", ""
	}
	return p.Name, p.SKU
}
