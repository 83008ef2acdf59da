package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TxImport TransactionType = "import"
	TxExport TransactionType = "export"
)

// Valid reports whether t is one of the supported movement types.
func (t TransactionType) Valid() bool {
	return t == TxImport || t == TxExport
}

// SignedDelta returns the change a movement of qty units applies to on-hand stock.
func (t TransactionType) SignedDelta(qty int) int {
	if t == TxExport {
		return -qty
	}
	return qty
}

// HistoryAction maps a movement type to its audit action tag.
func (t TransactionType) HistoryAction() string {
	if t == TxExport {
		return ActionExportTransaction
	}
	return ActionImportTransaction
}

type Transaction struct {
	BaseModel
	ProductID uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	Product   *Product        `gorm:"constraint:OnDelete:RESTRICT" json:"product,omitempty"`
	UserID    *uuid.UUID      `gorm:"type:uuid;index" json:"user_id,omitempty"`
	User      *User           `gorm:"constraint:OnDelete:SET NULL" json:"user,omitempty"`
	Type      TransactionType `gorm:"type:varchar(10);not null;index" json:"type"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"unit_price"`
	Reason    string          `gorm:"type:varchar(255)" json:"reason,omitempty"`
	Note      string          `gorm:"type:text" json:"note,omitempty"`
	Summary   string          `gorm:"type:text" json:"summary,omitempty"`
	Code      string          `gorm:"type:varchar(100);index" json:"code"`
	Date      time.Time       `gorm:"not null;index" json:"date"`
}

// Delta is the signed quantity this transaction contributes to its product.
func (t *Transaction) Delta() int {
	return t.Type.SignedDelta(t.Quantity)
}
