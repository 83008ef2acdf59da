package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Audit action tags.
const (
	ActionImportTransaction  = "import_transaction"
	ActionExportTransaction  = "export_transaction"
	ActionUpdateTransaction  = "update_transaction"
	ActionDeleteTransaction  = "delete_transaction"
	ActionDeleteTransactions = "delete_transactions"
	ActionCreateProduct      = "create_product"
	ActionUpdateProduct      = "update_product"
	ActionDeleteProduct      = "delete_product"
	ActionReconcileProduct   = "reconcile_product"
)

// HistoryLog is an append-only audit entry. ProductID carries no foreign key so
// entries outlive the product; ProductName/ProductSKU are frozen at write time.
type HistoryLog struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Action      string     `gorm:"type:varchar(50);not null;index" json:"action"`
	ProductID   *uuid.UUID `gorm:"type:uuid;index" json:"product_id,omitempty"`
	ProductName string     `gorm:"type:varchar(255)" json:"product_name"`
	ProductSKU  string     `gorm:"type:varchar(100)" json:"product_sku"`
	UserID      *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`
	User        *User      `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"user,omitempty"`
	Details     string     `gorm:"type:text" json:"details"`
	CreatedAt   time.Time  `gorm:"index" json:"timestamp"`
}

func (h *HistoryLog) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
