package model

// Privilege represents a permission that can be assigned to users
type Privilege struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Code string `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"` // e.g., "transaction:create"
	Name string `gorm:"type:varchar(100)" json:"name"`
}

// Privilege codes checked by the HTTP layer.
const (
	PrivProductView       = "product:view"
	PrivProductCreate     = "product:create"
	PrivProductUpdate     = "product:update"
	PrivProductDelete     = "product:delete"
	PrivTransactionView   = "transaction:view"
	PrivTransactionCreate = "transaction:create"
	PrivTransactionUpdate = "transaction:update"
	PrivTransactionDelete = "transaction:delete"
	PrivTransactionImport = "transaction:import"
	PrivHistoryView       = "history:view"
	PrivDashboardView     = "dashboard:view"
	PrivLedgerReconcile   = "ledger:reconcile"
	PrivUserView          = "user:view"
	PrivUserCreate        = "user:create"
	PrivUserUpdate        = "user:update"
)

var DefaultPrivileges = []Privilege{
	{Code: PrivProductView, Name: "View Product"},
	{Code: PrivProductCreate, Name: "Create Product"},
	{Code: PrivProductUpdate, Name: "Update Product"},
	{Code: PrivProductDelete, Name: "Delete Product"},
	{Code: PrivTransactionView, Name: "View Transaction"},
	{Code: PrivTransactionCreate, Name: "Create Transaction"},
	{Code: PrivTransactionUpdate, Name: "Update Transaction"},
	{Code: PrivTransactionDelete, Name: "Delete Transaction"},
	{Code: PrivTransactionImport, Name: "Import Transactions"},
	{Code: PrivHistoryView, Name: "View History"},
	{Code: PrivDashboardView, Name: "View Dashboard"},
	{Code: PrivLedgerReconcile, Name: "Reconcile Ledger"},
	{Code: PrivUserView, Name: "View User"},
	{Code: PrivUserCreate, Name: "Create User"},
	{Code: PrivUserUpdate, Name: "Update User"},
}

// MasterOnly reports privileges withheld from the limited ADMIN role.
func (p Privilege) MasterOnly() bool {
	switch p.Code {
	case PrivProductDelete, PrivTransactionDelete, PrivLedgerReconcile, PrivUserCreate, PrivUserUpdate:
		return true
	}
	return false
}
