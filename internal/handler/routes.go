package handler

import (
	"github.com/gofiber/fiber/v2"

	"go-stock-ledger/internal/middleware"
	"go-stock-ledger/internal/model"
)

// Handlers groups every HTTP handler the API serves.
type Handlers struct {
	Auth         *AuthHandler
	Inventory    *InventoryHandler
	Transactions *TransactionHandler
	History      *HistoryHandler
	Dashboard    *DashboardHandler
	Users        *UserHandler
	Roles        *RoleHandler
}

// Register mounts the /api/v1 routes on app.
func (h *Handlers) Register(app fiber.Router, auth middleware.Authenticator) {
	api := app.Group("/api/v1")
	priv := middleware.RequirePrivilege

	// ============ PUBLIC ROUTES ============
	authGroup := api.Group("/auth")
	authGroup.Post("/login", h.Auth.Login)
	authGroup.Post("/reset-password", h.Auth.ResetPassword)
	authGroup.Post("/validate-token", h.Auth.ValidateToken)
	authGroup.Post("/heartbeat", middleware.RequireAuth(auth), h.Auth.Heartbeat)

	// ============ PROTECTED ROUTES ============
	protected := api.Group("", middleware.RequireAuth(auth))

	protected.Get("/dashboard/stats", priv(model.PrivDashboardView), h.Dashboard.GetDashboardStats)
	protected.Get("/dashboard/stock-movement", priv(model.PrivDashboardView), h.Dashboard.GetStockMovement)

	protected.Get("/inventory/stats", priv(model.PrivProductView), h.Inventory.GetStats)
	protected.Get("/inventory/export", priv(model.PrivProductView), h.Inventory.ExportInventory)

	protected.Get("/products", priv(model.PrivProductView), h.Inventory.GetProducts)
	protected.Get("/products/groups", priv(model.PrivProductView), h.Inventory.GetGroups)
	protected.Get("/products/:id", priv(model.PrivProductView), h.Inventory.GetProduct)
	protected.Post("/products", priv(model.PrivProductCreate), h.Inventory.CreateProduct)
	protected.Post("/products/resolve", middleware.RequireAnyPrivilege(model.PrivProductCreate, model.PrivTransactionCreate), h.Inventory.ResolveProduct)
	protected.Post("/products/delete-many", priv(model.PrivProductDelete), h.Inventory.DeleteProducts)
	protected.Put("/products/:id", priv(model.PrivProductUpdate), h.Inventory.UpdateProduct)
	protected.Delete("/products/:id", priv(model.PrivProductDelete), h.Inventory.DeleteProduct)

	protected.Get("/transactions", priv(model.PrivTransactionView), h.Transactions.GetTransactions)
	protected.Get("/transactions/stats", priv(model.PrivTransactionView), h.Transactions.GetStats)
	protected.Get("/transactions/export", priv(model.PrivTransactionView), h.Transactions.ExportTransactions)
	protected.Get("/transactions/:id", priv(model.PrivTransactionView), h.Transactions.GetTransaction)
	protected.Post("/transactions", priv(model.PrivTransactionCreate), h.Transactions.CreateTransaction)
	protected.Post("/transactions/batch", priv(model.PrivTransactionImport), h.Transactions.ApplyBatch)
	protected.Post("/transactions/import-excel", priv(model.PrivTransactionImport), h.Transactions.ImportExcel)
	protected.Post("/transactions/delete-many", priv(model.PrivTransactionDelete), h.Transactions.DeleteTransactions)
	protected.Put("/transactions/:id", priv(model.PrivTransactionUpdate), h.Transactions.UpdateTransaction)
	protected.Delete("/transactions/:id", priv(model.PrivTransactionDelete), h.Transactions.DeleteTransaction)

	protected.Post("/ledger/reconcile", priv(model.PrivLedgerReconcile), h.Transactions.Reconcile)

	protected.Get("/history", priv(model.PrivHistoryView), h.History.GetHistory)

	protected.Get("/users", priv(model.PrivUserView), h.Users.GetUsers)
	protected.Get("/users/:id", priv(model.PrivUserView), h.Users.GetUser)
	protected.Post("/users", priv(model.PrivUserCreate), h.Users.CreateUser)
	protected.Put("/users/:id", priv(model.PrivUserUpdate), h.Users.UpdateUser)
	protected.Put("/users/:id/privileges", priv(model.PrivUserUpdate), h.Users.UpdateUserPrivileges)

	protected.Get("/roles", h.Roles.GetRoles)
	protected.Get("/privileges", h.Roles.GetPrivileges)
}
