package handler

import (
	"bytes"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"go-stock-ledger/internal/middleware"
	"go-stock-ledger/internal/repository"
	"go-stock-ledger/internal/service"
	"go-stock-ledger/internal/spreadsheet"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type InventoryHandler struct {
	service service.InventoryService
	ledger  service.LedgerService
}

func NewInventoryHandler(s service.InventoryService, ledger service.LedgerService) *InventoryHandler {
	return &InventoryHandler{service: s, ledger: ledger}
}

type idsRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

func productFilter(c *fiber.Ctx) repository.ProductFilter {
	return repository.ProductFilter{
		Page:   queryPage(c),
		Group:  c.Query("group"),
		Search: c.Query("search"),
	}
}

// GET /api/v1/products
func (h *InventoryHandler) GetProducts(c *fiber.Ctx) error {
	res, err := h.service.ListProducts(c.UserContext(), productFilter(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

func (h *InventoryHandler) GetProduct(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return respondError(c, err)
	}
	p, err := h.service.GetProduct(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(p)
}

func (h *InventoryHandler) GetGroups(c *fiber.Ctx) error {
	groups, err := h.service.Groups(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": groups})
}

// POST /api/v1/products
func (h *InventoryHandler) CreateProduct(c *fiber.Ctx) error {
	var in service.ProductInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	product, err := h.service.CreateProduct(c.UserContext(), middleware.ActorFrom(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Product created", "data": product})
}

// PUT /api/v1/products/:id
func (h *InventoryHandler) UpdateProduct(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return respondError(c, err)
	}
	var in service.ProductInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	updated, err := h.service.UpdateProduct(c.UserContext(), middleware.ActorFrom(c), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Product updated", "data": updated})
}

func (h *InventoryHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.service.DeleteProduct(c.UserContext(), middleware.ActorFrom(c), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Product deleted"})
}

// POST /api/v1/products/delete-many
func (h *InventoryHandler) DeleteProducts(c *fiber.Ctx) error {
	var req idsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}
	if len(req.IDs) == 0 {
		return badRequest(c, "ids is required")
	}
	res, err := h.service.DeleteProducts(c.UserContext(), middleware.ActorFrom(c), req.IDs)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// ResolveProduct finds a product by id, SKU or name, creating it when unknown.
// POST /api/v1/products/resolve
func (h *InventoryHandler) ResolveProduct(c *fiber.Ctx) error {
	var ref service.ProductRef
	if err := c.BodyParser(&ref); err != nil {
		return badRequest(c, "Invalid JSON")
	}
	res, err := h.ledger.ResolveProduct(c.UserContext(), middleware.ActorFrom(c), ref)
	if err != nil {
		return respondError(c, err)
	}
	status := fiber.StatusOK
	if res.Created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(res)
}

// GET /api/v1/inventory/stats
func (h *InventoryHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

// GET /api/v1/inventory/export
func (h *InventoryHandler) ExportInventory(c *fiber.Ctx) error {
	products, err := h.service.ExportProducts(c.UserContext(), productFilter(c))
	if err != nil {
		return respondError(c, err)
	}
	var buf bytes.Buffer
	if err := spreadsheet.WriteInventory(&buf, products); err != nil {
		return respondError(c, err)
	}
	return sendWorkbook(c, "inventory", buf.Bytes())
}

func sendWorkbook(c *fiber.Ctx, name string, data []byte) error {
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s-%s.xlsx"`, name, time.Now().Format("20060102-150405")))
	return c.Send(data)
}
