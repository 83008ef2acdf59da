package handler

import (
	"github.com/gofiber/fiber/v2"

	"go-stock-ledger/internal/repository"
	"go-stock-ledger/internal/service"
)

type HistoryHandler struct {
	queries service.QueryService
}

func NewHistoryHandler(queries service.QueryService) *HistoryHandler {
	return &HistoryHandler{queries: queries}
}

// GetHistory lists audit entries, newest first.
// GET /api/v1/history?action=&product_id=&user_id=&page=&limit=
func (h *HistoryHandler) GetHistory(c *fiber.Ctx) error {
	filter := repository.HistoryFilter{Page: queryPage(c), Action: c.Query("action")}
	var err error
	if filter.ProductID, err = queryID(c, "product_id"); err != nil {
		return respondError(c, err)
	}
	if filter.UserID, err = queryID(c, "user_id"); err != nil {
		return respondError(c, err)
	}

	res, err := h.queries.ListHistory(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}
