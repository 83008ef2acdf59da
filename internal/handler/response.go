package handler

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"go-stock-ledger/internal/repository"
	"go-stock-ledger/internal/service"
)

// respondError maps service errors to a status and JSON body. Unknown errors are
// logged and answered with a generic message.
func respondError(c *fiber.Ctx, err error) error {
	var (
		stock *service.InsufficientStockError
		dup   *service.DuplicateSKUError
		verr  *service.ValidationError
	)
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Validation failed", "fields": verr.Fields})
	case service.IsValidation(err):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case service.IsNotFound(err):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &stock):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":      service.ErrInsufficientStock.Error(),
			"product_id": stock.ProductID,
			"sku":        stock.SKU,
			"current":    stock.Current,
			"requested":  stock.Requested,
		})
	case errors.As(err, &dup):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error(), "sku": dup.SKU})
	case service.IsConflict(err):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}

	log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("request failed")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal Server Error"})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func paramID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, service.ErrInvalidID
	}
	return id, nil
}

func queryID(c *fiber.Ctx, key string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, service.ErrInvalidID
	}
	return &id, nil
}

func queryPage(c *fiber.Ctx) repository.Page {
	return repository.Page{Page: c.QueryInt("page", 1), Limit: c.QueryInt("limit", 0)}
}

// queryTime accepts RFC3339 or a plain date; a plain "to" date covers the whole day.
func queryTime(c *fiber.Ctx, key string, endOfDay bool) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, errors.New("invalid " + key + " date, use YYYY-MM-DD or RFC3339")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func queryBool(c *fiber.Ctx, key string) bool {
	v, _ := strconv.ParseBool(c.Query(key))
	return v
}
