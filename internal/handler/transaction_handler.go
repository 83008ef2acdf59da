package handler

import (
	"bytes"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"go-stock-ledger/internal/middleware"
	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"
	"go-stock-ledger/internal/service"
	"go-stock-ledger/internal/spreadsheet"
)

// TransactionHandler exposes the ledger write path and the transaction queries.
type TransactionHandler struct {
	ledger  service.LedgerService
	queries service.QueryService
}

func NewTransactionHandler(ledger service.LedgerService, queries service.QueryService) *TransactionHandler {
	return &TransactionHandler{ledger: ledger, queries: queries}
}

type batchRequest struct {
	Items []service.BatchItem `json:"items"`
}

// POST /api/v1/transactions
func (h *TransactionHandler) CreateTransaction(c *fiber.Ctx) error {
	var in service.ApplyInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	res, err := h.ledger.Apply(c.UserContext(), middleware.ActorFrom(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Transaction recorded", "data": res})
}

// PUT /api/v1/transactions/:id
func (h *TransactionHandler) UpdateTransaction(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return respondError(c, err)
	}
	var in service.UpdateInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	updated, err := h.ledger.Update(c.UserContext(), middleware.ActorFrom(c), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Transaction updated", "data": updated})
}

// DELETE /api/v1/transactions/:id
func (h *TransactionHandler) DeleteTransaction(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.ledger.Delete(c.UserContext(), middleware.ActorFrom(c), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Transaction deleted"})
}

// POST /api/v1/transactions/delete-many
func (h *TransactionHandler) DeleteTransactions(c *fiber.Ctx) error {
	var req idsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}
	if len(req.IDs) == 0 {
		return badRequest(c, "ids is required")
	}
	res, err := h.ledger.DeleteMany(c.UserContext(), middleware.ActorFrom(c), req.IDs)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// POST /api/v1/transactions/batch
func (h *TransactionHandler) ApplyBatch(c *fiber.Ctx) error {
	var req batchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}
	if len(req.Items) == 0 {
		return badRequest(c, "items is required")
	}
	return h.batchResponse(c, h.ledger.ApplyBatch(c.UserContext(), middleware.ActorFrom(c), req.Items))
}

// ImportExcel applies every row of an uploaded workbook as a batch.
// POST /api/v1/transactions/import-excel (multipart field "file", optional form "type")
func (h *TransactionHandler) ImportExcel(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "cannot read uploaded file")
	}
	defer f.Close()

	defaultType := model.TransactionType(c.FormValue("type", string(model.TxImport)))
	items, err := spreadsheet.ReadBatch(f, defaultType)
	if err != nil {
		return badRequest(c, err.Error())
	}
	return h.batchResponse(c, h.ledger.ApplyBatch(c.UserContext(), middleware.ActorFrom(c), items))
}

func (h *TransactionHandler) batchResponse(c *fiber.Ctx, res *service.BatchResult) error {
	status := fiber.StatusOK
	if res.FailedCount > 0 || res.Partial {
		status = fiber.StatusMultiStatus
	}
	return c.Status(status).JSON(res)
}

func transactionFilter(c *fiber.Ctx) (repository.TransactionFilter, error) {
	filter := repository.TransactionFilter{
		Page: queryPage(c),
		Type: model.TransactionType(c.Query("type")),
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return filter, service.ErrInvalidType
	}
	var err error
	if filter.ProductID, err = queryID(c, "product_id"); err != nil {
		return filter, err
	}
	if filter.From, err = queryTime(c, "from", false); err != nil {
		return filter, err
	}
	if filter.To, err = queryTime(c, "to", true); err != nil {
		return filter, err
	}
	return filter, nil
}

// GET /api/v1/transactions
func (h *TransactionHandler) GetTransactions(c *fiber.Ctx) error {
	filter, err := transactionFilter(c)
	if err != nil {
		return h.filterError(c, err)
	}
	res, err := h.queries.ListTransactions(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

func (h *TransactionHandler) GetTransaction(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return respondError(c, err)
	}
	tx, err := h.queries.GetTransaction(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(tx)
}

// GetStats accepts range=7d|1m|3m|6m|12m or explicit from/to dates.
// GET /api/v1/transactions/stats
func (h *TransactionHandler) GetStats(c *fiber.Ctx) error {
	now := time.Now()
	end := now
	var start time.Time

	switch c.Query("range", "7d") {
	case "1m":
		start = now.AddDate(0, -1, 0)
	case "3m":
		start = now.AddDate(0, -3, 0)
	case "6m":
		start = now.AddDate(0, -6, 0)
	case "12m":
		start = now.AddDate(0, -12, 0)
	default:
		start = now.AddDate(0, 0, -7)
	}
	from, err := queryTime(c, "from", false)
	if err != nil {
		return badRequest(c, err.Error())
	}
	to, err := queryTime(c, "to", true)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if from != nil {
		start = *from
	}
	if to != nil {
		end = *to
	}

	stats, err := h.queries.TransactionStats(c.UserContext(), start, end)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"from": start, "to": end, "data": stats})
}

// GET /api/v1/transactions/export
func (h *TransactionHandler) ExportTransactions(c *fiber.Ctx) error {
	filter, err := transactionFilter(c)
	if err != nil {
		return h.filterError(c, err)
	}
	txs, err := h.queries.ExportTransactions(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	var buf bytes.Buffer
	if err := spreadsheet.WriteTransactions(&buf, txs); err != nil {
		return respondError(c, err)
	}
	return sendWorkbook(c, "transactions", buf.Bytes())
}

// Reconcile reports products whose counters disagree with their transactions;
// fix=true rewrites them.
// POST /api/v1/ledger/reconcile
func (h *TransactionHandler) Reconcile(c *fiber.Ctx) error {
	fix := queryBool(c, "fix")
	drifts, err := h.ledger.Reconcile(c.UserContext(), middleware.ActorFrom(c), fix)
	if err != nil {
		return respondError(c, err)
	}
	if drifts == nil {
		drifts = []service.Drift{}
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("%d products drifted", len(drifts)),
		"fixed":   fix,
		"data":    drifts,
	})
}

func (h *TransactionHandler) filterError(c *fiber.Ctx, err error) error {
	if service.IsValidation(err) {
		return respondError(c, err)
	}
	return badRequest(c, err.Error())
}
