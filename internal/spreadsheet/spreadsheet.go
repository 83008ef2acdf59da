// Package spreadsheet reads batch movements from and writes ledger reports to .xlsx workbooks.
package spreadsheet

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/service"
)

var (
	ErrEmptyWorkbook = errors.New("spreadsheet: workbook has no data rows")
	ErrMissingHeader = errors.New("spreadsheet: header row needs a quantity column and a name or sku column")
)

// header aliases, lower-cased.
var columns = map[string]string{
	"type":         "type",
	"product_name": "name",
	"name":         "name",
	"product":      "name",
	"sku":          "sku",
	"quantity":     "quantity",
	"qty":          "quantity",
	"unit_price":   "unit_price",
	"price":        "unit_price",
	"reason":       "reason",
	"note":         "note",
	"summary":      "summary",
	"code":         "code",
	"date":         "date",
}

var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02", "01/02/2006", "02/01/2006"}

// ReadBatch turns the first sheet of an .xlsx workbook into batch items, one per
// non-empty data row. defaultType applies to rows without a type column or value.
// Unparseable numbers are left at zero so the ledger rejects the row on its own.
func ReadBatch(r io.Reader, defaultType model.TransactionType) ([]service.BatchItem, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("spreadsheet: open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyWorkbook
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("spreadsheet: read rows: %w", err)
	}
	if len(rows) < 2 {
		return nil, ErrEmptyWorkbook
	}

	index := map[string]int{}
	for i, cell := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(cell))
		key = strings.ReplaceAll(key, " ", "_")
		if field, ok := columns[key]; ok {
			if _, seen := index[field]; !seen {
				index[field] = i
			}
		}
	}
	_, hasName := index["name"]
	_, hasSKU := index["sku"]
	if _, ok := index["quantity"]; !ok || (!hasName && !hasSKU) {
		return nil, ErrMissingHeader
	}

	items := make([]service.BatchItem, 0, len(rows)-1)
	for _, row := range rows[1:] {
		get := func(field string) string {
			i, ok := index[field]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		if blank(row) {
			continue
		}

		item := service.BatchItem{
			Type:        defaultType,
			ProductName: get("name"),
			SKU:         get("sku"),
			Reason:      get("reason"),
			Note:        get("note"),
			Summary:     get("summary"),
			Code:        get("code"),
		}
		if t := get("type"); t != "" {
			item.Type = model.TransactionType(strings.ToLower(t))
		}
		if q, err := strconv.ParseFloat(get("quantity"), 64); err == nil && q == float64(int(q)) {
			item.Quantity = int(q)
		}
		if p := get("unit_price"); p != "" {
			if price, err := decimal.NewFromString(p); err == nil {
				item.UnitPrice = &price
			}
		}
		if d := get("date"); d != "" {
			if at, ok := parseDate(d); ok {
				item.Date = &at
			}
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, ErrEmptyWorkbook
	}
	return items, nil
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// WriteInventory writes one row per product.
func WriteInventory(w io.Writer, products []model.Product) error {
	header := []interface{}{
		"SKU", "Name", "Group", "Unit", "Cost", "Retail Price", "Quantity", "Ending Stock",
		"Display Stock", "Warehouse Stock", "New Stock", "Sold Stock", "Damaged Stock", "Value",
	}
	rows := make([][]interface{}, 0, len(products))
	for _, p := range products {
		rows = append(rows, []interface{}{
			p.SKU, p.Name, p.Group, p.Unit,
			p.Cost.InexactFloat64(), p.RetailPrice.InexactFloat64(),
			p.Quantity, p.EndingStock, p.DisplayStock, p.WarehouseStock,
			p.NewStock, p.SoldStock, p.DamagedStock,
			p.Cost.Mul(decimal.NewFromInt(int64(p.Quantity))).InexactFloat64(),
		})
	}
	return write(w, "Inventory", header, rows)
}

// WriteTransactions writes one row per movement; Product and User are used when preloaded.
func WriteTransactions(w io.Writer, txs []model.Transaction) error {
	header := []interface{}{
		"Date", "Code", "Type", "SKU", "Product", "Quantity", "Unit Price", "Total",
		"Reason", "Note", "Summary", "User",
	}
	rows := make([][]interface{}, 0, len(txs))
	for _, t := range txs {
		sku, name, user := "", "", ""
		if t.Product != nil {
			sku, name = t.Product.SKU, t.Product.Name
		}
		if t.User != nil {
			user = t.User.FullName
		}
		rows = append(rows, []interface{}{
			t.Date.Format("2006-01-02 15:04:05"), t.Code, string(t.Type), sku, name, t.Quantity,
			t.UnitPrice.InexactFloat64(),
			t.UnitPrice.Mul(decimal.NewFromInt(int64(t.Quantity))).InexactFloat64(),
			t.Reason, t.Note, t.Summary, user,
		})
	}
	return write(w, "Transactions", header, rows)
}

func write(w io.Writer, sheet string, header []interface{}, rows [][]interface{}) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	return f.Write(w)
}
