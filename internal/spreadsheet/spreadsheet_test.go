package spreadsheet

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"go-stock-ledger/internal/model"
)

func workbook(t *testing.T, rows ...[]interface{}) *bytes.Reader {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return bytes.NewReader(buf.Bytes())
}

func TestReadBatch(t *testing.T) {
	r := workbook(t,
		[]interface{}{"Type", "Product Name", "SKU", "Qty", "Unit Price", "Reason", "Date"},
		[]interface{}{"IMPORT", "Widget", "W-1", 10, "2.50", "restock", "2026-03-01"},
		[]interface{}{"", "", "W-1", 3},
		[]interface{}{},
		[]interface{}{"export", "Gadget", "", "lots"},
	)

	items, err := ReadBatch(r, model.TxExport)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, model.TxImport, items[0].Type)
	assert.Equal(t, "Widget", items[0].ProductName)
	assert.Equal(t, "W-1", items[0].SKU)
	assert.Equal(t, 10, items[0].Quantity)
	require.NotNil(t, items[0].UnitPrice)
	assert.True(t, decimal.RequireFromString("2.5").Equal(*items[0].UnitPrice))
	assert.Equal(t, "restock", items[0].Reason)
	require.NotNil(t, items[0].Date)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), *items[0].Date)

	assert.Equal(t, model.TxExport, items[1].Type, "default type fills blanks")
	assert.Equal(t, 3, items[1].Quantity)
	assert.Nil(t, items[1].UnitPrice)

	assert.Zero(t, items[2].Quantity, "unparseable quantity is left for the ledger to reject")
	assert.Error(t, items[2].Validate())
}

func TestReadBatchRejectsUnusableSheets(t *testing.T) {
	_, err := ReadBatch(workbook(t, []interface{}{"sku", "quantity"}), model.TxImport)
	assert.ErrorIs(t, err, ErrEmptyWorkbook)

	_, err = ReadBatch(workbook(t, []interface{}{"sku", "colour"}, []interface{}{"W-1", "red"}), model.TxImport)
	assert.ErrorIs(t, err, ErrMissingHeader)

	_, err = ReadBatch(bytes.NewReader([]byte("not a workbook")), model.TxImport)
	assert.Error(t, err)
}

func TestWriteInventory(t *testing.T) {
	products := []model.Product{{
		Name: "Widget", SKU: "W-1", Group: "Parts", Unit: "pcs",
		Cost: decimal.RequireFromString("2.50"), RetailPrice: decimal.RequireFromString("4"),
		Quantity: 7, EndingStock: 7, NewStock: 9, SoldStock: 2,
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteInventory(&buf, products))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Inventory")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "SKU", rows[0][0])
	assert.Equal(t, "W-1", rows[1][0])
	assert.Equal(t, "7", rows[1][6])
	assert.Equal(t, "17.5", rows[1][13])
}

func TestWriteTransactions(t *testing.T) {
	txs := []model.Transaction{{
		Type: model.TxExport, Quantity: 2, Code: "EXP-1",
		UnitPrice: decimal.RequireFromString("4"),
		Date:      time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		Product:   &model.Product{Name: "Widget", SKU: "W-1"},
		User:      &model.User{FullName: "Clerk"},
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteTransactions(&buf, txs))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Transactions")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"2026-03-01 09:30:00", "EXP-1", "export", "W-1", "Widget", "2", "4", "8", "", "", "", "Clerk"}, rows[1])
}
