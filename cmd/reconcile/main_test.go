package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"
	"go-stock-ledger/internal/service"
	"go-stock-ledger/internal/testdb"
)

func TestRunExitCodes(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	cfg := service.DefaultLedgerConfig()
	products := repository.NewProductRepo(db)

	ledger := service.NewLedgerService(db, products, repository.NewTransactionRepo(db), repository.NewHistoryRepo(db), nil, nil, cfg)
	res, err := ledger.Apply(ctx, service.SystemActor, service.ApplyInput{Type: model.TxImport, SKU: "W-1", Quantity: 3})
	require.NoError(t, err)

	assert.Equal(t, 0, run(ctx, db, cfg, false))

	require.NoError(t, products.SetCountersTx(db, res.Product.ID, 7, 3, 0))
	assert.Equal(t, 1, run(ctx, db, cfg, false))
	assert.Equal(t, 0, run(ctx, db, cfg, true))
	assert.Equal(t, 0, run(ctx, db, cfg, false))
}
