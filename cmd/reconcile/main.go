// Command reconcile checks every product's counters against its transactions
// and, with -fix, rewrites the ones that drifted. It exits 1 when drift remains.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go-stock-ledger/internal/config"
	"go-stock-ledger/internal/events"
	"go-stock-ledger/internal/logger"
	"go-stock-ledger/internal/repository"
	"go-stock-ledger/internal/service"
	"go-stock-ledger/pkg/database"
)

func main() {
	fix := flag.Bool("fix", false, "rewrite drifted counters")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logger.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(database.Options{DSN: cfg.DSN(), MaxOpenConns: 2, LogQueries: cfg.DBLogQueries})
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	code := run(context.Background(), db, cfg.LedgerConfig(), *fix)
	if err := database.Close(db); err != nil {
		log.Error().Err(err).Msg("close database")
	}
	os.Exit(code)
}

func run(ctx context.Context, db *gorm.DB, cfg service.LedgerConfig, fix bool) int {
	ledger := service.NewLedgerService(db,
		repository.NewProductRepo(db),
		repository.NewTransactionRepo(db),
		repository.NewHistoryRepo(db),
		events.Nop{}, nil, cfg)

	drifts, err := ledger.Reconcile(ctx, service.SystemActor, fix)
	if err != nil {
		log.Error().Err(err).Msg("reconcile failed")
		return 2
	}

	for _, d := range drifts {
		log.Warn().
			Str("sku", d.SKU).
			Int("quantity", d.Quantity).
			Int("expected_quantity", d.ExpectedQuantity).
			Int("new_stock", d.NewStock).
			Int("expected_new_stock", d.ExpectedNew).
			Int("sold_stock", d.SoldStock).
			Int("expected_sold_stock", d.ExpectedSold).
			Bool("fixed", d.Fixed).
			Msg("counter drift")
	}

	switch {
	case len(drifts) == 0:
		log.Info().Msg("ledger consistent")
		return 0
	case fix:
		log.Info().Int("products", len(drifts)).Msg("drift repaired")
		return 0
	default:
		log.Warn().Int("products", len(drifts)).Msg("drift found, rerun with -fix to repair")
		return 1
	}
}
