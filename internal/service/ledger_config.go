package service

import "time"

// LedgerConfig holds the ledger coordinator's tunables.
type LedgerConfig struct {
	BatchWorkers          int
	BatchTimeout          time.Duration
	BatchFailureLimit     int
	HistoryBatchThreshold int
	// AllowNegativeReversal lets deletions and updates reverse a movement
	// even when the product no longer holds enough stock.
	AllowNegativeReversal bool
}

func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		BatchWorkers:          8,
		BatchTimeout:          30 * time.Second,
		BatchFailureLimit:     200,
		HistoryBatchThreshold: 500,
	}
}

func (c LedgerConfig) withDefaults() LedgerConfig {
	def := DefaultLedgerConfig()
	if c.BatchWorkers < 1 {
		c.BatchWorkers = def.BatchWorkers
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = def.BatchTimeout
	}
	if c.BatchFailureLimit < 1 {
		c.BatchFailureLimit = def.BatchFailureLimit
	}
	if c.HistoryBatchThreshold < 1 {
		c.HistoryBatchThreshold = def.HistoryBatchThreshold
	}
	return c
}
