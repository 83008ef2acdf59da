package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"go-stock-ledger/internal/model"
)

const maxPageSize = 500

// Page is the common pagination envelope.
type Page struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Normalize clamps page to >= 1 and limit to 1..500, falling back to defaultLimit.
func (p Page) Normalize(defaultLimit int) Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 || p.Limit > maxPageSize {
		p.Limit = defaultLimit
	}
	return p
}

func (p Page) apply(q *gorm.DB, defaultLimit int) *gorm.DB {
	n := p.Normalize(defaultLimit)
	return q.Offset((n.Page - 1) * n.Limit).Limit(n.Limit)
}

type ProductFilter struct {
	Page
	Group  string
	Search string
}

type TransactionFilter struct {
	Page
	Type      model.TransactionType
	ProductID *uuid.UUID
	From      *time.Time
	To        *time.Time
}

type HistoryFilter struct {
	Page
	Action    string
	ProductID *uuid.UUID
	UserID    *uuid.UUID
}
