package project

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Project is a sellable listing. Browsing and search live elsewhere; this
// service only reads the fields a purchase snapshots.
type Project struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	SellerID  uuid.UUID       `db:"seller_id" json:"seller_id"`
	Title     string          `db:"title" json:"title"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Currency  string          `db:"currency" json:"currency"`
	Status    Status          `db:"status" json:"status"`
	IsActive  bool            `db:"is_active" json:"is_active"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Purchasable reports whether the listing can be bought.
func (p *Project) Purchasable() bool {
	return p.Status == StatusPublished && p.IsActive && p.Price.IsPositive()
}
