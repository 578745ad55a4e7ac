package settlement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Source is where buyer funds are drawn from and returned to.
type Source string

const (
	SourceBalance  Source = "balance"
	SourceEarnings Source = "earnings"
)

// EntryKind classifies earning log entries.
type EntryKind string

const (
	KindSale          EntryKind = "sale"
	KindSaleReversal  EntryKind = "sale_reversal"
	KindWalletDebit   EntryKind = "wallet_debit"
	KindWalletRefund  EntryKind = "wallet_refund"
	KindBalanceDebit  EntryKind = "purchase_debit"
	KindBalanceRefund EntryKind = "refund"
)

// Account is the monetary view of a user.
type Account struct {
	UserID        uuid.UUID       `db:"id" json:"user_id"`
	Balance       decimal.Decimal `db:"balance" json:"balance"`
	TotalEarnings decimal.Decimal `db:"total_earnings" json:"total_earnings"`
}

// EarningLog is an append-only entry; amounts sum to total_earnings.
type EarningLog struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	UserID     uuid.UUID       `db:"user_id" json:"user_id"`
	PurchaseID *uuid.UUID      `db:"purchase_id" json:"purchase_id,omitempty"`
	Kind       EntryKind       `db:"kind" json:"kind"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	Note       string          `db:"note" json:"note"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// BalanceMovement records changes to the stored balance.
type BalanceMovement struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	UserID     uuid.UUID       `db:"user_id" json:"user_id"`
	PurchaseID *uuid.UUID      `db:"purchase_id" json:"purchase_id,omitempty"`
	Kind       EntryKind       `db:"kind" json:"kind"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	Note       string          `db:"note" json:"note"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// Purpose ties a money movement to a purchase for the ledger.
type Purpose struct {
	PurchaseID *uuid.UUID
	Note       string
}

// CreditRequest describes a seller payout for a sale.
type CreditRequest struct {
	UserID       uuid.UUID
	PurchaseID   uuid.UUID
	ProjectTitle string
	Gross        decimal.Decimal
	Currency     string
	TaxPercent   decimal.Decimal
}

// Credit is the result of CreditWithTax.
type Credit struct {
	Gross      decimal.Decimal `json:"gross"`
	Net        decimal.Decimal `json:"net"`
	Tax        decimal.Decimal `json:"tax"`
	TaxPercent decimal.Decimal `json:"tax_percent"`
}
