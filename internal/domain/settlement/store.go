package settlement

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store is the persistence the engine needs. Implementations bound to a
// transaction make every call part of that transaction.
type Store interface {
	GetAccount(ctx context.Context, userID uuid.UUID) (*Account, error)
	// AdjustBalance adds delta to balance unless the result would be
	// negative, in which case it returns ErrInsufficientFunds.
	AdjustBalance(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)
	// AdjustEarnings is AdjustBalance for total_earnings.
	AdjustEarnings(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)
	InsertEarningLog(ctx context.Context, entry *EarningLog) error
	InsertBalanceMovement(ctx context.Context, movement *BalanceMovement) error
	ListEarningLogs(ctx context.Context, userID uuid.UUID, limit, offset int) ([]EarningLog, int, error)
}
