package settlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const queryTimeout = 3 * time.Second

// Repository implements Store on PostgreSQL. It runs on either a pool or a
// transaction.
type Repository struct {
	db sqlx.ExtContext
}

func NewRepository(db sqlx.ExtContext) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetAccount(ctx context.Context, userID uuid.UUID) (*Account, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var acc Account
	err := sqlx.GetContext(ctx, r.db, &acc, `SELECT id, balance, total_earnings FROM users WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get account", ErrInternal)
	}
	return &acc, nil
}

func (r *Repository) AdjustBalance(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	return r.adjust(ctx, "balance", userID, delta)
}

func (r *Repository) AdjustEarnings(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	return r.adjust(ctx, "total_earnings", userID, delta)
}

// adjust applies delta with a conditional update; the WHERE clause is the
// insufficient-funds check, so no separate read is needed.
func (r *Repository) adjust(ctx context.Context, column string, userID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		UPDATE users
		SET %[1]s = %[1]s + $2, updated_at = now()
		WHERE id = $1 AND %[1]s + $2 >= 0
		RETURNING %[1]s
	`, column)

	var next decimal.Decimal
	err := sqlx.GetContext(ctx, r.db, &next, query, userID, delta)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := sqlx.GetContext(ctx, r.db, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID); err != nil {
			return decimal.Zero, fmt.Errorf("%w: check user", ErrInternal)
		}
		if !exists {
			return decimal.Zero, ErrUserNotFound
		}
		return decimal.Zero, ErrInsufficientFunds
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: update %s", ErrInternal, column)
	}
	return next, nil
}

func (r *Repository) InsertEarningLog(ctx context.Context, entry *EarningLog) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := sqlx.GetContext(ctx, r.db, &entry.CreatedAt, `
		INSERT INTO earning_logs (id, user_id, purchase_id, kind, amount, note)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, entry.ID, entry.UserID, entry.PurchaseID, entry.Kind, entry.Amount, entry.Note)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateEntry
		}
		return fmt.Errorf("%w: insert earning log", ErrInternal)
	}
	return nil
}

func (r *Repository) InsertBalanceMovement(ctx context.Context, m *BalanceMovement) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := sqlx.GetContext(ctx, r.db, &m.CreatedAt, `
		INSERT INTO balance_movements (id, user_id, purchase_id, kind, amount, note)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, m.ID, m.UserID, m.PurchaseID, m.Kind, m.Amount, m.Note)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateEntry
		}
		return fmt.Errorf("%w: insert balance movement", ErrInternal)
	}
	return nil
}

func (r *Repository) ListEarningLogs(ctx context.Context, userID uuid.UUID, limit, offset int) ([]EarningLog, int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, `SELECT COUNT(*) FROM earning_logs WHERE user_id = $1`, userID); err != nil {
		return nil, 0, fmt.Errorf("%w: count earning logs", ErrInternal)
	}

	logs := []EarningLog{}
	err := sqlx.SelectContext(ctx, r.db, &logs, `
		SELECT id, user_id, purchase_id, kind, amount, note, created_at
		FROM earning_logs
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: list earning logs", ErrInternal)
	}
	return logs, total, nil
}
