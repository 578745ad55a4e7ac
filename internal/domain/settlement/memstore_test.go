package settlement

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type memStore struct {
	accounts  map[uuid.UUID]*Account
	logs      []EarningLog
	movements []BalanceMovement
}

func newMemStore(accounts ...Account) *memStore {
	s := &memStore{accounts: make(map[uuid.UUID]*Account)}
	for i := range accounts {
		a := accounts[i]
		s.accounts[a.UserID] = &a
	}
	return s
}

func (s *memStore) GetAccount(_ context.Context, userID uuid.UUID) (*Account, error) {
	a, ok := s.accounts[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memStore) AdjustBalance(_ context.Context, userID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	a, ok := s.accounts[userID]
	if !ok {
		return decimal.Zero, ErrUserNotFound
	}
	next := a.Balance.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, ErrInsufficientFunds
	}
	a.Balance = next
	return next, nil
}

func (s *memStore) AdjustEarnings(_ context.Context, userID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	a, ok := s.accounts[userID]
	if !ok {
		return decimal.Zero, ErrUserNotFound
	}
	next := a.TotalEarnings.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, ErrInsufficientFunds
	}
	a.TotalEarnings = next
	return next, nil
}

func (s *memStore) InsertEarningLog(_ context.Context, entry *EarningLog) error {
	if entry.PurchaseID != nil {
		for _, l := range s.logs {
			if l.UserID == entry.UserID && l.Kind == entry.Kind && l.PurchaseID != nil && *l.PurchaseID == *entry.PurchaseID {
				return ErrDuplicateEntry
			}
		}
	}
	s.logs = append(s.logs, *entry)
	return nil
}

func (s *memStore) InsertBalanceMovement(_ context.Context, m *BalanceMovement) error {
	if m.PurchaseID != nil {
		for _, existing := range s.movements {
			if existing.UserID == m.UserID && existing.Kind == m.Kind && existing.PurchaseID != nil && *existing.PurchaseID == *m.PurchaseID {
				return ErrDuplicateEntry
			}
		}
	}
	s.movements = append(s.movements, *m)
	return nil
}

func (s *memStore) ListEarningLogs(_ context.Context, userID uuid.UUID, limit, offset int) ([]EarningLog, int, error) {
	var out []EarningLog
	for i := len(s.logs) - 1; i >= 0; i-- {
		if s.logs[i].UserID == userID {
			out = append(out, s.logs[i])
		}
	}
	total := len(out)
	if offset >= total {
		return []EarningLog{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

func (s *memStore) logSum(userID uuid.UUID) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range s.logs {
		if l.UserID == userID {
			sum = sum.Add(l.Amount)
		}
	}
	return sum
}
