package settlement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Engine is the only writer of user balances and earnings. Bind it to a
// transactional Store to make its writes atomic with purchase updates.
type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Debit takes amount from the buyer's source and returns the new value of
// that source.
func (e *Engine) Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, source Source, purpose Purpose) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	amount = amount.Round(2)

	switch source {
	case SourceBalance:
		next, err := e.store.AdjustBalance(ctx, userID, amount.Neg())
		if err != nil {
			return decimal.Zero, err
		}
		if err := e.store.InsertBalanceMovement(ctx, &BalanceMovement{
			ID:         uuid.New(),
			UserID:     userID,
			PurchaseID: purpose.PurchaseID,
			Kind:       KindBalanceDebit,
			Amount:     amount.Neg(),
			Note:       purpose.Note,
		}); err != nil {
			return decimal.Zero, err
		}
		return next, nil

	case SourceEarnings:
		next, err := e.store.AdjustEarnings(ctx, userID, amount.Neg())
		if err != nil {
			return decimal.Zero, err
		}
		if err := e.store.InsertEarningLog(ctx, &EarningLog{
			ID:         uuid.New(),
			UserID:     userID,
			PurchaseID: purpose.PurchaseID,
			Kind:       KindWalletDebit,
			Amount:     amount.Neg(),
			Note:       purpose.Note,
		}); err != nil {
			return decimal.Zero, err
		}
		return next, nil
	}
	return decimal.Zero, ErrInvalidSource
}

// CreditWithTax credits the seller with gross minus platform tax and writes
// one earning log entry whose amount is exactly the net.
func (e *Engine) CreditWithTax(ctx context.Context, req CreditRequest) (*Credit, error) {
	if !req.Gross.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !ValidTaxPercent(req.TaxPercent) {
		return nil, ErrInvalidTaxPercent
	}

	gross := req.Gross.Round(2)
	net, tax := SplitTax(gross, req.TaxPercent)

	if net.IsPositive() {
		if _, err := e.store.AdjustEarnings(ctx, req.UserID, net); err != nil {
			return nil, err
		}
	}

	purchaseID := req.PurchaseID
	if err := e.store.InsertEarningLog(ctx, &EarningLog{
		ID:         uuid.New(),
		UserID:     req.UserID,
		PurchaseID: &purchaseID,
		Kind:       KindSale,
		Amount:     net,
		Note:       SaleNote(req.ProjectTitle, net, tax, req.TaxPercent, req.Currency),
	}); err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", req.UserID.String()).
		Str("purchase_id", req.PurchaseID.String()).
		Str("gross", gross.StringFixed(2)).
		Str("net", net.StringFixed(2)).
		Str("tax", tax.StringFixed(2)).
		Msg("Seller credited")

	return &Credit{Gross: gross, Net: net, Tax: tax, TaxPercent: req.TaxPercent}, nil
}

// Refund returns amount to the source it was drawn from.
func (e *Engine) Refund(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, source Source, purpose Purpose) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	amount = amount.Round(2)

	switch source {
	case SourceBalance:
		next, err := e.store.AdjustBalance(ctx, userID, amount)
		if err != nil {
			return decimal.Zero, err
		}
		if err := e.store.InsertBalanceMovement(ctx, &BalanceMovement{
			ID:         uuid.New(),
			UserID:     userID,
			PurchaseID: purpose.PurchaseID,
			Kind:       KindBalanceRefund,
			Amount:     amount,
			Note:       purpose.Note,
		}); err != nil {
			return decimal.Zero, err
		}
		return next, nil

	case SourceEarnings:
		next, err := e.store.AdjustEarnings(ctx, userID, amount)
		if err != nil {
			return decimal.Zero, err
		}
		if err := e.store.InsertEarningLog(ctx, &EarningLog{
			ID:         uuid.New(),
			UserID:     userID,
			PurchaseID: purpose.PurchaseID,
			Kind:       KindWalletRefund,
			Amount:     amount,
			Note:       purpose.Note,
		}); err != nil {
			return decimal.Zero, err
		}
		return next, nil
	}
	return decimal.Zero, ErrInvalidSource
}

// ReverseCredit takes back a previously credited net. It fails with
// ErrInsufficientFunds when the seller has already spent it.
func (e *Engine) ReverseCredit(ctx context.Context, userID uuid.UUID, net decimal.Decimal, purpose Purpose) error {
	if !net.IsPositive() {
		return nil
	}
	if _, err := e.store.AdjustEarnings(ctx, userID, net.Round(2).Neg()); err != nil {
		return err
	}
	return e.store.InsertEarningLog(ctx, &EarningLog{
		ID:         uuid.New(),
		UserID:     userID,
		PurchaseID: purpose.PurchaseID,
		Kind:       KindSaleReversal,
		Amount:     net.Round(2).Neg(),
		Note:       purpose.Note,
	})
}

// Account returns the user's balances.
func (e *Engine) Account(ctx context.Context, userID uuid.UUID) (*Account, error) {
	return e.store.GetAccount(ctx, userID)
}

// Ledger returns a page of the user's earning log, newest first.
func (e *Engine) Ledger(ctx context.Context, userID uuid.UUID, page, limit int) ([]EarningLog, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}
	return e.store.ListEarningLogs(ctx, userID, limit, (page-1)*limit)
}

// SaleNote is the ledger note for a sale credit.
func SaleNote(title string, net, tax, pct decimal.Decimal, currency string) string {
	return fmt.Sprintf("Sale of %q: %s credited after %s platform tax (%s%%)",
		title, FormatMoney(net, currency), FormatMoney(tax, currency), pct.String())
}
