package settlement

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSplitTax(t *testing.T) {
	cases := []struct {
		gross, pct, net, tax string
	}{
		{"100", "10", "90.00", "10.00"},
		{"200", "10", "180.00", "20.00"},
		{"99.99", "15", "84.99", "15.00"},
		{"10", "0", "10.00", "0.00"},
		{"10", "100", "0.00", "10.00"},
		{"0.05", "33", "0.03", "0.02"},
	}
	for _, tc := range cases {
		net, tax := SplitTax(d(tc.gross), d(tc.pct))
		assert.Equal(t, tc.net, net.StringFixed(2), "net for %s at %s%%", tc.gross, tc.pct)
		assert.Equal(t, tc.tax, tax.StringFixed(2), "tax for %s at %s%%", tc.gross, tc.pct)
		assert.True(t, net.Add(tax).Equal(d(tc.gross).Round(2)))
	}
}

func TestCreditWithTaxLedgerEntryEqualsNet(t *testing.T) {
	seller := uuid.New()
	store := newMemStore(Account{UserID: seller})
	engine := NewEngine(store)
	purchaseID := uuid.New()

	credit, err := engine.CreditWithTax(context.Background(), CreditRequest{
		UserID:       seller,
		PurchaseID:   purchaseID,
		ProjectTitle: "Landing Page Kit",
		Gross:        d("100"),
		Currency:     "USD",
		TaxPercent:   d("10"),
	})
	require.NoError(t, err)
	assert.Equal(t, "90.00", credit.Net.StringFixed(2))
	assert.Equal(t, "10.00", credit.Tax.StringFixed(2))

	require.Len(t, store.logs, 1)
	assert.True(t, store.logs[0].Amount.Equal(credit.Net))
	assert.Contains(t, store.logs[0].Note, "Landing Page Kit")
	assert.Contains(t, store.logs[0].Note, "$10.00")
	assert.True(t, store.accounts[seller].TotalEarnings.Equal(d("90")))

	_, err = engine.CreditWithTax(context.Background(), CreditRequest{
		UserID: seller, PurchaseID: purchaseID, Gross: d("100"), TaxPercent: d("10"),
	})
	assert.ErrorIs(t, err, ErrDuplicateEntry)
}

func TestCreditWithTaxRejectsBadInput(t *testing.T) {
	engine := NewEngine(newMemStore())
	_, err := engine.CreditWithTax(context.Background(), CreditRequest{Gross: d("0"), TaxPercent: d("10")})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = engine.CreditWithTax(context.Background(), CreditRequest{Gross: d("10"), TaxPercent: d("101")})
	assert.ErrorIs(t, err, ErrInvalidTaxPercent)
}

func TestDebitBalanceInsufficientLeavesStateUnchanged(t *testing.T) {
	buyer := uuid.New()
	store := newMemStore(Account{UserID: buyer, Balance: d("100")})
	engine := NewEngine(store)

	_, err := engine.Debit(context.Background(), buyer, d("100.01"), SourceBalance, Purpose{Note: "x"})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, store.accounts[buyer].Balance.Equal(d("100")))
	assert.Empty(t, store.movements)

	next, err := engine.Debit(context.Background(), buyer, d("100"), SourceBalance, Purpose{Note: "x"})
	require.NoError(t, err)
	assert.True(t, next.IsZero())
}

func TestWalletDebitAndRefundReconcileWithLedger(t *testing.T) {
	user := uuid.New()
	store := newMemStore(Account{UserID: user})
	engine := NewEngine(store)
	ctx := context.Background()

	_, err := engine.CreditWithTax(ctx, CreditRequest{UserID: user, PurchaseID: uuid.New(), Gross: d("200"), TaxPercent: d("10")})
	require.NoError(t, err)

	purchaseID := uuid.New()
	left, err := engine.Debit(ctx, user, d("50"), SourceEarnings, Purpose{PurchaseID: &purchaseID, Note: "wallet purchase"})
	require.NoError(t, err)
	assert.True(t, left.Equal(d("130")))
	assert.True(t, store.logSum(user).Equal(store.accounts[user].TotalEarnings))

	_, err = engine.Refund(ctx, user, d("50"), SourceEarnings, Purpose{PurchaseID: &purchaseID, Note: "refund"})
	require.NoError(t, err)
	assert.True(t, store.accounts[user].TotalEarnings.Equal(d("180")))
	assert.True(t, store.logSum(user).Equal(store.accounts[user].TotalEarnings))
}

func TestReverseCredit(t *testing.T) {
	seller := uuid.New()
	store := newMemStore(Account{UserID: seller})
	engine := NewEngine(store)
	ctx := context.Background()
	purchaseID := uuid.New()

	credit, err := engine.CreditWithTax(ctx, CreditRequest{UserID: seller, PurchaseID: purchaseID, Gross: d("100"), TaxPercent: d("10")})
	require.NoError(t, err)

	require.NoError(t, engine.ReverseCredit(ctx, seller, credit.Net, Purpose{PurchaseID: &purchaseID, Note: "refunded"}))
	assert.True(t, store.accounts[seller].TotalEarnings.IsZero())
	assert.True(t, store.logSum(seller).IsZero())
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$20.00", FormatMoney(d("20"), "USD"))
	assert.Equal(t, "-$5.50", FormatMoney(d("-5.5"), "usd"))
	assert.Equal(t, "20.00 EUR", FormatMoney(d("20"), "eur"))
}
