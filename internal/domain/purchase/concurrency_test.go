package purchase

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmarket/marketplace-api/internal/domain/settlement"
)

// race runs every fn at once and returns their errors in order.
func race(fns ...func() error) []error {
	errs := make([]error, len(fns))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, fn := range fns {
		wg.Add(1)
		go func(i int, fn func() error) {
			defer wg.Done()
			<-start
			errs[i] = fn()
		}(i, fn)
	}
	close(start)
	wg.Wait()
	return errs
}

func TestConcurrentCallbacksApplyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.buyWithRedirect(t)
	cb := env.signedCallback(t, p, "200.00", "A")

	const deliveries = 8
	fns := make([]func() error, deliveries)
	for i := range fns {
		fns[i] = func() error { return env.svc.ConfirmCallback(ctx, cb) }
	}
	for _, err := range race(fns...) {
		require.NoError(t, err)
	}

	stored := env.stored(t, p.ID)
	assert.Equal(t, StatusPaid, stored.Status)
	assert.Len(t, env.purchases.systemMessages(p.ID), 1)
	assert.Equal(t, 1, env.sink.count(EventPaid))

	confirmations := 0
	for _, rec := range stored.PaymentDetails {
		if rec.Event == "confirmation" {
			confirmations++
		}
	}
	assert.Equal(t, 1, confirmations)
}

func TestConcurrentAcceptAndRejectOneWins(t *testing.T) {
	for round := 0; round < 10; round++ {
		env := newTestEnv(t)
		ctx := context.Background()
		p := env.buyWithBalance(t)
		env.deliver(t, p.ID)
		buyer := env.actor(env.buyer)

		errs := race(
			func() error {
				_, err := env.svc.AcceptDelivery(ctx, buyer, p.ID)
				return err
			},
			func() error {
				_, err := env.svc.RejectDelivery(ctx, buyer, p.ID, "Setup script fails")
				return err
			},
		)

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, ErrNotEligible)
		}
		require.Equal(t, 1, succeeded, "round %d: %v", round, errs)

		stored := env.stored(t, p.ID)
		if errs[0] == nil {
			assert.Equal(t, DeliveryAccepted, stored.DeliveryStatus)
			assert.Equal(t, StatusCompleted, stored.Status)
		} else {
			assert.Equal(t, DeliveryRejected, stored.DeliveryStatus)
			assert.Equal(t, StatusPaid, stored.Status)
		}
		assertMoney(t, "180", env.accounts.account(env.seller.ID).TotalEarnings)
		assert.Len(t, env.accounts.logsFor(env.seller.ID), 1)
	}
}

func TestConcurrentBalancePurchasesDebitOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.accounts.set(env.buyer.ID, "300", "0")

	const attempts = 4
	fns := make([]func() error, attempts)
	for i := range fns {
		fns[i] = func() error {
			_, err := env.svc.CreatePurchase(ctx, env.buyer.ID, env.createReq(MethodBalance))
			return err
		}
	}

	succeeded := 0
	for _, err := range race(fns...) {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, settlement.ErrInsufficientFunds)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, env.purchases.count())
	assertMoney(t, "100", env.accounts.account(env.buyer.ID).Balance)
	assert.Len(t, env.accounts.movementsFor(env.buyer.ID), 1)
}

func TestConcurrentRefundsReturnFundsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.buyWithBalance(t)
	admin := env.actor(env.admin)

	refund := func() error {
		_, err := env.svc.AdminOverrideStatus(ctx, admin, p.ID, &OverrideStatusRequest{Status: string(StatusRefunded)})
		return err
	}
	for _, err := range race(refund, refund, refund) {
		require.NoError(t, err)
	}

	assertMoney(t, "500", env.accounts.account(env.buyer.ID).Balance)
	assert.Equal(t, 1, env.sink.count(EventRefunded))
}
