package sitesetting

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu     sync.Mutex
	values map[string]string
	err    error
	gets   int32
}

func (f *fakeRepo) Get(_ context.Context, key string) (string, error) {
	atomic.AddInt32(&f.gets, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	v, ok := f.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (f *fakeRepo) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values == nil {
		f.values = map[string]string{}
	}
	f.values[key] = value
	return nil
}

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()}), mr
}

var ten = decimal.NewFromInt(10)

func TestTaxPercentFallbacks(t *testing.T) {
	ctx := context.Background()

	missing := NewService(&fakeRepo{}, nil, time.Minute, ten)
	assert.True(t, missing.TaxPercent(ctx).Equal(ten))

	invalid := NewService(&fakeRepo{values: map[string]string{KeyTaxPercent: "abc"}}, nil, time.Minute, ten)
	assert.True(t, invalid.TaxPercent(ctx).Equal(ten))

	outOfRange := NewService(&fakeRepo{values: map[string]string{KeyTaxPercent: "150"}}, nil, time.Minute, ten)
	assert.True(t, outOfRange.TaxPercent(ctx).Equal(ten))

	broken := NewService(&fakeRepo{err: errors.New("db down")}, nil, time.Minute, ten)
	assert.True(t, broken.TaxPercent(ctx).Equal(ten))
}

func TestTaxPercentIsCachedInRedis(t *testing.T) {
	ctx := context.Background()
	rdb, mr := newRedis(t)
	repo := &fakeRepo{values: map[string]string{KeyTaxPercent: "12.5"}}
	svc := NewService(repo, rdb, time.Minute, ten)

	assert.Equal(t, "12.5", svc.TaxPercent(ctx).String())
	assert.Equal(t, "12.5", svc.TaxPercent(ctx).String())
	assert.Equal(t, int32(1), atomic.LoadInt32(&repo.gets))

	cached, err := mr.Get(keyPrefixCache + KeyTaxPercent)
	require.NoError(t, err)
	assert.Equal(t, "12.5", cached)
}

func TestSetTaxPercentInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	rdb, mr := newRedis(t)
	repo := &fakeRepo{values: map[string]string{KeyTaxPercent: "10"}}
	svc := NewService(repo, rdb, time.Minute, ten)

	_ = svc.TaxPercent(ctx)
	require.True(t, mr.Exists(keyPrefixCache+KeyTaxPercent))

	require.NoError(t, svc.SetTaxPercent(ctx, decimal.NewFromInt(15)))
	assert.False(t, mr.Exists(keyPrefixCache+KeyTaxPercent))
	assert.Equal(t, "15", svc.TaxPercent(ctx).String())

	assert.ErrorIs(t, svc.SetTaxPercent(ctx, decimal.NewFromInt(-1)), ErrInvalidTaxPercent)
	assert.ErrorIs(t, svc.SetTaxPercent(ctx, decimal.NewFromInt(101)), ErrInvalidTaxPercent)
}

func TestTaxPercentSurvivesRedisOutage(t *testing.T) {
	rdb, mr := newRedis(t)
	mr.Close()
	svc := NewService(&fakeRepo{values: map[string]string{KeyTaxPercent: "7"}}, rdb, time.Minute, ten)
	assert.Equal(t, "7", svc.TaxPercent(context.Background()).String())
}

func TestOutOfRangeFallbackIsReplaced(t *testing.T) {
	ctx := context.Background()

	for _, fallback := range []string{"150", "-5"} {
		svc := NewService(&fakeRepo{}, nil, time.Minute, decimal.RequireFromString(fallback))
		assert.True(t, svc.TaxPercent(ctx).Equal(ten), "fallback %s", fallback)
	}

	bad := NewService(&fakeRepo{values: map[string]string{KeyTaxPercent: "250"}}, nil, time.Minute, decimal.RequireFromString("101"))
	assert.True(t, bad.TaxPercent(ctx).Equal(ten))

	zero := NewService(&fakeRepo{}, nil, time.Minute, decimal.Zero)
	assert.True(t, zero.TaxPercent(ctx).IsZero())
}
