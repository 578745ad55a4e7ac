package sitesetting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

const KeyTaxPercent = "platform_tax_percent"

const keyPrefixCache = "settings:"

var (
	ErrInvalidTaxPercent = errors.New("tax percent must be between 0 and 100")
	hundred              = decimal.NewFromInt(100)

	// defaultTaxPercent replaces a fallback that is itself out of range.
	defaultTaxPercent = decimal.NewFromInt(10)
)

// Service reads settings through a Redis cache. Redis is optional.
type Service struct {
	repo        Repository
	redis       *redis.Client
	ttl         time.Duration
	fallbackTax decimal.Decimal
	group       singleflight.Group
}

func NewService(repo Repository, redisClient *redis.Client, ttl time.Duration, fallbackTax decimal.Decimal) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if fallbackTax.IsNegative() || fallbackTax.GreaterThan(hundred) {
		log.Warn().
			Str("fallback", fallbackTax.String()).
			Str("using", defaultTaxPercent.String()).
			Msg("Fallback tax percent out of range")
		fallbackTax = defaultTaxPercent
	}
	return &Service{repo: repo, redis: redisClient, ttl: ttl, fallbackTax: fallbackTax}
}

// TaxPercent returns the platform tax percent. A missing or invalid stored
// value, or a storage failure, yields the configured fallback; it never
// fails the caller.
func (s *Service) TaxPercent(ctx context.Context) decimal.Decimal {
	raw, err := s.cachedValue(ctx, KeyTaxPercent)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Warn().Err(err).Str("key", KeyTaxPercent).Msg("Failed to load tax percent, using fallback")
		}
		return s.fallbackTax
	}

	pct, err := parseTaxPercent(raw)
	if err != nil {
		log.Warn().Err(err).Str("value", raw).Msg("Invalid stored tax percent, using fallback")
		return s.fallbackTax
	}
	return pct
}

// SetTaxPercent stores a new tax percent and invalidates the cache.
func (s *Service) SetTaxPercent(ctx context.Context, pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return ErrInvalidTaxPercent
	}
	if err := s.repo.Set(ctx, KeyTaxPercent, pct.String()); err != nil {
		return err
	}
	if s.redis != nil {
		if err := s.redis.Del(ctx, keyPrefixCache+KeyTaxPercent).Err(); err != nil {
			log.Warn().Err(err).Msg("Failed to invalidate settings cache")
		}
	}
	log.Info().Str("tax_percent", pct.String()).Msg("Platform tax percent updated")
	return nil
}

func (s *Service) cachedValue(ctx context.Context, key string) (string, error) {
	cacheKey := keyPrefixCache + key
	if s.redis != nil {
		v, err := s.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			return v, nil
		}
		if err != redis.Nil {
			log.Warn().Err(err).Str("key", cacheKey).Msg("Settings cache read failed")
		}
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		value, err := s.repo.Get(ctx, key)
		if err != nil {
			return "", err
		}
		if s.redis != nil {
			if err := s.redis.Set(ctx, cacheKey, value, s.ttl).Err(); err != nil {
				log.Warn().Err(err).Str("key", cacheKey).Msg("Settings cache write failed")
			}
		}
		return value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func parseTaxPercent(raw string) (decimal.Decimal, error) {
	pct, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse tax percent: %w", err)
	}
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return decimal.Zero, ErrInvalidTaxPercent
	}
	return pct, nil
}
