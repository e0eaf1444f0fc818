// Package redis keeps the partner promo-code table in Redis so codes can be
// added without a redeploy. The quote path never talks to Redis directly: it
// reads an in-memory snapshot that is refreshed in the background.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"lawnquote/decision/catalog"
	"lawnquote/decision/promotion"
)

// DefaultKey is the hash holding promo codes.
const DefaultKey = "lawnquote:promo_codes"

type codeValue struct {
	Discount int    `json:"discount"`
	Partner  string `json:"partner"`
}

// CodeStore reads and writes the promo-code hash.
type CodeStore struct {
	client *redis.Client
	key    string
}

// NewClient creates a Redis client for addr.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// NewCodeStore creates a store over the given hash key. An empty key uses
// DefaultKey.
func NewCodeStore(client *redis.Client, key string) *CodeStore {
	if key == "" {
		key = DefaultKey
	}
	return &CodeStore{client: client, key: key}
}

// Ping checks connectivity.
func (s *CodeStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Sync replaces the stored table with codes in one transaction.
func (s *CodeStore) Sync(ctx context.Context, codes []catalog.PromoCode) error {
	fields := make(map[string]any, len(codes))
	for _, c := range codes {
		if err := catalog.ValidatePromoCode(c); err != nil {
			return err
		}
		b, err := json.Marshal(codeValue{Discount: c.Discount, Partner: c.Partner})
		if err != nil {
			return fmt.Errorf("encode code %s: %w", c.Code, err)
		}
		fields[catalog.NormalizeCode(c.Code)] = string(b)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(fields) > 0 {
			pipe.HSet(ctx, s.key, fields)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sync promo codes: %w", err)
	}
	return nil
}

// Put adds or replaces a single code. Codes Load would skip are rejected.
func (s *CodeStore) Put(ctx context.Context, c catalog.PromoCode) error {
	if err := catalog.ValidatePromoCode(c); err != nil {
		return err
	}
	b, err := json.Marshal(codeValue{Discount: c.Discount, Partner: c.Partner})
	if err != nil {
		return fmt.Errorf("encode code %s: %w", c.Code, err)
	}
	return s.client.HSet(ctx, s.key, catalog.NormalizeCode(c.Code), string(b)).Err()
}

// Load reads every stored code. Malformed entries are skipped and reported
// in the returned count.
func (s *CodeStore) Load(ctx context.Context) ([]catalog.PromoCode, int, error) {
	raw, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("load promo codes: %w", err)
	}
	codes := make([]catalog.PromoCode, 0, len(raw))
	skipped := 0
	for code, v := range raw {
		var cv codeValue
		if err := json.Unmarshal([]byte(v), &cv); err != nil {
			skipped++
			continue
		}
		if catalog.ValidatePromoCode(catalog.PromoCode{Code: code, Discount: cv.Discount}) != nil {
			skipped++
			continue
		}
		codes = append(codes, catalog.PromoCode{Code: code, Discount: cv.Discount, Partner: cv.Partner})
	}
	return codes, skipped, nil
}

// CodeCache is a promotion.CodeLookup backed by a periodically refreshed
// snapshot of the store. Lookups never block on Redis.
type CodeCache struct {
	store   *CodeStore
	current atomic.Pointer[promotion.CodeTable]
	logger  *slog.Logger
}

// NewCodeCache starts with fallback as the snapshot until the first refresh
// succeeds.
func NewCodeCache(store *CodeStore, fallback *promotion.CodeTable, logger *slog.Logger) *CodeCache {
	if logger == nil {
		logger = slog.Default()
	}
	if fallback == nil {
		fallback = promotion.NewCodeTable(nil)
	}
	c := &CodeCache{store: store, logger: logger}
	c.current.Store(fallback)
	return c
}

// Lookup implements promotion.CodeLookup.
func (c *CodeCache) Lookup(code string) promotion.CodeResult {
	return c.current.Load().Lookup(code)
}

// Len returns the size of the current snapshot.
func (c *CodeCache) Len() int {
	return c.current.Load().Len()
}

// Refresh swaps in a fresh snapshot. On error the previous snapshot stays.
func (c *CodeCache) Refresh(ctx context.Context) error {
	codes, skipped, err := c.store.Load(ctx)
	if err != nil {
		return err
	}
	if skipped > 0 {
		c.logger.Warn("skipped malformed promo codes", "count", skipped)
	}
	c.current.Store(promotion.NewCodeTable(codes))
	c.logger.Debug("promo codes refreshed", "count", len(codes))
	return nil
}

// DefaultRefreshInterval is used by Run when given a non-positive interval.
const DefaultRefreshInterval = time.Minute

// Run refreshes every interval until ctx is done.
func (c *CodeCache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		c.logger.Warn("invalid promo code refresh interval, using default",
			"interval", interval, "default", DefaultRefreshInterval)
		interval = DefaultRefreshInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.logger.Warn("promo code refresh failed", "error", err)
			}
		}
	}
}

var _ promotion.CodeLookup = (*CodeCache)(nil)
