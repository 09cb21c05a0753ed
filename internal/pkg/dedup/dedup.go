// Package dedup suppresses repeat item observations within one run.
// The same product routinely shows up under several deal
// classifications; persistence resolves that by upsert key, but a
// Redis SetNX check lets the pipeline skip the expensive marketplace
// lookup for an observation it has already priced recently.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "scout:dedup:observation:"

type Deduplicator struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewDeduplicator(rdb *redis.Client, ttl time.Duration) *Deduplicator {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Deduplicator{
		rdb: rdb,
		ttl: ttl,
	}
}

// Seen records the (store, product, price) observation and reports
// whether it was already present. A price change is a new
// observation; the opportunity must be re-priced. Nil receiver or
// client degrades to "never seen".
func (d *Deduplicator) Seen(ctx context.Context, storeID, productID string, price float64) (bool, error) {
	if d == nil || d.rdb == nil || storeID == "" || productID == "" {
		return false, nil
	}
	key := keyPrefix + observationHash(storeID, productID, price)
	ok, err := d.rdb.SetNX(ctx, key, "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup setnx: %w", err)
	}
	return !ok, nil
}

// Forget drops the observation so the next scrape re-prices it.
func (d *Deduplicator) Forget(ctx context.Context, storeID, productID string, price float64) error {
	if d == nil || d.rdb == nil || storeID == "" || productID == "" {
		return nil
	}
	key := keyPrefix + observationHash(storeID, productID, price)
	if err := d.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("dedup del: %w", err)
	}
	return nil
}

func observationHash(storeID, productID string, price float64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%.2f", storeID, productID, price)))
	return hex.EncodeToString(sum[:])
}
