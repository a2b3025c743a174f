package cache

import (
	"fmt"
	"time"

	"fxcalc/internal/domain"

	"github.com/dgraph-io/ristretto"
)

// RistrettoResultCache is the dedup window: the most recent outcomes keyed by request id.
// Every entry costs 1, so maxItems bounds the window size.
type RistrettoResultCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

func NewResultCache(maxItems int64, ttl time.Duration) (*RistrettoResultCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        10 * maxItems,
		MaxCost:            maxItems,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create result cache failed: %w", err)
	}
	return &RistrettoResultCache{cache: c, ttl: ttl}, nil
}

func (c *RistrettoResultCache) Get(requestID string) (domain.Outcome, bool) {
	if v, ok := c.cache.Get(requestID); ok {
		outcome, ok := v.(domain.Outcome)
		return outcome, ok
	}
	return domain.Outcome{}, false
}

// Set stores the outcome and waits for the write to be applied, so a duplicate
// arriving right after completion already sees it.
func (c *RistrettoResultCache) Set(outcome domain.Outcome) {
	if c.ttl > 0 {
		c.cache.SetWithTTL(outcome.RequestID, outcome, 1, c.ttl)
	} else {
		c.cache.Set(outcome.RequestID, outcome, 1)
	}
	c.cache.Wait()
}

func (c *RistrettoResultCache) Close() { c.cache.Close() }
