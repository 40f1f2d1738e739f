package dataservice

import (
	"sync"
	"time"
)

type cachedQuote struct {
	quote     MarketQuote
	fetchedAt time.Time
}

// PriceCache keeps the last quote per symbol for a short window so bursts of
// identical commands share one upstream call. Writers race benignly; the
// last write wins.
type PriceCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]cachedQuote
}

func NewPriceCache(ttl time.Duration, now func() time.Time) *PriceCache {
	if now == nil {
		now = time.Now
	}
	return &PriceCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]cachedQuote),
	}
}

// Get returns a copy of the cached quote if it is younger than the TTL.
func (c *PriceCache) Get(symbol string) (*MarketQuote, bool) {
	if c == nil || c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	entry, ok := c.entries[symbol]
	c.mu.Unlock()
	if !ok || c.now().Sub(entry.fetchedAt) >= c.ttl {
		return nil, false
	}
	q := entry.quote
	return &q, true
}

func (c *PriceCache) Set(symbol string, q *MarketQuote) {
	if c == nil || c.ttl <= 0 || q == nil {
		return
	}
	c.mu.Lock()
	c.entries[symbol] = cachedQuote{quote: *q, fetchedAt: c.now()}
	c.mu.Unlock()
}
