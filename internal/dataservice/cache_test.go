package dataservice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceCacheExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := NewPriceCache(5*time.Second, func() time.Time { return now })

	_, ok := c.Get("BTCUSDT")
	assert.False(t, ok)

	c.Set("BTCUSDT", &MarketQuote{Symbol: "BTCUSDT", Price: 1})
	q, ok := c.Get("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 1.0, q.Price)

	q.Price = 2
	q, _ = c.Get("BTCUSDT")
	assert.Equal(t, 1.0, q.Price, "Get returns a copy")

	now = now.Add(5 * time.Second)
	_, ok = c.Get("BTCUSDT")
	assert.False(t, ok)
}

func TestPriceCacheDisabled(t *testing.T) {
	c := NewPriceCache(0, nil)
	c.Set("BTCUSDT", &MarketQuote{Price: 1})
	_, ok := c.Get("BTCUSDT")
	assert.False(t, ok)

	var nilCache *PriceCache
	nilCache.Set("BTCUSDT", &MarketQuote{Price: 1})
	_, ok = nilCache.Get("BTCUSDT")
	assert.False(t, ok)
}
