package dataservice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stanley20008love/lark-proxyss/config"
)

// upstream fakes Binance, alternative.me, CoinGecko and Yahoo on one server.
type upstream struct {
	tickerCalls int32
	fngDown     bool
	chartDown   bool
	delay       time.Duration
}

func (u *upstream) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}

	mux.HandleFunc("/api/v3/ticker/24hr", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&u.tickerCalls, 1)
		if u.delay > 0 {
			time.Sleep(u.delay)
		}
		prices := map[string]string{"BTCUSDT": "97000.00", "ETHUSDT": "3400.50", "SOLUSDT": "190.00"}
		symbol := r.URL.Query().Get("symbol")
		price, ok := prices[symbol]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(w, map[string]any{"code": -1121, "msg": "Invalid symbol."})
			return
		}
		writeJSON(w, map[string]string{
			"symbol":             symbol,
			"lastPrice":          price,
			"priceChange":        "970.00",
			"priceChangePercent": "1.01",
		})
	})

	mux.HandleFunc("/api/v3/klines", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		var rows [][]any
		for i := 0; i < 30; i++ {
			closePrice := fmt.Sprintf("%.2f", 100+float64(i))
			rows = append(rows, []any{int64(1_700_000_000_000) + int64(i)*3_600_000, "100", "101", "99", closePrice, "12.5"})
		}
		writeJSON(w, rows)
	})

	mux.HandleFunc("/fng/", func(w http.ResponseWriter, r *http.Request) {
		if u.fngDown {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, map[string]any{
			"name": "Fear and Greed Index",
			"data": []map[string]string{{"value": "72", "value_classification": "Greed", "timestamp": "1700000000"}},
		})
	})

	mux.HandleFunc("/api/v3/search/trending", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"coins": []map[string]any{
				{"item": map[string]any{"name": "Pepe", "symbol": "pepe", "market_cap_rank": 30, "data": map[string]any{"price": 0.0000123}}},
				{"item": map[string]any{"name": "Sui", "symbol": "sui", "market_cap_rank": 12, "data": map[string]any{"price": 3.5}}},
			},
		})
	})

	mux.HandleFunc("/v1/finance/search", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"count": 1, "quotes": []map[string]string{{"symbol": "600519.SS", "shortname": "Moutai"}}})
	})

	mux.HandleFunc("/v8/finance/chart/", func(w http.ResponseWriter, r *http.Request) {
		if u.chartDown {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		symbol := strings.TrimPrefix(r.URL.Path, "/v8/finance/chart/")
		writeJSON(w, map[string]any{
			"chart": map[string]any{
				"result": []map[string]any{{
					"meta": map[string]any{
						"symbol":             symbol,
						"regularMarketPrice": 201.0,
						"previousClose":      200.0,
						"regularMarketTime":  1700000000,
					},
					"timestamp": []int64{1699900000, 1699990000, 1700000000},
					"indicators": map[string]any{
						"quote": []map[string]any{{"close": []any{198.0, nil, 202.0}, "volume": []float64{10, 0, 12}}},
					},
				}},
			},
		})
	})
	return mux
}

func newTestLive(t *testing.T, u *upstream, opts ...Option) *LiveDataService {
	t.Helper()
	srv := httptest.NewServer(u.handler(t))
	t.Cleanup(srv.Close)

	cfg := config.DataConfig{
		Source:        SourceLive,
		BinanceURL:    srv.URL,
		CoinGeckoURL:  srv.URL,
		FearGreedURL:  srv.URL,
		YahooURL:      srv.URL,
		HTTPTimeout:   2 * time.Second,
		PriceCacheTTL: 5 * time.Second,
	}
	if u.delay > 0 {
		cfg.HTTPTimeout = u.delay / 4
	}
	news, err := NewNewsService(time.Second)
	require.NoError(t, err)

	s, err := NewLiveDataService(cfg, zap.NewNop(), append([]Option{WithNewsService(news)}, opts...)...)
	require.NoError(t, err)
	return s
}

func TestGetCryptoPrice(t *testing.T) {
	u := &upstream{}
	s := newTestLive(t, u)

	q, err := s.GetCryptoPrice(context.Background(), "btc")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", q.Symbol)
	assert.Equal(t, 97000.0, q.Price)
	assert.Equal(t, 1.01, q.ChangePct)
	assert.Equal(t, "Binance", q.Source)
	assert.Equal(t, "🪙 BTC/USDT\n💰 $97,000.00\n📈 24h: +1.01%\n📍 Binance", q.CryptoText())
}

func TestGetCryptoPriceUsesCache(t *testing.T) {
	u := &upstream{}
	now := time.Unix(1_700_000_000, 0)
	s := newTestLive(t, u, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_, err := s.GetCryptoPrice(ctx, "ETH")
	require.NoError(t, err)
	_, err = s.GetCryptoPrice(ctx, "以太坊")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&u.tickerCalls))

	now = now.Add(6 * time.Second)
	_, err = s.GetCryptoPrice(ctx, "eth")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&u.tickerCalls))
}

func TestGetCryptoPriceErrors(t *testing.T) {
	s := newTestLive(t, &upstream{})

	_, err := s.GetCryptoPrice(context.Background(), "AAPL")
	assert.Error(t, err, "not a crypto symbol")

	_, err = s.GetCryptoPrice(context.Background(), "FOOUSDT")
	assert.Error(t, err, "upstream 400")
}

func TestGetCryptoPriceTimeout(t *testing.T) {
	u := &upstream{delay: 400 * time.Millisecond}
	s := newTestLive(t, u)

	start := time.Now()
	_, err := s.GetCryptoPrice(context.Background(), "BTC")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), u.delay)
}

func TestGetMarketIndex(t *testing.T) {
	s := newTestLive(t, &upstream{})

	indices, err := s.GetMarketIndex(context.Background())
	require.NoError(t, err)
	require.Len(t, indices, 3)
	assert.Equal(t, "BTCUSDT", indices[0].Name)
	assert.Equal(t, "SOLUSDT", indices[2].Name)

	text := FormatSnapshot(indices, time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC))
	assert.True(t, strings.HasPrefix(text, "📊 Crypto Prices"))
	assert.Contains(t, text, "ETH: $3,400.50 (+1.01%)")
	assert.Contains(t, text, "Updated: 12:30:00")
}

func TestGetSecurityAnalysisCrypto(t *testing.T) {
	s := newTestLive(t, &upstream{})

	a, err := s.GetSecurityAnalysis(context.Background(), "btc")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", a.Symbol)
	assert.Equal(t, 129.0, a.CurrentPrice)
	assert.Equal(t, 100.0, a.RSI)
	assert.Equal(t, "sideways", a.Trend, "MA60 needs 60 bars")
	assert.InDelta(t, 1.0, a.VolumeRatio, 1e-9)
	assert.Len(t, a.RecentKLines, 5)
	assert.Equal(t, 110.0, a.SupportLevel)
	assert.Equal(t, 129.0, a.ResistanceLevel)
	assert.Contains(t, a.ToMarkdown(), "BTCUSDT 技术分析")
}

func TestGetMarketSentimentCrypto(t *testing.T) {
	s := newTestLive(t, &upstream{})

	sd, err := s.GetMarketSentiment(context.Background(), "crypto")
	require.NoError(t, err)
	assert.Equal(t, "crypto", sd.Market)
	assert.Equal(t, 72.0, sd.Score)
	assert.Equal(t, "Greed", sd.Label)
	assert.Equal(t, int64(1700000000), sd.Timestamp)
}

func TestGetMarketSentimentFallsBackToSP500(t *testing.T) {
	s := newTestLive(t, &upstream{fngDown: true})

	sd, err := s.GetMarketSentiment(context.Background(), "crypto")
	require.NoError(t, err)
	assert.Equal(t, "us_stock", sd.Market)
	// +0.5% on the day: 50 + 0.5*10.
	assert.InDelta(t, 55.0, sd.Score, 1e-9)
	assert.Equal(t, "Neutral", sd.Label)
}

func TestGetTrending(t *testing.T) {
	s := newTestLive(t, &upstream{})

	coins, err := s.GetTrending(context.Background())
	require.NoError(t, err)
	require.Len(t, coins, 2)
	assert.Equal(t, "Pepe", coins[0].Name)
	assert.Equal(t, int64(12), coins[1].Rank)

	text := FormatTrending(coins)
	assert.Contains(t, text, "2. Sui (SUI) #12 $3.50")
}

func TestGetMarketQuote(t *testing.T) {
	s := newTestLive(t, &upstream{})

	q, err := s.GetMarketQuote(context.Background(), "apple")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", q.Symbol)
	assert.Equal(t, 201.0, q.Price)
	assert.InDelta(t, 0.5, q.ChangePct, 1e-9)

	q, err = s.GetMarketQuote(context.Background(), "贵州茅台")
	require.NoError(t, err)
	assert.Equal(t, "600519.SS", q.Symbol, "names are resolved through the search API")

	q, err = s.GetMarketQuote(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, "Binance", q.Source)
}

func TestGetMarketQuoteFallback(t *testing.T) {
	var asked string
	s := newTestLive(t, &upstream{chartDown: true}, WithFallbackQuote(func(symbol string) (*finance.Quote, error) {
		asked = symbol
		return &finance.Quote{RegularMarketPrice: 10, RegularMarketChangePercent: -2}, nil
	}))

	q, err := s.GetMarketQuote(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Equal(t, "MSFT", asked)
	assert.Equal(t, 10.0, q.Price)
	assert.Equal(t, -2.0, q.ChangePct)

	s = newTestLive(t, &upstream{chartDown: true}, WithFallbackQuote(func(string) (*finance.Quote, error) {
		return nil, errors.New("remote error")
	}))
	_, err = s.GetMarketQuote(context.Background(), "MSFT")
	assert.Error(t, err)
}

func TestYahooHistorySkipsNullBars(t *testing.T) {
	s := newTestLive(t, &upstream{})

	bars, err := s.GetHistoricalQuotes(context.Background(), "AAPL", "1d", 30)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 198.0, bars[0].Close)
	assert.Equal(t, 202.0, bars[1].Close)
}

func TestYahooRange(t *testing.T) {
	assert.Equal(t, "5d", yahooRange("1h", 30))
	assert.Equal(t, "1mo", yahooRange("1h", 100))
	assert.Equal(t, "1mo", yahooRange("1d", 20))
	assert.Equal(t, "3mo", yahooRange("1d", 60))
	assert.Equal(t, "6mo", yahooRange("1d", 100))
}
