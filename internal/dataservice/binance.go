package dataservice

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// BinanceTicker is the /api/v3/ticker/24hr response.
type BinanceTicker struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
}

// snapshotPairs are the assets shown by the market snapshot command.
var snapshotPairs = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}

// GetCryptoPrice returns the 24h ticker for a crypto symbol, served from the
// price cache when a fresh entry exists.
func (s *LiveDataService) GetCryptoPrice(ctx context.Context, symbol string) (*MarketQuote, error) {
	pair, ok := CryptoPair(symbol)
	if !ok {
		return nil, errors.Errorf("unknown crypto symbol: %s", symbol)
	}
	if q, ok := s.prices.Get(pair); ok {
		return q, nil
	}

	resp, err := s.binance.R().
		SetContext(ctx).
		SetQueryParam("symbol", pair).
		Get("/api/v3/ticker/24hr")
	if err != nil {
		return nil, errors.Wrap(err, "binance ticker")
	}
	if resp.IsError() {
		return nil, errors.Errorf("binance api error: %d", resp.StatusCode())
	}

	var ticker BinanceTicker
	if err := json.Unmarshal(resp.Body(), &ticker); err != nil {
		return nil, errors.Wrap(err, "decode binance ticker")
	}
	price, err := strconv.ParseFloat(ticker.LastPrice, 64)
	if err != nil || price <= 0 {
		return nil, errors.Errorf("binance: invalid price %q for %s", ticker.LastPrice, pair)
	}
	change, _ := strconv.ParseFloat(ticker.PriceChange, 64)
	changePct, _ := strconv.ParseFloat(ticker.PriceChangePercent, 64)

	q := &MarketQuote{
		Symbol:    pair,
		Price:     price,
		Change:    change,
		ChangePct: changePct,
		Source:    "Binance",
		UpdatedAt: s.now().Format(time.RFC3339),
	}
	s.prices.Set(pair, q)
	return q, nil
}

// GetMarketIndex is the BTC/ETH/SOL snapshot. It fails only when every
// pair fails.
func (s *LiveDataService) GetMarketIndex(ctx context.Context) ([]IndexQuote, error) {
	var (
		indices []IndexQuote
		lastErr error
	)
	for _, pair := range snapshotPairs {
		q, err := s.GetCryptoPrice(ctx, pair)
		if err != nil {
			lastErr = err
			continue
		}
		indices = append(indices, IndexQuote{
			Name:      pair,
			Value:     q.Price,
			Change:    q.Change,
			ChangePct: q.ChangePct,
		})
	}
	if len(indices) == 0 {
		return nil, errors.Wrap(lastErr, "market snapshot")
	}
	return indices, nil
}

// GetHistoricalQuotes returns up to limit bars, oldest first. Crypto goes to
// Binance klines, everything else to the Yahoo chart API.
func (s *LiveDataService) GetHistoricalQuotes(ctx context.Context, symbol string, interval string, limit int) ([]KLineItem, error) {
	if limit <= 0 {
		limit = 100
	}
	if pair, ok := CryptoPair(symbol); ok {
		return s.binanceKlines(ctx, pair, interval, limit)
	}
	return s.yahooHistory(ctx, normalizeSymbol(symbol), interval, limit)
}

// binanceKlines decodes rows of
// [openTime, open, high, low, close, volume, closeTime, ...].
func (s *LiveDataService) binanceKlines(ctx context.Context, pair, interval string, limit int) ([]KLineItem, error) {
	resp, err := s.binance.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":   pair,
			"interval": interval,
			"limit":    strconv.Itoa(limit),
		}).
		Get("/api/v3/klines")
	if err != nil {
		return nil, errors.Wrap(err, "binance klines")
	}
	if resp.IsError() {
		return nil, errors.Errorf("binance api error: %d", resp.StatusCode())
	}

	body := resp.Body()
	if !gjson.ValidBytes(body) {
		return nil, errors.New("binance klines: invalid json")
	}
	rows := gjson.ParseBytes(body)
	if !rows.IsArray() {
		return nil, errors.Errorf("binance klines: unexpected payload %s", truncate(rows.Raw, 80))
	}

	var klines []KLineItem
	rows.ForEach(func(_, bar gjson.Result) bool {
		closePrice := bar.Get("4").Float()
		if closePrice == 0 {
			return true
		}
		klines = append(klines, KLineItem{
			Date:   time.UnixMilli(bar.Get("0").Int()).UTC().Format("2006-01-02 15:04"),
			Close:  closePrice,
			Volume: bar.Get("5").Float(),
		})
		return true
	})
	if len(klines) == 0 {
		return nil, errors.Errorf("no kline data for %s", pair)
	}
	return klines, nil
}

// GetSecurityAnalysis computes indicators over the last 100 bars: hourly for
// crypto, daily otherwise.
func (s *LiveDataService) GetSecurityAnalysis(ctx context.Context, symbol string) (*SecurityAnalysis, error) {
	name, interval := normalizeSymbol(symbol), "1d"
	if pair, ok := CryptoPair(symbol); ok {
		name, interval = pair, "1h"
	}

	klines, err := s.GetHistoricalQuotes(ctx, symbol, interval, 100)
	if err != nil {
		return nil, errors.Wrapf(err, "history for %s", name)
	}
	return analyze(name, 0, klines), nil
}
