package dataservice

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// YahooSearchResponse for Autocomplete API
type YahooSearchResponse struct {
	Count  int `json:"count"`
	Quotes []struct {
		Symbol    string `json:"symbol"`
		Shortname string `json:"shortname"`
		Exchange  string `json:"exchange"`
	} `json:"quotes"`
}

// YahooChartResponse is the v8 chart payload.
type YahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"previousClose"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				Symbol             string  `json:"symbol"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close  []float64 `json:"close"`
					Volume []float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// searchSymbol uses the Yahoo autocomplete API to find a symbol by name.
func (s *LiveDataService) searchSymbol(ctx context.Context, query string) string {
	resp, err := s.yahoo.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":           query,
			"lang":        "zh-CN",
			"region":      "CN",
			"quotesCount": "1",
			"newsCount":   "0",
		}).
		Get("/v1/finance/search")
	if err != nil || resp.IsError() {
		return ""
	}

	var result YahooSearchResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return ""
	}
	if len(result.Quotes) > 0 {
		return result.Quotes[0].Symbol
	}
	return ""
}

func (s *LiveDataService) chart(ctx context.Context, symbol, interval, rangeStr string) (*YahooChartResponse, error) {
	resp, err := s.yahoo.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		SetQueryParams(map[string]string{"interval": interval, "range": rangeStr}).
		Get("/v8/finance/chart/{symbol}")
	if err != nil {
		return nil, errors.Wrap(err, "yahoo chart")
	}
	if resp.IsError() {
		return nil, errors.Errorf("yahoo chart api error: %d", resp.StatusCode())
	}

	var chartResp YahooChartResponse
	if err := json.Unmarshal(resp.Body(), &chartResp); err != nil {
		return nil, errors.Wrap(err, "decode yahoo chart")
	}
	if len(chartResp.Chart.Result) == 0 {
		return nil, errors.Errorf("symbol not found or no data: %s", symbol)
	}
	return &chartResp, nil
}

func (s *LiveDataService) yahooPrice(ctx context.Context, symbol string) (*MarketQuote, error) {
	chartResp, err := s.chart(ctx, symbol, "1d", "1d")
	if err != nil {
		return nil, err
	}

	meta := chartResp.Chart.Result[0].Meta
	price := meta.RegularMarketPrice
	if price == 0 && meta.PreviousClose == 0 {
		return nil, errors.Errorf("invalid price data (0.0) for symbol: %s", symbol)
	}

	prevClose := meta.PreviousClose
	if prevClose == 0 {
		prevClose = meta.ChartPreviousClose
	}
	change := price - prevClose
	changePct := 0.0
	if prevClose != 0 {
		changePct = (change / prevClose) * 100
	}

	return &MarketQuote{
		Symbol:    meta.Symbol,
		Price:     price,
		Change:    change,
		ChangePct: changePct,
		Source:    "Yahoo Finance",
		UpdatedAt: time.Unix(meta.RegularMarketTime, 0).Format(time.RFC3339),
	}, nil
}

// GetMarketQuote resolves stocks, indices, futures and forex. Crypto symbols
// are delegated to GetCryptoPrice.
func (s *LiveDataService) GetMarketQuote(ctx context.Context, symbol string) (*MarketQuote, error) {
	if _, ok := CryptoPair(symbol); ok {
		return s.GetCryptoPrice(ctx, symbol)
	}

	resolved := normalizeSymbol(symbol)
	if !looksLikeTicker(resolved) {
		if found := s.searchSymbol(ctx, symbol); found != "" {
			resolved = found
		}
	}

	q, err := s.yahooPrice(ctx, resolved)
	if err == nil {
		return q, nil
	}
	s.logger.Debug("Yahoo chart failed, trying finance-go", zap.String("symbol", resolved), zap.Error(err))

	old, ferr := s.fallbackQuote(resolved)
	if ferr != nil {
		return nil, errors.Wrapf(ferr, "quote %s", resolved)
	}
	if old == nil {
		return nil, errors.Errorf("symbol not found: %s", resolved)
	}
	return &MarketQuote{
		Symbol:    resolved,
		Price:     old.RegularMarketPrice,
		Change:    old.RegularMarketChange,
		ChangePct: old.RegularMarketChangePercent,
		Source:    "Yahoo Finance",
		UpdatedAt: s.now().Format(time.RFC3339),
	}, nil
}

func (s *LiveDataService) yahooHistory(ctx context.Context, symbol, interval string, limit int) ([]KLineItem, error) {
	chartResp, err := s.chart(ctx, symbol, interval, yahooRange(interval, limit))
	if err != nil {
		return nil, err
	}

	result := chartResp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, errors.Errorf("no quote data found for %s", symbol)
	}
	bars := result.Indicators.Quote[0]

	var klines []KLineItem
	for i, ts := range result.Timestamp {
		if i >= len(bars.Close) {
			break
		}
		// Skip null values
		if bars.Close[i] == 0 {
			continue
		}
		volume := 0.0
		if i < len(bars.Volume) {
			volume = bars.Volume[i]
		}
		klines = append(klines, KLineItem{
			Date:   time.Unix(ts, 0).Format("2006-01-02"),
			Close:  bars.Close[i],
			Volume: volume,
		})
	}
	if len(klines) > limit {
		klines = klines[len(klines)-limit:]
	}
	if len(klines) == 0 {
		return nil, errors.Errorf("no historical data found for %s", symbol)
	}
	return klines, nil
}

// yahooRange picks the smallest chart range that covers limit bars.
func yahooRange(interval string, limit int) string {
	switch interval {
	case "1h", "60m":
		if limit <= 35 {
			return "5d"
		}
		return "1mo"
	default:
		if limit <= 20 {
			return "1mo"
		}
		if limit <= 60 {
			return "3mo"
		}
		return fmt.Sprintf("%dmo", (limit/20)+1)
	}
}
