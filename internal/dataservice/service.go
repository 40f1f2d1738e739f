package dataservice

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DataService is the set of market data fetches the bot's commands use.
// Implementations return errors freely; callers in package agent turn them
// into the fixed unavailable reply.
type DataService interface {
	GetCryptoPrice(ctx context.Context, symbol string) (*MarketQuote, error)
	GetMarketQuote(ctx context.Context, symbol string) (*MarketQuote, error)
	GetMarketIndex(ctx context.Context) ([]IndexQuote, error)
	SearchMarketNews(ctx context.Context, query string) ([]NewsItem, error)
	GetMarketSentiment(ctx context.Context, market string) (*SentimentData, error)
	GetTrending(ctx context.Context) ([]TrendingCoin, error)
	GetHistoricalQuotes(ctx context.Context, symbol string, interval string, limit int) ([]KLineItem, error)
	GetSecurityAnalysis(ctx context.Context, symbol string) (*SecurityAnalysis, error)
}

type MarketQuote struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change    float64 `json:"change"`
	ChangePct float64 `json:"change_pct"`
	Source    string  `json:"source"`
	UpdatedAt string  `json:"updated_at"`
}

type NewsItem struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Link    string `json:"link"`
	Source  string `json:"source"`
	Time    string `json:"time"`
}

type IndexQuote struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Change    float64 `json:"change"`
	ChangePct float64 `json:"change_pct"`
}

type SentimentData struct {
	Market      string  `json:"market"`      // "crypto", "us_stock"
	Score       float64 `json:"score"`       // 0-100 (0=Extreme Fear, 100=Extreme Greed)
	Label       string  `json:"label"`       // "Fear", "Greed", "Neutral", etc.
	Description string  `json:"description"` // Description or reason
	Timestamp   int64   `json:"timestamp"`
}

type TrendingCoin struct {
	Name     string  `json:"name"`
	Symbol   string  `json:"symbol"`
	Rank     int64   `json:"market_cap_rank"`
	PriceUSD float64 `json:"price_usd"`
}

// SecurityAnalysis holds indicator values computed from recent bars.
type SecurityAnalysis struct {
	Symbol          string      `json:"symbol"`
	CurrentPrice    float64     `json:"current_price"`
	MA20            float64     `json:"ma20"`
	MA60            float64     `json:"ma60"`
	RSI             float64     `json:"rsi"` // 14-period
	MACD            float64     `json:"macd"`
	MACDSignal      float64     `json:"macd_signal"`
	MACDHist        float64     `json:"macd_hist"`
	VolumeRatio     float64     `json:"vol_ratio"` // last vol / avg of previous 5
	Trend           string      `json:"trend"`     // "bullish", "bearish", "sideways"
	Signal          Direction   `json:"signal"`
	SignalStrength  float64     `json:"signal_strength"`
	SupportLevel    float64     `json:"support"`
	ResistanceLevel float64     `json:"resistance"`
	RecentKLines    []KLineItem `json:"recent_klines"` // last 5 bars
}

type KLineItem struct {
	Date   string  `json:"date"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// analyze derives a SecurityAnalysis from bars, oldest first.
func analyze(symbol string, price float64, klines []KLineItem) *SecurityAnalysis {
	closes := make([]float64, 0, len(klines))
	for _, k := range klines {
		closes = append(closes, k.Close)
	}
	if price == 0 && len(closes) > 0 {
		price = closes[len(closes)-1]
	}

	ma20 := SMA(closes, 20)
	ma60 := SMA(closes, 60)
	macd, signal, hist := MACD(closes, MACDFast, MACDSlow, MACDSignalPeriod)
	direction, strength, _ := CombinedSignal(closes)

	volRatio := 0.0
	if len(klines) >= 6 {
		lastVol := klines[len(klines)-1].Volume
		sumVol := 0.0
		for _, k := range klines[len(klines)-6 : len(klines)-1] {
			sumVol += k.Volume
		}
		if avgVol := sumVol / 5.0; avgVol > 0 {
			volRatio = lastVol / avgVol
		}
	}

	trend := "sideways"
	if ma20 > 0 && ma60 > 0 {
		if ma20 > ma60 && price > ma20 {
			trend = "bullish"
		} else if ma20 < ma60 && price < ma20 {
			trend = "bearish"
		}
	}

	support, resistance := price, price
	lookback := 20
	if len(closes) < lookback {
		lookback = len(closes)
	}
	if lookback > 0 {
		support, resistance = closes[len(closes)-lookback], closes[len(closes)-lookback]
		for _, c := range closes[len(closes)-lookback:] {
			if c < support {
				support = c
			}
			if c > resistance {
				resistance = c
			}
		}
	}

	recent := klines
	if len(klines) > 5 {
		recent = klines[len(klines)-5:]
	}

	return &SecurityAnalysis{
		Symbol:          symbol,
		CurrentPrice:    price,
		MA20:            ma20,
		MA60:            ma60,
		RSI:             RSI(closes, RSIPeriod),
		MACD:            macd,
		MACDSignal:      signal,
		MACDHist:        hist,
		VolumeRatio:     volRatio,
		Trend:           trend,
		Signal:          direction,
		SignalStrength:  strength,
		SupportLevel:    support,
		ResistanceLevel: resistance,
		RecentKLines:    recent,
	}
}

// MockDataService returns fixed data. It backs DATA_SOURCE=mock for offline
// development.
type MockDataService struct {
	now func() time.Time
}

func NewMockDataService() *MockDataService {
	return &MockDataService{now: time.Now}
}

var mockPrices = map[string]float64{
	"BTCUSDT": 97000.00,
	"ETHUSDT": 3400.00,
	"SOLUSDT": 190.00,
}

func (s *MockDataService) GetCryptoPrice(ctx context.Context, symbol string) (*MarketQuote, error) {
	pair, ok := CryptoPair(symbol)
	if !ok {
		return nil, errors.Errorf("unknown crypto symbol: %s", symbol)
	}
	price, ok := mockPrices[pair]
	if !ok {
		price = 1.0
	}
	return &MarketQuote{
		Symbol:    pair,
		Price:     price,
		Change:    price * 0.01,
		ChangePct: 1.0,
		Source:    "Mock",
		UpdatedAt: s.now().Format(time.RFC3339),
	}, nil
}

func (s *MockDataService) GetMarketQuote(ctx context.Context, symbol string) (*MarketQuote, error) {
	return &MarketQuote{
		Symbol:    normalizeSymbol(symbol),
		Price:     150.0,
		Change:    -1.5,
		ChangePct: -0.99,
		Source:    "Mock",
		UpdatedAt: s.now().Format(time.RFC3339),
	}, nil
}

func (s *MockDataService) GetMarketIndex(ctx context.Context) ([]IndexQuote, error) {
	return []IndexQuote{
		{Name: "BTCUSDT", Value: 97000.00, Change: 970.0, ChangePct: 1.0},
		{Name: "ETHUSDT", Value: 3400.00, Change: 34.0, ChangePct: 1.0},
		{Name: "SOLUSDT", Value: 190.00, Change: 1.9, ChangePct: 1.0},
	}, nil
}

func (s *MockDataService) SearchMarketNews(ctx context.Context, query string) ([]NewsItem, error) {
	return []NewsItem{
		{Title: "美联储暗示明年可能降息", Summary: "在最新的FOMC会议纪要中，美联储官员讨论了通胀下降的趋势。", Source: "财联社", Time: "10:30"},
		{Title: "比特币突破10万美元大关", Summary: "受ETF资金持续流入影响，加密货币市场全线大涨。", Source: "Coindesk", Time: "08:15"},
	}, nil
}

func (s *MockDataService) GetMarketSentiment(ctx context.Context, market string) (*SentimentData, error) {
	return &SentimentData{
		Market:      market,
		Score:       65,
		Label:       "Greed",
		Description: "Market is showing signs of greed due to recent rally.",
		Timestamp:   s.now().Unix(),
	}, nil
}

func (s *MockDataService) GetTrending(ctx context.Context) ([]TrendingCoin, error) {
	return []TrendingCoin{
		{Name: "Bitcoin", Symbol: "BTC", Rank: 1, PriceUSD: 97000},
		{Name: "Solana", Symbol: "SOL", Rank: 5, PriceUSD: 190},
	}, nil
}

func (s *MockDataService) GetHistoricalQuotes(ctx context.Context, symbol string, interval string, limit int) ([]KLineItem, error) {
	if limit <= 0 {
		limit = 10
	}
	klines := make([]KLineItem, limit)
	start := s.now().Add(-time.Duration(limit) * time.Hour)
	for i := range klines {
		klines[i] = KLineItem{
			Date:   start.Add(time.Duration(i) * time.Hour).Format("2006-01-02 15:04"),
			Close:  100 + float64(i%7) - 3,
			Volume: 1000 + float64(i*10),
		}
	}
	return klines, nil
}

func (s *MockDataService) GetSecurityAnalysis(ctx context.Context, symbol string) (*SecurityAnalysis, error) {
	klines, _ := s.GetHistoricalQuotes(ctx, symbol, "1h", 100)
	return analyze(strings.ToUpper(symbol), 0, klines), nil
}
