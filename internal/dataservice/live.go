package dataservice

import (
	"time"

	"github.com/go-resty/resty/v2"
	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"
	"go.uber.org/zap"

	"github.com/stanley20008love/lark-proxyss/config"
)

// Critical: User-Agent to avoid 403/429 from Yahoo and the RSS hosts.
const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// LiveDataService talks to the public market APIs: Binance for crypto,
// Yahoo (with finance-go as a fallback) for everything else, alternative.me
// for sentiment, CoinGecko for trending coins and RSS for news.
type LiveDataService struct {
	binance   *resty.Client
	coingecko *resty.Client
	fng       *resty.Client
	yahoo     *resty.Client
	news      *NewsService
	prices    *PriceCache
	logger    *zap.Logger
	now       func() time.Time

	fallbackQuote func(symbol string) (*finance.Quote, error)
}

type Option func(*LiveDataService)

func WithClock(now func() time.Time) Option {
	return func(s *LiveDataService) { s.now = now }
}

func WithNewsService(n *NewsService) Option {
	return func(s *LiveDataService) { s.news = n }
}

// WithFallbackQuote replaces the finance-go lookup used when the Yahoo chart
// API fails.
func WithFallbackQuote(fn func(symbol string) (*finance.Quote, error)) Option {
	return func(s *LiveDataService) { s.fallbackQuote = fn }
}

func NewLiveDataService(cfg config.DataConfig, logger *zap.Logger, opts ...Option) (*LiveDataService, error) {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	s := &LiveDataService{
		binance:       newHTTPClient(cfg.BinanceURL, timeout),
		coingecko:     newHTTPClient(cfg.CoinGeckoURL, timeout),
		fng:           newHTTPClient(cfg.FearGreedURL, timeout),
		yahoo:         newHTTPClient(cfg.YahooURL, timeout),
		logger:        logger,
		now:           time.Now,
		fallbackQuote: quote.Get,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.news == nil {
		news, err := NewNewsService(timeout)
		if err != nil {
			return nil, err
		}
		s.news = news
	}
	s.prices = NewPriceCache(cfg.PriceCacheTTL, s.now)
	return s, nil
}

func newHTTPClient(baseURL string, timeout time.Duration) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent)
}
