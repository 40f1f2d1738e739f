package dataservice

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// FearGreedResponse is the alternative.me /fng/ payload.
type FearGreedResponse struct {
	Name string `json:"name"`
	Data []struct {
		Value               string `json:"value"`
		ValueClassification string `json:"value_classification"`
		Timestamp           string `json:"timestamp"`
	} `json:"data"`
}

// GetMarketSentiment returns the crypto Fear & Greed index. For other markets
// (or when the index is down) it derives a rough score from the S&P 500's
// daily change.
func (s *LiveDataService) GetMarketSentiment(ctx context.Context, market string) (*SentimentData, error) {
	if market == "" || market == "crypto" {
		sd, err := s.fearGreed(ctx)
		if err == nil {
			return sd, nil
		}
		s.logger.Warn("Fear & Greed index unavailable", zap.Error(err))
	}

	q, err := s.GetMarketQuote(ctx, "^GSPC")
	if err != nil {
		return nil, errors.Wrapf(err, "sentiment data not available for %s", market)
	}

	label := "Neutral"
	if q.ChangePct > 1.0 {
		label = "Greed"
	} else if q.ChangePct < -1.0 {
		label = "Fear"
	}
	score := 50 + q.ChangePct*10
	if score < 0 {
		score = 0
	} else if score > 100 {
		score = 100
	}
	return &SentimentData{
		Market:      "us_stock",
		Score:       score,
		Label:       label,
		Description: fmt.Sprintf("S&P 500 Daily Change is %.2f%%", q.ChangePct),
		Timestamp:   s.now().Unix(),
	}, nil
}

func (s *LiveDataService) fearGreed(ctx context.Context) (*SentimentData, error) {
	resp, err := s.fng.R().SetContext(ctx).Get("/fng/")
	if err != nil {
		return nil, errors.Wrap(err, "fear & greed")
	}
	if resp.IsError() {
		return nil, errors.Errorf("fear & greed api error: %d", resp.StatusCode())
	}

	var result FearGreedResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, errors.Wrap(err, "decode fear & greed")
	}
	if len(result.Data) == 0 {
		return nil, errors.New("fear & greed: empty data")
	}

	score, err := strconv.ParseFloat(result.Data[0].Value, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "fear & greed: bad value %q", result.Data[0].Value)
	}
	ts, _ := strconv.ParseInt(result.Data[0].Timestamp, 10, 64)
	return &SentimentData{
		Market:      "crypto",
		Score:       score,
		Label:       result.Data[0].ValueClassification,
		Description: fmt.Sprintf("Crypto Fear & Greed Index is %s", result.Data[0].ValueClassification),
		Timestamp:   ts,
	}, nil
}

// GetTrending lists CoinGecko's trending coins.
func (s *LiveDataService) GetTrending(ctx context.Context) ([]TrendingCoin, error) {
	resp, err := s.coingecko.R().SetContext(ctx).Get("/api/v3/search/trending")
	if err != nil {
		return nil, errors.Wrap(err, "coingecko trending")
	}
	if resp.IsError() {
		return nil, errors.Errorf("coingecko api error: %d", resp.StatusCode())
	}

	body := resp.Body()
	if !gjson.ValidBytes(body) {
		return nil, errors.New("coingecko trending: invalid json")
	}

	var coins []TrendingCoin
	gjson.GetBytes(body, "coins.#.item").ForEach(func(_, item gjson.Result) bool {
		coins = append(coins, TrendingCoin{
			Name:     item.Get("name").String(),
			Symbol:   item.Get("symbol").String(),
			Rank:     item.Get("market_cap_rank").Int(),
			PriceUSD: item.Get("data.price").Float(),
		})
		return true
	})
	if len(coins) == 0 {
		return nil, errors.New("coingecko trending: no coins")
	}
	return coins, nil
}
