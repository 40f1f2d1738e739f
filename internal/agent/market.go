package agent

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stanley20008love/lark-proxyss/internal/dataservice"
	"github.com/stanley20008love/lark-proxyss/internal/model"
)

// Market holds the responders backed by market data providers.
type Market struct {
	Data   dataservice.DataService
	Logger *zap.Logger
	now    func() time.Time
}

func NewMarket(data dataservice.DataService, logger *zap.Logger) *Market {
	return &Market{Data: data, Logger: logger, now: time.Now}
}

// Price returns a responder quoting a fixed crypto symbol.
func (m *Market) Price(symbol string) Responder {
	return func(ctx context.Context, _ model.Command) model.Reply {
		q, err := m.Data.GetCryptoPrice(ctx, symbol)
		if err != nil {
			return unavailable(m.Logger, "price", err)
		}
		return model.TextReply(q.CryptoText())
	}
}

// PriceOf quotes the crypto symbol given as the command argument.
func (m *Market) PriceOf(ctx context.Context, cmd model.Command) model.Reply {
	symbol := strings.TrimSpace(cmd.Args)
	if _, ok := dataservice.CryptoPair(symbol); !ok {
		return m.Quote(ctx, cmd)
	}
	return m.Price(symbol)(ctx, cmd)
}

func (m *Market) Snapshot(ctx context.Context, _ model.Command) model.Reply {
	indices, err := m.Data.GetMarketIndex(ctx)
	if err != nil {
		return unavailable(m.Logger, "snapshot", err)
	}
	return model.TextReply(dataservice.FormatSnapshot(indices, m.now()))
}

func (m *Market) Sentiment(ctx context.Context, cmd model.Command) model.Reply {
	market := "crypto"
	if a := strings.ToLower(strings.TrimSpace(cmd.Args)); a == "stock" || a == "us" || a == "美股" {
		market = "us_stock"
	}
	s, err := m.Data.GetMarketSentiment(ctx, market)
	if err != nil {
		return unavailable(m.Logger, "sentiment", err)
	}
	return model.TextReply(s.ToMarkdown())
}

func (m *Market) Trending(ctx context.Context, _ model.Command) model.Reply {
	coins, err := m.Data.GetTrending(ctx)
	if err != nil {
		return unavailable(m.Logger, "trending", err)
	}
	return model.TextReply(dataservice.FormatTrending(coins))
}

// News searches feeds for the command argument; a bare "news" reads the
// crypto feed.
func (m *Market) News(ctx context.Context, cmd model.Command) model.Reply {
	query := strings.TrimSpace(cmd.Args)
	if query == "" {
		query = "crypto"
	}
	items, err := m.Data.SearchMarketNews(ctx, query)
	if err != nil {
		return unavailable(m.Logger, "news", err)
	}
	return model.TextReply(dataservice.ToMarkdownNewsList(items))
}

func (m *Market) Quote(ctx context.Context, cmd model.Command) model.Reply {
	q, err := m.Data.GetMarketQuote(ctx, strings.TrimSpace(cmd.Args))
	if err != nil {
		return unavailable(m.Logger, "quote", err)
	}
	return model.TextReply(q.ToMarkdown())
}

func (m *Market) Technical(ctx context.Context, cmd model.Command) model.Reply {
	a, err := m.Data.GetSecurityAnalysis(ctx, strings.TrimSpace(cmd.Args))
	if err != nil {
		return unavailable(m.Logger, "technical", err)
	}
	return model.TextReply(a.ToMarkdown())
}
