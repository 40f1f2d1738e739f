package core

import (
	"time"

	"github.com/stanley20008love/lark-proxyss/internal/agent"
)

// Commands is the bot's rule table. Literals are case-insensitive and
// include Chinese synonyms.
func Commands(market *agent.Market, state *agent.BotState, now func() time.Time) []Rule {
	return []Rule{
		{Name: "help", Tier: TierHelp, Literals: []string{"help", "/help", "?", "？", "帮助", "h"}, Handler: agent.Static(agent.HelpText)},

		{Name: "btc", Tier: TierKeyword, Literals: []string{"btc", "比特币", "bitcoin"}, Handler: market.Price("BTC")},
		{Name: "eth", Tier: TierKeyword, Literals: []string{"eth", "以太坊", "ethereum"}, Handler: market.Price("ETH")},
		{Name: "sol", Tier: TierKeyword, Literals: []string{"sol", "solana"}, Handler: market.Price("SOL")},
		{Name: "snapshot", Tier: TierKeyword, Literals: []string{"crypto", "prices", "行情", "价格"}, Handler: market.Snapshot},
		{Name: "sentiment", Tier: TierKeyword, Literals: []string{"sentiment", "fng", "情绪", "恐慌指数"}, Handler: market.Sentiment},
		{Name: "trending", Tier: TierKeyword, Literals: []string{"trending", "hot", "热门"}, Handler: market.Trending},
		{Name: "news", Tier: TierKeyword, Literals: []string{"news", "新闻", "资讯"}, Handler: market.News},
		{Name: "markets", Tier: TierKeyword, Literals: []string{"markets", "市场"}, Handler: state.Markets},
		{Name: "arbitrage", Tier: TierKeyword, Literals: []string{"arbitrage", "套利"}, Handler: state.Arbitrage},
		{Name: "risk", Tier: TierKeyword, Literals: []string{"risk", "风控", "风险"}, Handler: state.Risk},
		{Name: "status", Tier: TierKeyword, Literals: []string{"status", "状态"}, Handler: state.Status},
		{Name: "backtest", Tier: TierKeyword, Literals: []string{"backtest", "回测"}, Handler: state.Backtest},
		{Name: "mm_on", Tier: TierKeyword, Literals: []string{"mm on", "做市 开"}, Handler: state.Toggle("market_maker", true)},
		{Name: "mm_off", Tier: TierKeyword, Literals: []string{"mm off", "做市 关"}, Handler: state.Toggle("market_maker", false)},
		{Name: "arb_on", Tier: TierKeyword, Literals: []string{"arb on", "套利 开"}, Handler: state.Toggle("arbitrage", true)},
		{Name: "arb_off", Tier: TierKeyword, Literals: []string{"arb off", "套利 关"}, Handler: state.Toggle("arbitrage", false)},
		{Name: "panel", Tier: TierKeyword, Literals: []string{"panel", "面板", "dashboard"}, Handler: state.Panel},
		{Name: "menu", Tier: TierKeyword, Literals: []string{"menu", "菜单"}, Handler: agent.HelpCard},
		{Name: "time", Tier: TierKeyword, Literals: []string{"time", "时间"}, Handler: agent.Time(now)},
		{Name: "ping", Tier: TierKeyword, Literals: []string{"ping"}, Handler: agent.Static("pong (飞书连接正常)")},
		{Name: "selftest", Tier: TierKeyword, Literals: []string{"测试", "test"}, Handler: agent.Static("收到测试消息，系统运行正常！")},

		{Name: "price", Tier: TierPrefix, Literals: []string{"price", "价格"}, Handler: market.PriceOf},
		{Name: "quote", Tier: TierPrefix, Literals: []string{"quote", "报价", "股价"}, Handler: market.Quote},
		{Name: "technical", Tier: TierPrefix, Literals: []string{"ta", "技术分析"}, Handler: market.Technical},
		{Name: "news_search", Tier: TierPrefix, Literals: []string{"news", "新闻", "search", "搜索"}, Handler: market.News},
		{Name: "sentiment_of", Tier: TierPrefix, Literals: []string{"sentiment", "情绪"}, Handler: market.Sentiment},
		{Name: "analyze", Tier: TierPrefix, Literals: []string{"analyze", "分析"}, Handler: state.Analyze},
		{Name: "trade", Tier: TierPrefix, Literals: []string{"trade", "交易"}, Handler: state.Trade},
		{Name: "backtest_of", Tier: TierPrefix, Literals: []string{"backtest", "回测"}, Handler: state.Backtest},
		{Name: "echo", Tier: TierPrefix, Literals: []string{"echo"}, Handler: agent.Echo},
	}
}
