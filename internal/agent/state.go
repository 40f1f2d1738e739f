package agent

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/stanley20008love/lark-proxyss/internal/dataservice"
	"github.com/stanley20008love/lark-proxyss/internal/model"
)

// PredictionMarket is a tracked yes/no market. Prices are placeholders.
type PredictionMarket struct {
	ID        string  `json:"id"`
	Question  string  `json:"question"`
	YesPrice  float64 `json:"yes_price"`
	NoPrice   float64 `json:"no_price"`
	Liquidity float64 `json:"liquidity"`
}

type MarketMakerConfig struct {
	Enabled   bool `json:"enabled"`
	SpreadBps int  `json:"spread_bps"`
}

type ArbitrageConfig struct {
	Enabled   bool    `json:"enabled"`
	MinProfit float64 `json:"min_profit"`
}

type RiskConfig struct {
	MaxPosition float64 `json:"max_position"`
	StopLoss    float64 `json:"stop_loss"`
}

type BotConfig struct {
	MarketMaker MarketMakerConfig `json:"market_maker"`
	Arbitrage   ArbitrageConfig   `json:"arbitrage"`
	Risk        RiskConfig        `json:"risk"`
}

type BotStats struct {
	Trades  int     `json:"trades"`
	PnL     float64 `json:"pnl"`
	WinRate float64 `json:"win_rate"`
}

// Dashboard is the status summary served at /api/status and on the panel card.
type Dashboard struct {
	Status         string `json:"status"`
	RiskLevel      string `json:"risk_level"`
	MarketsTracked int    `json:"markets_tracked"`
	Positions      int    `json:"positions"`
	TotalPnL       string `json:"total_pnl"`
	WinRate        string `json:"win_rate"`
	MarketMaker    string `json:"market_maker"`
	Arbitrage      string `json:"arbitrage"`
	LastUpdate     string `json:"last_update"`
}

// arbitrageThreshold is the minimum |yes+no-1| reported as an opportunity.
const arbitrageThreshold = 0.02

// BotState is the in-memory trading-bot panel: tracked markets, toggles
// and counters. None of it drives real orders.
type BotState struct {
	mu      sync.RWMutex
	markets []PredictionMarket
	config  BotConfig
	stats   BotStats
	running bool
	now     func() time.Time
}

func NewBotState() *BotState {
	return &BotState{
		markets: []PredictionMarket{
			{"btc_100k", "Will BTC reach $100k by March 2025?", 0.72, 0.28, 150000},
			{"eth_5k", "Will ETH exceed $5,000 by Q2 2025?", 0.45, 0.55, 80000},
			{"sol_200", "Will SOL break $200 in 2025?", 0.58, 0.42, 50000},
			{"trump_2024", "Trump wins 2024 election?", 0.52, 0.48, 200000},
			{"rate_cut", "Fed cuts rates in March?", 0.25, 0.75, 120000},
			{"btc_etf", "BTC ETF approved by SEC?", 0.85, 0.15, 300000},
			{"eth_etf", "ETH ETF approved in 2024?", 0.42, 0.58, 180000},
			{"sol_etf", "SOL ETF approved in 2025?", 0.15, 0.85, 90000},
		},
		config: BotConfig{
			MarketMaker: MarketMakerConfig{SpreadBps: 150},
			Arbitrage:   ArbitrageConfig{MinProfit: 0.01},
			Risk:        RiskConfig{MaxPosition: 100, StopLoss: 0.30},
		},
		stats:   BotStats{WinRate: 0.68},
		running: true,
		now:     time.Now,
	}
}

func onOff(enabled bool) string {
	if enabled {
		return "启用"
	}
	return "禁用"
}

func (b *BotState) Dashboard() Dashboard {
	b.mu.RLock()
	defer b.mu.RUnlock()

	status := "已停止"
	if b.running {
		status = "运行中"
	}
	return Dashboard{
		Status:         status,
		RiskLevel:      "low",
		MarketsTracked: len(b.markets),
		Positions:      0,
		TotalPnL:       fmt.Sprintf("$%.2f", b.stats.PnL),
		WinRate:        fmt.Sprintf("%.0f%%", b.stats.WinRate*100),
		MarketMaker:    onOff(b.config.MarketMaker.Enabled),
		Arbitrage:      onOff(b.config.Arbitrage.Enabled),
		LastUpdate:     b.now().Format("2006-01-02 15:04:05"),
	}
}

// Config returns a copy of the current toggles.
func (b *BotState) Config() BotConfig {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.config
}

func (b *BotState) Trades() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stats.Trades
}

func (b *BotState) market(id string) (PredictionMarket, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, m := range b.markets {
		if m.ID == id {
			return m, true
		}
	}
	return PredictionMarket{}, false
}

func (b *BotState) Markets(context.Context, model.Command) model.Reply {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var sb strings.Builder
	sb.WriteString("📊 Active Markets:\n")
	for i, m := range b.markets {
		if i >= 5 {
			break
		}
		sb.WriteString(fmt.Sprintf("\n• %s: %s... (%.0f%%)", m.ID, truncateRunes(m.Question, 30), m.YesPrice*100))
	}
	return model.TextReply(sb.String())
}

func (b *BotState) Arbitrage(context.Context, model.Command) model.Reply {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var lines []string
	for _, m := range b.markets {
		gap := math.Abs(m.YesPrice + m.NoPrice - 1.0)
		if gap <= arbitrageThreshold {
			continue
		}
		confidence := "中"
		if gap > 0.03 {
			confidence = "高"
		}
		lines = append(lines, fmt.Sprintf("• %s: %.2f%% (%s)", m.ID, gap*100, confidence))
		if len(lines) == 3 {
			break
		}
	}
	if len(lines) == 0 {
		return model.TextReply("💰 No arbitrage opportunities found")
	}
	return model.TextReply("💰 Arbitrage Opportunities:\n\n" + strings.Join(lines, "\n"))
}

func (b *BotState) Risk(context.Context, model.Command) model.Reply {
	b.mu.RLock()
	winRate := b.stats.WinRate
	b.mu.RUnlock()

	return model.TextReply(fmt.Sprintf(`🛡️ Risk Metrics:

💰 Portfolio: %s
📈 Unrealized PnL: %s
📉 Max Drawdown: 5.2%%
🎯 Win Rate: %.0f%%
⚠️ Risk Level: low`, dataservice.FormatMoney(10000), dataservice.FormatMoney(250.50), winRate*100))
}

func (b *BotState) Status(context.Context, model.Command) model.Reply {
	d := b.Dashboard()
	return model.TextReply(fmt.Sprintf(`🤖 Bot Status:

📊 Status: %s
⚠️ Risk: %s
📈 Markets: %d
💰 PnL: %s
🎯 Win Rate: %s
⚙️ 做市商: %s | 套利: %s`, d.Status, d.RiskLevel, d.MarketsTracked, d.TotalPnL, d.WinRate, d.MarketMaker, d.Arbitrage))
}

// Analyze reports canned indicator values for a tracked market.
func (b *BotState) Analyze(_ context.Context, cmd model.Command) model.Reply {
	id := strings.ToLower(strings.TrimSpace(cmd.Args))
	m, ok := b.market(id)
	if !ok {
		return model.TextReply("❌ Market not found")
	}

	macd, trend := "看跌", "下降趋势"
	if m.YesPrice > 0.5 {
		macd, trend = "看涨", "上升趋势"
	}
	recommendation := "观望"
	if m.YesPrice < 0.7 {
		recommendation = "买入 YES"
	}
	return model.TextReply(fmt.Sprintf(`🔬 Analysis: %s

💰 Price: %.1f%%
📊 RSI: 45.5
📈 MACD: %s
🎯 Trend: %s
💡 Recommendation: %s`, m.Question, m.YesPrice*100, macd, trend, recommendation))
}

// Trade records a simulated trade: trade <market> <side> <amount>.
func (b *BotState) Trade(_ context.Context, cmd model.Command) model.Reply {
	const usage = "❌ Usage: trade <market> <side> <amount>"
	parts := strings.Fields(cmd.Args)
	if len(parts) < 3 {
		return model.TextReply(usage)
	}
	amount, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || amount <= 0 {
		return model.TextReply(usage)
	}
	m, ok := b.market(strings.ToLower(parts[0]))
	if !ok {
		return model.TextReply("❌ Market not found")
	}
	side := strings.ToUpper(parts[1])

	b.mu.Lock()
	b.stats.Trades++
	b.mu.Unlock()

	return model.TextReply(fmt.Sprintf("✅ Trade Executed (模拟)\n\n📊 %s\n💱 %s %s\n💵 Price: %.1f%%\n🧾 tx_%d",
		m.Question, side, dataservice.FormatMoney(amount), m.YesPrice*100, b.now().Unix()))
}

// Backtest returns the canned backtest summary for a strategy name.
func (b *BotState) Backtest(_ context.Context, cmd model.Command) model.Reply {
	strategy := strings.TrimSpace(cmd.Args)
	if strategy == "" {
		strategy = "market_maker"
	}
	const capital = 10000.0
	return model.TextReply(fmt.Sprintf(`🧪 Backtest: %s (模拟)

💵 Initial: %s
💰 Final: %s
📈 Return: +25%%
🔁 Trades: 156
🎯 Win Rate: 68%%
📉 Max Drawdown: -8.5%%
📐 Sharpe: 1.85`, strategy, dataservice.FormatMoney(capital), dataservice.FormatMoney(capital*1.25)))
}

// Toggle returns a responder that switches market making or arbitrage.
func (b *BotState) Toggle(component string, enabled bool) Responder {
	return func(context.Context, model.Command) model.Reply {
		b.mu.Lock()
		defer b.mu.Unlock()
		switch component {
		case "market_maker":
			b.config.MarketMaker.Enabled = enabled
			return model.TextReply("📈 做市商已" + onOff(enabled))
		case "arbitrage":
			b.config.Arbitrage.Enabled = enabled
			return model.TextReply("💰 套利已" + onOff(enabled))
		default:
			return model.TextReply("❌ Unknown component: " + component)
		}
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
