package dataservice

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

var assetIcons = map[string]string{
	"BTC": "🪙",
	"ETH": "💎",
	"SOL": "🌞",
}

// FormatMoney renders a dollar amount with thousands separators and two
// decimals, e.g. $97,000.00.
func FormatMoney(v float64) string {
	if v < 0 {
		return "-$" + humanize.FormatFloat("#,###.##", -v)
	}
	return "$" + humanize.FormatFloat("#,###.##", v)
}

func assetIcon(pair string) string {
	base := strings.TrimSuffix(pair, "USDT")
	if icon, ok := assetIcons[base]; ok {
		return icon
	}
	return "💰"
}

// CryptoText is the short price reply, e.g. "🪙 BTC/USDT\n💰 $97,000.00\n📍 Binance".
func (m *MarketQuote) CryptoText() string {
	base := strings.TrimSuffix(m.Symbol, "USDT")
	pair := m.Symbol
	if base != m.Symbol {
		pair = base + "/USDT"
	}
	text := fmt.Sprintf("%s %s\n💰 %s", assetIcon(m.Symbol), pair, FormatMoney(m.Price))
	if m.ChangePct != 0 {
		icon := "📈"
		if m.ChangePct < 0 {
			icon = "📉"
		}
		text += fmt.Sprintf("\n%s 24h: %+.2f%%", icon, m.ChangePct)
	}
	return text + "\n📍 " + m.Source
}

// ToMarkdown formats MarketQuote to markdown
func (m *MarketQuote) ToMarkdown() string {
	icon := "📈"
	if m.Change < 0 {
		icon = "📉"
	}
	tStr := m.UpdatedAt
	if t, err := time.Parse(time.RFC3339, m.UpdatedAt); err == nil {
		tStr = t.Format("2006-01-02 15:04:05")
	}

	chartLink := fmt.Sprintf("https://finance.yahoo.com/quote/%s/chart", m.Symbol)
	if strings.HasSuffix(strings.ToUpper(m.Symbol), "USDT") {
		chartLink = fmt.Sprintf("https://www.tradingview.com/chart/?symbol=BINANCE:%s", m.Symbol)
	}

	return fmt.Sprintf("📊 **%s 实时行情**\n-------------------\n💰 价格: %s\n%s 涨跌: %.2f (%.2f%%)\n⏰ 更新: %s\n📍 来源: %s\n🔗 [查看K线图表](%s)",
		m.Symbol, humanize.FormatFloat("#,###.##", m.Price), icon, m.Change, m.ChangePct, tStr, m.Source, chartLink)
}

// FormatSnapshot renders the multi-asset price board.
func FormatSnapshot(indices []IndexQuote, at time.Time) string {
	var sb strings.Builder
	sb.WriteString("📊 Crypto Prices\n\n")
	for _, idx := range indices {
		base := strings.TrimSuffix(idx.Name, "USDT")
		sb.WriteString(fmt.Sprintf("%s %s: %s (%+.2f%%)\n", assetIcon(idx.Name), base, FormatMoney(idx.Value), idx.ChangePct))
	}
	sb.WriteString(fmt.Sprintf("\n📍 Binance | Updated: %s", at.Format("15:04:05")))
	return sb.String()
}

// ToMarkdown formats the sentiment reading with a coarse gauge.
func (s *SentimentData) ToMarkdown() string {
	icon := "😐"
	switch {
	case s.Score <= 25:
		icon = "😱"
	case s.Score < 45:
		icon = "😟"
	case s.Score >= 75:
		icon = "🤑"
	case s.Score > 55:
		icon = "😊"
	}
	filled := int(s.Score / 10)
	if filled < 0 {
		filled = 0
	} else if filled > 10 {
		filled = 10
	}
	gauge := strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
	return fmt.Sprintf("%s 市场情绪 (%s)\n%s %.0f/100\n🏷️ %s\n%s", icon, s.Market, gauge, s.Score, s.Label, s.Description)
}

// FormatTrending lists up to seven trending coins.
func FormatTrending(coins []TrendingCoin) string {
	if len(coins) == 0 {
		return "🔥 暂无热门币种"
	}
	var sb strings.Builder
	sb.WriteString("🔥 Trending Coins\n\n")
	for i, c := range coins {
		if i >= 7 {
			break
		}
		line := fmt.Sprintf("%d. %s (%s)", i+1, c.Name, strings.ToUpper(c.Symbol))
		if c.Rank > 0 {
			line += fmt.Sprintf(" #%d", c.Rank)
		}
		if c.PriceUSD > 0 {
			line += " " + FormatMoney(c.PriceUSD)
		}
		sb.WriteString(line + "\n")
	}
	sb.WriteString("\n📍 CoinGecko")
	return sb.String()
}

// GenerateSparkline creates a unicode sparkline from data
func GenerateSparkline(data []float64) string {
	if len(data) == 0 {
		return ""
	}
	lo, hi := data[0], data[0]
	for _, v := range data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	rangeVal := hi - lo
	if rangeVal == 0 {
		return strings.Repeat("▅", len(data))
	}

	blocks := []string{"▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}
	var sb strings.Builder
	for _, v := range data {
		idx := int((v - lo) / rangeVal * float64(len(blocks)-1))
		sb.WriteString(blocks[idx])
	}
	return sb.String()
}

// ToMarkdown formats SecurityAnalysis to markdown
func (s *SecurityAnalysis) ToMarkdown() string {
	trendIcon := "➡️"
	if s.Trend == "bullish" {
		trendIcon = "🐂"
	} else if s.Trend == "bearish" {
		trendIcon = "🐻"
	}

	var closes []float64
	for _, k := range s.RecentKLines {
		closes = append(closes, k.Close)
	}
	sparkline := GenerateSparkline(closes)
	if sparkline != "" {
		sparkline = "\n📈 走势: " + sparkline
	}

	return fmt.Sprintf(`🔍 **%s 技术分析**
-------------------
当前价: %.2f | 趋势: %s %s%s
-------------------
• **均线系统**:
  MA20: %.2f
  MA60: %.2f
• **技术指标**:
  RSI(14): %.2f
  MACD: %.4f / Signal: %.4f / Hist: %.4f
  量比: %.2f
• **综合信号**: %s (%.0f%%)
• **关键点位**:
  压力位: %.2f
  支撑位: %.2f
-------------------
*注: 以上数据仅供参考，不构成投资建议*`,
		s.Symbol, s.CurrentPrice, trendIcon, s.Trend, sparkline,
		s.MA20, s.MA60,
		s.RSI, s.MACD, s.MACDSignal, s.MACDHist, s.VolumeRatio,
		s.Signal, s.SignalStrength*100,
		s.ResistanceLevel, s.SupportLevel)
}

// ToMarkdownNewsList formats a slice of NewsItem to markdown
func ToMarkdownNewsList(news []NewsItem) string {
	if len(news) == 0 {
		return "暂无相关新闻资讯。"
	}

	var sb strings.Builder
	sb.WriteString("📰 **最新市场资讯**\n-------------------\n")

	for i, n := range news {
		if i >= newsLimit {
			break
		}
		if n.Link != "" {
			sb.WriteString(fmt.Sprintf("• **[%s](%s)**\n", n.Title, n.Link))
		} else {
			sb.WriteString(fmt.Sprintf("• **%s**\n", n.Title))
		}
		sb.WriteString(fmt.Sprintf("  *来源: %s | 时间: %s*\n", n.Source, n.Time))
		if n.Summary != "" {
			sb.WriteString(fmt.Sprintf("  > %s\n", truncate(n.Summary, 100)))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// truncate cuts s to at most n runes, appending "..." when shortened.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
