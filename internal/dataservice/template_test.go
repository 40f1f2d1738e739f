package dataservice

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$97,000.00", FormatMoney(97000))
	assert.Equal(t, "$3,400.50", FormatMoney(3400.5))
	assert.Equal(t, "$0.50", FormatMoney(0.5))
	assert.Equal(t, "-$1,234.57", FormatMoney(-1234.567))
}

func TestCryptoTextWithoutChange(t *testing.T) {
	q := &MarketQuote{Symbol: "SOLUSDT", Price: 190, Source: "Mock"}
	assert.Equal(t, "🌞 SOL/USDT\n💰 $190.00\n📍 Mock", q.CryptoText())

	q = &MarketQuote{Symbol: "DOGEUSDT", Price: 0.25, ChangePct: -3.2, Source: "Binance"}
	assert.Equal(t, "💰 DOGE/USDT\n💰 $0.25\n📉 24h: -3.20%\n📍 Binance", q.CryptoText())
}

func TestSentimentMarkdownGauge(t *testing.T) {
	text := (&SentimentData{Market: "crypto", Score: 72, Label: "Greed", Description: "d"}).ToMarkdown()
	assert.Contains(t, text, "😊")
	assert.Contains(t, text, "███████░░░ 72/100")

	text = (&SentimentData{Market: "crypto", Score: 10, Label: "Extreme Fear"}).ToMarkdown()
	assert.True(t, strings.HasPrefix(text, "😱"))
}

func TestGenerateSparkline(t *testing.T) {
	assert.Empty(t, GenerateSparkline(nil))
	assert.Equal(t, "▅▅▅", GenerateSparkline([]float64{2, 2, 2}))
	assert.Equal(t, "▁▄█", GenerateSparkline([]float64{0, 0.5, 1}))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ab...", truncate("abc", 2))
	assert.Equal(t, "比特...", truncate("比特币", 2))
}

func TestFormatTrendingEmpty(t *testing.T) {
	assert.Equal(t, "🔥 暂无热门币种", FormatTrending(nil))
}
