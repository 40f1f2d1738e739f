package dataservice

import (
	"fmt"
	"regexp"
	"strings"
)

// cryptoAliases maps user spellings to Binance base assets.
var cryptoAliases = map[string]string{
	"比特币": "BTC", "btc": "BTC", "bitcoin": "BTC",
	"以太坊": "ETH", "eth": "ETH", "ethereum": "ETH",
	"sol": "SOL", "solana": "SOL",
	"bnb": "BNB", "币安币": "BNB",
	"xrp": "XRP", "瑞波币": "XRP",
	"doge": "DOGE", "狗狗币": "DOGE",
	"ada": "ADA", "ton": "TON", "trx": "TRX", "avax": "AVAX",
	"link": "LINK", "dot": "DOT", "ltc": "LTC", "pepe": "PEPE",
}

// stockAliases maps names to Yahoo symbols.
var stockAliases = map[string]string{
	"黄金": "GC=F", "gold": "GC=F",
	"白银": "SI=F", "silver": "SI=F",
	"原油": "CL=F", "oil": "CL=F", "wti": "CL=F",
	"布伦特": "BZ=F", "brent": "BZ=F",
	"天然气": "NG=F", "natgas": "NG=F",
	"铜": "HG=F", "copper": "HG=F",
	"大豆": "ZS=F", "soybean": "ZS=F",
	"纳指": "^IXIC", "nasdaq": "^IXIC",
	"标普": "^GSPC", "sp500": "^GSPC",
	"道指": "^DJI", "dow": "^DJI",
	"恒指": "^HSI", "hsi": "^HSI",
	"上证": "000001.SS", "shanghai": "000001.SS",
	"腾讯": "0700.HK", "tencent": "0700.HK",
	"阿里": "BABA", "alibaba": "BABA",
	"特斯拉": "TSLA", "tesla": "TSLA",
	"苹果": "AAPL", "apple": "AAPL", "appl": "AAPL",
	"英伟达": "NVDA", "nvidia": "NVDA",
	"微软": "MSFT", "microsoft": "MSFT",
	"谷歌": "GOOG", "google": "GOOG",
	"亚马逊": "AMZN", "amazon": "AMZN",
	"10年美债": "ZN=F", "10y_bond": "ZN=F",
	"欧元": "EURUSD=X", "eurusd": "EURUSD=X",
	"日元": "JPY=X", "usdjpy": "JPY=X",
	"人民币": "CNY=X", "usdcny": "CNY=X",
	"美元指数": "DX-Y.NYB", "dxy": "DX-Y.NYB",
}

var (
	aShareCode = regexp.MustCompile(`^\d{6}$`)
	hkCode     = regexp.MustCompile(`^\d{4}$`)
	tickerLike = regexp.MustCompile(`^[A-Z0-9\-\.=^]+$`)
)

// CryptoPair resolves a user symbol to a Binance USDT pair, e.g. "比特币",
// "btc" and "BTC-USDT" all become "BTCUSDT". ok is false when the symbol is
// not a known crypto asset and not already a USDT pair.
func CryptoPair(symbol string) (string, bool) {
	s := strings.TrimSpace(symbol)
	if base, ok := cryptoAliases[strings.ToLower(s)]; ok {
		return base + "USDT", true
	}
	up := strings.ToUpper(s)
	up = strings.NewReplacer("-", "", "/", "", "_", "").Replace(up)
	if strings.HasSuffix(up, "USDT") && len(up) > len("USDT") {
		return up, true
	}
	return "", false
}

// normalizeSymbol maps common names and bare exchange codes to Yahoo symbols.
func normalizeSymbol(symbol string) string {
	symbol = strings.TrimSpace(symbol)
	if val, ok := stockAliases[strings.ToLower(symbol)]; ok {
		return val
	}

	if aShareCode.MatchString(symbol) {
		switch symbol[0] {
		case '6':
			return symbol + ".SS"
		case '0', '3':
			return symbol + ".SZ"
		}
	}
	if hkCode.MatchString(symbol) {
		return fmt.Sprintf("%s.HK", symbol)
	}

	return strings.ToUpper(symbol)
}

// looksLikeTicker is false for names that need an online symbol search.
func looksLikeTicker(symbol string) bool {
	return tickerLike.MatchString(symbol) && len(symbol) <= 10
}
