package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stanley20008love/lark-proxyss/config"
	"github.com/stanley20008love/lark-proxyss/internal/adapter/feishu"
	"github.com/stanley20008love/lark-proxyss/internal/dataservice"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "check_health",
	Short: "Check the bot's upstream data sources and Lark credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, sub := range []*cobra.Command{sourcesCmd, quotesCmd, feedsCmd, sentimentCmd, tokenCmd} {
			if err := sub.RunE(sub, args); err != nil {
				return err
			}
		}
		fmt.Println("----------------------------------------")
		fmt.Println("✅ Health Check Completed.")
		return nil
	},
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Fetch BTC from every registered data source",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(envFile)
		if err != nil {
			return err
		}
		registry, err := dataservice.NewRegistryFromConfig(cfg.Data, zap.NewNop())
		if err != nil {
			return err
		}

		fmt.Println("\n[Data Sources] Checking availability...")
		for _, name := range registry.Names() {
			ds, _ := registry.Get(name)
			checkQuote(context.Background(), ds.GetCryptoPrice, "BTC via "+name, "BTC")
		}
		return nil
	},
}

var quotesCmd = &cobra.Command{
	Use:   "quotes",
	Short: "Check crypto prices, stock quotes and history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := liveService()
		if err != nil {
			return err
		}
		ctx := context.Background()

		fmt.Println("\n[Quotes] Checking availability...")
		checkQuote(ctx, ds.GetCryptoPrice, "Bitcoin (Binance)", "BTC")
		checkQuote(ctx, ds.GetCryptoPrice, "Ether (Binance)", "ETH")
		checkQuote(ctx, ds.GetMarketQuote, "AAPL (US)", "AAPL")
		checkQuote(ctx, ds.GetMarketQuote, "Tencent (HK)", "0700.HK")
		checkQuote(ctx, ds.GetMarketQuote, "Moutai (CN)", "600519")
		checkQuote(ctx, ds.GetMarketQuote, "Gold (Futures)", "GC=F")

		fmt.Println("\n[Historical Data] Checking availability...")
		checkHistory(ctx, ds, "BTC (1h x 100)", "BTC", "1h", 100)
		checkHistory(ctx, ds, "AAPL (1d x 30)", "AAPL", "1d", 30)
		return nil
	},
}

var feedsCmd = &cobra.Command{
	Use:   "feeds",
	Short: "Check the RSS news feeds",
	RunE: func(cmd *cobra.Command, args []string) error {
		news, err := dataservice.NewNewsService(10 * time.Second)
		if err != nil {
			return err
		}
		fmt.Println("\n[RSS Feeds] Checking availability...")
		for _, category := range []string{"us", "cn", "macro", "wsj_econ", "crypto", "bitcoin etf"} {
			start := time.Now()
			items, err := news.Search(context.Background(), category)
			switch {
			case err != nil:
				fmt.Printf("❌ FAIL: %-15s - Error: %v\n", category, err)
			case len(items) == 0:
				fmt.Printf("⚠️ WARN: %-15s - OK but 0 items\n", category)
			default:
				fmt.Printf("✅ PASS: %-15s - OK (%d items, took %v)\n", category, len(items), time.Since(start))
			}
		}
		return nil
	},
}

var sentimentCmd = &cobra.Command{
	Use:   "sentiment",
	Short: "Check Fear & Greed and trending coins",
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := liveService()
		if err != nil {
			return err
		}
		ctx := context.Background()

		fmt.Println("\n[Sentiment] Checking availability...")
		for _, market := range []string{"crypto", "us_stock"} {
			start := time.Now()
			s, err := ds.GetMarketSentiment(ctx, market)
			if err != nil {
				fmt.Printf("❌ FAIL: %-20s - Error: %v\n", market, err)
				continue
			}
			fmt.Printf("✅ PASS: %-20s - Score: %.0f (%s) (took %v)\n", market, s.Score, s.Label, time.Since(start))
		}

		coins, err := ds.GetTrending(ctx)
		if err != nil {
			fmt.Printf("❌ FAIL: %-20s - Error: %v\n", "trending", err)
		} else {
			fmt.Printf("✅ PASS: %-20s - %d coins\n", "trending", len(coins))
		}
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Exchange the Lark app credentials for a tenant access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(envFile)
		if err != nil {
			return err
		}
		fmt.Println("\n[Lark] Checking tenant access token...")
		if cfg.Feishu.AppID == "" {
			fmt.Println("⚠️ WARN: FEISHU_APP_ID not set, skipped")
			return nil
		}
		client := feishu.NewClient(cfg.Feishu, zap.NewNop())
		if _, err := client.Tokens().Token(context.Background()); err != nil {
			fmt.Printf("❌ FAIL: token exchange - Error: %v\n", err)
			return nil
		}
		fmt.Println("✅ PASS: token exchange")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file to read")
	rootCmd.AddCommand(sourcesCmd, quotesCmd, feedsCmd, sentimentCmd, tokenCmd)
}

func main() {
	fmt.Println("🔍 Starting Data Source Health Check...")
	fmt.Println("----------------------------------------")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func liveService() (*dataservice.LiveDataService, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	return dataservice.NewLiveDataService(cfg.Data, zap.NewNop())
}

type quoteFunc func(ctx context.Context, symbol string) (*dataservice.MarketQuote, error)

func checkQuote(ctx context.Context, fetch quoteFunc, name, symbol string) {
	start := time.Now()
	q, err := fetch(ctx, symbol)
	duration := time.Since(start)

	if err != nil {
		fmt.Printf("❌ FAIL: %-20s (%s) - Error: %v\n", name, symbol, err)
	} else {
		fmt.Printf("✅ PASS: %-20s (%s) - Price: %.2f Change: %.2f%% (took %v)\n", name, symbol, q.Price, q.ChangePct, duration)
	}
}

func checkHistory(ctx context.Context, ds dataservice.DataService, name, symbol, interval string, limit int) {
	start := time.Now()
	klines, err := ds.GetHistoricalQuotes(ctx, symbol, interval, limit)
	duration := time.Since(start)

	if err != nil {
		fmt.Printf("❌ FAIL: %-20s (%s) - Error: %v\n", name, symbol, err)
	} else {
		fmt.Printf("✅ PASS: %-20s (%s) - Got %d bars (took %v)\n", name, symbol, len(klines), duration)
		if len(klines) > 0 {
			last := klines[len(klines)-1]
			fmt.Printf("        Last Bar: %s Close: %.2f\n", last.Date, last.Close)
		}
	}
}
