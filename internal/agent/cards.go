package agent

import (
	"context"
	"fmt"

	"github.com/stanley20008love/lark-proxyss/internal/model"
)

// HelpText lists the commands the bot understands.
const HelpText = `🤖 Market Bot Commands:

📊 Crypto: btc, eth, sol, crypto, price <symbol>
📰 Info: sentiment, trending, news <query>, quote <ticker>, ta <symbol>
🎯 Markets: markets, arbitrage, risk, status
📈 Trading (模拟): trade <market> <side> <amount>, backtest <strategy>
⚙️ Config: mm on/off, arb on/off
🧪 Analysis: analyze <market>
🗂️ Cards: panel, menu
💡 Other: help, time, ping, echo <text>`

// FallbackText is sent when no command matched and the assistant could not
// answer.
const FallbackText = "🤖 抱歉，暂时无法回答。试试这些命令:\n\n" + HelpText

// Card is an interactive message card.
type Card struct {
	Config   CardConfig    `json:"config"`
	Header   CardHeader    `json:"header"`
	Elements []CardElement `json:"elements"`
}

type CardConfig struct {
	WideScreenMode bool `json:"wide_screen_mode"`
}

type CardHeader struct {
	Title    CardText `json:"title"`
	Template string   `json:"template"`
}

type CardText struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

type CardElement struct {
	Tag     string       `json:"tag"`
	Text    *CardText    `json:"text,omitempty"`
	Actions []CardButton `json:"actions,omitempty"`
}

type CardButton struct {
	Tag   string            `json:"tag"`
	Text  CardText          `json:"text"`
	Type  string            `json:"type"`
	Value map[string]string `json:"value"`
}

func markdown(content string) CardElement {
	return CardElement{Tag: "div", Text: &CardText{Tag: "lark_md", Content: content}}
}

func button(label, command, kind string) CardButton {
	return CardButton{
		Tag:   "button",
		Text:  CardText{Tag: "plain_text", Content: label},
		Type:  kind,
		Value: map[string]string{model.CardValueCommand: command},
	}
}

// panelButton runs command and then redraws the panel in place.
func panelButton(label, command, kind string) CardButton {
	b := button(label, command, kind)
	b.Value[model.CardValueRefresh] = "panel"
	return b
}

// HelpCard is the menu card.
func HelpCard(context.Context, model.Command) model.Reply {
	return model.CardReply(Card{
		Config: CardConfig{WideScreenMode: true},
		Header: CardHeader{
			Title:    CardText{Tag: "plain_text", Content: "🤖 Market Bot 菜单"},
			Template: "blue",
		},
		Elements: []CardElement{
			markdown(HelpText),
			{Tag: "hr"},
			{Tag: "action", Actions: []CardButton{
				button("BTC", "btc", "primary"),
				button("行情", "crypto", "default"),
				button("情绪", "sentiment", "default"),
				button("面板", "panel", "default"),
			}},
		},
	})
}

// Panel returns the dashboard card for the current bot state.
func (b *BotState) Panel(context.Context, model.Command) model.Reply {
	d := b.Dashboard()
	cfg := b.Config()

	template := "green"
	if !cfg.MarketMaker.Enabled && !cfg.Arbitrage.Enabled {
		template = "grey"
	}

	mmLabel, mmCmd := "启用做市商", "mm on"
	if cfg.MarketMaker.Enabled {
		mmLabel, mmCmd = "停用做市商", "mm off"
	}
	arbLabel, arbCmd := "启用套利", "arb on"
	if cfg.Arbitrage.Enabled {
		arbLabel, arbCmd = "停用套利", "arb off"
	}

	return model.CardReply(Card{
		Config: CardConfig{WideScreenMode: true},
		Header: CardHeader{
			Title:    CardText{Tag: "plain_text", Content: "📊 Bot 控制面板"},
			Template: template,
		},
		Elements: []CardElement{
			markdown(fmt.Sprintf("**状态**: %s\n**风险**: %s\n**市场**: %d\n**PnL**: %s\n**胜率**: %s",
				d.Status, d.RiskLevel, d.MarketsTracked, d.TotalPnL, d.WinRate)),
			{Tag: "hr"},
			markdown(fmt.Sprintf("**做市商**: %s (价差 %d bps)\n**套利**: %s (最小利润 %.0f%%)",
				d.MarketMaker, cfg.MarketMaker.SpreadBps, d.Arbitrage, cfg.Arbitrage.MinProfit*100)),
			{Tag: "action", Actions: []CardButton{
				panelButton(mmLabel, mmCmd, "primary"),
				panelButton(arbLabel, arbCmd, "primary"),
				button("风险", "risk", "default"),
			}},
			markdown("🕐 " + d.LastUpdate),
		},
	})
}
