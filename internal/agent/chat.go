package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/stanley20008love/lark-proxyss/internal/dataservice"
	"github.com/stanley20008love/lark-proxyss/internal/llm"
	"github.com/stanley20008love/lark-proxyss/internal/model"
	"github.com/stanley20008love/lark-proxyss/internal/session"
)

var (
	ErrNoLLM           = errors.New("agent: llm not configured")
	ErrEmptyCompletion = errors.New("agent: llm returned empty text")
)

const systemPrompt = `# Role
You are a crypto and markets assistant inside a Lark chat.

# Rules
1. **No Hallucination**: If a tool fails, say "Data Unavailable". Never invent prices.
2. **Data First**: Always cite the data returned by tools.
3. **Brevity**: Answer in at most 8 lines. Bold key numbers.
4. **Language**: Match the user's language (mostly Chinese).
5. Add "NFA (Not Financial Advice)" to any trading opinion.
`

// chatTools are the functions the model may call.
var chatTools = []llm.Tool{
	llm.FunctionTool("get_crypto_price", "Get the latest 24h ticker for a crypto asset (e.g. BTC, ETH, SOL).", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"symbol": map[string]any{"type": "string", "description": "Asset symbol, e.g. BTC"},
		},
		"required": []string{"symbol"},
	}),
	llm.FunctionTool("get_market_sentiment", "Get the market Fear & Greed reading.", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"market": map[string]any{"type": "string", "enum": []string{"crypto", "us_stock"}},
		},
	}),
	llm.FunctionTool("search_market_news", "Search recent market news headlines.", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "Category (crypto, macro, us, cn) or free-text query"},
		},
		"required": []string{"query"},
	}),
}

// ChatAgent answers free text with the LLM, keeping per-chat history and
// letting the model call market data tools.
type ChatAgent struct {
	LLM     llm.Provider
	Session *session.Manager
	Data    dataservice.DataService
	Logger  *zap.Logger
}

func NewChatAgent(p llm.Provider, sessions *session.Manager, data dataservice.DataService, logger *zap.Logger) *ChatAgent {
	return &ChatAgent{
		LLM:     p,
		Session: sessions,
		Data:    data,
		Logger:  logger,
	}
}

func (a *ChatAgent) Name() string {
	return "ChatAgent"
}

func (a *ChatAgent) Process(ctx context.Context, cmd model.Command) (model.Reply, error) {
	if a.LLM == nil {
		return model.Reply{}, ErrNoLLM
	}

	history, err := a.Session.GetHistory(ctx, cmd.Session)
	if err != nil {
		a.Logger.Warn("Failed to get history", zap.String("session", cmd.Session), zap.Error(err))
	}

	messages := []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: cmd.Text})

	respMsg, err := a.LLM.ChatWithTools(ctx, messages, chatTools)
	if err != nil {
		return model.Reply{}, errors.Wrap(err, "llm first turn")
	}

	if len(respMsg.ToolCalls) > 0 {
		messages = append(messages, *respMsg)
		for _, call := range respMsg.ToolCalls {
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    a.runTool(ctx, call),
				ToolCallID: call.ID,
			})
		}

		respMsg, err = a.LLM.ChatWithTools(ctx, messages, nil)
		if err != nil {
			return model.Reply{}, errors.Wrap(err, "llm summary turn")
		}
	}

	content := strings.TrimSpace(respMsg.Content)
	if content == "" {
		return model.Reply{}, ErrEmptyCompletion
	}

	a.Session.Append(ctx, cmd.Session,
		llm.Message{Role: llm.RoleUser, Content: cmd.Text},
		llm.Message{Role: llm.RoleAssistant, Content: content},
	)
	return model.TextReply(content), nil
}

// runTool executes one tool call and returns its JSON result. Failures are
// reported to the model as {"error": ...}.
func (a *ChatAgent) runTool(ctx context.Context, call llm.ToolCall) string {
	var args struct {
		Symbol string `json:"symbol"`
		Market string `json:"market"`
		Query  string `json:"query"`
	}
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return toolError(errors.Wrap(err, "bad arguments"))
		}
	}

	var (
		result any
		err    error
	)
	switch call.Function.Name {
	case "get_crypto_price":
		result, err = a.Data.GetCryptoPrice(ctx, args.Symbol)
	case "get_market_sentiment":
		market := args.Market
		if market == "" {
			market = "crypto"
		}
		result, err = a.Data.GetMarketSentiment(ctx, market)
	case "search_market_news":
		result, err = a.Data.SearchMarketNews(ctx, args.Query)
	default:
		err = errors.Errorf("unknown tool %q", call.Function.Name)
	}
	if err != nil {
		a.Logger.Warn("Tool call failed", zap.String("tool", call.Function.Name), zap.Error(err))
		return toolError(err)
	}

	b, err := json.Marshal(result)
	if err != nil {
		return toolError(err)
	}
	return string(b)
}

func toolError(err error) string {
	b, _ := json.Marshal(map[string]string{"error": "Data Unavailable: " + err.Error()})
	return string(b)
}
