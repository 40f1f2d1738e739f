package llm

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/stanley20008love/lark-proxyss/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ErrNotConfigured is returned by NewProvider when no API key is set.
var ErrNotConfigured = errors.New("llm: no api key configured")

type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // For tool response messages
}

type ToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// Tool is a function the model may call, in OpenAI's tools format.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

func FunctionTool(name, description string, parameters map[string]any) Tool {
	return Tool{
		Type:     "function",
		Function: ToolFunction{Name: name, Description: description, Parameters: parameters},
	}
}

type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	ChatWithTools(ctx context.Context, messages []Message, tools []Tool) (*Message, error)
}

// NewProvider selects the backend for cfg.Provider. "openrouter" uses the
// go-openai client; everything else goes through the OpenAI-compatible
// REST provider at cfg.APIURL.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	switch strings.ToLower(cfg.Provider) {
	case "openrouter":
		return NewOpenRouterProvider(cfg), nil
	default:
		return NewOpenAIProvider(cfg), nil
	}
}
