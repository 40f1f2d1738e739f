package llm

import (
	"context"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"github.com/stanley20008love/lark-proxyss/config"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterProvider implements Provider using the OpenRouter API (OpenAI-compatible).
type OpenRouterProvider struct {
	client *openai.Client
	model  string
}

func NewOpenRouterProvider(cfg config.LLMConfig) *OpenRouterProvider {
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = openRouterBaseURL
	if cfg.APIURL != "" && cfg.APIURL != config.DefaultLLMAPIURL {
		oc.BaseURL = cfg.APIURL
	}
	model := cfg.ModelName
	if model == "" || model == config.DefaultLLMModel {
		model = "openai/gpt-4o-mini"
	}
	return &OpenRouterProvider{
		client: openai.NewClientWithConfig(oc),
		model:  model,
	}
}

func (p *OpenRouterProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	msg, err := p.ChatWithTools(ctx, messages, nil)
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

func (p *OpenRouterProvider) ChatWithTools(ctx context.Context, messages []Message, tools []Tool) (*Message, error) {
	req := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: toOpenAIMessages(messages),
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			},
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "openrouter")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("empty response from LLM")
	}

	out := resp.Choices[0].Message
	msg := &Message{Role: out.Role, Content: out.Content}
	for _, tc := range out.ToolCalls {
		var call ToolCall
		call.ID = tc.ID
		call.Type = string(tc.Type)
		call.Function.Name = tc.Function.Name
		call.Function.Arguments = tc.Function.Arguments
		msg.ToolCalls = append(msg.ToolCalls, call)
	}
	return msg, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		cm := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			cm.ToolCalls = append(cm.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolType(tc.Type),
				Function: openai.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		out = append(out, cm)
	}
	return out
}
