package llm

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/stanley20008love/lark-proxyss/config"
)

// OpenAIProvider speaks the chat completions API of any OpenAI-compatible
// endpoint (NVIDIA, DeepSeek, OpenAI).
type OpenAIProvider struct {
	client *resty.Client
	config config.LLMConfig
}

type openAIRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Tools    []Tool    `json:"tools,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type openAIError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func NewOpenAIProvider(cfg config.LLMConfig) *OpenAIProvider {
	return &OpenAIProvider{
		client: resty.New().
			SetBaseURL(strings.TrimSuffix(cfg.APIURL, "/")).
			SetTimeout(30 * time.Second),
		config: cfg,
	}
}

func (p *OpenAIProvider) model() string {
	if p.config.ModelName != "" {
		return p.config.ModelName
	}
	switch p.config.Provider {
	case "deepseek":
		return "deepseek-chat"
	case "openai":
		return "gpt-3.5-turbo"
	default:
		return "meta/llama-3.1-70b-instruct"
	}
}

func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	respMsg, err := p.ChatWithTools(ctx, messages, nil)
	if err != nil {
		return "", err
	}
	return respMsg.Content, nil
}

func (p *OpenAIProvider) ChatWithTools(ctx context.Context, messages []Message, tools []Tool) (*Message, error) {
	reqBody := openAIRequest{
		Model:    p.model(),
		Messages: messages,
		Tools:    tools,
	}

	var (
		respBody openAIResponse
		errBody  openAIError
	)
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(p.config.APIKey).
		SetBody(reqBody).
		SetResult(&respBody).
		SetError(&errBody).
		Post("/chat/completions")
	if err != nil {
		return nil, errors.Wrap(err, "llm request")
	}

	if resp.IsError() {
		if errBody.Error.Message != "" {
			return nil, errors.Errorf("LLM API error %d: %s", resp.StatusCode(), errBody.Error.Message)
		}
		return nil, errors.Errorf("LLM API error %d: %s", resp.StatusCode(), resp.String())
	}

	if len(respBody.Choices) == 0 {
		return nil, errors.New("empty response from LLM")
	}

	return &respBody.Choices[0].Message, nil
}
