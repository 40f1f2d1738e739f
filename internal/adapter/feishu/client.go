package feishu

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/stanley20008love/lark-proxyss/config"
	"github.com/stanley20008love/lark-proxyss/internal/metrics"
	"github.com/stanley20008love/lark-proxyss/internal/model"
)

var (
	ErrNoToken   = errors.New("no tenant access token")
	ErrSendAPI   = errors.New("message api rejected send")
	ErrEmptyDest = errors.New("empty destination id")
)

type sendRequest struct {
	ReceiveID string `json:"receive_id,omitempty"`
	MsgType   string `json:"msg_type"`
	Content   string `json:"content"`
	UUID      string `json:"uuid,omitempty"`
}

type apiResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Client delivers replies through the Lark open platform REST API. Every
// send is attempted once; failures are logged and returned, never retried.
type Client struct {
	http    *resty.Client
	tokens  *TokenCache
	logger  *zap.Logger
	newUUID func() string
}

// NewClient builds the outbound gateway and its token cache on one resty
// client rooted at cfg.APIURL.
func NewClient(cfg config.FeishuConfig, logger *zap.Logger, opts ...TokenOption) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.APIURL).
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json; charset=utf-8")

	return &Client{
		http:    httpClient,
		tokens:  NewTokenCache(httpClient, cfg.AppID, cfg.AppSecret, logger, opts...),
		logger:  logger,
		newUUID: func() string { return uuid.NewString() },
	}
}

func (c *Client) Tokens() *TokenCache {
	return c.tokens
}

// SendDirect sends a message to a user by open_id.
func (c *Client) SendDirect(ctx context.Context, openID string, reply model.Reply) error {
	return c.create(ctx, "direct", "open_id", openID, reply)
}

// SendToGroup broadcasts a message to a chat by chat_id.
func (c *Client) SendToGroup(ctx context.Context, chatID string, reply model.Reply) error {
	return c.create(ctx, "group", "chat_id", chatID, reply)
}

// ReplyInThread replies to a specific message, shown inline in its chat.
func (c *Client) ReplyInThread(ctx context.Context, messageID string, reply model.Reply) error {
	if messageID == "" {
		return ErrEmptyDest
	}
	msgType, content, err := encodeContent(reply)
	if err != nil {
		return err
	}
	req := c.http.R().
		SetPathParam("message_id", messageID).
		SetBody(sendRequest{MsgType: msgType, Content: content, UUID: c.newUUID()})
	return c.post(ctx, "thread_reply", "/im/v1/messages/{message_id}/reply", req)
}

func (c *Client) create(ctx context.Context, method, idType, receiveID string, reply model.Reply) error {
	if receiveID == "" {
		return ErrEmptyDest
	}
	msgType, content, err := encodeContent(reply)
	if err != nil {
		return err
	}
	req := c.http.R().
		SetQueryParam("receive_id_type", idType).
		SetBody(sendRequest{ReceiveID: receiveID, MsgType: msgType, Content: content, UUID: c.newUUID()})
	return c.post(ctx, method, "/im/v1/messages", req)
}

func (c *Client) post(ctx context.Context, method, path string, req *resty.Request) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		metrics.OutboundSends.WithLabelValues(method, "no_token").Inc()
		c.logger.Warn("Skipping send without token", zap.String("method", method), zap.Error(err))
		return errors.WithMessage(ErrNoToken, err.Error())
	}

	var result apiResponse
	resp, err := req.
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&result).
		SetError(&result).
		Post(path)
	if err != nil {
		metrics.OutboundSends.WithLabelValues(method, "transport_error").Inc()
		c.logger.Error("Failed to send message", zap.String("method", method), zap.Error(err))
		return errors.Wrap(err, "send message")
	}
	if resp.IsError() || result.Code != 0 {
		metrics.OutboundSends.WithLabelValues(method, "api_error").Inc()
		c.logger.Error("Failed to send message (API error)",
			zap.String("method", method),
			zap.Int("status", resp.StatusCode()),
			zap.Int("code", result.Code),
			zap.String("msg", result.Msg))
		return errors.Wrapf(ErrSendAPI, "status %d code %d: %s", resp.StatusCode(), result.Code, result.Msg)
	}

	metrics.OutboundSends.WithLabelValues(method, "ok").Inc()
	c.logger.Info("Reply sent to Feishu", zap.String("method", method))
	return nil
}

// encodeContent marshals the reply into the msg_type/content pair the
// message API expects. Content is itself a JSON string.
func encodeContent(reply model.Reply) (string, string, error) {
	if reply.Kind == model.ReplyCard {
		b, err := json.Marshal(reply.Card)
		if err != nil {
			return "", "", errors.Wrap(err, "marshal card")
		}
		return larkim.MsgTypeInteractive, string(b), nil
	}
	b, err := json.Marshal(map[string]string{"text": reply.Text})
	if err != nil {
		return "", "", errors.Wrap(err, "marshal text")
	}
	return larkim.MsgTypeText, string(b), nil
}
