package feishu

import (
	"context"
	"strings"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkevent "github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher/callback"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/stanley20008love/lark-proxyss/config"
	"github.com/stanley20008love/lark-proxyss/internal/model"
)

// EventHandler consumes normalized events and card clicks.
// core.Dispatcher implements it.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *model.Event)
	HandleCardAction(ctx context.Context, action *model.CardAction) model.CardActionResult
}

// WSAdapter receives events over the SDK long connection instead of the
// HTTP webhook. Both paths feed the same EventHandler.
type WSAdapter struct {
	Config  config.FeishuConfig
	Handler EventHandler
	Logger  *zap.Logger
}

func NewWSAdapter(cfg config.FeishuConfig, handler EventHandler, logger *zap.Logger) *WSAdapter {
	return &WSAdapter{
		Config:  cfg,
		Handler: handler,
		Logger:  logger,
	}
}

// StartWS blocks while the long connection is up.
func (a *WSAdapter) StartWS(ctx context.Context) error {
	eventHandler := larkevent.NewEventDispatcher(a.Config.VerificationToken, a.Config.EncryptKey).
		OnP2MessageReceiveV1(a.handleMessage).
		OnP2CardActionTrigger(a.handleCardAction).
		OnP2MessageReadV1(func(ctx context.Context, event *larkim.P2MessageReadV1) error {
			return nil
		})

	cli := larkws.NewClient(a.Config.AppID, a.Config.AppSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	a.Logger.Info("Starting Feishu WebSocket client...")
	return cli.Start(ctx)
}

func (a *WSAdapter) handleMessage(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
	internal, ok := EventFromSDK(event)
	if !ok {
		return nil
	}

	a.Logger.Info("Received message", zap.String("text", internal.Text), zap.String("sender", internal.SenderID))

	// The SDK expects the callback to return quickly; replies go out on
	// their own goroutine.
	go a.Handler.HandleEvent(context.Background(), internal)
	return nil
}

// handleCardAction answers inline: Lark shows the toast and swaps in the
// returned card.
func (a *WSAdapter) handleCardAction(ctx context.Context, event *callback.CardActionTriggerEvent) (*callback.CardActionTriggerResponse, error) {
	act, err := CardActionFromSDK(event)
	if err != nil {
		a.Logger.Debug("Card action skipped", zap.Error(err))
		return &callback.CardActionTriggerResponse{}, nil
	}

	a.Logger.Info("Received card action", zap.String("command", act.Command), zap.String("operator", act.OperatorID))
	return CardActionResponse(a.Handler.HandleCardAction(ctx, act)), nil
}

// CardActionFromSDK applies the same rules as EventParser.ParseCardAction to
// an SDK-decoded callback.
func CardActionFromSDK(event *callback.CardActionTriggerEvent) (*model.CardAction, error) {
	if event == nil {
		return nil, errors.WithMessage(ErrMalformed, "nil callback")
	}
	var eventID string
	if event.EventV2Base != nil && event.EventV2Base.Header != nil {
		eventID = event.EventV2Base.Header.EventID
	}
	return cardAction(eventID, event.Event)
}

// CardActionResponse renders a result as the callback response body. An
// empty result renders as {}.
func CardActionResponse(res model.CardActionResult) *callback.CardActionTriggerResponse {
	resp := &callback.CardActionTriggerResponse{}
	if res.Toast != "" {
		resp.Toast = &callback.Toast{Type: "info", Content: res.Toast}
	}
	if res.Card != nil {
		resp.Card = &callback.Card{Type: "raw", Data: res.Card}
	}
	return resp
}

// EventFromSDK applies the same normalization rules as EventParser.Parse to
// an SDK-decoded event.
func EventFromSDK(event *larkim.P2MessageReceiveV1) (*model.Event, bool) {
	if event == nil || event.Event == nil || event.Event.Message == nil {
		return nil, false
	}
	msg := event.Event.Message
	if deref(msg.MessageType) != messageTypeText {
		return nil, false
	}

	var keys []string
	for _, m := range msg.Mentions {
		if m != nil && deref(m.Key) != "" {
			keys = append(keys, deref(m.Key))
		}
	}

	raw := decodeText(deref(msg.Content))
	text := StripMentions(raw, keys)
	if text == "" {
		return nil, false
	}

	chatType := model.ChatType(strings.TrimSpace(deref(msg.ChatType)))
	if chatType == "" {
		chatType = model.ChatTypeP2P
	}

	var senderID string
	if event.Event.Sender != nil && event.Event.Sender.SenderId != nil {
		senderID = deref(event.Event.Sender.SenderId.OpenId)
	}

	var eventID string
	if event.EventV2Base != nil && event.EventV2Base.Header != nil {
		eventID = event.EventV2Base.Header.EventID
	}

	return &model.Event{
		EventID:   eventID,
		EventType: EventTypeMessageReceive,
		Platform:  "feishu",
		ChatType:  chatType,
		MessageID: deref(msg.MessageId),
		ChatID:    deref(msg.ChatId),
		SenderID:  senderID,
		RawText:   raw,
		Text:      text,
		Mentions:  keys,
	}, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
