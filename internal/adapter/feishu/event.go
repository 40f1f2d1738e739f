package feishu

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher/callback"
	"github.com/pkg/errors"

	"github.com/stanley20008love/lark-proxyss/internal/model"
)

const (
	EventTypeMessageReceive = "im.message.receive_v1"
	EventTypeCardAction     = "card.action.trigger"
	TypeURLVerification     = "url_verification"
	messageTypeText         = "text"
)

var (
	ErrMalformed          = errors.New("malformed event payload")
	ErrNotMessageEvent    = errors.New("not a message receive event")
	ErrNotCardAction      = errors.New("not a card action callback")
	ErrUnsupportedMessage = errors.New("unsupported message type")
	ErrEmptyText          = errors.New("empty message text")
	ErrTokenMismatch      = errors.New("verification token mismatch")
)

// envelope is the v2 event callback schema, plus the v1 handshake fields.
type envelope struct {
	Schema    string          `json:"schema"`
	Type      string          `json:"type"`
	Token     string          `json:"token"`
	Challenge json.RawMessage `json:"challenge"`
	Header    *eventHeader    `json:"header"`
	Event     *messageEvent   `json:"event"`
}

type eventHeader struct {
	EventID    string `json:"event_id"`
	EventType  string `json:"event_type"`
	CreateTime string `json:"create_time"`
	Token      string `json:"token"`
	AppID      string `json:"app_id"`
	TenantKey  string `json:"tenant_key"`
}

type messageEvent struct {
	Sender  *eventSender  `json:"sender"`
	Message *eventMessage `json:"message"`
}

type eventSender struct {
	SenderID struct {
		OpenID  string `json:"open_id"`
		UserID  string `json:"user_id"`
		UnionID string `json:"union_id"`
	} `json:"sender_id"`
	SenderType string `json:"sender_type"`
}

type eventMessage struct {
	MessageID   string         `json:"message_id"`
	RootID      string         `json:"root_id"`
	ChatID      string         `json:"chat_id"`
	ChatType    string         `json:"chat_type"`
	MessageType string         `json:"message_type"`
	Content     string         `json:"content"`
	Mentions    []eventMention `json:"mentions"`
}

type eventMention struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// cardEnvelope is the v2 card.action.trigger callback.
type cardEnvelope struct {
	Schema string                             `json:"schema"`
	Header *eventHeader                       `json:"header"`
	Event  *callback.CardActionTriggerRequest `json:"event"`
}

var validate = validator.New()

// Handshake reports whether body is a url_verification request and, if so,
// the challenge rendered as a string (numbers keep their literal form,
// null or missing becomes "").
func Handshake(body []byte) (string, bool) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", false
	}
	if env.Type != TypeURLVerification {
		return "", false
	}
	return challengeString(env.Challenge), true
}

func challengeString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// EventParser turns webhook bodies into validated model.Events and
// model.CardActions.
type EventParser struct {
	verificationToken string
}

// NewEventParser returns a parser. When verificationToken is non-empty,
// events whose header token differs are rejected.
func NewEventParser(verificationToken string) *EventParser {
	return &EventParser{verificationToken: verificationToken}
}

// Parse decodes a message receive event. Any error means there is nothing
// to reply to.
func (p *EventParser) Parse(body []byte) (*model.Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.WithMessage(ErrMalformed, err.Error())
	}
	if env.Header == nil || env.Header.EventType != EventTypeMessageReceive {
		return nil, ErrNotMessageEvent
	}
	if p.verificationToken != "" && env.Header.Token != p.verificationToken {
		return nil, ErrTokenMismatch
	}
	if env.Event == nil || env.Event.Message == nil {
		return nil, errors.WithMessage(ErrMalformed, "missing message")
	}

	msg := env.Event.Message
	if msg.MessageType != messageTypeText {
		return nil, errors.WithMessage(ErrUnsupportedMessage, msg.MessageType)
	}

	keys := make([]string, 0, len(msg.Mentions))
	for _, m := range msg.Mentions {
		if m.Key != "" {
			keys = append(keys, m.Key)
		}
	}

	raw := decodeText(msg.Content)
	text := StripMentions(raw, keys)
	if text == "" {
		return nil, ErrEmptyText
	}

	chatType := model.ChatType(msg.ChatType)
	if chatType == "" {
		chatType = model.ChatTypeP2P
	}

	var senderID string
	if env.Event.Sender != nil {
		senderID = env.Event.Sender.SenderID.OpenID
	}

	event := &model.Event{
		EventID:   env.Header.EventID,
		EventType: env.Header.EventType,
		Platform:  "feishu",
		ChatType:  chatType,
		MessageID: msg.MessageID,
		ChatID:    msg.ChatID,
		SenderID:  senderID,
		RawText:   raw,
		Text:      text,
		Mentions:  keys,
	}
	if err := validate.Struct(event); err != nil {
		return nil, errors.WithMessage(ErrMalformed, err.Error())
	}
	return event, nil
}

// ParseCardAction decodes a card button click. ErrNotCardAction means the
// body is some other event and may still be a message.
func (p *EventParser) ParseCardAction(body []byte) (*model.CardAction, error) {
	var env cardEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.WithMessage(ErrMalformed, err.Error())
	}
	if env.Header == nil || env.Header.EventType != EventTypeCardAction {
		return nil, ErrNotCardAction
	}
	if p.verificationToken != "" && env.Header.Token != p.verificationToken {
		return nil, ErrTokenMismatch
	}
	return cardAction(env.Header.EventID, env.Event)
}

func cardAction(eventID string, req *callback.CardActionTriggerRequest) (*model.CardAction, error) {
	if req == nil || req.Action == nil {
		return nil, errors.WithMessage(ErrMalformed, "missing action")
	}
	act := &model.CardAction{
		EventID:  eventID,
		Platform: "feishu",
		Command:  strings.TrimSpace(valueString(req.Action.Value, model.CardValueCommand)),
		Refresh:  strings.TrimSpace(valueString(req.Action.Value, model.CardValueRefresh)),
	}
	if act.Command == "" {
		return nil, ErrEmptyText
	}
	if req.Operator != nil {
		act.OperatorID = req.Operator.OpenID
	}
	if req.Context != nil {
		act.MessageID = req.Context.OpenMessageID
		act.ChatID = req.Context.OpenChatID
	}
	if err := validate.Struct(act); err != nil {
		return nil, errors.WithMessage(ErrMalformed, err.Error())
	}
	return act, nil
}

func valueString(value map[string]interface{}, key string) string {
	s, _ := value[key].(string)
	return s
}

// decodeText extracts "text" from the JSON content string, falling back to
// the raw content when it is not JSON.
func decodeText(content string) string {
	var c struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &c); err != nil {
		return content
	}
	return c.Text
}

// StripMentions removes every occurrence of each mention key and trims the
// result.
func StripMentions(text string, keys []string) string {
	for _, k := range keys {
		if k == "" {
			continue
		}
		text = strings.ReplaceAll(text, k, "")
	}
	return strings.TrimSpace(text)
}
