package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stanley20008love/lark-proxyss/config"
	"github.com/stanley20008love/lark-proxyss/internal/adapter/feishu"
	"github.com/stanley20008love/lark-proxyss/internal/agent"
	"github.com/stanley20008love/lark-proxyss/internal/core"
	"github.com/stanley20008love/lark-proxyss/internal/dataservice"
	"github.com/stanley20008love/lark-proxyss/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type delivery struct {
	method, dest string
	reply        model.Reply
}

type recordingGateway struct {
	mu   sync.Mutex
	sent []delivery
}

func (g *recordingGateway) add(method, dest string, reply model.Reply) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, delivery{method, dest, reply})
	return nil
}

func (g *recordingGateway) SendDirect(_ context.Context, id string, r model.Reply) error {
	return g.add("direct", id, r)
}

func (g *recordingGateway) ReplyInThread(_ context.Context, id string, r model.Reply) error {
	return g.add("thread", id, r)
}

func (g *recordingGateway) SendToGroup(_ context.Context, id string, r model.Reply) error {
	return g.add("group", id, r)
}

func (g *recordingGateway) deliveries() []delivery {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]delivery(nil), g.sent...)
}

func newTestAdapter(t *testing.T, verificationToken string, extra ...core.Rule) (http.Handler, *recordingGateway) {
	t.Helper()
	logger := zap.NewNop()
	state := agent.NewBotState()
	market := agent.NewMarket(dataservice.NewMockDataService(), logger)

	rules := append(core.Commands(market, state, time.Now), extra...)
	router, err := core.NewRouter(rules, core.AssistantFallback(nil, logger))
	require.NoError(t, err)

	gw := &recordingGateway{}
	dispatcher, err := core.NewDispatcher(router, gw, logger)
	require.NoError(t, err)

	a := NewAdapter(
		config.ServerConfig{Port: "0", ServiceName: "lark-market-bot", ServiceVersion: "1.2.3"},
		feishu.NewEventParser(verificationToken),
		dispatcher, state, logger,
	)
	return a.Handler(), gw
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func messageEvent(eventID, chatType, msgType, content string) string {
	b, _ := json.Marshal(map[string]any{
		"schema": "2.0",
		"header": map[string]any{"event_id": eventID, "event_type": feishu.EventTypeMessageReceive, "token": "v-token"},
		"event": map[string]any{
			"sender": map[string]any{"sender_id": map[string]any{"open_id": "ou_1"}},
			"message": map[string]any{
				"message_id":   "om_1",
				"chat_id":      "oc_1",
				"chat_type":    chatType,
				"message_type": msgType,
				"content":      content,
			},
		},
	})
	return string(b)
}

func TestWebhookHandshake(t *testing.T) {
	h, gw := newTestAdapter(t, "")

	w := do(h, http.MethodPost, "/webhook", `{"type":"url_verification","challenge":"c-42","token":"x"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"challenge":"c-42"}`, w.Body.String())

	w = do(h, http.MethodPost, "/api", `{"type":"url_verification","challenge":12345}`)
	assert.JSONEq(t, `{"challenge":"12345"}`, w.Body.String())
	assert.Empty(t, gw.deliveries())
}

func TestWebhookDispatchesTextMessage(t *testing.T) {
	h, gw := newTestAdapter(t, "")

	w := do(h, http.MethodPost, "/webhook", messageEvent("ev_1", "group", "text", `{"text":"PING"}`))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"code":0}`, w.Body.String())

	sent := gw.deliveries()
	require.Len(t, sent, 1)
	assert.Equal(t, "thread", sent[0].method)
	assert.Equal(t, "om_1", sent[0].dest)
	assert.Equal(t, "pong (飞书连接正常)", sent[0].reply.Text)

	// A retried delivery of the same event is acknowledged but not answered.
	w = do(h, http.MethodPost, "/webhook", messageEvent("ev_1", "group", "text", `{"text":"PING"}`))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, gw.deliveries(), 1)
}

func TestWebhookAcknowledgesWithoutReplying(t *testing.T) {
	h, gw := newTestAdapter(t, "v-token")

	bodies := map[string]string{
		"image":        messageEvent("ev_2", "p2p", "image", `{"image_key":"img_1"}`),
		"malformed":    `{"header":`,
		"empty":        ``,
		"other event":  `{"schema":"2.0","header":{"event_type":"im.chat.member.bot.added_v1"}}`,
		"wrong token":  strings.Replace(messageEvent("ev_3", "p2p", "text", `{"text":"btc"}`), "v-token", "other", 1),
		"unknown chat": messageEvent("ev_4", "topic", "text", `{"text":"btc"}`),
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			w := do(h, http.MethodPost, "/webhook", body)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"code":0}`, w.Body.String())
		})
	}
	assert.Empty(t, gw.deliveries())
}

func TestWebhookRecoversFromPanics(t *testing.T) {
	boom := core.Rule{Name: "boom", Tier: core.TierKeyword, Literals: []string{"boom"}, Handler: func(context.Context, model.Command) model.Reply {
		panic("bug")
	}}
	h, gw := newTestAdapter(t, "", boom)

	w := do(h, http.MethodPost, "/webhook", messageEvent("ev_5", "p2p", "text", `{"text":"boom"}`))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"code":0}`, w.Body.String())
	assert.Empty(t, gw.deliveries())
}

func TestHealth(t *testing.T) {
	h, _ := newTestAdapter(t, "")
	for _, path := range []string{"/health", "/webhook", "/api"} {
		w := do(h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.JSONEq(t, `{"status":"ok","service":"lark-market-bot","version":"1.2.3"}`, w.Body.String(), path)
	}
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newTestAdapter(t, "")

	req := httptest.NewRequest(http.MethodOptions, "/webhook", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)

	// A bare OPTIONS without preflight headers still succeeds.
	w = do(h, http.MethodOptions, "/anything", "")
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://example.com")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestChatAPI(t *testing.T) {
	h, gw := newTestAdapter(t, "")

	w := do(h, http.MethodPost, "/api/v1/chat", `{"user_id":"u1","text":"echo Hello There"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Hello There", resp.Response)
	assert.Equal(t, "echo", resp.Route)
	assert.Nil(t, resp.Card)

	w = do(h, http.MethodPost, "/api/v1/chat", `{"user_id":"u1","text":"menu"}`)
	require.Equal(t, http.StatusOK, w.Code)
	resp = ChatResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "[card]", resp.Response)
	assert.NotNil(t, resp.Card)

	w = do(h, http.MethodPost, "/api/v1/chat", `{"user_id":"u1","text":"tell me something"}`)
	require.Equal(t, http.StatusOK, w.Code)
	resp = ChatResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, agent.FallbackText, resp.Response)
	assert.Equal(t, "fallback", resp.Route)

	w = do(h, http.MethodPost, "/api/v1/chat", `{"user_id":"u1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, gw.deliveries(), "the chat API answers inline")
}

func TestStatusAndMetrics(t *testing.T) {
	h, _ := newTestAdapter(t, "")

	w := do(h, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	var d agent.Dashboard
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Equal(t, 8, d.MarketsTracked)

	do(h, http.MethodPost, "/webhook", `{"type":"url_verification","challenge":"x"}`)
	w = do(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.Contains(w.Body.Bytes(), []byte("webhook_requests_total")))
}

func cardActionEvent(eventID, token string, value map[string]string) string {
	b, _ := json.Marshal(map[string]any{
		"schema": "2.0",
		"header": map[string]any{"event_id": eventID, "event_type": feishu.EventTypeCardAction, "token": token},
		"event": map[string]any{
			"operator": map[string]any{"open_id": "ou_1"},
			"token":    "c-update",
			"action":   map[string]any{"tag": "button", "value": value},
			"context":  map[string]any{"open_message_id": "om_card", "open_chat_id": "oc_1"},
		},
	})
	return string(b)
}

type cardActionBody struct {
	Toast *struct {
		Type    string `json:"type"`
		Content string `json:"content"`
	} `json:"toast"`
	Card *struct {
		Type string     `json:"type"`
		Data agent.Card `json:"data"`
	} `json:"card"`
}

func marketMakerStatus(t *testing.T, h http.Handler) string {
	t.Helper()
	w := do(h, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	var d agent.Dashboard
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	return d.MarketMaker
}

func TestWebhookPanelButtonTogglesAndRedraws(t *testing.T) {
	h, gw := newTestAdapter(t, "")
	require.Equal(t, "禁用", marketMakerStatus(t, h))

	w := do(h, http.MethodPost, "/webhook", cardActionEvent("ev_card_1", "", map[string]string{
		model.CardValueCommand: "mm on",
		model.CardValueRefresh: "panel",
	}))
	require.Equal(t, http.StatusOK, w.Code)

	var body cardActionBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Toast)
	assert.Equal(t, "📈 做市商已启用", body.Toast.Content)
	require.NotNil(t, body.Card)
	assert.Equal(t, "raw", body.Card.Type)
	assert.Equal(t, "green", body.Card.Data.Header.Template)
	actions := body.Card.Data.Elements[3].Actions
	require.NotEmpty(t, actions)
	assert.Equal(t, "mm off", actions[0].Value[model.CardValueCommand])

	assert.Equal(t, "启用", marketMakerStatus(t, h))
	assert.Empty(t, gw.deliveries(), "the panel is redrawn in place")

	// A retried callback is acknowledged without running the command again.
	w = do(h, http.MethodPost, "/webhook", cardActionEvent("ev_card_1", "", map[string]string{
		model.CardValueCommand: "mm off",
		model.CardValueRefresh: "panel",
	}))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{}`, w.Body.String())
	assert.Equal(t, "启用", marketMakerStatus(t, h))
}

func TestWebhookMenuButtons(t *testing.T) {
	h, gw := newTestAdapter(t, "")

	// A text answer goes into a thread on the card's message.
	w := do(h, http.MethodPost, "/webhook", cardActionEvent("ev_card_2", "", map[string]string{model.CardValueCommand: "ping"}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{}`, w.Body.String())
	sent := gw.deliveries()
	require.Len(t, sent, 1)
	assert.Equal(t, "thread", sent[0].method)
	assert.Equal(t, "om_card", sent[0].dest)
	assert.Equal(t, "pong (飞书连接正常)", sent[0].reply.Text)

	// A card answer replaces the menu.
	w = do(h, http.MethodPost, "/webhook", cardActionEvent("ev_card_3", "", map[string]string{model.CardValueCommand: "panel"}))
	require.Equal(t, http.StatusOK, w.Code)
	var body cardActionBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Nil(t, body.Toast)
	require.NotNil(t, body.Card)
	assert.Equal(t, "📊 Bot 控制面板", body.Card.Data.Header.Title.Content)
	assert.Len(t, gw.deliveries(), 1)
}

func TestWebhookRejectsBadCardActions(t *testing.T) {
	h, gw := newTestAdapter(t, "v-token")

	bodies := map[string]string{
		"wrong token":   cardActionEvent("ev_card_4", "other", map[string]string{model.CardValueCommand: "mm on"}),
		"no command":    cardActionEvent("ev_card_5", "v-token", map[string]string{"foo": "bar"}),
		"blank command": cardActionEvent("ev_card_6", "v-token", map[string]string{model.CardValueCommand: "  "}),
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			w := do(h, http.MethodPost, "/webhook", body)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"code":0}`, w.Body.String())
		})
	}
	assert.Equal(t, "禁用", marketMakerStatus(t, h))
	assert.Empty(t, gw.deliveries())
}
