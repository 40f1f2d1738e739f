package feishu

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stanley20008love/lark-proxyss/config"
	"github.com/stanley20008love/lark-proxyss/internal/model"
)

type recordedSend struct {
	Path   string
	Query  string
	Auth   string
	Body   sendRequest
	Method string
}

// fakeLark serves the token and message endpoints and records sends.
type fakeLark struct {
	mu        sync.Mutex
	sends     []recordedSend
	tokenCode int
	sendCode  int
}

func (f *fakeLark) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/auth/v3/tenant_access_token/internal" {
			if f.tokenCode != 0 {
				_ = json.NewEncoder(w).Encode(map[string]any{"code": f.tokenCode, "msg": "app not found"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"code": 0, "tenant_access_token": "t-abc", "expire": 7200})
			return
		}

		var body sendRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.sends = append(f.sends, recordedSend{
			Path:   r.URL.Path,
			Query:  r.URL.Query().Get("receive_id_type"),
			Auth:   r.Header.Get("Authorization"),
			Body:   body,
			Method: r.Method,
		})
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"code": f.sendCode, "msg": "ok"})
	})
}

func (f *fakeLark) recorded() []recordedSend {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedSend(nil), f.sends...)
}

func newTestClient(t *testing.T, f *fakeLark) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(config.FeishuConfig{AppID: "cli_app", AppSecret: "secret", APIURL: srv.URL}, zap.NewNop())
}

func TestSendDirect(t *testing.T) {
	f := &fakeLark{}
	c := newTestClient(t, f)

	require.NoError(t, c.SendDirect(context.Background(), "ou_123", model.TextReply("hello")))

	sends := f.recorded()
	require.Len(t, sends, 1)
	assert.Equal(t, "/im/v1/messages", sends[0].Path)
	assert.Equal(t, "open_id", sends[0].Query)
	assert.Equal(t, "Bearer t-abc", sends[0].Auth)
	assert.Equal(t, "ou_123", sends[0].Body.ReceiveID)
	assert.Equal(t, "text", sends[0].Body.MsgType)
	assert.JSONEq(t, `{"text":"hello"}`, sends[0].Body.Content)
	assert.NotEmpty(t, sends[0].Body.UUID)
}

func TestSendToGroupAndThreadReply(t *testing.T) {
	f := &fakeLark{}
	c := newTestClient(t, f)
	ctx := context.Background()

	require.NoError(t, c.SendToGroup(ctx, "oc_group", model.TextReply("broadcast")))
	require.NoError(t, c.ReplyInThread(ctx, "om_msg", model.CardReply(map[string]any{"header": map[string]any{"template": "blue"}})))

	sends := f.recorded()
	require.Len(t, sends, 2)

	assert.Equal(t, "/im/v1/messages", sends[0].Path)
	assert.Equal(t, "chat_id", sends[0].Query)
	assert.Equal(t, "oc_group", sends[0].Body.ReceiveID)

	assert.Equal(t, "/im/v1/messages/om_msg/reply", sends[1].Path)
	assert.Empty(t, sends[1].Body.ReceiveID)
	assert.Equal(t, "interactive", sends[1].Body.MsgType)
	assert.JSONEq(t, `{"header":{"template":"blue"}}`, sends[1].Body.Content)

	assert.NotEqual(t, sends[0].Body.UUID, sends[1].Body.UUID)
}

func TestSendWithoutTokenMakesNoCall(t *testing.T) {
	f := &fakeLark{tokenCode: 10003}
	c := newTestClient(t, f)

	err := c.SendDirect(context.Background(), "ou_123", model.TextReply("hello"))
	assert.ErrorIs(t, err, ErrNoToken)
	assert.Empty(t, f.recorded())
}

func TestSendAPIRejection(t *testing.T) {
	f := &fakeLark{sendCode: 230001}
	c := newTestClient(t, f)

	err := c.SendDirect(context.Background(), "ou_123", model.TextReply("hello"))
	assert.ErrorIs(t, err, ErrSendAPI)
	assert.Len(t, f.recorded(), 1, "a rejected send is not retried")
}

func TestSendEmptyDestination(t *testing.T) {
	f := &fakeLark{}
	c := newTestClient(t, f)

	assert.ErrorIs(t, c.SendDirect(context.Background(), "", model.TextReply("x")), ErrEmptyDest)
	assert.ErrorIs(t, c.ReplyInThread(context.Background(), "", model.TextReply("x")), ErrEmptyDest)
	assert.Empty(t, f.recorded())
}
