package feishu

import (
	"context"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/stanley20008love/lark-proxyss/internal/metrics"
)

const (
	// Lifetime assumed when the exchange response omits "expire".
	defaultTokenLifetime = 7200 * time.Second
	// TokenSafetyMargin is subtracted from the declared lifetime so a token
	// is never handed out right before the platform expires it.
	TokenSafetyMargin = 200 * time.Second
)

var ErrTokenRejected = errors.New("tenant access token rejected")

type tokenResponse struct {
	Code              int    `json:"code"`
	Msg               string `json:"msg"`
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int    `json:"expire"` // seconds
}

// TokenCache holds one tenant access token and refreshes it on demand.
// Concurrent callers that all miss will each run an exchange; the last one
// to finish wins.
type TokenCache struct {
	client    *resty.Client
	appID     string
	appSecret string
	logger    *zap.Logger
	now       func() time.Time

	mu        sync.Mutex
	value     string
	expiresAt time.Time
}

type TokenOption func(*TokenCache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) TokenOption {
	return func(c *TokenCache) { c.now = now }
}

func NewTokenCache(client *resty.Client, appID, appSecret string, logger *zap.Logger, opts ...TokenOption) *TokenCache {
	c := &TokenCache{
		client:    client,
		appID:     appID,
		appSecret: appSecret,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the cached token while it is valid, otherwise exchanges the
// app credentials for a new one. On failure the previously cached token is
// left as it was and an error is returned.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	now := c.now()

	c.mu.Lock()
	if c.value != "" && now.Before(c.expiresAt) {
		token := c.value
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	var body tokenResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"app_id":     c.appID,
			"app_secret": c.appSecret,
		}).
		SetResult(&body).
		SetError(&body).
		Post("/auth/v3/tenant_access_token/internal")
	if err != nil {
		metrics.TokenExchanges.WithLabelValues("transport_error").Inc()
		c.logger.Error("Token exchange failed", zap.Error(err))
		return "", errors.Wrap(err, "token exchange")
	}
	if resp.IsError() || body.Code != 0 || body.TenantAccessToken == "" {
		metrics.TokenExchanges.WithLabelValues("rejected").Inc()
		c.logger.Error("Token exchange rejected",
			zap.Int("status", resp.StatusCode()),
			zap.Int("code", body.Code),
			zap.String("msg", body.Msg))
		return "", errors.Wrapf(ErrTokenRejected, "status %d code %d: %s", resp.StatusCode(), body.Code, body.Msg)
	}

	lifetime := time.Duration(body.Expire) * time.Second
	if lifetime <= 0 {
		lifetime = defaultTokenLifetime
	}

	// Short-lived tokens keep at least half their lifetime.
	margin := min(TokenSafetyMargin, lifetime/2)

	c.mu.Lock()
	c.value = body.TenantAccessToken
	c.expiresAt = now.Add(lifetime - margin)
	c.mu.Unlock()

	metrics.TokenExchanges.WithLabelValues("ok").Inc()
	c.logger.Debug("Tenant access token refreshed", zap.Duration("lifetime", lifetime))
	return body.TenantAccessToken, nil
}
