package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/stanley20008love/lark-proxyss/internal/metrics"
	"github.com/stanley20008love/lark-proxyss/internal/model"
)

// UnavailableText is the reply sent when a data provider fails.
const UnavailableText = "❌ 数据暂时不可用，请稍后重试 (data unavailable, please try again)"

// Agent answers free text that no command matched. An error or an empty
// reply means the caller should fall back to static help.
type Agent interface {
	Name() string
	Process(ctx context.Context, cmd model.Command) (model.Reply, error)
}

// Responder produces the reply for one routed command. Responders never
// fail; provider errors are turned into UnavailableText.
type Responder func(ctx context.Context, cmd model.Command) model.Reply

// Static returns a responder with a fixed text reply.
func Static(text string) Responder {
	return func(context.Context, model.Command) model.Reply {
		return model.TextReply(text)
	}
}

// unavailable logs and counts a provider failure and returns the fixed
// unavailable reply.
func unavailable(logger *zap.Logger, provider string, err error) model.Reply {
	logger.Warn("Provider failed", zap.String("provider", provider), zap.Error(err))
	metrics.ProviderFailures.WithLabelValues(provider).Inc()
	return model.TextReply(UnavailableText)
}
