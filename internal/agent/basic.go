package agent

import (
	"context"
	"time"

	"github.com/stanley20008love/lark-proxyss/internal/model"
)

// Time replies with the current UTC clock.
func Time(now func() time.Time) Responder {
	if now == nil {
		now = time.Now
	}
	return func(context.Context, model.Command) model.Reply {
		return model.TextReply("🕐 UTC: " + now().UTC().Format("2006-01-02 15:04:05"))
	}
}

// Echo repeats the argument with its original casing.
func Echo(_ context.Context, cmd model.Command) model.Reply {
	return model.TextReply(cmd.Args)
}
