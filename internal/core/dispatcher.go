package core

import (
	"context"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/stanley20008love/lark-proxyss/internal/model"
)

// seenEventTTL is how long an event id is remembered for deduplication.
const seenEventTTL = 10 * time.Minute

// Gateway delivers replies. feishu.Client implements it.
type Gateway interface {
	SendDirect(ctx context.Context, openID string, reply model.Reply) error
	ReplyInThread(ctx context.Context, messageID string, reply model.Reply) error
	SendToGroup(ctx context.Context, chatID string, reply model.Reply) error
}

type Dispatcher struct {
	Router  *Router
	Gateway Gateway
	Logger  *zap.Logger

	seen *ristretto.Cache
}

func NewDispatcher(router *Router, gateway Gateway, logger *zap.Logger) (*Dispatcher, error) {
	seen, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1e4,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errors.Wrap(err, "event dedup cache")
	}
	return &Dispatcher{
		Router:  router,
		Gateway: gateway,
		Logger:  logger,
		seen:    seen,
	}, nil
}

// Respond routes cmd and runs the responder. A panicking responder is
// logged and answered with nothing.
func (d *Dispatcher) Respond(ctx context.Context, cmd model.Command) (reply model.Reply, route string) {
	r, cmd := d.Router.Resolve(cmd)
	route = r.Name

	defer func() {
		if p := recover(); p != nil {
			d.Logger.Error("Responder panicked",
				zap.String("route", route),
				zap.Any("panic", p),
				zap.Stack("stack"),
			)
			reply = model.Reply{}
		}
	}()

	d.Logger.Info("Dispatching message",
		zap.String("route", route),
		zap.Stringer("tier", r.Tier),
		zap.String("text", cmd.Text),
	)
	return r.Handler(ctx, cmd), route
}

// HandleEvent answers one inbound event and delivers the reply on the
// channel the event came from. Failures are logged, never returned.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev *model.Event) {
	if ev == nil {
		return
	}
	if d.duplicate(ev.EventID) {
		d.Logger.Info("Skipping duplicate event", zap.String("event_id", ev.EventID))
		return
	}

	cmd := model.NewCommand(ev.Text)
	cmd.Session = ev.SessionKey()
	cmd.UserID = ev.SenderID

	reply, route := d.Respond(ctx, cmd)
	if reply.IsEmpty() {
		d.Logger.Warn("Empty reply, nothing to send", zap.String("route", route))
		return
	}

	method, dest := ev.Delivery()
	if err := d.deliver(ctx, method, dest, reply); err != nil {
		d.Logger.Error("Reply not delivered",
			zap.String("route", route),
			zap.String("chat_type", string(ev.ChatType)),
			zap.String("message_id", ev.MessageID),
			zap.Error(err),
		)
	}
}

// HandleCardAction runs the command behind a clicked card button.
//
// When the button names a refresh command, its card replaces the clicked
// one and a text answer becomes the toast. Otherwise a card answer replaces
// the clicked card and a text answer is delivered into the chat.
func (d *Dispatcher) HandleCardAction(ctx context.Context, act *model.CardAction) model.CardActionResult {
	var res model.CardActionResult
	if act == nil {
		return res
	}
	if d.duplicate(act.EventID) {
		d.Logger.Info("Skipping duplicate card action", zap.String("event_id", act.EventID))
		return res
	}

	reply, route := d.Respond(ctx, d.cardCommand(act, act.Command))

	if act.Refresh != "" {
		refreshed, _ := d.Respond(ctx, d.cardCommand(act, act.Refresh))
		if refreshed.Kind == model.ReplyCard && !refreshed.IsEmpty() {
			res.Card = refreshed.Card
		} else {
			d.Logger.Warn("Refresh command produced no card", zap.String("refresh", act.Refresh))
		}
	}

	switch {
	case reply.IsEmpty():
		d.Logger.Warn("Empty reply to card action", zap.String("route", route))
	case reply.Kind == model.ReplyCard && res.Card == nil:
		res.Card = reply.Card
	case reply.Kind == model.ReplyText && res.Card != nil:
		res.Toast = firstLine(reply.Text)
	default:
		method, dest := act.Delivery()
		if err := d.deliver(ctx, method, dest, reply); err != nil {
			d.Logger.Error("Card action reply not delivered",
				zap.String("route", route),
				zap.String("message_id", act.MessageID),
				zap.Error(err),
			)
		}
	}
	return res
}

func (d *Dispatcher) cardCommand(act *model.CardAction, text string) model.Command {
	cmd := model.NewCommand(text)
	cmd.Session = act.SessionKey()
	cmd.UserID = act.OperatorID
	return cmd
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	return line
}

func (d *Dispatcher) deliver(ctx context.Context, method model.Delivery, dest string, reply model.Reply) error {
	switch method {
	case model.DeliverThreadReply:
		return d.Gateway.ReplyInThread(ctx, dest, reply)
	case model.DeliverGroup:
		return d.Gateway.SendToGroup(ctx, dest, reply)
	case model.DeliverDirect:
		return d.Gateway.SendDirect(ctx, dest, reply)
	default:
		return errors.New("no delivery route")
	}
}

// duplicate reports whether id was seen recently and records it otherwise.
// Events without an id are never treated as duplicates.
func (d *Dispatcher) duplicate(id string) bool {
	if id == "" {
		return false
	}
	if _, ok := d.seen.Get(id); ok {
		return true
	}
	d.seen.SetWithTTL(id, struct{}{}, 1, seenEventTTL)
	d.seen.Wait()
	return false
}
