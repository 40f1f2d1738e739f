package core

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/stanley20008love/lark-proxyss/internal/agent"
	"github.com/stanley20008love/lark-proxyss/internal/metrics"
	"github.com/stanley20008love/lark-proxyss/internal/model"
)

// Tier orders how rules are matched. Lower tiers win.
type Tier int

const (
	TierHelp Tier = iota
	TierKeyword
	TierPrefix
	TierFallback
)

func (t Tier) String() string {
	switch t {
	case TierHelp:
		return "help"
	case TierKeyword:
		return "keyword"
	case TierPrefix:
		return "prefix"
	default:
		return "fallback"
	}
}

// Rule maps literal commands to a responder. Help and keyword literals
// must equal the whole canonical text; prefix literals must be followed by
// a space and an argument.
type Rule struct {
	Name     string
	Tier     Tier
	Literals []string
	Handler  agent.Responder
}

// Route is the outcome of matching one canonical text.
type Route struct {
	Name    string
	Tier    Tier
	Literal string
	Args    string // canonical tail after Literal
	Handler agent.Responder
}

type prefixEntry struct {
	literal string
	rule    *Rule
}

// Router resolves canonical command text against a fixed rule table.
// Matching depends only on the literals, never on table order.
type Router struct {
	rules    []Rule
	exact    [2]map[string]*Rule // TierHelp, TierKeyword
	prefixes []prefixEntry       // longest literal first
	fallback agent.Responder
}

// NewRouter indexes rules. Literals are lower-cased and whitespace
// collapsed. A literal registered twice in one tier is an error.
func NewRouter(rules []Rule, fallback agent.Responder) (*Router, error) {
	r := &Router{
		rules:    make([]Rule, len(rules)),
		exact:    [2]map[string]*Rule{{}, {}},
		fallback: fallback,
	}
	copy(r.rules, rules)

	seenPrefix := map[string]bool{}
	for i := range r.rules {
		rule := &r.rules[i]
		if rule.Handler == nil {
			return nil, errors.Errorf("rule %q has no handler", rule.Name)
		}
		if len(rule.Literals) == 0 {
			return nil, errors.Errorf("rule %q has no literals", rule.Name)
		}
		for _, lit := range rule.Literals {
			lit = model.NewCommand(lit).Canonical
			if lit == "" {
				return nil, errors.Errorf("rule %q has an empty literal", rule.Name)
			}
			switch rule.Tier {
			case TierHelp, TierKeyword:
				if prev, ok := r.exact[rule.Tier][lit]; ok {
					return nil, errors.Errorf("literal %q claimed by %q and %q", lit, prev.Name, rule.Name)
				}
				r.exact[rule.Tier][lit] = rule
			case TierPrefix:
				if seenPrefix[lit] {
					return nil, errors.Errorf("prefix %q registered twice", lit)
				}
				seenPrefix[lit] = true
				r.prefixes = append(r.prefixes, prefixEntry{literal: lit, rule: rule})
			default:
				return nil, errors.Errorf("rule %q has invalid tier %d", rule.Name, rule.Tier)
			}
		}
	}

	sort.Slice(r.prefixes, func(i, j int) bool {
		a, b := r.prefixes[i].literal, r.prefixes[j].literal
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return a < b
	})
	return r, nil
}

// Rules returns a copy of the rule table.
func (r *Router) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Route matches canonical text: help, then keyword, then the longest
// prefix, then the fallback.
func (r *Router) Route(canonical string) Route {
	for _, tier := range []Tier{TierHelp, TierKeyword} {
		if rule, ok := r.exact[tier][canonical]; ok {
			return Route{Name: rule.Name, Tier: tier, Literal: canonical, Handler: rule.Handler}
		}
	}
	for _, p := range r.prefixes {
		if strings.HasPrefix(canonical, p.literal+" ") {
			return Route{
				Name:    p.rule.Name,
				Tier:    TierPrefix,
				Literal: p.literal,
				Args:    strings.TrimSpace(canonical[len(p.literal):]),
				Handler: p.rule.Handler,
			}
		}
	}
	return Route{Name: "fallback", Tier: TierFallback, Args: canonical, Handler: r.fallback}
}

// Resolve routes cmd and fills cmd.Args from the original-case text.
func (r *Router) Resolve(cmd model.Command) (Route, model.Command) {
	route := r.Route(cmd.Canonical)
	switch route.Tier {
	case TierPrefix:
		words := strings.Fields(cmd.Text)
		n := len(strings.Fields(route.Literal))
		if n <= len(words) {
			cmd.Args = strings.Join(words[n:], " ")
		}
	case TierFallback:
		cmd.Args = cmd.Text
	}
	return route, cmd
}

// AssistantFallback asks the assistant first and falls back to the static
// help text when it is missing, fails, or answers with nothing.
func AssistantFallback(a agent.Agent, logger *zap.Logger) agent.Responder {
	return func(ctx context.Context, cmd model.Command) model.Reply {
		if a == nil {
			return model.TextReply(agent.FallbackText)
		}
		reply, err := a.Process(ctx, cmd)
		if err != nil {
			if !errors.Is(err, agent.ErrNoLLM) {
				logger.Warn("Assistant failed", zap.String("agent", a.Name()), zap.Error(err))
				metrics.ProviderFailures.WithLabelValues("llm").Inc()
			}
			return model.TextReply(agent.FallbackText)
		}
		if reply.IsEmpty() {
			return model.TextReply(agent.FallbackText)
		}
		return reply
	}
}
