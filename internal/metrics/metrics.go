// Package metrics holds the process-wide prometheus collectors. Failures that
// are absorbed close to their source (provider errors, dropped sends) are
// counted here so degraded upstreams stay visible.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "larkbot_webhook_requests_total",
		Help: "Inbound webhook requests by outcome.",
	}, []string{"outcome"})

	ProviderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "larkbot_provider_failures_total",
		Help: "Data provider calls that degraded to the unavailable reply.",
	}, []string{"provider"})

	OutboundSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "larkbot_outbound_sends_total",
		Help: "Outbound message sends by method and result.",
	}, []string{"method", "result"})

	TokenExchanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "larkbot_token_exchanges_total",
		Help: "Tenant access token exchanges by result.",
	}, []string{"result"})
)
