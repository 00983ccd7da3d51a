// Package observability wires tracing and metrics for the service. This
// file registers the business-level Prometheus collectors; HTTP traffic
// metrics live in the transport middleware.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// EntriesSent counts chat entries persisted, by entry type.
	EntriesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_entries_sent_total",
			Help: "Total number of chat entries successfully persisted.",
		},
		[]string{"type"},
	)

	// TokensDebited sums tokens debited from balances, by transaction kind.
	TokensDebited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balance_tokens_debited_total",
			Help: "Total tokens debited from account balances.",
		},
		[]string{"kind"},
	)

	// TokensCredited sums tokens credited to balances.
	TokensCredited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "balance_tokens_credited_total",
			Help: "Total tokens credited to account balances.",
		},
	)

	// EventsDropped counts bus events dropped because a subscriber buffer
	// was full, by event type.
	EventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_dropped_total",
			Help: "Total bus events dropped due to full subscriber buffers.",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(EntriesSent, TokensDebited, TokensCredited, EventsDropped)
}
