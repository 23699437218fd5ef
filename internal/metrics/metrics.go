// Package metrics defines the bot's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Updates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lostfound_updates_total",
			Help: "Telegram updates handled, by kind (message, callback, ignored, rate_limited).",
		},
		[]string{"kind"},
	)

	ItemsReported = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lostfound_items_reported_total",
			Help: "Items created, by type.",
		},
		[]string{"type"},
	)

	Claims = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lostfound_claims_total",
			Help: "Claim events, by outcome (submitted, approved, rejected).",
		},
		[]string{"outcome"},
	)

	MatchNotifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lostfound_match_notifications_total",
			Help: "Match notification runs, by result (sent, none, error, panic).",
		},
		[]string{"result"},
	)

	HandlerErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lostfound_handler_errors_total",
		Help: "Store or transport errors surfaced to users as a generic failure.",
	})

	SweeperRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lostfound_sweeper_runs_total",
			Help: "Sweeper runs, by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(Updates, ItemsReported, Claims, MatchNotifications, HandlerErrors, SweeperRuns)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
