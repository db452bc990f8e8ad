// Package metrics registers the Prometheus instrumentation shared by the
// transport, network, TSM, and COV layers: counters tracking NPDU traffic
// and drops and TSM transactions, plus a gauge and a counter for COV
// subscriptions and notifications.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	NPDUSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bacnet",
		Name:      "npdu_sent_total",
		Help:      "NPDUs handed to a transport port for send, by port name.",
	}, []string{"port"})

	NPDUReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bacnet",
		Name:      "npdu_received_total",
		Help:      "NPDUs delivered from a transport port, by port name.",
	}, []string{"port"})

	NPDUDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bacnet",
		Name:      "npdu_dropped_total",
		Help:      "Inbound messages dropped or refused (malformed, unroutable, unhandled, or answered with a service error), by reason.",
	}, []string{"reason"})

	ConfirmedRequestsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bacnet",
		Name:      "tsm_confirmed_requests_sent_total",
		Help:      "Confirmed requests sent by the client TSM, including retries.",
	})

	ConfirmedRequestRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bacnet",
		Name:      "tsm_confirmed_request_retries_total",
		Help:      "Retry attempts issued by the client TSM.",
	})

	ConfirmedRequestTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bacnet",
		Name:      "tsm_confirmed_request_timeouts_total",
		Help:      "Client TSM transactions that exhausted all retries.",
	})

	ServerDuplicateSuppressed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bacnet",
		Name:      "tsm_server_duplicates_suppressed_total",
		Help:      "Duplicate confirmed requests answered from the server TSM's cached response.",
	})

	COVNotificationsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bacnet",
		Name:      "cov_notifications_sent_total",
		Help:      "COV notifications sent, by confirmed/unconfirmed.",
	}, []string{"confirmed"})

	COVActiveSubscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "bacnet",
		Name:      "cov_active_subscriptions",
		Help:      "Currently active COV subscriptions.",
	})
)

// MustRegister registers every collector in this package with reg. Callers
// that don't want global-registry side effects can pass a fresh
// prometheus.NewRegistry().
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		NPDUSent, NPDUReceived, NPDUDropped,
		ConfirmedRequestsSent, ConfirmedRequestRetries, ConfirmedRequestTimeouts,
		ServerDuplicateSuppressed,
		COVNotificationsSent, COVActiveSubscriptions,
	)
}
