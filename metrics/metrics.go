// Package metrics exposes Prometheus metrics about dials and connections.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DialAttemptsTotal tracks finished dials by result.
var DialAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ipsec_client_dial_attempts_total",
		Help: "Total dials by result",
	},
	[]string{"entry", "result"},
)

// DialDuration tracks how long dials take until they resolve.
var DialDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "ipsec_client_dial_duration_seconds",
		Help:    "Time from dial start to its result",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
	},
	[]string{"entry"},
)

// StateTransitionsTotal tracks the connection states reported by the platform.
var StateTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ipsec_client_state_transitions_total",
		Help: "Total connection state notifications",
	},
	[]string{"entry", "state"},
)

// SessionsEndedTotal tracks ended sessions by how they ended.
var SessionsEndedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ipsec_client_sessions_ended_total",
		Help: "Total sessions ended by result",
	},
	[]string{"entry", "result"},
)

// SessionDuration tracks the lifetime of established connections.
var SessionDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "ipsec_client_session_duration_seconds",
		Help:    "Lifetime of established connections",
		Buckets: prometheus.ExponentialBuckets(60, 4, 6),
	},
	[]string{"entry"},
)

// Connected is 1 while the entry is connected, 0 otherwise.
var Connected = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "ipsec_client_connected",
		Help: "Connection state (1 when connected, 0 otherwise)",
	},
	[]string{"entry"},
)

// HealthState tracks the last health state (value 1 for current state, 0 otherwise).
var HealthState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "ipsec_client_health_state",
		Help: "Connection health (1 for current state, 0 otherwise)",
	},
	[]string{"entry", "state"},
)
