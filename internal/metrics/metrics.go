// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OnlineUsers is the number of users with an identified connection.
	OnlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "socialnet_presence_online_users",
		Help: "Users with an identified real-time connection",
	})

	// FanoutDeliveries counts push attempts by result: delivered, failed or offline.
	FanoutDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialnet_fanout_deliveries_total",
		Help: "Message push attempts to conversation members by result",
	}, []string{"result"})

	// MembershipRejections counts membership changes refused by a group invariant.
	MembershipRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialnet_membership_rejections_total",
		Help: "Membership changes rejected by a group invariant, by reason",
	}, []string{"reason"})

	// BackgroundTasks counts detached task outcomes.
	BackgroundTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialnet_background_tasks_total",
		Help: "Detached background tasks by task name and status",
	}, []string{"task", "status"})

	// RPCDuration observes unary RPC latency.
	RPCDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "socialnet_rpc_duration_seconds",
		Help:    "Unary RPC duration by procedure and status code",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"procedure", "code"})
)

// Fan-out results.
const (
	ResultDelivered = "delivered"
	ResultFailed    = "failed"
	ResultOffline   = "offline"
)
