package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for the order lifecycle
var (
	StatusUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_status_updates_total",
			Help: "Total number of accepted order status updates, by target status",
		},
		[]string{"status"},
	)

	StatusUpdateRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_status_update_rejections_total",
			Help: "Total number of rejected order status updates, by reason",
		},
		[]string{"reason"},
	)

	VersionConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "order_version_conflicts_total",
			Help: "Total number of status updates rejected because the order changed concurrently",
		},
	)

	NotificationsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_notifications_failed_total",
			Help: "Total number of status change notifications that could not be delivered, by sink",
		},
		[]string{"sink"},
	)
)

// Rejection reasons
const (
	ReasonValidation = "validation"
	ReasonTransition = "invalid_transition"
	ReasonForbidden  = "forbidden"
	ReasonNotFound   = "not_found"
	ReasonConflict   = "conflict"
)

var registerOnce sync.Once

// Register registers all Prometheus metrics with the default registry.
// Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(StatusUpdatesTotal)
		prometheus.MustRegister(StatusUpdateRejectionsTotal)
		prometheus.MustRegister(VersionConflictsTotal)
		prometheus.MustRegister(NotificationsFailedTotal)
	})
}
