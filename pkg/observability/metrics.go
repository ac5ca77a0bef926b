package observability

import (
	"context"
	"time"

	"github.com/aretw0/fsmtask/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fsmtask"

// Metrics holds the Prometheus collectors for machines and stores.
type Metrics struct {
	Starts      *prometheus.CounterVec
	Transitions *prometheus.CounterVec
	Rejections  *prometheus.CounterVec
	StoreOps    *prometheus.CounterVec
	StoreTime   *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Starts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "starts_total",
			Help:      "Objects put in their initial state.",
		}, []string{"machine"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Accepted transitions.",
		}, []string{"machine", "event", "from", "to"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Refused starts and transitions by reason.",
		}, []string{"machine", "event", "reason"}),
		StoreOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Task store calls by operation and outcome.",
		}, []string{"op", "result"}),
		StoreTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Task store call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(m.Starts, m.Transitions, m.Rejections, m.StoreOps, m.StoreTime)
	}
	return m
}

// Hooks returns lifecycle hooks that feed the machine counters.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStart: func(ctx context.Context, e *domain.TransitionEvent) {
			m.Starts.WithLabelValues(e.Machine).Inc()
		},
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			m.Transitions.WithLabelValues(e.Machine, e.Event, e.From, e.To).Inc()
		},
		OnReject: func(ctx context.Context, e *domain.TransitionEvent) {
			m.Rejections.WithLabelValues(e.Machine, e.Event, RejectReason(e.Err)).Inc()
		},
	}
}

// ObserveStore records one store call.
func (m *Metrics) ObserveStore(op string, started time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.StoreOps.WithLabelValues(op, result).Inc()
	m.StoreTime.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

// RejectReason maps a machine error to a low-cardinality label.
func RejectReason(err error) string {
	switch {
	case err == nil:
		return "none"
	case domain.IsAlreadyStartedError(err):
		return "already_started"
	case domain.IsIllegalTransitionError(err):
		return "illegal_transition"
	case domain.IsGuardRejectedError(err):
		return "guard_rejected"
	case domain.IsHookError(err):
		return "hook_error"
	default:
		return "other"
	}
}
