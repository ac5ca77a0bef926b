package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/fsmtask/pkg/domain"
)

// LoggingHooks logs every lifecycle event. Rejections are logged at Warn.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStart: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.InfoContext(ctx, "object started", "machine", e.Machine, "state", e.To)
		},
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.InfoContext(ctx, "transition",
				"machine", e.Machine,
				"event", e.Event,
				"from", e.From,
				"to", e.To,
			)
		},
		OnReject: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.WarnContext(ctx, "transition rejected",
				"machine", e.Machine,
				"event", e.Event,
				"from", e.From,
				"reason", RejectReason(e.Err),
				"err", e.Err,
			)
		},
	}
}
