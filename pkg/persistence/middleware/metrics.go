package middleware

import (
	"context"
	"time"

	"github.com/aretw0/fsmtask/pkg/domain"
	"github.com/aretw0/fsmtask/pkg/observability"
	"github.com/aretw0/fsmtask/pkg/ports"
)

type metricsMiddleware struct {
	next    ports.TaskStore
	metrics *observability.Metrics
}

// NewMetricsMiddleware records call counts and latency for every store operation.
func NewMetricsMiddleware(metrics *observability.Metrics) Middleware {
	return func(next ports.TaskStore) ports.TaskStore {
		return &metricsMiddleware{next: next, metrics: metrics}
	}
}

func (m *metricsMiddleware) Search(ctx context.Context, req domain.SearchRequest) ([]domain.Object, error) {
	start := time.Now()
	found, err := m.next.Search(ctx, req)
	m.metrics.ObserveStore("search", start, err)
	return found, err
}

func (m *metricsMiddleware) Update(ctx context.Context, obj domain.Object) (domain.UpdateResult, error) {
	start := time.Now()
	res, err := m.next.Update(ctx, obj)
	m.metrics.ObserveStore("update", start, err)
	return res, err
}
