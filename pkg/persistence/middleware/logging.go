package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/fsmtask/pkg/domain"
	"github.com/aretw0/fsmtask/pkg/ports"
)

type loggingMiddleware struct {
	next   ports.TaskStore
	logger *slog.Logger
}

// NewLoggingMiddleware logs every store call at Debug and failures at Error.
func NewLoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next ports.TaskStore) ports.TaskStore {
		return &loggingMiddleware{next: next, logger: logger.With("component", "store")}
	}
}

func (m *loggingMiddleware) Search(ctx context.Context, req domain.SearchRequest) ([]domain.Object, error) {
	start := time.Now()
	found, err := m.next.Search(ctx, req)
	if err != nil {
		m.logger.ErrorContext(ctx, "search failed", "params", req.SearchParams, "err", err)
		return nil, err
	}
	m.logger.DebugContext(ctx, "search", "params", req.SearchParams, "results", len(found), "took", time.Since(start))
	return found, nil
}

func (m *loggingMiddleware) Update(ctx context.Context, obj domain.Object) (domain.UpdateResult, error) {
	start := time.Now()
	res, err := m.next.Update(ctx, obj)
	if err != nil {
		m.logger.ErrorContext(ctx, "update failed", "id", obj[domain.DefaultIDField], "err", err)
		return res, err
	}
	m.logger.DebugContext(ctx, "update", "id", obj[domain.DefaultIDField], "took", time.Since(start))
	return res, nil
}
