package taskmanager

import (
	"context"

	"github.com/alitto/pond/v2"
	"github.com/aretw0/fsmtask/pkg/domain"
)

// EventRequest is one item of a batch.
type EventRequest struct {
	Object  domain.Object
	Event   string
	Payload any
}

// EventResult is the outcome of the request at the same index.
type EventResult struct {
	Object domain.Object
	Err    error
}

// SendEventBatch runs SendEvent for every request on a worker pool.
// Items are independent: one failure does not stop the others, and no execution order
// is guaranteed. results[i] always belongs to reqs[i].
func (m *Manager) SendEventBatch(ctx context.Context, reqs []EventRequest) []EventResult {
	results := make([]EventResult, len(reqs))
	if len(reqs) == 0 {
		return results
	}

	pool := pond.NewPool(m.workers)
	defer pool.StopAndWait()

	group := pool.NewGroup()
	for i, req := range reqs {
		group.Submit(func() {
			if err := ctx.Err(); err != nil {
				results[i] = EventResult{Err: err}
				return
			}
			obj, err := m.SendEvent(ctx, req.Object, req.Event, req.Payload)
			results[i] = EventResult{Object: obj, Err: err}
		})
	}
	_ = group.Wait()

	return results
}
