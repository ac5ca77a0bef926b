package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/fsmtask/pkg/domain"
)

// Store implements ports.TaskStore in memory.
// Safe for concurrent use.
type Store struct {
	data    map[string]domain.Object
	idField string
	mu      sync.RWMutex
}

// Option configures the Store.
type Option func(*Store)

// WithIDField sets the object field used as identity (default "id").
func WithIDField(field string) Option {
	return func(s *Store) {
		s.idField = field
	}
}

// NewStore creates a new in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		data:    make(map[string]domain.Object),
		idField: domain.DefaultIDField,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns copies of the objects matching every search param, ordered by id.
func (s *Store) Search(ctx context.Context, req domain.SearchRequest) ([]domain.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id, obj := range s.data {
		if obj.Matches(req.SearchParams) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := make([]domain.Object, 0, len(ids))
	for _, id := range ids {
		// Copy on read so callers can't mutate store state through the map
		out = append(out, s.data[id].Clone())
	}
	return out, nil
}

// Update stores a copy of obj under its id.
func (s *Store) Update(ctx context.Context, obj domain.Object) (domain.UpdateResult, error) {
	id, ok := obj.ID(s.idField)
	if !ok {
		return domain.UpdateResult{}, domain.ErrMissingID
	}

	stored := obj.Clone()

	s.mu.Lock()
	s.data[id] = stored
	s.mu.Unlock()

	return domain.UpdateResult{Object: stored.Clone()}, nil
}

// Delete removes the object with the given id.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// Len returns the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
