package ports

import (
	"context"

	"github.com/aretw0/fsmtask/pkg/domain"
)

// SearchFunc locates the objects matching a query descriptor.
// It either returns the (possibly empty) ordered result or an error; never a silent partial result.
type SearchFunc func(ctx context.Context, req domain.SearchRequest) ([]domain.Object, error)

// UpdateFunc durably replaces the stored value of an object and returns the persisted representation.
type UpdateFunc func(ctx context.Context, obj domain.Object) (domain.UpdateResult, error)

// TaskStore is an external object store reached only through search and update.
type TaskStore interface {
	// Search returns the objects whose fields equal every search param, ordered by id.
	// Empty params match every object.
	Search(ctx context.Context, req domain.SearchRequest) ([]domain.Object, error)

	// Update upserts obj by its id field and returns the stored copy.
	// Returns domain.ErrMissingID when obj has no id.
	Update(ctx context.Context, obj domain.Object) (domain.UpdateResult, error)
}

// funcStore adapts a SearchFunc/UpdateFunc pair to TaskStore.
type funcStore struct {
	search SearchFunc
	update UpdateFunc
}

func (f funcStore) Search(ctx context.Context, req domain.SearchRequest) ([]domain.Object, error) {
	return f.search(ctx, req)
}

func (f funcStore) Update(ctx context.Context, obj domain.Object) (domain.UpdateResult, error) {
	return f.update(ctx, obj)
}

// StoreFromFuncs wraps two plain functions as a TaskStore.
func StoreFromFuncs(search SearchFunc, update UpdateFunc) TaskStore {
	return funcStore{search: search, update: update}
}
