package ports

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/fsmtask/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunTaskStoreContract verifies that a TaskStore implementation honours the port contract.
// The store must be empty (or namespaced) when the suite starts.
func RunTaskStoreContract(t *testing.T, store TaskStore) {
	ctx := context.Background()
	prefix := "contract-" + time.Now().Format("20060102150405.000000")
	id := func(n int) string { return fmt.Sprintf("%s-%d", prefix, n) }

	t.Run("Update returns the persisted object", func(t *testing.T) {
		obj := domain.Object{"id": id(1), "status": "init", "title": "first"}

		res, err := store.Update(ctx, obj)
		require.NoError(t, err)
		assert.Equal(t, id(1), res.Object["id"])
		assert.Equal(t, "init", res.Object["status"])
		assert.Equal(t, "first", res.Object["title"])
	})

	t.Run("Search by id", func(t *testing.T) {
		found, err := store.Search(ctx, domain.SearchRequest{SearchParams: map[string]any{"id": id(1)}})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "first", found[0]["title"])
	})

	t.Run("Update overwrites", func(t *testing.T) {
		_, err := store.Update(ctx, domain.Object{"id": id(1), "status": "finished", "title": "first"})
		require.NoError(t, err)

		found, err := store.Search(ctx, domain.SearchRequest{SearchParams: map[string]any{"id": id(1)}})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "finished", found[0]["status"])
	})

	t.Run("Search by field", func(t *testing.T) {
		_, err := store.Update(ctx, domain.Object{"id": id(2), "status": "init", "batch": prefix})
		require.NoError(t, err)
		_, err = store.Update(ctx, domain.Object{"id": id(3), "status": "finished", "batch": prefix})
		require.NoError(t, err)

		found, err := store.Search(ctx, domain.SearchRequest{SearchParams: map[string]any{"batch": prefix, "status": "init"}})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, id(2), found[0]["id"])

		all, err := store.Search(ctx, domain.SearchRequest{SearchParams: map[string]any{"batch": prefix}})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, id(2), all[0]["id"], "results are ordered by id")
		assert.Equal(t, id(3), all[1]["id"])
	})

	t.Run("Search without match", func(t *testing.T) {
		found, err := store.Search(ctx, domain.SearchRequest{SearchParams: map[string]any{"id": prefix + "-missing"}})
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("Update without id", func(t *testing.T) {
		_, err := store.Update(ctx, domain.Object{"status": "init"})
		assert.True(t, errors.Is(err, domain.ErrMissingID))
	})

	t.Run("Returned objects are detached", func(t *testing.T) {
		res, err := store.Update(ctx, domain.Object{"id": id(4), "status": "init"})
		require.NoError(t, err)
		res.Object["status"] = "tampered"

		found, err := store.Search(ctx, domain.SearchRequest{SearchParams: map[string]any{"id": id(4)}})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "init", found[0]["status"])
	})
}
