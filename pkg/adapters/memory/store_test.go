package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/fsmtask/pkg/domain"
	"github.com/aretw0/fsmtask/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Contract(t *testing.T) {
	ports.RunTaskStoreContract(t, NewStore())
}

func TestStore_CustomIDField(t *testing.T) {
	s := NewStore(WithIDField("key"))
	ctx := context.Background()

	_, err := s.Update(ctx, domain.Object{"id": "ignored", "status": "init"})
	assert.ErrorIs(t, err, domain.ErrMissingID)

	_, err = s.Update(ctx, domain.Object{"key": "k-1", "status": "init"})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.Delete(ctx, "k-1"))
	assert.Equal(t, 0, s.Len())
}

func TestStore_Isolation(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	obj := domain.Object{"id": "t-1", "status": "init"}
	_, err := s.Update(ctx, obj)
	require.NoError(t, err)

	obj["status"] = "mutated after save"

	found, err := s.Search(ctx, domain.SearchRequest{})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "init", found[0]["status"])
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _ = s.Update(ctx, domain.Object{"id": "shared", "n": n})
		}(i)
	}
	wg.Wait()

	found, err := s.Search(ctx, domain.SearchRequest{SearchParams: map[string]any{"id": "shared"}})
	require.NoError(t, err)
	assert.Len(t, found, 1, "last write wins, one record remains")
}
