package ports

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/fsmtask/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreFromFuncs(t *testing.T) {
	var searched domain.SearchRequest
	boom := errors.New("boom")

	store := StoreFromFuncs(
		func(_ context.Context, req domain.SearchRequest) ([]domain.Object, error) {
			searched = req
			return []domain.Object{{"id": "1"}}, nil
		},
		func(_ context.Context, obj domain.Object) (domain.UpdateResult, error) {
			return domain.UpdateResult{}, boom
		},
	)

	found, err := store.Search(context.Background(), domain.SearchRequest{SearchParams: map[string]any{"id": "1"}})
	require.NoError(t, err)
	assert.Len(t, found, 1)
	assert.Equal(t, "1", searched.SearchParams["id"])

	_, err = store.Update(context.Background(), domain.Object{"id": "1"})
	assert.ErrorIs(t, err, boom)
}
