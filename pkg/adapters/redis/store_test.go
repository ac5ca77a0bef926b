package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/fsmtask/pkg/adapters/redis"
	"github.com/aretw0/fsmtask/pkg/domain"
	"github.com/aretw0/fsmtask/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := setup(t)
	ports.RunTaskStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_KeysAndIndex(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewFromClient(client, redis.WithPrefix("test:"))
	ctx := context.Background()

	_, err := store.Update(ctx, domain.Object{"id": "t-1", "status": "init"})
	require.NoError(t, err)

	assert.True(t, mr.Exists("test:t-1"))
	members, err := mr.ZMembers("test:index")
	require.NoError(t, err)
	assert.Equal(t, []string{"t-1"}, members)

	require.NoError(t, store.Delete(ctx, "t-1"))
	assert.False(t, mr.Exists("test:t-1"))
	ids, err := store.IDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRedisStore_TTL(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewFromClient(client, redis.WithTTL(time.Minute))
	ctx := context.Background()

	_, err := store.Update(ctx, domain.Object{"id": "short-lived", "status": "init"})
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL(redis.DefaultPrefix+"short-lived"))

	mr.FastForward(2 * time.Minute)

	found, err := store.Search(ctx, domain.SearchRequest{SearchParams: map[string]any{"status": "init"}})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestRedisStore_SearchByIDMissing(t *testing.T) {
	_, client := setup(t)
	store := redis.NewFromClient(client)

	found, err := store.Search(context.Background(), domain.SearchRequest{SearchParams: map[string]any{"id": "nope"}})
	require.NoError(t, err)
	assert.Empty(t, found)
}
