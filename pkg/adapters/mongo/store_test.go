package mongo_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aretw0/fsmtask/pkg/adapters/mongo"
	"github.com/aretw0/fsmtask/pkg/domain"
	"github.com/aretw0/fsmtask/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *mongo.Store {
	t.Helper()
	url := os.Getenv("FSMTASK_MONGODB_URL")
	if url == "" {
		t.Skip("FSMTASK_MONGODB_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, mongo.Config{URL: url, RetryAttempts: 3, RetryInterval: time.Second})
	require.NoError(t, err)

	coll := client.Database("fsmtask_test").Collection(fmt.Sprintf("tasks_%d", time.Now().UnixNano()))
	t.Cleanup(func() {
		_ = coll.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return mongo.New(coll)
}

func TestMongoStore_Contract(t *testing.T) {
	ports.RunTaskStoreContract(t, newStore(t))
}

func TestMongoStore_NestedValues(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := store.Update(ctx, domain.Object{
		"id":     "nested",
		"status": "init",
		"meta":   map[string]any{"owner": "ops", "tags": []any{"a", "b"}},
	})
	require.NoError(t, err)

	found, err := store.Search(ctx, domain.SearchRequest{SearchParams: map[string]any{"id": "nested"}})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, map[string]any{"owner": "ops", "tags": []any{"a", "b"}}, found[0]["meta"])
	assert.NotContains(t, found[0], "_id")
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := mongo.Connect(ctx, mongo.Config{
		URL:            "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=200",
		ConnectTimeout: 200 * time.Millisecond,
	})
	assert.ErrorIs(t, err, mongo.ErrFailedToConnect)
}
