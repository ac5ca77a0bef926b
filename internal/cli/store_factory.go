package cli

import (
	"context"
	"fmt"

	"github.com/aretw0/fsmtask/internal/config"
	"github.com/aretw0/fsmtask/pkg/adapters/file"
	"github.com/aretw0/fsmtask/pkg/adapters/memory"
	"github.com/aretw0/fsmtask/pkg/adapters/mongo"
	"github.com/aretw0/fsmtask/pkg/adapters/postgres"
	"github.com/aretw0/fsmtask/pkg/adapters/redis"
	"github.com/aretw0/fsmtask/pkg/ports"
)

// Backend is an opened task store and the resources behind it.
type Backend struct {
	Store ports.TaskStore
	// Locker is set for backends that can coordinate replicas (Redis).
	Locker ports.DistributedLocker
	close  func() error
}

// Close releases connections held by the backend.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// OpenStore builds the task store selected by cfg.StoreKind.
func OpenStore(ctx context.Context, cfg config.Config) (*Backend, error) {
	switch cfg.StoreKind {
	case config.StoreMemory:
		return &Backend{Store: memory.NewStore(memory.WithIDField(cfg.IDField))}, nil

	case config.StoreFile:
		return &Backend{Store: file.New(cfg.Dir, file.WithIDField(cfg.IDField))}, nil

	case config.StoreRedis:
		store := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			redis.WithTTL(cfg.RedisTTL),
			redis.WithIDField(cfg.IDField),
		)
		if err := store.Client().Ping(ctx).Err(); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		return &Backend{
			Store:  store,
			Locker: redis.NewLocker(store.Client(), redis.DefaultPrefix),
			close:  store.Close,
		}, nil

	case config.StoreMongo:
		client, err := mongo.Connect(ctx, mongo.Config{
			URL:           cfg.MongoURL,
			RetryAttempts: cfg.RetryAttempts,
			RetryInterval: cfg.RetryInterval,
		})
		if err != nil {
			return nil, err
		}
		coll := client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection)
		return &Backend{
			Store: mongo.New(coll, mongo.WithIDField(cfg.IDField)),
			close: func() error { return client.Disconnect(context.Background()) },
		}, nil

	case config.StorePostgres:
		pool, err := postgres.Connect(ctx, postgres.Config{
			ConnString:    cfg.PostgresConnString,
			RetryAttempts: cfg.RetryAttempts,
			RetryInterval: cfg.RetryInterval,
		})
		if err != nil {
			return nil, err
		}
		store := postgres.New(pool, postgres.WithTable(cfg.PostgresTable), postgres.WithIDField(cfg.IDField))
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return &Backend{
			Store: store,
			close: func() error { pool.Close(); return nil },
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownStore, cfg.StoreKind)
	}
}
