package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aretw0/fsmtask/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "fsmtask:task:"

// far enough in the future to act as "never expires" in the index
const noExpiryScore = 4102444800 // 2100-01-01

// Store implements ports.TaskStore using Redis.
// Objects are stored as JSON strings and tracked in a ZSET index scored by expiry.
type Store struct {
	client  *backend.Client
	prefix  string
	idField string
	ttl     time.Duration
}

// Option configures the Store.
type Option func(*Store)

// WithTTL sets the expiration for stored objects.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for stored objects.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithIDField sets the object field used as identity (default "id").
func WithIDField(field string) Option {
	return func(s *Store) {
		s.idField = field
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client:  client,
		prefix:  DefaultPrefix,
		idField: domain.DefaultIDField,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Client exposes the underlying client so a Locker can share the connection.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Update persists the object and registers it in the index.
func (s *Store) Update(ctx context.Context, obj domain.Object) (domain.UpdateResult, error) {
	id, ok := obj.ID(s.idField)
	if !ok {
		return domain.UpdateResult{}, domain.ErrMissingID
	}

	data, err := json.Marshal(obj)
	if err != nil {
		return domain.UpdateResult{}, fmt.Errorf("failed to marshal object: %w", err)
	}

	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = noExpiryScore
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(id), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.UpdateResult{}, fmt.Errorf("failed to save to redis: %w", err)
	}

	stored, err := decode(data)
	if err != nil {
		return domain.UpdateResult{}, err
	}
	return domain.UpdateResult{Object: stored}, nil
}

// Search returns the matching objects ordered by id.
// A search on the id field alone is a single GET; anything else scans the index.
func (s *Store) Search(ctx context.Context, req domain.SearchRequest) ([]domain.Object, error) {
	if raw, ok := req.SearchParams[s.idField]; ok && len(req.SearchParams) == 1 {
		val, err := s.client.Get(ctx, s.key(fmt.Sprint(raw))).Result()
		if err != nil {
			if errors.Is(err, backend.Nil) {
				return []domain.Object{}, nil
			}
			return nil, fmt.Errorf("failed to get from redis: %w", err)
		}
		obj, err := decode([]byte(val))
		if err != nil {
			return nil, err
		}
		return []domain.Object{obj}, nil
	}

	ids, err := s.IDs(ctx)
	if err != nil {
		return nil, err
	}
	out := []domain.Object{}
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read from redis: %w", err)
	}

	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			// Key expired between the index read and MGET
			continue
		}
		obj, err := decode([]byte(str))
		if err != nil {
			return nil, err
		}
		if obj.Matches(req.SearchParams) {
			out = append(out, obj)
		}
	}
	return out, nil
}

// IDs returns the ids of live objects, sorted.
// Expired entries are pruned from the index lazily.
func (s *Store) IDs(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired tasks: %w", err)
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes the object and its index entry.
func (s *Store) Delete(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(id))
	pipe.ZRem(ctx, s.indexKey(), id)
	_, err := pipe.Exec(ctx)
	return err
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func decode(data []byte) (domain.Object, error) {
	var obj domain.Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("failed to unmarshal object: %w", err)
	}
	return obj, nil
}
