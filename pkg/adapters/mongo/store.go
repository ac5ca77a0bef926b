// Package mongo provides a TaskStore backed by a MongoDB collection.
//
// Each object is stored as a top-level document whose _id is the object's id.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/fsmtask/pkg/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ErrFailedToConnect is returned when the server could not be reached after every retry.
var ErrFailedToConnect = errors.New("failed to connect to mongo")

// Config holds connection settings.
type Config struct {
	URL            string
	ConnectTimeout time.Duration
	RetryAttempts  int
	RetryInterval  time.Duration
}

// Connect creates a client and pings the server, retrying on failure.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, error) {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	var lastErr error
	for i := range cfg.RetryAttempts {
		client, err := mongo.Connect(
			options.Client().
				ApplyURI(cfg.URL).
				SetConnectTimeout(cfg.ConnectTimeout).
				SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true}),
		)
		if err == nil {
			if err = client.Ping(ctx, nil); err == nil {
				return client, nil
			}
			_ = client.Disconnect(ctx)
		}
		lastErr = err

		if i < cfg.RetryAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, errors.Join(ErrFailedToConnect, ctx.Err())
			case <-time.After(cfg.RetryInterval):
			}
		}
	}
	return nil, errors.Join(ErrFailedToConnect, lastErr)
}

// Store implements ports.TaskStore.
type Store struct {
	coll    *mongo.Collection
	idField string
}

// Option configures the Store.
type Option func(*Store)

// WithIDField sets the object field used as identity (default "id").
func WithIDField(field string) Option {
	return func(s *Store) {
		s.idField = field
	}
}

// New wraps an existing collection.
func New(coll *mongo.Collection, opts ...Option) *Store {
	s := &Store{coll: coll, idField: domain.DefaultIDField}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Update replaces the document with the object's id, inserting it when missing.
func (s *Store) Update(ctx context.Context, obj domain.Object) (domain.UpdateResult, error) {
	id, ok := obj.ID(s.idField)
	if !ok {
		return domain.UpdateResult{}, domain.ErrMissingID
	}

	stored, err := normalize(obj)
	if err != nil {
		return domain.UpdateResult{}, err
	}

	doc := bson.M{}
	for k, v := range stored {
		doc[k] = v
	}
	doc["_id"] = id

	_, err = s.coll.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return domain.UpdateResult{}, fmt.Errorf("failed to save to mongo: %w", err)
	}
	return domain.UpdateResult{Object: stored}, nil
}

// Search returns documents whose fields equal every search param, ordered by id.
func (s *Store) Search(ctx context.Context, req domain.SearchRequest) ([]domain.Object, error) {
	filter := bson.M{}
	for k, v := range req.SearchParams {
		if k == s.idField {
			filter["_id"] = fmt.Sprint(v)
			continue
		}
		filter[k] = v
	}

	cursor, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query mongo: %w", err)
	}

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode mongo documents: %w", err)
	}

	out := make([]domain.Object, 0, len(docs))
	for _, doc := range docs {
		delete(doc, "_id")
		obj, err := normalize(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

// Delete removes the document with the given id.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// normalize round-trips through JSON so every store returns the same value types.
func normalize(v map[string]any) (domain.Object, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal object: %w", err)
	}
	var obj domain.Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("failed to unmarshal object: %w", err)
	}
	return obj, nil
}
