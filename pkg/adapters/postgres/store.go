// Package postgres provides a TaskStore that keeps objects in a jsonb column.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/fsmtask/pkg/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrFailedToParseConfig is returned for malformed connection strings.
	ErrFailedToParseConfig = errors.New("failed to parse postgres config")
	// ErrFailedToConnect is returned when the database could not be reached after every retry.
	ErrFailedToConnect = errors.New("failed to connect to postgres")
)

// DefaultTable is the table used when none is configured.
const DefaultTable = "fsmtask_tasks"

// Config holds connection settings.
type Config struct {
	ConnString    string
	MaxConns      int32
	RetryAttempts int
	RetryInterval time.Duration
}

// Connect opens a pool and pings the database, backing off linearly between attempts.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseConfig, err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}

	var lastErr error
	for i := range cfg.RetryAttempts {
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		lastErr = err

		if i < cfg.RetryAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, errors.Join(ErrFailedToConnect, ctx.Err())
			case <-time.After(time.Duration(i+1) * cfg.RetryInterval):
			}
		}
	}
	return nil, errors.Join(ErrFailedToConnect, lastErr)
}

// Store implements ports.TaskStore.
type Store struct {
	pool    *pgxpool.Pool
	table   string
	idField string
}

// Option configures the Store.
type Option func(*Store)

// WithTable sets the table name (default "fsmtask_tasks").
func WithTable(name string) Option {
	return func(s *Store) {
		s.table = name
	}
}

// WithIDField sets the object field used as identity (default "id").
func WithIDField(field string) Option {
	return func(s *Store) {
		s.idField = field
	}
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{pool: pool, table: DefaultTable, idField: domain.DefaultIDField}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) ident() string {
	return pgx.Identifier{s.table}.Sanitize()
}

// EnsureSchema creates the table and its containment index if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id text PRIMARY KEY,
			data jsonb NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		)`, s.ident()),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING gin (data jsonb_path_ops)`,
			pgx.Identifier{s.table + "_data_idx"}.Sanitize(), s.ident()),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// Update upserts the object by id and returns the row as stored.
func (s *Store) Update(ctx context.Context, obj domain.Object) (domain.UpdateResult, error) {
	id, ok := obj.ID(s.idField)
	if !ok {
		return domain.UpdateResult{}, domain.ErrMissingID
	}

	data, err := json.Marshal(obj)
	if err != nil {
		return domain.UpdateResult{}, fmt.Errorf("failed to marshal object: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, data) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()
		RETURNING data`, s.ident())

	var raw []byte
	if err := s.pool.QueryRow(ctx, query, id, data).Scan(&raw); err != nil {
		return domain.UpdateResult{}, fmt.Errorf("failed to save to postgres: %w", err)
	}

	stored, err := decode(raw)
	if err != nil {
		return domain.UpdateResult{}, err
	}
	return domain.UpdateResult{Object: stored}, nil
}

// Search uses jsonb containment, so params must match field values exactly.
func (s *Store) Search(ctx context.Context, req domain.SearchRequest) ([]domain.Object, error) {
	params := req.SearchParams
	if params == nil {
		params = map[string]any{}
	}
	filter, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search params: %w", err)
	}

	query := fmt.Sprintf(`SELECT data FROM %s WHERE data @> $1 ORDER BY id`, s.ident())
	rows, err := s.pool.Query(ctx, query, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query postgres: %w", err)
	}

	raws, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	out := make([]domain.Object, 0, len(raws))
	for _, raw := range raws {
		obj, err := decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

// Delete removes the row with the given id.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.ident()), id)
	return err
}

func decode(raw []byte) (domain.Object, error) {
	var obj domain.Object
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("failed to unmarshal object: %w", err)
	}
	return obj, nil
}
