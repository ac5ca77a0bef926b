package file

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/fsmtask/pkg/domain"
)

// Store implements ports.TaskStore using the local filesystem.
// Each object is stored as a JSON file named after its id.
type Store struct {
	BasePath string
	idField  string
	mu       sync.RWMutex
}

// Option configures the Store.
type Option func(*Store)

// WithIDField sets the object field used as identity (default "id").
func WithIDField(field string) Option {
	return func(s *Store) {
		s.idField = field
	}
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".fsmtask/tasks".
func New(basePath string, opts ...Option) *Store {
	if basePath == "" {
		basePath = filepath.Join(".fsmtask", "tasks")
	}
	s := &Store{BasePath: basePath, idField: domain.DefaultIDField}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) path(id string) string {
	return filepath.Join(s.BasePath, url.PathEscape(id)+".json")
}

// Update persists the object to a JSON file atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *Store) Update(ctx context.Context, obj domain.Object) (domain.UpdateResult, error) {
	id, ok := obj.ID(s.idField)
	if !ok {
		return domain.UpdateResult{}, domain.ErrMissingID
	}

	data, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return domain.UpdateResult{}, fmt.Errorf("failed to marshal object: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return domain.UpdateResult{}, fmt.Errorf("failed to ensure task directory: %w", err)
	}

	// Same directory keeps the rename on one filesystem
	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-*.json")
	if err != nil {
		return domain.UpdateResult{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return domain.UpdateResult{}, fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return domain.UpdateResult{}, fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file
	if err := tmpFile.Close(); err != nil {
		return domain.UpdateResult{}, fmt.Errorf("failed to close temp file: %w", err)
	}

	destPath := s.path(id)
	if _, err := os.Stat(destPath); err == nil {
		// os.Rename fails on Windows when the destination exists
		if err := os.Remove(destPath); err != nil {
			return domain.UpdateResult{}, fmt.Errorf("failed to remove existing task file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return domain.UpdateResult{}, fmt.Errorf("failed to rename temp file: %w", err)
	}

	// Read back through JSON so the result matches what Search returns
	var stored domain.Object
	if err := json.Unmarshal(data, &stored); err != nil {
		return domain.UpdateResult{}, fmt.Errorf("failed to decode stored object: %w", err)
	}
	return domain.UpdateResult{Object: stored}, nil
}

// Search scans every task file and returns the matching objects ordered by id.
func (s *Store) Search(ctx context.Context, req domain.SearchRequest) ([]domain.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// A direct id lookup avoids the directory scan
	if raw, ok := req.SearchParams[s.idField]; ok && len(req.SearchParams) == 1 {
		obj, err := s.read(s.path(fmt.Sprint(raw)))
		if err != nil {
			if os.IsNotExist(err) {
				return []domain.Object{}, nil
			}
			return nil, err
		}
		return []domain.Object{obj}, nil
	}

	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.Object{}, nil
		}
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	out := []domain.Object{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		obj, err := s.read(filepath.Join(s.BasePath, name))
		if err != nil {
			return nil, err
		}
		if obj.Matches(req.SearchParams) {
			out = append(out, obj)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, _ := out[i].ID(s.idField)
		b, _ := out[j].ID(s.idField)
		return a < b
	})
	return out, nil
}

func (s *Store) read(path string) (domain.Object, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read task file: %w", err)
	}
	var obj domain.Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task %s: %w", filepath.Base(path), err)
	}
	return obj, nil
}

// Delete removes the task file.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return domain.ErrMissingID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete task file: %w", err)
	}
	return nil
}
