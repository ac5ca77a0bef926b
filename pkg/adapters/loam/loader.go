package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/fsmtask/pkg/domain"
	"github.com/aretw0/loam"
)

// Loader adapts a Loam repository to ports.DefinitionLoader.
// Each document holds one machine: the schema in its front matter and a description in its body.
type Loader struct {
	Repo *loam.TypedRepository[MachineMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[MachineMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// Open initializes a read-only Loam repository at path and wraps it in a Loader.
func Open(path string) (*Loader, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	// Strict mode keeps numeric params as json.Number across JSON and YAML documents.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[MachineMetadata](repo)), nil
}

type entry struct {
	schema      domain.Schema
	description string
}

// Load returns the schema of the named machine.
func (l *Loader) Load(ctx context.Context, name string) (domain.Schema, error) {
	e, err := l.find(ctx, name)
	if err != nil {
		return domain.Schema{}, err
	}
	return e.schema, nil
}

// Describe returns the Markdown body of the named machine's document.
func (l *Loader) Describe(ctx context.Context, name string) (string, error) {
	e, err := l.find(ctx, name)
	if err != nil {
		return "", err
	}
	return e.description, nil
}

func (l *Loader) find(ctx context.Context, name string) (entry, error) {
	// Direct lookup first; Loam resolves "order" to order.md.
	if doc, err := l.Repo.Get(ctx, name); err == nil {
		s := doc.Data.Schema(trimExtension(doc.ID))
		if s.Name == name || trimExtension(doc.ID) == name {
			return entry{schema: s, description: strings.TrimSpace(doc.Content)}, nil
		}
	}

	// The front matter name may differ from the file name.
	entries, err := l.all(ctx)
	if err != nil {
		return entry{}, err
	}
	if e, ok := entries[name]; ok {
		return e, nil
	}
	return entry{}, fmt.Errorf("%w: %s", domain.ErrDefinitionNotFound, name)
}

// List returns every machine name in the repository, sorted.
func (l *Loader) List(ctx context.Context) ([]string, error) {
	entries, err := l.all(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (l *Loader) all(ctx context.Context) (map[string]entry, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	out := make(map[string]entry, len(docs))
	for _, doc := range docs {
		s := doc.Data.Schema(trimExtension(doc.ID))

		if existing, ok := seen[s.Name]; ok {
			return nil, fmt.Errorf("collision detected: machine '%s' is defined in both '%s' and '%s'", s.Name, existing, doc.ID)
		}
		seen[s.Name] = doc.ID
		out[s.Name] = entry{schema: s, description: strings.TrimSpace(doc.Content)}
	}
	return out, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
