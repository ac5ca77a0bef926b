package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/aretw0/fsmtask/pkg/definition"
	"github.com/aretw0/fsmtask/pkg/domain"
)

// Loader implements ports.DefinitionLoader using an in-memory map.
type Loader struct {
	schemas map[string]domain.Schema
}

// NewLoader creates a Loader from raw YAML or JSON documents keyed by machine name.
func NewLoader(docs map[string]string) (*Loader, error) {
	schemas := make(map[string]domain.Schema, len(docs))
	for name, doc := range docs {
		s, err := definition.ParseSchema([]byte(doc))
		if err != nil {
			return nil, fmt.Errorf("machine %s: %w", name, err)
		}
		schemas[name] = s
	}
	return &Loader{schemas: schemas}, nil
}

// NewFromSchemas creates a Loader keyed by each schema's name.
func NewFromSchemas(schemas ...domain.Schema) (*Loader, error) {
	m := make(map[string]domain.Schema, len(schemas))
	for _, s := range schemas {
		if s.Name == "" {
			return nil, fmt.Errorf("schema missing name")
		}
		m[s.Name] = s
	}
	return &Loader{schemas: m}, nil
}

// Load returns the schema registered under name.
func (l *Loader) Load(ctx context.Context, name string) (domain.Schema, error) {
	s, ok := l.schemas[name]
	if !ok {
		return domain.Schema{}, fmt.Errorf("%w: %s", domain.ErrDefinitionNotFound, name)
	}
	return s, nil
}

// List returns every machine name, sorted.
func (l *Loader) List(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(l.schemas))
	for k := range l.schemas {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
