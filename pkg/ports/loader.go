package ports

import (
	"context"

	"github.com/aretw0/fsmtask/pkg/domain"
)

// DefinitionLoader retrieves machine schemas by name.
// This keeps where definitions are authored (Loam, embedded, remote) out of the engine.
type DefinitionLoader interface {
	// Load returns the raw schema registered under name. Validation is left to the caller.
	Load(ctx context.Context, name string) (domain.Schema, error)

	// List returns the names of every available schema.
	List(ctx context.Context) ([]string, error)
}
