package tests

import (
	"context"
	"testing"

	"github.com/aretw0/fsmtask/pkg/domain"
	"github.com/aretw0/fsmtask/pkg/ports"
)

// DefinitionLoaderContractTest verifies that an adapter complies with ports.DefinitionLoader.
// expected maps every schema name the loader should expose to its initial state.
func DefinitionLoaderContractTest(t *testing.T, loader ports.DefinitionLoader, expected map[string]domain.Schema) {
	t.Helper()
	ctx := context.Background()

	t.Run("Load_Success", func(t *testing.T) {
		for name, want := range expected {
			got, err := loader.Load(ctx, name)
			if err != nil {
				t.Fatalf("unexpected error loading %s: %v", name, err)
			}
			if got.Name != want.Name {
				t.Errorf("name mismatch for %s: got %q, want %q", name, got.Name, want.Name)
			}
			if got.InitialState != want.InitialState {
				t.Errorf("initial state mismatch for %s: got %q, want %q", name, got.InitialState, want.InitialState)
			}
			if len(got.Transitions) != len(want.Transitions) {
				t.Errorf("transition count mismatch for %s: got %d, want %d", name, len(got.Transitions), len(want.Transitions))
			}
		}
	})

	t.Run("Load_NotFound", func(t *testing.T) {
		if _, err := loader.Load(ctx, "non-existent-machine"); err == nil {
			t.Error("expected error for non-existent machine, got nil")
		}
	})

	t.Run("List", func(t *testing.T) {
		names, err := loader.List(ctx)
		if err != nil {
			t.Fatalf("unexpected error listing machines: %v", err)
		}
		if len(names) != len(expected) {
			t.Errorf("expected %d machines, got %d", len(expected), len(names))
		}

		lookup := make(map[string]bool)
		for _, n := range names {
			lookup[n] = true
		}
		for n := range expected {
			if !lookup[n] {
				t.Errorf("machine %s missing from list", n)
			}
		}
	})
}
