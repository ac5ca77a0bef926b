package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/fsmtask/pkg/domain"
	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// MachineDoc is a machine document written into a test repository.
type MachineDoc struct {
	// File is the document path inside the repository. Defaults to "<schema name>.md".
	File        string
	Schema      domain.Schema
	Description string
}

// SetupMachineRepo initializes a Loam repository in a temp dir and writes docs into it.
// It returns the absolute repository path and the repository.
func SetupMachineRepo(t *testing.T, docs ...MachineDoc) (string, core.Repository) {
	t.Helper()

	dir, err := filepath.Abs(t.TempDir())
	require.NoError(t, err)

	repo, err := loam.Init(dir)
	require.NoError(t, err, "init machine repository")

	for _, doc := range docs {
		file := doc.File
		if file == "" {
			file = doc.Schema.Name + ".md"
		}
		WriteFile(t, dir, file, MachineMarkdown(t, doc.Schema, doc.Description))
	}
	return dir, repo
}

// MachineMarkdown renders schema as front matter followed by description.
func MachineMarkdown(t *testing.T, schema domain.Schema, description string) string {
	t.Helper()
	front, err := yaml.Marshal(schema)
	require.NoError(t, err)
	return "---\n" + string(front) + "---\n" + description
}

// WriteFile writes content to dir/name, creating parent directories.
func WriteFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
