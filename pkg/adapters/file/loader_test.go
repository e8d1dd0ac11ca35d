package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/weft/pkg/adapters/file"
	"github.com/weftworks/weft/pkg/domain"
)

func writePattern(t *testing.T, dir, name, id string) {
	t.Helper()
	body := "id: " + id + `
reactions:
  - name: start
    condition:
      kind: filter
      expr: event.type == 'x'
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoader_LoadPatterns(t *testing.T) {
	dir := t.TempDir()
	// Lexical file order fixes registration order, not declaration ids.
	writePattern(t, dir, "20-beta.yaml", "beta")
	writePattern(t, dir, "10-alpha.yml", "alpha")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	patterns, err := file.NewLoader(dir).LoadPatterns(context.Background())
	require.NoError(t, err)
	require.Len(t, patterns, 2)
	assert.Equal(t, "alpha", patterns[0].ID)
	assert.Equal(t, "beta", patterns[1].ID)
}

func TestLoader_MalformedFileFailsLoad(t *testing.T) {
	dir := t.TempDir()
	writePattern(t, dir, "ok.yaml", "ok")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("id: [broken"), 0o644))

	_, err := file.NewLoader(dir).LoadPatterns(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yaml")
}

func TestLoader_LoadPattern(t *testing.T) {
	dir := t.TempDir()
	writePattern(t, dir, "a.yaml", "a")

	loader := file.NewLoader(dir)
	p, err := loader.LoadPattern(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "a", p.ID)

	_, err = loader.LoadPattern(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrPatternNotFound)
}

func TestLoader_MissingDir(t *testing.T) {
	_, err := file.NewLoader("/does/not/exist").LoadPatterns(context.Background())
	assert.Error(t, err)
}
