package xcpindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigCreatesDefaults(t *testing.T) {
	catalog := t.TempDir()
	t.Setenv("XCP_CATALOG", catalog)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultTokens, cfg.Tokens)
	assert.Equal(t, DefaultWindow, cfg.Window)
	assert.Equal(t, "info", cfg.Log.Level)

	_, err = os.Stat(filepath.Join(catalog, configFileName))
	assert.NoError(t, err, "first load should write a default config")

	// Edits survive a reload, unset keys fall back to defaults
	path := filepath.Join(catalog, configFileName)
	require.NoError(t, os.WriteFile(path, []byte("[performance]\ntokens = 9\n"), 0644))

	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Tokens)
	assert.Equal(t, DefaultWindow, cfg.Window)
}

func TestResolveIndexPath(t *testing.T) {
	catalog := t.TempDir()
	t.Setenv("XCP_CATALOG", catalog)

	// An id resolves under the catalog
	inCatalog := filepath.Join(catalog, "src"+IndexSuffix)
	require.NoError(t, os.WriteFile(inCatalog, []byte("x"), 0644))
	got, err := ResolveIndexPath("src")
	require.NoError(t, err)
	assert.Equal(t, inCatalog, got)

	// An existing path is used as given
	elsewhere := filepath.Join(t.TempDir(), "other.xidx")
	require.NoError(t, os.WriteFile(elsewhere, []byte("x"), 0644))
	got, err = ResolveIndexPath(elsewhere)
	require.NoError(t, err)
	assert.Equal(t, elsewhere, got)

	// Unknown id and missing path both fail
	_, err = ResolveIndexPath("nosuch")
	assert.Error(t, err)
	_, err = ResolveIndexPath(filepath.Join(catalog, "missing.xidx"))
	assert.Error(t, err)
}
