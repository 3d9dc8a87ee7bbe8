package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for file discovery:
// - Directories are walked and filtered by include patterns
// - Root-level files match "**/" patterns
// - Ignored directories are skipped entirely
// - Explicit file arguments are always included
// - Results are absolute, sorted and de-duplicated
// - Invalid patterns and missing paths return errors

func touch(t *testing.T, root string, rel ...string) {
	t.Helper()
	for _, r := range rel {
		path := filepath.Join(root, filepath.FromSlash(r))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("export const x = 1;\n"), 0644))
	}
}

func TestDiscovery_Discover(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	touch(t, root,
		"index.js",
		"lib/math.ts",
		"lib/readme.md",
		"node_modules/dep/index.js",
		"dist/bundle.js",
		".jsdoctest/config.yml",
	)

	d, err := NewDiscovery([]string{"**/*.js", "**/*.ts"}, []string{"node_modules/**", "dist/**"})
	require.NoError(t, err)

	found, err := d.Discover([]string{root})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "index.js"),
		filepath.Join(root, "lib", "math.ts"),
	}, found)
}

func TestDiscovery_ExplicitFilesAndDuplicates(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	touch(t, root, "a.js", "notes.txt")

	d, err := NewDiscovery([]string{"**/*.js"}, nil)
	require.NoError(t, err)

	found, err := d.Discover([]string{
		filepath.Join(root, "notes.txt"),
		root,
		filepath.Join(root, "a.js"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.js"),
		filepath.Join(root, "notes.txt"),
	}, found)
}

func TestDiscovery_Match(t *testing.T) {
	t.Parallel()

	d, err := NewDiscovery([]string{"**/*.ts"}, []string{"vendor/**"})
	require.NoError(t, err)

	assert.True(t, d.Match("main.ts"))
	assert.True(t, d.Match("src/deep/main.ts"))
	assert.False(t, d.Match("main.js"))
	assert.False(t, d.Match("vendor/lib.ts"))
}

func TestDiscovery_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewDiscovery([]string{"[unclosed"}, nil)
	require.Error(t, err)

	d, err := NewDiscovery([]string{"**/*.js"}, nil)
	require.NoError(t, err)
	_, err = d.Discover([]string{filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
}
