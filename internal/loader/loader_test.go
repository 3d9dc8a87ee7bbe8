package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mvp-joe/jsdoctest/internal/evaluator"
)

// Test Plan for the module loader:
// - A module and its relative TypeScript imports are bundled and installed
// - Bundle inputs and the import edges between them are recorded
// - Loading twice reuses the cached module until an input changes
// - Syntax errors surface as BuildError with file positions
// - File URLs and relative paths resolve to absolute paths

func newLoader(t *testing.T) *Loader {
	t.Helper()
	l, err := New(zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(l.Close)
	return l
}

func newScope(t *testing.T) *evaluator.Scope {
	t.Helper()
	scope, err := evaluator.NewScope()
	require.NoError(t, err)
	t.Cleanup(scope.Close)
	return scope
}

func TestLoader_InstallsExports(t *testing.T) {
	t.Parallel()

	l := newLoader(t)
	mod, err := l.Load(context.Background(), filepath.Join("..", "..", "testdata", "modules", "math", "index.ts"))
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(mod.Path))
	require.Len(t, mod.Inputs, 2)
	assert.Equal(t, "index.ts", filepath.Base(mod.Inputs[0]))
	assert.Equal(t, "square.ts", filepath.Base(mod.Inputs[1]))
	assert.Equal(t, []string{mod.Inputs[1]}, mod.Imports[mod.Inputs[0]])

	scope := newScope(t)
	require.NoError(t, mod.Install(scope))

	s := scope.Evaluate(context.Background(), "sumOfSquares(1, 2, 3)")
	require.True(t, s.IsFulfilled(), s.String())
	assert.Equal(t, evaluator.Number(14), s.Result())

	s = scope.Evaluate(context.Background(), "typeof square")
	assert.Equal(t, evaluator.String("undefined"), s.Result(), "only entry exports are installed")
}

func TestLoader_SameModuleManyScopes(t *testing.T) {
	t.Parallel()

	l := newLoader(t)
	mod, err := l.Load(context.Background(), filepath.Join("..", "..", "testdata", "modules", "add.js"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		scope := newScope(t)
		require.NoError(t, mod.Install(scope))
		s := scope.Evaluate(context.Background(), "add(1, 2)")
		assert.Equal(t, evaluator.Number(3), s.Result())
	}
}

func TestLoader_CacheInvalidatesOnChange(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dep := filepath.Join(dir, "dep.js")
	entry := filepath.Join(dir, "entry.js")
	require.NoError(t, os.WriteFile(dep, []byte("export const value = 1;\n"), 0o644))
	require.NoError(t, os.WriteFile(entry, []byte("export { value } from './dep.js';\n"), 0o644))

	l := newLoader(t)
	first, err := l.Load(context.Background(), entry)
	require.NoError(t, err)

	again, err := l.Load(context.Background(), URLFromPath(entry))
	require.NoError(t, err)
	assert.Same(t, first, again)

	require.NoError(t, os.WriteFile(dep, []byte("export const value = 2;\n"), 0o644))
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(dep, later, later))

	rebuilt, err := l.Load(context.Background(), entry)
	require.NoError(t, err)
	assert.NotSame(t, first, rebuilt)

	scope := newScope(t)
	require.NoError(t, rebuilt.Install(scope))
	assert.Equal(t, evaluator.Number(2), scope.Evaluate(context.Background(), "value").Result())
}

func TestLoader_BuildError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	entry := filepath.Join(dir, "broken.js")
	require.NoError(t, os.WriteFile(entry, []byte("export function (\n"), 0o644))

	_, err := newLoader(t).Load(context.Background(), entry)
	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, entry, buildErr.Path)
	require.NotEmpty(t, buildErr.Messages)
	assert.Contains(t, buildErr.Messages[0], "broken.js:1:")
}

func TestLoader_MissingModule(t *testing.T) {
	t.Parallel()

	_, err := newLoader(t).Load(context.Background(), filepath.Join(t.TempDir(), "nope.js"))
	require.Error(t, err)
}

func TestLoader_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newLoader(t).Load(ctx, "whatever.js")
	require.ErrorIs(t, err, context.Canceled)
}

func TestPathFromRef(t *testing.T) {
	t.Parallel()

	path, err := PathFromRef("file:///tmp/mod/index.js")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/mod/index.js", path)

	path, err = PathFromRef("index.js")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))

	assert.Equal(t, "file:///tmp/mod/index.js", URLFromPath("/tmp/mod/index.js"))
}
