package isolation

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mvp-joe/jsdoctest/internal/doctest"
	"github.com/mvp-joe/jsdoctest/internal/evaluator"
	"github.com/mvp-joe/jsdoctest/internal/loader"
)

// Test Plan for in-process isolation:
// - A request loads the module, installs its exports and returns both settlements
// - Every request runs in a fresh scope, so globals never leak between requests
// - Deferred results are awaited inside the worker
// - A module that fails to load yields a LoadError instead of hanging
// - Requests after Close fail with ErrWorkerClosed
// - Many concurrent requests are served by a small pool

func fixtureURL(t *testing.T, parts ...string) string {
	t.Helper()
	path, err := filepath.Abs(filepath.Join(append([]string{"..", "..", "testdata"}, parts...)...))
	require.NoError(t, err)
	return loader.URLFromPath(path)
}

func newHandler(t *testing.T) *Handler {
	t.Helper()
	l, err := loader.New(zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(l.Close)
	return NewHandler(l, 0, zaptest.NewLogger(t))
}

func newPool(t *testing.T, size int) *Pool {
	t.Helper()
	p := NewPool(size, newHandler(t), zaptest.NewLogger(t))
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPool_Request(t *testing.T) {
	t.Parallel()

	p := newPool(t, 2)
	resp, err := p.Request(context.Background(), Request{
		ModuleURL: fixtureURL(t, "modules", "add.js"),
		Test:      "add(1, 2)",
		Result:    "3",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, evaluator.Fulfilled(evaluator.Number(3)), resp.Actual)
	assert.Equal(t, evaluator.Fulfilled(evaluator.Number(3)), resp.Expected)
}

func TestPool_FreshScopePerRequest(t *testing.T) {
	t.Parallel()

	p := newPool(t, 1)
	url := fixtureURL(t, "modules", "add.js")

	_, err := p.Request(context.Background(), Request{ModuleURL: url, Test: "globalThis.leak = 1", Result: "1"})
	require.NoError(t, err)

	resp, err := p.Request(context.Background(), Request{ModuleURL: url, Test: "typeof leak", Result: "'undefined'"})
	require.NoError(t, err)
	assert.Equal(t, evaluator.String("undefined"), resp.Actual.Result())
}

func TestPool_DeferredAndRejected(t *testing.T) {
	t.Parallel()

	p := newPool(t, 2)

	resp, err := p.Request(context.Background(), Request{
		ModuleURL: fixtureURL(t, "scenarios", "returns-promise.js"),
		Test:      "addLater(2, 2)",
		Result:    "4",
	})
	require.NoError(t, err)
	assert.Equal(t, evaluator.Number(4), resp.Actual.Result())

	resp, err = p.Request(context.Background(), Request{
		ModuleURL: fixtureURL(t, "scenarios", "expect-error.js"),
		Test:      "divide(1, 0)",
		Result:    "throw new RangeError(\"division by zero\")",
	})
	require.NoError(t, err)
	assert.Equal(t, evaluator.StatusRejected, resp.Actual.Status)
	assert.Equal(t, evaluator.StatusRejected, resp.Expected.Status)
	assert.True(t, evaluator.Equal(resp.Actual.Result(), resp.Expected.Result()))
}

func TestPool_LoadError(t *testing.T) {
	t.Parallel()

	p := newPool(t, 1)
	_, err := p.Request(context.Background(), Request{
		ModuleURL: fixtureURL(t, "modules", "missing.js"),
		Test:      "1",
		Result:    "1",
	})
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, loadErr.ModuleURL, "missing.js")
}

func TestPool_Closed(t *testing.T) {
	t.Parallel()

	p := NewPool(1, newHandler(t), nil)
	require.NoError(t, p.Close())

	_, err := p.Request(context.Background(), Request{ModuleURL: fixtureURL(t, "modules", "add.js"), Test: "1", Result: "1"})
	require.ErrorIs(t, err, ErrWorkerClosed)
}

func TestPool_Concurrent(t *testing.T) {
	t.Parallel()

	p := newPool(t, 3)
	url := fixtureURL(t, "modules", "add.js")

	var wg sync.WaitGroup
	errs := make([]error, 12)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			runner := NewRunner(p, url)
			errs[i] = runner.Run(context.Background(), doctest.Example{Invocation: "add(1, 2)", Expected: "3"})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestRunner_DecisionTable(t *testing.T) {
	t.Parallel()

	runner := NewRunner(newPool(t, 2), fixtureURL(t, "modules", "failing.js"))
	ctx := context.Background()

	var mismatch *doctest.MismatchError
	require.ErrorAs(t, runner.Run(ctx, doctest.Example{Invocation: "wrong(1)", Expected: "3"}), &mismatch)

	require.NoError(t, runner.Run(ctx, doctest.Example{Invocation: "wrong(2)", Expected: "2"}))

	var failure *doctest.UnexpectedFailureError
	require.ErrorAs(t, runner.Run(ctx, doctest.Example{Invocation: "explode()", Expected: "1"}), &failure)
	assert.Equal(t, "boom", failure.Reason.Text)

	var success *doctest.UnexpectedSuccessError
	require.ErrorAs(t, runner.Run(ctx, doctest.Example{Invocation: "calm()", Expected: "throw new Error(\"expected\")"}), &success)
	assert.Equal(t, "expected", success.Reason.Text)
}
