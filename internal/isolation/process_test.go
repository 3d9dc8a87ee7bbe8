package isolation

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mvp-joe/jsdoctest/internal/evaluator"
	"github.com/mvp-joe/jsdoctest/internal/loader"
)

const workerEnv = "JSDOCTEST_TEST_WORKER"

// TestMain lets the test binary double as a worker process.
func TestMain(m *testing.M) {
	if os.Getenv(workerEnv) == "1" {
		l, err := loader.New(nil)
		if err != nil {
			os.Exit(2)
		}
		if err := Serve(context.Background(), os.Stdin, os.Stdout, NewHandler(l, 0, nil), nil); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func newProcessPool(t *testing.T, size int) *ProcessPool {
	t.Helper()
	cmd := Command{Path: os.Args[0], Args: []string{"-test.run=^$"}, Env: []string{workerEnv + "=1"}}
	p := NewProcessPool(size, cmd, zap.NewNop())
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestProcessPool_Request(t *testing.T) {
	t.Parallel()

	p := newProcessPool(t, 1)
	url := fixtureURL(t, "modules", "add.js")

	for i := 0; i < 2; i++ {
		resp, err := p.Request(context.Background(), Request{ModuleURL: url, Test: "add(1, 2)", Result: "3"})
		require.NoError(t, err)
		assert.Equal(t, evaluator.Number(3), resp.Actual.Result())
		assert.Equal(t, evaluator.Number(3), resp.Expected.Result())
	}
}

func TestProcessPool_LoadError(t *testing.T) {
	t.Parallel()

	p := newProcessPool(t, 1)
	_, err := p.Request(context.Background(), Request{ModuleURL: fixtureURL(t, "modules", "missing.js"), Test: "1", Result: "1"})
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestProcessPool_CancelKillsWorker(t *testing.T) {
	t.Parallel()

	p := newProcessPool(t, 1)
	url := fixtureURL(t, "modules", "add.js")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := p.Request(ctx, Request{ModuleURL: url, Test: "new Promise(() => {})", Result: "1"})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	resp, err := p.Request(context.Background(), Request{ModuleURL: url, Test: "add(2, 2)", Result: "4"})
	require.NoError(t, err, "a replacement worker serves the next request")
	assert.Equal(t, evaluator.Number(4), resp.Actual.Result())
}

func TestProcessPool_CloseDuringRequest(t *testing.T) {
	t.Parallel()

	p := newProcessPool(t, 2)
	url := fixtureURL(t, "modules", "add.js")

	// Warm one worker so the second slot stays idle with a live process.
	_, err := p.Request(context.Background(), Request{ModuleURL: url, Test: "add(1, 1)", Result: "2"})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Request(context.Background(), Request{ModuleURL: url, Test: "new Promise(() => {})", Result: "1"})
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return len(p.busy) == 1
	}, 5*time.Second, 10*time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- p.Close() }()

	select {
	case err := <-errCh:
		require.Error(t, err, "the pending request fails once its worker is killed")
	case <-time.After(5 * time.Second):
		t.Fatal("request still blocked after Close")
	}
	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}

	_, err = p.Request(context.Background(), Request{ModuleURL: url, Test: "1", Result: "1"})
	assert.ErrorIs(t, err, ErrWorkerClosed)
}

func TestServe(t *testing.T) {
	t.Parallel()

	req, err := json.Marshal(Request{ID: "one", ModuleURL: fixtureURL(t, "modules", "add.js"), Test: "add(1, 2)", Result: "3"})
	require.NoError(t, err)

	in := strings.NewReader(string(req) + "\n\nnot json\n")
	var out bytes.Buffer
	require.NoError(t, Serve(context.Background(), in, &out, newHandler(t), nil))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	var first Response
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "one", first.ID)
	assert.Empty(t, first.Error)
	assert.Equal(t, evaluator.StatusFulfilled, first.Actual.Status)
	assert.Equal(t, evaluator.Number(3), first.Actual.Result())

	var second Response
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Contains(t, second.Error, "invalid request")
}
