package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTree_RecordsNestedSteps(t *testing.T) {
	t.Parallel()

	tree := NewTree()
	ctx := context.Background()

	err := tree.Step(ctx, "file.js", func(ctx context.Context, s Step) error {
		require.NoError(t, s.Step(ctx, "add", func(ctx context.Context, s Step) error {
			return s.Step(ctx, "add(1, 2)\n// => 3", func(context.Context, Step) error { return nil })
		}))
		return s.Step(ctx, "sub", func(ctx context.Context, s Step) error {
			return s.Step(ctx, "sub(1, 2)", func(context.Context, Step) error { return errors.New("values are not equal") })
		})
	})
	require.EqualError(t, err, "values are not equal")

	nodes := tree.Nodes()
	require.Len(t, nodes, 1)
	file := nodes[0]
	assert.Equal(t, StatusFailed, file.Status)
	require.Len(t, file.Children, 2)
	assert.Equal(t, StatusPassed, file.Children[0].Status)
	assert.Equal(t, StatusFailed, file.Children[1].Status)
	assert.Equal(t, "values are not equal", file.Children[1].Children[0].Error)

	assert.Equal(t, Summary{Passed: 1, Failed: 1}, tree.Summary())
}

func TestTree_ConcurrentSteps(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var events []Event
	tree := NewTree(WithObserver(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	}))

	ctx := context.Background()
	require.NoError(t, tree.Step(ctx, "file", func(ctx context.Context, s Step) error {
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_ = s.Step(ctx, fmt.Sprintf("symbol-%d", i), func(ctx context.Context, s Step) error {
					return s.Step(ctx, "example", func(context.Context, Step) error { return nil })
				})
			}(i)
		}
		wg.Wait()
		return nil
	}))

	assert.Equal(t, Summary{Passed: 20}, tree.Summary())
	assert.Len(t, events, 41)

	last := events[len(events)-1]
	assert.Equal(t, []string{"file"}, last.Path)
	assert.False(t, last.Node.Leaf())
}

func TestRender(t *testing.T) {
	t.Parallel()

	tree := NewTree()
	ctx := context.Background()
	_ = tree.Step(ctx, "file.js", func(ctx context.Context, s Step) error {
		_ = s.Step(ctx, "ok(1)\n// => 1", func(context.Context, Step) error { return nil })
		return s.Step(ctx, "bad(1)\n// => 2", func(context.Context, Step) error {
			return errors.New("values are not equal\n  actual:   1")
		})
	})

	var all bytes.Buffer
	require.NoError(t, tree.Render(&all, RenderOptions{}))
	out := all.String()
	assert.Contains(t, out, "file.js")
	assert.Contains(t, out, "ok(1) ...")
	assert.Contains(t, out, "bad(1) ...")
	assert.Contains(t, out, "actual:   1")
	assert.Contains(t, out, "1 passed, 1 failed")

	var failures bytes.Buffer
	require.NoError(t, tree.Render(&failures, RenderOptions{FailuresOnly: true}))
	assert.NotContains(t, failures.String(), "ok(1)")
	assert.Contains(t, failures.String(), "bad(1)")
}

func TestTesting(t *testing.T) {
	step := Testing(t)
	var ran []string
	err := step.Step(context.Background(), "outer", func(ctx context.Context, s Step) error {
		ran = append(ran, "outer")
		return s.Step(ctx, "inner", func(context.Context, Step) error {
			ran = append(ran, "inner")
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, ran)
}

func TestFailures(t *testing.T) {
	t.Parallel()

	nodes := []*Node{
		{Name: "ok.js", Status: StatusPassed, Children: []*Node{{Name: "a", Status: StatusPassed}}},
		{Name: "bad.js", Status: StatusFailed, Children: []*Node{
			{Name: "a", Status: StatusPassed},
			{Name: "b", Status: StatusFailed, Error: "values are not equal"},
		}},
		{Name: "missing.js", Status: StatusFailed, Error: "failed to load"},
	}

	got := Failures(nodes)
	require.Len(t, got, 2)
	assert.Equal(t, "bad.js", got[0].Name)
	require.Len(t, got[0].Children, 1)
	assert.Equal(t, "b", got[0].Children[0].Name)
	assert.True(t, got[1].Leaf())

	assert.Len(t, nodes[1].Children, 2, "input is not modified")
}
