// Package report records nested test steps and renders the results.
package report

import (
	"context"
	"testing"
)

// Step opens a named child step, runs fn inside it and returns fn's error.
// Implementations are safe for concurrent use and nest arbitrarily.
type Step interface {
	Step(ctx context.Context, name string, fn func(ctx context.Context, s Step) error) error
}

type testingStep struct {
	t *testing.T
}

// Testing adapts t to a Step. Every step becomes a subtest that fails with
// the error fn returns.
func Testing(t *testing.T) Step {
	return testingStep{t: t}
}

func (s testingStep) Step(ctx context.Context, name string, fn func(ctx context.Context, s Step) error) error {
	var err error
	s.t.Run(name, func(t *testing.T) {
		err = fn(ctx, testingStep{t: t})
		if err != nil {
			t.Error(err)
		}
	})
	return err
}
