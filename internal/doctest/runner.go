package doctest

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mvp-joe/jsdoctest/internal/evaluator"
)

// Evaluator evaluates one fragment of code and always settles.
type Evaluator interface {
	Evaluate(ctx context.Context, text string) evaluator.Settlement
}

// Runner runs one example and returns nil when it passes.
type Runner interface {
	Run(ctx context.Context, ex Example) error
}

// EvaluatePair evaluates the invocation and the expected section concurrently
// and waits for both to settle. A rejection on one side never hides the
// other side's settlement.
func EvaluatePair(ctx context.Context, ev Evaluator, ex Example) (actual, expected evaluator.Settlement) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		actual = ev.Evaluate(ctx, ex.Invocation)
	}()
	go func() {
		defer wg.Done()
		expected = ev.Evaluate(ctx, ExpectedSource(ex.Expected))
	}()
	wg.Wait()
	return actual, expected
}

// ScopeRunner runs examples in process against a shared evaluator.
type ScopeRunner struct {
	eval   Evaluator
	logger *zap.Logger
}

// NewScopeRunner creates a runner evaluating against eval.
func NewScopeRunner(eval Evaluator, logger *zap.Logger) *ScopeRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScopeRunner{eval: eval, logger: logger}
}

// Run evaluates both sides of ex and compares them.
func (r *ScopeRunner) Run(ctx context.Context, ex Example) error {
	actual, expected := EvaluatePair(ctx, r.eval, ex)
	r.logger.Debug("example settled",
		zap.String("invocation", ex.Invocation),
		zap.Stringer("actual", actual),
		zap.Stringer("expected", expected))
	return Compare(actual, expected)
}
