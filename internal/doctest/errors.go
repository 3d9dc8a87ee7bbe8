package doctest

import (
	"fmt"

	"github.com/mvp-joe/jsdoctest/internal/evaluator"
)

// MismatchError reports that both sides settled the same way but with
// different values (or different reasons when Rejected is set).
type MismatchError struct {
	Actual   evaluator.Value
	Expected evaluator.Value
	Rejected bool
}

func (e *MismatchError) Error() string {
	what := "values"
	if e.Rejected {
		what = "errors"
	}
	return fmt.Sprintf("%s are not equal\n  actual:   %s\n  expected: %s\n\ndiff (-expected +actual):\n%s",
		what, e.Actual, e.Expected, evaluator.Diff(e.Expected, e.Actual))
}

// UnexpectedFailureError reports that the invocation raised while the
// expected section evaluated to a value. Reason is the real error.
type UnexpectedFailureError struct {
	Reason evaluator.Value
}

func (e *UnexpectedFailureError) Error() string {
	return fmt.Sprintf("example threw unexpectedly: %s", e.Reason)
}

// UnexpectedSuccessError reports that the invocation succeeded although the
// expected section documents an error. Reason is that documented error.
type UnexpectedSuccessError struct {
	Value  evaluator.Value
	Reason evaluator.Value
}

func (e *UnexpectedSuccessError) Error() string {
	return fmt.Sprintf("expected example to throw %s, but it returned %s", e.Reason, e.Value)
}
