package doctest

import (
	"strings"

	"github.com/mvp-joe/jsdoctest/internal/evaluator"
)

// ExpectedSource returns the code evaluated for an expected section. A section
// starting with "throw " is a statement that raises; anything else is
// evaluated as a parenthesized expression.
func ExpectedSource(expected string) string {
	if strings.HasPrefix(strings.TrimSpace(expected), "throw ") {
		return expected
	}
	return "(" + expected + ")"
}

// Compare applies the decision table to two settled outcomes and returns nil
// when the example passes.
//
//	actual     expected   result
//	fulfilled  fulfilled  pass iff values are equal
//	rejected   rejected   pass iff reasons are equal
//	rejected   fulfilled  UnexpectedFailureError with the actual reason
//	fulfilled  rejected   UnexpectedSuccessError with the expected reason
func Compare(actual, expected evaluator.Settlement) error {
	switch {
	case actual.IsFulfilled() && expected.IsFulfilled():
		if !evaluator.Equal(actual.Result(), expected.Result()) {
			return &MismatchError{Actual: actual.Result(), Expected: expected.Result()}
		}
		return nil
	case !actual.IsFulfilled() && !expected.IsFulfilled():
		if !evaluator.Equal(actual.Result(), expected.Result()) {
			return &MismatchError{Actual: actual.Result(), Expected: expected.Result(), Rejected: true}
		}
		return nil
	case !actual.IsFulfilled():
		return &UnexpectedFailureError{Reason: actual.Result()}
	default:
		return &UnexpectedSuccessError{Value: actual.Result(), Reason: expected.Result()}
	}
}
