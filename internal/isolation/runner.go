package isolation

import (
	"context"

	"github.com/mvp-joe/jsdoctest/internal/doctest"
)

// Runner runs examples of one module through a Service and compares the
// returned settlements locally.
type Runner struct {
	svc       Service
	moduleURL string
}

// NewRunner creates a Runner for the module at moduleURL.
func NewRunner(svc Service, moduleURL string) *Runner {
	return &Runner{svc: svc, moduleURL: moduleURL}
}

// Run implements doctest.Runner.
func (r *Runner) Run(ctx context.Context, ex doctest.Example) error {
	resp, err := r.svc.Request(ctx, Request{
		ModuleURL: r.moduleURL,
		Test:      ex.Invocation,
		Result:    ex.Expected,
	})
	if err != nil {
		return err
	}
	return doctest.Compare(resp.Actual, resp.Expected)
}
