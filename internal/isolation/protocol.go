// Package isolation runs doctest examples inside workers that own their own
// JavaScript runtime, either as goroutines or as child processes.
package isolation

import (
	"context"
	"errors"
	"fmt"

	"github.com/mvp-joe/jsdoctest/internal/evaluator"
)

// ErrWorkerClosed is returned for requests made after a service was closed.
var ErrWorkerClosed = errors.New("worker is closed")

// Request asks a worker to load a module and evaluate one example against it.
// Result is the raw expected section; the worker decides how to evaluate it.
type Request struct {
	ID        string `json:"id"`
	ModuleURL string `json:"moduleUrl"`
	Test      string `json:"test"`
	Result    string `json:"result"`
}

// Response carries both raw settlements back to the caller. Error is set
// instead when the worker could not load the module.
type Response struct {
	ID       string               `json:"id"`
	Actual   evaluator.Settlement `json:"actual"`
	Expected evaluator.Settlement `json:"expected"`
	Error    string               `json:"error,omitempty"`
}

// Service hands requests to workers. Implementations are safe for concurrent
// use; every request gets a scope no other request can observe.
type Service interface {
	Request(ctx context.Context, req Request) (Response, error)
	Close() error
}

// LoadError reports that a worker failed to load the requested module.
type LoadError struct {
	ModuleURL string
	Message   string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load module %s: %s", e.ModuleURL, e.Message)
}

// check turns a worker response into the caller's result.
func check(req Request, resp Response) (Response, error) {
	if resp.Error != "" {
		return resp, &LoadError{ModuleURL: req.ModuleURL, Message: resp.Error}
	}
	if resp.ID != req.ID {
		return resp, fmt.Errorf("response id %q does not match request %q", resp.ID, req.ID)
	}
	if err := resp.Actual.Validate(); err != nil {
		return resp, fmt.Errorf("invalid actual settlement: %w", err)
	}
	if err := resp.Expected.Validate(); err != nil {
		return resp, fmt.Errorf("invalid expected settlement: %w", err)
	}
	return resp, nil
}
