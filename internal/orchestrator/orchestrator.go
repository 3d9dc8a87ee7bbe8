// Package orchestrator runs every doctest of a module and reports each file,
// symbol and example as a nested step.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mvp-joe/jsdoctest/internal/docmodel"
	"github.com/mvp-joe/jsdoctest/internal/doctest"
	"github.com/mvp-joe/jsdoctest/internal/evaluator"
	"github.com/mvp-joe/jsdoctest/internal/isolation"
	"github.com/mvp-joe/jsdoctest/internal/loader"
	"github.com/mvp-joe/jsdoctest/internal/report"
)

// SymbolParser returns the documented exports of a module file.
type SymbolParser interface {
	ParseFile(ctx context.Context, path string) ([]docmodel.Symbol, error)
}

// ModuleLoader loads a module for in-process runs.
type ModuleLoader interface {
	Load(ctx context.Context, ref string) (*loader.Module, error)
}

// Orchestrator ties the parser, extractor and runners together.
type Orchestrator struct {
	parser  SymbolParser
	loader  ModuleLoader
	service isolation.Service
	timeout time.Duration
	logger  *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithService runs examples through svc instead of an in-process scope.
func WithService(svc isolation.Service) Option {
	return func(o *Orchestrator) {
		o.service = svc
	}
}

// WithTimeout bounds each in-process evaluation. Zero waits forever.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates an Orchestrator.
func New(parser SymbolParser, l ModuleLoader, opts ...Option) *Orchestrator {
	o := &Orchestrator{parser: parser, loader: l, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Plan returns the runnable definitions of the module without running them.
func (o *Orchestrator) Plan(ctx context.Context, moduleRef string) ([]doctest.Definition, error) {
	path, err := loader.PathFromRef(moduleRef)
	if err != nil {
		return nil, err
	}
	symbols, err := o.parser.ParseFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", moduleRef, err)
	}
	return doctest.Extract(symbols), nil
}

// Run opens a step for the module, one nested step per documented symbol and
// one per example. Symbols run concurrently; a symbol's examples run in order.
// The returned error aggregates every failed example.
func (o *Orchestrator) Run(ctx context.Context, moduleRef string, step report.Step) error {
	return step.Step(ctx, moduleRef, func(ctx context.Context, s report.Step) error {
		defs, err := o.Plan(ctx, moduleRef)
		if err != nil {
			return err
		}
		if len(defs) == 0 {
			o.logger.Debug("no doctests", zap.String("module", moduleRef))
			return nil
		}

		runner, cleanup, err := o.runner(ctx, moduleRef)
		if err != nil {
			return err
		}
		defer cleanup()

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			errs error
		)
		for _, def := range defs {
			wg.Add(1)
			go func(def doctest.Definition) {
				defer wg.Done()
				err := s.Step(ctx, def.SymbolName, func(ctx context.Context, s report.Step) error {
					return o.runExamples(ctx, s, runner, def)
				})
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}(def)
		}
		wg.Wait()
		return errs
	})
}

// RunAll runs every module in refs, at most concurrency at a time, and
// aggregates their failures. A non-positive concurrency means no limit.
func (o *Orchestrator) RunAll(ctx context.Context, refs []string, step report.Step, concurrency int) error {
	var g errgroup.Group
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	var (
		mu   sync.Mutex
		errs error
	)
	for _, ref := range refs {
		g.Go(func() error {
			err := o.Run(ctx, ref, step)
			mu.Lock()
			errs = multierr.Append(errs, err)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

func (o *Orchestrator) runExamples(ctx context.Context, s report.Step, runner doctest.Runner, def doctest.Definition) error {
	var errs error
	for _, ex := range def.Examples {
		err := s.Step(ctx, ex.Raw, func(ctx context.Context, _ report.Step) error {
			if err := runner.Run(ctx, ex); err != nil {
				return fmt.Errorf("%s:%d: %w", def.Location.Filename, def.Location.Line, err)
			}
			return nil
		})
		errs = multierr.Append(errs, err)
	}
	return errs
}

// runner returns the runner for one module. In process, the module is loaded
// once into a scope shared by all of its examples.
func (o *Orchestrator) runner(ctx context.Context, moduleRef string) (doctest.Runner, func(), error) {
	path, err := loader.PathFromRef(moduleRef)
	if err != nil {
		return nil, nil, err
	}

	if o.service != nil {
		return isolation.NewRunner(o.service, loader.URLFromPath(path)), func() {}, nil
	}

	mod, err := o.loader.Load(ctx, path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load %s: %w", moduleRef, err)
	}
	scope, err := evaluator.NewScope(evaluator.WithLogger(o.logger), evaluator.WithTimeout(o.timeout))
	if err != nil {
		return nil, nil, err
	}
	if err := mod.Install(scope); err != nil {
		scope.Close()
		return nil, nil, err
	}
	return doctest.NewScopeRunner(scope, o.logger), scope.Close, nil
}
