// Package evaluator runs JavaScript fragments inside an isolated scope and
// reports each outcome as a Settlement.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"go.uber.org/zap"
)

// ErrScopeClosed is the rejection reason for evaluations on a closed scope.
var ErrScopeClosed = errors.New("scope is closed")

// helpers is compiled once per scope. settle adopts promises and thenables the
// same way an awaiting caller would.
const helpers = `({
	settle: function (value, onFulfilled, onRejected) {
		Promise.resolve(value).then(onFulfilled, onRejected);
	},
	entries: function (collection) {
		return Array.from(collection);
	}
})`

// Scope is one JavaScript runtime driven by its own event loop.
//
// Bindings are installed by a module loader (or Bind) before examples run;
// after that the scope is only read. Evaluate may be called from any goroutine:
// every evaluation is scheduled onto the loop, so concurrent evaluations
// interleave cooperatively and never run in parallel.
type Scope struct {
	loop    *eventloop.EventLoop
	vm      *goja.Runtime
	eval    goja.Callable
	settle  goja.Callable
	entries goja.Callable

	// running is the id of the evaluation whose script is executing on the
	// loop, or 0. mu orders it with Interrupt and ClearInterrupt.
	mu      sync.Mutex
	running uint64
	nextID  atomic.Uint64

	// symbols is only touched on the loop.
	symbols map[*goja.Symbol]uint64

	logger  *zap.Logger
	timeout time.Duration

	closed    atomic.Bool
	closeOnce sync.Once
}

// Option configures a Scope.
type Option func(*Scope)

// WithLogger routes console output and scope diagnostics to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scope) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTimeout bounds every evaluation. Zero means wait for settlement forever.
func WithTimeout(d time.Duration) Option {
	return func(s *Scope) {
		s.timeout = d
	}
}

// NewScope starts a new runtime and its event loop.
func NewScope(opts ...Option) (*Scope, error) {
	s := &Scope{logger: zap.NewNop(), symbols: make(map[*goja.Symbol]uint64)}
	for _, opt := range opts {
		opt(s)
	}

	s.loop = eventloop.NewEventLoop(eventloop.EnableConsole(false))
	s.loop.Start()

	errCh := make(chan error, 1)
	s.loop.RunOnLoop(func(vm *goja.Runtime) {
		errCh <- s.init(vm)
	})
	if err := <-errCh; err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to initialize scope: %w", err)
	}

	return s, nil
}

func (s *Scope) init(vm *goja.Runtime) error {
	s.vm = vm

	v, err := vm.RunString(helpers)
	if err != nil {
		return err
	}
	obj := v.ToObject(vm)

	var ok bool
	if s.eval, ok = goja.AssertFunction(vm.Get("eval")); !ok {
		return errors.New("eval is not callable")
	}
	if s.settle, ok = goja.AssertFunction(obj.Get("settle")); !ok {
		return errors.New("settle helper is not callable")
	}
	if s.entries, ok = goja.AssertFunction(obj.Get("entries")); !ok {
		return errors.New("entries helper is not callable")
	}

	return s.installConsole(vm)
}

// installConsole provides console.* backed by the scope logger so example
// output never mixes with reporter or wire output.
func (s *Scope) installConsole(vm *goja.Runtime) error {
	console := vm.NewObject()
	logAt := func(level string) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			args := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				args[i] = arg.String()
			}
			fields := []zap.Field{zap.Strings("args", args)}
			switch level {
			case "error":
				s.logger.Error("console.error", fields...)
			case "warn":
				s.logger.Warn("console.warn", fields...)
			case "debug":
				s.logger.Debug("console.debug", fields...)
			default:
				s.logger.Info("console."+level, fields...)
			}
			return goja.Undefined()
		}
	}
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		if err := console.Set(level, logAt(level)); err != nil {
			return err
		}
	}
	return vm.Set("console", console)
}

// Bind installs a single binding into the scope's global namespace.
func (s *Scope) Bind(name string, value any) error {
	return s.do(func(vm *goja.Runtime) error {
		return vm.Set(name, value)
	})
}

// Run executes fn on the scope's loop and waits for it to return. It is the
// hook module loaders use to install exports.
func (s *Scope) Run(fn func(vm *goja.Runtime) error) error {
	return s.do(fn)
}

func (s *Scope) do(fn func(vm *goja.Runtime) error) error {
	if s.closed.Load() {
		return ErrScopeClosed
	}
	errCh := make(chan error, 1)
	s.loop.RunOnLoop(func(vm *goja.Runtime) {
		var err error
		if ex := vm.Try(func() { err = fn(vm) }); ex != nil {
			err = ex
		}
		errCh <- err
	})
	return <-errCh
}

// Evaluate runs text through an indirect eval against the scope's bindings, so
// top-level let, const and class declarations stay local to one evaluation. It
// never fails: a thrown exception or a rejected promise becomes a rejected
// Settlement, any other result (after awaiting promises and thenables) a
// fulfilled one.
//
// Cancelling ctx, or exceeding the scope timeout, rejects with an
// InterruptedError reason. The runtime is interrupted only while this
// evaluation's own script is executing; other evaluations are left alone.
func (s *Scope) Evaluate(ctx context.Context, text string) Settlement {
	if s.closed.Load() {
		return Rejected(Error("Error", ErrScopeClosed.Error()))
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	done := make(chan Settlement, 1)
	var once sync.Once
	finish := func(st Settlement) {
		once.Do(func() { done <- st })
	}

	id := s.nextID.Add(1)
	s.loop.RunOnLoop(func(vm *goja.Runtime) {
		s.evaluate(ctx, vm, id, text, finish)
	})

	select {
	case st := <-done:
		return st
	case <-ctx.Done():
		s.interrupt(id, ctx.Err())
		return Rejected(Error("InterruptedError", ctx.Err().Error()))
	}
}

// interrupt stops the runtime if evaluation id is the one executing. An
// evaluation that is only waiting on a promise needs no interrupt.
func (s *Scope) interrupt(id uint64, reason error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running != id {
		s.logger.Debug("evaluation abandoned", zap.Uint64("id", id), zap.Error(reason))
		return
	}
	s.logger.Debug("evaluation interrupted", zap.Uint64("id", id), zap.Error(reason))
	s.vm.Interrupt(reason)
}

func (s *Scope) evaluate(ctx context.Context, vm *goja.Runtime, id uint64, text string, finish func(Settlement)) {
	s.mu.Lock()
	if ctx.Err() != nil {
		// Already given up on while queued.
		s.mu.Unlock()
		return
	}
	s.running = id
	s.mu.Unlock()

	result, err := s.eval(goja.Undefined(), vm.ToValue(text))

	s.mu.Lock()
	s.running = 0
	vm.ClearInterrupt()
	s.mu.Unlock()

	if err != nil {
		finish(s.rejection(vm, err))
		return
	}

	onFulfilled := func(call goja.FunctionCall) goja.Value {
		finish(Fulfilled(s.snapshot(vm, call.Argument(0))))
		return goja.Undefined()
	}
	onRejected := func(call goja.FunctionCall) goja.Value {
		finish(Rejected(s.snapshot(vm, call.Argument(0))))
		return goja.Undefined()
	}

	if _, err := s.settle(goja.Undefined(), result, vm.ToValue(onFulfilled), vm.ToValue(onRejected)); err != nil {
		finish(s.rejection(vm, err))
	}
}

func (s *Scope) rejection(vm *goja.Runtime, err error) Settlement {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return Rejected(s.snapshot(vm, ex.Value()))
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return Rejected(Error("InterruptedError", interrupted.Error()))
	}
	return Rejected(Error("Error", err.Error()))
}

// Close stops the event loop. Pending evaluations are abandoned.
func (s *Scope) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.loop.StopNoWait()
	})
}
