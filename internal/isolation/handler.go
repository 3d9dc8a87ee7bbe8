package isolation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mvp-joe/jsdoctest/internal/doctest"
	"github.com/mvp-joe/jsdoctest/internal/evaluator"
	"github.com/mvp-joe/jsdoctest/internal/loader"
)

// ModuleLoader resolves a module reference to an installable module.
type ModuleLoader interface {
	Load(ctx context.Context, ref string) (*loader.Module, error)
}

// Handler performs the work of one request: fresh scope, module load,
// install, and the paired evaluation.
type Handler struct {
	loader  ModuleLoader
	timeout time.Duration
	logger  *zap.Logger
}

// NewHandler creates a Handler. timeout bounds each evaluation; zero waits
// forever.
func NewHandler(l ModuleLoader, timeout time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{loader: l, timeout: timeout, logger: logger}
}

// Handle serves req. Failures to set up the scope are reported in
// Response.Error; evaluation failures are part of the settlements.
func (h *Handler) Handle(ctx context.Context, req Request) Response {
	resp := Response{ID: req.ID}

	mod, err := h.loader.Load(ctx, req.ModuleURL)
	if err != nil {
		h.logger.Warn("module load failed", zap.String("module", req.ModuleURL), zap.Error(err))
		resp.Error = err.Error()
		return resp
	}

	scope, err := evaluator.NewScope(evaluator.WithLogger(h.logger), evaluator.WithTimeout(h.timeout))
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	defer scope.Close()

	if err := mod.Install(scope); err != nil {
		h.logger.Warn("module install failed", zap.String("module", req.ModuleURL), zap.Error(err))
		resp.Error = err.Error()
		return resp
	}

	resp.Actual, resp.Expected = doctest.EvaluatePair(ctx, scope, doctest.Example{
		Invocation: req.Test,
		Expected:   req.Result,
	})
	return resp
}
