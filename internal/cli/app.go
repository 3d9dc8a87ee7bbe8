package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mvp-joe/jsdoctest/internal/config"
	"github.com/mvp-joe/jsdoctest/internal/docmodel"
	"github.com/mvp-joe/jsdoctest/internal/files"
	"github.com/mvp-joe/jsdoctest/internal/isolation"
	"github.com/mvp-joe/jsdoctest/internal/loader"
	"github.com/mvp-joe/jsdoctest/internal/logging"
	"github.com/mvp-joe/jsdoctest/internal/orchestrator"
)

// app holds the components shared by the commands.
type app struct {
	root    string
	cfg     *config.Config
	logger  *zap.Logger
	loader  *loader.Loader
	finder  *files.Discovery
	orch    *orchestrator.Orchestrator
	service isolation.Service
}

// appOptions override configuration values from command-line flags.
type appOptions struct {
	isolate string
	timeout time.Duration
}

func newApp(opts appOptions) (*app, error) {
	root, err := projectRoot()
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfigFromDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.isolate != "" {
		cfg.Runner.Isolate = opts.isolate
	}
	if opts.timeout != 0 {
		cfg.Runner.Timeout = opts.timeout
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	finder, err := files.NewDiscovery(cfg.Paths.Include, cfg.Paths.Ignore)
	if err != nil {
		return nil, fmt.Errorf("failed to create file discovery: %w", err)
	}

	l, err := loader.New(logger)
	if err != nil {
		return nil, err
	}

	a := &app{root: root, cfg: cfg, logger: logger, loader: l, finder: finder}

	service, err := a.newService(cfg.Runner.Isolate)
	if err != nil {
		l.Close()
		return nil, err
	}
	a.service = service
	a.orch = a.newOrchestrator(service)

	logger.Debug("configuration loaded",
		zap.String("root", root),
		zap.String("isolate", cfg.Runner.Isolate),
		zap.Int("workers", cfg.Runner.Workers),
		zap.Duration("timeout", cfg.Runner.Timeout))
	return a, nil
}

// newService returns the isolation service for mode, or nil for in-process runs.
func (a *app) newService(mode string) (isolation.Service, error) {
	switch mode {
	case config.IsolateWorker:
		return isolation.NewPool(a.cfg.Runner.Workers, isolation.NewHandler(a.loader, a.cfg.Runner.Timeout, a.logger), a.logger), nil
	case config.IsolateProcess:
		cmd, err := isolation.SelfCommand()
		if err != nil {
			return nil, err
		}
		cmd.Dir = a.root
		if a.cfg.Runner.Timeout > 0 {
			cmd.Args = append(cmd.Args, "--timeout", a.cfg.Runner.Timeout.String())
		}
		return isolation.NewProcessPool(a.cfg.Runner.Workers, cmd, a.logger), nil
	default:
		return nil, nil
	}
}

func (a *app) newOrchestrator(service isolation.Service) *orchestrator.Orchestrator {
	opts := []orchestrator.Option{
		orchestrator.WithLogger(a.logger),
		orchestrator.WithTimeout(a.cfg.Runner.Timeout),
	}
	if service != nil {
		opts = append(opts, orchestrator.WithService(service))
	}
	return orchestrator.New(docmodel.NewParser(), a.loader, opts...)
}

// discover expands the command arguments into module files. No arguments
// means the project root.
func (a *app) discover(args []string) ([]string, error) {
	if len(args) == 0 {
		args = []string{a.root}
	}
	return a.finder.Discover(args)
}

func (a *app) Close() error {
	var err error
	if a.service != nil {
		err = multierr.Append(err, a.service.Close())
	}
	a.loader.Close()
	return multierr.Append(err, logging.Sync(a.logger))
}

func projectRoot() (string, error) {
	if rootDir != "" {
		abs, err := filepath.Abs(rootDir)
		if err != nil {
			return "", fmt.Errorf("failed to resolve root: %w", err)
		}
		return abs, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return wd, nil
}
