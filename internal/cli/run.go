package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mvp-joe/jsdoctest/internal/report"
	"github.com/mvp-joe/jsdoctest/internal/watcher"
)

var (
	isolateFlag string
	timeoutFlag time.Duration
	quietFlag   bool
	watchFlag   bool
	jsonFlag    bool
)

var runCmd = &cobra.Command{
	Use:   "run [paths...]",
	Short: "Run the doctests of modules",
	Long: `Run evaluates every @example of the exported functions and classes in the
given module files and directories, and reports one result per example.

Each module's examples share one scope holding its exports. With --isolate,
every example instead runs in a fresh scope on a pool of workers: "worker"
uses goroutines in this process, "process" uses child processes.

Examples:
  # Run every module under the project root
  jsdoctest run

  # Run one module in isolated child processes
  jsdoctest run src/math.ts --isolate process

  # Rerun affected modules whenever a source file changes
  jsdoctest run src --watch
`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&isolateFlag, "isolate", "", "isolation mode: none, worker or process (default from config)")
	runCmd.Flags().DurationVar(&timeoutFlag, "timeout", 0, "interrupt an evaluation after this long (default from config, 0 waits forever)")
	runCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "disable progress bars and only print failures")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "watch for file changes and rerun affected modules")
	runCmd.Flags().BoolVar(&jsonFlag, "json", false, "print the result tree as JSON")
}

// runResult is the --json output.
type runResult struct {
	Summary report.Summary `json:"summary"`
	Results []*report.Node `json:"results"`
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(appOptions{isolate: isolateFlag, timeout: timeoutFlag})
	if err != nil {
		return err
	}
	defer a.Close()

	refs, err := a.discover(args)
	if err != nil {
		return err
	}

	r := &runner{
		app:      a,
		out:      cmd.OutOrStdout(),
		progress: NewCLIProgressReporter(cmd.ErrOrStderr(), quietFlag || jsonFlag),
	}

	summary, err := r.run(ctx, refs)
	if err != nil {
		return err
	}
	if watchFlag {
		return r.watch(ctx, args)
	}
	if summary.Failed > 0 {
		return errDoctestsFailed
	}
	return nil
}

type runner struct {
	app      *app
	out      io.Writer
	progress *CLIProgressReporter
}

// run runs refs once and prints the results.
func (r *runner) run(ctx context.Context, refs []string) (report.Summary, error) {
	runID := uuid.NewString()
	logger := r.app.logger.With(zap.String("run", runID))
	logger.Debug("run started", zap.Int("modules", len(refs)))

	tree := report.NewTree(report.WithObserver(r.progress.Observe))
	r.progress.OnRunStart(len(refs))
	start := time.Now()
	err := r.app.orch.RunAll(ctx, refs, tree, r.app.cfg.Runner.Concurrency)
	r.progress.OnRunComplete()

	if ctx.Err() != nil {
		return report.Summary{}, ctx.Err()
	}

	summary := tree.Summary()
	logger.Debug("run finished",
		zap.Int("passed", summary.Passed),
		zap.Int("failed", summary.Failed),
		zap.Duration("took", time.Since(start)),
		zap.Error(err))

	if jsonFlag {
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return summary, enc.Encode(&runResult{Summary: summary, Results: tree.Nodes()})
	}
	return summary, tree.Render(r.out, report.RenderOptions{FailuresOnly: quietFlag})
}

// watch reruns the modules affected by each batch of changes until ctx ends.
func (r *runner) watch(ctx context.Context, args []string) error {
	graph := watcher.NewImportGraph()
	r.record(ctx, graph, args)

	fw, err := watcher.NewFileWatcher(r.app.root, watcher.DefaultExtensions,
		watcher.WithIgnoreDir(r.app.finder.Ignored),
		watcher.WithLogger(r.app.logger))
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Stop()

	var (
		mu      sync.Mutex
		pending = make(map[string]bool)
		wake    = make(chan struct{}, 1)
	)
	err = fw.Start(ctx, func(files []string) {
		mu.Lock()
		for _, f := range files {
			pending[f] = true
		}
		mu.Unlock()
		select {
		case wake <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	fmt.Fprintln(r.out, "Watching for changes... (Ctrl+C to stop)")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-wake:
		}

		mu.Lock()
		changed := make([]string, 0, len(pending))
		for f := range pending {
			changed = append(changed, f)
		}
		pending = make(map[string]bool)
		mu.Unlock()

		fw.Pause()
		refs, err := r.affected(graph, args, changed)
		if err != nil {
			r.app.logger.Warn("failed to find affected modules", zap.Error(err))
		} else if len(refs) > 0 {
			fmt.Fprintf(r.out, "\n%d file(s) changed, rerunning %d module(s)\n", len(changed), len(refs))
			if _, err := r.run(ctx, refs); err != nil && ctx.Err() == nil {
				r.app.logger.Warn("run failed", zap.Error(err))
			}
			r.record(ctx, graph, refs)
		}
		fw.Resume()
	}
}

// affected returns the current modules that are, or import, a changed file.
// Deleted modules are dropped from the graph.
func (r *runner) affected(graph *watcher.ImportGraph, args []string, changed []string) ([]string, error) {
	refs, err := r.app.discover(args)
	if err != nil {
		return nil, err
	}
	for _, f := range changed {
		if _, err := os.Stat(f); err != nil {
			r.app.loader.Invalidate(f)
			if err := graph.Forget(f); err != nil {
				return nil, err
			}
		}
	}

	hit, err := graph.Affected(changed)
	if err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(hit)+len(changed))
	for _, h := range hit {
		want[h] = true
	}
	for _, c := range changed {
		want[filepath.Clean(c)] = true
	}

	var out []string
	for _, ref := range refs {
		if want[ref] {
			out = append(out, ref)
		}
	}
	return out, nil
}

// record stores the import edges of each module. The loader cache makes this
// cheap after an in-process run.
func (r *runner) record(ctx context.Context, graph *watcher.ImportGraph, refsOrArgs []string) {
	refs, err := r.app.discover(refsOrArgs)
	if err != nil {
		r.app.logger.Warn("failed to discover modules", zap.Error(err))
		return
	}
	for _, ref := range refs {
		mod, err := r.app.loader.Load(ctx, ref)
		if err != nil {
			r.app.logger.Debug("not recording imports", zap.String("module", ref), zap.Error(err))
			continue
		}
		if err := graph.Record(mod.Path, mod.Imports); err != nil {
			r.app.logger.Warn("failed to record imports", zap.String("module", ref), zap.Error(err))
		}
	}
}
