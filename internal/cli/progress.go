package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/mvp-joe/jsdoctest/internal/report"
)

// CLIProgressReporter advances a progress bar as modules finish.
type CLIProgressReporter struct {
	quiet bool
	out   io.Writer
	bar   *progressbar.ProgressBar
}

// NewCLIProgressReporter creates a reporter writing to out. A quiet reporter
// ignores every event.
func NewCLIProgressReporter(out io.Writer, quiet bool) *CLIProgressReporter {
	return &CLIProgressReporter{quiet: quiet, out: out}
}

// OnRunStart shows a bar for totalModules modules.
func (c *CLIProgressReporter) OnRunStart(totalModules int) {
	if c.quiet {
		return
	}
	c.bar = progressbar.NewOptions(totalModules,
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionSetDescription("Running doctests"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("modules/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(c.out)
		}),
	)
}

// Observe is a report.Tree observer. It counts finished top-level steps,
// which are modules.
func (c *CLIProgressReporter) Observe(e report.Event) {
	if c.quiet || c.bar == nil || len(e.Path) != 1 {
		return
	}
	_ = c.bar.Add(1)
}

// OnRunComplete finishes the bar.
func (c *CLIProgressReporter) OnRunComplete() {
	if c.quiet || c.bar == nil {
		return
	}
	_ = c.bar.Finish()
	c.bar = nil
}
