package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	rootDir string
	verbose bool
)

// errDoctestsFailed makes the process exit non-zero after the failures were
// already reported.
var errDoctestsFailed = errors.New("doctests failed")

var rootCmd = &cobra.Command{
	Use:   "jsdoctest",
	Short: "Run the @example blocks of JSDoc comments as tests",
	Long: `jsdoctest extracts the @example blocks from the JSDoc comments of exported
JavaScript and TypeScript functions and classes, evaluates them, and compares
the result with the expected value written after "// =>".

Configuration is read from .jsdoctest/config.yml in the project root and
JSDOCTEST_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errDoctestsFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "project root containing .jsdoctest/ (default is the working directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
