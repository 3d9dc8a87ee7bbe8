package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/jsdoctest/internal/config"
	"github.com/mvp-joe/jsdoctest/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for running doctests",
	Long: `Start the Model Context Protocol (MCP) server that lets coding assistants
run and list the JSDoc examples of this project.

The MCP server:
- Provides the run_doctests and list_doctests tools
- Resolves tool paths relative to the project root
- Communicates via stdio (standard MCP transport)

Example:
  jsdoctest mcp`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	a, err := newApp(appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	// isolate=true needs a pool even when the configured mode is in-process.
	if a.service == nil {
		svc, err := a.newService(config.IsolateWorker)
		if err != nil {
			return err
		}
		a.service = svc
	}

	fmt.Fprintf(os.Stderr, "jsdoctest MCP Server\n")
	fmt.Fprintf(os.Stderr, "Project Root: %s\n\n", a.root)

	server, err := mcp.NewServer(&mcp.ServerConfig{
		Version:     Version,
		Root:        a.root,
		Suite:       a.newOrchestrator(nil),
		Isolated:    a.newOrchestrator(a.service),
		Finder:      a.finder,
		Concurrency: a.cfg.Runner.Concurrency,
		Logger:      a.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	return server.Serve(cmd.Context())
}
