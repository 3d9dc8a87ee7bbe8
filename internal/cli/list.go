package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/jsdoctest/internal/doctest"
)

var listJSONFlag bool

var listCmd = &cobra.Command{
	Use:   "list [paths...]",
	Short: "List the runnable examples without running them",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSONFlag, "json", false, "print definitions as JSON")
}

// listedModule is one module in the list output.
type listedModule struct {
	Path        string               `json:"path"`
	Definitions []doctest.Definition `json:"definitions"`
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp(appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	refs, err := a.discover(args)
	if err != nil {
		return err
	}

	modules := make([]listedModule, 0, len(refs))
	for _, ref := range refs {
		defs, err := a.orch.Plan(cmd.Context(), ref)
		if err != nil {
			return err
		}
		modules = append(modules, listedModule{Path: ref, Definitions: defs})
	}

	out := cmd.OutOrStdout()
	if listJSONFlag {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(modules)
	}
	return printListing(out, a.root, modules)
}

func printListing(w io.Writer, root string, modules []listedModule) error {
	var b strings.Builder
	total := 0
	for _, m := range modules {
		if len(m.Definitions) == 0 {
			continue
		}
		name := m.Path
		if rel, err := filepath.Rel(root, m.Path); err == nil && !strings.HasPrefix(rel, "..") {
			name = rel
		}
		b.WriteString(name + "\n")
		for _, def := range m.Definitions {
			fmt.Fprintf(&b, "  %s (line %d)\n", def.SymbolName, def.Location.Line)
			for _, ex := range def.Examples {
				for _, line := range strings.Split(ex.Raw, "\n") {
					b.WriteString("    " + line + "\n")
				}
				b.WriteString("\n")
				total++
			}
		}
	}
	fmt.Fprintf(&b, "%d example(s) in %d module(s)\n", total, len(modules))
	_, err := io.WriteString(w, b.String())
	return err
}
