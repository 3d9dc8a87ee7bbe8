package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/mvp-joe/jsdoctest/internal/doctest"
	"github.com/mvp-joe/jsdoctest/internal/report"
)

const maxConcurrency = 64

// RunDoctestsResponse is the JSON body returned by run_doctests.
type RunDoctestsResponse struct {
	Modules int            `json:"modules"`
	Summary report.Summary `json:"summary"`
	Results []*report.Node `json:"results"`
}

// ModuleDoctests lists the runnable definitions of one module.
type ModuleDoctests struct {
	Path        string               `json:"path"`
	Definitions []doctest.Definition `json:"definitions"`
	Error       string               `json:"error,omitempty"`
}

// ListDoctestsResponse is the JSON body returned by list_doctests.
type ListDoctestsResponse struct {
	Modules  []ModuleDoctests `json:"modules"`
	Examples int              `json:"examples"`
}

// AddRunDoctestsTool registers the run_doctests tool with an MCP server.
func AddRunDoctestsTool(s *server.MCPServer, cfg *ServerConfig) {
	tool := mcp.NewTool(
		"run_doctests",
		mcp.WithDescription(`Run the @example blocks in the JSDoc comments of JavaScript and TypeScript modules.

Each example is an invocation followed by "// => expected". The invocation and the expected expression are both evaluated and their settled results compared, so "// => throw new TypeError(...)" asserts a failure.

Returns a tree of module, symbol and example steps with a passed/failed summary. Failing examples carry the error message with actual and expected values.`),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Module file or directory, relative to the project root. Directories are searched for modules matching the configured include patterns.")),
		mcp.WithBoolean("isolate",
			mcp.Description("Evaluate every example in a fresh worker scope instead of one shared scope per module (default: false)")),
		mcp.WithBoolean("failures_only",
			mcp.Description("Only return failed steps (default: false)")),
		mcp.WithNumber("concurrency",
			mcp.Description("Maximum number of modules run at once (1-64, default: configured value)")),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createRunDoctestsHandler(cfg))
}

// AddListDoctestsTool registers the list_doctests tool with an MCP server.
func AddListDoctestsTool(s *server.MCPServer, cfg *ServerConfig) {
	tool := mcp.NewTool(
		"list_doctests",
		mcp.WithDescription("List the documented exports and their runnable examples without running them."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Module file or directory, relative to the project root")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createListDoctestsHandler(cfg))
}

type runDoctestsArgs struct {
	Path         string `json:"path"`
	Isolate      bool   `json:"isolate"`
	FailuresOnly bool   `json:"failures_only"`
	Concurrency  int    `json:"concurrency"`
}

type listDoctestsArgs struct {
	Path string `json:"path"`
}

func createRunDoctestsHandler(cfg *ServerConfig) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := runDoctestsArgs{Concurrency: cfg.Concurrency}
		if errResult := parseArguments(request, &args, &args.Path); errResult != nil {
			return errResult, nil
		}

		suite := cfg.Suite
		if args.Isolate {
			if cfg.Isolated == nil {
				return mcp.NewToolResultError("isolation is not available on this server"), nil
			}
			suite = cfg.Isolated
		}

		refs, err := cfg.resolve(args.Path)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		tree := report.NewTree()
		if err := suite.RunAll(ctx, refs, tree, clamp(args.Concurrency, 1, maxConcurrency)); err != nil {
			cfg.logger().Debug("doctests failed", zap.String("path", args.Path), zap.Error(err))
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		results := tree.Nodes()
		if args.FailuresOnly {
			results = report.Failures(results)
		}
		return jsonResult(&RunDoctestsResponse{
			Modules: len(refs),
			Summary: tree.Summary(),
			Results: results,
		})
	}
}

func createListDoctestsHandler(cfg *ServerConfig) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args listDoctestsArgs
		if errResult := parseArguments(request, &args, &args.Path); errResult != nil {
			return errResult, nil
		}

		refs, err := cfg.resolve(args.Path)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		response := &ListDoctestsResponse{Modules: make([]ModuleDoctests, 0, len(refs))}
		for _, ref := range refs {
			entry := ModuleDoctests{Path: ref}
			defs, err := cfg.Suite.Plan(ctx, ref)
			if err != nil {
				entry.Error = err.Error()
			}
			entry.Definitions = defs
			for _, def := range defs {
				response.Examples += len(def.Examples)
			}
			response.Modules = append(response.Modules, entry)
		}
		return jsonResult(response)
	}
}

// parseArguments binds the request arguments into target and checks that the
// required path is set. It returns a tool error result on failure.
func parseArguments[T any](request mcp.CallToolRequest, target *T, path *string) *mcp.CallToolResult {
	argsMap, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments format")
	}
	if err := bindArguments(argsMap, target); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err))
	}
	if *path == "" {
		return mcp.NewToolResultError("path parameter is required")
	}
	return nil
}

func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// resolve expands a path relative to the project root into module files.
func (cfg *ServerConfig) resolve(path string) ([]string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(cfg.Root, path)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("path not found: %s", path)
	}
	refs, err := cfg.Finder.Discover([]string{path})
	if err != nil {
		return nil, fmt.Errorf("failed to discover modules: %w", err)
	}
	return refs, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonData, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}
