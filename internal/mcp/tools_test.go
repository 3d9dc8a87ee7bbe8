package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mvp-joe/jsdoctest/internal/docmodel"
	"github.com/mvp-joe/jsdoctest/internal/files"
	"github.com/mvp-joe/jsdoctest/internal/isolation"
	"github.com/mvp-joe/jsdoctest/internal/loader"
	"github.com/mvp-joe/jsdoctest/internal/orchestrator"
	"github.com/mvp-joe/jsdoctest/internal/report"
)

// Test Plan for the MCP tools:
// - run_doctests on a directory runs every discovered module and reports a summary
// - failures_only prunes passing modules and examples
// - isolate=true uses the isolated suite, and is rejected when none is configured
// - Missing or invalid arguments and unknown paths return tool errors
// - Arguments sent as strings are coerced
// - list_doctests reports definitions and counts examples without running them
// - NewServer requires a suite and a finder

func testConfig(t *testing.T) *ServerConfig {
	t.Helper()
	logger := zaptest.NewLogger(t)

	l, err := loader.New(logger)
	require.NoError(t, err)
	t.Cleanup(l.Close)

	finder, err := files.NewDiscovery([]string{"**/*.js", "**/*.ts"}, nil)
	require.NoError(t, err)

	return &ServerConfig{
		Root:        filepath.Join("..", "..", "testdata"),
		Suite:       orchestrator.New(docmodel.NewParser(), l, orchestrator.WithLogger(logger)),
		Finder:      finder,
		Concurrency: 2,
		Logger:      logger,
	}
}

func call(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	result, err := handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: args},
	})
	require.NoError(t, err, "should not return system error")
	require.NotNil(t, result)
	return result
}

func decode(t *testing.T, result *mcp.CallToolResult, v any) {
	t.Helper()
	require.False(t, result.IsError, "should not be error result")
	textContent, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok, "should be text content")
	require.NoError(t, json.Unmarshal([]byte(textContent.Text), v))
}

func errorText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.True(t, result.IsError, "should be error result")
	textContent, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok, "should be text content")
	return textContent.Text
}

func TestRunDoctests_Directory(t *testing.T) {
	t.Parallel()

	handler := createRunDoctestsHandler(testConfig(t))

	var response RunDoctestsResponse
	decode(t, call(t, handler, map[string]interface{}{"path": "modules"}), &response)

	assert.Equal(t, 4, response.Modules)
	assert.Equal(t, report.Summary{Passed: 4, Failed: 3}, response.Summary)
	assert.Len(t, response.Results, 4)
}

func TestRunDoctests_FailuresOnly(t *testing.T) {
	t.Parallel()

	handler := createRunDoctestsHandler(testConfig(t))

	var response RunDoctestsResponse
	decode(t, call(t, handler, map[string]interface{}{
		"path":          "modules",
		"failures_only": true,
		"concurrency":   1.0,
	}), &response)

	require.Len(t, response.Results, 1)
	assert.Equal(t, "failing.js", filepath.Base(response.Results[0].Name))
	assert.Equal(t, report.Summary{Passed: 4, Failed: 3}, response.Summary, "summary still counts every example")
	for _, symbol := range response.Results[0].Children {
		assert.Equal(t, report.StatusFailed, symbol.Status)
	}
}

func TestRunDoctests_Isolated(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)

	t.Run("not configured", func(t *testing.T) {
		handler := createRunDoctestsHandler(cfg)
		text := errorText(t, call(t, handler, map[string]interface{}{"path": "modules/add.js", "isolate": true}))
		assert.Contains(t, text, "isolation is not available")
	})

	t.Run("worker pool", func(t *testing.T) {
		l, err := loader.New(nil)
		require.NoError(t, err)
		t.Cleanup(l.Close)
		pool := isolation.NewPool(2, isolation.NewHandler(l, 0, nil), nil)
		t.Cleanup(func() { _ = pool.Close() })

		isolated := *cfg
		isolated.Isolated = orchestrator.New(docmodel.NewParser(), l, orchestrator.WithService(pool))

		var response RunDoctestsResponse
		decode(t, call(t, createRunDoctestsHandler(&isolated), map[string]interface{}{
			"path":    "modules/add.js",
			"isolate": true,
		}), &response)
		assert.Equal(t, report.Summary{Passed: 1}, response.Summary)
	})
}

func TestRunDoctests_Errors(t *testing.T) {
	t.Parallel()

	handler := createRunDoctestsHandler(testConfig(t))

	result, err := handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: "not a map"},
	})
	require.NoError(t, err)
	assert.Contains(t, errorText(t, result), "invalid arguments format")

	assert.Contains(t, errorText(t, call(t, handler, map[string]interface{}{})), "path parameter is required")
	assert.Contains(t, errorText(t, call(t, handler, map[string]interface{}{"path": "nope"})), "path not found")
	assert.Contains(t, errorText(t, call(t, handler, map[string]interface{}{"path": "modules", "isolate": "maybe"})), "invalid arguments")
}

func TestRunDoctests_StringArguments(t *testing.T) {
	t.Parallel()

	handler := createRunDoctestsHandler(testConfig(t))

	var response RunDoctestsResponse
	decode(t, call(t, handler, map[string]interface{}{
		"path":          "modules",
		"failures_only": "true",
		"concurrency":   "200",
	}), &response)
	assert.Len(t, response.Results, 1)
}

func TestListDoctests(t *testing.T) {
	t.Parallel()

	handler := createListDoctestsHandler(testConfig(t))

	var response ListDoctestsResponse
	decode(t, call(t, handler, map[string]interface{}{"path": "scenarios"}), &response)

	assert.Len(t, response.Modules, 6)
	assert.Equal(t, 14, response.Examples)

	var class ModuleDoctests
	for _, m := range response.Modules {
		if filepath.Base(m.Path) == "sample-passing-class.js" {
			class = m
		}
	}
	require.Len(t, class.Definitions, 2)
	assert.Equal(t, "add", class.Definitions[0].SymbolName)
	assert.Empty(t, class.Error)
}

func TestNewServer(t *testing.T) {
	t.Parallel()

	_, err := NewServer(nil)
	assert.Error(t, err)

	cfg := testConfig(t)
	noFinder := *cfg
	noFinder.Finder = nil
	_, err = NewServer(&noFinder)
	assert.Error(t, err)

	s, err := NewServer(cfg)
	require.NoError(t, err)
	assert.NotNil(t, s)
}
