// Package mcp exposes doctest runs to MCP clients over stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/mvp-joe/jsdoctest/internal/doctest"
	"github.com/mvp-joe/jsdoctest/internal/report"
)

// Suite plans and runs the doctests of modules.
type Suite interface {
	Plan(ctx context.Context, moduleRef string) ([]doctest.Definition, error)
	RunAll(ctx context.Context, refs []string, step report.Step, concurrency int) error
}

// ModuleFinder expands files and directories into module files.
type ModuleFinder interface {
	Discover(paths []string) ([]string, error)
}

// ServerConfig wires the server to the runner.
type ServerConfig struct {
	Name    string
	Version string
	// Root resolves relative tool paths.
	Root   string
	Suite  Suite
	Finder ModuleFinder
	// Isolated runs examples under worker isolation. Nil rejects isolate=true.
	Isolated    Suite
	Concurrency int
	Logger      *zap.Logger
}

func (cfg *ServerConfig) logger() *zap.Logger {
	if cfg.Logger == nil {
		return zap.NewNop()
	}
	return cfg.Logger
}

// Server manages the MCP server lifecycle.
type Server struct {
	config *ServerConfig
	mcp    *server.MCPServer
}

// NewServer creates a server with the run_doctests and list_doctests tools.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil || cfg.Suite == nil {
		return nil, errors.New("a doctest suite is required")
	}
	if cfg.Finder == nil {
		return nil, errors.New("a module finder is required")
	}
	name := cfg.Name
	if name == "" {
		name = "jsdoctest"
	}

	mcpServer := server.NewMCPServer(
		name,
		cfg.Version,
		server.WithToolCapabilities(true),
	)
	AddRunDoctestsTool(mcpServer, cfg)
	AddListDoctestsTool(mcpServer, cfg)

	return &Server{config: cfg, mcp: mcpServer}, nil
}

// Serve serves MCP on stdio and blocks until shutdown.
func (s *Server) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		s.config.logger().Info("starting MCP server on stdio", zap.String("root", s.config.Root))
		if err := server.ServeStdio(s.mcp); err != nil {
			errCh <- fmt.Errorf("MCP server error: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-sigCh:
		s.config.logger().Info("received shutdown signal, stopping")
		return nil
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
