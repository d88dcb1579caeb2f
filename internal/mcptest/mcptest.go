// Package mcptest provides MCP server fixtures for tests: an in-process SSE
// server and a stdio server run by re-executing the test binary.
package mcptest

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/harun/fsagent/internal/config"
)

const (
	helperEnv = "FSAGENT_MCP_HELPER"
	modeEnv   = "FSAGENT_MCP_HELPER_MODE"
)

// Helper process modes
const (
	ModeServe = "serve" // serve the fixture tools
	ModeEmpty = "empty" // serve no tools
	ModeHang  = "hang"  // read stdin, never answer
	ModeCrash = "crash" // exit before the handshake
	ModeBad   = "bad"   // serve the fixture tools plus one with an invalid schema
)

// BadSchema is the input schema of the tool served in ModeBad
const BadSchema = `{"type":"object","properties":{"q":{"type":"text"}}}`

// NewServer returns a server exposing read_file, list_directory and fail.
func NewServer(name string) *server.MCPServer {
	s := server.NewMCPServer(name, "1.0.0", server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("read_file",
		mcp.WithDescription("Read a file"),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(fmt.Sprintf("%s:contents of %s", name, req.GetString("path", ""))), nil
	})

	s.AddTool(mcp.NewTool("list_directory",
		mcp.WithDescription("List a directory"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Directory path")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent("a.txt"),
				mcp.NewTextContent("b.txt"),
			},
		}, nil
	})

	s.AddTool(mcp.NewTool("fail",
		mcp.WithDescription("Always fails"),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultError("access denied"), nil
	})

	return s
}

// RunIfHelper turns the current process into a stdio MCP server when it was
// started by StdioSource. Call it first thing in TestMain.
func RunIfHelper() {
	if os.Getenv(helperEnv) != "1" {
		return
	}

	switch os.Getenv(modeEnv) {
	case ModeHang:
		_, _ = io.Copy(io.Discard, os.Stdin)
	case ModeCrash:
		os.Exit(3)
	case ModeBad:
		s := NewServer("local")
		s.AddTool(mcp.NewToolWithRawSchema("search", "Search with a broken schema", []byte(BadSchema)),
			func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return mcp.NewToolResultText("unreachable"), nil
			})
		_ = server.ServeStdio(s)
	case ModeEmpty:
		_ = server.ServeStdio(server.NewMCPServer("empty", "1.0.0", server.WithToolCapabilities(false)))
	default:
		_ = server.ServeStdio(NewServer("local"))
	}
	os.Exit(0)
}

// StdioSource describes a stdio source served by the test binary in mode.
func StdioSource(name, mode string) config.SourceConfig {
	return config.SourceConfig{
		Name:      name,
		Transport: config.TransportStdio,
		Command:   os.Args[0],
		Args:      []string{"-test.run=^$"},
		Env:       []string{helperEnv + "=1", modeEnv + "=" + mode},
	}
}

// SSEServer starts an SSE MCP server for the test and returns its endpoint URL.
func SSEServer(t testing.TB, name string) string {
	t.Helper()
	ts := server.NewTestServer(NewServer(name))
	t.Cleanup(ts.Close)
	return ts.URL + "/sse"
}

// UnreachableURL returns an SSE URL nothing listens on.
func UnreachableURL(t testing.TB) string {
	t.Helper()
	ts := httptest.NewServer(nil)
	url := ts.URL + "/sse"
	ts.Close()
	return url
}
