package capability

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/fsagent/internal/config"
	"github.com/harun/fsagent/internal/mcptest"
	"github.com/harun/fsagent/pkg/resource"
	"github.com/harun/fsagent/pkg/toolexecutor"
)

func toolNames(defs []toolexecutor.ToolDefinition) []string {
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Name)
	}
	return names
}

func findTool(t *testing.T, defs []toolexecutor.ToolDefinition, name string) toolexecutor.ToolDefinition {
	t.Helper()
	for _, d := range defs {
		if d.Name == name {
			return d
		}
	}
	t.Fatalf("tool %s not found in %v", name, toolNames(defs))
	return toolexecutor.ToolDefinition{}
}

func TestFromConfig(t *testing.T) {
	t.Run("stdio", func(t *testing.T) {
		cfg := config.FilesystemSource("/srv")
		src, err := FromConfig(cfg, zerolog.Nop())
		require.NoError(t, err)

		assert.Equal(t, "filesystem", src.Name())
		assert.Equal(t, TransportStdio, src.Transport())

		stdio := src.(*StdioSource)
		assert.Equal(t, "npx", stdio.Command)
		assert.Equal(t, []string{"-y", "@modelcontextprotocol/server-filesystem", "/srv"}, stdio.Args)

		cfg.Args[2] = "/changed"
		assert.Equal(t, "/srv", stdio.Args[2])
	})

	t.Run("sse", func(t *testing.T) {
		cfg := config.RemoteSource("http://localhost:8080/sse")
		cfg.Headers = map[string]string{"Authorization": "Bearer x"}

		src, err := FromConfig(cfg, zerolog.Nop())
		require.NoError(t, err)
		assert.Equal(t, TransportSSE, src.Transport())

		sse := src.(*SSESource)
		assert.Equal(t, "http://localhost:8080/sse", sse.URL)
		assert.Equal(t, "Bearer x", sse.Headers["Authorization"])
	})

	t.Run("unknown transport", func(t *testing.T) {
		_, err := FromConfig(config.SourceConfig{Name: "x", Transport: "grpc"}, zerolog.Nop())
		assert.ErrorContains(t, err, `unknown transport "grpc"`)
	})
}

func TestStdioSource_Connect(t *testing.T) {
	src, err := FromConfig(mcptest.StdioSource("local", mcptest.ModeServe), zerolog.Nop())
	require.NoError(t, err)

	handle := resource.NewHandle()
	defer handle.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	scope := handle.Begin(src.Name())
	defs, err := src.Connect(ctx, scope)
	require.NoError(t, err)
	require.NoError(t, scope.Commit())

	assert.ElementsMatch(t, []string{"fail", "list_directory", "read_file"}, toolNames(defs))
	assert.Equal(t, []string{"local/client"}, handle.Names())

	read := findTool(t, defs, "read_file")
	assert.Equal(t, "local", read.Source)
	assert.Equal(t, "Read a file", read.Description)
	assert.Equal(t, "object", read.InputSchema["type"])
	assert.Contains(t, read.InputSchema["required"], "path")

	out, err := read.Handler(ctx, map[string]interface{}{"path": "/tmp/a"})
	require.NoError(t, err)
	assert.Equal(t, "local:contents of /tmp/a", out)

	out, err = findTool(t, defs, "list_directory").Handler(ctx, map[string]interface{}{"path": "/"})
	require.NoError(t, err)
	assert.Equal(t, "a.txt\nb.txt", out)

	_, err = findTool(t, defs, "fail").Handler(ctx, nil)
	assert.ErrorContains(t, err, "access denied")

	assert.NoError(t, handle.Close())

	_, err = read.Handler(ctx, map[string]interface{}{"path": "/tmp/a"})
	assert.Error(t, err)
}

func TestStdioSource_EmptyServer(t *testing.T) {
	src, err := FromConfig(mcptest.StdioSource("empty", mcptest.ModeEmpty), zerolog.Nop())
	require.NoError(t, err)

	handle := resource.NewHandle()
	defer handle.Close()

	scope := handle.Begin(src.Name())
	defs, err := src.Connect(context.Background(), scope)
	require.NoError(t, err)
	require.NoError(t, scope.Commit())
	assert.Empty(t, defs)
}

func TestStdioSource_SkipsInvalidSchema(t *testing.T) {
	src, err := FromConfig(mcptest.StdioSource("local", mcptest.ModeBad), zerolog.Nop())
	require.NoError(t, err)

	handle := resource.NewHandle()
	defer handle.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	scope := handle.Begin(src.Name())
	defs, err := src.Connect(ctx, scope)
	require.NoError(t, err)
	require.NoError(t, scope.Commit())

	assert.ElementsMatch(t, []string{"fail", "list_directory", "read_file"}, toolNames(defs))
	for _, d := range defs {
		assert.NoError(t, toolexecutor.Validate(d))
	}
}

func TestStdioSource_Failures(t *testing.T) {
	t.Run("command not found", func(t *testing.T) {
		src := &StdioSource{SourceName: "missing", Command: "/nonexistent/mcp-server"}

		handle := resource.NewHandle()
		scope := handle.Begin(src.Name())
		_, err := src.Connect(context.Background(), scope)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to start stdio transport")

		assert.NoError(t, scope.Rollback())
		assert.Equal(t, 0, handle.Len())
	})

	t.Run("no command", func(t *testing.T) {
		src := &StdioSource{SourceName: "blank"}
		_, err := src.Connect(context.Background(), resource.NewHandle().Begin("blank"))
		assert.ErrorContains(t, err, "no command configured")
	})

	t.Run("server never answers", func(t *testing.T) {
		src, err := FromConfig(mcptest.StdioSource("hang", mcptest.ModeHang), zerolog.Nop())
		require.NoError(t, err)

		handle := resource.NewHandle()
		scope := handle.Begin(src.Name())

		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err = src.Connect(ctx, scope)
		require.Error(t, err)
		assert.Less(t, time.Since(start), 10*time.Second)

		_ = scope.Rollback()
		assert.Equal(t, 0, handle.Len())
	})

	t.Run("server exits before handshake", func(t *testing.T) {
		src, err := FromConfig(mcptest.StdioSource("crash", mcptest.ModeCrash), zerolog.Nop())
		require.NoError(t, err)

		scope := resource.NewHandle().Begin(src.Name())
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		_, err = src.Connect(ctx, scope)
		require.Error(t, err)
		_ = scope.Rollback()
	})
}

func TestSSESource_Connect(t *testing.T) {
	url := mcptest.SSEServer(t, "remote")

	src, err := FromConfig(config.RemoteSource(url), zerolog.Nop())
	require.NoError(t, err)

	handle := resource.NewHandle()
	defer handle.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scope := handle.Begin(src.Name())
	defs, err := src.Connect(ctx, scope)
	require.NoError(t, err)
	require.NoError(t, scope.Commit())

	assert.ElementsMatch(t, []string{"fail", "list_directory", "read_file"}, toolNames(defs))
	for _, d := range defs {
		assert.Equal(t, "remote", d.Source)
	}

	out, err := findTool(t, defs, "read_file").Handler(ctx, map[string]interface{}{"path": "notes.md"})
	require.NoError(t, err)
	assert.Equal(t, "remote:contents of notes.md", out)

	assert.NoError(t, handle.Close())
}

func TestSSESource_Unreachable(t *testing.T) {
	src := &SSESource{SourceName: "remote", URL: mcptest.UnreachableURL(t)}

	handle := resource.NewHandle()
	scope := handle.Begin(src.Name())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := src.Connect(ctx, scope)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start sse transport")

	assert.NoError(t, scope.Rollback())
	assert.Equal(t, 0, handle.Len())
}

func TestSSESource_NoURL(t *testing.T) {
	src := &SSESource{SourceName: "remote"}
	_, err := src.Connect(context.Background(), resource.NewHandle().Begin("remote"))
	assert.ErrorContains(t, err, "no url configured")
}
