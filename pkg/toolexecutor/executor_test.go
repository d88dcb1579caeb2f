package toolexecutor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"message": map[string]interface{}{
				"type":        "string",
				"description": "Message to echo",
			},
		},
		"required": []string{"message"},
	}
}

func echoTool(name string) ToolDefinition {
	return ToolDefinition{
		Name:        name,
		Description: "Echo tool",
		InputSchema: echoSchema(),
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return params["message"], nil
		},
	}
}

func TestToolExecutor_RegisterTool(t *testing.T) {
	te := New()

	err := te.RegisterTool(echoTool("echo"))
	require.NoError(t, err)

	tool := te.GetTool("echo")
	require.NotNil(t, tool)
	assert.Equal(t, "echo", tool.Name)
	assert.Len(t, te.Tools(), 1)

	assert.Error(t, te.RegisterTool(echoTool("echo")), "duplicate names are rejected")
}

func TestToolExecutor_RegisterTool_InvalidDefinition(t *testing.T) {
	te := New()

	tests := []struct {
		name string
		def  ToolDefinition
	}{
		{
			name: "empty name",
			def: ToolDefinition{
				Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) { return nil, nil },
			},
		},
		{
			name: "nil handler",
			def:  ToolDefinition{Name: "test"},
		},
		{
			name: "broken schema",
			def: ToolDefinition{
				Name:        "test",
				InputSchema: map[string]interface{}{"type": 12},
				Handler:     func(ctx context.Context, params map[string]interface{}) (interface{}, error) { return nil, nil },
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, te.RegisterTool(tt.def))
		})
	}
}

func TestToolExecutor_RegisterSourceTool_Conflict(t *testing.T) {
	te := New()

	name, err := te.RegisterSourceTool("local", echoTool("read_file"))
	require.NoError(t, err)
	assert.Equal(t, "read_file", name)

	name, err = te.RegisterSourceTool("remote", echoTool("read_file"))
	require.NoError(t, err)
	assert.Equal(t, "remote_read_file", name)

	renamed := te.GetTool("remote_read_file")
	require.NotNil(t, renamed)
	assert.Equal(t, "remote", renamed.Source)
	assert.Equal(t, "read_file", renamed.OriginalName)

	_, err = te.RegisterSourceTool("remote", echoTool("read_file"))
	assert.Error(t, err, "prefixed name already taken")

	defs := te.Tools()
	require.Len(t, defs, 2)
	assert.Equal(t, "read_file", defs[0].Name)
	assert.Equal(t, "remote_read_file", defs[1].Name)
}

func TestToolExecutor_Tools_PreservesOrder(t *testing.T) {
	te := New()
	for _, n := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, te.RegisterTool(echoTool(n)))
	}

	defs := te.Tools()
	require.Len(t, defs, 3)
	assert.Equal(t, "zeta", defs[0].Name)
	assert.Equal(t, "alpha", defs[1].Name)
	assert.Equal(t, "mid", defs[2].Name)
}

func TestToolExecutor_Execute_Success(t *testing.T) {
	te := New()
	require.NoError(t, te.RegisterTool(echoTool("echo")))

	result := te.Execute(context.Background(), "echo", map[string]interface{}{"message": "hello"}, nil)

	assert.True(t, result.Success)
	assert.Equal(t, "hello", result.Output)
	assert.Empty(t, result.Error)
}

func TestToolExecutor_Execute_Failures(t *testing.T) {
	te := New()
	require.NoError(t, te.RegisterTool(echoTool("echo")))
	require.NoError(t, te.RegisterTool(ToolDefinition{
		Name: "broken",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return nil, errors.New("disk on fire")
		},
	}))
	require.NoError(t, te.RegisterTool(ToolDefinition{
		Name: "slow",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return "late", nil
			}
		},
	}))
	require.NoError(t, te.RegisterTool(ToolDefinition{
		Name: "panics",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			panic("unexpected")
		},
	}))

	t.Run("unknown tool", func(t *testing.T) {
		result := te.Execute(context.Background(), "missing", nil, nil)
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "tool not found")
	})

	t.Run("missing required parameter", func(t *testing.T) {
		result := te.Execute(context.Background(), "echo", map[string]interface{}{}, nil)
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "parameter validation failed")
	})

	t.Run("wrong parameter type", func(t *testing.T) {
		result := te.Execute(context.Background(), "echo", map[string]interface{}{"message": 42}, nil)
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "parameter validation failed")
	})

	t.Run("handler error", func(t *testing.T) {
		result := te.Execute(context.Background(), "broken", nil, nil)
		assert.False(t, result.Success)
		assert.Equal(t, "disk on fire", result.Error)
	})

	t.Run("timeout", func(t *testing.T) {
		result := te.Execute(context.Background(), "slow", nil, &ExecutionContext{Timeout: 50 * time.Millisecond})
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "timeout")
	})

	t.Run("panic", func(t *testing.T) {
		result := te.Execute(context.Background(), "panics", nil, nil)
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "panicked")
	})
}

func TestToolExecutor_Execute_Policy(t *testing.T) {
	te := New()
	require.NoError(t, te.RegisterTool(echoTool("echo")))

	policy := &ToolPolicy{Deny: []string{"echo"}}
	result := te.Execute(context.Background(), "echo", map[string]interface{}{"message": "x"}, &ExecutionContext{ToolPolicy: policy, AgentID: "a"})

	assert.False(t, result.Success)
	assert.Equal(t, true, result.Metadata["policy_violation"])
}

func TestToolExecutor_Execute_Truncates(t *testing.T) {
	te := New()
	require.NoError(t, te.RegisterTool(ToolDefinition{
		Name: "big",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return strings.Repeat("x", maxOutputSize+100), nil
		},
	}))

	result := te.Execute(context.Background(), "big", nil, nil)
	require.True(t, result.Success)
	assert.True(t, result.Truncated)
	assert.Contains(t, result.Output, "[output truncated]")
}

func TestTruncateOutput_KeepsRunesWhole(t *testing.T) {
	// one ASCII byte shifts every two-byte rune so the limit lands mid-rune
	out, truncated := truncateOutput("x" + strings.Repeat("é", maxOutputSize))
	require.True(t, truncated)

	str, ok := out.(string)
	require.True(t, ok)
	assert.True(t, utf8.ValidString(str))

	body := strings.TrimSuffix(str, "\n... [output truncated]")
	assert.Equal(t, maxOutputSize-1, len(body))

	out, truncated = truncateOutput("short")
	assert.False(t, truncated)
	assert.Equal(t, "short", out)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(echoTool("echo")))

	bad := echoTool("search")
	bad.InputSchema = map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"q": map[string]interface{}{"type": "text"},
		},
	}
	err := Validate(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile schema for search")

	noHandler := echoTool("echo")
	noHandler.Handler = nil
	assert.ErrorContains(t, Validate(noHandler), "handler cannot be nil")
}

func TestNameSet_Claim(t *testing.T) {
	sourced := func(source, name string) ToolDefinition {
		def := echoTool(name)
		def.Source = source
		return def
	}

	names := NameSet{}
	require.NoError(t, names.Claim([]ToolDefinition{sourced("local", "read_file"), sourced("local", "search")}))
	require.NoError(t, names.Claim([]ToolDefinition{sourced("remote", "read_file")}))
	assert.Contains(t, names, "remote_read_file")

	// the second tool fails, so the first one must not be reserved either
	err := names.Claim([]ToolDefinition{sourced("remote", "grep"), sourced("remote", "read_file")})
	assert.ErrorContains(t, err, "tool name conflict for read_file from source remote")
	assert.NotContains(t, names, "grep")
	assert.Len(t, names, 3)

	assert.Error(t, names.Claim([]ToolDefinition{echoTool("search")}), "sourceless tools are never renamed")
}

func TestToolPolicy_IsToolAllowed(t *testing.T) {
	tests := []struct {
		name    string
		policy  *ToolPolicy
		tool    string
		allowed bool
	}{
		{"nil policy", nil, "any", true},
		{"empty policy", &ToolPolicy{}, "any", true},
		{"explicit allow", &ToolPolicy{Allow: []string{"read_file"}}, "read_file", true},
		{"not in allow list", &ToolPolicy{Allow: []string{"read_file"}}, "write_file", false},
		{"wildcard allow", &ToolPolicy{Allow: []string{"*"}}, "write_file", true},
		{"deny overrides allow", &ToolPolicy{Allow: []string{"*"}, Deny: []string{"write_file"}}, "write_file", false},
		{"wildcard deny", &ToolPolicy{Deny: []string{"*"}}, "read_file", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.policy.IsToolAllowed(tt.tool))
		})
	}
}

func TestParametersFromSchema(t *testing.T) {
	params := ParametersFromSchema(map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path":    map[string]interface{}{"type": "string", "description": "File path"},
			"dry_run": map[string]interface{}{"type": "boolean", "default": false},
		},
		"required": []interface{}{"path"},
	})

	require.Len(t, params, 2)
	assert.Equal(t, "dry_run", params[0].Name)
	assert.False(t, params[0].Required)
	assert.Equal(t, false, params[0].Default)
	assert.Equal(t, "path", params[1].Name)
	assert.True(t, params[1].Required)
	assert.Equal(t, "File path", params[1].Description)

	assert.Nil(t, ParametersFromSchema(nil))
}

func TestToolExecutor_Execute_PassesExecContext(t *testing.T) {
	te := New()
	var seen *ExecutionContext
	require.NoError(t, te.RegisterTool(ToolDefinition{
		Name: "whoami",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			seen = ExecContextFromContext(ctx)
			return "ok", nil
		},
	}))

	execCtx := &ExecutionContext{AgentID: "file_system_agent", Timeout: time.Second}
	result := te.Execute(context.Background(), "whoami", nil, execCtx)
	require.True(t, result.Success)
	assert.Same(t, execCtx, seen)

	result = te.Execute(context.Background(), "whoami", nil, nil)
	require.True(t, result.Success)
	assert.Nil(t, seen)
}
