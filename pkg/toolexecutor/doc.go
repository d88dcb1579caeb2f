// Package toolexecutor registers and executes the capabilities an agent can call.
//
// Invariants:
// - Tool names are unique; a conflicting source tool is renamed <source>_<name>.
// - Registration order is preserved and is the order tools are offered to models.
// - Parameters are schema-validated before execution.
//
// Usage:
//
//	exec := toolexecutor.New()
//	_ = exec.RegisterTool(toolexecutor.ToolDefinition{
//		Name:        "echo",
//		Description: "Echo input",
//		InputSchema: map[string]interface{}{
//			"type":       "object",
//			"properties": map[string]interface{}{"text": map[string]interface{}{"type": "string"}},
//			"required":   []string{"text"},
//		},
//		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) { return params["text"], nil },
//	})
package toolexecutor
