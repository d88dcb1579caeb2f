package toolexecutor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/harun/fsagent/internal/observability"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

const maxOutputSize = 10 * 1024

// ToolPolicy defines which tools an agent can use
type ToolPolicy struct {
	Allow []string `json:"allow" yaml:"allow"` // List of allowed tools (* for all)
	Deny  []string `json:"deny" yaml:"deny"`   // List of denied tools (overrides allow)
}

// IsToolAllowed checks if a tool is allowed by the policy
func (tp *ToolPolicy) IsToolAllowed(toolName string) bool {
	if tp == nil {
		return true
	}

	for _, denied := range tp.Deny {
		if denied == toolName || denied == "*" {
			return false
		}
	}

	// An empty allow list means everything not denied
	if len(tp.Allow) == 0 {
		return true
	}
	for _, allowed := range tp.Allow {
		if allowed == toolName || allowed == "*" {
			return true
		}
	}

	return false
}

// ToolDefinition describes one capability and the handler that runs it
type ToolDefinition struct {
	Name        string                 `json:"name" yaml:"name"`
	Description string                 `json:"description" yaml:"description"`
	InputSchema map[string]interface{} `json:"input_schema,omitempty" yaml:"input_schema,omitempty"`
	Source      string                 `json:"source,omitempty" yaml:"source,omitempty"`
	// OriginalName is the name the source knows the tool by when it was renamed on conflict
	OriginalName string      `json:"original_name,omitempty" yaml:"original_name,omitempty"`
	Handler      ToolHandler `json:"-" yaml:"-"`
}

// Parameters flattens the input schema for display
func (d ToolDefinition) Parameters() []ToolParameter {
	return ParametersFromSchema(d.InputSchema)
}

// Schema returns the input schema, defaulting to an empty object schema
func (d ToolDefinition) Schema() map[string]interface{} {
	if len(d.InputSchema) == 0 {
		return map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		}
	}
	return d.InputSchema
}

// ToolHandler is the function signature for tool execution
type ToolHandler func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// ExecutionContext provides runtime information for tool execution
type ExecutionContext struct {
	SessionKey string
	Timeout    time.Duration
	AgentID    string
	ToolPolicy *ToolPolicy
}

// ToolResult represents the result of a tool execution
type ToolResult struct {
	Success   bool                   `json:"success"`
	Output    interface{}            `json:"output,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Truncated bool                   `json:"truncated,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// ToolExecutor manages and executes tools
type ToolExecutor struct {
	tools   map[string]*ToolDefinition
	schemas map[string]*gojsonschema.Schema
	order   []string
	mu      sync.RWMutex
}

// New creates a new ToolExecutor
func New() *ToolExecutor {
	return &ToolExecutor{
		tools:   make(map[string]*ToolDefinition),
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// RegisterTool registers a new tool. Duplicate names are rejected.
func (te *ToolExecutor) RegisterTool(def ToolDefinition) error {
	schema, err := prepare(def)
	if err != nil {
		return err
	}

	te.mu.Lock()
	defer te.mu.Unlock()

	if _, exists := te.tools[def.Name]; exists {
		return fmt.Errorf("tool already registered: %s", def.Name)
	}
	te.store(def, schema)

	log.Debug().Str("tool", def.Name).Str("source", def.Source).Msg("Tool registered")

	return nil
}

// RegisterSourceTool registers a tool coming from a capability source. A name
// already taken by another tool is prefixed with the source name. The name the
// tool was finally registered under is returned.
func (te *ToolExecutor) RegisterSourceTool(source string, def ToolDefinition) (string, error) {
	schema, err := prepare(def)
	if err != nil {
		return "", err
	}

	te.mu.Lock()
	defer te.mu.Unlock()

	originalName := def.Name
	toolName, err := resolveName(source, originalName, func(name string) bool {
		_, exists := te.tools[name]
		return exists
	})
	if err != nil {
		return "", err
	}
	if toolName != originalName {
		log.Warn().
			Str("original_name", originalName).
			Str("prefixed_name", toolName).
			Str("source", source).
			Msg("Tool name conflict resolved by prefixing with source name")
		if def.OriginalName == "" {
			def.OriginalName = originalName
		}
	}

	def.Name = toolName
	def.Source = source
	te.store(def, schema)

	return toolName, nil
}

// Validate reports whether def could be registered: it needs a name, a
// handler and an input schema that compiles.
func Validate(def ToolDefinition) error {
	_, err := prepare(def)
	return err
}

func prepare(def ToolDefinition) (*gojsonschema.Schema, error) {
	if err := validateToolDefinition(def); err != nil {
		return nil, fmt.Errorf("invalid tool definition: %w", err)
	}
	schema, err := compileSchema(def)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema for %s: %w", def.Name, err)
	}
	return schema, nil
}

// resolveName picks the name a source tool registers under. Sourceless tools
// are never renamed.
func resolveName(source, name string, taken func(string) bool) (string, error) {
	if !taken(name) {
		return name, nil
	}
	if source == "" {
		return "", fmt.Errorf("tool already registered: %s", name)
	}
	prefixed := source + "_" + name
	if taken(prefixed) {
		return "", fmt.Errorf("tool name conflict for %s from source %s", name, source)
	}
	return prefixed, nil
}

// NameSet tracks the tool names handed out so far, following the same
// conflict rules as RegisterSourceTool.
type NameSet map[string]struct{}

// Claim reserves a name for every tool in defs. When any tool cannot get a
// name nothing is reserved.
func (s NameSet) Claim(defs []ToolDefinition) error {
	claimed := make(map[string]struct{}, len(defs))
	taken := func(name string) bool {
		if _, ok := s[name]; ok {
			return true
		}
		_, ok := claimed[name]
		return ok
	}
	for _, def := range defs {
		name, err := resolveName(def.Source, def.Name, taken)
		if err != nil {
			return err
		}
		claimed[name] = struct{}{}
	}
	for name := range claimed {
		s[name] = struct{}{}
	}
	return nil
}

func (te *ToolExecutor) store(def ToolDefinition, schema *gojsonschema.Schema) {
	te.tools[def.Name] = &def
	te.schemas[def.Name] = schema
	te.order = append(te.order, def.Name)
}

// GetTool returns a tool definition by name
func (te *ToolExecutor) GetTool(name string) *ToolDefinition {
	te.mu.RLock()
	defer te.mu.RUnlock()

	return te.tools[name]
}

// Tools returns copies of all tool definitions in registration order
func (te *ToolExecutor) Tools() []ToolDefinition {
	te.mu.RLock()
	defer te.mu.RUnlock()

	defs := make([]ToolDefinition, 0, len(te.order))
	for _, name := range te.order {
		defs = append(defs, *te.tools[name])
	}
	return defs
}

// Execute executes a tool with the given parameters
func (te *ToolExecutor) Execute(ctx context.Context, toolName string, params map[string]interface{}, execCtx *ExecutionContext) ToolResult {
	startTime := time.Now()

	if execCtx != nil && execCtx.ToolPolicy != nil && !execCtx.ToolPolicy.IsToolAllowed(toolName) {
		log.Warn().
			Str("tool", toolName).
			Str("agent_id", execCtx.AgentID).
			Msg("Tool execution blocked by policy")
		return ToolResult{
			Success: false,
			Error:   fmt.Sprintf("tool '%s' is not allowed by agent policy", toolName),
			Metadata: map[string]interface{}{
				"policy_violation": true,
				"agent_id":         execCtx.AgentID,
			},
		}
	}

	te.mu.RLock()
	tool := te.tools[toolName]
	schema := te.schemas[toolName]
	te.mu.RUnlock()

	if tool == nil {
		log.Error().Str("tool", toolName).Msg("Tool not found")
		return ToolResult{
			Success: false,
			Error:   fmt.Sprintf("tool not found: %s", toolName),
		}
	}

	if params == nil {
		params = map[string]interface{}{}
	}

	if err := validateParameters(schema, params); err != nil {
		log.Error().Str("tool", toolName).Err(err).Msg("Parameter validation failed")
		observability.RecordToolExecution(toolName, time.Since(startTime), false)
		return ToolResult{
			Success: false,
			Error:   fmt.Sprintf("parameter validation failed: %v", err),
		}
	}

	log.Debug().Str("tool", toolName).Str("source", tool.Source).Msg("Executing tool")

	timeout := 30 * time.Second
	if execCtx != nil && execCtx.Timeout > 0 {
		timeout = execCtx.Timeout
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result interface{}
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		result, err := tool.Handler(ContextWithExecContext(timeoutCtx, execCtx), params)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		duration := time.Since(startTime)
		if out.err != nil && errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			return timeoutResult(toolName, duration, timeout)
		}
		if out.err != nil {
			log.Error().
				Str("tool", toolName).
				Dur("duration", duration).
				Err(out.err).
				Msg("Tool execution failed")
			observability.RecordToolExecution(toolName, duration, false)

			return ToolResult{
				Success: false,
				Error:   out.err.Error(),
				Metadata: map[string]interface{}{
					"duration": duration.Milliseconds(),
				},
			}
		}

		output, truncated := truncateOutput(out.result)

		log.Debug().
			Str("tool", toolName).
			Dur("duration", duration).
			Bool("truncated", truncated).
			Msg("Tool execution completed")
		observability.RecordToolExecution(toolName, duration, true)

		return ToolResult{
			Success:   true,
			Output:    output,
			Truncated: truncated,
			Metadata: map[string]interface{}{
				"duration": duration.Milliseconds(),
			},
		}

	case <-timeoutCtx.Done():
		return timeoutResult(toolName, time.Since(startTime), timeout)
	}
}

func timeoutResult(toolName string, duration, timeout time.Duration) ToolResult {
	log.Error().
		Str("tool", toolName).
		Dur("duration", duration).
		Msg("Tool execution timeout")
	observability.RecordToolExecution(toolName, duration, false)

	return ToolResult{
		Success: false,
		Error:   fmt.Sprintf("tool execution timeout after %v", timeout),
		Metadata: map[string]interface{}{
			"duration": duration.Milliseconds(),
		},
	}
}

func validateToolDefinition(def ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}
	return nil
}

func compileSchema(def ToolDefinition) (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(def.Schema()))
}

func validateParameters(schema *gojsonschema.Schema, params map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return err
	}

	if !result.Valid() {
		errs := []string{}
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return fmt.Errorf("validation errors: %v", errs)
	}

	return nil
}

func truncateOutput(output interface{}) (interface{}, bool) {
	str := fmt.Sprintf("%v", output)

	if len(str) <= maxOutputSize {
		return output, false
	}

	log.Warn().
		Int("original", len(str)).
		Int("truncated", maxOutputSize).
		Msg("Output truncated")

	cut := maxOutputSize
	for cut > 0 && !utf8.RuneStart(str[cut]) {
		cut--
	}
	return str[:cut] + "\n... [output truncated]", true
}
