package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/harun/fsagent/pkg/toolexecutor"
)

// Agent is a named model configuration bound to a fixed set of tools
type Agent struct {
	cfg      Config
	executor *toolexecutor.ToolExecutor
	tools    []toolexecutor.ToolDefinition
	logger   zerolog.Logger
}

// Option configures an Agent
type Option func(*Agent)

// WithLogger sets the agent logger
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// New builds an agent over tools. Tools keep their order; a name already taken
// by an earlier tool is prefixed with the later tool's source.
func New(cfg Config, tools []toolexecutor.ToolDefinition, opts ...Option) (*Agent, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, fmt.Errorf("agent name cannot be empty")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("model cannot be empty")
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if cfg.MaxTokens < 0 || cfg.MaxTurns < 0 || cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("limits cannot be negative")
	}
	if len(tools) == 0 {
		return nil, ErrNoTools
	}

	a := &Agent{
		cfg:      cfg,
		executor: toolexecutor.New(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}

	for _, def := range tools {
		if def.Source == "" {
			if err := a.executor.RegisterTool(def); err != nil {
				return nil, err
			}
			continue
		}
		if _, err := a.executor.RegisterSourceTool(def.Source, def); err != nil {
			return nil, err
		}
	}
	for _, def := range a.executor.Tools() {
		if !cfg.ToolPolicy.IsToolAllowed(def.Name) {
			a.logger.Debug().Str("tool", def.Name).Msg("Tool hidden by policy")
			continue
		}
		a.tools = append(a.tools, def)
	}
	if len(a.tools) == 0 {
		return nil, ErrNoTools
	}

	return a, nil
}

func (a *Agent) Name() string        { return a.cfg.Name }
func (a *Agent) Model() string       { return a.cfg.Model }
func (a *Agent) Instruction() string { return a.cfg.Instruction }
func (a *Agent) Config() Config      { return a.cfg }

// Tools returns a copy of the registered tools in registration order
func (a *Agent) Tools() []toolexecutor.ToolDefinition {
	out := make([]toolexecutor.ToolDefinition, len(a.tools))
	copy(out, a.tools)
	return out
}

// ToolNames returns the registered tool names in registration order
func (a *Agent) ToolNames() []string {
	names := make([]string, len(a.tools))
	for i, t := range a.tools {
		names[i] = t.Name
	}
	return names
}

// ToolCount returns the number of registered tools
func (a *Agent) ToolCount() int {
	return len(a.tools)
}

// CallTool executes one tool with the agent's tool timeout
func (a *Agent) CallTool(ctx context.Context, name string, params map[string]interface{}) toolexecutor.ToolResult {
	return a.executor.Execute(ctx, name, params, &toolexecutor.ExecutionContext{
		AgentID:    a.cfg.Name,
		Timeout:    a.cfg.ToolTimeout,
		ToolPolicy: a.cfg.ToolPolicy,
	})
}

// toolSpecs describes the tools for a provider request
func (a *Agent) toolSpecs() []ToolSpec {
	specs := make([]ToolSpec, len(a.tools))
	for i, t := range a.tools {
		specs[i] = ToolSpec{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Schema(),
		}
	}
	return specs
}
