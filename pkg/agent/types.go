package agent

import (
	"errors"
	"strings"
	"time"

	"github.com/harun/fsagent/pkg/toolexecutor"
)

// Config configures agent behavior
type Config struct {
	Name        string        `json:"name"`
	Model       string        `json:"model"`
	Instruction string        `json:"instruction"`
	Provider    string        `json:"provider,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	MaxTurns    int           `json:"max_turns,omitempty"`
	MaxRetries  int           `json:"max_retries,omitempty"`
	ToolTimeout time.Duration `json:"tool_timeout,omitempty"`

	// ToolPolicy hides denied tools from the model and refuses to run them
	ToolPolicy *toolexecutor.ToolPolicy `json:"tool_policy,omitempty"`
}

// RunParams contains input parameters for one user turn
type RunParams struct {
	Prompt string `json:"prompt"`
	// History holds earlier turns, oldest first, without the system message
	History []Message `json:"history,omitempty"`
}

// RunResult contains output from one user turn
type RunResult struct {
	Response  string      `json:"response"`
	ToolCalls []ToolCall  `json:"tool_calls,omitempty"`
	Usage     *TokenUsage `json:"usage,omitempty"`
	Turns     int         `json:"turns"`
	// Messages is History extended with this turn, ready for the next call
	Messages []Message `json:"messages,omitempty"`
	Aborted  bool      `json:"aborted,omitempty"`
}

// ToolCall represents a tool invocation
type ToolCall struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (u *TokenUsage) add(other *TokenUsage) *TokenUsage {
	if other == nil {
		return u
	}
	if u == nil {
		u = &TokenUsage{}
	}
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	return u
}

// Message represents a message in the conversation
type Message struct {
	Role       string     `json:"role"` // system, user, assistant, tool
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	IsError    bool       `json:"is_error,omitempty"`
}

// ToolSpec is the provider-facing description of a tool
type ToolSpec struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

var (
	// ErrNoTools is returned by New when the tool list is empty
	ErrNoTools = errors.New("agent requires at least one tool")
	// ErrMaxTurns is returned when the model keeps calling tools past MaxTurns
	ErrMaxTurns = errors.New("maximum tool execution turns exceeded")
)

// DefaultConfig returns default agent configuration
func DefaultConfig() Config {
	return Config{
		Name:        "file_system_agent",
		Model:       "gemini-2.0-flash",
		Instruction: "Help the user explore and manage their local file system.",
		Provider:    "gemini",
		Temperature: 0.7,
		MaxTokens:   4096,
		MaxTurns:    8,
		MaxRetries:  3,
		ToolTimeout: 30 * time.Second,
	}
}

// IsRetryableError checks if an error should be retried
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"econnreset", "etimedout", "connection reset",
		"429", "rate limit", "resource_exhausted",
		"500", "502", "503", "504", "overloaded",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
