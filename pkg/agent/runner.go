package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/fsagent/internal/observability"
	"github.com/harun/fsagent/internal/tracing"
)

const tracerName = "fsagent.agent"

// retryBaseDelay is the first backoff step between retried model calls
var retryBaseDelay = time.Second

// Run answers one user prompt. The model may call tools up to MaxTurns times
// before it must produce a final answer. Tool failures are reported back to
// the model, never returned as errors.
func (a *Agent) Run(ctx context.Context, provider LLMProvider, params RunParams) (RunResult, error) {
	if provider == nil {
		return RunResult{}, fmt.Errorf("provider is required")
	}
	if params.Prompt == "" {
		return RunResult{}, fmt.Errorf("prompt cannot be empty")
	}

	ctx = tracing.NewAgentRunContext(ctx, a.cfg.Name)
	ctx, span := tracing.StartSpan(ctx, tracerName, "agent.run",
		attribute.String("agent", a.cfg.Name),
		attribute.String("provider", provider.Provider()),
		attribute.String("model", a.cfg.Model),
	)
	logger := tracing.LoggerFromContext(ctx, a.logger)

	start := time.Now()
	result, err := a.executeWithTools(ctx, provider, params)
	observability.RecordAgentRun(provider.Provider(), time.Since(start), err == nil)
	span.SetAttributes(attribute.Int("turns", result.Turns))
	tracing.EndSpan(span, err)

	if err != nil {
		logger.Error().Err(err).Str("provider", provider.Provider()).Msg("Agent run failed")
		return result, err
	}

	logger.Debug().
		Int("turns", result.Turns).
		Int("tool_calls", len(result.ToolCalls)).
		Dur("duration", time.Since(start)).
		Msg("Agent run completed")
	return result, nil
}

// executeWithTools handles the tool execution loop
func (a *Agent) executeWithTools(ctx context.Context, provider LLMProvider, params RunParams) (RunResult, error) {
	maxTurns := a.cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 10
	}

	messages := make([]Message, 0, len(params.History)+1)
	messages = append(messages, params.History...)
	messages = append(messages, Message{Role: "user", Content: params.Prompt})

	tools := a.toolSpecs()
	result := RunResult{}

	for turn := 0; turn < maxTurns; turn++ {
		select {
		case <-ctx.Done():
			result.Aborted = true
			result.Messages = messages
			return result, ctx.Err()
		default:
		}

		response, err := a.callLLMWithRetry(ctx, provider, messages, tools)
		if err != nil {
			return result, err
		}
		result.Turns = turn + 1
		result.Usage = result.Usage.add(response.Usage)

		if len(response.ToolCalls) == 0 {
			messages = append(messages, Message{Role: "assistant", Content: response.Content})
			result.Response = response.Content
			result.Messages = messages
			return result, nil
		}

		messages = append(messages, Message{
			Role:      "assistant",
			Content:   response.Content,
			ToolCalls: response.ToolCalls,
		})

		for _, call := range response.ToolCalls {
			res := a.CallTool(ctx, call.Name, call.Parameters)
			msg := Message{Role: "tool", ToolCallID: call.ID}
			if res.Success {
				msg.Content = formatOutput(res.Output)
			} else {
				msg.Content = res.Error
				msg.IsError = true
			}
			messages = append(messages, msg)
		}

		result.ToolCalls = append(result.ToolCalls, response.ToolCalls...)
	}

	result.Messages = messages
	return result, ErrMaxTurns
}

// callLLMWithRetry calls the model with exponential backoff on retryable errors
func (a *Agent) callLLMWithRetry(ctx context.Context, provider LLMProvider, messages []Message, tools []ToolSpec) (*LLMResponse, error) {
	maxRetries := a.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	request := LLMRequest{
		Model:        a.cfg.Model,
		Messages:     messages,
		Tools:        tools,
		Temperature:  a.cfg.Temperature,
		MaxTokens:    a.cfg.MaxTokens,
		SystemPrompt: a.cfg.Instruction,
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		response, err := provider.Call(ctx, request)
		if err == nil {
			return response, nil
		}
		lastErr = err

		if !IsRetryableError(err) {
			return nil, err
		}
		if attempt == maxRetries-1 {
			break
		}

		delay := retryBaseDelay * time.Duration(1<<attempt)
		a.logger.Info().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Err(err).
			Msg("Retrying model call after error")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", maxRetries, lastErr)
}

func formatOutput(output interface{}) string {
	switch v := output.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	}
	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Sprintf("%v", output)
	}
	return string(data)
}
