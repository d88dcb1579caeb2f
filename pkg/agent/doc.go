// Package agent is the conversational agent built on top of aggregated
// capabilities.
//
// Invariants:
// - An Agent always owns at least one tool; New rejects an empty list.
// - An Agent is immutable after New and safe for concurrent Run calls.
// - Tool calls route through toolexecutor only.
// - The Agent never owns connections; whoever built the tools releases them.
//
// Usage:
//
//	a, _ := agent.New(agent.DefaultConfig(), tools)
//	provider, _ := (&agent.ProviderFactory{}).NewProvider("gemini", apiKey)
//	result, _ := a.Run(ctx, provider, agent.RunParams{Prompt: "list my files"})
//	_ = result
package agent
