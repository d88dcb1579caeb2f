package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	validProviders = []string{"gemini", "openai", "anthropic"}
	validLevels    = []string{"debug", "info", "warn", "error"}
)

// Validate checks if the configuration is valid. All problems are reported
// together.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Agent.Name) == "" {
		errs = append(errs, fmt.Errorf("agent.name is required"))
	}
	if strings.TrimSpace(c.Agent.Model) == "" {
		errs = append(errs, fmt.Errorf("agent.model is required"))
	}
	if strings.TrimSpace(c.Agent.CredentialEnv) == "" {
		errs = append(errs, fmt.Errorf("agent.credential_env is required"))
	}
	if !contains(validProviders, c.Agent.Provider) {
		errs = append(errs, fmt.Errorf("invalid agent.provider %q (must be one of: %s)", c.Agent.Provider, strings.Join(validProviders, ", ")))
	}
	if c.Agent.Temperature < 0 || c.Agent.Temperature > 2 {
		errs = append(errs, fmt.Errorf("agent.temperature must be between 0 and 2, got %g", c.Agent.Temperature))
	}
	if c.Agent.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("agent.max_tokens must be >= 0"))
	}
	if c.Agent.MaxTurns < 0 {
		errs = append(errs, fmt.Errorf("agent.max_turns must be >= 0"))
	}
	if c.Agent.ToolTimeout < 0 {
		errs = append(errs, fmt.Errorf("agent.tool_timeout must be >= 0"))
	}
	for _, name := range append(append([]string(nil), c.Agent.ToolPolicy.Allow...), c.Agent.ToolPolicy.Deny...) {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, fmt.Errorf("agent.tool_policy entries cannot be empty"))
			break
		}
	}

	if c.Sources.ConnectTimeout < 0 {
		errs = append(errs, fmt.Errorf("sources.connect_timeout must be >= 0"))
	}
	seen := make(map[string]bool)
	for i, s := range c.Sources.Servers {
		if err := validateSource(s); err != nil {
			errs = append(errs, fmt.Errorf("source %d: %w", i, err))
		}
		if s.Name != "" {
			if seen[s.Name] {
				errs = append(errs, fmt.Errorf("source %d: duplicate name %q", i, s.Name))
			}
			seen[s.Name] = true
		}
	}

	if c.Policy.MinCapabilities < 0 {
		errs = append(errs, fmt.Errorf("policy.min_capabilities must be >= 0"))
	}
	for _, name := range c.Policy.RequiredSources {
		if !seen[name] {
			errs = append(errs, fmt.Errorf("policy.required_sources names unknown source %q", name))
		}
	}

	if !contains(validLevels, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("invalid logging.level %q (must be one of: %s)", c.Logging.Level, strings.Join(validLevels, ", ")))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func validateSource(s SourceConfig) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("name is required")
	}
	switch s.Transport {
	case TransportStdio:
		if strings.TrimSpace(s.Command) == "" {
			return fmt.Errorf("%s: command is required for stdio transport", s.Name)
		}
		for _, kv := range s.Env {
			if !strings.Contains(kv, "=") {
				return fmt.Errorf("%s: env entry %q must be KEY=VALUE", s.Name, kv)
			}
		}
	case TransportSSE:
		u, err := url.Parse(s.URL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("%s: invalid sse url %q", s.Name, s.URL)
		}
	default:
		return fmt.Errorf("%s: unknown transport %q (must be stdio or sse)", s.Name, s.Transport)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
