package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport names accepted in SourceConfig.Transport
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

const (
	DefaultCredentialEnv = "GOOGLE_API_KEY"
	DefaultModel         = "gemini-2.0-flash"
	DefaultAgentName     = "file_system_agent"
	DefaultInstruction   = "Help the user explore and manage their local file system."
	DefaultRemoteURL     = "http://localhost:8080/sse"
	FilesystemServerPkg  = "@modelcontextprotocol/server-filesystem"
)

// Config represents the fsagent configuration
type Config struct {
	Agent   AgentConfig   `json:"agent" yaml:"agent" mapstructure:"agent"`
	Sources SourcesConfig `json:"sources" yaml:"sources" mapstructure:"sources"`
	Policy  PolicyConfig  `json:"policy" yaml:"policy" mapstructure:"policy"`
	Logging LoggingConfig `json:"logging" yaml:"logging" mapstructure:"logging"`
}

// AgentConfig describes the agent built once capabilities are aggregated.
// The credential itself is never stored, only the variable that holds it.
type AgentConfig struct {
	Name          string        `json:"name" yaml:"name" mapstructure:"name"`
	Model         string        `json:"model" yaml:"model" mapstructure:"model"`
	Instruction   string        `json:"instruction" yaml:"instruction" mapstructure:"instruction"`
	Provider      string        `json:"provider" yaml:"provider" mapstructure:"provider"` // gemini, openai, anthropic
	CredentialEnv string        `json:"credential_env" yaml:"credential_env" mapstructure:"credential_env"`
	Temperature   float64       `json:"temperature" yaml:"temperature" mapstructure:"temperature"`
	MaxTokens     int           `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxTurns      int           `json:"max_turns" yaml:"max_turns" mapstructure:"max_turns"`
	ToolTimeout   time.Duration `json:"tool_timeout" yaml:"tool_timeout" mapstructure:"tool_timeout"`

	ToolPolicy ToolPolicyConfig `json:"tool_policy" yaml:"tool_policy" mapstructure:"tool_policy"`
}

// ToolPolicyConfig restricts which aggregated tools the agent may use.
// Deny wins over Allow; an empty Allow list allows everything not denied.
type ToolPolicyConfig struct {
	Allow []string `json:"allow,omitempty" yaml:"allow,omitempty" mapstructure:"allow"`
	Deny  []string `json:"deny,omitempty" yaml:"deny,omitempty" mapstructure:"deny"`
}

// SourcesConfig lists the capability sources in declaration order
type SourcesConfig struct {
	Concurrent     bool           `json:"concurrent" yaml:"concurrent" mapstructure:"concurrent"`
	ConnectTimeout time.Duration  `json:"connect_timeout" yaml:"connect_timeout" mapstructure:"connect_timeout"`
	Servers        []SourceConfig `json:"servers" yaml:"servers" mapstructure:"servers"`
}

// SourceConfig describes one MCP server
type SourceConfig struct {
	Name      string            `json:"name" yaml:"name" mapstructure:"name"`
	Transport string            `json:"transport" yaml:"transport" mapstructure:"transport"` // stdio, sse
	Command   string            `json:"command,omitempty" yaml:"command,omitempty" mapstructure:"command"`
	Args      []string          `json:"args,omitempty" yaml:"args,omitempty" mapstructure:"args"`
	Env       []string          `json:"env,omitempty" yaml:"env,omitempty" mapstructure:"env"` // KEY=VALUE
	URL       string            `json:"url,omitempty" yaml:"url,omitempty" mapstructure:"url"`
	Headers   map[string]string `json:"headers,omitempty" yaml:"headers,omitempty" mapstructure:"headers"`
}

// PolicyConfig decides when a partially connected agent may start
type PolicyConfig struct {
	MinCapabilities int      `json:"min_capabilities" yaml:"min_capabilities" mapstructure:"min_capabilities"`
	RequiredSources []string `json:"required_sources" yaml:"required_sources" mapstructure:"required_sources"`
	RequireAll      bool     `json:"require_all" yaml:"require_all" mapstructure:"require_all"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" yaml:"level" mapstructure:"level"`
	File      string `json:"file" yaml:"file" mapstructure:"file"`
	Pretty    bool   `json:"pretty" yaml:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" yaml:"redaction" mapstructure:"redaction"`
	AuditFile string `json:"audit_file" yaml:"audit_file" mapstructure:"audit_file"`
}

// FilesystemSource returns the local filesystem server rooted at root
func FilesystemSource(root string) SourceConfig {
	return SourceConfig{
		Name:      "filesystem",
		Transport: TransportStdio,
		Command:   "npx",
		Args:      []string{"-y", FilesystemServerPkg, root},
	}
}

// RemoteSource returns the remote SSE server at url
func RemoteSource(url string) SourceConfig {
	return SourceConfig{
		Name:      "remote",
		Transport: TransportSSE,
		URL:       url,
	}
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Name:          DefaultAgentName,
			Model:         DefaultModel,
			Instruction:   DefaultInstruction,
			Provider:      "gemini",
			CredentialEnv: DefaultCredentialEnv,
			Temperature:   0.7,
			MaxTokens:     4096,
			MaxTurns:      8,
			ToolTimeout:   30 * time.Second,
		},
		Sources: SourcesConfig{
			ConnectTimeout: 30 * time.Second,
			Servers: []SourceConfig{
				FilesystemSource("."),
				RemoteSource(DefaultRemoteURL),
			},
		},
		Policy: PolicyConfig{
			MinCapabilities: 1,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Pretty:    true,
			Redaction: true,
		},
	}
}

// Source returns the configured source with the given name
func (c *Config) Source(name string) (SourceConfig, bool) {
	for _, s := range c.Sources.Servers {
		if s.Name == name {
			return s, true
		}
	}
	return SourceConfig{}, false
}

// String returns a YAML representation of the config
func (c *Config) String() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return string(data)
}
