package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "FSAGENT"

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// DefaultPath returns $HOME/.fsagent/fsagent.yaml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".fsagent", "fsagent.yaml"), nil
}

// Load reads defaults, then the config file if one exists, then FSAGENT_*
// environment variables, and validates the result.
func (l *Loader) Load() (*Config, error) {
	explicit := l.configPath != ""
	configPath := l.configPath
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if ext := strings.TrimPrefix(filepath.Ext(configPath), "."); ext == "" {
			v.SetConfigType("yaml")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if explicit || !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config file %s: %w", configPath, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if !v.IsSet("sources.servers") {
		cfg.Sources.Servers = DefaultConfig().Sources.Servers
	}

	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}
	p, err := DefaultPath()
	if err != nil {
		return ""
	}
	return p
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}

// setDefaults registers every scalar key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("agent.name", cfg.Agent.Name)
	v.SetDefault("agent.model", cfg.Agent.Model)
	v.SetDefault("agent.instruction", cfg.Agent.Instruction)
	v.SetDefault("agent.provider", cfg.Agent.Provider)
	v.SetDefault("agent.credential_env", cfg.Agent.CredentialEnv)
	v.SetDefault("agent.temperature", cfg.Agent.Temperature)
	v.SetDefault("agent.max_tokens", cfg.Agent.MaxTokens)
	v.SetDefault("agent.max_turns", cfg.Agent.MaxTurns)
	v.SetDefault("agent.tool_timeout", cfg.Agent.ToolTimeout)

	v.SetDefault("sources.concurrent", cfg.Sources.Concurrent)
	v.SetDefault("sources.connect_timeout", cfg.Sources.ConnectTimeout)

	v.SetDefault("policy.min_capabilities", cfg.Policy.MinCapabilities)
	v.SetDefault("policy.required_sources", cfg.Policy.RequiredSources)
	v.SetDefault("policy.require_all", cfg.Policy.RequireAll)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.pretty", cfg.Logging.Pretty)
	v.SetDefault("logging.redaction", cfg.Logging.Redaction)
	v.SetDefault("logging.audit_file", cfg.Logging.AuditFile)
}

// Resolve fills source defaults and makes the filesystem root absolute.
func (c *Config) Resolve() error {
	for i := range c.Sources.Servers {
		s := &c.Sources.Servers[i]
		s.Transport = strings.ToLower(strings.TrimSpace(s.Transport))
		if s.Transport == "" {
			if s.URL != "" {
				s.Transport = TransportSSE
			} else {
				s.Transport = TransportStdio
			}
		}
		if s.Transport == TransportSSE && s.URL == "" {
			s.URL = DefaultRemoteURL
		}
		if s.Transport == TransportStdio && isFilesystemServer(*s) {
			last := len(s.Args) - 1
			if s.Args[last] != FilesystemServerPkg && !filepath.IsAbs(s.Args[last]) {
				abs, err := filepath.Abs(s.Args[last])
				if err != nil {
					return fmt.Errorf("source %s: failed to resolve root: %w", s.Name, err)
				}
				s.Args[last] = abs
			}
		}
	}
	return nil
}

// SetRoot points every filesystem server at root
func (c *Config) SetRoot(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve root %s: %w", root, err)
	}
	for i := range c.Sources.Servers {
		s := &c.Sources.Servers[i]
		if s.Transport != TransportStdio || !isFilesystemServer(*s) {
			continue
		}
		if s.Args[len(s.Args)-1] == FilesystemServerPkg {
			s.Args = append(s.Args, abs)
		} else {
			s.Args[len(s.Args)-1] = abs
		}
	}
	return nil
}

// SetRemoteURL points every SSE source at url
func (c *Config) SetRemoteURL(url string) {
	for i := range c.Sources.Servers {
		if c.Sources.Servers[i].Transport == TransportSSE {
			c.Sources.Servers[i].URL = url
		}
	}
}

func isFilesystemServer(s SourceConfig) bool {
	for _, a := range s.Args {
		if a == FilesystemServerPkg {
			return true
		}
	}
	return false
}
