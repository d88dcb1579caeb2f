package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/harun/fsagent/internal/config"
	"github.com/harun/fsagent/internal/logger"
	"github.com/harun/fsagent/internal/observability"
	"github.com/harun/fsagent/pkg/agent"
	"github.com/harun/fsagent/pkg/bootstrap"
	"github.com/harun/fsagent/pkg/resource"
)

const version = "0.1.0"

var (
	cfgFile   string
	logLevel  string
	rootDir   string
	remoteURL string
)

// Test seams
var (
	getenv      = os.Getenv
	newProvider = func(provider, apiKey string) (agent.LLMProvider, error) {
		return (&agent.ProviderFactory{}).NewProvider(provider, apiKey)
	}
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fsagent",
	Short: "fsagent - file system agent over MCP",
	Long: `fsagent starts a conversational agent whose tools come from MCP servers:
a local file system server spawned over stdio and a remote server reached over
SSE. A source that cannot be reached is skipped; the agent starts with the
tools of the sources that answered.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.fsagent/fsagent.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config file")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "directory served by the local file system source")
	rootCmd.PersistentFlags().StringVar(&remoteURL, "remote-url", "", "SSE endpoint of the remote source")

	// Version template
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}

// loadConfig loads the config file and applies the global flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	if rootDir != "" {
		if err := cfg.SetRoot(rootDir); err != nil {
			return nil, err
		}
	}
	if remoteURL != "" {
		cfg.SetRemoteURL(remoteURL)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging builds the process logger and the audit log from cfg
func setupLogging(cfg *config.Config, out io.Writer) (*logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
		Output:    out,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	if cfg.Logging.AuditFile != "" {
		if err := observability.InitAuditLogger(cfg.Logging.AuditFile); err != nil {
			_ = log.Close()
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
	}
	return log, nil
}

// session is an initialized agent together with what must be closed after it
type session struct {
	cfg    *config.Config
	log    *logger.Logger
	agent  *agent.Agent
	handle *resource.Handle
}

// openSession loads the config and initializes the agent. The returned
// initializer is usable for Report even when err is non-nil.
func openSession(ctx context.Context, cmd *cobra.Command) (*session, *bootstrap.Initializer, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	log, err := setupLogging(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}

	in := bootstrap.New(cfg,
		bootstrap.WithLogger(log.Component("bootstrap")),
		bootstrap.WithGetenv(getenv),
	)

	a, h, err := in.Initialize(ctx)
	if err != nil {
		_ = observability.GetAuditLogger().Close()
		_ = log.Close()
		return nil, in, err
	}

	return &session{cfg: cfg, log: log, agent: a, handle: h}, in, nil
}

// close releases the agent's connections and the log files
func (s *session) close(ctx context.Context) error {
	err := bootstrap.Release(context.WithoutCancel(ctx), s.agent.Name(), s.handle, s.log.Zerolog())
	_ = observability.GetAuditLogger().Close()
	_ = s.log.Close()
	return err
}
