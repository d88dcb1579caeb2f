package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/harun/fsagent/internal/config"
	"github.com/harun/fsagent/internal/mcptest"
)

func TestMain(m *testing.M) {
	mcptest.RunIfHelper()
	os.Exit(m.Run())
}

// resetFlags restores flag variables between executions of the shared root command
func resetFlags() {
	cfgFile, logLevel, rootDir, remoteURL = "", "", "", ""
	runPrompt, metricsAddr = "", ""
	toolsOutput = "table"

	// Subcommands keep the context of their first execution unless cleared.
	for _, c := range rootCmd.Commands() {
		c.SetContext(nil) //nolint:staticcheck
	}

	cmds := append([]*cobra.Command{rootCmd}, rootCmd.Commands()...)
	for _, c := range cmds {
		for _, name := range []string{"help", "version"} {
			if f := c.Flags().Lookup(name); f != nil {
				_ = f.Value.Set("false")
				f.Changed = false
			}
		}
	}
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags()

	cmd := GetRootCmd()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

// writeConfig writes a config whose only source is the test binary serving
// the fixture tools over stdio
func writeConfig(t *testing.T, servers ...config.SourceConfig) string {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Sources.ConnectTimeout = 10 * time.Second
	cfg.Sources.Servers = servers
	if len(servers) == 0 {
		cfg.Sources.Servers = []config.SourceConfig{mcptest.StdioSource("local", mcptest.ModeServe)}
	}
	cfg.Logging.Level = "error"
	cfg.Logging.Pretty = false

	path := filepath.Join(t.TempDir(), "fsagent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg.String()), 0o600))
	return path
}

func withCredential(t *testing.T, value string) {
	t.Helper()
	prev := getenv
	getenv = func(key string) string {
		if key == config.DefaultCredentialEnv {
			return value
		}
		return ""
	}
	t.Cleanup(func() { getenv = prev })
}
