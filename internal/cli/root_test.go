package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	t.Run("version flag", func(t *testing.T) {
		out, _, err := execute(t, "", "--version")
		require.NoError(t, err)

		assert.Contains(t, out, "fsagent version")
		assert.Contains(t, out, GetVersion())
	})

	t.Run("help flag", func(t *testing.T) {
		out, _, err := execute(t, "", "--help")
		require.NoError(t, err)

		assert.Contains(t, out, "fsagent")
		assert.Contains(t, out, "MCP")
		for _, sub := range []string{"run", "tools", "config", "status"} {
			assert.Contains(t, out, sub)
		}
	})

	t.Run("global flags", func(t *testing.T) {
		cmd := GetRootCmd()

		for _, name := range []string{"config", "log-level", "root", "remote-url"} {
			flag := cmd.PersistentFlags().Lookup(name)
			require.NotNil(t, flag, name)
			assert.Equal(t, "", flag.DefValue)
		}
	})
}

func TestGetVersion(t *testing.T) {
	version := GetVersion()
	assert.NotEmpty(t, version)
	assert.True(t, strings.HasPrefix(version, "0."))
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	resetFlags()
	t.Setenv("HOME", t.TempDir())

	root := t.TempDir()
	rootDir = root
	remoteURL = "http://mcp.internal:9000/sse"
	logLevel = "debug"
	t.Cleanup(resetFlags)

	cfg, err := loadConfig()
	require.NoError(t, err)

	local, ok := cfg.Source("filesystem")
	require.True(t, ok)
	assert.Equal(t, root, local.Args[len(local.Args)-1])

	remote, ok := cfg.Source("remote")
	require.True(t, ok)
	assert.Equal(t, "http://mcp.internal:9000/sse", remote.URL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfig_InvalidOverride(t *testing.T) {
	resetFlags()
	t.Setenv("HOME", t.TempDir())
	remoteURL = "ftp://nowhere"
	t.Cleanup(resetFlags)

	_, err := loadConfig()
	assert.ErrorContains(t, err, "invalid configuration")
}
