package bootstrap

import (
	"os"
	"testing"

	"github.com/harun/fsagent/internal/mcptest"
)

func TestMain(m *testing.M) {
	mcptest.RunIfHelper()
	os.Exit(m.Run())
}
