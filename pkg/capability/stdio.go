package capability

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/rs/zerolog"

	"github.com/harun/fsagent/pkg/resource"
	"github.com/harun/fsagent/pkg/toolexecutor"
)

// StdioSource is an MCP server spawned as a child process and spoken to over
// its stdin and stdout.
type StdioSource struct {
	SourceName string
	Command    string
	Args       []string
	// Env entries (KEY=VALUE) are appended to the parent environment
	Env    []string
	Logger zerolog.Logger
}

func (s *StdioSource) Name() string         { return s.SourceName }
func (s *StdioSource) Transport() Transport { return TransportStdio }

func (s *StdioSource) Connect(ctx context.Context, reg resource.Registrar) ([]toolexecutor.ToolDefinition, error) {
	if s.Command == "" {
		return nil, fmt.Errorf("source %s: no command configured", s.SourceName)
	}

	return connect(ctx, s.SourceName, TransportStdio, func(life context.Context) (*client.Client, error) {
		t := transport.NewStdioWithOptions(s.Command, s.Env, s.Args)
		if err := t.Start(life); err != nil {
			return nil, err
		}

		go s.drainStderr(t.Stderr())

		c := client.NewClient(t)
		if err := c.Start(life); err != nil {
			_ = c.Close()
			return nil, err
		}
		return c, nil
	}, reg, s.Logger)
}

// drainStderr forwards the server's stderr to the debug log until the pipe closes.
func (s *StdioSource) drainStderr(r io.Reader) {
	if r == nil {
		return
	}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		s.Logger.Debug().
			Str("source", s.SourceName).
			Str("stream", "stderr").
			Msg(scanner.Text())
	}
}
