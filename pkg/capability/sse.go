package capability

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/rs/zerolog"

	"github.com/harun/fsagent/pkg/resource"
	"github.com/harun/fsagent/pkg/toolexecutor"
)

// SSESource is a remote MCP server reached over HTTP server-sent events
type SSESource struct {
	SourceName string
	URL        string
	Headers    map[string]string
	Logger     zerolog.Logger
}

func (s *SSESource) Name() string         { return s.SourceName }
func (s *SSESource) Transport() Transport { return TransportSSE }

func (s *SSESource) Connect(ctx context.Context, reg resource.Registrar) ([]toolexecutor.ToolDefinition, error) {
	if s.URL == "" {
		return nil, fmt.Errorf("source %s: no url configured", s.SourceName)
	}

	return connect(ctx, s.SourceName, TransportSSE, func(life context.Context) (*client.Client, error) {
		var opts []transport.ClientOption
		if len(s.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(s.Headers))
		}

		c, err := client.NewSSEMCPClient(s.URL, opts...)
		if err != nil {
			return nil, err
		}
		if err := c.Start(life); err != nil {
			_ = c.Close()
			return nil, err
		}
		return c, nil
	}, reg, s.Logger)
}
