package capability

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/harun/fsagent/internal/config"
	"github.com/harun/fsagent/pkg/resource"
	"github.com/harun/fsagent/pkg/toolexecutor"
)

// Transport identifies how a source is reached
type Transport string

const (
	TransportStdio Transport = config.TransportStdio
	TransportSSE   Transport = config.TransportSSE
)

// Source is a provider of capabilities reached over one transport
type Source interface {
	Name() string
	Transport() Transport
	// Connect opens the source, registers everything it opens with reg and
	// returns the advertised tools. Resources registered before an error are
	// the caller's to release.
	Connect(ctx context.Context, reg resource.Registrar) ([]toolexecutor.ToolDefinition, error)
}

// FromConfig builds the source described by cfg
func FromConfig(cfg config.SourceConfig, logger zerolog.Logger) (Source, error) {
	switch Transport(cfg.Transport) {
	case TransportStdio:
		return &StdioSource{
			SourceName: cfg.Name,
			Command:    cfg.Command,
			Args:       append([]string(nil), cfg.Args...),
			Env:        append([]string(nil), cfg.Env...),
			Logger:     logger,
		}, nil
	case TransportSSE:
		headers := make(map[string]string, len(cfg.Headers))
		for k, v := range cfg.Headers {
			headers[k] = v
		}
		return &SSESource{
			SourceName: cfg.Name,
			URL:        cfg.URL,
			Headers:    headers,
			Logger:     logger,
		}, nil
	default:
		return nil, fmt.Errorf("source %s: unknown transport %q", cfg.Name, cfg.Transport)
	}
}
