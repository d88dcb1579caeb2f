package bootstrap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/fsagent/internal/config"
	"github.com/harun/fsagent/pkg/capability"
	"github.com/harun/fsagent/pkg/resource"
	"github.com/harun/fsagent/pkg/toolexecutor"
)

type fakeSource struct {
	name   string
	tools  []string
	err    error
	panics bool
	hang   bool
	delay  time.Duration
	// input schemas by tool name
	schemas map[string]map[string]interface{}

	mu       sync.Mutex
	attempts int
	released int
}

func (f *fakeSource) Name() string                    { return f.name }
func (f *fakeSource) Transport() capability.Transport { return capability.TransportStdio }

func (f *fakeSource) Connect(ctx context.Context, reg resource.Registrar) ([]toolexecutor.ToolDefinition, error) {
	f.mu.Lock()
	f.attempts++
	f.mu.Unlock()

	if err := reg.RegisterFunc("conn", func() error {
		f.mu.Lock()
		f.released++
		f.mu.Unlock()
		return nil
	}); err != nil {
		return nil, err
	}

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	switch {
	case f.panics:
		panic("source exploded")
	case f.hang:
		<-ctx.Done()
		return nil, ctx.Err()
	case f.err != nil:
		return nil, f.err
	}

	defs := make([]toolexecutor.ToolDefinition, 0, len(f.tools))
	for _, name := range f.tools {
		name := name
		defs = append(defs, toolexecutor.ToolDefinition{
			Name:        name,
			Description: "fake " + name,
			InputSchema: f.schemas[name],
			Source:      f.name,
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				return f.name + ":" + name, nil
			},
		})
	}
	return defs, nil
}

func (f *fakeSource) counts() (attempts, released int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts, f.released
}

type fakeSet []*fakeSource

func (s fakeSet) connector() Connector {
	return func(cfg config.SourceConfig, logger zerolog.Logger) (capability.Source, error) {
		for _, f := range s {
			if f.name == cfg.Name {
				return f, nil
			}
		}
		return nil, fmt.Errorf("no fake for source %s", cfg.Name)
	}
}

func (s fakeSet) configs() []config.SourceConfig {
	out := make([]config.SourceConfig, len(s))
	for i, f := range s {
		out[i] = config.SourceConfig{Name: f.name, Transport: config.TransportStdio, Command: "fake"}
	}
	return out
}

func (s fakeSet) attempts() int {
	total := 0
	for _, f := range s {
		a, _ := f.counts()
		total += a
	}
	return total
}

func testConfig(servers ...config.SourceConfig) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Sources.Servers = servers
	cfg.Sources.ConnectTimeout = 5 * time.Second
	return cfg
}

func withCredential(value string) Option {
	return WithGetenv(func(key string) string {
		if key == config.DefaultCredentialEnv {
			return value
		}
		return ""
	})
}
