package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/iter"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/fsagent/internal/config"
	"github.com/harun/fsagent/internal/observability"
	"github.com/harun/fsagent/internal/tracing"
	"github.com/harun/fsagent/pkg/agent"
	"github.com/harun/fsagent/pkg/capability"
	"github.com/harun/fsagent/pkg/resource"
	"github.com/harun/fsagent/pkg/toolexecutor"
)

const defaultTracerName = "fsagent.bootstrap"

// Connector turns a source description into a connectable source
type Connector func(cfg config.SourceConfig, logger zerolog.Logger) (capability.Source, error)

// SourceReport is the outcome of one source attempt
type SourceReport struct {
	Name         string
	Transport    string
	Capabilities int
	Duration     time.Duration
	Err          error
}

// Failed reports whether the source contributed nothing because of an error
func (r SourceReport) Failed() bool {
	return r.Err != nil
}

// Initializer aggregates the configured sources into one agent
type Initializer struct {
	cfg        *config.Config
	logger     zerolog.Logger
	getenv     func(string) string
	connector  Connector
	tracerName string

	mu     sync.Mutex
	report []SourceReport
}

// Option configures an Initializer
type Option func(*Initializer)

// WithLogger sets the initializer logger
func WithLogger(logger zerolog.Logger) Option {
	return func(in *Initializer) {
		in.logger = logger
	}
}

// WithGetenv replaces os.Getenv for the credential lookup
func WithGetenv(getenv func(string) string) Option {
	return func(in *Initializer) {
		in.getenv = getenv
	}
}

// WithConnector replaces capability.FromConfig
func WithConnector(c Connector) Option {
	return func(in *Initializer) {
		in.connector = c
	}
}

// WithTracerName sets the tracer used for initialization spans
func WithTracerName(name string) Option {
	return func(in *Initializer) {
		in.tracerName = name
	}
}

// New creates an initializer for cfg. A nil cfg uses config.DefaultConfig.
func New(cfg *config.Config, opts ...Option) *Initializer {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	in := &Initializer{
		cfg:        cfg,
		logger:     zerolog.Nop(),
		getenv:     os.Getenv,
		connector:  capability.FromConfig,
		tracerName: defaultTracerName,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Report returns the per-source outcomes of the last Initialize call in
// declaration order. It is empty when no source was attempted.
func (in *Initializer) Report() []SourceReport {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]SourceReport, len(in.report))
	copy(out, in.report)
	return out
}

// Initialize builds the agent. On success both results are non-nil and the
// handle owns every connection the agent's tools use. On failure both are nil,
// nothing stays open and the error is an *Error.
func (in *Initializer) Initialize(ctx context.Context) (a *agent.Agent, h *resource.Handle, err error) {
	ctx = tracing.NewAgentRunContext(ctx, in.cfg.Agent.Name)
	ctx, span := tracing.StartSpan(ctx, in.tracerName, "bootstrap.initialize",
		attribute.String("agent.name", in.cfg.Agent.Name),
		attribute.Int("sources.count", len(in.cfg.Sources.Servers)),
	)
	logger := tracing.LoggerFromContext(ctx, in.logger)

	defer func() {
		tracing.EndSpan(span, err)
		if err != nil {
			observability.RecordInit(string(KindOf(err)))
			return
		}
		observability.RecordInit("success")
	}()

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if h != nil {
			_ = h.Close()
		}
		a, h = nil, nil
		err = &Error{Kind: KindUnexpected, Err: fmt.Errorf("panic during initialization: %v", r)}
		logger.Error().Interface("panic", r).Msg("Initialization panicked")
	}()

	in.setReport(nil)

	credentialEnv := in.cfg.Agent.CredentialEnv
	if credentialEnv == "" {
		credentialEnv = config.DefaultCredentialEnv
	}
	if strings.TrimSpace(in.getenv(credentialEnv)) == "" {
		logger.Error().Str("env", credentialEnv).Msg("Model credential is not set")
		return nil, nil, newError(KindMissingCredential, "", "environment variable %s is not set", credentialEnv)
	}

	h = resource.NewHandle()

	results := in.attemptAll(ctx, h, logger)

	names := toolexecutor.NameSet{}
	reports := make([]SourceReport, len(results))
	var tools []toolexecutor.ToolDefinition
	for i := range results {
		in.settle(ctx, &results[i], names, logger)
		reports[i] = results[i].report
		tools = append(tools, results[i].tools...)
	}
	in.setReport(reports)

	if perr := in.checkPolicy(reports, len(tools)); perr != nil {
		in.closeOnFailure(h, logger)
		logger.Error().Err(perr).Int("tools", len(tools)).Msg("Initialization rejected by availability policy")
		return nil, nil, perr
	}

	a, err = agent.New(agent.Config{
		Name:        in.cfg.Agent.Name,
		Model:       in.cfg.Agent.Model,
		Instruction: in.cfg.Agent.Instruction,
		Provider:    in.cfg.Agent.Provider,
		Temperature: in.cfg.Agent.Temperature,
		MaxTokens:   in.cfg.Agent.MaxTokens,
		MaxTurns:    in.cfg.Agent.MaxTurns,
		MaxRetries:  agent.DefaultConfig().MaxRetries,
		ToolTimeout: in.cfg.Agent.ToolTimeout,
		ToolPolicy:  toolPolicy(in.cfg.Agent.ToolPolicy),
	}, tools, agent.WithLogger(in.logger.With().Str("component", "agent").Logger()))
	if err != nil {
		in.closeOnFailure(h, logger)
		if errors.Is(err, agent.ErrNoTools) {
			return nil, nil, &Error{Kind: KindNoCapabilities, Err: err}
		}
		return nil, nil, &Error{Kind: KindUnexpected, Err: fmt.Errorf("failed to create agent: %w", err)}
	}

	observability.SetLiveConnections(h.Len())
	logger.Info().
		Str("agent", a.Name()).
		Str("model", a.Model()).
		Int("tools", a.ToolCount()).
		Int("resources", h.Len()).
		Msg("Agent initialized")

	return a, h, nil
}

func toolPolicy(p config.ToolPolicyConfig) *toolexecutor.ToolPolicy {
	if len(p.Allow) == 0 && len(p.Deny) == 0 {
		return nil
	}
	return &toolexecutor.ToolPolicy{Allow: p.Allow, Deny: p.Deny}
}

// closeOnFailure releases everything opened so far
func (in *Initializer) closeOnFailure(h *resource.Handle, logger zerolog.Logger) {
	if cerr := h.Close(); cerr != nil {
		logger.Warn().Err(cerr).Msg("Failed to release connections")
	}
}

func (in *Initializer) setReport(r []SourceReport) {
	in.mu.Lock()
	in.report = r
	in.mu.Unlock()
}

// checkPolicy applies the availability policy to the attempt outcomes
func (in *Initializer) checkPolicy(reports []SourceReport, capabilities int) error {
	policy := in.cfg.Policy

	failed := make(map[string]SourceReport)
	for _, r := range reports {
		if r.Failed() {
			failed[r.Name] = r
		}
	}

	for _, name := range policy.RequiredSources {
		if r, ok := failed[name]; ok {
			return &Error{Kind: KindRequiredSourceFailed, Source: name, Err: r.Err}
		}
	}

	if policy.RequireAll {
		for _, r := range reports {
			if r.Failed() {
				return &Error{Kind: KindRequiredSourceFailed, Source: r.Name, Err: r.Err}
			}
		}
	}

	if capabilities < policy.MinCapabilities {
		return newError(KindNoCapabilities, "", "%d capabilities available, at least %d required", capabilities, policy.MinCapabilities)
	}

	return nil
}

type attemptResult struct {
	tools  []toolexecutor.ToolDefinition
	report SourceReport
	scope  *resource.Scope
}

// attemptAll tries every source and returns results in declaration order
func (in *Initializer) attemptAll(ctx context.Context, h *resource.Handle, logger zerolog.Logger) []attemptResult {
	servers := in.cfg.Sources.Servers

	if in.cfg.Sources.Concurrent {
		return iter.Map(servers, func(sc *config.SourceConfig) attemptResult {
			return in.attempt(ctx, h, *sc, logger)
		})
	}

	results := make([]attemptResult, 0, len(servers))
	for _, sc := range servers {
		results = append(results, in.attempt(ctx, h, sc, logger))
	}
	return results
}

// attempt connects one source inside its own scope and checks every tool it
// offers. Any failure, including a panic, rolls the scope back at once. A
// successful scope is left open for settle.
func (in *Initializer) attempt(ctx context.Context, h *resource.Handle, sc config.SourceConfig, logger zerolog.Logger) attemptResult {
	ctx, span := tracing.StartSpan(ctx, in.tracerName, "bootstrap.source",
		attribute.String("source.name", sc.Name),
		attribute.String("source.transport", sc.Transport),
	)
	logger = logger.With().Str("source", sc.Name).Str("transport", sc.Transport).Logger()

	start := time.Now()
	scope := h.Begin(sc.Name)

	var tools []toolexecutor.ToolDefinition
	err := in.connect(ctx, scope, sc, logger, &tools)
	if err == nil {
		err = validateTools(tools)
	}
	if err != nil {
		tools = nil
		if rerr := scope.Rollback(); rerr != nil {
			logger.Debug().Err(rerr).Msg("Failed to release source resources")
		}
	}
	tracing.EndSpan(span, err)

	return attemptResult{
		tools: tools,
		scope: scope,
		report: SourceReport{
			Name:         sc.Name,
			Transport:    sc.Transport,
			Capabilities: len(tools),
			Duration:     time.Since(start),
			Err:          err,
		},
	}
}

func validateTools(tools []toolexecutor.ToolDefinition) error {
	for _, def := range tools {
		if err := toolexecutor.Validate(def); err != nil {
			return err
		}
	}
	return nil
}

// settle decides the fate of one attempt. A source whose tools all get a name
// next to the sources settled before it is committed to the handle. Anything
// else, including a connect failure, is rolled back and contributes nothing.
// Results must be settled in declaration order.
func (in *Initializer) settle(ctx context.Context, r *attemptResult, names toolexecutor.NameSet, logger zerolog.Logger) {
	name, transport := r.report.Name, r.report.Transport
	logger = logger.With().Str("source", name).Str("transport", transport).Logger()

	err := r.report.Err
	if err == nil {
		err = names.Claim(r.tools)
	}
	if err == nil {
		err = r.scope.Commit()
	}
	if err != nil {
		r.tools = nil
		r.report.Capabilities = 0
		r.report.Err = err
		if rerr := r.scope.Rollback(); rerr != nil {
			logger.Debug().Err(rerr).Msg("Failed to release source resources")
		}
	}

	duration := r.report.Duration
	observability.RecordSourceConnect(name, transport, duration, err == nil, len(r.tools))

	if err != nil {
		logger.Warn().Err(err).Dur("duration", duration).Msg("Capability source unavailable, continuing without it")
		observability.RecordSourceAudit(ctx, name, "failure", map[string]interface{}{
			"transport": transport,
			"error":     err.Error(),
		})
		return
	}

	logger.Info().Int("tools", len(r.tools)).Dur("duration", duration).Msg("Capability source connected")
	observability.RecordSourceAudit(ctx, name, "success", map[string]interface{}{
		"transport":    transport,
		"capabilities": len(r.tools),
	})
}

// connect builds and connects the source, turning a panic into an error
func (in *Initializer) connect(ctx context.Context, scope *resource.Scope, sc config.SourceConfig, logger zerolog.Logger, out *[]toolexecutor.ToolDefinition) error {
	if timeout := in.cfg.Sources.ConnectTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var err error
	if r := panics.Try(func() {
		var src capability.Source
		src, err = in.connector(sc, logger)
		if err != nil {
			return
		}
		*out, err = src.Connect(ctx, scope)
	}); r != nil {
		return fmt.Errorf("source %s panicked: %w", sc.Name, r.AsError())
	}
	return err
}

// Release closes every connection owned by h on behalf of the named agent
func Release(ctx context.Context, agentName string, h *resource.Handle, logger zerolog.Logger) error {
	if h == nil {
		return nil
	}
	count := h.Len()
	err := h.Close()
	observability.SetLiveConnections(0)

	status := "success"
	meta := map[string]interface{}{"resources": count}
	if err != nil {
		status = "failure"
		meta["error"] = err.Error()
		logger.Warn().Err(err).Str("agent", agentName).Msg("Some connections failed to close")
	} else {
		logger.Info().Str("agent", agentName).Int("resources", count).Msg("Connections released")
	}
	observability.RecordReleaseAudit(ctx, agentName, status, meta)
	return err
}
