package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harun/fsagent/internal/observability"
	"github.com/harun/fsagent/pkg/agent"
)

var (
	runPrompt   string
	metricsAddr string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the agent and talk to it",
	Long: `Initialize the agent and answer a single prompt (--prompt) or read prompts
line by line from stdin until EOF or "exit". All MCP connections are released
on exit, including on SIGINT and SIGTERM.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runPrompt, "prompt", "p", "", "answer one prompt and exit")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, _, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = s.close(ctx)
	}()

	log := s.log.Component("cli")

	if metricsAddr != "" {
		srv := startMetricsServer(metricsAddr, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	provider, err := newProvider(s.cfg.Agent.Provider, getenv(s.cfg.Agent.CredentialEnv))
	if err != nil {
		return fmt.Errorf("failed to create model provider: %w", err)
	}

	out := cmd.OutOrStdout()

	if runPrompt != "" {
		result, err := s.agent.Run(ctx, provider, agent.RunParams{Prompt: runPrompt})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, result.Response)
		return nil
	}

	return repl(ctx, s.agent, provider, cmd.InOrStdin(), out, log)
}

// repl answers prompts read line by line, carrying the conversation forward
func repl(ctx context.Context, a *agent.Agent, provider agent.LLMProvider, in io.Reader, out io.Writer, log zerolog.Logger) error {
	fmt.Fprintf(out, "%s ready with %d tools. Type \"exit\" to quit.\n", a.Name(), a.ToolCount())

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	var history []agent.Message
	for {
		fmt.Fprint(out, "> ")

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return nil
			}
			line = strings.TrimSpace(l)
		}

		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		result, err := a.Run(ctx, provider, agent.RunParams{Prompt: line, History: history})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			log.Error().Err(err).Msg("Agent run failed")
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}

		history = result.Messages
		fmt.Fprintln(out, result.Response)
	}
}

func startMetricsServer(addr string, log zerolog.Logger) *http.Server {
	observability.EnsureRegistered()

	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("Metrics server failed")
		}
	}()
	log.Info().Str("addr", addr).Msg("Serving metrics")
	return srv
}
