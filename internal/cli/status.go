package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which capability sources are reachable",
	Long: `Attempt every configured source once, print the outcome per source and
release every connection. Exits non-zero when the agent could not be built.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, in, initErr := openSession(cmd.Context(), cmd)
	if in == nil {
		return initErr
	}

	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 2, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "SOURCE\tTRANSPORT\tSTATUS\tTOOLS\tTIME\n")
	for _, r := range in.Report() {
		status := "connected"
		if r.Failed() {
			status = "failed: " + r.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.Name, r.Transport, status, r.Capabilities, formatDuration(r.Duration))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if initErr != nil {
		fmt.Fprintln(out, "Agent: not ready")
		return initErr
	}
	defer func() {
		_ = s.close(cmd.Context())
	}()

	fmt.Fprintf(out, "Agent: %s ready with %d tools (model %s)\n", s.agent.Name(), s.agent.ToolCount(), s.agent.Model())
	return nil
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}

	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
