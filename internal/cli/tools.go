package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/harun/fsagent/pkg/toolexecutor"
)

var toolsOutput string

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools the agent would start with",
	Long: `Initialize the agent, print the merged tool manifest in source
declaration order and release every connection.`,
	RunE: runTools,
}

func init() {
	toolsCmd.Flags().StringVarP(&toolsOutput, "output", "o", "table", "output format (table, yaml, json)")
	rootCmd.AddCommand(toolsCmd)
}

// toolEntry is one row of the tool manifest
type toolEntry struct {
	Name         string                       `json:"name" yaml:"name"`
	Source       string                       `json:"source" yaml:"source"`
	OriginalName string                       `json:"original_name,omitempty" yaml:"original_name,omitempty"`
	Description  string                       `json:"description" yaml:"description"`
	Parameters   []toolexecutor.ToolParameter `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

func runTools(cmd *cobra.Command, args []string) error {
	switch toolsOutput {
	case "table", "yaml", "json":
	default:
		return fmt.Errorf("unsupported output format: %s", toolsOutput)
	}

	s, _, err := openSession(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = s.close(cmd.Context())
	}()

	tools := s.agent.Tools()
	entries := make([]toolEntry, len(tools))
	for i, t := range tools {
		entries[i] = toolEntry{
			Name:         t.Name,
			Source:       t.Source,
			OriginalName: t.OriginalName,
			Description:  t.Description,
			Parameters:   t.Parameters(),
		}
	}

	return writeTools(cmd.OutOrStdout(), toolsOutput, entries)
}

func writeTools(w io.Writer, format string, entries []toolEntry) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return err
		}
		return enc.Close()
	}

	tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "NAME\tSOURCE\tPARAMETERS\tDESCRIPTION\n")
	for _, e := range entries {
		params := make([]string, 0, len(e.Parameters))
		for _, p := range e.Parameters {
			name := p.Name
			if p.Required {
				name += "*"
			}
			params = append(params, name)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Name, e.Source, strings.Join(params, ","), firstLine(e.Description))
	}
	return tw.Flush()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
