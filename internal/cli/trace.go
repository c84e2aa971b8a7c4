package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/nysm/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	SessionID string
	Rule      string // optional - filter to a single rule name
}

// TraceFiringView is one firing in a session's trace timeline.
type TraceFiringView struct {
	Seq      int64    `json:"seq"`
	RuleName string   `json:"rule"`
	Handles  []uint64 `json:"handles"`
}

// TraceResult holds the complete trace output for one session.
type TraceResult struct {
	SessionID string            `json:"session_id"`
	Firings   []TraceFiringView `json:"firings"`
	Stats     TraceStats        `json:"stats"`
}

// TraceStats holds summary statistics for a session's trace.
type TraceStats struct {
	TotalFirings int            `json:"total_firings"`
	ByRule       map[string]int `json:"by_rule"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the firing trace for a session",
		Long: `Show the firing trace persisted for a session: every rule that fired,
in firing order, with the handles bound to its patterns.

Examples:
  nysm trace --db ./nysm.db --session <session-id>
  nysm trace --db ./nysm.db --session <session-id> --rule catEatFood
  nysm trace --db ./nysm.db --session <session-id> --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session ID to trace (required)")
	_ = cmd.MarkFlagRequired("session")
	cmd.Flags().StringVar(&opts.Rule, "rule", "", "filter to a single rule name")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	firings, err := st.ReadFiringsForSession(ctx, opts.SessionID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read session firings", err)
	}

	result := TraceResult{
		SessionID: opts.SessionID,
		Stats:     TraceStats{ByRule: map[string]int{}},
	}
	for _, f := range firings {
		if opts.Rule != "" && f.RuleName != opts.Rule {
			continue
		}
		handles := make([]uint64, len(f.Handles))
		for i, h := range f.Handles {
			handles[i] = uint64(h)
		}
		result.Firings = append(result.Firings, TraceFiringView{Seq: f.Seq, RuleName: f.RuleName, Handles: handles})
		result.Stats.TotalFirings++
		result.Stats.ByRule[f.RuleName]++
	}

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	return outputTraceText(cmd, result)
}

func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

func outputTraceText(cmd *cobra.Command, result TraceResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Trace for session: %s\n", result.SessionID)
	fmt.Fprintln(w)

	if len(result.Firings) == 0 {
		fmt.Fprintln(w, "  (no firings)")
		return nil
	}

	for _, f := range result.Firings {
		fmt.Fprintf(w, "  [%d] %s %v\n", f.Seq, f.RuleName, f.Handles)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Total firings: %d\n", result.Stats.TotalFirings)
	for rule, count := range result.Stats.ByRule {
		fmt.Fprintf(w, "  %s: %d\n", rule, count)
	}

	return nil
}
