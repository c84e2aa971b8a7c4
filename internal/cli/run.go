package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/nysm/internal/engine"
	"github.com/roach88/nysm/internal/host"
	"github.com/roach88/nysm/internal/ir"
	"github.com/roach88/nysm/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database  string
	FactsFile string

	// Generator overrides the firing-session ID generator (for testing).
	// If nil, defaults to engine.UUIDv7Generator.
	Generator engine.Generator
}

// FactInput is one fact to insert before firing, read from --facts.
type FactInput struct {
	Type   string                     `json:"type"`
	Fields map[string]json.RawMessage `json:"fields"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <specs-dir>",
		Short: "Compile specs, insert facts, and fire all rules once",
		Long: `Compile CUE rule specs, restore any previously persisted working
memory from the database, insert the facts named in --facts, then run the
firing driver to completion and persist the resulting trace.

Example:
  nysm run --db ./nysm.db --facts ./facts.json ./specs`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.FactsFile, "facts", "", "path to JSON facts file to insert before firing")

	return cmd
}

func runEngine(opts *RunOptions, specsDir string, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)

	logger.Info("compiling specs", "dir", specsDir)
	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeFailFast)
	if loadResult == nil && len(loadErrors) > 0 {
		return WrapExitError(ExitCommandError, "failed to compile specs", loadErrors[0])
	}
	if len(loadErrors) > 0 {
		return WrapExitError(ExitCommandError, "failed to compile specs", loadErrors[0])
	}
	logger.Info("specs compiled", "fact_types", len(loadResult.RuleSet.FactTypes), "rules", len(loadResult.RuleSet.Rules))

	logger.Info("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	restoredFacts, err := st.RestoreFactTable(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to restore fact table", err)
	}

	mockHost := host.NewMock(true)
	engOpts := []engine.Option{engine.WithFactTable(restoredFacts), engine.WithLogger(logger)}
	if opts.Generator != nil {
		engOpts = append(engOpts, engine.WithGenerator(opts.Generator))
	}
	eng, err := engine.New(*loadResult.RuleSet, mockHost, engOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build engine", err)
	}

	nextSeq, err := st.LastHandleSeq(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read last handle seq", err)
	}

	inserted := 0
	if opts.FactsFile != "" {
		facts, err := loadFactsFile(opts.FactsFile)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load facts file", err)
		}
		for i, f := range facts {
			fields, err := convertFactInputFields(f.Fields)
			if err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("facts[%d]: %v", i, err), nil)
			}
			ref, err := mockHost.AllocateRef(ctx, f.Type, fields)
			if err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("facts[%d]: allocate: %v", i, err), nil)
			}
			handle, err := eng.InsertFact(f.Type, ref)
			if err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("facts[%d]: insert: %v", i, err), nil)
			}
			nextSeq++
			if err := st.WriteFact(ctx, store.FactRecord{Handle: handle, FactType: f.Type, StorageRef: ref, InsertedSeq: nextSeq}); err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("facts[%d]: persist: %v", i, err), nil)
			}
			inserted++
		}
	}
	logger.Info("facts inserted", "count", inserted)

	beforeFire := factSnapshot(eng)
	trace, fireErr := eng.FireAllRules(ctx)
	if trace != nil {
		if persistErr := st.PersistTrace(ctx, trace); persistErr != nil {
			return WrapExitError(ExitCommandError, "failed to persist trace", persistErr)
		}
	}
	if syncErr := persistFactTableMutations(ctx, st, eng, beforeFire, nextSeq); syncErr != nil {
		return WrapExitError(ExitCommandError, "failed to persist fact table mutations", syncErr)
	}
	if fireErr != nil {
		return WrapExitError(ExitFailure, "engine error", fireErr)
	}

	return outputRunSuccess(cmd, opts, trace)
}

// factSnapshot returns every currently live fact, in insertion order, for
// diffing working memory before and after a FireAllRules call.
func factSnapshot(eng *engine.Engine) []engine.RestoredFact {
	return eng.Facts().Snapshot()
}

// handleSet indexes a fact snapshot by handle for membership checks, without
// disturbing the snapshot's own insertion order.
func handleSet(facts []engine.RestoredFact) map[ir.FactHandle]bool {
	set := make(map[ir.FactHandle]bool, len(facts))
	for _, f := range facts {
		set[f.Handle] = true
	}
	return set
}

// persistFactTableMutations reconciles the durable store with every fact a
// rule's RHS inserted or deleted during firing: before is the working
// memory snapshot taken just before FireAllRules ran, nextSeq the last
// handle-clock seq already accounted for (advanced further here for every
// row this call writes). Without this, a factInsert/factDelete executed
// from an RHS is visible only for the rest of the current process — the
// next invocation's RestoreFactTable would resurrect stale pre-fire state.
// Both loops walk fact snapshots in insertion order, not map order, so the
// seq assigned to each row is a deterministic function of the fact
// sequence, matching the rest of this engine's ordering guarantees.
func persistFactTableMutations(ctx context.Context, st *store.Store, eng *engine.Engine, before []engine.RestoredFact, nextSeq int64) error {
	beforeSet := handleSet(before)
	after := factSnapshot(eng)
	afterSet := handleSet(after)

	for _, f := range after {
		if beforeSet[f.Handle] {
			continue
		}
		nextSeq++
		if err := st.WriteFact(ctx, store.FactRecord{Handle: f.Handle, FactType: f.FactType, StorageRef: f.Ref, InsertedSeq: nextSeq}); err != nil {
			return fmt.Errorf("persist inserted fact %d: %w", f.Handle, err)
		}
	}

	for _, f := range before {
		if afterSet[f.Handle] {
			continue
		}
		nextSeq++
		if err := st.MarkFactDeleted(ctx, f.Handle, nextSeq); err != nil {
			return fmt.Errorf("persist deleted fact %d: %w", f.Handle, err)
		}
	}

	return nil
}

// loadFactsFile reads and decodes a JSON facts file.
func loadFactsFile(path string) ([]FactInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var facts []FactInput
	if err := json.Unmarshal(data, &facts); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return facts, nil
}

// convertFactInputFields turns the raw JSON field values of a FactInput
// into the ir.IRValue map host.Mock.AllocateRef expects.
func convertFactInputFields(fields map[string]json.RawMessage) (map[string]ir.IRValue, error) {
	out := make(map[string]ir.IRValue, len(fields))
	for k, raw := range fields {
		v, err := ir.UnmarshalIRValue(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// RunResult summarizes one run invocation's outcome.
type RunResult struct {
	SessionID string   `json:"session_id"`
	Firings   int      `json:"firings"`
	Rules     []string `json:"rules,omitempty"`
}

func outputRunSuccess(cmd *cobra.Command, opts *RunOptions, trace *engine.FiringTrace) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	result := RunResult{Firings: len(trace.Firings)}
	if trace.SessionID != "" {
		result.SessionID = trace.SessionID
	}
	for _, f := range trace.Firings {
		result.Rules = append(result.Rules, f.RuleName)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Session %s: %d firing(s)\n", result.SessionID, result.Firings)
	for i, f := range trace.Firings {
		fmt.Fprintf(formatter.Writer, "  [%d] %s %v\n", i+1, f.RuleName, f.Handles)
	}
	return nil
}
