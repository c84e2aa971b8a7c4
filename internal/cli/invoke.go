package cli

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/roach88/nysm/internal/engine"
	"github.com/roach88/nysm/internal/host"
	"github.com/roach88/nysm/internal/store"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	Database string
	Fields   string
}

// NewInvokeCommand creates the invoke command: insert one fact and fire,
// for poking at a rule set interactively without authoring a facts file.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke <specs-dir> <fact-type>",
		Short: "Insert a single fact and fire all rules",
		Long: `Compile specs, insert one fact of the given type with the fields from
--fields, and run the firing driver to completion.

Example:
  nysm invoke ./specs Person --fields '{"age":70,"eligible":true}' --db ./nysm.db`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Fields, "fields", "{}", "fact fields as a JSON object")

	return cmd
}

func runInvoke(opts *InvokeOptions, specsDir, factType string, cmd *cobra.Command) error {
	var rawFields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(opts.Fields), &rawFields); err != nil {
		return WrapExitError(ExitCommandError, "invalid --fields JSON", err)
	}

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeFailFast)
	if loadResult == nil && len(loadErrors) > 0 {
		return WrapExitError(ExitCommandError, "failed to compile specs", loadErrors[0])
	}
	if len(loadErrors) > 0 {
		return WrapExitError(ExitCommandError, "failed to compile specs", loadErrors[0])
	}

	fields, err := convertFactInputFields(rawFields)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid field value", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	restoredFacts, err := st.RestoreFactTable(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to restore fact table", err)
	}

	mockHost := host.NewMock(true)
	eng, err := engine.New(*loadResult.RuleSet, mockHost, engine.WithFactTable(restoredFacts))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build engine", err)
	}

	ref, err := mockHost.AllocateRef(ctx, factType, fields)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to allocate fact", err)
	}
	handle, err := eng.InsertFact(factType, ref)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to insert fact", err)
	}

	nextSeq, err := st.LastHandleSeq(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read last handle seq", err)
	}
	nextSeq++
	if err := st.WriteFact(ctx, store.FactRecord{Handle: handle, FactType: factType, StorageRef: ref, InsertedSeq: nextSeq}); err != nil {
		return WrapExitError(ExitCommandError, "failed to persist fact", err)
	}

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

	return outputRunSuccess(cmd, &RunOptions{RootOptions: opts.RootOptions}, trace)
}
