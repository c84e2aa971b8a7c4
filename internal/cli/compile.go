package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/nysm/internal/compiler"
	"github.com/roach88/nysm/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult holds the compiled rule set in JSON-friendly form.
type CompilationResult struct {
	FactTypes     []ir.FactTypeDecl       `json:"factTypes"`
	Rules         []ir.Rule               `json:"rules"`
	CycleWarnings []compiler.CycleWarning `json:"cycleWarnings,omitempty"`
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	FactTypeCount int
	RuleCount     int
	TotalPatterns int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <specs-dir>",
		Short: "Compile CUE rule specs to canonical IR",
		Long: `Compile CUE fact-type declarations and rules to canonical IR format.

The compiler parses CUE files, validates them against the rule-set schema,
and outputs indented JSON for use by the engine.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll)

	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputCompileError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputCompileError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)

	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	for _, ft := range loadResult.RuleSet.FactTypes {
		formatter.VerboseLog("Compiling fact type: %s", ft.Name)
	}
	for _, rule := range loadResult.RuleSet.Rules {
		formatter.VerboseLog("Compiling rule: %s", rule.Name)
	}

	cycleWarnings := compiler.AnalyzeCycles(loadResult.RuleSet)
	for _, w := range cycleWarnings {
		formatter.VerboseLog("cycle warning: %s", w.Message)
	}

	result := &CompilationResult{
		FactTypes:     loadResult.RuleSet.FactTypes,
		Rules:         loadResult.RuleSet.Rules,
		CycleWarnings: cycleWarnings,
	}
	stats := calculateStats(result)

	if opts.Output != "" {
		if err := writeIRToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, stats, opts.Output)
}

// calculateStats computes summary statistics from compilation result.
func calculateStats(result *CompilationResult) CompilationStats {
	stats := CompilationStats{
		FactTypeCount: len(result.FactTypes),
		RuleCount:     len(result.Rules),
	}
	for _, rule := range result.Rules {
		stats.TotalPatterns += len(rule.Patterns)
	}
	return stats
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, stats CompilationStats, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d fact type(s), %d rule(s)\n\n",
		stats.FactTypeCount, stats.RuleCount)

	if len(result.FactTypes) > 0 {
		fmt.Fprintln(formatter.Writer, "Fact types:")
		for _, ft := range result.FactTypes {
			fmt.Fprintf(formatter.Writer, "  %s: %d field(s)\n", ft.Name, len(ft.Fields))
		}
		fmt.Fprintln(formatter.Writer)
	}

	if len(result.Rules) > 0 {
		fmt.Fprintln(formatter.Writer, "Rules:")
		for _, rule := range result.Rules {
			fmt.Fprintf(formatter.Writer, "  %s: %d pattern(s), %d statement(s)\n",
				rule.Name, len(rule.Patterns), len(rule.Then))
		}
		fmt.Fprintln(formatter.Writer)
	}

	if len(result.CycleWarnings) > 0 {
		fmt.Fprintln(formatter.Writer, "Cycle warnings:")
		for _, w := range result.CycleWarnings {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n", strings.Join(w.Path, " -> "), w.Message)
		}
		fmt.Fprintln(formatter.Writer)
	}

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote canonical IR to %s\n", outputFile)
	}

	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}

		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return MapFieldToErrorCode(compileErr.Field), compileErr.Error()
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeIRToFile writes the compilation result to a file as indented JSON
// (json.MarshalIndent, not RFC 8785 canonical JSON).
func writeIRToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
