package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileSingleFactTypeAndRule(t *testing.T) {
	tmpDir := t.TempDir()

	spec := `
factType: "Budget": fields: {amount: "int"}
factType: "Person": fields: {age: "int", eligible: "bool"}

rule: "pay-eligible": {
	when: [
		{bind: "b", type: "Budget", constraints: ["b.amount >= 10"]},
		{bind: "p", type: "Person", constraints: ["p.eligible == true"]},
	]
	then: [
		{op: "assign", target: "b.amount", value: "b.amount - 10"},
		{op: "update", binding: "b"},
		{op: "assign", target: "p.eligible", value: "false"},
		{op: "update", binding: "p"},
	]
}
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "spec.cue"), []byte(spec), 0644))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{tmpDir})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "✓ Compiled 2 fact type(s), 1 rule(s)")
	assert.Contains(t, output, "Budget")
	assert.Contains(t, output, "pay-eligible")
}

func TestCompileSingleFactTypeAndRuleJSON(t *testing.T) {
	tmpDir := t.TempDir()

	spec := `
factType: "Widget": fields: {count: "int"}
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "spec.cue"), []byte(spec), 0644))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{tmpDir})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestCompileOutputToFile(t *testing.T) {
	tmpDir := t.TempDir()
	spec := `factType: "Widget": fields: {count: "int"}`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "spec.cue"), []byte(spec), 0644))

	outputFile := filepath.Join(tmpDir, "compiled.json")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{tmpDir, "--output", outputFile})

	err := cmd.Execute()
	require.NoError(t, err)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Len(t, result.FactTypes, 1)
}

func TestCompileNonExistentDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/directory/path"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E005")
	assert.Contains(t, buf.String(), "not found")
}

func TestCompileEmptyDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{tmpDir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E003")
	assert.Contains(t, buf.String(), "no CUE files found")
}

func TestCompileInvalidSpec(t *testing.T) {
	tmpDir := t.TempDir()

	invalidSpec := `factType: "Bad": fields: {count: "not-a-type"}`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "bad.cue"), []byte(invalidSpec), 0644))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{tmpDir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compilation failed")
	assert.Contains(t, buf.String(), "Compilation failed")
}

func TestCompileInvalidSpecJSON(t *testing.T) {
	tmpDir := t.TempDir()

	invalidSpec := `factType: "Bad": fields: {count: "not-a-type"}`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "bad.cue"), []byte(invalidSpec), 0644))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{tmpDir})

	err := cmd.Execute()
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
}

func TestCompileVerboseOutput(t *testing.T) {
	tmpDir := t.TempDir()
	spec := `
factType: "Widget": fields: {count: "int"}
rule: "noop": {
	when: [{bind: "w", type: "Widget", constraints: []}]
	then: [{op: "update", binding: "w"}]
}
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "spec.cue"), []byte(spec), 0644))

	stdoutBuf := &bytes.Buffer{}
	stderrBuf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text", Verbose: true}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(stdoutBuf)
	cmd.SetErr(stderrBuf)
	cmd.SetArgs([]string{tmpDir})

	err := cmd.Execute()
	require.NoError(t, err)

	verboseOutput := stderrBuf.String()
	assert.Contains(t, verboseOutput, "Found")
	assert.Contains(t, verboseOutput, "CUE file(s)")
	assert.Contains(t, verboseOutput, "Compiling rule: noop")
}

func TestFindCUEFiles(t *testing.T) {
	tmpDir := t.TempDir()

	subDir := filepath.Join(tmpDir, "subdir")
	require.NoError(t, os.MkdirAll(subDir, 0755))

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "root.cue"), []byte("factType: \"A\": fields: {}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "notcue.txt"), []byte("not a cue file"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(subDir, "nested.cue"), []byte("factType: \"B\": fields: {}"), 0644))

	files, err := FindCUEFiles(tmpDir)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field    string
		expected string
	}{
		{"factType.Widget", ErrCodeInvalidFactType},
		{"factType.Widget.fields.count", ErrCodeInvalidFactType},
		{"when[0]", ErrCodeInvalidWhen},
		{"when[0].bind", ErrCodeInvalidWhen},
		{"then[0].op", ErrCodeInvalidThen},
		{"unknown", ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapFieldToErrorCode(tt.field))
		})
	}
}

func TestCalculateStats(t *testing.T) {
	loadResult, loadErrors := LoadSpecs(writeSpecsDir(t, `
factType: "A": fields: {x: "int"}
factType: "B": fields: {y: "int"}
rule: "r1": {
	when: [
		{bind: "a", type: "A", constraints: []},
		{bind: "b", type: "B", constraints: []},
	]
	then: [{op: "update", binding: "a"}]
}
`), LoadModeFailFast)
	require.Empty(t, loadErrors)

	result := &CompilationResult{FactTypes: loadResult.RuleSet.FactTypes, Rules: loadResult.RuleSet.Rules}
	stats := calculateStats(result)

	assert.Equal(t, 2, stats.FactTypeCount)
	assert.Equal(t, 1, stats.RuleCount)
	assert.Equal(t, 2, stats.TotalPatterns)
}

// writeSpecsDir writes content to a single .cue file in a fresh temp
// directory and returns the directory path.
func writeSpecsDir(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "spec.cue"), []byte(content), 0644))
	return dir
}
