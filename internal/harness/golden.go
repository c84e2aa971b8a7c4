package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/nysm/internal/ir"
)

// TraceSnapshot captures one scenario's complete firing trace in a form
// MarshalCanonical can serialize, for byte-stable golden comparison.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
}

func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	events := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		handles := make([]any, len(event.Handles))
		for j, h := range event.Handles {
			handles[j] = int64(h)
		}
		events[i] = map[string]any{
			"seq":     int64(event.Seq),
			"rule":    event.RuleName,
			"handles": handles,
		}
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         events,
	}
}

// RunWithGolden executes scenario and compares its firing trace against the
// golden file at testdata/golden/{scenario.Name}.golden, regenerated via
// `go test ./internal/harness -update`.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return result, err
	}

	snapshot := TraceSnapshot{ScenarioName: scenario.Name, Trace: result.Trace}
	traceJSON, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return result, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)

	return result, nil
}
