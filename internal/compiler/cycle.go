package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/nysm/internal/ir"
)

// CycleWarning represents a potential self-triggering chain between rules.
//
// Cycles are warnings, not errors, because they may be intentional: a
// fibonacci-style rule that keeps inserting facts until some bound is
// reached, a retry rule, a self-correcting accumulator. Reported so a rule
// author can confirm the loop terminates (the engine itself imposes no
// limit beyond the host-configured step quota, §4.4).
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["rule-a", "rule-b", "rule-a"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeCycles performs static cycle analysis on a rule set's fact-type
// trigger graph: rule A triggers rule B if A's RHS can create or mutate a
// fact of a type that B's LHS matches against. This is a compile-time
// diagnostic only — it says "these rules could chain", not that they
// will; full cycle detection across live firing sessions is out of
// scope, since which tuples actually match depends on runtime data.
//
// The algorithm:
//  1. Build a rule → rules-it-could-trigger dependency graph from each
//     rule's written fact types (factInsert targets, updated bindings)
//     and each rule's read fact types (pattern fact types).
//  2. Use Tarjan's algorithm to find strongly connected components.
//  3. Report each SCC with size > 1, or a self-loop, as a warning.
//
// A rule set with no such chains returns an empty warning list.
func AnalyzeCycles(rs *ir.RuleSet) []CycleWarning {
	if len(rs.Rules) == 0 {
		return []CycleWarning{}
	}

	graph := buildDependencyGraph(rs)
	sccs := tarjanSCC(graph)

	var warnings []CycleWarning
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}

	return warnings
}

// dependencyGraph maps rule name → list of rule names it could trigger.
type dependencyGraph map[string][]string

// buildDependencyGraph constructs the rule dependency graph.
//
// For each rule:
//   - Collect the fact types it writes: FactInsert.FactType, plus the
//     fact type of any pattern binding named by an Update.
//   - For each rule, the writer itself included, if any of its pattern
//     fact types intersects the writer's written set, add an edge
//     writer → reader.
func buildDependencyGraph(rs *ir.RuleSet) dependencyGraph {
	graph := make(dependencyGraph)

	readTypes := make(map[string][]string, len(rs.Rules)) // rule name -> fact types its patterns read
	for _, rule := range rs.Rules {
		for _, p := range rule.Patterns {
			readTypes[rule.Name] = append(readTypes[rule.Name], p.FactType)
		}
	}

	for _, writer := range rs.Rules {
		written := writtenFactTypes(writer)
		if graph[writer.Name] == nil {
			graph[writer.Name] = []string{}
		}
		for _, reader := range rs.Rules {
			if ruleReadsAny(readTypes[reader.Name], written) {
				graph[writer.Name] = append(graph[writer.Name], reader.Name)
			}
		}
	}

	return graph
}

func writtenFactTypes(rule ir.Rule) map[string]bool {
	written := make(map[string]bool)

	bindingFactType := make(map[string]string, len(rule.Patterns))
	for _, p := range rule.Patterns {
		if p.Binding != "" {
			bindingFactType[p.Binding] = p.FactType
		}
	}

	for _, stmt := range rule.Then {
		switch s := stmt.(type) {
		case ir.FactInsert:
			written[s.FactType] = true
		case ir.Update:
			for i, p := range rule.Patterns {
				if p.Binding == s.Binding {
					written[rule.Patterns[i].FactType] = true
				}
			}
		}
	}

	return written
}

func ruleReadsAny(readFactTypes []string, written map[string]bool) bool {
	for _, t := range readFactTypes {
		if written[t] {
			return true
		}
	}
	return false
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Returns a list of SCCs, where each SCC is a list of rule names.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for node := range graph {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning.
func cycleSCCToWarning(scc []string, graph dependencyGraph) CycleWarning {
	if len(scc) == 1 {
		ruleName := scc[0]
		return CycleWarning{
			Path:    []string{ruleName, ruleName},
			Message: fmt.Sprintf("rule %q may re-trigger itself", ruleName),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("potential rule cycle: %s", strings.Join(path, " -> ")),
		Level:   "warning",
	}
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Strategy: Start at first node in SCC, follow edges to other SCC members,
// continue until we return to start node.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}

		if next == "" {
			break
		}

		path = append(path, next)

		if next == start {
			break
		}

		current = next
	}

	return path
}
