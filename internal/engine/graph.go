package engine

import (
	"context"
	"fmt"

	"github.com/roach88/nysm/internal/compiler"
	"github.com/roach88/nysm/internal/host"
	"github.com/roach88/nysm/internal/ir"
)

// CompiledRule pairs a rule with the LHS compiler's plan for it, the unit
// Graph construction works over.
type CompiledRule struct {
	Rule ir.Rule
	Plan *compiler.RulePlan
}

// Graph is the arena-indexed RETE network: a flat slice of alpha nodes
// (shared across rules by content-addressed key), a flat slice of beta
// nodes (one chain per rule, never shared), and one terminal node per rule
// in the order rules were compiled — the order the firing driver scans in
// (§4.4 "rules in textual order").
type Graph struct {
	alphas    []*alphaNode
	alphaKey  map[string]int
	betas     []*betaNode
	terminals []*terminalNode
}

// BuildGraph compiles a list of rules into a shared arena. Rule order is
// preserved in g.terminals; within a rule, patterns fold strictly left to
// right per §4.1.
func BuildGraph(rules []CompiledRule) (*Graph, error) {
	g := &Graph{alphaKey: make(map[string]int)}

	for _, cr := range rules {
		if len(cr.Plan.Alphas) == 0 {
			return nil, fmt.Errorf("graph: rule %q has no patterns", cr.Rule.Name)
		}

		chain := chainRef{alpha: true, index: g.getOrCreateAlpha(cr.Plan.Alphas[0], cr.Plan.Binding)}

		for i := 1; i < len(cr.Plan.Alphas); i++ {
			rightIdx := g.getOrCreateAlpha(cr.Plan.Alphas[i], cr.Plan.Binding)
			g.betas = append(g.betas, &betaNode{
				left:      chain,
				right:     rightIdx,
				predicate: cr.Plan.Betas[i-1],
				binding:   cr.Plan.Binding,
			})
			chain = chainRef{alpha: false, index: len(g.betas) - 1}
		}

		g.terminals = append(g.terminals, &terminalNode{
			ruleName: cr.Rule.Name,
			binding:  cr.Plan.Binding,
			chain:    chain,
		})
	}

	return g, nil
}

// getOrCreateAlpha returns the arena index of the alpha node for spec,
// creating one if no existing node shares its Key (§4.1 "Sharing").
func (g *Graph) getOrCreateAlpha(spec compiler.AlphaSpec, binding *compiler.BindingTable) int {
	if idx, ok := g.alphaKey[spec.Key]; ok {
		return idx
	}
	idx := len(g.alphas)
	g.alphas = append(g.alphas, &alphaNode{spec: spec, binding: binding})
	g.alphaKey[spec.Key] = idx
	return idx
}

// Refresh recomputes every node's memory from scratch, alpha nodes first
// and then beta nodes in creation order — sufficient topological order
// since a beta node's left chainRef always names a node created earlier in
// the same rule's fold (§4.3's three-step evaluation).
func (g *Graph) Refresh(ctx context.Context, facts *FactTable, h host.Host) error {
	for _, a := range g.alphas {
		if err := a.refresh(ctx, facts, h); err != nil {
			return err
		}
	}
	for _, b := range g.betas {
		leftMemory := g.memory(b.left)
		rightMemory := g.alphas[b.right].memory
		if err := b.refresh(ctx, facts, h, leftMemory, rightMemory); err != nil {
			return err
		}
	}
	return nil
}

// memory resolves a chainRef to the live memory of the node it names.
func (g *Graph) memory(ref chainRef) []tuple {
	if ref.alpha {
		return g.alphas[ref.index].memory
	}
	return g.betas[ref.index].memory
}

// RuleNames returns every rule's name in the textual order BuildGraph saw
// them, for the firing driver's rule scan (§4.4).
func (g *Graph) RuleNames() []string {
	names := make([]string, len(g.terminals))
	for i, term := range g.terminals {
		names[i] = term.ruleName
	}
	return names
}

// Matches returns the current candidate tuples for the rule at ruleIndex
// (an index into RuleNames()), in the terminal node's memory order — which
// traces back to FactTable.Iter's insertion order at the leaves, the
// observable tie-breaking order §4.2 and §4.4 require.
func (g *Graph) Matches(ruleIndex int) []tuple {
	return g.memory(g.terminals[ruleIndex].chain)
}
