package engine

import (
	"context"
	"fmt"

	"github.com/roach88/nysm/internal/compiler"
	"github.com/roach88/nysm/internal/host"
)

// alphaNode filters live facts of one fact type through a single-pattern
// constraint. Its memory is rebuilt from scratch on every refresh (§4.3:
// "full recompute, not incremental maintenance") — there is no RETE-style
// delta propagation here, only a from-scratch scan each pass.
//
// binding is the BindingTable of whichever rule first registered this
// node's sharing key (§4.1 "Sharing"): a self-referencing BindingRef inside
// an alpha constraint (rare — comparing a pattern's own outer binding to
// itself) always resolves to the same pattern position regardless of which
// rule's table answers it, since sharing requires an identical constraint
// AST in the first place.
type alphaNode struct {
	spec    compiler.AlphaSpec
	binding *compiler.BindingTable
	memory  []tuple
}

// refresh rescans facts.Iter(spec.FactType) and keeps the handles whose
// single-fact tuple satisfies spec.Constraint.
func (a *alphaNode) refresh(ctx context.Context, facts *FactTable, h host.Host) error {
	entries := facts.Iter(a.spec.FactType)
	memory := make([]tuple, 0, len(entries))
	for _, entry := range entries {
		ev := &evaluator{
			ctx:     ctx,
			facts:   facts,
			host:    h,
			binding: a.binding,
			base:    a.spec.PatternIndex,
			t:       tuple{entry.Handle},
		}
		ok, err := ev.evalBool(a.spec.Constraint)
		if err != nil {
			return fmt.Errorf("alpha node (%s): %w", a.spec.FactType, err)
		}
		if ok {
			memory = append(memory, tuple{entry.Handle})
		}
	}
	a.memory = memory
	return nil
}

// chainRef points to either an alpha node or a beta node feeding the next
// join in a rule's pattern chain (§4.1's B0=alpha0, Bk=beta(Bk-1,...) fold).
type chainRef struct {
	alpha bool
	index int
}

// betaNode extends every tuple in its left parent's memory with every
// handle in its right alpha node's memory, keeping the combinations that
// satisfy predicate. Beta nodes are never shared across rules — only alpha
// nodes are content-addressed (§4.1) — so left always names a node created
// earlier in the same rule's chain, or for the first join, an alpha node.
type betaNode struct {
	left      chainRef
	right     int // index into Graph.alphas
	predicate compiler.BetaSpec
	binding   *compiler.BindingTable
	memory    []tuple
}

// refresh rebuilds memory as the cross-join of left and the right alpha
// node's memory, filtered by predicate. left is resolved by the caller
// (Graph.memory) since a betaNode does not hold a reference to its Graph.
func (b *betaNode) refresh(ctx context.Context, facts *FactTable, h host.Host, leftMemory, rightMemory []tuple) error {
	memory := make([]tuple, 0, len(leftMemory))
	for _, lt := range leftMemory {
		for _, rt := range rightMemory {
			cand := append(lt.clone(), rt[0])
			ev := &evaluator{
				ctx:     ctx,
				facts:   facts,
				host:    h,
				binding: b.binding,
				t:       cand,
			}
			ok, err := ev.evalBool(b.predicate.Predicate)
			if err != nil {
				return fmt.Errorf("beta node (pattern %d): %w", b.predicate.Pattern, err)
			}
			if ok {
				memory = append(memory, cand)
			}
		}
	}
	b.memory = memory
	return nil
}

// terminalNode is the sink of one rule's pattern chain: every tuple in the
// chain node's memory is a full match of that rule's when clause, ready to
// fire (§4.3, §4.4).
type terminalNode struct {
	ruleName string
	binding  *compiler.BindingTable
	chain    chainRef
}
