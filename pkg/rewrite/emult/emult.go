// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package emult implements the element-wise multiply chain rewrite rule, registered as "emult".
//
// Starting at an element-wise multiply, the rule expands every operand that is itself an element-wise
// multiply, collecting the tree of multiplies and the multiset of the other operands (the leaves).
// If the tree has at least two multiplies and some leaf occurs more than once, the tree is replaced
// by a product of the distinct leaves, with repeated leaves raised to their multiplicity:
//
//	(B * A) * (B * A) * B  ->  A^2 * B^3
//
// The product is built in a canonical order: scalars and column vectors are multiplied last, row
// vectors before them, and everything else first (see compareLeaves).
//
// Leaves are matched by node identity: it relies on common sub-expression elimination having made
// equal sub-expressions the same node.
//
// The rule doesn't apply if the value of an interior multiply is consumed outside the tree.
package emult

import (
	"slices"

	"github.com/gomlx/hoprewrite/pkg/core/hops"
	"github.com/gomlx/hoprewrite/pkg/rewrite"
	"github.com/gomlx/hoprewrite/pkg/support/sets"
	"github.com/pkg/errors"
)

// Name of the rule in the rewrite registry.
const Name = "emult"

func init() {
	rewrite.Register(Name, func(options string) (rewrite.Rule, error) {
		if options != "" {
			return nil, errors.Errorf("rule %q takes no options, got %q", Name, options)
		}
		return New(), nil
	})
}

// Rule is the element-wise multiply chain rule.
type Rule struct{}

var _ rewrite.Rule = (*Rule)(nil)

// New returns the element-wise multiply chain rule.
func New() *Rule { return &Rule{} }

// Name implements rewrite.Rule.
func (r *Rule) Name() string { return Name }

// multTree is the sub-graph of element-wise multiplies rooted at one node.
type multTree struct {
	// interior multiplies, in discovery order, root first.
	interior []hops.NodeID
	members  sets.Set[hops.NodeID]

	// leaves with their multiplicity.
	leaves *sets.Multiset[hops.NodeID]
}

func collectTree(g *hops.Graph, root hops.NodeID) *multTree {
	t := &multTree{members: sets.Make[hops.NodeID](), leaves: sets.MakeMultiset[hops.NodeID]()}
	var expand func(id hops.NodeID)
	expand = func(id hops.NodeID) {
		if !t.members.Has(id) {
			t.members.Insert(id)
			t.interior = append(t.interior, id)
		}
		// Shared multiplies are expanded once per path, so leaves get their full multiplicity.
		for _, input := range g.Node(id).Inputs() {
			if g.Node(input).IsBinary(hops.Mult) {
				expand(input)
			} else {
				t.leaves.Insert(input)
			}
		}
	}
	expand(root)
	return t
}

// hasForeignParent returns whether some interior multiply (other than the root) is consumed
// outside the tree.
func (t *multTree) hasForeignParent(g *hops.Graph) bool {
	for _, id := range t.interior[1:] {
		for _, parent := range g.Node(id).Parents() {
			if !t.members.Has(parent) {
				return true
			}
		}
	}
	return false
}

// Apply implements rewrite.Rule.
func (r *Rule) Apply(p *rewrite.Pass, id hops.NodeID) hops.NodeID {
	g := p.Graph()
	if !g.Node(id).IsBinary(hops.Mult) {
		return hops.InvalidNodeID
	}
	tree := collectTree(g, id)
	if len(tree.interior) < 2 || !tree.leaves.HasRepeated() {
		return hops.InvalidNodeID
	}
	if tree.hasForeignParent(g) {
		return hops.InvalidNodeID
	}

	leaves := tree.leaves.Keys()
	slices.SortFunc(leaves, func(a, b hops.NodeID) int {
		return compareLeaves(g.Node(a), g.Node(b))
	})
	replacement, created, numPowers := buildProduct(g, leaves, tree.leaves)
	p.MarkVisited(created...)

	edges := g.RedirectParents(id, replacement)
	g.RetireAll(tree.interior)
	for _, e := range edges {
		g.Refresh(e.Parent)
	}
	p.Resume(leaves...)
	p.Trace(r, id, replacement, "collapsed %d elementwise multiplies into %d powers", len(tree.interior), numPowers)
	return replacement
}

// buildProduct multiplies the sorted leaves, raising each to its multiplicity, in the canonical nesting:
//
//	((others * matrices) * rowVectors) * scalarsAndColVectors
//
// It returns the product, the nodes it created and the number of powers created.
// If building fails (incompatible operands) the created nodes are discarded before the panic is propagated,
// leaving the graph as it was.
func buildProduct(g *hops.Graph, sorted []hops.NodeID, counts *sets.Multiset[hops.NodeID]) (
	product hops.NodeID, created []hops.NodeID, numPowers int) {
	first := hops.NodeID(g.NumNodes())
	defer func() {
		if r := recover(); r != nil {
			g.Truncate(int(first))
			panic(r)
		}
	}()

	mult := func(lhs, rhs hops.NodeID) hops.NodeID {
		if lhs == hops.InvalidNodeID {
			return rhs
		}
		if rhs == hops.InvalidNodeID {
			return lhs
		}
		return g.Mult(lhs, rhs)
	}

	scalarsAndColVectors, rowVectors, matrices, others := hops.InvalidNodeID, hops.InvalidNodeID, hops.InvalidNodeID, hops.InvalidNodeID
	for _, leaf := range sorted {
		term := leaf
		if count := counts.Count(leaf); count > 1 {
			term = g.Pow(leaf, int64(count))
			numPowers++
		}
		switch classify(g.Node(leaf)) {
		case classScalar, classColVector:
			// New terms of this group are multiplied from the left.
			scalarsAndColVectors = mult(term, scalarsAndColVectors)
		case classRowVector:
			rowVectors = mult(rowVectors, term)
		case classMatrix:
			matrices = mult(matrices, term)
		default:
			others = mult(others, term)
		}
	}
	product = mult(mult(mult(others, matrices), rowVectors), scalarsAndColVectors)
	for id := first; int(id) < g.NumNodes(); id++ {
		created = append(created, id)
	}
	return product, created, numPowers
}
