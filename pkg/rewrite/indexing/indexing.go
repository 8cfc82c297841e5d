// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package indexing implements the left-indexing vectorization rewrite rule, registered as "indexing".
//
// A chain of single-cell writes into the same row of a matrix, e.g.:
//
//	X[i, 1] = a; X[i, 3] = b; X[i, 4] = c
//
// is rewritten to read the row once, apply the writes to the 1-row intermediate, and write the row back:
//
//	tmp = X[i, ]; tmp[1, 1] = a; tmp[1, 3] = b; tmp[1, 4] = c; X[i, ] = tmp
//
// Each left-indexing forces a copy of its target: after the rewrite only the row is copied for each
// write. The column variant is the mirror image, for writes into the same column.
//
// Rows (columns) are matched by node identity: it relies on common sub-expression elimination having
// made equal row expressions the same node.
//
// Options: "row" or "col" restrict the rule to one variant. By default both are tried, the row variant first.
package indexing

import (
	"github.com/gomlx/hoprewrite/pkg/core/hops"
	"github.com/gomlx/hoprewrite/pkg/rewrite"
	"github.com/pkg/errors"
)

// Name of the rule in the rewrite registry.
const Name = "indexing"

// Positions of the operands of a LeftIndexing node.
const (
	targetPos = iota
	valuePos
	rowLowerPos
	rowUpperPos
	colLowerPos
	colUpperPos
)

func init() {
	rewrite.Register(Name, func(options string) (rewrite.Rule, error) {
		switch options {
		case "":
			return New(), nil
		case "row":
			return &Rule{rows: true}, nil
		case "col":
			return &Rule{cols: true}, nil
		}
		return nil, errors.Errorf("rule %q: invalid options %q, valid values are \"row\" or \"col\"", Name, options)
	})
}

// Rule is the left-indexing vectorization rule.
type Rule struct {
	rows, cols bool
}

var _ rewrite.Rule = (*Rule)(nil)

// New returns the rule with both the row and the column variants enabled.
func New() *Rule {
	return &Rule{rows: true, cols: true}
}

// Name implements rewrite.Rule.
func (r *Rule) Name() string { return Name }

// Apply implements rewrite.Rule.
func (r *Rule) Apply(p *rewrite.Pass, id hops.NodeID) hops.NodeID {
	g := p.Graph()
	n := g.Node(id)
	if n.OpType() != hops.OpTypeLeftIndexing || !n.IsRowLowerEqualsUpper() || !n.IsColLowerEqualsUpper() {
		return hops.InvalidNodeID
	}
	if r.rows {
		if replacement := vectorize(p, r, id, rowVariant); replacement != hops.InvalidNodeID {
			return replacement
		}
	}
	if r.cols {
		return vectorize(p, r, id, colVariant)
	}
	return hops.InvalidNodeID
}

// variant holds what differs between the row and column vectorization.
type variant struct {
	name string

	// lowerPos, upperPos are the positions of the bounds being merged.
	lowerPos, upperPos int

	// equalBounds tells whether the bounds being merged are flagged as equal.
	equalBounds func(n *hops.Node) bool

	// setEqualBounds flags the merged bounds as equal.
	setEqualBounds func(g *hops.Graph, id hops.NodeID)

	// width returns the extent of the kept dimension: columns for the row variant.
	width func(n *hops.Node) int

	// height returns the extent of the merged dimension: rows for the row variant.
	height func(n *hops.Node) int

	// forColumns is passed to hops.Graph.CreateValueNode to get the extent of the kept dimension.
	forColumns bool
}

var (
	rowVariant = &variant{
		name:           "row",
		lowerPos:       rowLowerPos,
		upperPos:       rowUpperPos,
		equalBounds:    (*hops.Node).IsRowLowerEqualsUpper,
		setEqualBounds: func(g *hops.Graph, id hops.NodeID) { g.SetRowLowerEqualsUpper(id, true) },
		width:          (*hops.Node).Cols,
		height:         (*hops.Node).Rows,
		forColumns:     true,
	}
	colVariant = &variant{
		name:           "column",
		lowerPos:       colLowerPos,
		upperPos:       colUpperPos,
		equalBounds:    (*hops.Node).IsColLowerEqualsUpper,
		setEqualBounds: func(g *hops.Graph, id hops.NodeID) { g.SetColLowerEqualsUpper(id, true) },
		width:          (*hops.Node).Rows,
		height:         (*hops.Node).Cols,
		forColumns:     false,
	}
)

// collectChain returns the chain of left-indexing nodes starting at top that write into the same row
// (column) as top, and whose intermediate values have no other consumers.
func collectChain(g *hops.Graph, top hops.NodeID, v *variant) []hops.NodeID {
	chain := []hops.NodeID{top}
	index := g.Node(top).Input(v.lowerPos)
	current := g.Node(top)
	for {
		next := g.Node(current.Input(targetPos))
		if next.OpType() != hops.OpTypeLeftIndexing ||
			next.NumParents() > 1 ||
			!v.equalBounds(next) ||
			next.Input(v.lowerPos) != index ||
			v.width(g.Node(next.Input(targetPos))) <= 1 {
			break
		}
		chain = append(chain, next.ID())
		current = next
	}
	return chain
}

// vectorize applies the given variant of the rewrite to the chain starting at top, if possible.
func vectorize(p *rewrite.Pass, r *Rule, top hops.NodeID, v *variant) hops.NodeID {
	g := p.Graph()
	chain := collectChain(g, top, v)
	if len(chain) < 2 {
		return hops.InvalidNodeID
	}
	bottom := chain[len(chain)-1]
	base := g.Node(bottom).Input(targetPos)
	baseNode := g.Node(base)
	if v.width(baseNode) <= 1 || v.height(baseNode) == 1 {
		// Reading and writing back the whole row (column) would copy as much as the original writes.
		// An unknown height is accepted.
		return hops.InvalidNodeID
	}
	index := g.Node(top).Input(v.lowerPos)

	// Read the row (column) once.
	var read hops.NodeID
	if v == rowVariant {
		read = g.Indexing(base, index, index, g.Literal(1), g.CreateValueNode(base, v.forColumns), true, false)
	} else {
		read = g.Indexing(base, g.Literal(1), g.CreateValueNode(base, v.forColumns), index, index, false, true)
	}
	g.ReplaceInput(bottom, targetPos, read)

	// Bottom-up, the writes now index the 1-row (1-column) intermediate.
	for ii := len(chain) - 1; ii >= 0; ii-- {
		id := chain[ii]
		g.ReplaceInput(id, v.lowerPos, g.Literal(1))
		g.ReplaceInput(id, v.upperPos, g.Literal(1))
		v.setEqualBounds(g, id)
		g.Refresh(id)
	}

	// Write the row (column) back, for all former consumers of top.
	edges := g.ParentEdges(top)
	var write hops.NodeID
	if v == rowVariant {
		write = g.LeftIndexing(base, top, index, index, g.Literal(1), g.CreateValueNode(base, v.forColumns), true, false)
	} else {
		write = g.LeftIndexing(base, top, g.Literal(1), g.CreateValueNode(base, v.forColumns), index, index, false, true)
	}
	g.Redirect(edges, top, write)
	for _, e := range edges {
		g.Refresh(e.Parent)
	}
	p.Trace(r, top, write, "vectorized %d left-indexing ops on %s #%d", len(chain), v.name, index)
	return write
}
