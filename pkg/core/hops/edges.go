// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hops

import (
	"slices"

	"github.com/gomlx/exceptions"
)

// Edge identifies one operand slot: input #Pos of Parent.
type Edge struct {
	Parent NodeID
	Pos    int
}

// removeParentEdge removes one occurrence of parent from the parents list of child.
func (g *Graph) removeParentEdge(child *Node, parent NodeID) {
	idx := slices.Index(child.parents, parent)
	if idx < 0 {
		exceptions.Panicf("graph %q: node %s is not listed as parent of %s", g.name, g.nodes[parent], child)
	}
	child.parents = slices.Delete(child.parents, idx, idx+1)
}

// ReplaceInput sets the operand at position pos of parent to child, and returns the previous operand.
func (g *Graph) ReplaceInput(parent NodeID, pos int, child NodeID) NodeID {
	p, c := g.live(parent), g.live(child)
	old := p.Input(pos)
	if parent == child {
		exceptions.Panicf("ReplaceInput(%s, %d, %s): would create a self-loop", p, pos, c)
	}
	if old == child {
		return old
	}
	g.removeParentEdge(g.nodes[old], parent)
	p.inputs[pos] = child
	c.parents = append(c.parents, parent)
	return old
}

// ParentEdges returns a snapshot of all operand slots pointing to child, in parents order.
// A parent that uses child more than once contributes one Edge per slot.
func (g *Graph) ParentEdges(child NodeID) []Edge {
	c := g.live(child)
	edges := make([]Edge, 0, len(c.parents))
	for _, parent := range slices.Compact(slices.Sorted(slices.Values(c.parents))) {
		for pos, input := range g.nodes[parent].inputs {
			if input == child {
				edges = append(edges, Edge{Parent: parent, Pos: pos})
			}
		}
	}
	if len(edges) != len(c.parents) {
		exceptions.Panicf("graph %q: node %s has %d parent entries but %d operand slots point to it",
			g.name, c, len(c.parents), len(edges))
	}
	return edges
}

// Redirect moves each of the given edges, which must currently point to old, to point to replacement.
// Edges are usually a snapshot taken with ParentEdges before replacement was built (so replacement itself,
// which may consume old, is not redirected).
func (g *Graph) Redirect(edges []Edge, old, replacement NodeID) {
	g.live(replacement)
	for _, e := range edges {
		if e.Parent == replacement {
			exceptions.Panicf("Redirect(%s -> %s): edge from the replacement itself", g.nodes[old], g.nodes[replacement])
		}
		if got := g.live(e.Parent).Input(e.Pos); got != old {
			exceptions.Panicf("Redirect(%s -> %s): input #%d of %s is %s", g.nodes[old], g.nodes[replacement],
				e.Pos, g.nodes[e.Parent], g.nodes[got])
		}
	}
	for _, e := range edges {
		g.ReplaceInput(e.Parent, e.Pos, replacement)
	}
}

// RedirectParents makes every current consumer of old use replacement instead, preserving
// each operand position. It returns the redirected edges.
func (g *Graph) RedirectParents(old, replacement NodeID) []Edge {
	edges := g.ParentEdges(old)
	g.Redirect(edges, old, replacement)
	return edges
}

// Retire detaches node id from its operands and marks it as retired. It must have no parents.
func (g *Graph) Retire(id NodeID) {
	n := g.live(id)
	if len(n.parents) > 0 {
		exceptions.Panicf("Retire(%s): node still has %d parents", n, len(n.parents))
	}
	for _, input := range n.inputs {
		g.removeParentEdge(g.nodes[input], id)
	}
	n.inputs = nil
	n.retired = true
}

// RetireAll retires a set of nodes that only consume each other: every parent of every node in ids
// must also be in ids. The check is done before any edit, so on failure the graph is unchanged.
// Edges from the retired nodes to their other operands are removed; those operands are kept.
func (g *Graph) RetireAll(ids []NodeID) {
	for _, id := range ids {
		n := g.live(id)
		for _, parent := range n.parents {
			if !slices.Contains(ids, parent) {
				exceptions.Panicf("RetireAll: node %s has parent %s outside of the retired set", n, g.nodes[parent])
			}
		}
	}
	for _, id := range ids {
		n := g.nodes[id]
		for _, input := range n.inputs {
			g.removeParentEdge(g.nodes[input], id)
		}
		n.inputs = nil
	}
	for _, id := range ids {
		n := g.nodes[id]
		if len(n.parents) > 0 {
			exceptions.Panicf("RetireAll: node %s still has parents %v after detaching", n, n.parents)
		}
		n.retired = true
	}
}
