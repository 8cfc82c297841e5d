// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hops

import (
	"slices"

	"github.com/pkg/errors"
)

// Validate checks the structural invariants of the whole graph:
//
//   - every operand edge has exactly one matching parent entry, and vice versa;
//   - Data and Literal nodes have no operands, and the other ops have their fixed arity;
//   - retired nodes have no edges, and no live node references a retired one;
//   - the graph is acyclic.
//
// It returns the first violation found.
func (g *Graph) Validate() error {
	for _, n := range g.nodes {
		if n.retired {
			if len(n.inputs) > 0 || len(n.parents) > 0 {
				return errors.Errorf("graph %q: retired node %s still has %d inputs and %d parents",
					g.name, n, len(n.inputs), len(n.parents))
			}
			continue
		}
		if err := g.validateArity(n); err != nil {
			return err
		}
		for pos, input := range n.inputs {
			if input < 0 || int(input) >= len(g.nodes) {
				return errors.Errorf("graph %q: node %s input #%d is invalid (%d)", g.name, n, pos, input)
			}
			child := g.nodes[input]
			if child.retired {
				return errors.Errorf("graph %q: node %s input #%d is retired node %s", g.name, n, pos, child)
			}
			numEdges := countOf(n.inputs, input)
			if numParentEntries := countOf(child.parents, n.id); numParentEntries != numEdges {
				return errors.Errorf("graph %q: node %s uses %s %d times, but it is listed %d times as its parent",
					g.name, n, child, numEdges, numParentEntries)
			}
		}
		for _, parent := range n.parents {
			if parent < 0 || int(parent) >= len(g.nodes) {
				return errors.Errorf("graph %q: node %s has invalid parent %d", g.name, n, parent)
			}
			if !slices.Contains(g.nodes[parent].inputs, n.id) {
				return errors.Errorf("graph %q: node %s lists %s as parent, but it is not one of its inputs",
					g.name, n, g.nodes[parent])
			}
		}
	}
	return g.validateAcyclic()
}

func countOf(ids []NodeID, id NodeID) int {
	var count int
	for _, v := range ids {
		if v == id {
			count++
		}
	}
	return count
}

func (g *Graph) validateArity(n *Node) error {
	var want int
	switch n.opType {
	case OpTypeData, OpTypeLiteral:
		want = 0
	case OpTypeWrite, OpTypeUnary, OpTypeTranspose:
		want = 1
	case OpTypeBinary, OpTypeMatMul:
		want = 2
	case OpTypeIndexing:
		want = IndexingNumInputs
	case OpTypeLeftIndexing:
		want = LeftIndexingNumInputs
	case OpTypeMMChain:
		want = n.chain().chainType.NumOperands()
	default:
		return errors.Errorf("graph %q: node #%d has invalid op type %s", g.name, n.id, n.opType)
	}
	if len(n.inputs) != want {
		return errors.Errorf("graph %q: node %s has %d inputs, it requires %d", g.name, n, len(n.inputs), want)
	}
	return nil
}

// validateAcyclic runs an iterative depth-first search with the usual 3 colors.
func (g *Graph) validateAcyclic() error {
	const (
		white = iota
		grey
		black
	)
	colors := make([]int8, len(g.nodes))
	type frame struct {
		id  NodeID
		pos int
	}
	for start := range g.nodes {
		if colors[start] != white {
			continue
		}
		stack := []frame{{id: NodeID(start)}}
		colors[start] = grey
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			n := g.nodes[top.id]
			if top.pos >= len(n.inputs) {
				colors[top.id] = black
				stack = stack[:len(stack)-1]
				continue
			}
			child := n.inputs[top.pos]
			top.pos++
			switch colors[child] {
			case grey:
				return errors.Errorf("graph %q: cycle through nodes %s and %s", g.name, n, g.nodes[child])
			case white:
				colors[child] = grey
				stack = append(stack, frame{id: child})
			}
		}
	}
	return nil
}
