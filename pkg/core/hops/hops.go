// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package hops defines the high-level operator DAG ("hops") of a linear-algebra program: the
// intermediate representation that algebraic rewrites operate on before it is lowered to instructions.
//
// A Graph is an arena of nodes addressed by stable NodeID indices. Nodes reference their operands
// ("inputs") and their consumers ("parents") by NodeID, and a node may have several parents
// (shared sub-expressions). Every structural edit goes through a Graph method that updates both
// directions of an edge together, so the inputs/parents lists are always consistent.
//
// # Error Handling
//
// Like the graph building API of GoMLX, structural faults (missing operands, wrong arities, edges that
// don't exist) indicate bugs upstream and are thrown with panic, carrying a stack-trace (see package
// github.com/gomlx/exceptions). Functions that inspect the graph for callers (Validate) return errors.
package hops

import (
	"sync/atomic"

	"github.com/gomlx/exceptions"
)

// GraphId is a process-unique identifier of a Graph.
type GraphId int64

// NodeID is the index of a Node in its Graph. IDs are assigned in creation order and never reused,
// so they can be used for deterministic tie-breaking.
type NodeID int32

// InvalidNodeID is returned where there is no node.
const InvalidNodeID NodeID = -1

// DefaultBlockSize is the block tiling factor given to data nodes created without one.
// It is opaque to the rewrites, and simply passed along to new nodes.
var DefaultBlockSize = 1000

var graphIdCounter atomic.Int64

// Graph holds the nodes of an operator DAG.
//
// A Graph is not safe for concurrent use: one rewrite pass at a time mutates it.
type Graph struct {
	id   GraphId
	name string

	// nodes is the arena, indexed by NodeID. Retired nodes are kept (with no edges) so
	// IDs remain stable.
	nodes []*Node
}

// New creates an empty Graph with the given name (used for logging only).
func New(name string) *Graph {
	return &Graph{
		id:   GraphId(graphIdCounter.Add(1)),
		name: name,
	}
}

// Id returns the process-unique id of the Graph.
func (g *Graph) Id() GraphId { return g.id }

// Name of the graph.
func (g *Graph) Name() string { return g.name }

// NumNodes returns the number of nodes ever created in the graph, including retired ones.
// Valid NodeIDs are in the range [0, NumNodes()).
func (g *Graph) NumNodes() int { return len(g.nodes) }

// Node returns the node with the given id. It panics if the id is not valid.
//
// The returned Node is a read-only view: all mutations go through Graph methods.
func (g *Graph) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(g.nodes) {
		exceptions.Panicf("graph %q: invalid node id #%d (graph has %d nodes)", g.name, id, len(g.nodes))
	}
	return g.nodes[id]
}

// live returns the node with the given id, and panics if it has been retired.
func (g *Graph) live(id NodeID) *Node {
	n := g.Node(id)
	if n.retired {
		exceptions.Panicf("graph %q: node %s has been retired", g.name, n)
	}
	return n
}

// LiveNodes returns the ids of all nodes not retired, in creation order.
func (g *Graph) LiveNodes() []NodeID {
	ids := make([]NodeID, 0, len(g.nodes))
	for _, n := range g.nodes {
		if !n.retired {
			ids = append(ids, n.id)
		}
	}
	return ids
}

// newNode creates a node, connects its inputs (both directions) and refreshes its size information.
func (g *Graph) newNode(opType OpType, data any, inputs ...NodeID) NodeID {
	for ii, input := range inputs {
		if input == InvalidNodeID {
			exceptions.Panicf("graph %q: creating %s node with invalid input #%d", g.name, opType, ii)
		}
		g.live(input)
	}
	n := &Node{
		graph:     g,
		id:        NodeID(len(g.nodes)),
		opType:    opType,
		data:      data,
		rows:      -1,
		cols:      -1,
		nnz:       -1,
		valueType: defaultValueType,
	}
	g.nodes = append(g.nodes, n)
	n.inputs = make([]NodeID, 0, len(inputs))
	for _, input := range inputs {
		n.inputs = append(n.inputs, input)
		child := g.nodes[input]
		child.parents = append(child.parents, n.id)
	}
	n.rowsInBlock, n.colsInBlock = g.inheritedBlockSizes(n)
	defer func() {
		if r := recover(); r != nil {
			// Invalid operands: leave the graph as it was.
			g.Truncate(int(n.id))
			panic(r)
		}
	}()
	g.Refresh(n.id)
	return n.id
}

// Truncate discards the nodes created after the graph had numNodes nodes, detaching them from
// their operands. None of the discarded nodes may be an operand of a kept node.
func (g *Graph) Truncate(numNodes int) {
	if numNodes < 0 || numNodes > len(g.nodes) {
		exceptions.Panicf("graph %q: Truncate(%d) out of range, graph has %d nodes", g.name, numNodes, len(g.nodes))
	}
	for _, n := range g.nodes[numNodes:] {
		for _, parent := range n.parents {
			if int(parent) < numNodes {
				exceptions.Panicf("graph %q: Truncate(%d): node %s is used by %s", g.name, numNodes, n, g.nodes[parent])
			}
		}
	}
	for ii := len(g.nodes) - 1; ii >= numNodes; ii-- {
		n := g.nodes[ii]
		for _, input := range n.inputs {
			g.removeParentEdge(g.nodes[input], n.id)
		}
		g.nodes[ii] = nil
	}
	g.nodes = g.nodes[:numNodes]
}

// inheritedBlockSizes returns the block sizes of the first matrix input, or the default block size.
func (g *Graph) inheritedBlockSizes(n *Node) (rows, cols int) {
	for _, input := range n.inputs {
		child := g.nodes[input]
		if child.dataType == Matrix && child.rowsInBlock > 0 {
			return child.rowsInBlock, child.colsInBlock
		}
	}
	return DefaultBlockSize, DefaultBlockSize
}

// SetBlockSizes sets the block tiling factors of a node. They are not interpreted by this package.
func (g *Graph) SetBlockSizes(id NodeID, rowsInBlock, colsInBlock int) {
	n := g.live(id)
	n.rowsInBlock, n.colsInBlock = rowsInBlock, colsInBlock
}
