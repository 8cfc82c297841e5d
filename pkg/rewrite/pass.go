// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package rewrite

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/hoprewrite/pkg/core/hops"
	"github.com/gomlx/hoprewrite/pkg/support/sets"
)

// Stats of one rewrite pass.
type Stats struct {
	// NodesVisited is the number of nodes whose operands were descended.
	NodesVisited int

	// Applied is the number of rewrites applied, per rule name.
	Applied map[string]int
}

// NumApplied returns the total number of rewrites applied.
func (s Stats) NumApplied() (total int) {
	for _, count := range s.Applied {
		total += count
	}
	return
}

// String implements fmt.Stringer.
func (s Stats) String() string {
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "visited %s nodes, %s rewrites applied", humanize.Comma(int64(s.NodesVisited)),
		humanize.Comma(int64(s.NumApplied())))
	for _, name := range slices.Sorted(maps.Keys(s.Applied)) {
		_, _ = fmt.Fprintf(&sb, ", %s=%d", name, s.Applied[name])
	}
	return sb.String()
}

// Pass is the state of one traversal of a graph. It is created by Rewriter.Rewrite and handed to the rules.
type Pass struct {
	rewriter *Rewriter
	g        *hops.Graph

	// visited holds the nodes whose operands have been (or are being) descended in this pass.
	visited sets.Set[hops.NodeID]

	// pending holds the nodes rules asked to resume the traversal at.
	pending []hops.NodeID

	// replaced maps nodes rewritten in this pass to their replacement.
	replaced map[hops.NodeID]hops.NodeID

	stats Stats

	// Rule and node being applied, for error messages.
	currentRule string
	currentNode hops.NodeID
}

func newPass(r *Rewriter, g *hops.Graph) *Pass {
	return &Pass{
		rewriter: r,
		g:        g,
		visited:  sets.Make[hops.NodeID](),
		replaced: make(map[hops.NodeID]hops.NodeID),
		stats:    Stats{Applied: make(map[string]int)},
	}
}

// Graph being rewritten.
func (p *Pass) Graph() *hops.Graph { return p.g }

// MarkVisited marks nodes as already processed: the traversal will not descend into them.
// Rules mark the nodes they create, so they are not offered again in the same pass.
func (p *Pass) MarkVisited(ids ...hops.NodeID) {
	p.visited.Insert(ids...)
}

// IsVisited returns whether the node has been processed in this pass.
func (p *Pass) IsVisited(id hops.NodeID) bool {
	return p.visited.Has(id)
}

// Resume asks the traversal to process the given nodes (if not yet visited) right after the
// current rule returns. Rules that mark their new nodes as visited use it to have the operands
// they kept (the leaves of a rewritten sub-graph) still processed.
func (p *Pass) Resume(ids ...hops.NodeID) {
	p.pending = append(p.pending, ids...)
}

// Trace emits a trace record for a rewrite, if the Rewriter has a TraceSink.
func (p *Pass) Trace(rule Rule, node, replacement hops.NodeID, format string, args ...any) {
	sink := p.rewriter.sink
	if sink == nil {
		return
	}
	sink.Trace(Record{
		Graph:       p.g.Name(),
		Rule:        rule.Name(),
		Node:        node,
		Replacement: replacement,
		Summary:     fmt.Sprintf(format, args...),
	})
}

// run traverses the graph from each of the roots, and returns the new roots.
func (p *Pass) run(roots []hops.NodeID) []hops.NodeID {
	newRoots := make([]hops.NodeID, len(roots))
	for ii, root := range roots {
		root = p.latest(root)
		if !p.visited.Has(root) {
			root = p.offer(root)
		}
		p.visit(root)
		p.drainPending()
		newRoots[ii] = p.latest(root)
	}
	return newRoots
}

// latest follows the replacements of id made in this pass.
func (p *Pass) latest(id hops.NodeID) hops.NodeID {
	for {
		replacement, found := p.replaced[id]
		if !found {
			return id
		}
		id = replacement
	}
}

// offer offers id to each rule in order, and returns its final replacement (or id itself).
func (p *Pass) offer(id hops.NodeID) hops.NodeID {
	for _, rule := range p.rewriter.rules {
		p.currentRule, p.currentNode = rule.Name(), id
		replacement := rule.Apply(p, id)
		p.currentRule, p.currentNode = "", hops.InvalidNodeID
		if replacement == hops.InvalidNodeID || replacement == id {
			continue
		}
		if p.g.Node(replacement).IsRetired() {
			exceptions.Panicf("rule %q replaced node #%d by retired node #%d", rule.Name(), id, replacement)
		}
		p.stats.Applied[rule.Name()]++
		p.replaced[id] = replacement
		id = replacement
	}
	return id
}

// visit descends into the operands of id, if not visited yet. Each operand is offered to the rules
// before it is descended.
func (p *Pass) visit(id hops.NodeID) {
	if p.visited.Has(id) {
		return
	}
	p.visited.Insert(id)
	p.stats.NodesVisited++
	n := p.g.Node(id)
	for pos := 0; pos < n.NumInputs(); pos++ {
		child := n.Input(pos)
		if !p.visited.Has(child) {
			replacement := p.offer(child)
			if replacement != child && n.Input(pos) != replacement {
				exceptions.Panicf("node #%d was replaced by #%d, but input #%d of its parent %s was not redirected",
					child, replacement, pos, n)
			}
			p.drainPending()
		}
		p.visit(n.Input(pos))
	}
}

// drainPending processes the nodes rules asked to resume at.
func (p *Pass) drainPending() {
	for len(p.pending) > 0 {
		id := p.pending[0]
		p.pending = p.pending[1:]
		if p.visited.Has(id) || p.g.Node(id).IsRetired() {
			continue
		}
		p.visit(p.offer(id))
	}
}
