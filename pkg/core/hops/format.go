// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hops

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/hoprewrite/pkg/support/sets"
)

// Reachable returns the nodes reachable from roots in post-order (operands before their consumers),
// each node listed once. The order is deterministic: operands are followed in position order.
func (g *Graph) Reachable(roots ...NodeID) []NodeID {
	visited := sets.Make[NodeID]()
	var order []NodeID
	var visit func(id NodeID)
	visit = func(id NodeID) {
		if visited.Has(id) {
			return
		}
		visited.Insert(id)
		for _, input := range g.Node(id).inputs {
			visit(input)
		}
		order = append(order, id)
	}
	for _, root := range roots {
		visit(root)
	}
	return order
}

// Format returns a deterministic dump of the sub-graph reachable from roots, one line per node
// in post-order, e.g.:
//
//	#0 = Data(X) : matrix 10x5 nnz=?
//	#1 = Literal(2) : scalar
//	#2 = Binary(^) #0 #1 : matrix 10x5 nnz=?
func (g *Graph) Format(roots ...NodeID) string {
	var sb strings.Builder
	for _, id := range g.Reachable(roots...) {
		n := g.nodes[id]
		_, _ = fmt.Fprintf(&sb, "#%d = %s", n.id, n.OpString())
		for _, input := range n.inputs {
			_, _ = fmt.Fprintf(&sb, " #%d", input)
		}
		_, _ = fmt.Fprintf(&sb, " : %s\n", n.ShapeString())
	}
	return sb.String()
}

var (
	explainHeaderStyle = lipgloss.NewStyle().Reverse(true).Padding(0, 1).Align(lipgloss.Center)
	explainRowStyle    = lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
)

// Explain renders a table of the nodes reachable from roots, for humans.
func (g *Graph) Explain(roots ...NodeID) string {
	numeric := func(v int64) string {
		if v < 0 {
			return "?"
		}
		return humanize.Comma(v)
	}
	table := lgtable.New().
		Border(lipgloss.NormalBorder()).
		Headers("Id", "Op", "Inputs", "Parents", "Type", "Rows", "Cols", "Nnz").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row < 0 {
				return explainHeaderStyle
			}
			s := explainRowStyle
			if col >= 5 {
				s = s.Align(lipgloss.Right)
			}
			return s
		})
	reachable := g.Reachable(roots...)
	for _, id := range reachable {
		n := g.nodes[id]
		var dims [2]string
		if n.dataType == Matrix {
			dims = [2]string{numeric(int64(n.rows)), numeric(int64(n.cols))}
		}
		nnz := ""
		if n.dataType == Matrix {
			nnz = numeric(n.nnz)
		}
		table.Row(
			fmt.Sprintf("#%d", n.id),
			n.OpString(),
			idsString(n.inputs),
			idsString(n.parents),
			fmt.Sprintf("%s/%s", n.dataType, n.valueType),
			dims[0], dims[1], nnz,
		)
	}
	return fmt.Sprintf("Graph %q: %s nodes reachable\n%s\n", g.name, humanize.Comma(int64(len(reachable))), table.Render())
}

func idsString(ids []NodeID) string {
	parts := make([]string, len(ids))
	for ii, id := range ids {
		parts[ii] = fmt.Sprintf("#%d", id)
	}
	return strings.Join(parts, " ")
}
