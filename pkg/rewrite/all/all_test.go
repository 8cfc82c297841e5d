// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package all

import (
	"math/rand/v2"
	"testing"

	"github.com/gomlx/hoprewrite/pkg/core/hops"
	"github.com/gomlx/hoprewrite/pkg/core/hops/hopstest"
	"github.com/gomlx/hoprewrite/pkg/rewrite"
	"github.com/gomlx/hoprewrite/pkg/rewrite/emult"
	"github.com/gomlx/hoprewrite/pkg/rewrite/indexing"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistered(t *testing.T) {
	assert.Subset(t, rewrite.RegisteredRules(), []string{emult.Name, indexing.Name})
	t.Setenv(rewrite.HOPREWRITE_RULES, "")
	var names []string
	for _, rule := range must.M1(rewrite.New()).Rules() {
		names = append(names, rule.Name())
	}
	assert.Equal(t, []string{emult.Name, indexing.Name}, names)
}

// TestBothRules rewrites a graph where each rule has something to do.
func TestBothRules(t *testing.T) {
	g := hops.New("both")
	x := g.Matrix("X", 4, 6, -1)
	row := g.Literal(2)
	target := x
	for ii := range 3 {
		col := g.Literal(float64(2*ii + 1))
		target = g.LeftIndexing(target, g.ScalarVar(string(rune('a'+ii))), row, row, col, col, true, true)
	}
	a := g.Matrix("A", 4, 6, 20)
	b := g.Matrix("B", 4, 6, 10)
	product := g.Mult(g.Mult(a, b), g.Mult(target, a))
	out := g.Write("out", product)

	collector := &rewrite.Collector{}
	rewriter := must.M1(rewrite.NewWithConfig("indexing,emult")).WithTrace(collector).WithValidation(true)
	rng := rand.New(rand.NewPCG(17, 19))
	var stats rewrite.Stats
	hopstest.RequireEquivalent(t, g, []hops.NodeID{out}, rng, func(roots []hops.NodeID) []hops.NodeID {
		newRoots, s, err := rewriter.RewriteWithStats(g, roots)
		require.NoError(t, err)
		stats = s
		return newRoots
	})
	assert.Equal(t, 1, stats.Applied[indexing.Name])
	assert.Equal(t, 1, stats.Applied[emult.Name])
	assert.Len(t, collector.Records(), 2)
}
