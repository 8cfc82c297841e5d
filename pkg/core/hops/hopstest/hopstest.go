// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package hopstest holds helpers to test rewrites of hops graphs: random inputs for the Data
// nodes and numeric equivalence checks.
package hopstest

import (
	"math/rand/v2"
	"testing"

	"github.com/gomlx/hoprewrite/pkg/core/eval"
	"github.com/gomlx/hoprewrite/pkg/core/hops"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// Tolerance used when comparing values before and after a rewrite.
const Tolerance = 1e-9

// RandomInputs returns random values for every live Data node of g, keyed by name.
// Matrix Data nodes must have known dimensions. Values are drawn from [0.5, 1.5), so
// powers and products stay well conditioned.
func RandomInputs(t testing.TB, g *hops.Graph, rng *rand.Rand) map[string]eval.Value {
	t.Helper()
	inputs := make(map[string]eval.Value)
	for _, id := range g.LiveNodes() {
		n := g.Node(id)
		if n.OpType() != hops.OpTypeData {
			continue
		}
		if _, found := inputs[n.Name()]; found {
			continue
		}
		switch n.DataType() {
		case hops.Scalar:
			inputs[n.Name()] = eval.ScalarValue(rng.Float64() + 0.5)
		case hops.Matrix:
			require.Truef(t, n.Rows() > 0 && n.Cols() > 0, "data node %s must have known dimensions", n)
			data := make([]float64, n.Rows()*n.Cols())
			for ii := range data {
				data[ii] = rng.Float64() + 0.5
			}
			inputs[n.Name()] = eval.MatrixValue(mat.NewDense(n.Rows(), n.Cols(), data))
		default:
			require.Failf(t, "unsupported data node", "cannot generate values for %s", n)
		}
	}
	return inputs
}

// Evaluate the roots with the given inputs, failing the test on error.
func Evaluate(t testing.TB, g *hops.Graph, roots []hops.NodeID, inputs map[string]eval.Value) []eval.Value {
	t.Helper()
	values, err := eval.Evaluate(g, roots, inputs)
	require.NoErrorf(t, err, "failed to evaluate graph:\n%s", g.Format(roots...))
	return values
}

// RequireEquivalent runs rewrite on g and checks that the roots it returns evaluate to the same
// values as the original roots did, for a few random inputs. It also validates the graph after
// the rewrite. It returns the new roots.
func RequireEquivalent(t testing.TB, g *hops.Graph, roots []hops.NodeID, rng *rand.Rand,
	rewrite func(roots []hops.NodeID) []hops.NodeID) []hops.NodeID {
	t.Helper()
	const numTrials = 3
	allInputs := make([]map[string]eval.Value, numTrials)
	before := make([][]eval.Value, numTrials)
	for ii := range numTrials {
		allInputs[ii] = RandomInputs(t, g, rng)
		before[ii] = Evaluate(t, g, roots, allInputs[ii])
	}
	newRoots := rewrite(roots)
	require.Len(t, newRoots, len(roots))
	require.NoError(t, g.Validate())
	for ii := range numTrials {
		after := Evaluate(t, g, newRoots, allInputs[ii])
		for rootIdx := range roots {
			require.Truef(t, eval.EqualApprox(before[ii][rootIdx], after[rootIdx], Tolerance),
				"root #%d differs after rewrite (trial %d):\nbefore: %s\nafter: %s\ngraph:\n%s",
				rootIdx, ii, before[ii][rootIdx], after[rootIdx], g.Format(newRoots...))
		}
	}
	return newRoots
}
