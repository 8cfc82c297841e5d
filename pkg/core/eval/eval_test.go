// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package eval

import (
	"testing"

	"github.com/gomlx/hoprewrite/pkg/core/hops"
	"github.com/gomlx/hoprewrite/pkg/core/mmchain"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestBinaryBroadcast(t *testing.T) {
	g := hops.New("binary")
	x := g.Matrix("X", 2, 3, -1)
	row := g.Matrix("r", 1, 3, -1)
	col := g.Matrix("c", 2, 1, -1)
	s := g.ScalarVar("s")
	roots := []hops.NodeID{
		g.Mult(x, row),
		g.Binary(hops.Plus, col, x),
		g.Binary(hops.Minus, x, s),
		g.Pow(x, 2),
		g.Binary(hops.Div, s, g.Literal(4)),
	}
	inputs := map[string]Value{
		"X": MatrixValue(mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})),
		"r": MatrixValue(mat.NewDense(1, 3, []float64{10, 100, 1000})),
		"c": MatrixValue(mat.NewDense(2, 1, []float64{-1, 1})),
		"s": ScalarValue(2),
	}
	results := must.M1(Evaluate(g, roots, inputs))
	want := []Value{
		MatrixValue(mat.NewDense(2, 3, []float64{10, 200, 3000, 40, 500, 6000})),
		MatrixValue(mat.NewDense(2, 3, []float64{0, 1, 2, 5, 6, 7})),
		MatrixValue(mat.NewDense(2, 3, []float64{-1, 0, 1, 2, 3, 4})),
		MatrixValue(mat.NewDense(2, 3, []float64{1, 4, 9, 16, 25, 36})),
		ScalarValue(0.5),
	}
	for ii := range want {
		assert.True(t, EqualApprox(want[ii], results[ii], 1e-12), "result #%d: want %s, got %s", ii, want[ii], results[ii])
	}
}

func TestIndexing(t *testing.T) {
	g := hops.New("indexing")
	x := g.Matrix("X", 3, 4, -1)
	two, three, one := g.Literal(2), g.Literal(3), g.Literal(1)
	ncol := g.Unary(hops.Ncol, x)
	rowRead := g.Indexing(x, two, two, one, ncol, true, false)
	block := g.Indexing(x, two, three, two, three, false, false)
	cellWrite := g.LeftIndexing(x, g.ScalarVar("s"), three, three, one, one, true, true)
	rowWrite := g.LeftIndexing(x, g.Matrix("r", 1, 4, -1), one, one, one, ncol, true, false)

	inputs := map[string]Value{
		"X": MatrixValue(mat.NewDense(3, 4, []float64{
			1, 2, 3, 4,
			5, 6, 7, 8,
			9, 10, 11, 12})),
		"s": ScalarValue(-1),
		"r": MatrixValue(mat.NewDense(1, 4, []float64{0, 0, 0, 7})),
	}
	results := must.M1(Evaluate(g, []hops.NodeID{rowRead, block, cellWrite, rowWrite, ncol}, inputs))
	assert.Equal(t, []float64{5, 6, 7, 8}, results[0].Matrix.RawRowView(0))
	assert.True(t, mat.Equal(mat.NewDense(2, 2, []float64{6, 7, 10, 11}), results[1].Matrix))
	assert.Equal(t, -1.0, results[2].Matrix.At(2, 0))
	assert.Equal(t, 9.0, inputs["X"].Matrix.At(2, 0), "input must not be modified")
	assert.Equal(t, []float64{0, 0, 0, 7}, results[3].Matrix.RawRowView(0))
	assert.Equal(t, []float64{5, 6, 7, 8}, results[3].Matrix.RawRowView(1))
	assert.Equal(t, 4.0, results[4].Scalar)

	// Out of range.
	outOfRange := g.Indexing(x, g.Literal(4), g.Literal(4), one, one, true, true)
	_, err := Evaluate(g, []hops.NodeID{outOfRange}, inputs)
	require.ErrorContains(t, err, "out of bounds")
}

func TestMatMulAndChain(t *testing.T) {
	g := hops.New("chain")
	x := g.Matrix("X", 3, 2, -1)
	v := g.Matrix("v", 2, 1, -1)
	y := g.Matrix("y", 3, 1, -1)
	unfused := g.MatMul(g.Transpose(x), g.Binary(hops.Minus, g.MatMul(x, v), y))
	fused := g.MMChain(mmchain.XtXvy, 2, x, v, y)
	inputs := map[string]Value{
		"X": MatrixValue(mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})),
		"v": MatrixValue(mat.NewDense(2, 1, []float64{1, -1})),
		"y": MatrixValue(mat.NewDense(3, 1, []float64{1, 2, 3})),
	}
	results := must.M1(Evaluate(g, []hops.NodeID{unfused, fused}, inputs))
	assert.True(t, EqualApprox(results[0], results[1], 1e-12), "want %s, got %s", results[0], results[1])
}

func TestEvaluateErrors(t *testing.T) {
	g := hops.New("errors")
	x := g.Matrix("X", 2, 2, -1)
	out := g.Write("out", x)
	_, err := Evaluate(g, []hops.NodeID{out}, nil)
	require.ErrorContains(t, err, "no value given")
	_, err = Evaluate(g, []hops.NodeID{out}, map[string]Value{"X": ScalarValue(1)})
	require.ErrorContains(t, err, "given a scalar")
	_, err = Evaluate(g, []hops.NodeID{out}, map[string]Value{"X": MatrixValue(mat.NewDense(3, 2, nil))})
	require.ErrorContains(t, err, "given a 3x2 matrix")
}
