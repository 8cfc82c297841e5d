// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package mmchain

import (
	"math/rand/v2"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func randomDense(rng *rand.Rand, rows, cols int) *mat.Dense {
	data := make([]float64, rows*cols)
	for ii := range data {
		data[ii] = rng.Float64()*2 - 1
	}
	return mat.NewDense(rows, cols, data)
}

// unfused computes the chain the naive way, materializing every intermediate.
func unfused(x, v, w *mat.Dense, t ChainType) *mat.Dense {
	var xv mat.Dense
	xv.Mul(x, v)
	switch t {
	case XtwXv:
		xv.MulElem(w, &xv)
	case XtXvy:
		xv.Sub(&xv, w)
	}
	var result mat.Dense
	result.Mul(x.T(), &xv)
	return &result
}

func TestExecute(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))
	x := randomDense(rng, 37, 5)
	v := randomDense(rng, 5, 1)
	w := randomDense(rng, 37, 1)
	for _, chainType := range []ChainType{XtXv, XtwXv, XtXvy} {
		var third *mat.Dense
		if chainType.NumOperands() == 3 {
			third = w
		}
		want := unfused(x, v, third, chainType)
		for _, k := range []int{0, 1, 3, 64} {
			got, err := Execute(x, v, third, chainType, k)
			require.NoError(t, err, "chain=%s, k=%d", chainType, k)
			rows, cols := got.Dims()
			require.Equal(t, 5, rows)
			require.Equal(t, 1, cols)
			assert.True(t, mat.EqualApprox(want, got, 1e-9), "chain=%s, k=%d: want %v, got %v",
				chainType, k, mat.Formatted(want.T()), mat.Formatted(got.T()))
		}
	}
}

func TestExecuteErrors(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	x := randomDense(rng, 4, 3)
	v := randomDense(rng, 3, 1)
	w := randomDense(rng, 4, 1)

	_, err := Execute(x, v, nil, ChainTypeNone, 1)
	require.Error(t, err)
	_, err = Execute(x, w, nil, XtXv, 1)
	require.ErrorContains(t, err, "column vector")
	_, err = Execute(x, v, nil, XtwXv, 1)
	require.ErrorContains(t, err, "third operand")
	_, err = Execute(x, v, w, XtXv, 1)
	require.ErrorContains(t, err, "no third operand")
	_, err = Execute(x, v, v, XtXvy, 1)
	require.Error(t, err)
}

func TestChainType(t *testing.T) {
	for _, chainType := range []ChainType{XtXv, XtwXv, XtXvy} {
		parsed := must.M1(ParseChainType(chainType.String()))
		assert.Equal(t, chainType, parsed)
	}
	_, err := ParseChainType("NONE")
	require.Error(t, err)
	_, err = ParseChainType("XtX")
	require.Error(t, err)
	assert.Equal(t, 2, XtXv.NumOperands())
	assert.Equal(t, 3, XtwXv.NumOperands())
	assert.Equal(t, 3, XtXvy.NumOperands())
}

func TestParseInstruction(t *testing.T) {
	inst := must.M1(ParseInstruction("CP°mmchain°X·MATRIX·FP64°v·MATRIX·FP64°_mVar3·MATRIX·FP64°XtXv°16"))
	assert.Equal(t, "X", inst.X.Name)
	assert.Equal(t, "MATRIX", inst.X.DataType)
	assert.Equal(t, "FP64", inst.X.ValueType)
	assert.Equal(t, "v", inst.V.Name)
	assert.Equal(t, "", inst.W.Name)
	assert.Equal(t, "_mVar3", inst.Out.Name)
	assert.Equal(t, XtXv, inst.Type)
	assert.Equal(t, 16, inst.NumThreads)
	assert.Equal(t, "CP°mmchain°X·MATRIX·FP64°v·MATRIX·FP64°_mVar3·MATRIX·FP64°XtXv°16", inst.String())

	// Without the exec type, with the third operand.
	inst = must.M1(ParseInstruction("mmchain°X°v°w°out°XtwXv°4"))
	assert.Equal(t, "w", inst.W.Name)
	assert.Equal(t, XtwXv, inst.Type)
	assert.Equal(t, 4, inst.NumThreads)
	roundTrip := must.M1(ParseInstruction(inst.String()))
	assert.Equal(t, inst, roundTrip)

	for _, bad := range []string{
		"",
		"CP°ba+*°X°v°out°XtXv°1",
		"mmchain°X°v°out°XtXv",
		"mmchain°X°v°w°out°XtXv°1",   // XtXv takes no third operand.
		"mmchain°X°v°out°XtXvy°1",    // XtXvy requires y.
		"mmchain°X°v°out°XtXv°many",  // Invalid number of threads.
		"mmchain°°v°out°XtXv°1",      // Empty operand.
		"mmchain°X°v°out°Unknown°1",  // Invalid chain type.
	} {
		_, err := ParseInstruction(bad)
		assert.Error(t, err, "instruction %q should have failed to parse", bad)
	}
}
