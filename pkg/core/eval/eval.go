// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package eval is a reference numeric evaluator of hops graphs, used to check that rewrites
// preserve the semantics of a program.
//
// Matrices are dense gonum matrices. Indexing bounds are 1-based and inclusive, and element-wise
// binary operations broadcast scalars, row vectors and column vectors.
package eval

import (
	"fmt"
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/hoprewrite/pkg/core/hops"
	"github.com/gomlx/hoprewrite/pkg/core/mmchain"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Value is either a scalar or a matrix (if Matrix != nil).
type Value struct {
	Scalar float64
	Matrix *mat.Dense
}

// ScalarValue returns a scalar Value.
func ScalarValue(v float64) Value { return Value{Scalar: v} }

// MatrixValue returns a matrix Value.
func MatrixValue(m *mat.Dense) Value { return Value{Matrix: m} }

// IsScalar returns whether v holds a scalar.
func (v Value) IsScalar() bool { return v.Matrix == nil }

// Dims of the matrix, or (0, 0) for scalars.
func (v Value) Dims() (rows, cols int) {
	if v.IsScalar() {
		return 0, 0
	}
	return v.Matrix.Dims()
}

// String implements fmt.Stringer.
func (v Value) String() string {
	if v.IsScalar() {
		return fmt.Sprintf("%g", v.Scalar)
	}
	return fmt.Sprintf("%v", mat.Formatted(v.Matrix, mat.Squeeze()))
}

// EqualApprox returns whether the two values have the same kind and dimensions and all their
// elements are within tolerance.
func EqualApprox(a, b Value, tolerance float64) bool {
	if a.IsScalar() != b.IsScalar() {
		return false
	}
	if a.IsScalar() {
		return math.Abs(a.Scalar-b.Scalar) <= tolerance
	}
	return mat.EqualApprox(a.Matrix, b.Matrix, tolerance)
}

// Evaluate computes the values of roots, given the values of the Data nodes by name.
// Each node is evaluated once, even if shared by many consumers.
func Evaluate(g *hops.Graph, roots []hops.NodeID, inputs map[string]Value) ([]Value, error) {
	e := &evaluator{g: g, inputs: inputs, cache: make(map[hops.NodeID]Value)}
	var results []Value
	err := exceptions.TryCatch[error](func() {
		results = make([]Value, len(roots))
		for ii, root := range roots {
			results[ii] = e.eval(root)
		}
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "evaluating graph %q", g.Name())
	}
	return results, nil
}

type evaluator struct {
	g      *hops.Graph
	inputs map[string]Value
	cache  map[hops.NodeID]Value
}

func (e *evaluator) eval(id hops.NodeID) Value {
	if v, found := e.cache[id]; found {
		return v
	}
	n := e.g.Node(id)
	if n.IsRetired() {
		exceptions.Panicf("node %s is retired", n)
	}
	operands := make([]Value, n.NumInputs())
	for ii := range operands {
		operands[ii] = e.eval(n.Input(ii))
	}
	var v Value
	switch n.OpType() {
	case hops.OpTypeData:
		v = e.data(n)
	case hops.OpTypeLiteral:
		v = ScalarValue(n.LiteralValue())
	case hops.OpTypeWrite:
		v = operands[0]
	case hops.OpTypeUnary:
		rows, cols := operands[0].Dims()
		switch n.UnaryOp() {
		case hops.Nrow:
			v = ScalarValue(float64(rows))
		case hops.Ncol:
			v = ScalarValue(float64(cols))
		default:
			exceptions.Panicf("node %s: unknown unary operation", n)
		}
	case hops.OpTypeBinary:
		v = binary(n, operands[0], operands[1])
	case hops.OpTypeMatMul:
		lhs, rhs := asMatrix(n, operands[0]), asMatrix(n, operands[1])
		var result mat.Dense
		result.Mul(lhs, rhs)
		v = MatrixValue(&result)
	case hops.OpTypeTranspose:
		if operands[0].IsScalar() {
			v = operands[0]
		} else {
			v = MatrixValue(mat.DenseCopyOf(operands[0].Matrix.T()))
		}
	case hops.OpTypeIndexing:
		v = indexing(n, operands)
	case hops.OpTypeLeftIndexing:
		v = leftIndexing(n, operands)
	case hops.OpTypeMMChain:
		var w *mat.Dense
		if len(operands) == 3 {
			w = asMatrix(n, operands[2])
		}
		result, err := mmchain.Execute(asMatrix(n, operands[0]), asMatrix(n, operands[1]), w, n.ChainType(), n.NumThreads())
		if err != nil {
			panic(errors.WithMessagef(err, "node %s", n))
		}
		v = MatrixValue(result)
	default:
		exceptions.Panicf("node %s: cannot evaluate op type %s", n, n.OpType())
	}
	e.cache[id] = v
	return v
}

func (e *evaluator) data(n *hops.Node) Value {
	v, found := e.inputs[n.Name()]
	if !found {
		exceptions.Panicf("no value given for %s", n)
	}
	switch n.DataType() {
	case hops.Scalar:
		if !v.IsScalar() {
			exceptions.Panicf("%s is a scalar, given a matrix", n)
		}
	case hops.Matrix:
		if v.IsScalar() {
			exceptions.Panicf("%s is a matrix, given a scalar", n)
		}
		rows, cols := v.Dims()
		if (n.Rows() >= 0 && n.Rows() != rows) || (n.Cols() >= 0 && n.Cols() != cols) {
			exceptions.Panicf("%s is %dx%d, given a %dx%d matrix", n, n.Rows(), n.Cols(), rows, cols)
		}
	}
	return v
}

func asMatrix(n *hops.Node, v Value) *mat.Dense {
	if v.IsScalar() {
		exceptions.Panicf("node %s: expected matrix operand, got scalar %g", n, v.Scalar)
	}
	return v.Matrix
}

func binaryFn(n *hops.Node) func(a, b float64) float64 {
	switch n.BinaryOp() {
	case hops.Mult:
		return func(a, b float64) float64 { return a * b }
	case hops.Pow:
		return math.Pow
	case hops.Plus:
		return func(a, b float64) float64 { return a + b }
	case hops.Minus:
		return func(a, b float64) float64 { return a - b }
	case hops.Div:
		return func(a, b float64) float64 { return a / b }
	}
	exceptions.Panicf("node %s: unknown binary operation", n)
	return nil
}

// broadcastDim returns the dimension of the result of an element-wise operation.
func broadcastDim(n *hops.Node, a, b int) int {
	switch {
	case a == b, b == 1:
		return a
	case a == 1:
		return b
	}
	exceptions.Panicf("node %s: incompatible dimensions %d and %d", n, a, b)
	return 0
}

func binary(n *hops.Node, lhs, rhs Value) Value {
	fn := binaryFn(n)
	if lhs.IsScalar() && rhs.IsScalar() {
		return ScalarValue(fn(lhs.Scalar, rhs.Scalar))
	}
	// at returns the element (row, col) of v, broadcasting unit dimensions.
	at := func(v Value, row, col int) float64 {
		if v.IsScalar() {
			return v.Scalar
		}
		rows, cols := v.Dims()
		return v.Matrix.At(row%rows, col%cols)
	}
	lRows, lCols := lhs.Dims()
	rRows, rCols := rhs.Dims()
	var rows, cols int
	switch {
	case lhs.IsScalar():
		rows, cols = rRows, rCols
	case rhs.IsScalar():
		rows, cols = lRows, lCols
	default:
		rows, cols = broadcastDim(n, lRows, rRows), broadcastDim(n, lCols, rCols)
	}
	result := mat.NewDense(rows, cols, nil)
	for row := range rows {
		for col := range cols {
			result.Set(row, col, fn(at(lhs, row, col), at(rhs, row, col)))
		}
	}
	return MatrixValue(result)
}

// bound converts a 1-based scalar bound to an integer.
func bound(n *hops.Node, v Value) int {
	if !v.IsScalar() {
		exceptions.Panicf("node %s: indexing bound must be a scalar", n)
	}
	b := math.Round(v.Scalar)
	if b != v.Scalar {
		exceptions.Panicf("node %s: indexing bound %g is not an integer", n, v.Scalar)
	}
	return int(b)
}

// slice returns the 0-based [start, end) ranges for the 1-based inclusive bounds in operands[first:first+4].
func slice(n *hops.Node, target Value, operands []Value, first int) (r0, r1, c0, c1 int) {
	rows, cols := target.Dims()
	rl, ru := bound(n, operands[first]), bound(n, operands[first+1])
	cl, cu := bound(n, operands[first+2]), bound(n, operands[first+3])
	if rl < 1 || ru < rl || ru > rows || cl < 1 || cu < cl || cu > cols {
		exceptions.Panicf("node %s: range [%d:%d, %d:%d] out of bounds for a %dx%d matrix", n, rl, ru, cl, cu, rows, cols)
	}
	return rl - 1, ru, cl - 1, cu
}

func indexing(n *hops.Node, operands []Value) Value {
	target := operands[0]
	asMatrix(n, target)
	r0, r1, c0, c1 := slice(n, target, operands, 1)
	return MatrixValue(mat.DenseCopyOf(target.Matrix.Slice(r0, r1, c0, c1)))
}

func leftIndexing(n *hops.Node, operands []Value) Value {
	target, value := operands[0], operands[1]
	asMatrix(n, target)
	r0, r1, c0, c1 := slice(n, target, operands, 2)
	result := mat.DenseCopyOf(target.Matrix)
	if value.IsScalar() {
		for row := r0; row < r1; row++ {
			for col := c0; col < c1; col++ {
				result.Set(row, col, value.Scalar)
			}
		}
		return MatrixValue(result)
	}
	if rows, cols := value.Dims(); rows != r1-r0 || cols != c1-c0 {
		exceptions.Panicf("node %s: writing a %dx%d value into a %dx%d range", n, rows, cols, r1-r0, c1-c0)
	}
	result.Slice(r0, r1, c0, c1).(*mat.Dense).Copy(value.Matrix)
	return MatrixValue(result)
}
