// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hops

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// Refresh recomputes the data type, value type, dimensions and nnz of node id from its current
// operands. It must be called after any edit to the operands of a node (or to its indexing flags),
// before size-dependent decisions are taken on it or its consumers.
//
// Data and Literal nodes keep the information they were created with.
func (g *Graph) Refresh(id NodeID) {
	n := g.live(id)
	switch n.opType {
	case OpTypeData:
		// Sizes are given at creation.
	case OpTypeLiteral:
		n.dataType, n.rows, n.cols, n.nnz = Scalar, 0, 0, -1
		n.valueType = dtypes.Float64
		if _, ok := n.LiteralInt64(); ok {
			n.valueType = dtypes.Int64
		}
	case OpTypeWrite:
		g.checkArity(n, 1)
		in := g.operand(n, 0)
		n.dataType, n.valueType = in.dataType, in.valueType
		n.rows, n.cols, n.nnz = in.rows, in.cols, in.nnz
	case OpTypeUnary:
		g.checkArity(n, 1)
		n.dataType, n.valueType = Scalar, dtypes.Int64
		n.rows, n.cols, n.nnz = 0, 0, -1
	case OpTypeBinary:
		g.refreshBinary(n)
	case OpTypeMatMul:
		g.checkArity(n, 2)
		lhs, rhs := g.operand(n, 0), g.operand(n, 1)
		if !lhs.IsMatrix() || !rhs.IsMatrix() {
			exceptions.Panicf("MatMul %s requires matrix operands, got %s and %s", n, lhs.dataType, rhs.dataType)
		}
		if lhs.cols >= 0 && rhs.rows >= 0 && lhs.cols != rhs.rows {
			exceptions.Panicf("MatMul %s: incompatible dimensions %dx%d and %dx%d", n, lhs.rows, lhs.cols, rhs.rows, rhs.cols)
		}
		n.dataType, n.valueType = Matrix, dtypes.Float64
		n.rows, n.cols, n.nnz = lhs.rows, rhs.cols, -1
	case OpTypeTranspose:
		g.checkArity(n, 1)
		in := g.operand(n, 0)
		n.dataType, n.valueType = in.dataType, in.valueType
		n.rows, n.cols, n.nnz = in.cols, in.rows, in.nnz
	case OpTypeIndexing:
		g.checkArity(n, IndexingNumInputs)
		in := g.operand(n, 0)
		d := n.data.(*indexingData)
		n.dataType, n.valueType = Matrix, in.valueType
		n.rows = g.boundsExtent(n, 1, 2, d.rowLowerEqualsUpper)
		n.cols = g.boundsExtent(n, 3, 4, d.colLowerEqualsUpper)
		n.nnz = -1
	case OpTypeLeftIndexing:
		g.checkArity(n, LeftIndexingNumInputs)
		target := g.operand(n, 0)
		n.dataType, n.valueType = Matrix, target.valueType
		n.rows, n.cols, n.nnz = target.rows, target.cols, -1
	case OpTypeMMChain:
		d := n.data.(*chainData)
		g.checkArity(n, d.chainType.NumOperands())
		x := g.operand(n, 0)
		n.dataType, n.valueType = Matrix, dtypes.Float64
		n.rows, n.cols, n.nnz = x.cols, 1, -1
	default:
		exceptions.Panicf("Refresh(%s): unknown op type %s", n, n.opType)
	}
}

func (g *Graph) operand(n *Node, pos int) *Node {
	return g.nodes[n.Input(pos)]
}

func (g *Graph) checkArity(n *Node, want int) {
	if len(n.inputs) != want {
		exceptions.Panicf("node %s must have %d inputs, it has %d", n, want, len(n.inputs))
	}
}

// boundsExtent returns the number of rows (columns) selected by the bounds at positions lower and upper.
func (g *Graph) boundsExtent(n *Node, lower, upper int, equal bool) int {
	if equal {
		return 1
	}
	lo, okLo := g.operand(n, lower).LiteralInt64()
	hi, okHi := g.operand(n, upper).LiteralInt64()
	if !okLo || !okHi || hi < lo {
		return -1
	}
	return int(hi - lo + 1)
}

// broadcastDim combines a dimension of two matrix operands of an element-wise operation.
func broadcastDim(n *Node, a, b int) int {
	switch {
	case a == b:
		return a
	case a == 1 && b < 0, b == 1 && a < 0:
		// The unknown dimension may itself be 1 or be broadcast to.
		return -1
	case a == 1:
		return b
	case b == 1:
		return a
	case a < 0:
		return b
	case b < 0:
		return a
	}
	exceptions.Panicf("element-wise %s: incompatible dimensions %d and %d", n, a, b)
	return -1
}

func (g *Graph) refreshBinary(n *Node) {
	g.checkArity(n, 2)
	lhs, rhs := g.operand(n, 0), g.operand(n, 1)
	op := n.BinaryOp()

	n.valueType = dtypes.Float64
	if lhs.valueType == dtypes.Int64 && rhs.valueType == dtypes.Int64 && op != Div {
		n.valueType = dtypes.Int64
	}
	switch {
	case lhs.IsMatrix() || rhs.IsMatrix():
		n.dataType = Matrix
	case lhs.IsScalar() && rhs.IsScalar():
		n.dataType, n.rows, n.cols, n.nnz = Scalar, 0, 0, -1
		return
	default:
		n.dataType, n.rows, n.cols, n.nnz = max(lhs.dataType, rhs.dataType), -1, -1, -1
		return
	}

	switch {
	case lhs.IsMatrix() && rhs.IsMatrix():
		n.rows = broadcastDim(n, lhs.rows, rhs.rows)
		n.cols = broadcastDim(n, lhs.cols, rhs.cols)
	case lhs.IsMatrix():
		n.rows, n.cols = lhs.rows, lhs.cols
	default:
		n.rows, n.cols = rhs.rows, rhs.cols
	}

	n.nnz = -1
	switch op {
	case Mult:
		// Zeros of any full-size operand remain zeros.
		n.nnz = -1
		for _, operand := range []*Node{lhs, rhs} {
			if !operand.IsMatrix() || operand.rows != n.rows || operand.cols != n.cols {
				continue
			}
			if operand.nnz < 0 {
				n.nnz = -1
				break
			}
			if n.nnz < 0 || operand.nnz < n.nnz {
				n.nnz = operand.nnz
			}
		}
	case Pow:
		if exponent, ok := rhs.LiteralInt64(); ok && exponent > 0 && lhs.IsMatrix() {
			n.nnz = lhs.nnz
		}
	}
}
