// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hops

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/hoprewrite/pkg/core/mmchain"
)

// Number of operands of the indexing operations.
const (
	IndexingNumInputs     = 5
	LeftIndexingNumInputs = 6
)

// Data creates a node that reads the program variable name. Scalars are created with 0 rows and columns.
// Use -1 for unknown dimensions or nnz.
func (g *Graph) Data(name string, dataType DataType, rows, cols int, nnz int64) NodeID {
	id := g.newNode(OpTypeData, nil)
	n := g.nodes[id]
	n.name = name
	n.dataType = dataType
	switch dataType {
	case Scalar:
		n.rows, n.cols, n.nnz = 0, 0, -1
	case Matrix:
		n.rows, n.cols, n.nnz = rows, cols, nnz
	default:
		n.rows, n.cols, n.nnz = -1, -1, -1
	}
	return id
}

// Matrix is a shortcut to create a Data node of a matrix.
func (g *Graph) Matrix(name string, rows, cols int, nnz int64) NodeID {
	return g.Data(name, Matrix, rows, cols, nnz)
}

// ScalarVar is a shortcut to create a Data node of a scalar.
func (g *Graph) ScalarVar(name string) NodeID {
	return g.Data(name, Scalar, 0, 0, -1)
}

// Literal creates a constant scalar node.
func (g *Graph) Literal(value float64) NodeID {
	return g.newNode(OpTypeLiteral, value)
}

// Write creates a node writing x to the program variable name.
func (g *Graph) Write(name string, x NodeID) NodeID {
	id := g.newNode(OpTypeWrite, nil, x)
	g.nodes[id].name = name
	return id
}

// Unary creates a unary operation node.
func (g *Graph) Unary(op UnaryOp, x NodeID) NodeID {
	if op == UnaryOpInvalid {
		exceptions.Panicf("Unary: invalid operation %s", op)
	}
	return g.newNode(OpTypeUnary, op, x)
}

// Binary creates an element-wise binary operation node.
func (g *Graph) Binary(op BinaryOp, lhs, rhs NodeID) NodeID {
	if op == BinaryOpInvalid {
		exceptions.Panicf("Binary: invalid operation %s", op)
	}
	return g.newNode(OpTypeBinary, op, lhs, rhs)
}

// Mult creates an element-wise multiplication node.
func (g *Graph) Mult(lhs, rhs NodeID) NodeID { return g.Binary(Mult, lhs, rhs) }

// Pow creates the node base^exponent, with a new literal exponent.
func (g *Graph) Pow(base NodeID, exponent int64) NodeID {
	return g.Binary(Pow, base, g.Literal(float64(exponent)))
}

// MatMul creates a matrix multiplication node.
func (g *Graph) MatMul(lhs, rhs NodeID) NodeID {
	return g.newNode(OpTypeMatMul, nil, lhs, rhs)
}

// Transpose creates a node transposing x.
func (g *Graph) Transpose(x NodeID) NodeID {
	return g.newNode(OpTypeTranspose, nil, x)
}

// Indexing creates a slice read of input[rowLower:rowUpper, colLower:colUpper]. Bounds are
// 1-based and inclusive, and can be arbitrary scalar sub-expressions.
//
// rowLowerEqualsUpper (resp. colLowerEqualsUpper) records that the row (column) bounds are known to
// be the same, so the result has a single row (column).
func (g *Graph) Indexing(input, rowLower, rowUpper, colLower, colUpper NodeID, rowLowerEqualsUpper, colLowerEqualsUpper bool) NodeID {
	data := &indexingData{rowLowerEqualsUpper: rowLowerEqualsUpper, colLowerEqualsUpper: colLowerEqualsUpper}
	return g.newNode(OpTypeIndexing, data, input, rowLower, rowUpper, colLower, colUpper)
}

// LeftIndexing creates a slice write: a copy of target with target[rowLower:rowUpper, colLower:colUpper]
// set to value. See Indexing for the bounds.
func (g *Graph) LeftIndexing(target, value, rowLower, rowUpper, colLower, colUpper NodeID, rowLowerEqualsUpper, colLowerEqualsUpper bool) NodeID {
	data := &indexingData{rowLowerEqualsUpper: rowLowerEqualsUpper, colLowerEqualsUpper: colLowerEqualsUpper}
	return g.newNode(OpTypeLeftIndexing, data, target, value, rowLower, rowUpper, colLower, colUpper)
}

// SetRowLowerEqualsUpper updates the row flag of an Indexing or LeftIndexing node.
// The node has to be refreshed afterwards.
func (g *Graph) SetRowLowerEqualsUpper(id NodeID, value bool) {
	g.live(id).indexing().rowLowerEqualsUpper = value
}

// SetColLowerEqualsUpper updates the column flag of an Indexing or LeftIndexing node.
// The node has to be refreshed afterwards.
func (g *Graph) SetColLowerEqualsUpper(id NodeID, value bool) {
	g.live(id).indexing().colLowerEqualsUpper = value
}

// MMChain creates the fused matrix-multiplication chain node of the given type, with x, v and
// the optional third operand w (the weights for XtwXv, or y for XtXvy).
// numThreads is the requested degree of parallelism handed to the kernel.
func (g *Graph) MMChain(chainType mmchain.ChainType, numThreads int, x, v NodeID, w ...NodeID) NodeID {
	if !chainType.IsValid() {
		exceptions.Panicf("MMChain: invalid chain type %s", chainType)
	}
	inputs := append([]NodeID{x, v}, w...)
	if len(inputs) != chainType.NumOperands() {
		exceptions.Panicf("MMChain: chain type %s takes %d operands, %d given", chainType, chainType.NumOperands(), len(inputs))
	}
	return g.newNode(OpTypeMMChain, &chainData{chainType: chainType, numThreads: numThreads}, inputs...)
}

// CreateValueNode returns a node with the number of columns (if forColumns) or rows of input:
// a literal if it is known, otherwise a Unary Ncol (Nrow) node.
func (g *Graph) CreateValueNode(input NodeID, forColumns bool) NodeID {
	n := g.live(input)
	if forColumns {
		if n.cols >= 0 {
			return g.Literal(float64(n.cols))
		}
		return g.Unary(Ncol, input)
	}
	if n.rows >= 0 {
		return g.Literal(float64(n.rows))
	}
	return g.Unary(Nrow, input)
}
