// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hops

import (
	"fmt"
	"math"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/hoprewrite/pkg/core/mmchain"
)

const defaultValueType = dtypes.Float64

// Node is one operator of the Graph. It is a read-only view: edits are made with Graph methods.
type Node struct {
	graph  *Graph
	id     NodeID
	opType OpType

	// inputs are the ordered operands.
	inputs []NodeID

	// parents holds one entry per operand edge pointing to this node: a parent that uses
	// this node twice (e.g. X*X) is listed twice.
	parents []NodeID

	dataType    DataType
	valueType   dtypes.DType
	rows, cols  int
	nnz         int64
	rowsInBlock int
	colsInBlock int

	// name of Data and Write nodes.
	name string

	// data is op-specific: BinaryOp, UnaryOp, float64 (literal value), *indexingData or *chainData.
	data any

	retired bool
}

// indexingData is carried by Indexing and LeftIndexing nodes.
type indexingData struct {
	rowLowerEqualsUpper, colLowerEqualsUpper bool
}

// chainData is carried by MMChain nodes.
type chainData struct {
	chainType  mmchain.ChainType
	numThreads int
}

// Graph the node belongs to.
func (n *Node) Graph() *Graph { return n.graph }

// ID of the node in its Graph.
func (n *Node) ID() NodeID { return n.id }

// OpType of the node.
func (n *Node) OpType() OpType { return n.opType }

// Name of Data and Write nodes. Empty for other nodes.
func (n *Node) Name() string { return n.name }

// NumInputs returns the number of operands.
func (n *Node) NumInputs() int { return len(n.inputs) }

// Input returns the operand at position pos. It panics if pos is out of range, which is
// a structural fault.
func (n *Node) Input(pos int) NodeID {
	if pos < 0 || pos >= len(n.inputs) {
		exceptions.Panicf("node %s has %d inputs, input #%d requested", n, len(n.inputs), pos)
	}
	return n.inputs[pos]
}

// Inputs returns a copy of the operands list.
func (n *Node) Inputs() []NodeID { return slices.Clone(n.inputs) }

// NumParents returns the number of operand edges pointing to this node.
func (n *Node) NumParents() int { return len(n.parents) }

// Parents returns a snapshot of the parents list, with one entry per operand edge.
func (n *Node) Parents() []NodeID { return slices.Clone(n.parents) }

// HasParent returns whether id is one of the parents of n.
func (n *Node) HasParent(id NodeID) bool { return slices.Contains(n.parents, id) }

func (n *Node) DataType() DataType      { return n.dataType }
func (n *Node) ValueType() dtypes.DType { return n.valueType }

// Rows returns the number of rows, or -1 if unknown. Scalars have 0 rows.
func (n *Node) Rows() int { return n.rows }

// Cols returns the number of columns, or -1 if unknown. Scalars have 0 columns.
func (n *Node) Cols() int { return n.cols }

// Nnz returns the number of non-zeros, or -1 if unknown.
func (n *Node) Nnz() int64 { return n.nnz }

func (n *Node) RowsInBlock() int { return n.rowsInBlock }
func (n *Node) ColsInBlock() int { return n.colsInBlock }

func (n *Node) IsScalar() bool { return n.dataType == Scalar }
func (n *Node) IsMatrix() bool { return n.dataType == Matrix }

// IsColVector returns whether the node is a matrix known to have exactly one column.
// A 1x1 matrix is a column vector.
func (n *Node) IsColVector() bool { return n.dataType == Matrix && n.cols == 1 }

// IsRowVector returns whether the node is a matrix known to have exactly one row.
func (n *Node) IsRowVector() bool { return n.dataType == Matrix && n.rows == 1 }

// IsRetired returns whether the node has been detached from the graph.
func (n *Node) IsRetired() bool { return n.retired }

// BinaryOp returns the sub-operation of a Binary node, or BinaryOpInvalid.
func (n *Node) BinaryOp() BinaryOp {
	if op, ok := n.data.(BinaryOp); ok && n.opType == OpTypeBinary {
		return op
	}
	return BinaryOpInvalid
}

// IsBinary returns whether the node is a Binary node with the given sub-operation.
func (n *Node) IsBinary(op BinaryOp) bool { return n.BinaryOp() == op }

// UnaryOp returns the sub-operation of a Unary node, or UnaryOpInvalid.
func (n *Node) UnaryOp() UnaryOp {
	if op, ok := n.data.(UnaryOp); ok && n.opType == OpTypeUnary {
		return op
	}
	return UnaryOpInvalid
}

// LiteralValue returns the value of a Literal node. It panics for other nodes.
func (n *Node) LiteralValue() float64 {
	if n.opType != OpTypeLiteral {
		exceptions.Panicf("LiteralValue() called on non-literal node %s", n)
	}
	return n.data.(float64)
}

// LiteralInt64 returns the value of a Literal node if it holds an integral value.
func (n *Node) LiteralInt64() (value int64, ok bool) {
	if n.opType != OpTypeLiteral {
		return 0, false
	}
	v := n.data.(float64)
	if v != math.Trunc(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return int64(v), true
}

func (n *Node) indexing() *indexingData {
	if n.opType != OpTypeIndexing && n.opType != OpTypeLeftIndexing {
		exceptions.Panicf("node %s is not an indexing node", n)
	}
	return n.data.(*indexingData)
}

// IsRowLowerEqualsUpper returns whether the row bounds of an Indexing or LeftIndexing node are
// known to be the same, that is, it reads or writes a single row.
func (n *Node) IsRowLowerEqualsUpper() bool { return n.indexing().rowLowerEqualsUpper }

// IsColLowerEqualsUpper is the column counterpart of IsRowLowerEqualsUpper.
func (n *Node) IsColLowerEqualsUpper() bool { return n.indexing().colLowerEqualsUpper }

func (n *Node) chain() *chainData {
	if n.opType != OpTypeMMChain {
		exceptions.Panicf("node %s is not a MMChain node", n)
	}
	return n.data.(*chainData)
}

// ChainType of a MMChain node.
func (n *Node) ChainType() mmchain.ChainType { return n.chain().chainType }

// NumThreads is the degree of parallelism requested by a MMChain node.
func (n *Node) NumThreads() int { return n.chain().numThreads }

// OpString returns the operation with its op-specific data, e.g. "Binary(*)" or "Data(X)".
func (n *Node) OpString() string {
	switch n.opType {
	case OpTypeData, OpTypeWrite:
		return fmt.Sprintf("%s(%s)", n.opType, n.name)
	case OpTypeLiteral:
		return fmt.Sprintf("%s(%g)", n.opType, n.data.(float64))
	case OpTypeBinary:
		return fmt.Sprintf("%s(%s)", n.opType, n.BinaryOp())
	case OpTypeUnary:
		return fmt.Sprintf("%s(%s)", n.opType, n.UnaryOp())
	case OpTypeIndexing, OpTypeLeftIndexing:
		d := n.indexing()
		var flags string
		if d.rowLowerEqualsUpper {
			flags += "r"
		}
		if d.colLowerEqualsUpper {
			flags += "c"
		}
		if flags == "" {
			return n.opType.String()
		}
		return fmt.Sprintf("%s[%s]", n.opType, flags)
	case OpTypeMMChain:
		d := n.chain()
		return fmt.Sprintf("%s(%s,k=%d)", n.opType, d.chainType, d.numThreads)
	default:
		return n.opType.String()
	}
}

// ShapeString describes the data type and size, e.g. "scalar" or "matrix 3x5 nnz=?".
func (n *Node) ShapeString() string {
	if n.dataType != Matrix {
		return n.dataType.String()
	}
	return fmt.Sprintf("matrix %sx%s nnz=%s", dimString(int64(n.rows)), dimString(int64(n.cols)), dimString(n.nnz))
}

func dimString(d int64) string {
	if d < 0 {
		return "?"
	}
	return fmt.Sprintf("%d", d)
}

// String implements fmt.Stringer.
func (n *Node) String() string {
	if n == nil {
		return "Node(nil)"
	}
	return fmt.Sprintf("#%d:%s", n.id, n.OpString())
}
