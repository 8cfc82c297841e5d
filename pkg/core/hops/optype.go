// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hops

import "fmt"

// OpType identifies the operation performed by a Node. It is a closed set: every switch over
// OpType in this module is exhaustive, and unknown values are structural faults.
type OpType int

const (
	OpTypeInvalid OpType = iota

	// OpTypeData reads a named program variable. It has no inputs.
	OpTypeData

	// OpTypeLiteral is a constant scalar. It has no inputs.
	OpTypeLiteral

	// OpTypeWrite writes its only input to a named program variable.
	OpTypeWrite

	// OpTypeUnary is a unary operation, see UnaryOp.
	OpTypeUnary

	// OpTypeBinary is an element-wise binary operation, see BinaryOp.
	OpTypeBinary

	// OpTypeMatMul is a matrix multiplication.
	OpTypeMatMul

	// OpTypeTranspose transposes a matrix.
	OpTypeTranspose

	// OpTypeIndexing reads a slice ("right indexing"): inputs are
	// target, row-lower, row-upper, col-lower, col-upper.
	OpTypeIndexing

	// OpTypeLeftIndexing writes a slice ("left indexing"): inputs are
	// target, value, row-lower, row-upper, col-lower, col-upper.
	OpTypeLeftIndexing

	// OpTypeMMChain is the fused matrix-multiplication chain, see package mmchain.
	OpTypeMMChain
)

var opTypeNames = [...]string{
	OpTypeInvalid:      "Invalid",
	OpTypeData:         "Data",
	OpTypeLiteral:      "Literal",
	OpTypeWrite:        "Write",
	OpTypeUnary:        "Unary",
	OpTypeBinary:       "Binary",
	OpTypeMatMul:       "MatMul",
	OpTypeTranspose:    "Transpose",
	OpTypeIndexing:     "Indexing",
	OpTypeLeftIndexing: "LeftIndexing",
	OpTypeMMChain:      "MMChain",
}

// String implements fmt.Stringer.
func (op OpType) String() string {
	if op < 0 || int(op) >= len(opTypeNames) {
		return fmt.Sprintf("OpType(%d)", int(op))
	}
	return opTypeNames[op]
}

// BinaryOp is the sub-tag of OpTypeBinary nodes.
type BinaryOp int

const (
	BinaryOpInvalid BinaryOp = iota
	Mult
	Pow
	Plus
	Minus
	Div
)

var binaryOpSymbols = [...]string{
	BinaryOpInvalid: "?",
	Mult:            "*",
	Pow:             "^",
	Plus:            "+",
	Minus:           "-",
	Div:             "/",
}

// String returns the operator symbol.
func (op BinaryOp) String() string {
	if op < 0 || int(op) >= len(binaryOpSymbols) {
		return fmt.Sprintf("BinaryOp(%d)", int(op))
	}
	return binaryOpSymbols[op]
}

// UnaryOp is the sub-tag of OpTypeUnary nodes.
type UnaryOp int

const (
	UnaryOpInvalid UnaryOp = iota

	// Nrow returns the number of rows of its input, as a scalar.
	Nrow

	// Ncol returns the number of columns of its input, as a scalar.
	Ncol
)

var unaryOpNames = [...]string{
	UnaryOpInvalid: "?",
	Nrow:           "nrow",
	Ncol:           "ncol",
}

// String implements fmt.Stringer.
func (op UnaryOp) String() string {
	if op < 0 || int(op) >= len(unaryOpNames) {
		return fmt.Sprintf("UnaryOp(%d)", int(op))
	}
	return unaryOpNames[op]
}

// DataType is the kind of value a node produces.
//
// The constants are declared in rank order: Scalar < Matrix < Frame < Object < Unknown.
type DataType int

const (
	Scalar DataType = iota
	Matrix
	Frame
	Object
	Unknown
)

var dataTypeNames = [...]string{
	Scalar:  "scalar",
	Matrix:  "matrix",
	Frame:   "frame",
	Object:  "object",
	Unknown: "unknown",
}

// String implements fmt.Stringer.
func (dt DataType) String() string {
	if dt < 0 || int(dt) >= len(dataTypeNames) {
		return fmt.Sprintf("DataType(%d)", int(dt))
	}
	return dataTypeNames[dt]
}

// Rank used to order values by data type.
func (dt DataType) Rank() int {
	return int(dt)
}
