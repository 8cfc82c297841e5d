// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package emult

import (
	"cmp"

	"github.com/gomlx/hoprewrite/pkg/core/hops"
)

// termClass is the group of a multiplicand in the canonical product.
type termClass int

const (
	classScalar termClass = iota
	classColVector
	classRowVector
	classMatrix
	classFrame
	classObject
	classUnknown
)

// classify returns the group of a leaf. A 1x1 matrix is a column vector.
func classify(n *hops.Node) termClass {
	switch n.DataType() {
	case hops.Scalar:
		return classScalar
	case hops.Matrix:
		switch {
		case n.Cols() == 1:
			return classColVector
		case n.Rows() == 1:
			return classRowVector
		}
		return classMatrix
	case hops.Frame:
		return classFrame
	case hops.Object:
		return classObject
	}
	return classUnknown
}

// compareLeaves orders the leaves of a multiply tree:
// scalars < column vectors < row vectors < other matrices < frames < objects < unknown.
// Matrices of the same group are ordered by decreasing nnz, with unknown nnz last. Ties, and
// all other data types, are ordered by node id.
func compareLeaves(a, b *hops.Node) int {
	classA, classB := classify(a), classify(b)
	if c := cmp.Compare(classA, classB); c != 0 {
		return c
	}
	switch classA {
	case classColVector, classRowVector, classMatrix:
		if c := cmp.Compare(b.Nnz(), a.Nnz()); c != 0 {
			return c
		}
	}
	return cmp.Compare(a.ID(), b.ID())
}
