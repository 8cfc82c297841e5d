// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package mmchain defines the fused matrix-multiplication chain instruction: a single instruction that
// evaluates one of `t(X) %*% (X %*% v)`, `t(X) %*% (w * (X %*% v))` or `t(X) %*% ((X %*% v) - y)`
// without materializing `t(X)` or a separately sized `X %*% v` temporary.
//
// The package only depends on the numeric representation (gonum's mat.Dense), so it can be used by
// any executor of the operator graph.
package mmchain

import (
	"github.com/pkg/errors"
)

// ChainType identifies which matrix-multiplication composition a fused instruction computes.
type ChainType int

const (
	// ChainTypeNone is the zero value, and it is not a valid chain for execution.
	ChainTypeNone ChainType = iota

	// XtXv computes t(X) %*% (X %*% v).
	XtXv

	// XtwXv computes t(X) %*% (w * (X %*% v)), where w is a column vector of weights.
	XtwXv

	// XtXvy computes t(X) %*% ((X %*% v) - y), where y is a column vector.
	XtXvy
)

var chainTypeNames = map[ChainType]string{
	ChainTypeNone: "NONE",
	XtXv:          "XtXv",
	XtwXv:         "XtwXv",
	XtXvy:         "XtXvy",
}

// String implements fmt.Stringer.
func (t ChainType) String() string {
	if name, found := chainTypeNames[t]; found {
		return name
	}
	return "ChainType(invalid)"
}

// ParseChainType converts the string representation back to a ChainType.
func ParseChainType(s string) (ChainType, error) {
	for t, name := range chainTypeNames {
		if name == s && t != ChainTypeNone {
			return t, nil
		}
	}
	return ChainTypeNone, errors.Errorf("unknown matrix multiplication chain type %q", s)
}

// IsValid returns whether t is one of the executable chain types.
func (t ChainType) IsValid() bool {
	return t == XtXv || t == XtwXv || t == XtXvy
}

// NumOperands returns the number of operands (2 or 3) the chain type takes: X and v, plus w or y.
func (t ChainType) NumOperands() int {
	if t == XtwXv || t == XtXvy {
		return 3
	}
	return 2
}
