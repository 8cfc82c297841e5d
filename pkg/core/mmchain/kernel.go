// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package mmchain

import (
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Execute runs the chain t over X (m×n), v (n×1) and, for XtwXv and XtXvy, w (m×1), returning an n×1 result.
//
// Rows of X are split in up to k contiguous blocks that are processed in parallel: each row i contributes
// `s_i * X[i,:]` to the result, where `s_i = X[i,:]·v` (times w[i] for XtwXv, minus y[i] for XtXvy).
// So neither t(X) nor the m×1 vector X %*% v are ever materialized. Partial results are summed in block
// order, so for a fixed k the result is deterministic.
//
// If k <= 0, runtime.NumCPU() is used.
func Execute(x, v, w *mat.Dense, t ChainType, k int) (*mat.Dense, error) {
	if !t.IsValid() {
		return nil, errors.Errorf("mmchain: invalid chain type %s", t)
	}
	if x == nil || v == nil {
		return nil, errors.Errorf("mmchain %s: X and v must be given", t)
	}
	m, n := x.Dims()
	if m == 0 || n == 0 {
		return nil, errors.Errorf("mmchain %s: X is empty (%dx%d)", t, m, n)
	}
	if vRows, vCols := v.Dims(); vRows != n || vCols != 1 {
		return nil, errors.Errorf("mmchain %s: v must be a %dx1 column vector, got %dx%d", t, n, vRows, vCols)
	}
	var wFlat []float64
	if t.NumOperands() == 3 {
		if w == nil {
			return nil, errors.Errorf("mmchain %s: requires a third operand", t)
		}
		if wRows, wCols := w.Dims(); wRows != m || wCols != 1 {
			return nil, errors.Errorf("mmchain %s: third operand must be a %dx1 column vector, got %dx%d", t, m, wRows, wCols)
		}
		wFlat = mat.Col(nil, 0, w)
	} else if w != nil {
		return nil, errors.Errorf("mmchain %s: takes no third operand", t)
	}
	vFlat := mat.Col(nil, 0, v)

	if k <= 0 {
		k = runtime.NumCPU()
	}
	numBlocks := min(k, m)
	if numBlocks < 1 {
		numBlocks = 1
	}
	blockSize := (m + numBlocks - 1) / numBlocks
	partials := make([][]float64, numBlocks)

	pool := newWorkersPool(k)
	var wg sync.WaitGroup
	for blockIdx := range numBlocks {
		start := blockIdx * blockSize
		end := min(start+blockSize, m)
		partials[blockIdx] = make([]float64, n)
		if start >= end {
			continue
		}
		wg.Add(1)
		pool.WaitToStart(func() {
			defer wg.Done()
			accumulateRows(x, vFlat, wFlat, t, start, end, partials[blockIdx])
		})
	}
	wg.Wait()

	result := make([]float64, n)
	for _, partial := range partials {
		floats.Add(result, partial)
	}
	return mat.NewDense(n, 1, result), nil
}

// accumulateRows adds the contribution of the rows [start, end) of X into acc.
func accumulateRows(x *mat.Dense, v, w []float64, t ChainType, start, end int, acc []float64) {
	for row := start; row < end; row++ {
		xRow := x.RawRowView(row)
		scale := floats.Dot(xRow, v)
		switch t {
		case XtwXv:
			scale *= w[row]
		case XtXvy:
			scale -= w[row]
		}
		if scale != 0 {
			floats.AddScaled(acc, scale, xRow)
		}
	}
}
