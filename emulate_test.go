// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package microgemm

// Numeric emulation of the generated kernels: the C++ text cannot be
// compiled from a Go test, so these helpers interpret the loop semantics the
// kernels emit -- same traversal, same compute type -- and are checked
// against an independent float64 GEMM.

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

// gemmRef interprets the reference kernel text: per output element,
// result starts at C (if accum) or 0 and accumulates A*B*alpha over K in
// float32, the compute type of all float configs.
func gemmRef(a, b, c []float32, m, n, k, lda, ldb, ldc int, alpha float32, accum bool) []float32 {
	out := slices.Clone(c)
	for mi := range m {
		for ni := range n {
			var result float32
			if accum {
				result = c[mi*ldc+ni]
			}
			for ki := range k {
				result += a[mi*lda+ki] * b[ki*ldb+ni] * alpha
			}
			out[mi*ldc+ni] = result
		}
	}
	return out
}

// gemmNaive64 is the independent oracle: plain float64 GEMM.
func gemmNaive64(a, b, c []float32, m, n, k, lda, ldb, ldc int, alpha float64, accum bool) []float64 {
	out := make([]float64, len(c))
	for i, v := range c {
		out[i] = float64(v)
	}
	for mi := range m {
		for ni := range n {
			var sum float64
			for ki := range k {
				sum += float64(a[mi*lda+ki]) * float64(b[ki*ldb+ni]) * alpha
			}
			if accum {
				out[mi*ldc+ni] = float64(c[mi*ldc+ni]) + sum
			} else {
				out[mi*ldc+ni] = sum
			}
		}
	}
	return out
}

// gemmVecBlocked interprets the traversal of the vectorized entry kernel:
// M in blockM steps with a remainder block, N in blockN steps, every element
// accumulated over the full K extent in float32. It returns the result and
// the sequence of block_m values taken, and fails the test if any output
// element is written more or less than once.
func gemmVecBlocked(t *testing.T, a, b, c []float32, m, n, k, blockM, blockN int,
	alpha float32, accum bool) ([]float32, []int) {
	lda, ldb, ldc := k, n, n
	require.Zero(t, n%blockN, "vectorized entry requires N %% blockN == 0")
	out := slices.Clone(c)
	writes := make([]int, len(c))
	var blockMs []int
	for m0 := 0; m0 < m; m0 += blockM {
		bm := min(m-m0, blockM)
		blockMs = append(blockMs, bm)
		for n0 := 0; n0 < n; n0 += blockN {
			for r := range bm {
				for cc := range blockN {
					mi, ni := m0+r, n0+cc
					var result float32
					if accum {
						result = c[mi*ldc+ni]
					}
					for ki := range k {
						result += a[mi*lda+ki] * b[ki*ldb+ni] * alpha
					}
					out[mi*ldc+ni] = result
					writes[mi*ldc+ni]++
				}
			}
		}
	}
	for i, w := range writes {
		require.Equalf(t, 1, w, "output element %d written %d times", i, w)
	}
	return out, blockMs
}

func randSlice(rng *rand.Rand, size int) []float32 {
	s := make([]float32, size)
	for i := range s {
		s[i] = rng.Float32()*2 - 1
	}
	return s
}

// roundBF16 and roundF16 round a float32 through the 16-bit storage types, as
// the widening loads of the generated kernels see them.
func roundBF16(s []float32) []float32 {
	out := make([]float32, len(s))
	for i, v := range s {
		out[i] = bfloat16.FromFloat32(v).Float32()
	}
	return out
}

func roundF16(s []float32) []float32 {
	out := make([]float32, len(s))
	for i, v := range s {
		out[i] = float16.Fromfloat32(v).Float32()
	}
	return out
}

func requireAllInDelta(t *testing.T, want []float64, got []float32, delta float64) {
	require.Equal(t, len(want), len(got))
	for i := range want {
		require.InDeltaf(t, want[i], float64(got[i]), delta, "element %d", i)
	}
}
