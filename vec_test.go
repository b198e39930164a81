// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package microgemm

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/microgemm/isa"
)

func vecConfig(input, output dtypes.DType, blocking Blocking) Config {
	configs := GenerateConfigs(ConfigSpec{
		ISA: isa.AVX512, Blockings: []Blocking{blocking},
		InputDType: input, OutputDType: output,
	})
	return configs[0]
}

func TestVecDefineStructure(t *testing.T) {
	k := newVecKernel("gvec", vecConfig(dtypes.Float32, dtypes.Float32, Blocking{8, 48, 1}), 1)
	define := k.Define()

	// Inner kernel, templated on the block shape.
	assert.Contains(t, define, "template <int64_t BLOCK_M, int64_t BLOCK_N, bool accum>")
	assert.Contains(t, define, "inline void gvec_kernel(")
	assert.Contains(t, define, "mg::VectorizedN<float, ROWS * COLS> vc;")
	assert.Contains(t, define, "vc[idx] = mg::fmadd(va, vb[col], vc[idx]);")
	assert.Contains(t, define, "#pragma GCC unroll 4")

	// Entry kernel: preconditions, full-block call, remainder switch.
	assert.Contains(t, define, `MG_CHECK(N % 48 == 0, "N dimension must be multiple of 48");`)
	assert.Contains(t, define, `MG_CHECK(K % 1 == 0, "K dimension must be multiple of 1");`)
	assert.Contains(t, define, "gvec_kernel<8, 48, accum>(")
	for blockM := 7; blockM >= 1; blockM-- {
		assert.Contains(t, define, fmt.Sprintf("case %d:", blockM))
		assert.Contains(t, define, fmt.Sprintf("gvec_kernel<%d, 48, accum>(", blockM))
	}
	assert.NotContains(t, define, "case 8:")
	assert.NotContains(t, define, "case 0:")
	assert.Contains(t, define, `MG_CHECK(false, "Unsupported block_m");`)

	// Float32 inputs load at compute width, no conversion.
	assert.NotContains(t, define, "mg::convert")

	// The remainder cases appear after the full-block dispatch.
	assert.Greater(t, strings.Index(define, "case 7:"), strings.Index(define, "if (block_m == 8)"))
}

func TestVecDefineWidens16BitInputs(t *testing.T) {
	for _, input := range []dtypes.DType{dtypes.BFloat16, dtypes.Float16} {
		k := newVecKernel("gvec", vecConfig(input, dtypes.Float32, Blocking{16, 16, 1}), 1)
		define := k.Define()
		assert.Contains(t, define, "const "+cppType(input)+"* __restrict__ A")
		assert.Contains(t, define, "float* __restrict__ C")
		assert.Contains(t, define, "auto b = VectorizedIn::loadu(B + k * ldb + col * VLEN, VLEN);")
		assert.Contains(t, define, "vb[col] = mg::convert<float>(b);")
	}
}

func TestVecAlphaFolding(t *testing.T) {
	cfg := vecConfig(dtypes.Float32, dtypes.Float32, Blocking{8, 32, 1})

	plain := newVecKernel("gvec", cfg, 1).Define()
	assert.Contains(t, plain, "va = Vectorized(static_cast<float>(A[row * lda + k]));")

	scaled := newVecKernel("gvec", cfg, 2.5).Define()
	assert.Contains(t, scaled, "va = Vectorized(static_cast<float>(A[row * lda + k]) * 2.5);")
}

// TestVecBlockedSemantics interprets the entry kernel's traversal (M in
// blockM steps with a remainder block, N in blockN steps) and checks the
// result against the float64 oracle, including that every output element is
// written exactly once.
func TestVecBlockedSemantics(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	cases := []struct {
		m, n, k        int
		blockM, blockN int
	}{
		{8, 48, 5, 8, 48},  // single full block
		{37, 32, 9, 8, 16}, // M remainder of 5
		{4, 16, 3, 8, 16},  // M smaller than one block
		{33, 96, 8, 16, 48},
	}
	for _, tc := range cases {
		for _, accum := range []bool{false, true} {
			a := randSlice(rng, tc.m*tc.k)
			b := randSlice(rng, tc.k*tc.n)
			c := randSlice(rng, tc.m*tc.n)
			got, _ := gemmVecBlocked(t, a, b, c, tc.m, tc.n, tc.k, tc.blockM, tc.blockN, 1, accum)
			want := gemmNaive64(a, b, c, tc.m, tc.n, tc.k, tc.k, tc.n, tc.n, 1, accum)
			requireAllInDelta(t, want, got, 1e-4)
		}
	}
}

func TestVecBlockWalk(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	m, n, k := 37, 16, 4
	a := randSlice(rng, m*k)
	b := randSlice(rng, k*n)
	c := make([]float32, m*n)
	_, blockMs := gemmVecBlocked(t, a, b, c, m, n, k, 8, 16, 1, false)
	require.Equal(t, []int{8, 8, 8, 8, 5}, blockMs, "four full blocks then the 5-row remainder")
}
