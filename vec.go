// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package microgemm

import (
	"fmt"

	"github.com/gomlx/gopjrt/dtypes"

	"github.com/gomlx/microgemm/isa"
)

// VecKernel generates micro-GEMM code computing in fp32 vector registers
// (AVX2 or AVX512). It supports float32, bfloat16 and float16 inputs with
// float32 output: 16-bit inputs are loaded at input width and widened to the
// compute width before the fused multiply-add.
type VecKernel struct {
	baseKernel
}

func init() {
	tiers := []struct {
		tier      isa.Tier
		blockings []Blocking
	}{
		{isa.AVX512, []Blocking{{8, 48, 1}, {8, 32, 1}, {16, 16, 1}}},
		{isa.AVX2, []Blocking{{4, 24, 1}, {4, 16, 1}, {8, 8, 1}}},
	}
	var configs []Config
	for _, t := range tiers {
		configs = append(configs, GenerateConfigs(ConfigSpec{
			ISA: t.tier, Blockings: t.blockings,
			InputDType: dtypes.Float32,
		})...)
		configs = append(configs, GenerateConfigs(ConfigSpec{
			ISA: t.tier, Blockings: t.blockings,
			InputDType: dtypes.BFloat16, OutputDType: dtypes.Float32,
		})...)
		configs = append(configs, GenerateConfigs(ConfigSpec{
			ISA: t.tier, Blockings: t.blockings,
			InputDType: dtypes.Float16, OutputDType: dtypes.Float32,
		})...)
	}
	Register(FamilyFP32Vec, func(name string, c Config, alpha float64) Kernel {
		return newVecKernel(name, c, alpha)
	}, configs...)
}

func newVecKernel(name string, c Config, alpha float64) *VecKernel {
	return &VecKernel{
		baseKernel: newBaseKernel(name, c.InputDType, c.Input2DType, c.OutputDType, c.ComputeDType,
			c.Blocking, alpha),
	}
}

// vecInnerTemplate is the register-resident inner kernel, templated in C++ on
// the block shape so that the remainder specializations reuse the same text.
const vecInnerTemplate = `template <int64_t BLOCK_M, int64_t BLOCK_N, bool accum>
inline void {{.KernelName}}_kernel(
    const {{.InputT}}* __restrict__ A,
    const {{.InputT}}* __restrict__ B,
    {{.OutputT}}* __restrict__ C,
    int64_t K,
    int64_t lda,
    int64_t ldb,
    int64_t ldc
) {
    using Vectorized = mg::Vectorized<{{.ComputeT}}>;
    using VectorizedIn = mg::Vectorized<{{.InputT}}>;
    constexpr auto VLEN = Vectorized::size();
    constexpr auto ROWS = BLOCK_M;
    constexpr auto COLS = BLOCK_N / VLEN;

    Vectorized va;
    mg::VectorizedN<{{.ComputeT}}, COLS> vb;
    mg::VectorizedN<{{.ComputeT}}, ROWS * COLS> vc;

    auto loadc = [&](auto i) {
        if constexpr (accum) {
            constexpr int row = i / COLS;
            constexpr int col = i % COLS;
            vc[i] = Vectorized::loadu(C + row * ldc + col * VLEN);
        } else {
            vc[i] = Vectorized(0.0f);
        }
    };
    mg::ForcedUnroll<ROWS * COLS>{}(loadc);

    auto compute = [&, COLS](auto i, int k) {
        constexpr int row = i / COLS;
        constexpr int col = i % COLS;

        if constexpr (col == 0) {
            {{.BroadcastA}}
        }

        if constexpr (row == 0) {
{{.LoadB}}        }

        constexpr int idx = row * COLS + col;
        vc[idx] = mg::fmadd(va, vb[col], vc[idx]);
    };

    {{.UnrollPragma}}
    for (int k = 0; k < K; ++k) {
        mg::ForcedUnroll<ROWS * COLS>{}(compute, k);
    }

    auto storec = [&](auto i) {
        constexpr int row = i / COLS;
        constexpr int col = i % COLS;
        vc[i].store(C + row * ldc + col * VLEN);
    };
    mg::ForcedUnroll<ROWS * COLS>{}(storec);
}
`

// vecEntryTemplate is the outer kernel: it walks M in BLOCK_M steps with a
// switch over the remainder rows, and N in BLOCK_N steps. The repeated case
// blocks are resolved in Go before rendering.
const vecEntryTemplate = `{{.DeclareKernel}} {
    {{.AssertFn}}(N % {{.BlockN}} == 0, "N dimension must be multiple of {{.BlockN}}");
    {{.AssertFn}}(K % {{.BlockK}} == 0, "K dimension must be multiple of {{.BlockK}}");
    for (int64_t m = 0; m < M; m += {{.BlockM}}) {
        int64_t block_m = std::min<int64_t>(M - m, {{.BlockM}});
        for (int64_t n = 0; n < N; n += {{.BlockN}}) {
            if (block_m == {{.BlockM}}) {
{{.FullBlockCall}}            } else {
                switch (block_m) {
{{.RemainderCases}}                default:
                    {{.AssertFn}}(false, "Unsupported block_m");
                }
            }
        }
    }
}
`

func (k *VecKernel) Define() string {
	return render("vec_inner_kernel", vecInnerTemplate, struct {
		KernelName                string
		InputT, OutputT, ComputeT string
		BroadcastA, LoadB         string
		UnrollPragma              string
	}{
		KernelName:   k.name,
		InputT:       cppType(k.inputDType),
		OutputT:      cppType(k.outputDType),
		ComputeT:     cppType(k.computeDType),
		BroadcastA:   k.broadcastA(),
		LoadB:        k.loadB(),
		UnrollPragma: unrollPragma(4),
	}) + render("vec_entry_kernel", vecEntryTemplate, struct {
		DeclareKernel          string
		AssertFn               string
		BlockM, BlockN, BlockK int
		FullBlockCall          string
		RemainderCases         string
	}{
		DeclareKernel:  k.Declare(),
		AssertFn:       assertFn,
		BlockM:         k.blocking.BlockM,
		BlockN:         k.blocking.BlockN,
		BlockK:         k.blocking.BlockK,
		FullBlockCall:  k.fullBlockCall(),
		RemainderCases: k.remainderCases(),
	})
}

// broadcastA is the A-element broadcast expression; alpha is folded into the
// broadcast when it isn't 1.
func (k *VecKernel) broadcastA() string {
	if k.alpha != 1 {
		return fmt.Sprintf("va = Vectorized(static_cast<%s>(A[row * lda + k]) * %s);",
			cppType(k.computeDType), cppFloat(k.alpha))
	}
	return fmt.Sprintf("va = Vectorized(static_cast<%s>(A[row * lda + k]));", cppType(k.computeDType))
}

// loadB loads one vector of B per column group, widening when the input is a
// 16-bit float type.
func (k *VecKernel) loadB() string {
	buf := &indentedBuffer{indent: 3}
	if is16Bit(k.inputDType) {
		buf.writeln("auto b = VectorizedIn::loadu(B + k * ldb + col * VLEN, VLEN);")
		buf.writelnf("vb[col] = mg::convert<%s>(b);", cppType(k.computeDType))
	} else {
		buf.writeln("vb[col] = Vectorized::loadu(B + k * ldb + col * VLEN);")
	}
	return buf.String()
}

// innerCall writes the invocation of the inner kernel for blockM rows at the
// buffer's current indentation.
func (k *VecKernel) innerCall(buf *indentedBuffer, blockM int) {
	buf.writelnf("%s_kernel<%d, %d, accum>(", k.name, blockM, k.blocking.BlockN)
	buf.in()
	buf.writeln("A + m * lda,")
	buf.writeln("B + n,")
	buf.writeln("C + m * ldc + n,")
	buf.writeln("K,")
	buf.writeln("lda,")
	buf.writeln("ldb,")
	buf.writeln("ldc")
	buf.out()
	buf.writeln(");")
}

func (k *VecKernel) fullBlockCall() string {
	buf := &indentedBuffer{indent: 4}
	k.innerCall(buf, k.blocking.BlockM)
	return buf.String()
}

// remainderCases emits one switch case per possible remainder row count
// (BLOCK_M-1 down to 1), each dispatching to the matching specialization of
// the inner kernel.
func (k *VecKernel) remainderCases() string {
	buf := &indentedBuffer{indent: 4}
	for blockM := k.blocking.BlockM - 1; blockM >= 1; blockM-- {
		buf.writelnf("case %d:", blockM)
		buf.in()
		k.innerCall(buf, blockM)
		buf.writeln("break;")
		buf.out()
	}
	return buf.String()
}
