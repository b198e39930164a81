// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package microgemm

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"

	"github.com/gomlx/microgemm/isa"
)

// amxTileHeight is the fixed row count of one AMX tile register.
const amxTileHeight = 16

// AMXKernel generates micro-GEMM code using the Advanced Matrix eXtensions
// tile instructions: bfloat16 inputs accumulating into float32, or
// uint8 x int8 inputs accumulating into int32. The B operand must be
// pre-packed into the matching VNNI layout (see BLayout).
//
// The kernel needs a tile-register context: Init declares the AMXState that
// Call threads through as an extra argument, and Finalize releases it. The
// caller must emit Finalize on every exit path of the enclosing generated
// function.
type AMXKernel struct {
	baseKernel
}

// amxCheck is the applicability predicate of all AMX configs: the packed
// layouts require K to be a multiple of the VNNI group size, and the tile
// instructions have nowhere to fold a scaling factor.
func amxCheck(c Config, p Problem) bool {
	vnniSize := 2
	if c.InputDType == dtypes.Uint8 {
		vnniSize = 4
	}
	return p.K%vnniSize == 0 && p.Alpha == 1
}

func init() {
	var configs []Config
	configs = append(configs, GenerateConfigs(ConfigSpec{
		ISA:       isa.AMX,
		Blockings: []Blocking{{32, 32, 32}, {48, 16, 32}, {16, 48, 32}},
		InputDType: dtypes.BFloat16, OutputDType: dtypes.Float32,
		Check: amxCheck,
	})...)
	configs = append(configs, GenerateConfigs(ConfigSpec{
		ISA:       isa.AMX,
		Blockings: []Blocking{{32, 32, 64}, {48, 16, 64}},
		InputDType: dtypes.Uint8, Input2DType: dtypes.Int8,
		OutputDType: dtypes.Int32, ComputeDType: dtypes.Int32,
		Check: amxCheck,
	})...)
	Register(FamilyAMX, func(name string, c Config, alpha float64) Kernel {
		return newAMXKernel(name, c, alpha)
	}, configs...)
}

func newAMXKernel(name string, c Config, alpha float64) *AMXKernel {
	b := c.Blocking
	if b.BlockM%amxTileHeight != 0 || b.BlockN%amxTileHeight != 0 {
		exceptions.Panicf("microgemm: AMX kernel %q requires blockM and blockN to be multiples of %d, got %v",
			name, amxTileHeight, b)
	}
	k := &AMXKernel{
		baseKernel: newBaseKernel(name, c.InputDType, c.Input2DType, c.OutputDType, c.ComputeDType,
			b, alpha),
	}
	wantBlockK := amxTileHeight * k.vnniSize() // 32 for 16-bit inputs, 64 for 8-bit.
	if b.BlockK != wantBlockK {
		exceptions.Panicf("microgemm: AMX kernel %q with input %s requires blockK=%d, got %v",
			name, c.InputDType, wantBlockK, b)
	}
	k.extraArgsDeclare = "    AMXState& amx_state,\n"
	k.extraArgs = "amx_state,"
	return k
}

func (k *AMXKernel) Init() string { return "AMXState amx_state;" }

func (k *AMXKernel) Finalize() string {
	return "amx_state.release([]() { _tile_release(); });"
}

func (k *AMXKernel) BLayout() LayoutType {
	if k.isInt8() {
		return LayoutVNNI4
	}
	return LayoutVNNI2
}

// amxSubKernelTemplate is one specialization of the tile loop for a fixed
// number of rows. The tile-register context is reconfigured whenever the
// geometry changes: once up front, and again around the K tail when K is not
// a multiple of blockK.
const amxSubKernelTemplate = `template <bool accum>
inline void {{.KernelName}}_amx_kernel_{{.NumRows}}_{{.NumColumns}}(
    AMXState& amx_state,
    const {{.InputT}}* __restrict__ A,
    const {{.Input2T}}* __restrict__ B,
    {{.OutputT}}* __restrict__ C,
    int64_t K,
    int64_t lda,
    int64_t ldb,
    int64_t ldc,
    uint8_t tilecfg_rows
) {
    auto loadconfig = [](const amx_tilecfg& cfg) {
        _tile_loadconfig(&cfg);
    };
    const auto last_k_offset = K / {{.BlockK}} * {{.BlockK}};
    const auto tail_k_size = K - last_k_offset;
    if (last_k_offset > 0) {
        amx_state.configure(tilecfg_rows, 64, {{.TileRows}}, {{.NumColumns}}, loadconfig);
    } else {
        amx_state.configure(tilecfg_rows, tail_k_size * sizeof({{.InputT}}), {{.TileRows}}, {{.NumColumns}}, loadconfig);
    }
    auto load_c = [&]() {
{{.LoadCBody}}    };
    auto zero_c = [&]() {
{{.ZeroCBody}}    };

    if constexpr (accum) {
        load_c();
    } else {
        zero_c();
    }

    auto compute = [&](int k) {
{{.ComputeBody}}    };

    {{.UnrollPragma}}
    for (int k = 0; k < last_k_offset; k += {{.BlockK}}) {
        compute(k);
    }

    auto store_c = [&]() {
{{.StoreCBody}}    };

    if (tail_k_size > 0) {
        if (last_k_offset > 0) {
            store_c();
            amx_state.configure(tilecfg_rows, tail_k_size * sizeof({{.InputT}}), {{.TileRows}}, {{.NumColumns}}, loadconfig);
            load_c();
        }
        compute(last_k_offset);
    }

    store_c();
}
`

// amxEntryTemplate walks M in blockM steps, dispatching each block to the
// largest sub-kernel chain that fits, with a final partial-height tail. The
// chain and the tail call are resolved in Go before rendering.
const amxEntryTemplate = `{{.DeclareKernel}} {
    {{.AssertFn}}(N % {{.BlockN}} == 0, "N dimension must be multiple of {{.BlockN}}");
    {{.AssertFn}}(K % {{.VNNISize}} == 0, "K dimension must be multiple of {{.VNNISize}}");
    for (int64_t m = 0; m < M; m += {{.BlockM}}) {
        int64_t block_m = std::min<int64_t>(M - m, {{.BlockM}});
        int64_t m_tail = m;
        for (int64_t n = 0; n < N; n += {{.BlockN}}) {
{{.DispatchChain}}            if (block_m > 0) {
{{.TailCall}}            }
        }
    }
}
`

func (k *AMXKernel) Define() string {
	blockM := k.blocking.BlockM
	numColumns := k.blocking.BlockN / amxTileHeight
	var result string
	for numRows := blockM; numRows > 0; numRows -= amxTileHeight {
		result += k.subKernel(numRows, numColumns)
	}
	result += render("amx_entry_kernel", amxEntryTemplate, struct {
		DeclareKernel  string
		AssertFn       string
		BlockM, BlockN int
		VNNISize       int
		DispatchChain  string
		TailCall       string
	}{
		DeclareKernel: k.Declare(),
		AssertFn:      assertFn,
		BlockM:        blockM,
		BlockN:        k.blocking.BlockN,
		VNNISize:      k.vnniSize(),
		DispatchChain: k.dispatchChain(numColumns),
		TailCall:      k.tailCall(numColumns),
	})
	return result
}

func (k *AMXKernel) subKernel(numRows, numColumns int) string {
	tileRows := numRows / amxTileHeight
	return render("amx_sub_kernel", amxSubKernelTemplate, struct {
		KernelName               string
		NumRows, NumColumns      int
		TileRows, BlockK         int
		InputT, Input2T, OutputT string
		LoadCBody, ZeroCBody     string
		ComputeBody, StoreCBody  string
		UnrollPragma             string
	}{
		KernelName:   k.name,
		NumRows:      numRows,
		NumColumns:   numColumns,
		TileRows:     tileRows,
		BlockK:       k.blocking.BlockK,
		InputT:       cppType(k.inputDType),
		Input2T:      cppType(k.input2DType),
		OutputT:      cppType(k.outputDType),
		LoadCBody:    k.loadCBody(tileRows, numColumns),
		ZeroCBody:    k.zeroCBody(tileRows, numColumns),
		ComputeBody:  k.computeBody(tileRows, numColumns),
		StoreCBody:   k.storeCBody(tileRows, numColumns),
		UnrollPragma: unrollPragma(4),
	})
}

// The C tiles occupy tile registers 0..tileRows*numColumns-1, followed by the
// A tiles (one per tile row) and the B tiles (one per tile column).

func (k *AMXKernel) loadCBody(tileRows, numColumns int) string {
	buf := &indentedBuffer{indent: 2}
	for tileRow := range tileRows {
		for tileCol := range numColumns {
			buf.writelnf("_tile_loadd(%d, C + %d * ldc + %d, ldc * sizeof(%s));",
				tileRow*numColumns+tileCol, tileRow*amxTileHeight, tileCol*amxTileHeight,
				cppType(k.outputDType))
		}
	}
	return buf.String()
}

func (k *AMXKernel) zeroCBody(tileRows, numColumns int) string {
	buf := &indentedBuffer{indent: 2}
	for tileRow := range tileRows {
		for tileCol := range numColumns {
			buf.writelnf("_tile_zero(%d);", tileRow*numColumns+tileCol)
		}
	}
	return buf.String()
}

func (k *AMXKernel) storeCBody(tileRows, numColumns int) string {
	buf := &indentedBuffer{indent: 2}
	for tileRow := range tileRows {
		for tileCol := range numColumns {
			buf.writelnf("_tile_stored(%d, C + %d * ldc + %d, ldc * sizeof(%s));",
				tileRow*numColumns+tileCol, tileRow*amxTileHeight, tileCol*amxTileHeight,
				cppType(k.outputDType))
		}
	}
	return buf.String()
}

func (k *AMXKernel) computeBody(tileRows, numColumns int) string {
	tileOffsetA := tileRows * numColumns
	tileOffsetB := tileOffsetA + tileRows
	vnniSize := k.vnniSize()
	inputT := cppType(k.inputDType)
	dpInstruction := "_tile_dpbf16ps"
	if k.isInt8() {
		dpInstruction = "_tile_dpbusd"
	}
	buf := &indentedBuffer{indent: 2}
	for tileRow := range tileRows {
		for tileCol := range numColumns {
			tileA := tileOffsetA + tileRow
			tileB := tileOffsetB + tileCol
			tileC := tileRow*numColumns + tileCol
			if tileCol == 0 {
				buf.writelnf("_tile_stream_loadd(%d, A + %d * lda + k, lda * sizeof(%s));",
					tileA, tileRow*amxTileHeight, inputT)
			}
			if tileRow == 0 {
				buf.writelnf("_tile_loadd(%d, B + k * ldb + %d, ldb * %d * sizeof(%s));",
					tileB, tileCol*amxTileHeight*vnniSize, vnniSize, inputT)
			}
			buf.writelnf("%s(%d, %d, %d);", dpInstruction, tileC, tileA, tileB)
		}
	}
	return buf.String()
}

// amxSubCall writes one invocation of a sub-kernel at the buffer's current
// indentation. rowBase indexes A and C; tilecfgRows is the row count the tile
// context is configured with.
func (k *AMXKernel) amxSubCall(buf *indentedBuffer, numRows, numColumns int, rowBase, tilecfgRows string) {
	buf.writelnf("%s_amx_kernel_%d_%d<accum>(", k.name, numRows, numColumns)
	buf.in()
	buf.writeln("amx_state,")
	buf.writelnf("A + %s * lda,", rowBase)
	buf.writeln("B + n,")
	buf.writelnf("C + %s * ldc + n,", rowBase)
	buf.writeln("K,")
	buf.writeln("lda,")
	buf.writeln("ldb,")
	buf.writeln("ldc,")
	buf.writeln(tilecfgRows)
	buf.out()
	buf.writeln(");")
}

// dispatchChain emits the if/else-if chain over full tile-height groups, from
// the largest sub-kernel down to a single tile height.
func (k *AMXKernel) dispatchChain(numColumns int) string {
	buf := &indentedBuffer{indent: 3}
	first := true
	for numRows := k.blocking.BlockM; numRows > 0; numRows -= amxTileHeight {
		if first {
			buf.writelnf("if (block_m >= %d) {", numRows)
			first = false
		} else {
			buf.writelnf("} else if (block_m >= %d) {", numRows)
		}
		buf.in()
		k.amxSubCall(buf, numRows, numColumns, "m", fmt.Sprintf("%d", amxTileHeight))
		buf.writelnf("block_m -= %d;", numRows)
		buf.writelnf("m_tail += %d;", numRows)
		buf.out()
	}
	buf.writeln("}")
	return buf.String()
}

// tailCall handles the final partial-height group of rows: the single-tile
// sub-kernel with the tile context configured to block_m rows.
func (k *AMXKernel) tailCall(numColumns int) string {
	buf := &indentedBuffer{indent: 4}
	k.amxSubCall(buf, amxTileHeight, numColumns, "m_tail", "block_m")
	return buf.String()
}
