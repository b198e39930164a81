// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package microgemm selects register-blocked micro-GEMM kernel configurations
// for the host CPU and generates the C++ source text that implements them.
//
// A micro-GEMM kernel computes a small, fixed-tile matrix-multiply-accumulate
// (`C += alpha * A @ B` or `C = alpha * A @ B`) and is meant to be invoked
// repeatedly by an outer blocking loop owned by the caller. The package is a
// pure text-production facility: given a problem shape and element types,
// Select ranks the registered configurations (see Register) and returns a
// Kernel whose Declare/Define/Call/Init/Finalize methods emit the pieces of
// C++ the caller splices into a larger generated program, to be compiled by a
// native toolchain.
//
// Three kernel families are provided: a naive reference fallback (correct for
// any shape, also the correctness oracle), an AVX2/AVX512 vectorized family,
// and an AMX tiled family for bf16 and int8 inputs.
//
// The generated code targets a small C++ support header supplied by the
// consumer: namespace mg with Vectorized/VectorizedN/convert/fmadd/
// ForcedUnroll, the MG_CHECK assertion macro, and (for the AMX family) the
// AMXState tile-configuration helper plus the <immintrin.h> tile intrinsics.
//
// Following the conventions of the GoMLX backends, registration errors and
// precondition violations panic with a stack trace (see
// github.com/gomlx/exceptions); runtime "no kernel matched" conditions are
// returned as errors.
package microgemm

import (
	"github.com/gomlx/gopjrt/dtypes"

	"github.com/gomlx/exceptions"
)

// CallArgs carries the resolved C++ expressions for one call site of a
// generated kernel: pointer expressions for the three operands and index
// expressions for the dimensions and leading strides. The expressions are
// emitted verbatim as the kernel's call arguments.
type CallArgs struct {
	A, B, C       string // pointer expressions, e.g. "&(A_data[m_start * lda])"
	M, N, K       string // dimension expressions
	LDA, LDB, LDC string // leading-dimension expressions
}

// Kernel is one realized, named micro-GEMM kernel, created by Select.
//
// All methods return C++ source text (possibly empty), and are pure: the same
// kernel always generates the same text.
type Kernel interface {
	// Name is the C++ function name of the generated kernel.
	Name() string

	// Declare returns the forward declaration of the kernel, templated on the
	// `accum` flag ("add into C" vs "overwrite C").
	Declare() string

	// Define returns the full kernel definition, including any inner
	// per-block-shape specializations.
	Define() string

	// Call returns the call-site invocation of the kernel for the given
	// resolved argument expressions.
	Call(args CallArgs, accum bool) string

	// Init returns kernel-scoped setup text to place at the top of the
	// enclosing generated function. Empty for most families.
	Init() string

	// Finalize returns the teardown text paired with Init. Whenever Init is
	// non-empty, the caller must emit Finalize on every exit path of the
	// enclosing function.
	Finalize() string

	// BLayout declares the physical layout the caller must pre-arrange the B
	// operand into before invoking this kernel.
	BLayout() LayoutType

	// Blocking is the register-tile shape (blockM, blockN, blockK) the kernel
	// was configured with.
	Blocking() Blocking

	// Alpha is the scalar multiplier applied to the product.
	Alpha() float64
}

// baseKernel carries the state common to all kernel families and implements
// the parts of the Kernel interface that don't depend on the family.
type baseKernel struct {
	name                        string
	inputDType, input2DType     dtypes.DType
	outputDType, computeDType   dtypes.DType
	blocking                    Blocking
	alpha                       float64
	extraArgsDeclare, extraArgs string
}

func newBaseKernel(name string, input, input2, output, compute dtypes.DType,
	blocking Blocking, alpha float64) baseKernel {
	if input == dtypes.Uint8 {
		// The int8 GEMM path is only defined for u8 activations with s8
		// weights accumulating into s32.
		if compute != dtypes.Int32 || output != dtypes.Int32 || input2 != dtypes.Int8 {
			exceptions.Panicf("microgemm: uint8 input requires int8 second operand with int32 output/compute, "+
				"got input2=%s, output=%s, compute=%s", input2, output, compute)
		}
	}
	return baseKernel{
		name:         name,
		inputDType:   input,
		input2DType:  input2,
		outputDType:  output,
		computeDType: compute,
		blocking:     blocking,
		alpha:        alpha,
	}
}

func (k *baseKernel) Name() string       { return k.name }
func (k *baseKernel) Blocking() Blocking { return k.blocking }
func (k *baseKernel) Alpha() float64     { return k.alpha }

// isInt8 reports whether this is the u8*s8->s32 GEMM variant.
func (k *baseKernel) isInt8() bool { return k.inputDType == dtypes.Uint8 }

// vnniSize is the number of K elements interleaved per row in the packed B
// layouts used by the tile instructions: 4 for 8-bit inputs, 2 for 16-bit.
func (k *baseKernel) vnniSize() int {
	if k.isInt8() {
		return 4
	}
	return 2
}

const declareKernelTemplate = `template <bool accum>
inline void {{.KernelName}}(
{{.ExtraArgsDeclare}}    const {{.InputT}}* __restrict__ A,
    const {{.Input2T}}* __restrict__ B,
    {{.OutputT}}* __restrict__ C,
    int64_t M,
    int64_t N,
    int64_t K,
    int64_t lda,
    int64_t ldb,
    int64_t ldc
)`

func (k *baseKernel) Declare() string {
	return render("declare_kernel", declareKernelTemplate, struct {
		KernelName               string
		ExtraArgsDeclare         string
		InputT, Input2T, OutputT string
	}{
		KernelName:       k.name,
		ExtraArgsDeclare: k.extraArgsDeclare,
		InputT:           cppType(k.inputDType),
		Input2T:          cppType(k.input2DType),
		OutputT:          cppType(k.outputDType),
	})
}

// Define on the base is a contract violation: every concrete family must
// implement it.
func (k *baseKernel) Define() string {
	exceptions.Panicf("microgemm: Define is not implemented for the abstract kernel base (kernel %q) "+
		"-- every kernel family must provide its own Define", k.name)
	return ""
}

func (k *baseKernel) Call(args CallArgs, accum bool) string {
	buf := &indentedBuffer{}
	buf.writelnf("%s<%s>(", k.name, cppBool(accum))
	buf.in()
	if k.extraArgs != "" {
		buf.writeln(k.extraArgs)
	}
	buf.writelnf("%s,", args.A)
	buf.writelnf("%s,", args.B)
	buf.writelnf("%s,", args.C)
	buf.writelnf("%s,", args.M)
	buf.writelnf("%s,", args.N)
	buf.writelnf("%s,", args.K)
	buf.writelnf("%s,", args.LDA)
	buf.writelnf("%s,", args.LDB)
	buf.writeln(args.LDC)
	buf.out()
	buf.writeln(");")
	return buf.String()
}

func (k *baseKernel) Init() string        { return "" }
func (k *baseKernel) Finalize() string    { return "" }
func (k *baseKernel) BLayout() LayoutType { return LayoutNormal }
