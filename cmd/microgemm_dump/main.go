// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Command microgemm_dump runs kernel selection for a problem given by flags
// and prints every piece of generated C++ text: declaration, definition,
// init/finalize, a sample call site and the required B layout.
//
// Example:
//
//	go run ./cmd/microgemm_dump -m 128 -n 256 -k 512 -input Float32
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	"github.com/gomlx/microgemm"
	"github.com/gomlx/microgemm/isa"
)

var (
	flagName    = flag.String("name", "micro_gemm", "Name of the generated kernel function.")
	flagM       = flag.Int("m", 0, "M dimension; 0 means runtime-unknown.")
	flagN       = flag.Int("n", 64, "N dimension, must be > 0.")
	flagK       = flag.Int("k", 64, "K dimension, must be > 0.")
	flagInput   = flag.String("input", "Float32", "Input dtype (e.g. Float32, BFloat16, Float16, Uint8).")
	flagInput2  = flag.String("input2", "", "Second operand dtype; defaults to the input dtype.")
	flagOutput  = flag.String("output", "", "Output dtype; defaults to the input dtype.")
	flagCompute = flag.String("compute", "", "Compute dtype; defaults to the output dtype.")
	flagAlpha   = flag.Float64("alpha", 1, "Scalar multiplier applied to the product.")
	flagThreads = flag.Int("threads", 0, "Planned thread count for scoring; 0 means NumCPU.")
	flagNoRef   = flag.Bool("no_fallback", false, "Fail instead of falling back to the reference kernel.")
	flagFamily  = flag.String("family", "", "Restrict selection to one kernel family (see microgemm.Families).")
)

func parseDType(value string) dtypes.DType {
	if value == "" {
		return dtypes.InvalidDType
	}
	return must.M1(dtypes.DTypeString(value))
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	problem := microgemm.Problem{
		M: *flagM, N: *flagN, K: *flagK,
		InputDType:      parseDType(*flagInput),
		Input2DType:     parseDType(*flagInput2),
		OutputDType:     parseDType(*flagOutput),
		ComputeDType:    parseDType(*flagCompute),
		Alpha:           *flagAlpha,
		NumThreads:      *flagThreads,
		DisableFallback: *flagNoRef,
		Family:          *flagFamily,
	}
	kernel, err := microgemm.Select(*flagName, problem)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Selection failed: %+v\n", err)
		os.Exit(1)
	}

	fmt.Printf("// Host ISA tier: %s\n", isa.Host())
	fmt.Printf("// Blocking: %+v, alpha=%g, B layout: %s\n\n", kernel.Blocking(), kernel.Alpha(), kernel.BLayout())
	if initText := kernel.Init(); initText != "" {
		fmt.Printf("// Init:\n%s\n\n", initText)
	}
	fmt.Printf("// Declaration:\n%s;\n\n", kernel.Declare())
	fmt.Printf("// Definition:\n%s\n", kernel.Define())
	fmt.Printf("// Call site (accumulating):\n%s\n", kernel.Call(microgemm.CallArgs{
		A: "&(A_data[0])", B: "&(B_data[0])", C: "&(C_data[0])",
		M: "M", N: "N", K: "K",
		LDA: "lda", LDB: "ldb", LDC: "ldc",
	}, true))
	if finalize := kernel.Finalize(); finalize != "" {
		fmt.Printf("// Finalize:\n%s\n", finalize)
	}
}
