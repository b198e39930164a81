// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package microgemm

import "github.com/gomlx/gopjrt/dtypes"

// RefKernel is the naive triple-loop reference family: unconditionally
// correct for any tile or problem shape, used as the selection fallback and
// as the correctness oracle the other families are checked against. It
// registers no configs of its own.
type RefKernel struct {
	baseKernel
}

func newRefKernel(name string, input, input2, output, compute dtypes.DType, alpha float64) *RefKernel {
	return &RefKernel{
		baseKernel: newBaseKernel(name, input, input2, output, compute, Blocking{1, 1, 1}, alpha),
	}
}

const refKernelTemplate = `{{.DeclareKernel}} {
    for (int64_t m = 0; m < M; ++m) {
        for (int64_t n = 0; n < N; ++n) {
            {{.ComputeT}} result = accum ? C[m * ldc + n] : 0;
            for (int64_t k = 0; k < K; ++k) {
                result += ({{.ComputeT}})A[m * lda + k] * ({{.ComputeT}})B[k * ldb + n] * {{.Alpha}};
            }
            C[m * ldc + n] = result;
        }
    }
}
`

func (k *RefKernel) Define() string {
	return render("ref_kernel", refKernelTemplate, struct {
		DeclareKernel string
		ComputeT      string
		Alpha         string
	}{
		DeclareKernel: k.Declare(),
		ComputeT:      cppType(k.computeDType),
		Alpha:         cppFloat(k.alpha),
	})
}
