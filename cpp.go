// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package microgemm

import (
	"fmt"
	"strconv"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// assertFn is the assertion macro the generated code uses for fatal shape
// checks. The consumer's support header must define it as
// MG_CHECK(condition, message).
const assertFn = "MG_CHECK"

// cppTypes maps the supported element types to the C++ spelling used in the
// generated kernel signatures and bodies. bfloat16/half come from the
// consumer's support header.
var cppTypes = map[dtypes.DType]string{
	dtypes.Float32:  "float",
	dtypes.Float64:  "double",
	dtypes.BFloat16: "bfloat16",
	dtypes.Float16:  "half",
	dtypes.Uint8:    "unsigned char",
	dtypes.Int8:     "signed char",
	dtypes.Int16:    "short",
	dtypes.Int32:    "int",
	dtypes.Int64:    "int64_t",
}

func cppType(dtype dtypes.DType) string {
	cpp, found := cppTypes[dtype]
	if !found {
		exceptions.Panicf("microgemm: dtype %s is not supported for C++ code generation", dtype)
	}
	return cpp
}

func cppBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// cppFloat formats the alpha multiplier the way it appears in the generated
// expressions: integral values without a decimal point.
func cppFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// unrollPragma asks the native compiler to unroll the following loop.
func unrollPragma(n int) string {
	return fmt.Sprintf("#pragma GCC unroll %d", n)
}

// is16Bit reports whether the dtype is one of the 16-bit float types that the
// vectorized kernels load as input width and widen to the compute width.
func is16Bit(dtype dtypes.DType) bool {
	return dtype == dtypes.BFloat16 || dtype == dtypes.Float16
}
