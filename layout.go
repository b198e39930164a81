// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package microgemm

// LayoutType declares the physical memory arrangement the caller must produce
// for the B operand before invoking a kernel.
type LayoutType int

//go:generate go tool enumer -type=LayoutType -trimprefix=Layout -output=gen_layouttype_enumer.go layout.go

const (
	// LayoutNormal is plain row-major [K, N].
	LayoutNormal LayoutType = iota

	// LayoutVNNI2 interleaves pairs of K rows, as required by the 16-bit AMX
	// tile loads: element [k, n] is stored at [k/2, n*2 + k%2].
	LayoutVNNI2

	// LayoutVNNI4 interleaves groups of four K rows, as required by the 8-bit
	// AMX tile loads: element [k, n] is stored at [k/4, n*4 + k%4].
	LayoutVNNI4
)
