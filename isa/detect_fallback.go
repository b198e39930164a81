// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

//go:build !amd64

package isa

// detect on non-x86 platforms: only the scalar reference kernels apply.
func detect() Tier {
	return Baseline
}
