// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

//go:build amd64

package isa

import "golang.org/x/sys/cpu"

// detect probes the CPU feature flags and maps them to the highest usable Tier.
//
// AVX512 requires the F/BW/VL/DQ subsets used by the vectorized kernels, not
// just the foundation bit: Knights-Landing-era CPUs report AVX512F alone and
// would mis-run the generated code.
func detect() Tier {
	switch {
	case cpu.X86.HasAMXTile && cpu.X86.HasAMXBF16 && cpu.X86.HasAMXInt8:
		return AMX
	case cpu.X86.HasAVX512F && cpu.X86.HasAVX512BW &&
		cpu.X86.HasAVX512VL && cpu.X86.HasAVX512DQ:
		return AVX512
	case cpu.X86.HasAVX2 && cpu.X86.HasFMA:
		return AVX2
	default:
		return Baseline
	}
}
