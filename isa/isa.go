// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package isa models the x86 instruction-set tiers relevant for micro-GEMM
// code generation, and probes which tier the host CPU supports.
//
// Tiers are strictly ordered: Baseline < AVX2 < AVX512 < AMX. A kernel
// configuration that requires a given tier is usable on any host whose tier
// is the same or higher.
package isa

import "sync"

// Tier is an ordered classification of the CPU vector/matrix capability.
type Tier int

//go:generate go tool enumer -type=Tier -output=gen_tier_enumer.go isa.go

const (
	// Baseline is plain scalar code, always available.
	Baseline Tier = iota

	// AVX2 provides 256-bit vectors with FMA.
	AVX2

	// AVX512 provides 512-bit vectors.
	AVX512

	// AMX provides the advanced matrix-tile instructions introduced with
	// Sapphire Rapids. It implies AVX512.
	AMX
)

var (
	muHost   sync.Mutex
	probed   bool
	hostTier Tier
)

// Host returns the highest Tier supported by the current machine.
// The hardware probe runs once; the result is cached for the process lifetime.
func Host() Tier {
	muHost.Lock()
	defer muHost.Unlock()
	if !probed {
		hostTier = detect()
		probed = true
	}
	return hostTier
}

// SetHostForTest forces Host to report the given tier, and returns a function
// that restores the previous state. It allows tests to simulate machines with
// capabilities different from the one they run on.
func SetHostForTest(tier Tier) (restore func()) {
	muHost.Lock()
	defer muHost.Unlock()
	prevProbed, prevTier := probed, hostTier
	probed, hostTier = true, tier
	return func() {
		muHost.Lock()
		defer muHost.Unlock()
		probed, hostTier = prevProbed, prevTier
	}
}
