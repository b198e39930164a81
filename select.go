// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package microgemm

import (
	"runtime"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/microgemm/isa"
)

// ErrNoMatchingKernel is returned by Select when no registered configuration
// matches the problem and the reference fallback was disabled.
var ErrNoMatchingKernel = errors.New("no matching micro-GEMM kernel")

// Problem describes one micro-GEMM code-generation request.
type Problem struct {
	// M, N, K are the problem dimensions. N and K must be statically known
	// and positive. M may be 0 when it is only known at runtime, in which
	// case scoring uses the concrete fallback value 1.
	M, N, K int

	// InputDType is required. Input2DType defaults to InputDType, OutputDType
	// defaults to InputDType and ComputeDType defaults to OutputDType.
	InputDType, Input2DType   dtypes.DType
	OutputDType, ComputeDType dtypes.DType

	// Alpha is the scalar multiplier applied to the product. 0 means the
	// default of 1.
	Alpha float64

	// NumThreads is the parallelism the caller plans for the outer blocking
	// loop; it only influences selection scoring. <=0 means runtime.NumCPU().
	NumThreads int

	// DisableFallback makes Select return ErrNoMatchingKernel instead of the
	// naive reference kernel when nothing matches.
	DisableFallback bool

	// Family, when non-empty, restricts selection to that registered family.
	Family string
}

// withDefaults returns a copy of p with the documented defaults filled in.
func (p Problem) withDefaults() Problem {
	if p.Input2DType == dtypes.InvalidDType {
		p.Input2DType = p.InputDType
	}
	if p.OutputDType == dtypes.InvalidDType {
		p.OutputDType = p.InputDType
	}
	if p.ComputeDType == dtypes.InvalidDType {
		p.ComputeDType = p.OutputDType
	}
	if p.Alpha == 0 {
		p.Alpha = 1
	}
	if p.NumThreads <= 0 {
		p.NumThreads = runtime.NumCPU()
	}
	return p
}

// mHint is the concrete M used for scoring: the actual value when known, else
// the fallback of 1.
func (p Problem) mHint() int {
	if p.M > 0 {
		return p.M
	}
	return 1
}

// score ranks a config for this problem. Scores compare lexicographically,
// highest wins:
//
//  1. ISA: AMX-tier configs over everything else.
//  2. Divisibility: how many of M, N, K the blocking divides evenly -- an
//     evenly divided dimension needs no tail code at the call site.
//  3. Occupancy: whether the N blocks alone, and the M x N blocks in total,
//     are enough to occupy every planned thread.
//  4. Register footprint in bytes, an approximation of arithmetic intensity,
//     as the final tie-break.
func (p Problem) score(c Config) [4]int {
	b := c.Blocking
	var isaScore int
	if c.ISA == isa.AMX {
		isaScore = 1
	}

	m := p.mHint()
	var divScore int
	if m%b.BlockM == 0 {
		divScore++
	}
	if p.N%b.BlockN == 0 {
		divScore++
	}
	if p.K%b.BlockK == 0 {
		divScore++
	}

	var occupancyScore int
	nBlocks := ceilDiv(p.N, b.BlockN)
	totalBlocks := nBlocks * ceilDiv(m, b.BlockM)
	if nBlocks >= p.NumThreads {
		occupancyScore++
	}
	if totalBlocks >= p.NumThreads {
		occupancyScore++
	}

	registerBytes := b.BlockM*b.BlockN*c.ComputeDType.Size() +
		(b.BlockM*b.BlockK+b.BlockK*b.BlockN)*c.InputDType.Size()

	return [4]int{isaScore, divScore, occupancyScore, registerBytes}
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

// scoreLess compares two score tuples lexicographically.
func scoreLess(a, b [4]int) bool {
	for ii := range a {
		if a[ii] != b[ii] {
			return a[ii] < b[ii]
		}
	}
	return false
}

// Select picks the best-ranked kernel configuration for the problem and
// returns the realized kernel named name.
//
// Eligibility: the config's required ISA tier must not exceed the host tier
// (see isa.Host), its dtype combination must match the problem exactly, and
// its Check predicate (if any) must accept the problem. Eligible configs are
// ranked by Problem.score; ties go to the earliest-registered family and
// earliest-listed config, so for fixed registry contents and host tier the
// result is deterministic.
//
// When nothing is eligible, Select returns the naive reference kernel for the
// requested dtypes -- unconditionally correct for any shape -- unless
// p.DisableFallback is set, in which case it returns ErrNoMatchingKernel.
func Select(name string, p Problem) (Kernel, error) {
	p = p.withDefaults()
	if p.InputDType == dtypes.InvalidDType {
		exceptions.Panicf("microgemm: Select(%q) requires an InputDType", name)
	}
	if p.N <= 0 || p.K <= 0 {
		exceptions.Panicf("microgemm: Select(%q) requires statically known positive N and K, got N=%d, K=%d",
			name, p.N, p.K)
	}

	host := isa.Host()
	var (
		bestEntry  *familyEntry
		bestConfig Config
		bestScore  [4]int
		matched    bool
	)
	for _, entry := range registeredFamilies {
		if p.Family != "" && entry.name != p.Family {
			continue
		}
		for _, config := range entry.configs {
			if config.ISA > host {
				continue
			}
			if config.InputDType != p.InputDType ||
				config.Input2DType != p.Input2DType ||
				config.OutputDType != p.OutputDType ||
				config.ComputeDType != p.ComputeDType {
				continue
			}
			if config.Check != nil && !config.Check(config, p) {
				continue
			}
			score := p.score(config)
			if !matched || scoreLess(bestScore, score) {
				bestEntry, bestConfig, bestScore, matched = entry, config, score, true
			}
		}
	}

	if !matched {
		if p.DisableFallback {
			return nil, errors.WithMessagef(ErrNoMatchingKernel,
				"for M=%d, N=%d, K=%d, input=%s, input2=%s, output=%s, compute=%s on %s",
				p.M, p.N, p.K, p.InputDType, p.Input2DType, p.OutputDType, p.ComputeDType, host)
		}
		klog.V(1).Infof("microgemm.Select(%q): no config matched on %s, falling back to the reference kernel", name, host)
		return newRefKernel(name, p.InputDType, p.Input2DType, p.OutputDType, p.ComputeDType, p.Alpha), nil
	}
	klog.V(1).Infof("microgemm.Select(%q): family=%q, blocking=%v, score=%v on %s",
		name, bestEntry.name, bestConfig.Blocking, bestScore, host)
	return bestEntry.ctor(name, bestConfig, p.Alpha), nil
}
