// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package microgemm

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"

	"github.com/gomlx/microgemm/isa"
)

// Blocking is the register-tile shape of a micro-kernel: the M, N and K
// extents computed per invocation of the innermost register-resident loop.
type Blocking struct {
	BlockM, BlockN, BlockK int
}

// Config describes one candidate kernel configuration of a family. Configs
// are immutable values created at registration time and owned by the registry
// for the process lifetime.
type Config struct {
	InputDType, Input2DType   dtypes.DType
	OutputDType, ComputeDType dtypes.DType

	// ISA is the minimum instruction-set tier the generated code requires.
	ISA isa.Tier

	Blocking Blocking

	// Check is an optional applicability predicate: a pure function of the
	// config and the problem. When set and returning false, the config is
	// excluded from selection.
	Check func(c Config, p Problem) bool
}

// Constructor builds a Kernel for a chosen Config. The registry holds one per
// family.
type Constructor func(name string, c Config, alpha float64) Kernel

// Registered kernel family names.
const (
	FamilyRef     = "ref"
	FamilyFP32Vec = "fp32vec"
	FamilyAMX     = "amx"
)

type familyEntry struct {
	name    string
	ctor    Constructor
	configs []Config
}

var (
	// registeredFamilies keeps registration order: selection ties are broken
	// toward the earliest-registered family, earliest-listed config.
	registeredFamilies []*familyEntry
	familiesByName     = make(map[string]*familyEntry)
)

// Register adds a kernel family with its candidate configurations. It is
// meant to be called from package init functions, before any Select call
// runs; the registry is read-only afterwards.
//
// A duplicate family name or an empty config list is a registration bug and
// panics with a stack trace.
func Register(family string, ctor Constructor, configs ...Config) {
	if _, found := familiesByName[family]; found {
		exceptions.Panicf("microgemm: duplicate registration of kernel family %q", family)
	}
	if len(configs) == 0 {
		exceptions.Panicf("microgemm: no configs provided for kernel family %q", family)
	}
	if ctor == nil {
		exceptions.Panicf("microgemm: nil constructor for kernel family %q", family)
	}
	entry := &familyEntry{name: family, ctor: ctor, configs: slices.Clone(configs)}
	registeredFamilies = append(registeredFamilies, entry)
	familiesByName[family] = entry
}

// Families returns the registered family names in registration order.
func Families() []string {
	names := make([]string, len(registeredFamilies))
	for ii, entry := range registeredFamilies {
		names[ii] = entry.name
	}
	return names
}

// Configs returns the configurations registered for the family, in the order
// they were supplied, or nil if the family is unknown.
func Configs(family string) []Config {
	entry, found := familiesByName[family]
	if !found {
		return nil
	}
	return slices.Clone(entry.configs)
}

// ConfigSpec is the input to GenerateConfigs: one ISA tier, a list of
// register blockings, the dtype combination and an optional predicate.
type ConfigSpec struct {
	ISA       isa.Tier
	Blockings []Blocking

	// InputDType is required. The others default as in Problem: Input2DType
	// to InputDType, OutputDType to InputDType, ComputeDType to OutputDType.
	InputDType, Input2DType   dtypes.DType
	OutputDType, ComputeDType dtypes.DType

	Check func(c Config, p Problem) bool
}

// GenerateConfigs expands a ConfigSpec into one Config per blocking, applying
// the dtype defaulting rules.
func GenerateConfigs(spec ConfigSpec) []Config {
	if spec.InputDType == dtypes.InvalidDType {
		exceptions.Panicf("microgemm: GenerateConfigs requires an InputDType")
	}
	if spec.Input2DType == dtypes.InvalidDType {
		spec.Input2DType = spec.InputDType
	}
	if spec.OutputDType == dtypes.InvalidDType {
		spec.OutputDType = spec.InputDType
	}
	if spec.ComputeDType == dtypes.InvalidDType {
		spec.ComputeDType = spec.OutputDType
	}
	configs := make([]Config, 0, len(spec.Blockings))
	for _, blocking := range spec.Blockings {
		configs = append(configs, Config{
			InputDType:   spec.InputDType,
			Input2DType:  spec.Input2DType,
			OutputDType:  spec.OutputDType,
			ComputeDType: spec.ComputeDType,
			ISA:          spec.ISA,
			Blocking:     blocking,
			Check:        spec.Check,
		})
	}
	return configs
}
