// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package isa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierOrdering(t *testing.T) {
	assert.True(t, Baseline < AVX2)
	assert.True(t, AVX2 < AVX512)
	assert.True(t, AVX512 < AMX)
}

func TestTierStrings(t *testing.T) {
	assert.Equal(t, "Baseline", Baseline.String())
	assert.Equal(t, "AVX512", AVX512.String())
	assert.Equal(t, "AMX", AMX.String())

	tier, err := TierString("avx2")
	require.NoError(t, err)
	assert.Equal(t, AVX2, tier)

	_, err = TierString("sse42")
	require.Error(t, err)
}

func TestHost(t *testing.T) {
	tier := Host()
	assert.True(t, tier.IsATier(), "Host() returned unknown tier %d", tier)

	// Host is cached: repeated calls must agree.
	assert.Equal(t, tier, Host())
}

func TestSetHostForTest(t *testing.T) {
	original := Host()
	restore := SetHostForTest(AMX)
	assert.Equal(t, AMX, Host())
	restore()
	assert.Equal(t, original, Host())
}
