package drng

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDrawIsPermutationOfFullRange(t *testing.T) {
	var seed [32]byte
	for i := range seed {
		seed[i] = 0xFF
	}

	got, err := Draw(seed, 4, 4)
	require.NoError(t, err)
	require.Len(t, got, 4)

	seen := make(map[uint64]bool)
	for _, v := range got {
		require.False(t, seen[v], "duplicate draw %d", v)
		require.GreaterOrEqual(t, v, uint64(1))
		require.LessOrEqual(t, v, uint64(4))
		seen[v] = true
	}
}

func TestDrawIsDeterministic(t *testing.T) {
	var seed [32]byte
	for i := range seed {
		seed[i] = 0xFF
	}

	first, err := Draw(seed, 4, 4)
	require.NoError(t, err)
	second, err := Draw(seed, 4, 4)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestDrawRejectsOverdraw(t *testing.T) {
	var seed [32]byte
	_, err := Draw(seed, 3, 4)
	require.Error(t, err)
}

func TestDrawDistinctSubset(t *testing.T) {
	var seed [32]byte
	seed[0] = 0x42

	got, err := Draw(seed, 100, 10)
	require.NoError(t, err)
	require.Len(t, got, 10)

	seen := make(map[uint64]bool)
	for _, v := range got {
		require.False(t, seen[v])
		require.GreaterOrEqual(t, v, uint64(1))
		require.LessOrEqual(t, v, uint64(100))
		seen[v] = true
	}
}
