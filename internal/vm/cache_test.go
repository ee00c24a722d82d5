package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResultCachePutGet(t *testing.T) {
	var stats Stats
	cache, err := NewResultCache(4, &stats)
	require.NoError(t, err)

	program := []Instruction{{Op: OpLoad, StrConst: 0}, {Op: OpHalt}}
	digest := Digest(program, []string{"tech"})

	_, ok := cache.Get(1, digest)
	require.False(t, ok)

	want := NodeSetOf(0, 1)
	cache.Put(1, digest, want)

	got, ok := cache.Get(1, digest)
	require.True(t, ok)
	require.Equal(t, want.Ids(), got.Ids())

	snap := stats.Snapshot()
	require.EqualValues(t, 1, snap.CacheHits)
	require.EqualValues(t, 1, snap.CacheMisses)
}

func TestResultCacheDistinguishesFileChecksum(t *testing.T) {
	var stats Stats
	cache, err := NewResultCache(4, &stats)
	require.NoError(t, err)

	program := []Instruction{{Op: OpLoad, StrConst: 0}}
	digest := Digest(program, []string{"tech"})

	cache.Put(1, digest, NodeSetOf(0))
	_, ok := cache.Get(2, digest)
	require.False(t, ok)
}

func TestDigestStable(t *testing.T) {
	program := []Instruction{{Op: OpLoad, StrConst: 0}, {Op: OpLimit, A: 5}}
	a := Digest(program, []string{"tech"})
	b := Digest(program, []string{"tech"})
	require.Equal(t, a, b)

	c := Digest(program, []string{"technology"})
	require.NotEqual(t, a, c)
}
