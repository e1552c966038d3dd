package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func rankFixture(maxRankInc Rank, minRank Rank) (*Instance, *Dag) {
	inst := &Instance{MaxRankInc: maxRankInc, MinHopRankInc: DefaultMinHopRankInc}
	dag := &Dag{MinRank: minRank}
	return inst, dag
}

func TestAcceptableRank_Infinite(t *testing.T) {
	for _, bound := range []Rank{0, 256, DefaultMaxRankInc} {
		for _, minRank := range []Rank{0, 256, 1024, InfiniteRank} {
			inst, dag := rankFixture(bound, minRank)
			assert.False(t, AcceptableRank(inst, dag, InfiniteRank))
		}
	}
}

func TestAcceptableRank_Unbounded(t *testing.T) {
	inst, dag := rankFixture(0, 256)
	for _, r := range []Rank{0, 1, 256, 40000, InfiniteRank - 1} {
		assert.True(t, AcceptableRank(inst, dag, r), "rank %d", r)
	}
}

func TestAcceptableRank_Bounded(t *testing.T) {
	inst, dag := rankFixture(2*256, 512)
	assert.True(t, AcceptableRank(inst, dag, 512))
	assert.True(t, AcceptableRank(inst, dag, 1024))
	// same hop distance as the bound after normalization
	assert.True(t, AcceptableRank(inst, dag, 1024+255))
	assert.False(t, AcceptableRank(inst, dag, 1280))
}

func TestAcceptableRank_InfiniteFloor(t *testing.T) {
	// a dag that has never held a rank accepts anything finite
	inst, dag := rankFixture(DefaultMaxRankInc, InfiniteRank)
	assert.True(t, AcceptableRank(inst, dag, InfiniteRank-1))
}

func TestDagRank(t *testing.T) {
	assert.Equal(t, uint32(2), DagRank(600, 256))
	assert.Equal(t, uint32(600), DagRank(600, 0))
	assert.Equal(t, "inf", InfiniteRank.String())
	assert.Equal(t, "256", Rank(256).String())
}
