package state

import "fmt"

// Rank is the position of a node relative to the DAG root. Lower is closer.
type Rank uint16

func (r Rank) String() string {
	if r == InfiniteRank {
		return "inf"
	}
	return fmt.Sprintf("%d", uint16(r))
}

// DagRank normalizes a rank by the minimum per hop increase, so that ranks of the
// same integer part belong to the same hop distance.
func DagRank(r Rank, minHopRankInc Rank) uint32 {
	return dagRank(uint32(r), minHopRankInc)
}

func dagRank(r uint32, minHopRankInc Rank) uint32 {
	if minHopRankInc == 0 {
		return r
	}
	return r / uint32(minHopRankInc)
}

// AcceptableRank reports whether rank may be taken by dag without drifting more than
// the instance's MaxRankInc above the lowest rank the dag has ever held.
func AcceptableRank(inst *Instance, dag *Dag, rank Rank) bool {
	if rank == InfiniteRank {
		return false
	}
	if inst.MaxRankInc == 0 {
		return true
	}
	bound := uint32(dag.MinRank) + uint32(inst.MaxRankInc)
	return DagRank(rank, inst.MinHopRankInc) <= dagRank(bound, inst.MinHopRankInc)
}
