package objective

import "github.com/encodeous/dodag/state"

// OF0 is the hop-count objective function (RFC 6552). Every hop adds the instance's
// minimum hop rank increase.
type OF0 struct{}

func (o *OF0) Ocp() uint16 {
	return OcpOF0
}

func (o *OF0) CalculateRank(inst *state.Instance, p *state.Parent, base state.Rank) state.Rank {
	if base == 0 {
		if p == nil {
			return state.InfiniteRank
		}
		base = p.Rank
	}
	if base == state.InfiniteRank {
		return state.InfiniteRank
	}
	inc := uint32(state.DefaultMinHopRankInc)
	if p != nil && inst != nil {
		inc = uint32(inst.MinHopRankInc)
	}
	return saturate(uint32(base), inc)
}

func (o *OF0) BestParent(inst *state.Instance, p1, p2 *state.Parent) *state.Parent {
	step := uint32(inst.MinHopRankInc)
	m1 := state.DagRank(p1.Rank, inst.MinHopRankInc)*step + uint32(p1.LinkMetric)
	m2 := state.DagRank(p2.Rank, inst.MinHopRankInc)*step + uint32(p2.LinkMetric)
	return withHysteresis(p1, p2, m1, m2, step+step/2)
}

func (o *OF0) BestDag(d1, d2 *state.Dag) *state.Dag {
	return bestDag(d1, d2)
}

func (o *OF0) UpdateMetricContainer(inst *state.Instance, _ *state.Parent) {
	inst.MC = state.MetricContainer{Type: state.McNone}
}

func (o *OF0) Reset(*state.Dag) {}
