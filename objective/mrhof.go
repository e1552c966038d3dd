package objective

import "github.com/encodeous/dodag/state"

const (
	// MaxLinkMetric is the ETX charged for a transmission that was never acknowledged.
	MaxLinkMetric = 10
	// MaxPathCost is the path cost reported when there is no parent.
	MaxPathCost = 100
	// ParentSwitchThresholdDiv sets the hysteresis to EtxDivisor / ParentSwitchThresholdDiv.
	ParentSwitchThresholdDiv = 2

	etxAlpha = 90
	etxScale = 100
)

const (
	EnergyTypeMains   = uint8(0)
	EnergyTypeBattery = uint8(1)
	energyTypeShift   = 1
)

// MRHOF is the minimum rank with hysteresis objective function (RFC 6719). Link metrics
// are an exponentially weighted moving average of the expected transmission count.
type MRHOF struct {
	// Metric is the metric container type advertised: state.McNone, state.McEtx or state.McEnergy.
	Metric uint8
}

func (m *MRHOF) Ocp() uint16 {
	return OcpMRHOF
}

func (m *MRHOF) pathMetric(p *state.Parent) uint32 {
	if p == nil {
		return MaxPathCost * state.EtxDivisor
	}
	switch m.Metric {
	case state.McEtx:
		return uint32(p.MC.Etx) + uint32(p.LinkMetric)
	case state.McEnergy:
		return uint32(p.MC.Energy) + uint32(p.LinkMetric)
	}
	return uint32(p.Rank) + uint32(p.LinkMetric)
}

// LinkFeedback folds a transmission outcome into the parent's link metric.
func (m *MRHOF) LinkFeedback(p *state.Parent, ok bool, numTx int) {
	packetEtx := uint32(numTx) * state.EtxDivisor
	if !ok {
		packetEtx = MaxLinkMetric * state.EtxDivisor
	}
	etx := (uint32(p.LinkMetric)*etxAlpha + packetEtx*(etxScale-etxAlpha)) / etxScale
	p.LinkMetric = uint16(min(etx, 0xffff))
}

func (m *MRHOF) CalculateRank(_ *state.Instance, p *state.Parent, base state.Rank) state.Rank {
	var inc uint32
	if p == nil {
		if base == 0 {
			return state.InfiniteRank
		}
		inc = uint32(state.InitLinkMetric) * state.EtxDivisor
	} else {
		inc = uint32(p.LinkMetric)
		if base == 0 {
			base = p.Rank
		}
	}
	if base == state.InfiniteRank {
		return state.InfiniteRank
	}
	return saturate(uint32(base), inc)
}

func (m *MRHOF) BestParent(_ *state.Instance, p1, p2 *state.Parent) *state.Parent {
	return withHysteresis(p1, p2, m.pathMetric(p1), m.pathMetric(p2), state.EtxDivisor/ParentSwitchThresholdDiv)
}

func (m *MRHOF) BestDag(d1, d2 *state.Dag) *state.Dag {
	return bestDag(d1, d2)
}

func (m *MRHOF) UpdateMetricContainer(inst *state.Instance, preferred *state.Parent) {
	inst.MC = state.MetricContainer{Type: m.Metric, Flags: state.McFlagP, Aggr: state.McAggrAdditive}
	dag := inst.CurrentDag()
	if dag == nil || !dag.Joined {
		return
	}
	var path uint32
	if dag.Rank != inst.RootRank() {
		path = m.pathMetric(preferred)
	}
	switch m.Metric {
	case state.McEtx:
		inst.MC.Etx = uint16(min(path, 0xffff))
	case state.McEnergy:
		typ := EnergyTypeBattery
		if dag.Rank == inst.RootRank() {
			typ = EnergyTypeMains
		}
		inst.MC.EnergyFlags = typ << energyTypeShift
		inst.MC.Energy = uint8(min(path, 0xff))
	}
}

func (m *MRHOF) Reset(*state.Dag) {}
