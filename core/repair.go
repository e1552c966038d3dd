package core

import (
	"net/netip"

	"github.com/encodeous/dodag/perf"
	"github.com/encodeous/dodag/state"
)

// globalRepair follows a newer DAG version announced by from: every parent is dropped and
// the sender becomes the only one.
func (e *Engine) globalRepair(from netip.Addr, dag *state.Dag, adv *state.Advertisement) {
	inst := e.instanceOf(dag)
	e.removeParents(dag, 0)
	dag.Version = adv.Version
	inst.OF.Reset(dag)
	dag.MinRank = state.InfiniteRank
	inst.DtsnOut.Increment()

	id := e.addParent(dag, adv, from)
	if id == state.NoParent {
		dag.Rank = state.InfiniteRank
	} else {
		dag.Rank = inst.OF.CalculateRank(inst, e.Parents.Get(id), 0)
		dag.MinRank = dag.Rank
		e.processParentEvent(inst, id)
	}

	e.Stats.GlobalRepairs++
	perf.GlobalRepairs.Add(1)
	e.Host.Log(GlobalRepair, "participating in global repair", "version", dag.Version, "rank", dag.Rank)
}

// LocalRepair detaches from every parent of inst while keeping the DAG version.
func (e *Engine) LocalRepair(inst *state.Instance) {
	if inst == nil {
		return
	}
	for dag := range inst.UsedDags() {
		dag.Rank = state.InfiniteRank
		e.nullifyParents(dag, 0)
	}
	e.Host.ResetAdvertTimer(inst)

	e.Stats.LocalRepairs++
	perf.LocalRepairs.Add(1)
	e.Host.Log(LocalRepair, "starting local repair", "instance", inst.Id)
}
