package core

import (
	"github.com/encodeous/dodag/perf"
	"github.com/encodeous/dodag/state"
)

// selectParent picks the best parent of dag and installs it as preferred. Parents with an
// infinite rank are ignored.
func (e *Engine) selectParent(dag *state.Dag) state.ParentId {
	inst := e.instanceOf(dag)
	best := state.NoParent
	for id, p := range e.Parents.All() {
		if p.Dag != dag.Ref || p.Rank == state.InfiniteRank {
			continue
		}
		if best == state.NoParent {
			best = id
			continue
		}
		if inst.OF.BestParent(inst, e.Parents.Get(best), p) == p {
			best = id
		}
	}
	if best != state.NoParent {
		e.setPreferred(dag, best)
	}
	return best
}

// selectDag re-evaluates the preferred DAG of inst after parent id changed, and recomputes
// our rank in it. Returns nil if no DAG has a usable parent; the caller is expected to
// run a local repair.
func (e *Engine) selectDag(inst *state.Instance, id state.ParentId) *state.Dag {
	cur := inst.CurrentDag()
	p := e.Parents.Get(id)
	if p == nil {
		return cur
	}
	pdag := e.Repo.Dag(p.Dag)
	if pdag == nil {
		return cur
	}
	if cur == nil {
		pdag.Joined = true
		inst.Current = pdag.Ref.Slot
		cur = pdag
	}
	// the root never takes a parent
	if cur.Rank == inst.RootRank() {
		return cur
	}

	oldRank := cur.Rank
	lastParent := cur.Preferred

	best := cur
	if e.selectParent(pdag) != state.NoParent {
		if pdag != best {
			best = inst.OF.BestDag(best, pdag)
		}
	} else if pdag == best {
		best = nil
		for dag := range inst.UsedDags() {
			pp := e.Parents.Get(dag.Preferred)
			if pp == nil || pp.Rank == state.InfiniteRank {
				continue
			}
			if best == nil {
				best = dag
			} else {
				best = inst.OF.BestDag(best, dag)
			}
		}
	}

	if best == nil {
		e.Host.Log(NoViableTopology, "no dag has a usable parent", "instance", inst.Id)
		return nil
	}

	if best != cur {
		e.Host.RemoveRoutes(cur.Ref)
		var last *state.PrefixInfo
		if cur.Prefix.Len() != 0 {
			last = &cur.Prefix
		}
		if best.Prefix.Autonomous() {
			e.checkPrefix(last, &best.Prefix)
		} else if cur.Prefix.Autonomous() {
			e.checkPrefix(last, nil)
		}
		best.Joined = true
		cur.Joined = false
		inst.Current = best.Ref.Slot
		e.Host.Log(DagSwitch, "switched preferred dag", "from", cur.Id, "to", best.Id)
	}

	preferred := e.Parents.Get(best.Preferred)
	inst.OF.UpdateMetricContainer(inst, preferred)
	best.Rank = inst.OF.CalculateRank(inst, preferred, 0)
	if lastParent == state.NoParent || best.Rank < best.MinRank {
		best.MinRank = best.Rank
	} else if !state.AcceptableRank(inst, best, best.Rank) {
		e.Host.Log(UnacceptableRank, "new rank is unacceptable", "rank", best.Rank, "min_rank", best.MinRank)
		e.setPreferred(best, state.NoParent)
		if last := e.Parents.Get(lastParent); last != nil && inst.Mop != state.MopNoDownwardRoutes {
			e.Host.SendNoPath(e.Host.IPFor(last.Addr), inst)
		}
		return nil
	}

	if best.Preferred != lastParent {
		nexthop := e.ParentAddr(best.Preferred)
		e.setDefaultRoute(inst, nexthop)
		e.Stats.ParentSwitches++
		perf.ParentSwitches.Add(1)
		e.Host.Log(ParentSwitch, "changed preferred parent", "parent", nexthop, "old_rank", oldRank, "rank", best.Rank)
		if inst.Mop != state.MopNoDownwardRoutes {
			if last := e.Parents.Get(lastParent); last != nil {
				e.Host.SendNoPath(e.Host.IPFor(last.Addr), inst)
			}
			inst.DtsnOut.Increment()
			e.Host.ScheduleRouteRegistration(inst)
		}
		e.Host.ResetAdvertTimer(inst)
	} else if best.Rank != oldRank {
		e.Host.Log(RankChanged, "preferred parent update changed our rank", "old_rank", oldRank, "rank", best.Rank)
	}
	return best
}
