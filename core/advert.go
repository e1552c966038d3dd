package core

import (
	"net/netip"

	"github.com/encodeous/dodag/state"
)

// ProcessAdvertisement handles a topology advertisement received from a neighbour
// (RFC 6550 8.2.3).
func (e *Engine) ProcessAdvertisement(from netip.Addr, adv *state.Advertisement) {
	if adv.Mop != e.Mop {
		e.Host.Log(IncompatibleAdvertisement, "ignoring advertisement with unsupported mode of operation", "mop", adv.Mop, "from", from)
		return
	}

	dag := e.Repo.FindDag(adv.InstanceId, adv.DagId)
	inst := e.Repo.Instance(adv.InstanceId)

	if dag != nil && inst != nil {
		if adv.Version.GreaterThan(dag.Version) {
			if dag.Rank == inst.RootRank() {
				e.Host.Log(InconsistentVersion, "root received a newer version, reclaiming authority", "version", adv.Version, "ours", dag.Version)
				dag.Version = adv.Version.Next()
				e.Host.ResetAdvertTimer(inst)
			} else {
				if adv.Prefix.Autonomous() {
					e.SetPrefix(dag, adv.Prefix.Prefix)
				}
				e.globalRepair(from, dag, adv)
			}
			return
		}

		if dag.Version.GreaterThan(adv.Version) {
			e.Host.Log(InconsistentVersion, "sender is on an older version", "version", adv.Version, "ours", dag.Version, "from", from)
			if dag.Joined {
				e.Host.ResetAdvertTimer(inst)
				return
			}
		}
	}

	if inst == nil {
		e.joinInstance(from, adv)
		return
	}

	if dag == nil {
		e.addDag(from, adv)
		return
	}

	if adv.Rank < inst.RootRank() {
		e.Host.Log(UnacceptableRank, "ignoring advertisement with a rank below the root", "rank", adv.Rank, "from", from)
		return
	} else if adv.Rank == state.InfiniteRank && dag.Joined {
		e.Host.ResetAdvertTimer(inst)
	}

	if adv.Prefix.Autonomous() {
		e.SetPrefix(dag, adv.Prefix.Prefix)
	}

	if dag.Rank == inst.RootRank() {
		if adv.Rank != state.InfiniteRank {
			inst.DioCounter++
		}
		return
	}

	// the sender is a candidate parent in a dag we belong to
	id := e.findParent(dag, from)
	if id == state.NoParent {
		if prev := e.findParentDag(inst, from); prev == nil {
			id = e.addParent(dag, adv, from)
			if id == state.NoParent {
				return
			}
		} else {
			id = e.findParent(prev, from)
			e.moveParent(prev, dag, id)
			e.Parents.Get(id).Rank = adv.Rank
		}
	} else {
		p := e.Parents.Get(id)
		if p.Rank == adv.Rank {
			if dag.Joined {
				inst.DioCounter++
			}
		} else {
			p.Rank = adv.Rank
		}
	}

	p := e.Parents.Get(id)
	p.MC = adv.MC
	p.UpdateTime = e.now()
	if p.Role != state.RolePreferred {
		p.Role = roleFor(dag, p)
	}

	if !e.processParentEvent(inst, id) {
		p.Dtsn = adv.Dtsn
		return
	}

	// without route control there is a single upward parent
	if dag.Joined && id == dag.Preferred {
		if e.shouldSendRegistration(inst, adv, id) {
			inst.DtsnOut.Increment()
			e.Host.ScheduleRouteRegistration(inst)
		}
		e.Host.RefreshDefaultRoute(from, inst.Lifetime(inst.DefaultLifetime))
	}
	p.Dtsn = adv.Dtsn
}

// shouldSendRegistration reports whether the preferred parent asked for fresh route
// registrations by advancing its sequence number.
func (e *Engine) shouldSendRegistration(inst *state.Instance, adv *state.Advertisement, id state.ParentId) bool {
	if inst.Mop == state.MopNoDownwardRoutes {
		return false
	}
	cur := inst.CurrentDag()
	p := e.Parents.Get(id)
	return cur != nil && p != nil && cur.Preferred == id && adv.Dtsn.GreaterThan(p.Dtsn)
}

// processParentEvent re-evaluates the topology after parent id changed. It reports whether
// the parent's rank was acceptable, even if the DAG was kept through another parent.
func (e *Engine) processParentEvent(inst *state.Instance, id state.ParentId) bool {
	p := e.Parents.Get(id)
	if p == nil {
		return false
	}
	dag := e.Repo.Dag(p.Dag)
	if dag == nil {
		return false
	}

	accepted := true
	if !state.AcceptableRank(inst, dag, p.Rank) {
		// choosing this parent would raise our rank too far
		cur := inst.CurrentDag()
		wasPreferred := cur != nil && cur.Preferred == id
		e.Host.Log(UnacceptableRank, "unacceptable parent rank", "parent", p.Addr, "rank", p.Rank, "min_rank", dag.MinRank)
		e.nullifyParent(id)
		if !wasPreferred {
			return false
		}
		accepted = false
	}

	if e.selectDag(inst, id) == nil {
		e.LocalRepair(inst)
		return false
	}
	return accepted
}

// RecalculateRanks re-evaluates every parent whose link metric changed since the last sweep.
func (e *Engine) RecalculateRanks() {
	for id, p := range e.Parents.All() {
		if !p.Updated {
			continue
		}
		inst := e.Repo.InstanceOf(p.Dag)
		if inst == nil || e.Repo.Dag(p.Dag) == nil {
			continue
		}
		p.Updated = false
		if !e.processParentEvent(inst, id) {
			e.Host.Log(ParentNullified, "parent dropped after link update", "parent", p.Addr)
		}
	}
}

// LinkFeedback reports the outcome of a unicast transmission to a neighbour. Objective
// functions that track link quality update the parent's metric, and the next
// RecalculateRanks sweep applies it.
func (e *Engine) LinkFeedback(ll state.LinkAddr, ok bool, numTx int) {
	p := e.Parents.Get(e.Parents.Lookup(ll))
	if p == nil {
		return
	}
	inst := e.Repo.InstanceOf(p.Dag)
	if inst == nil || inst.OF == nil {
		return
	}
	if obs, isObserver := inst.OF.(state.LinkObserver); isObserver {
		obs.LinkFeedback(p, ok, numTx)
		p.Updated = true
	}
}

// BuildAdvertisement returns the advertisement this node sends for inst, or false if it
// has not joined a DAG in it.
func (e *Engine) BuildAdvertisement(inst *state.Instance) (state.Advertisement, bool) {
	dag := inst.CurrentDag()
	if dag == nil || !dag.Joined || inst.OF == nil {
		return state.Advertisement{}, false
	}
	return state.Advertisement{
		InstanceId: inst.Id,
		DagId:      dag.Id,
		Version:    dag.Version,
		Rank:       dag.Rank,
		Grounded:   dag.Grounded,
		Mop:        inst.Mop,
		Preference: dag.Preference,
		Dtsn:       inst.DtsnOut,
		Ocp:        inst.OF.Ocp(),

		IntervalDoublings: inst.DioIntDoublings,
		IntervalMin:       inst.DioIntMin,
		Redundancy:        inst.DioRedundancy,
		MaxRankInc:        inst.MaxRankInc,
		MinHopRankInc:     inst.MinHopRankInc,
		DefaultLifetime:   inst.DefaultLifetime,
		LifetimeUnit:      inst.LifetimeUnit,

		Prefix: dag.Prefix,
		MC:     inst.MC,
	}, true
}
