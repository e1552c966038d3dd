package core

import (
	"net/netip"

	"github.com/encodeous/dodag/state"
)

// allocDag claims a DAG slot in instance id, creating the instance if needed.
func (e *Engine) allocDag(id state.InstanceId, dagId netip.Addr) *state.Dag {
	inst := e.Repo.Instance(id)
	fresh := false
	if inst == nil {
		inst = e.Repo.AllocInstance(id)
		if inst == nil {
			e.memOverflow("instance")
			return nil
		}
		fresh = true
	}
	dag := e.Repo.AllocDag(inst)
	if dag == nil {
		e.memOverflow("dag")
		if fresh {
			e.FreeInstance(inst)
		}
		return nil
	}
	dag.Id = dagId
	return dag
}

// FreeInstance leaves every DAG of inst and releases it.
func (e *Engine) FreeInstance(inst *state.Instance) {
	for dag := range inst.UsedDags() {
		e.FreeDag(dag)
	}
	e.setDefaultRoute(inst, netip.Addr{})
	e.Host.StopTimers(inst)
	if e.Default == inst {
		e.Default = nil
	}
	inst.Used = false
	inst.Current = -1
	e.Host.Log(InstanceFreed, "left instance", "instance", inst.Id)
}

// FreeDag leaves dag and releases its slot. Parents still attached to it are removed so
// that no handle outlives the slot.
func (e *Engine) FreeDag(dag *state.Dag) {
	inst := e.instanceOf(dag)
	if dag.Joined {
		dag.Joined = false
		e.Host.RemoveRoutes(dag.Ref)
		if dag.Prefix.Autonomous() {
			e.checkPrefix(&dag.Prefix, nil)
		}
	}
	e.removeParents(dag, 0)
	if inst != nil && inst.CurrentDag() == dag {
		inst.Current = -1
	}
	dag.Used = false
	e.Host.Log(DagFreed, "left dag", "dag", dag.Id)
}

// SetRoot makes this node the root of (id, dagId). Re-rooting an existing DAG advances its
// version. Returns nil if the tables are full or the root objective function is unknown.
func (e *Engine) SetRoot(id state.InstanceId, dagId netip.Addr) *state.Dag {
	of, ok := e.Objectives.Lookup(e.Root.Ocp)
	if !ok {
		e.Host.Log(IncompatibleAdvertisement, "unsupported root objective function", "ocp", e.Root.Ocp)
		return nil
	}
	version := state.LollipopInit
	if dag := e.Repo.FindDag(id, dagId); dag != nil {
		version = dag.Version.Next()
		e.FreeDag(dag)
	}

	dag := e.allocDag(id, dagId)
	if dag == nil {
		return nil
	}
	inst := e.instanceOf(dag)

	dag.Version = version
	dag.Joined = true
	dag.Grounded = e.Root.Grounded
	inst.Mop = e.Root.Mop
	inst.OF = of
	e.setPreferred(dag, state.NoParent)

	inst.DioIntDoublings = e.Root.DioIntDoublings
	inst.DioIntMin = e.Root.DioIntMin
	// must differ from the minimum so that the first reset restarts the timer
	inst.DioIntCurrent = e.Root.DioIntMin + e.Root.DioIntDoublings
	inst.DioRedundancy = e.Root.DioRedundancy
	inst.MaxRankInc = e.Root.MaxRankInc
	inst.MinHopRankInc = e.Root.MinHopRankInc
	inst.DefaultLifetime = e.Root.DefaultLifetime
	inst.LifetimeUnit = e.Root.LifetimeUnit

	dag.Rank = inst.RootRank()

	if cur := inst.CurrentDag(); cur != nil && cur != dag {
		e.Host.RemoveRoutes(cur.Ref)
		cur.Joined = false
	}
	inst.Current = dag.Ref.Slot
	inst.DtsnOut = state.LollipopInit
	inst.OF.UpdateMetricContainer(inst, nil)
	e.Default = inst

	e.Host.Log(BecameRoot, "node is now a dag root", "instance", id, "dag", dagId, "version", dag.Version)
	e.Host.ResetAdvertTimer(inst)
	return dag
}

// RepairRoot starts a global repair of the instance rooted here by advancing the DAG version.
// Returns false if this node is not the root of the instance.
func (e *Engine) RepairRoot(id state.InstanceId) bool {
	inst := e.Repo.Instance(id)
	if inst == nil {
		return false
	}
	dag := inst.CurrentDag()
	if dag == nil || dag.Rank != inst.RootRank() {
		return false
	}
	dag.Version.Increment()
	inst.DtsnOut.Increment()
	e.Host.Log(RootRepair, "initiating global repair", "dag", dag.Id, "version", dag.Version)
	e.Host.ResetAdvertTimer(inst)
	return true
}

// SetPrefix sets the prefix announced for dag and autoconfigures an address from it.
func (e *Engine) SetPrefix(dag *state.Dag, prefix netip.Prefix) bool {
	if !prefix.IsValid() || !prefix.Addr().Is6() || prefix.Bits() > 128 {
		return false
	}
	var last *state.PrefixInfo
	if dag.Prefix.Len() != 0 {
		l := dag.Prefix
		last = &l
	}
	dag.Prefix.Prefix = prefix.Masked()
	dag.Prefix.Flags = state.PrefixFlagAutonomous
	e.checkPrefix(last, &dag.Prefix)
	return true
}

// checkPrefix moves the autoconfigured address from last to next. Either may be nil.
func (e *Engine) checkPrefix(last, next *state.PrefixInfo) {
	if last != nil && next != nil && last.Same(*next) {
		return
	}
	if last != nil {
		e.Host.RemoveAutoconfAddr(*last)
	}
	if next != nil {
		e.Host.AddAutoconfAddr(*next)
		e.Host.Log(PrefixChanged, "autoconfigured address from prefix", "prefix", next.Prefix)
	}
}

// setDefaultRoute replaces the default route of inst. An invalid nexthop only removes it.
func (e *Engine) setDefaultRoute(inst *state.Instance, nexthop netip.Addr) bool {
	if inst.DefRoute.IsValid() {
		e.Host.RemoveDefaultRoute(inst.DefRoute)
		inst.DefRoute = netip.Addr{}
	}
	if !nexthop.IsValid() {
		return true
	}
	if !e.Host.AddDefaultRoute(nexthop, inst.Lifetime(inst.DefaultLifetime)) {
		return false
	}
	inst.DefRoute = nexthop
	return true
}

// clearDefaultRoute drops the default route of inst if one is installed.
func (e *Engine) clearDefaultRoute(inst *state.Instance) {
	if inst.DefRoute.IsValid() {
		e.Host.RemoveDefaultRoute(inst.DefRoute)
		inst.DefRoute = netip.Addr{}
	}
}

// joinInstance joins the instance announced by adv through its sender (RFC 6550 8.2.2).
func (e *Engine) joinInstance(from netip.Addr, adv *state.Advertisement) {
	dag := e.allocDag(adv.InstanceId, adv.DagId)
	if dag == nil {
		return
	}
	inst := e.instanceOf(dag)

	id := e.addParent(dag, adv, from)
	if id == state.NoParent {
		e.FreeInstance(inst)
		return
	}

	of, ok := e.Objectives.Lookup(adv.Ocp)
	if !ok {
		e.Host.Log(IncompatibleAdvertisement, "advertisement uses an unsupported objective function", "ocp", adv.Ocp, "from", from)
		e.removeParent(id)
		e.FreeInstance(inst)
		return
	}
	if err := state.TrickleValidator(adv.IntervalMin, adv.IntervalDoublings); err != nil {
		e.Host.Log(IncompatibleAdvertisement, "advertisement has an unusable trickle interval", "error", err, "from", from)
		e.removeParent(id)
		e.FreeInstance(inst)
		return
	}

	if adv.Prefix.Autonomous() {
		e.checkPrefix(nil, &adv.Prefix)
	}

	dag.Joined = true
	dag.Preference = adv.Preference
	dag.Grounded = adv.Grounded
	dag.Version = adv.Version

	inst.OF = of
	inst.Mop = adv.Mop
	inst.Current = dag.Ref.Slot
	inst.DtsnOut = state.LollipopInit

	inst.MaxRankInc = adv.MaxRankInc
	inst.MinHopRankInc = adv.MinHopRankInc
	inst.DioIntDoublings = adv.IntervalDoublings
	inst.DioIntMin = adv.IntervalMin
	inst.DioIntCurrent = inst.DioIntMin + inst.DioIntDoublings
	inst.DioRedundancy = adv.Redundancy
	inst.DefaultLifetime = adv.DefaultLifetime
	inst.LifetimeUnit = adv.LifetimeUnit

	dag.Id = adv.DagId
	dag.Prefix = adv.Prefix

	e.setPreferred(dag, id)
	p := e.Parents.Get(id)
	inst.OF.UpdateMetricContainer(inst, p)
	dag.Rank = inst.OF.CalculateRank(inst, p, 0)
	// the lowest rank we know of so far
	dag.MinRank = dag.Rank

	if e.Default == nil {
		e.Default = inst
	}

	e.Host.Log(JoinedInstance, "joined dag", "instance", inst.Id, "dag", dag.Id, "rank", dag.Rank, "parent", from)

	e.Host.ResetAdvertTimer(inst)
	e.setDefaultRoute(inst, from)

	if inst.Mop != state.MopNoDownwardRoutes {
		e.Host.ScheduleRouteRegistration(inst)
	}
}

// addDag adds a DAG announced by adv to an instance we already belong to.
func (e *Engine) addDag(from netip.Addr, adv *state.Advertisement) {
	dag := e.allocDag(adv.InstanceId, adv.DagId)
	if dag == nil {
		return
	}
	inst := e.instanceOf(dag)

	var id state.ParentId
	if prev := e.findParentDag(inst, from); prev == nil {
		id = e.addParent(dag, adv, from)
		if id == state.NoParent {
			dag.Used = false
			return
		}
	} else {
		id = e.findParent(prev, from)
		e.moveParent(prev, dag, id)
		e.Parents.Get(id).Rank = adv.Rank
	}

	if adv.Ocp != inst.OF.Ocp() ||
		adv.Mop != inst.Mop ||
		adv.MaxRankInc != inst.MaxRankInc ||
		adv.MinHopRankInc != inst.MinHopRankInc ||
		adv.IntervalDoublings != inst.DioIntDoublings ||
		adv.IntervalMin != inst.DioIntMin ||
		adv.Redundancy != inst.DioRedundancy ||
		adv.DefaultLifetime != inst.DefaultLifetime ||
		adv.LifetimeUnit != inst.LifetimeUnit {
		e.Host.Log(IncompatibleAdvertisement, "dag parameters conflict with the instance", "dag", adv.DagId, "from", from)
		e.removeParent(id)
		dag.Used = false
		return
	}

	dag.Grounded = adv.Grounded
	dag.Preference = adv.Preference
	dag.Version = adv.Version
	dag.Id = adv.DagId
	dag.Prefix = adv.Prefix

	e.setPreferred(dag, id)
	p := e.Parents.Get(id)
	dag.Rank = inst.OF.CalculateRank(inst, p, 0)
	dag.MinRank = dag.Rank

	e.Host.Log(AddedDag, "added dag to instance", "instance", inst.Id, "dag", dag.Id, "rank", dag.Rank)

	e.processParentEvent(inst, id)
	if p := e.Parents.Get(id); p != nil {
		p.Dtsn = adv.Dtsn
	}
}
