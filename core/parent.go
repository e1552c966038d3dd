package core

import (
	"net/netip"

	"github.com/encodeous/dodag/state"
)

func roleFor(dag *state.Dag, p *state.Parent) state.ParentRole {
	if p.Rank < dag.Rank {
		return state.RoleCandidate
	}
	return state.RoleNeighbour
}

// addParent registers the sender of adv as a parent in dag.
func (e *Engine) addParent(dag *state.Dag, adv *state.Advertisement, from netip.Addr) state.ParentId {
	ll, ok := e.Host.LinkAddrFor(from)
	if !ok {
		e.Host.Log(UnknownNeighbour, "advertisement from an unresolved neighbour", "from", from)
		return state.NoParent
	}
	// the registry holds one entry per neighbour, so detach it from any other dag first
	if old := e.Parents.Lookup(ll); old != state.NoParent {
		if p := e.Parents.Get(old); p.Dag != dag.Ref {
			if other := e.Repo.Dag(p.Dag); other != nil && other.Preferred == old {
				e.nullifyParent(old)
			}
		}
	}
	id := e.Parents.Add(ll)
	if id == state.NoParent {
		e.memOverflow("parent")
		return state.NoParent
	}
	p := e.Parents.Get(id)
	p.Dag = dag.Ref
	p.Rank = adv.Rank
	p.Dtsn = adv.Dtsn
	p.UpdateTime = e.now()
	p.Role = roleFor(dag, p)
	p.LinkMetric = state.InitLinkMetric * state.EtxDivisor
	p.MC = adv.MC
	e.Host.Log(ParentAdded, "new candidate parent", "parent", from, "rank", p.Rank)
	return id
}

// findParent returns the parent for from if it belongs to dag.
func (e *Engine) findParent(dag *state.Dag, from netip.Addr) state.ParentId {
	ll, ok := e.Host.LinkAddrFor(from)
	if !ok {
		return state.NoParent
	}
	id := e.Parents.Lookup(ll)
	if p := e.Parents.Get(id); p != nil && p.Dag == dag.Ref {
		return id
	}
	return state.NoParent
}

// findParentDag returns the DAG of inst the sender is currently a parent in.
func (e *Engine) findParentDag(inst *state.Instance, from netip.Addr) *state.Dag {
	ll, ok := e.Host.LinkAddrFor(from)
	if !ok {
		return nil
	}
	p := e.Parents.Get(e.Parents.Lookup(ll))
	if p == nil || p.Dag.Instance != inst.Slot {
		return nil
	}
	return e.Repo.Dag(p.Dag)
}

// setPreferred installs id as the preferred parent of dag. The preferred parent is kept
// locked so that the registry never evicts it.
func (e *Engine) setPreferred(dag *state.Dag, id state.ParentId) {
	if dag.Preferred == id {
		return
	}
	if old := e.Parents.Get(dag.Preferred); old != nil {
		old.Role = roleFor(dag, old)
	}
	e.Parents.Unlock(dag.Preferred)
	e.Parents.Lock(id)
	dag.Preferred = id
	if p := e.Parents.Get(id); p != nil {
		p.Role = state.RolePreferred
	}
}

// nullifyParent detaches a parent from its dag without forgetting it. If it was the
// preferred parent (or the dag has none), the dag loses its rank and default route.
func (e *Engine) nullifyParent(id state.ParentId) {
	p := e.Parents.Get(id)
	if p == nil {
		return
	}
	dag := e.Repo.Dag(p.Dag)
	if dag == nil {
		return
	}
	if dag.Preferred == id || dag.Preferred == state.NoParent {
		wasPreferred := dag.Preferred == id
		e.setPreferred(dag, state.NoParent)
		dag.Rank = state.InfiniteRank
		if dag.Joined {
			inst := e.instanceOf(dag)
			e.clearDefaultRoute(inst)
			if wasPreferred && inst.Mop != state.MopNoDownwardRoutes {
				e.Host.SendNoPath(e.Host.IPFor(p.Addr), inst)
			}
		}
	}
	e.Host.Log(ParentNullified, "nullified parent", "parent", p.Addr, "rank", p.Rank)
}

// removeParent nullifies a parent and drops it from the registry.
func (e *Engine) removeParent(id state.ParentId) {
	p := e.Parents.Get(id)
	if p == nil {
		return
	}
	e.nullifyParent(id)
	e.Host.Log(ParentRemoved, "removed parent", "parent", p.Addr)
	e.Parents.Remove(id)
}

// evictParent runs when the registry reclaims an entry to make room.
func (e *Engine) evictParent(id state.ParentId) {
	e.nullifyParent(id)
}

// moveParent re-owns a parent from src to dst, both in the same instance.
func (e *Engine) moveParent(src, dst *state.Dag, id state.ParentId) {
	p := e.Parents.Get(id)
	if src.Preferred == id {
		e.setPreferred(src, state.NoParent)
		src.Rank = state.InfiniteRank
		if src.Joined {
			e.clearDefaultRoute(e.instanceOf(src))
		}
	} else if src.Joined {
		e.Host.RemoveRoutesByNexthop(e.Host.IPFor(p.Addr), src.Ref)
	}
	p.Dag = dst.Ref
	p.Role = roleFor(dst, p)
	e.Host.Log(ParentMoved, "parent switched dag", "parent", p.Addr, "from", src.Id, "to", dst.Id)
}

// removeParents drops every parent of dag whose rank is at least minRank.
func (e *Engine) removeParents(dag *state.Dag, minRank state.Rank) {
	for id, p := range e.Parents.All() {
		if p.Dag == dag.Ref && p.Rank >= minRank {
			e.removeParent(id)
		}
	}
}

// nullifyParents detaches every parent of dag whose rank is at least minRank.
func (e *Engine) nullifyParents(dag *state.Dag, minRank state.Rank) {
	for id, p := range e.Parents.All() {
		if p.Dag == dag.Ref && p.Rank >= minRank {
			e.nullifyParent(id)
		}
	}
}
