package core

import (
	"math/rand/v2"
	"net/netip"

	"github.com/encodeous/dodag/perf"
	"github.com/encodeous/dodag/state"
	"github.com/jellydator/ttlcache/v3"
)

// ScheduleRouteRegistration sends a route registration to the preferred parent of inst
// after a randomized delay. Requests made while one is pending are merged into it.
func (n *Node) ScheduleRouteRegistration(inst *state.Instance) {
	if n.pending.Has(inst.Id) {
		return
	}
	delay := n.env.Timing.RegistrationDelay()
	// uniformly in [delay/2, delay*3/2)
	jittered := delay / 2
	if delay > 0 {
		jittered += rand.N(delay)
	}
	id := inst.Id
	timer := n.env.ScheduleTask(func(s *state.State) error {
		if !n.pending.Has(id) {
			return nil
		}
		n.pending.Delete(id)
		inst := n.GetInstance(id)
		if inst == nil {
			return nil
		}
		dag := inst.CurrentDag()
		if dag == nil || !dag.Joined {
			return nil
		}
		if parent := n.ParentAddr(dag.Preferred); parent.IsValid() {
			n.sendRegistration(inst, parent, state.RouteRegistrationLifetime, n.registrationTargets(inst))
		}
		return nil
	}, jittered)
	n.pending.Set(id, timer, ttlcache.DefaultTTL)
}

// SendNoPath withdraws every destination we registered through parent.
func (n *Node) SendNoPath(parent netip.Addr, inst *state.Instance) {
	n.sendRegistration(inst, parent, state.ZeroLifetime, n.registrationTargets(inst))
}

// registrationTargets lists our own addresses and every destination registered with us.
func (n *Node) registrationTargets(inst *state.Instance) []netip.Prefix {
	targets := make([]netip.Prefix, 0)
	for _, addr := range n.Stack.Addrs() {
		targets = append(targets, netip.PrefixFrom(addr.Addr(), addr.Addr().BitLen()))
	}
	if dag := inst.CurrentDag(); dag != nil {
		for _, r := range n.Stack.Routes(dag.Ref) {
			targets = append(targets, r.Prefix)
		}
	}
	return targets
}

func (n *Node) sendRegistration(inst *state.Instance, parent netip.Addr, lifetime uint8, targets []netip.Prefix) {
	dag := inst.CurrentDag()
	if dag == nil || len(targets) == 0 {
		return
	}
	ll, ok := n.Stack.Resolve(parent)
	if !ok {
		ll = state.LinkAddrFromAddr(parent)
	}
	delivered, numTx := n.medium.Unicast(Frame{
		Kind: FrameRegistration,
		Src:  n.Stack.LinkAddr,
		Dst:  ll,
		Registration: &Registration{
			Instance: inst.Id,
			DagId:    dag.Id,
			Lifetime: lifetime,
			Targets:  targets,
		},
	})
	perf.RegistrationsSent.Add(1)
	n.LinkFeedback(ll, delivered, numTx)
	n.log.Debug("sent route registration", "parent", parent, "targets", len(targets), "lifetime", lifetime, "delivered", delivered)
}

// handleRegistration installs or withdraws downward routes announced by a child. In
// storing mode new routes are registered further up, and withdrawals are forwarded at once.
func (n *Node) handleRegistration(from netip.Addr, reg *Registration) {
	inst := n.GetInstance(reg.Instance)
	if inst == nil || inst.Mop == state.MopNoDownwardRoutes {
		return
	}
	dag := inst.CurrentDag()
	if dag == nil || !dag.Joined || dag.Id != reg.DagId {
		n.log.Debug("dropping registration for a dag we are not part of", "dag", reg.DagId, "from", from)
		return
	}
	if p := n.Parent(dag.Preferred); p != nil && n.IPFor(p.Addr) == from {
		n.log.Warn("registration from our preferred parent, loop detected", "from", from)
		return
	}

	changed := false
	for _, target := range reg.Targets {
		if reg.NoPath() {
			changed = n.Stack.RemoveRoute(target, from) || changed
		} else if n.Stack.AddRoute(target, from, dag.Ref, inst.Lifetime(reg.Lifetime)) {
			changed = true
		} else {
			n.memOverflow("route")
		}
	}
	if dag.Rank == inst.RootRank() || !changed {
		return
	}
	if reg.NoPath() {
		if parent := n.ParentAddr(dag.Preferred); parent.IsValid() {
			n.sendRegistration(inst, parent, state.ZeroLifetime, reg.Targets)
		}
		return
	}
	n.ScheduleRouteRegistration(inst)
}
