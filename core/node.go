package core

import (
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/encodeous/dodag/netstack"
	"github.com/encodeous/dodag/objective"
	"github.com/encodeous/dodag/perf"
	"github.com/encodeous/dodag/state"
	"github.com/jellydator/ttlcache/v3"
)

// Node hosts the engine of one simulated node: it owns the address/route layer, drives
// the advertisement timers and moves frames over the Medium.
type Node struct {
	*Engine
	Stack *netstack.Stack

	env     *state.Env
	log     *slog.Logger
	medium  *Medium
	trace   *Trace
	trickle map[state.InstanceId]*trickleTimer
	// pending holds the route registrations that are scheduled but not sent yet
	pending *ttlcache.Cache[state.InstanceId, *time.Timer]
}

func (n *Node) Init(s *state.State) error {
	medium, ok := s.AuxConfig["medium"].(*Medium)
	if !ok {
		return fmt.Errorf("node %s has no medium", s.Id)
	}
	n.env = s.Env
	n.log = s.Log
	n.medium = medium
	if trace, ok := s.Modules[moduleName(&Trace{})].(*Trace); ok {
		n.trace = trace
	}
	n.Stack = netstack.New(s.LinkAddr)
	n.Engine = NewEngine(n, objective.Default())
	s.Timing.Apply(&n.Root)
	n.trickle = make(map[state.InstanceId]*trickleTimer)
	dedup := s.Timing.RegistrationDelay()*3/2 + state.RouteRegistrationDedupTTL
	n.pending = ttlcache.New[state.InstanceId, *time.Timer](
		ttlcache.WithTTL[state.InstanceId, *time.Timer](dedup),
		ttlcache.WithDisableTouchOnHit[state.InstanceId, *time.Timer](),
	)

	n.medium.Attach(s.LinkAddr, s.Env, n.receive)

	if s.Root != nil {
		n.Root.Ocp = s.Root.Objective()
		root := *s.Root
		s.Dispatch(func(s *state.State) error {
			return n.becomeRoot(root)
		})
	} else {
		s.Dispatch(func(s *state.State) error {
			n.solicit()
			return nil
		})
	}
	s.RepeatTask(n.sweep, s.Timing.RankSweepPeriod())
	return nil
}

func (n *Node) Cleanup(s *state.State) error {
	n.medium.Detach(s.LinkAddr)
	for _, t := range n.trickle {
		t.stop()
	}
	for _, item := range n.pending.Items() {
		item.Value().Stop()
	}
	n.pending.DeleteAll()
	return nil
}

func (n *Node) becomeRoot(cfg state.RootCfg) error {
	dag := n.SetRoot(cfg.Instance, cfg.DagId)
	if dag == nil {
		return fmt.Errorf("failed to become root of %s in instance %d", cfg.DagId, cfg.Instance)
	}
	if cfg.Prefix.IsValid() && !n.SetPrefix(dag, cfg.Prefix) {
		return fmt.Errorf("invalid prefix %s", cfg.Prefix)
	}
	return nil
}

// sweep re-evaluates parents whose link metric changed, probes preferred parents and
// expires stale routes.
func (n *Node) sweep(s *state.State) error {
	n.RecalculateRanks()
	n.probe()
	n.Stack.Expire()
	return nil
}

// probe sends a unicast solicitation to the preferred parent of every joined instance so
// that link feedback keeps flowing without other unicast traffic.
func (n *Node) probe() {
	for inst := range n.Repo.All() {
		dag := inst.CurrentDag()
		if dag == nil || !dag.Joined {
			continue
		}
		p := n.Parent(dag.Preferred)
		if p == nil {
			continue
		}
		delivered, numTx := n.medium.Unicast(Frame{
			Kind: FrameSolicitation,
			Src:  n.Stack.LinkAddr,
			Dst:  p.Addr,
		})
		n.LinkFeedback(p.Addr, delivered, numTx)
	}
}

func (n *Node) receive(s *state.State, f Frame) error {
	from := f.Src.LinkLocal()
	n.Stack.Learn(from, f.Src)
	switch f.Kind {
	case FrameAdvertisement:
		if f.Advertisement == nil {
			return nil
		}
		perf.AdvertsReceived.Add(1)
		n.ProcessAdvertisement(from, f.Advertisement)
	case FrameSolicitation:
		// a unicast solicitation is answered directly and leaves the trickle timer alone
		// (RFC 6550 8.3)
		unicast := f.Dst != (state.LinkAddr{})
		for inst := range n.Repo.All() {
			dag := inst.CurrentDag()
			if dag == nil || !dag.Joined {
				continue
			}
			if unicast {
				n.sendAdvertisementTo(inst, f.Src)
			} else {
				n.ResetAdvertTimer(inst)
			}
		}
	case FrameRegistration:
		if f.Registration == nil {
			return nil
		}
		n.handleRegistration(from, f.Registration)
	}
	return nil
}

func (n *Node) solicit() {
	n.medium.Broadcast(Frame{
		Kind: FrameSolicitation,
		Src:  n.Stack.LinkAddr,
	})
}

func (n *Node) sendAdvertisement(inst *state.Instance) {
	adv, ok := n.BuildAdvertisement(inst)
	if !ok {
		return
	}
	perf.AdvertsSent.Add(1)
	n.medium.Broadcast(Frame{
		Kind:          FrameAdvertisement,
		Src:           n.Stack.LinkAddr,
		Advertisement: &adv,
	})
}

func (n *Node) sendAdvertisementTo(inst *state.Instance, dst state.LinkAddr) {
	adv, ok := n.BuildAdvertisement(inst)
	if !ok {
		return
	}
	perf.AdvertsSent.Add(1)
	n.medium.Unicast(Frame{
		Kind:          FrameAdvertisement,
		Src:           n.Stack.LinkAddr,
		Dst:           dst,
		Advertisement: &adv,
	})
}

// Host

func (n *Node) AddAutoconfAddr(prefix state.PrefixInfo) {
	addr := n.Stack.AddAddr(prefix.Prefix)
	n.log.Debug("configured address", "addr", addr, "prefix", prefix.Prefix)
}

func (n *Node) RemoveAutoconfAddr(prefix state.PrefixInfo) {
	n.Stack.RemoveAddr(prefix.Prefix)
	n.log.Debug("removed address", "prefix", prefix.Prefix)
}

func (n *Node) AddDefaultRoute(nexthop netip.Addr, lifetime time.Duration) bool {
	return n.Stack.AddDefaultRoute(nexthop, lifetime)
}

func (n *Node) RemoveDefaultRoute(nexthop netip.Addr) {
	n.Stack.RemoveDefaultRoute(nexthop)
}

func (n *Node) RefreshDefaultRoute(nexthop netip.Addr, lifetime time.Duration) {
	n.Stack.RefreshDefaultRoute(nexthop, lifetime)
}

func (n *Node) RemoveRoutes(dag state.DagRef) {
	n.Stack.RemoveRoutes(dag)
}

func (n *Node) RemoveRoutesByNexthop(nexthop netip.Addr, dag state.DagRef) {
	n.Stack.RemoveRoutesByNexthop(nexthop, dag)
}

func (n *Node) LinkAddrFor(addr netip.Addr) (state.LinkAddr, bool) {
	return n.Stack.Resolve(addr)
}

func (n *Node) IPFor(ll state.LinkAddr) netip.Addr {
	return ll.LinkLocal()
}

func (n *Node) Log(event EngineEvent, desc string, args ...any) {
	msg := fmt.Sprintf("%s %s", event.String(), desc)
	if event.Warn() {
		n.log.Warn(msg, args...)
	} else {
		n.log.Debug(msg, args...)
	}
	if n.trace != nil {
		n.trace.Submit(TraceEvent{
			Node:  n.env.Id,
			Event: event,
			Desc:  desc,
			Args:  args,
		})
	}
}
