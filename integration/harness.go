//go:build integration

package integration

import (
	"fmt"
	"log/slog"
	"net/netip"
	"slices"
	"sync"
	"time"

	"github.com/encodeous/dodag/core"
	"github.com/encodeous/dodag/state"
)

type Signal chan bool

func NewSignal() Signal {
	return make(chan bool)
}
func (s Signal) Trigger() {
	select {
	case <-s:
	default:
		close(s)
	}
}
func (s Signal) Triggered() bool {
	select {
	case <-s:
		return true
	default:
		return false
	}
}
func (s Signal) Wait() {
	<-s
}

var fastTiming = state.TimingCfg{
	DioIntervalMin:         5,
	DioIntervalDoublings:   3,
	DioRedundancy:          10,
	RankSweep:              50 * time.Millisecond,
	RouteRegistrationDelay: 40 * time.Millisecond,
}

type VirtualHarness struct {
	Cfg      state.ScenarioCfg
	Mesh     *core.Mesh
	LogLevel slog.Level

	mu        sync.Mutex
	observers []func(core.TraceEvent)
}

func NewHarness() *VirtualHarness {
	return &VirtualHarness{
		Cfg:      state.ScenarioCfg{Timing: fastTiming},
		LogLevel: slog.LevelWarn,
	}
}

func (v *VirtualHarness) NewNode(id state.NodeId) {
	v.Cfg.Nodes = append(v.Cfg.Nodes, state.NodeCfg{Id: id})
}

func (v *VirtualHarness) NewRoot(id state.NodeId, instance state.InstanceId, prefix string) {
	pfx := netip.MustParsePrefix(prefix)
	idx := len(v.Cfg.Nodes)
	v.Cfg.Nodes = append(v.Cfg.Nodes, state.NodeCfg{
		Id: id,
		Root: &state.RootCfg{
			Instance: instance,
			DagId:    state.DerivedLinkAddr(idx).AddrFromPrefix(pfx),
			Prefix:   pfx,
		},
	})
}

func (v *VirtualHarness) AddLink(from, to state.NodeId, link core.Link) {
	v.Cfg.Links = append(v.Cfg.Links, state.LinkCfg{From: from, To: to, Etx: link.Etx, Loss: link.Loss})
}

// OnEvent registers fn for engine events raised once the harness starts.
func (v *VirtualHarness) OnEvent(fn func(core.TraceEvent)) {
	v.observers = append(v.observers, fn)
}

func (v *VirtualHarness) Start() error {
	state.ExpandScenario(&v.Cfg)
	err := state.ScenarioValidator(&v.Cfg, nil)
	if err != nil {
		return err
	}
	mesh, err := core.NewMesh(&v.Cfg, v.LogLevel)
	if err != nil {
		return err
	}
	v.Mesh = mesh
	for _, fn := range v.observers {
		mesh.Trace(func(ev core.TraceEvent) {
			v.mu.Lock()
			defer v.mu.Unlock()
			fn(ev)
		})
	}
	mesh.Start()
	return nil
}

func (v *VirtualHarness) Stop() {
	println("Stopping VirtualHarness")
	if v.Mesh != nil {
		v.Mesh.Stop()
	}
	println("Stopped VirtualHarness")
}

func (v *VirtualHarness) Snapshots() map[state.NodeId]core.NodeSnapshot {
	res := make(map[state.NodeId]core.NodeSnapshot)
	snapshots, err := v.Mesh.Snapshots()
	if err != nil {
		return res
	}
	for _, ns := range snapshots {
		res[ns.Id] = ns
	}
	return res
}

// Parent returns the node that id currently prefers in instance, or "".
func (v *VirtualHarness) Parent(snapshots map[state.NodeId]core.NodeSnapshot, id state.NodeId, instance state.InstanceId) state.NodeId {
	dag, ok := snapshots[id].CurrentDag(instance)
	if !ok || !dag.HasPreferred {
		return ""
	}
	return v.nodeByLinkAddr(dag.Preferred)
}

func (v *VirtualHarness) nodeByLinkAddr(ll state.LinkAddr) state.NodeId {
	idx := slices.IndexFunc(v.Cfg.Nodes, func(n state.NodeCfg) bool {
		return n.LinkAddr == ll
	})
	if idx == -1 {
		return ""
	}
	return v.Cfg.Nodes[idx].Id
}

// Trace forwards a packet from src to dst hop by hop over the routes of the snapshots,
// returning the nodes visited. Downward routes win over the default route.
func (v *VirtualHarness) Trace(snapshots map[state.NodeId]core.NodeSnapshot, src state.NodeId, dst netip.Addr) ([]state.NodeId, error) {
	path := []state.NodeId{src}
	cur := src
	for range len(v.Cfg.Nodes) + 1 {
		ns, ok := snapshots[cur]
		if !ok {
			return path, fmt.Errorf("no state for %s", cur)
		}
		for _, addr := range ns.Addrs {
			if addr.Addr() == dst {
				return path, nil
			}
		}
		var next netip.Addr
		bits := -1
		for _, r := range ns.Routes {
			if r.Prefix.Contains(dst) && r.Prefix.Bits() > bits {
				next, bits = r.Nexthop, r.Prefix.Bits()
			}
		}
		if !next.IsValid() && len(ns.DefaultRoutes) != 0 {
			next = ns.DefaultRoutes[0]
		}
		if !next.IsValid() {
			return path, fmt.Errorf("%s has no route to %s", cur, dst)
		}
		cur = v.nodeByLinkAddr(state.LinkAddrFromAddr(next))
		if cur == "" {
			return path, fmt.Errorf("next hop %s is not a node", next)
		}
		path = append(path, cur)
	}
	return path, fmt.Errorf("routing loop: %v", path)
}

// Addr is the address id autoconfigures from prefix.
func (v *VirtualHarness) Addr(id state.NodeId, prefix string) netip.Addr {
	return v.Cfg.Node(id).LinkAddr.AddrFromPrefix(netip.MustParsePrefix(prefix))
}

// WaitFor polls the state of the mesh until cond holds, returning false on timeout.
func (v *VirtualHarness) WaitFor(timeout time.Duration, cond func(map[state.NodeId]core.NodeSnapshot) bool) bool {
	deadline := time.After(timeout)
	for {
		if cond(v.Snapshots()) {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(20 * time.Millisecond):
		}
	}
}
