package core

// This file makes references to RFC 6550:
// https://datatracker.ietf.org/doc/html/rfc6550

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/encodeous/dodag/objective"
	"github.com/encodeous/dodag/perf"
	"github.com/encodeous/dodag/state"
)

type EngineEvent int

// trace events

const (
	JoinedInstance EngineEvent = iota
	AddedDag
	BecameRoot
	RootRepair
	ParentAdded
	ParentMoved
	ParentNullified
	ParentRemoved
	ParentSwitch
	DagSwitch
	RankChanged
	PrefixChanged
	GlobalRepair
	LocalRepair
	InstanceFreed
	DagFreed
)

// warn events

const (
	ResourceExhausted EngineEvent = iota + 1000
	IncompatibleAdvertisement
	UnacceptableRank
	NoViableTopology
	InconsistentVersion
	UnknownNeighbour
)

func (e EngineEvent) String() string {
	switch e {
	case JoinedInstance:
		return "JoinedInstance"
	case AddedDag:
		return "AddedDag"
	case BecameRoot:
		return "BecameRoot"
	case RootRepair:
		return "RootRepair"
	case ParentAdded:
		return "ParentAdded"
	case ParentMoved:
		return "ParentMoved"
	case ParentNullified:
		return "ParentNullified"
	case ParentRemoved:
		return "ParentRemoved"
	case ParentSwitch:
		return "ParentSwitch"
	case DagSwitch:
		return "DagSwitch"
	case RankChanged:
		return "RankChanged"
	case PrefixChanged:
		return "PrefixChanged"
	case GlobalRepair:
		return "GlobalRepair"
	case LocalRepair:
		return "LocalRepair"
	case InstanceFreed:
		return "InstanceFreed"
	case DagFreed:
		return "DagFreed"
	case ResourceExhausted:
		return "ResourceExhausted"
	case IncompatibleAdvertisement:
		return "IncompatibleAdvertisement"
	case UnacceptableRank:
		return "UnacceptableRank"
	case NoViableTopology:
		return "NoViableTopology"
	case InconsistentVersion:
		return "InconsistentVersion"
	case UnknownNeighbour:
		return "UnknownNeighbour"
	}
	return fmt.Sprintf("EngineEvent(%d)", int(e))
}

// Warn reports whether the event signals a failure rather than normal progress.
func (e EngineEvent) Warn() bool {
	return e >= ResourceExhausted
}

// Host is everything the engine needs from the rest of the node. All calls are made on the
// goroutine that drives the engine.
type Host interface {
	AddAutoconfAddr(prefix state.PrefixInfo)
	RemoveAutoconfAddr(prefix state.PrefixInfo)
	// AddDefaultRoute installs a default route, returning false if the route table is full.
	AddDefaultRoute(nexthop netip.Addr, lifetime time.Duration) bool
	RemoveDefaultRoute(nexthop netip.Addr)
	// RefreshDefaultRoute extends the lifetime of an installed default route.
	RefreshDefaultRoute(nexthop netip.Addr, lifetime time.Duration)
	// RemoveRoutes drops the downward routes learned through dag.
	RemoveRoutes(dag state.DagRef)
	RemoveRoutesByNexthop(nexthop netip.Addr, dag state.DagRef)
	// LinkAddrFor resolves a neighbour's link-layer address.
	LinkAddrFor(addr netip.Addr) (state.LinkAddr, bool)
	IPFor(ll state.LinkAddr) netip.Addr

	// SendNoPath immediately withdraws our downward routes from a former parent.
	SendNoPath(parent netip.Addr, inst *state.Instance)
	// ScheduleRouteRegistration arranges for a route registration to be sent to the
	// preferred parent of inst.
	ScheduleRouteRegistration(inst *state.Instance)

	// ResetAdvertTimer restarts advertisement for inst at its minimum interval.
	ResetAdvertTimer(inst *state.Instance)
	StopTimers(inst *state.Instance)

	Log(event EngineEvent, desc string, args ...any)
}

type Stats struct {
	MemOverflows   int
	LocalRepairs   int
	GlobalRepairs  int
	ParentSwitches int
}

// Engine maintains this node's view of every instance it takes part in. It is not safe for
// concurrent use; every entry point must run to completion before the next one starts.
type Engine struct {
	Host       Host
	Repo       *state.Repository
	Parents    *state.ParentTable
	Objectives *objective.Registry
	// Root holds the parameters announced when this node becomes a root.
	Root state.RootParams
	// Mop is the only mode of operation accepted from advertisements.
	Mop state.Mop
	// Default is the first instance joined or rooted, or nil.
	Default *state.Instance
	Stats   Stats
	Now     func() time.Time
}

func NewEngine(host Host, objectives *objective.Registry) *Engine {
	e := &Engine{
		Host:       host,
		Repo:       state.NewRepository(),
		Parents:    state.NewParentTable(state.MaxParents),
		Objectives: objectives,
		Root:       state.DefaultRootParams(),
		Mop:        state.DefaultMop,
		Now:        time.Now,
	}
	e.Parents.OnEvict(e.evictParent)
	return e
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Engine) memOverflow(what string) {
	e.Stats.MemOverflows++
	perf.MemOverflows.Add(1)
	e.Host.Log(ResourceExhausted, "table is full", "table", what)
}

func (e *Engine) instanceOf(dag *state.Dag) *state.Instance {
	return e.Repo.InstanceOf(dag.Ref)
}

// GetInstance returns the live instance with the given id, or nil.
func (e *Engine) GetInstance(id state.InstanceId) *state.Instance {
	return e.Repo.Instance(id)
}

// GetAnyDag returns the active DAG of the first instance that has joined one.
func (e *Engine) GetAnyDag() *state.Dag {
	for inst := range e.Repo.All() {
		if dag := inst.CurrentDag(); dag != nil && dag.Joined {
			return dag
		}
	}
	return nil
}

// Parent returns the registry entry for id, or nil.
func (e *Engine) Parent(id state.ParentId) *state.Parent {
	return e.Parents.Get(id)
}

// ParentRank returns the rank advertised by the neighbour, or 0 if it is not a parent.
func (e *Engine) ParentRank(ll state.LinkAddr) state.Rank {
	if p := e.Parents.Get(e.Parents.Lookup(ll)); p != nil {
		return p.Rank
	}
	return 0
}

// ParentLinkMetric returns the link metric towards the neighbour, or 0 if it is not a parent.
func (e *Engine) ParentLinkMetric(ll state.LinkAddr) uint16 {
	if p := e.Parents.Get(e.Parents.Lookup(ll)); p != nil {
		return p.LinkMetric
	}
	return 0
}

// ParentAddr returns the IP address of a parent.
func (e *Engine) ParentAddr(id state.ParentId) netip.Addr {
	p := e.Parents.Get(id)
	if p == nil {
		return netip.Addr{}
	}
	return e.Host.IPFor(p.Addr)
}
