package core

import (
	"fmt"
	"net/netip"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/encodeous/dodag/objective"
	"github.com/encodeous/dodag/state"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

type HarnessEvent struct {
	Message string
	Args    []any
}

func MakeEvent(msg string, args ...any) HarnessEvent {
	return HarnessEvent{
		Message: msg,
		Args:    args,
	}
}

// EngineHarness is a Host that records everything the engine asks of it.
type EngineHarness struct {
	actions    []HarnessEvent
	unresolved map[netip.Addr]bool
	routesFull bool
}

func (h *EngineHarness) AddAutoconfAddr(prefix state.PrefixInfo) {
	h.actions = append(h.actions, MakeEvent("ADD_ADDR", prefix.Prefix))
}

func (h *EngineHarness) RemoveAutoconfAddr(prefix state.PrefixInfo) {
	h.actions = append(h.actions, MakeEvent("REMOVE_ADDR", prefix.Prefix))
}

func (h *EngineHarness) AddDefaultRoute(nexthop netip.Addr, lifetime time.Duration) bool {
	if h.routesFull {
		return false
	}
	h.actions = append(h.actions, MakeEvent("ADD_DEFAULT_ROUTE", nexthop))
	return true
}

func (h *EngineHarness) RemoveDefaultRoute(nexthop netip.Addr) {
	h.actions = append(h.actions, MakeEvent("REMOVE_DEFAULT_ROUTE", nexthop))
}

func (h *EngineHarness) RefreshDefaultRoute(nexthop netip.Addr, lifetime time.Duration) {
	h.actions = append(h.actions, MakeEvent("REFRESH_DEFAULT_ROUTE", nexthop))
}

func (h *EngineHarness) RemoveRoutes(dag state.DagRef) {
	h.actions = append(h.actions, MakeEvent("REMOVE_ROUTES", dag))
}

func (h *EngineHarness) RemoveRoutesByNexthop(nexthop netip.Addr, dag state.DagRef) {
	h.actions = append(h.actions, MakeEvent("REMOVE_ROUTES_BY_NEXTHOP", nexthop, dag))
}

func (h *EngineHarness) LinkAddrFor(addr netip.Addr) (state.LinkAddr, bool) {
	if h.unresolved[addr] {
		return state.LinkAddr{}, false
	}
	return state.LinkAddrFromAddr(addr), true
}

func (h *EngineHarness) IPFor(ll state.LinkAddr) netip.Addr {
	return ll.LinkLocal()
}

func (h *EngineHarness) SendNoPath(parent netip.Addr, inst *state.Instance) {
	h.actions = append(h.actions, MakeEvent("NO_PATH", parent, inst.Id))
}

func (h *EngineHarness) ScheduleRouteRegistration(inst *state.Instance) {
	h.actions = append(h.actions, MakeEvent("SCHEDULE_REGISTRATION", inst.Id))
}

func (h *EngineHarness) ResetAdvertTimer(inst *state.Instance) {
	h.actions = append(h.actions, MakeEvent("RESET_TIMER", inst.Id))
}

func (h *EngineHarness) StopTimers(inst *state.Instance) {
	h.actions = append(h.actions, MakeEvent("STOP_TIMERS", inst.Id))
}

func (h *EngineHarness) Log(event EngineEvent, desc string, args ...any) {
	x := make([]any, 0)
	x = append(x, event)
	x = append(x, desc)
	x = append(x, args...)
	h.actions = append(h.actions, MakeEvent("LOG", x...))
}

type HarnessEvents []HarnessEvent

func (h HarnessEvents) String() string {
	out := make([]string, 0)
	for _, action := range h {
		cur := action.Message
		for _, arg := range action.Args {
			cur += " " + fmt.Sprint(arg)
		}
		out = append(out, cur)
	}
	slices.Sort(out)
	return strings.Join(out, "\n")
}

// GetActions returns and clears everything recorded so far, logs excluded.
func (h *EngineHarness) GetActions() HarnessEvents {
	x := make([]HarnessEvent, 0)
	for _, action := range h.actions {
		if action.Message != "LOG" {
			x = append(x, action)
		}
	}
	h.actions = make([]HarnessEvent, 0)
	return x
}

// GetEvents returns the engine events logged so far without clearing them.
func (h *EngineHarness) GetEvents() []EngineEvent {
	x := make([]EngineEvent, 0)
	for _, action := range h.actions {
		if action.Message == "LOG" {
			x = append(x, action.Args[0].(EngineEvent))
		}
	}
	return x
}

func (e HarnessEvents) matches(event HarnessEvent, msg string, args ...any) bool {
	if event.Message != msg || len(event.Args) < len(args) {
		return false
	}
	for i, arg := range args {
		if !cmp.Equal(event.Args[i], arg, cmpopts.EquateComparable(netip.Addr{}, netip.Prefix{})) {
			return false
		}
	}
	return true
}

func (e HarnessEvents) Count(msg string, args ...any) int {
	n := 0
	for _, event := range e {
		if e.matches(event, msg, args...) {
			n++
		}
	}
	return n
}

func (e HarnessEvents) AssertContains(t *testing.T, msg string, args ...any) {
	t.Helper()
	if e.Count(msg, args...) > 0 {
		return
	}
	t.Fatal("Expected event not found: ", msg, " with args: ", args, " in ", e)
}

func (e HarnessEvents) AssertNotContains(t *testing.T, msg string, args ...any) {
	t.Helper()
	if e.Count(msg, args...) > 0 {
		t.Fatal("Unexpected event found: ", msg, " with args: ", args, " in ", e)
	}
}

var testDag = netip.MustParseAddr("fd00::1")

func neighbour(n byte) netip.Addr {
	return state.LinkAddr{0x02, 0, 0, 0, 0, 0, 0, n}.LinkLocal()
}

func linkAddr(n byte) state.LinkAddr {
	return state.LinkAddr{0x02, 0, 0, 0, 0, 0, 0, n}
}

// MakeAdvert returns an advertisement for instance 1, dag fd00::1 using OF0.
func MakeAdvert(rank state.Rank) *state.Advertisement {
	return &state.Advertisement{
		InstanceId:        1,
		DagId:             testDag,
		Version:           state.LollipopInit,
		Rank:              rank,
		Mop:               state.DefaultMop,
		Dtsn:              state.LollipopInit,
		Ocp:               objective.OcpOF0,
		IntervalDoublings: state.DioIntervalDoublings,
		IntervalMin:       state.DioIntervalMin,
		Redundancy:        state.DioRedundancy,
		MaxRankInc:        state.DefaultMaxRankInc,
		MinHopRankInc:     state.DefaultMinHopRankInc,
		DefaultLifetime:   state.DefaultLifetime,
		LifetimeUnit:      state.DefaultLifetimeUnit,
	}
}

func NewTestEngine() (*Engine, *EngineHarness) {
	h := &EngineHarness{unresolved: make(map[netip.Addr]bool)}
	e := NewEngine(h, objective.Default())
	e.Now = func() time.Time {
		return time.Unix(1000, 0)
	}
	return e, h
}

func (h *EngineHarness) Advertise(e *Engine, from byte, adv *state.Advertisement) {
	e.ProcessAdvertisement(neighbour(from), adv)
}

// preferredCount returns how many registry entries are flagged as preferred.
func preferredCount(e *Engine) int {
	n := 0
	for _, p := range e.Parents.All() {
		if p.Role == state.RolePreferred {
			n++
		}
	}
	return n
}

// recordingOF wraps an objective function and records the rank floor it observes.
type recordingOF struct {
	state.ObjectiveFunction
	resets   int
	minRanks []state.Rank
}

func (r *recordingOF) CalculateRank(inst *state.Instance, p *state.Parent, base state.Rank) state.Rank {
	if dag := inst.CurrentDag(); dag != nil {
		r.minRanks = append(r.minRanks, dag.MinRank)
	}
	return r.ObjectiveFunction.CalculateRank(inst, p, base)
}

func (r *recordingOF) Reset(dag *state.Dag) {
	r.resets++
	r.minRanks = nil
	r.ObjectiveFunction.Reset(dag)
}
