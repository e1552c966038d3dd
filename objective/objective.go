// Package objective implements the objective functions that turn parent advertisements
// into ranks and break ties between parents and DAGs.
package objective

import (
	"slices"

	"github.com/encodeous/dodag/state"
)

const (
	OcpOF0   = uint16(0)
	OcpMRHOF = uint16(1)
)

// Registry resolves objective functions by their objective code point.
type Registry struct {
	fns map[uint16]state.ObjectiveFunction
}

func NewRegistry(fns ...state.ObjectiveFunction) *Registry {
	r := &Registry{fns: make(map[uint16]state.ObjectiveFunction)}
	for _, fn := range fns {
		r.Register(fn)
	}
	return r
}

// Default returns a registry holding OF0 and MRHOF with the ETX metric.
func Default() *Registry {
	return NewRegistry(&OF0{}, &MRHOF{Metric: state.McEtx})
}

// Register adds fn, replacing any function with the same code point.
func (r *Registry) Register(fn state.ObjectiveFunction) {
	r.fns[fn.Ocp()] = fn
}

func (r *Registry) Lookup(ocp uint16) (state.ObjectiveFunction, bool) {
	fn, ok := r.fns[ocp]
	return fn, ok
}

func (r *Registry) Supported(ocp uint16) bool {
	_, ok := r.fns[ocp]
	return ok
}

func (r *Registry) Ocps() []uint16 {
	res := make([]uint16, 0, len(r.fns))
	for ocp := range r.fns {
		res = append(res, ocp)
	}
	slices.Sort(res)
	return res
}

// bestDag prefers grounded DAGs, then higher preference, then lower rank.
func bestDag(d1, d2 *state.Dag) *state.Dag {
	if d1.Grounded != d2.Grounded {
		if d1.Grounded {
			return d1
		}
		return d2
	}
	if d1.Preference != d2.Preference {
		if d1.Preference > d2.Preference {
			return d1
		}
		return d2
	}
	if d1.Rank < d2.Rank {
		return d1
	}
	return d2
}

// withHysteresis keeps the preferred parent unless the other one is better by at least minDiff.
func withHysteresis(p1, p2 *state.Parent, m1, m2, minDiff uint32) *state.Parent {
	preferred := p1
	if p2.Role == state.RolePreferred {
		preferred = p2
	}
	if p1.Role == state.RolePreferred || p2.Role == state.RolePreferred {
		if m1 < m2+minDiff && m1+minDiff > m2 {
			return preferred
		}
	}
	if m1 < m2 {
		return p1
	}
	return p2
}

func saturate(base, inc uint32) state.Rank {
	if base+inc >= uint32(state.InfiniteRank) {
		return state.InfiniteRank
	}
	return state.Rank(base + inc)
}
