package netstack

import (
	"net/netip"
	"slices"
	"time"

	"github.com/encodeous/dodag/state"
)

// RouteEntry is a downward route learned from a route registration.
type RouteEntry struct {
	Prefix  netip.Prefix
	Nexthop netip.Addr
	Dag     state.DagRef
	Expires time.Time
}

// AddRoute installs or replaces the route for prefix. Returns false if the table is full.
func (s *Stack) AddRoute(prefix netip.Prefix, nexthop netip.Addr, dag state.DagRef, lifetime time.Duration) bool {
	prefix = prefix.Masked()
	if _, exists := s.routes.Get(prefix); !exists && s.routes.Size() >= s.MaxRoutes {
		return false
	}
	entry := RouteEntry{
		Prefix:  prefix,
		Nexthop: nexthop,
		Dag:     dag,
	}
	if lifetime > 0 {
		entry.Expires = s.now().Add(lifetime)
	}
	s.routes.Insert(prefix, entry)
	return true
}

// RemoveRoute drops the route for prefix if it goes through nexthop.
func (s *Stack) RemoveRoute(prefix netip.Prefix, nexthop netip.Addr) bool {
	prefix = prefix.Masked()
	r, ok := s.routes.Get(prefix)
	if !ok || r.Nexthop != nexthop {
		return false
	}
	s.routes.Delete(prefix)
	return true
}

// RemoveRoutes drops every route learned through dag.
func (s *Stack) RemoveRoutes(dag state.DagRef) {
	s.removeIf(func(r RouteEntry) bool {
		return r.Dag == dag
	})
}

// RemoveRoutesByNexthop drops the routes of dag that go through nexthop.
func (s *Stack) RemoveRoutesByNexthop(nexthop netip.Addr, dag state.DagRef) {
	s.removeIf(func(r RouteEntry) bool {
		return r.Dag == dag && r.Nexthop == nexthop
	})
}

func (s *Stack) removeIf(pred func(RouteEntry) bool) {
	drop := make([]netip.Prefix, 0)
	for pfx, r := range s.routes.All() {
		if pred(r) {
			drop = append(drop, pfx)
		}
	}
	for _, pfx := range drop {
		s.routes.Delete(pfx)
	}
}

// Routes returns the downward routes of dag, sorted by prefix.
func (s *Stack) Routes(dag state.DagRef) []RouteEntry {
	res := make([]RouteEntry, 0)
	for _, r := range s.routes.All() {
		if r.Dag == dag {
			res = append(res, r)
		}
	}
	slices.SortFunc(res, func(a, b RouteEntry) int {
		return a.Prefix.Addr().Compare(b.Prefix.Addr())
	})
	return res
}

func (s *Stack) RouteCount() int {
	return s.routes.Size()
}
