// Package netstack is the in-memory address and route layer of a node: autoconfigured
// addresses, default routes, downward routes installed by route registrations and the
// neighbour cache.
package netstack

import (
	"net/netip"
	"slices"
	"time"

	"github.com/encodeous/dodag/state"
	"github.com/gaissmai/bart"
	"github.com/jellydator/ttlcache/v3"
)

const (
	DefaultMaxRoutes        = 64
	DefaultMaxDefaultRoutes = 4
	NeighbourTTL            = 10 * time.Minute
)

type Stack struct {
	LinkAddr state.LinkAddr
	// MaxRoutes bounds the downward route table, MaxDefaultRoutes the default route list.
	MaxRoutes        int
	MaxDefaultRoutes int
	Now              func() time.Time

	addrs      bart.Table[netip.Addr]
	routes     bart.Table[RouteEntry]
	defaults   *ttlcache.Cache[netip.Addr, time.Time]
	neighbours *ttlcache.Cache[netip.Addr, state.LinkAddr]
}

func New(ll state.LinkAddr) *Stack {
	return &Stack{
		LinkAddr:         ll,
		MaxRoutes:        DefaultMaxRoutes,
		MaxDefaultRoutes: DefaultMaxDefaultRoutes,
		Now:              time.Now,
		defaults: ttlcache.New[netip.Addr, time.Time](
			ttlcache.WithDisableTouchOnHit[netip.Addr, time.Time](),
		),
		neighbours: ttlcache.New[netip.Addr, state.LinkAddr](
			ttlcache.WithTTL[netip.Addr, state.LinkAddr](NeighbourTTL),
		),
	}
}

func (s *Stack) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// AddAddr configures the address formed from prefix and our link-layer address.
func (s *Stack) AddAddr(prefix netip.Prefix) netip.Addr {
	addr := s.LinkAddr.AddrFromPrefix(prefix)
	s.addrs.Insert(prefix.Masked(), addr)
	return addr
}

func (s *Stack) RemoveAddr(prefix netip.Prefix) {
	s.addrs.Delete(prefix.Masked())
}

// IsLocal reports whether addr is one of our addresses, link-local included.
func (s *Stack) IsLocal(addr netip.Addr) bool {
	if addr == s.LinkAddr.LinkLocal() {
		return true
	}
	own, ok := s.addrs.Lookup(addr)
	return ok && own == addr
}

// Addrs returns every autoconfigured address.
func (s *Stack) Addrs() []netip.Prefix {
	res := make([]netip.Prefix, 0)
	for pfx, addr := range s.addrs.All() {
		res = append(res, netip.PrefixFrom(addr, pfx.Bits()))
	}
	return res
}

// AddDefaultRoute installs a default route through nexthop, returning false if the list is
// full. A zero lifetime never expires.
func (s *Stack) AddDefaultRoute(nexthop netip.Addr, lifetime time.Duration) bool {
	s.defaults.DeleteExpired()
	if !s.defaults.Has(nexthop) && s.defaults.Len() >= s.MaxDefaultRoutes {
		return false
	}
	s.setDefault(nexthop, lifetime)
	return true
}

func (s *Stack) setDefault(nexthop netip.Addr, lifetime time.Duration) {
	if lifetime <= 0 {
		s.defaults.Set(nexthop, time.Time{}, ttlcache.NoTTL)
		return
	}
	s.defaults.Set(nexthop, s.now().Add(lifetime), lifetime)
}

func (s *Stack) RemoveDefaultRoute(nexthop netip.Addr) {
	s.defaults.Delete(nexthop)
}

// RefreshDefaultRoute restarts the lifetime of an installed default route.
func (s *Stack) RefreshDefaultRoute(nexthop netip.Addr, lifetime time.Duration) {
	if s.defaults.Has(nexthop) {
		s.setDefault(nexthop, lifetime)
	}
}

// DefaultRoutes returns the next hops of every live default route.
func (s *Stack) DefaultRoutes() []netip.Addr {
	s.defaults.DeleteExpired()
	res := s.defaults.Keys()
	slices.SortFunc(res, netip.Addr.Compare)
	return res
}

// Learn records that addr is reachable at ll.
func (s *Stack) Learn(addr netip.Addr, ll state.LinkAddr) {
	s.neighbours.Set(addr, ll, ttlcache.DefaultTTL)
}

// Resolve returns the link-layer address of a neighbour we heard from.
func (s *Stack) Resolve(addr netip.Addr) (state.LinkAddr, bool) {
	item := s.neighbours.Get(addr)
	if item == nil {
		return state.LinkAddr{}, false
	}
	return item.Value(), true
}

func (s *Stack) Forget(addr netip.Addr) {
	s.neighbours.Delete(addr)
}

// Expire drops routes whose lifetime ran out.
func (s *Stack) Expire() {
	s.defaults.DeleteExpired()
	s.neighbours.DeleteExpired()
	now := s.now()
	s.removeIf(func(r RouteEntry) bool {
		return !r.Expires.IsZero() && now.After(r.Expires)
	})
}

// NextHop resolves where a packet for dst goes: a downward route if one matches, otherwise
// the first default route. Local destinations resolve to themselves.
func (s *Stack) NextHop(dst netip.Addr) (netip.Addr, bool) {
	if s.IsLocal(dst) {
		return dst, true
	}
	if r, ok := s.routes.Lookup(dst); ok && (r.Expires.IsZero() || s.now().Before(r.Expires)) {
		return r.Nexthop, true
	}
	if defaults := s.DefaultRoutes(); len(defaults) != 0 {
		return defaults[0], true
	}
	return netip.Addr{}, false
}
