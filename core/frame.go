package core

import (
	"fmt"
	"net/netip"

	"github.com/encodeous/dodag/state"
)

type FrameKind uint8

const (
	// FrameAdvertisement carries a topology advertisement, broadcast to every neighbour.
	FrameAdvertisement FrameKind = iota
	// FrameSolicitation asks neighbours to advertise soon.
	FrameSolicitation
	// FrameRegistration carries a route registration to a parent.
	FrameRegistration
)

func (k FrameKind) String() string {
	switch k {
	case FrameAdvertisement:
		return "advertisement"
	case FrameSolicitation:
		return "solicitation"
	case FrameRegistration:
		return "registration"
	}
	return fmt.Sprintf("frame(%d)", uint8(k))
}

// Frame is a link-layer frame exchanged over the Medium. Dst is ignored for broadcasts.
type Frame struct {
	Kind          FrameKind
	Src           state.LinkAddr
	Dst           state.LinkAddr
	Advertisement *state.Advertisement
	Registration  *Registration
}

// Registration announces the destinations reachable through its sender (RFC 6550 9).
// A zero lifetime withdraws them.
type Registration struct {
	Instance state.InstanceId
	DagId    netip.Addr
	Lifetime uint8
	Targets  []netip.Prefix
}

func (r *Registration) NoPath() bool {
	return r.Lifetime == state.ZeroLifetime
}
