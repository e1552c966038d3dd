package state

import (
	"encoding/hex"
	"fmt"
	"net/netip"
	"strings"
	"time"
)

type InstanceId uint8

// Mop is the mode of operation of an instance.
type Mop uint8

const (
	MopNoDownwardRoutes Mop = iota
	MopNonStoring
	MopStoringNoMulticast
	MopStoringMulticast
)

func (m Mop) String() string {
	switch m {
	case MopNoDownwardRoutes:
		return "no-downward"
	case MopNonStoring:
		return "non-storing"
	case MopStoringNoMulticast:
		return "storing"
	case MopStoringMulticast:
		return "storing-multicast"
	}
	return fmt.Sprintf("mop(%d)", uint8(m))
}

// LinkAddr is the link-layer address of a neighbour.
type LinkAddr [8]byte

func (l LinkAddr) String() string {
	return fmt.Sprintf("%02x%02x:%02x%02x:%02x%02x:%02x%02x", l[0], l[1], l[2], l[3], l[4], l[5], l[6], l[7])
}

// ParseLinkAddr parses an address written as 16 hex digits, optionally grouped with ':'.
func ParseLinkAddr(s string) (LinkAddr, error) {
	var l LinkAddr
	b, err := hex.DecodeString(strings.ReplaceAll(s, ":", ""))
	if err != nil {
		return l, fmt.Errorf("invalid link address %q: %w", s, err)
	}
	if len(b) != len(l) {
		return l, fmt.Errorf("invalid link address %q: expected %d bytes, got %d", s, len(l), len(b))
	}
	copy(l[:], b)
	return l, nil
}

func (l LinkAddr) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *LinkAddr) UnmarshalText(text []byte) error {
	v, err := ParseLinkAddr(string(text))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// LinkLocal returns the link-local address derived from l.
func (l LinkAddr) LinkLocal() netip.Addr {
	var b [16]byte
	b[0], b[1] = 0xfe, 0x80
	copy(b[8:], l[:])
	return netip.AddrFrom16(b)
}

// LinkAddrFromAddr extracts the interface identifier of an IPv6 address.
func LinkAddrFromAddr(addr netip.Addr) LinkAddr {
	var l LinkAddr
	b := addr.As16()
	copy(l[:], b[8:])
	return l
}

// AddrFromPrefix combines the network part of prefix with the interface identifier of l.
func (l LinkAddr) AddrFromPrefix(prefix netip.Prefix) netip.Addr {
	b := prefix.Masked().Addr().As16()
	copy(b[8:], l[:])
	return netip.AddrFrom16(b)
}

const PrefixFlagAutonomous = 0x40

// PrefixInfo is the prefix announced by a DAG root for address autoconfiguration.
type PrefixInfo struct {
	Prefix   netip.Prefix
	Flags    uint8
	Lifetime uint32
}

// Len returns the prefix length, or 0 when no prefix is set.
func (p PrefixInfo) Len() int {
	if !p.Prefix.IsValid() {
		return 0
	}
	return p.Prefix.Bits()
}

func (p PrefixInfo) Autonomous() bool {
	return p.Len() != 0 && p.Flags&PrefixFlagAutonomous != 0
}

// Same reports whether both prefixes describe the same announcement.
func (p PrefixInfo) Same(o PrefixInfo) bool {
	return p.Len() == o.Len() && p.Prefix.Masked() == o.Prefix.Masked() && p.Flags == o.Flags
}

// metric container types
const (
	McNone   = uint8(0)
	McEnergy = uint8(2)
	McEtx    = uint8(7)
)

const (
	McFlagP        = uint8(0x8)
	McAggrAdditive = uint8(0)
)

// MetricContainer carries the path metric advertised along the DAG.
type MetricContainer struct {
	Type        uint8
	Flags       uint8
	Aggr        uint8
	Prec        uint8
	Etx         uint16
	Energy      uint8
	EnergyFlags uint8
}

// DagRef is a stable handle to a DAG slot inside the instance table.
type DagRef struct {
	Instance int
	Slot     int
}

var NoDag = DagRef{-1, -1}

func (r DagRef) Valid() bool {
	return r.Instance >= 0 && r.Slot >= 0
}

// ParentId is a stable handle to a slot in the parent registry.
type ParentId int

const NoParent ParentId = -1

type ParentRole uint8

const (
	RoleNeighbour ParentRole = iota
	// RoleCandidate marks a neighbour advertising a rank below ours.
	RoleCandidate
	RolePreferred
)

func (r ParentRole) String() string {
	switch r {
	case RoleCandidate:
		return "candidate"
	case RolePreferred:
		return "preferred"
	}
	return "neighbour"
}

// Instance is one topology identity.
type Instance struct {
	Used bool
	Slot int
	Id   InstanceId
	OF   ObjectiveFunction
	Mop  Mop
	MC   MetricContainer

	DioIntMin       uint8
	DioIntDoublings uint8
	DioIntCurrent   uint8
	DioRedundancy   uint8
	DioCounter      uint8

	MaxRankInc      Rank
	MinHopRankInc   Rank
	DefaultLifetime uint8
	LifetimeUnit    uint16

	// DtsnOut is the sequence number advertised to children, bumped when they should
	// refresh their route registrations.
	DtsnOut Lollipop
	// Current is the slot of the active DAG, or -1.
	Current int
	// DefRoute is the next hop of the installed default route, if valid.
	DefRoute netip.Addr

	Dags []Dag
}

// CurrentDag returns the active DAG of the instance, or nil.
func (i *Instance) CurrentDag() *Dag {
	if i.Current < 0 || i.Current >= len(i.Dags) || !i.Dags[i.Current].Used {
		return nil
	}
	return &i.Dags[i.Current]
}

// RootRank is the rank held by the root of any DAG in the instance.
func (i *Instance) RootRank() Rank {
	return i.MinHopRankInc
}

// Lifetime converts a lifetime expressed in instance units to a duration.
func (i *Instance) Lifetime(lifetime uint8) time.Duration {
	return time.Duration(lifetime) * time.Duration(i.LifetimeUnit) * time.Second
}

// Dag is one topology within an instance.
type Dag struct {
	Used bool
	Ref  DagRef
	Id   netip.Addr

	Version Lollipop
	Rank    Rank
	// MinRank is the lowest rank held since the last global repair.
	MinRank    Rank
	Grounded   bool
	Preference uint8
	Joined     bool
	Prefix     PrefixInfo
	Preferred  ParentId
}

// Parent is a neighbour advertising a DAG of one of our instances.
type Parent struct {
	Addr LinkAddr
	Dag  DagRef

	Rank       Rank
	Dtsn       Lollipop
	MC         MetricContainer
	LinkMetric uint16
	UpdateTime time.Time
	Role       ParentRole
	// Updated is set when link feedback changed the metric since the last rank sweep.
	Updated bool
}

// Advertisement is an inbound topology advertisement, already decoded.
type Advertisement struct {
	InstanceId InstanceId
	DagId      netip.Addr
	Version    Lollipop
	Rank       Rank
	Grounded   bool
	Mop        Mop
	Preference uint8
	Dtsn       Lollipop
	Ocp        uint16

	IntervalDoublings uint8
	IntervalMin       uint8
	Redundancy        uint8
	MaxRankInc        Rank
	MinHopRankInc     Rank
	DefaultLifetime   uint8
	LifetimeUnit      uint16

	Prefix PrefixInfo
	MC     MetricContainer
}

func (a Advertisement) String() string {
	return fmt.Sprintf("(instance: %d, dag: %s, version: %d, rank: %s, dtsn: %d)", a.InstanceId, a.DagId, a.Version, a.Rank, a.Dtsn)
}

// ObjectiveFunction ranks parents and DAGs for an instance.
type ObjectiveFunction interface {
	// Ocp is the objective code point identifying the function in advertisements.
	Ocp() uint16
	// CalculateRank returns the rank obtained through p on top of base. A zero base
	// means the rank advertised by p. p may be nil.
	CalculateRank(inst *Instance, p *Parent, base Rank) Rank
	BestParent(inst *Instance, p1, p2 *Parent) *Parent
	BestDag(d1, d2 *Dag) *Dag
	// UpdateMetricContainer refreshes inst.MC from the current DAG and its preferred parent.
	UpdateMetricContainer(inst *Instance, preferred *Parent)
	// Reset drops any state accumulated for dag.
	Reset(dag *Dag)
}

// LinkObserver is implemented by objective functions that derive link metrics from
// transmission feedback.
type LinkObserver interface {
	LinkFeedback(p *Parent, ok bool, numTx int)
}
