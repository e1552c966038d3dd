package state

import (
	"fmt"
	"net/netip"
	"os"
	"slices"
	"time"

	"github.com/goccy/go-yaml"
)

type NodeId string

// RootCfg makes a node the root of a DAG when it starts.
type RootCfg struct {
	Instance InstanceId   `yaml:"instance"`
	DagId    netip.Addr   `yaml:"dag_id"`
	Prefix   netip.Prefix `yaml:"prefix,omitempty"`
	Ocp      *uint16      `yaml:"ocp,omitempty"` // objective code point, DefaultOcp if unset
}

func (r *RootCfg) Objective() uint16 {
	if r.Ocp == nil {
		return DefaultOcp
	}
	return *r.Ocp
}

type NodeCfg struct {
	Id       NodeId
	LinkAddr LinkAddr `yaml:"link_addr,omitempty"` // derived from the node's position if unset
	Root     *RootCfg `yaml:",omitempty"`
}

// LinkCfg is a bidirectional radio link between two nodes.
type LinkCfg struct {
	From NodeId
	To   NodeId
	Etx  float64 `yaml:",omitempty"` // expected transmissions per delivered frame, 1 if unset
	Loss float64 `yaml:",omitempty"` // probability that a frame is dropped
}

// TimingCfg overrides protocol timing, mainly so simulations converge quickly.
type TimingCfg struct {
	DioIntervalMin         uint8         `yaml:"dio_interval_min,omitempty"`
	DioIntervalDoublings   uint8         `yaml:"dio_interval_doublings,omitempty"`
	DioRedundancy          uint8         `yaml:"dio_redundancy,omitempty"`
	RankSweep              time.Duration `yaml:"rank_sweep,omitempty"`
	RouteRegistrationDelay time.Duration `yaml:"route_registration_delay,omitempty"`
}

// ScenarioCfg describes a simulated mesh.
type ScenarioCfg struct {
	Nodes    []NodeCfg
	Links    []LinkCfg
	Duration time.Duration `yaml:",omitempty"`
	LogPath  string        `yaml:"log_path,omitempty"` // if not empty, every node also logs to this file
	Timing   TimingCfg     `yaml:",omitempty"`
}

// RootParams are the instance parameters a node announces when it becomes root.
type RootParams struct {
	Ocp             uint16
	Mop             Mop
	Grounded        bool
	DioIntMin       uint8
	DioIntDoublings uint8
	DioRedundancy   uint8
	MaxRankInc      Rank
	MinHopRankInc   Rank
	DefaultLifetime uint8
	LifetimeUnit    uint16
}

func DefaultRootParams() RootParams {
	return RootParams{
		Ocp:             DefaultOcp,
		Mop:             DefaultMop,
		Grounded:        Grounded,
		DioIntMin:       DioIntervalMin,
		DioIntDoublings: DioIntervalDoublings,
		DioRedundancy:   DioRedundancy,
		MaxRankInc:      DefaultMaxRankInc,
		MinHopRankInc:   DefaultMinHopRankInc,
		DefaultLifetime: DefaultLifetime,
		LifetimeUnit:    DefaultLifetimeUnit,
	}
}

// Apply copies the non-zero trickle overrides into p.
func (t TimingCfg) Apply(p *RootParams) {
	if t.DioIntervalMin != 0 {
		p.DioIntMin = t.DioIntervalMin
	}
	if t.DioIntervalDoublings != 0 {
		p.DioIntDoublings = t.DioIntervalDoublings
	}
	if t.DioRedundancy != 0 {
		p.DioRedundancy = t.DioRedundancy
	}
}

func (t TimingCfg) RankSweepPeriod() time.Duration {
	if t.RankSweep == 0 {
		return RankSweepDelay
	}
	return t.RankSweep
}

func (t TimingCfg) RegistrationDelay() time.Duration {
	if t.RouteRegistrationDelay == 0 {
		return RouteRegistrationDelay
	}
	return t.RouteRegistrationDelay
}

func (c *ScenarioCfg) IndexOf(id NodeId) int {
	return slices.IndexFunc(c.Nodes, func(n NodeCfg) bool {
		return n.Id == id
	})
}

func (c *ScenarioCfg) Node(id NodeId) *NodeCfg {
	idx := c.IndexOf(id)
	if idx == -1 {
		return nil
	}
	return &c.Nodes[idx]
}

// Neighbours returns the links that touch id, oriented so that From == id.
func (c *ScenarioCfg) Neighbours(id NodeId) []LinkCfg {
	res := make([]LinkCfg, 0)
	for _, l := range c.Links {
		switch id {
		case l.From:
			res = append(res, l)
		case l.To:
			res = append(res, LinkCfg{From: l.To, To: l.From, Etx: l.Etx, Loss: l.Loss})
		}
	}
	return res
}

// DerivedLinkAddr is the link-layer address given to the node at idx when none is configured.
func DerivedLinkAddr(idx int) LinkAddr {
	return LinkAddr{0x02, 0, 0, 0, 0, 0, byte((idx + 1) >> 8), byte(idx + 1)}
}

// ExpandScenario fills in the defaults of a parsed scenario.
func ExpandScenario(c *ScenarioCfg) {
	for i := range c.Nodes {
		if c.Nodes[i].LinkAddr == (LinkAddr{}) {
			c.Nodes[i].LinkAddr = DerivedLinkAddr(i)
		}
	}
	for i := range c.Links {
		if c.Links[i].Etx == 0 {
			c.Links[i].Etx = 1
		}
	}
	if c.Duration == 0 {
		c.Duration = DefaultScenarioDuration
	}
}

func ParseScenario(data []byte) (*ScenarioCfg, error) {
	var cfg ScenarioCfg
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	ExpandScenario(&cfg)
	return &cfg, nil
}

func LoadScenario(path string) (*ScenarioCfg, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(file)
}
