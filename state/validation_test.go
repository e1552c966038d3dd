package state

import (
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameValidator_Valid(t *testing.T) {
	assert.NoError(t, NameValidator("1"))
	assert.NoError(t, NameValidator("ab_cd"))
	assert.NoError(t, NameValidator("abcd-a.com"))
}

func TestNameValidator_Invalid(t *testing.T) {
	assert.Error(t, NameValidator("1A"))
	assert.Error(t, NameValidator("node name"))
	assert.Error(t, NameValidator(""))
	assert.Error(t, NameValidator("\t"))
	assert.Error(t, NameValidator(strings.Repeat("a", 200)))
}

func onlyOcp(ocps ...uint16) func(uint16) bool {
	return func(o uint16) bool {
		for _, x := range ocps {
			if x == o {
				return true
			}
		}
		return false
	}
}

func validScenario() *ScenarioCfg {
	ocp := uint16(1)
	cfg := &ScenarioCfg{
		Nodes: []NodeCfg{
			{Id: "root", Root: &RootCfg{Instance: 1, DagId: netip.MustParseAddr("fd00::1"), Ocp: &ocp}},
			{Id: "a"},
			{Id: "b"},
		},
		Links: []LinkCfg{
			{From: "root", To: "a"},
			{From: "a", To: "b"},
		},
	}
	ExpandScenario(cfg)
	return cfg
}

func TestScenarioValidator(t *testing.T) {
	assert.NoError(t, ScenarioValidator(validScenario(), onlyOcp(0, 1)))
}

func TestScenarioValidator_DuplicateLink(t *testing.T) {
	cfg := validScenario()
	cfg.Links = append(cfg.Links, LinkCfg{From: "b", To: "a", Etx: 1})
	assert.ErrorContains(t, ScenarioValidator(cfg, nil), "duplicate link")
}

func TestScenarioValidator_UnknownNode(t *testing.T) {
	cfg := validScenario()
	cfg.Links = append(cfg.Links, LinkCfg{From: "a", To: "zz", Etx: 1})
	assert.ErrorContains(t, ScenarioValidator(cfg, nil), "node zz not defined")
}

func TestScenarioValidator_DuplicateNode(t *testing.T) {
	cfg := validScenario()
	cfg.Nodes = append(cfg.Nodes, NodeCfg{Id: "a", LinkAddr: DerivedLinkAddr(9)})
	assert.ErrorContains(t, ScenarioValidator(cfg, nil), "duplicate node")
}

func TestScenarioValidator_SharedLinkAddr(t *testing.T) {
	cfg := validScenario()
	cfg.Nodes[2].LinkAddr = cfg.Nodes[1].LinkAddr
	assert.ErrorContains(t, ScenarioValidator(cfg, nil), "reuses link address")
}

func TestScenarioValidator_BadLink(t *testing.T) {
	cfg := validScenario()
	cfg.Links[0].Loss = 1
	assert.Error(t, ScenarioValidator(cfg, nil))

	cfg = validScenario()
	cfg.Links[0].Etx = 0.5
	assert.Error(t, ScenarioValidator(cfg, nil))

	cfg = validScenario()
	cfg.Links[0].To = "root"
	assert.Error(t, ScenarioValidator(cfg, nil))
}

func TestScenarioValidator_Root(t *testing.T) {
	cfg := validScenario()
	assert.ErrorContains(t, ScenarioValidator(cfg, onlyOcp(0)), "not supported")

	cfg = validScenario()
	cfg.Nodes[0].Root.DagId = netip.MustParseAddr("10.0.0.1")
	assert.ErrorContains(t, ScenarioValidator(cfg, nil), "not an IPv6 address")

	cfg = validScenario()
	cfg.Nodes[0].Root.Prefix = netip.MustParsePrefix("10.0.0.0/8")
	assert.ErrorContains(t, ScenarioValidator(cfg, nil), "not an IPv6 prefix")
}

func TestScenarioValidator_Timing(t *testing.T) {
	cfg := validScenario()
	cfg.Timing = TimingCfg{DioIntervalMin: 20, DioIntervalDoublings: 12}
	assert.NoError(t, ScenarioValidator(cfg, nil))

	for _, timing := range []TimingCfg{
		{DioIntervalMin: 64},
		{DioIntervalMin: 30},
		{DioIntervalMin: 20, DioIntervalDoublings: 13},
		{DioIntervalMin: 255, DioIntervalDoublings: 255},
	} {
		cfg.Timing = timing
		assert.Error(t, ScenarioValidator(cfg, nil), "%+v", timing)
	}
}

func TestTrickleValidator(t *testing.T) {
	assert.NoError(t, TrickleValidator(0, 0))
	assert.NoError(t, TrickleValidator(12, 8))
	assert.NoError(t, TrickleValidator(32, 0))
	assert.Error(t, TrickleValidator(33, 0))
	assert.Error(t, TrickleValidator(200, 100))
}
