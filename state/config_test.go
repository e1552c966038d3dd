package state

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleScenario = `
nodes:
  - id: root
    root:
      instance: 30
      dag_id: fd00::1
      prefix: fd00::/64
      ocp: 0
  - id: a
    link_addr: "0212:4b00:0000:00aa"
  - id: b
links:
  - from: root
    to: a
    etx: 1.5
  - from: a
    to: b
    loss: 0.1
duration: 10s
log_path: /tmp/dodag.log
timing:
  dio_interval_min: 8
  rank_sweep: 500ms
`

func TestParseScenario(t *testing.T) {
	cfg, err := ParseScenario([]byte(sampleScenario))
	require.NoError(t, err)
	require.Len(t, cfg.Nodes, 3)

	root := cfg.Node("root")
	require.NotNil(t, root)
	require.NotNil(t, root.Root)
	assert.Equal(t, InstanceId(30), root.Root.Instance)
	assert.Equal(t, netip.MustParseAddr("fd00::1"), root.Root.DagId)
	assert.Equal(t, netip.MustParsePrefix("fd00::/64"), root.Root.Prefix)
	assert.Equal(t, uint16(0), root.Root.Objective())
	assert.Equal(t, DerivedLinkAddr(0), root.LinkAddr)

	assert.Equal(t, LinkAddr{0x02, 0x12, 0x4b, 0, 0, 0, 0, 0xaa}, cfg.Node("a").LinkAddr)
	assert.Nil(t, cfg.Node("b").Root)
	assert.Nil(t, cfg.Node("c"))

	assert.Equal(t, 1.5, cfg.Links[0].Etx)
	assert.Equal(t, 1.0, cfg.Links[1].Etx)
	assert.Equal(t, 0.1, cfg.Links[1].Loss)
	assert.Equal(t, 10*time.Second, cfg.Duration)
	assert.Equal(t, "/tmp/dodag.log", cfg.LogPath)
	assert.Equal(t, 500*time.Millisecond, cfg.Timing.RankSweepPeriod())
	assert.Equal(t, RouteRegistrationDelay, cfg.Timing.RegistrationDelay())

	p := DefaultRootParams()
	cfg.Timing.Apply(&p)
	assert.Equal(t, uint8(8), p.DioIntMin)
	assert.Equal(t, DioIntervalDoublings, p.DioIntDoublings)
}

func TestParseScenario_Defaults(t *testing.T) {
	cfg, err := ParseScenario([]byte("nodes:\n  - id: x\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultScenarioDuration, cfg.Duration)
	assert.Equal(t, DefaultOcp, (&RootCfg{}).Objective())
}

func TestParseScenario_BadLinkAddr(t *testing.T) {
	_, err := ParseScenario([]byte("nodes:\n  - id: x\n    link_addr: zz\n"))
	assert.Error(t, err)
}

func TestNeighbours(t *testing.T) {
	cfg, err := ParseScenario([]byte(sampleScenario))
	require.NoError(t, err)
	n := cfg.Neighbours("a")
	assert.ElementsMatch(t, []LinkCfg{
		{From: "a", To: "root", Etx: 1.5},
		{From: "a", To: "b", Etx: 1, Loss: 0.1},
	}, n)
	assert.Empty(t, cfg.Neighbours("nobody"))
}

func TestLinkAddrText(t *testing.T) {
	l, err := ParseLinkAddr("02:00:00:00:00:00:00:01")
	require.NoError(t, err)
	assert.Equal(t, DerivedLinkAddr(0), l)
	text, err := l.MarshalText()
	require.NoError(t, err)
	var back LinkAddr
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, l, back)
	assert.Equal(t, netip.MustParseAddr("fe80::200:0:0:1"), l.LinkLocal())
	assert.Equal(t, l, LinkAddrFromAddr(l.LinkLocal()))
	assert.Equal(t, netip.MustParseAddr("fd00::200:0:0:1"), l.AddrFromPrefix(netip.MustParsePrefix("fd00::/64")))

	_, err = ParseLinkAddr("0200")
	assert.Error(t, err)
}
