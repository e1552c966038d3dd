package cmd

import (
	"bytes"
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/encodeous/dodag/objective"
	"github.com/encodeous/dodag/state"
	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScenario(t *testing.T) {
	prefix := netip.MustParsePrefix("fd00:1::/64")
	tests := []struct {
		topology string
		links    []state.Pair[state.NodeId, state.NodeId]
	}{
		{"line", []state.Pair[state.NodeId, state.NodeId]{{V1: "n0", V2: "n1"}, {V1: "n1", V2: "n2"}, {V1: "n2", V2: "n3"}}},
		{"star", []state.Pair[state.NodeId, state.NodeId]{{V1: "n0", V2: "n1"}, {V1: "n0", V2: "n2"}, {V1: "n0", V2: "n3"}}},
		{"tree", []state.Pair[state.NodeId, state.NodeId]{{V1: "n0", V2: "n1"}, {V1: "n0", V2: "n2"}, {V1: "n1", V2: "n3"}}},
	}
	for _, tt := range tests {
		t.Run(tt.topology, func(t *testing.T) {
			cfg, err := newScenario(4, tt.topology, prefix, 1.5)
			require.NoError(t, err)
			require.NoError(t, state.ScenarioValidator(cfg, objective.Default().Supported))

			require.NotNil(t, cfg.Nodes[0].Root)
			assert.Equal(t, prefix, cfg.Nodes[0].Root.Prefix)
			links := make([]state.Pair[state.NodeId, state.NodeId], 0)
			for _, l := range cfg.Links {
				links = append(links, state.Pair[state.NodeId, state.NodeId]{V1: l.From, V2: l.To})
				assert.InDelta(t, 1.5, l.Etx, 1e-9)
			}
			assert.Equal(t, tt.links, links)
		})
	}

	_, err := newScenario(2, "ring", prefix, 1)
	assert.Error(t, err)
	_, err = newScenario(2, "line", netip.MustParsePrefix("10.0.0.0/8"), 1)
	assert.Error(t, err)
}

func TestNewScenario_RoundTrip(t *testing.T) {
	cfg, err := newScenario(3, "line", netip.MustParsePrefix("fd00:1::/64"), 1)
	require.NoError(t, err)
	out, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, out, 0600))
	loaded, err := loadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Nodes[2].LinkAddr, loaded.Nodes[2].LinkAddr)
	assert.Equal(t, cfg.Nodes[0].Root.DagId, loaded.Nodes[0].Root.DagId)
	assert.Len(t, loaded.Links, 2)
}

func TestHosts(t *testing.T) {
	cfg, err := newScenario(2, "line", netip.MustParsePrefix("fd00:1::/64"), 1)
	require.NoError(t, err)
	out, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, out, 0600))

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"hosts", "--scenario", path})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "fd00:1::200:0:0:1\tn0\nfd00:1::200:0:0:2\tn1\n", buf.String())
}
