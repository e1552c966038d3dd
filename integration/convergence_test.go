//go:build integration

package integration

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/encodeous/dodag/core"
	"github.com/encodeous/dodag/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const prefix = "fd00:1::/64"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestStartStop(t *testing.T) {
	vh := NewHarness()
	vh.NewRoot("r", 1, prefix)
	vh.NewNode("a")
	vh.NewNode("b")
	vh.AddLink("r", "a", core.Link{Etx: 1})
	require.NoError(t, vh.Start())
	time.Sleep(500 * time.Millisecond)
	vh.Stop()
}

func line(vh *VirtualHarness, ids ...state.NodeId) {
	vh.NewRoot(ids[0], 1, prefix)
	for i := 1; i < len(ids); i++ {
		vh.NewNode(ids[i])
		vh.AddLink(ids[i-1], ids[i], core.Link{Etx: 1})
	}
}

func TestLineConvergence(t *testing.T) {
	vh := NewHarness()
	line(vh, "r", "a", "b", "c")
	require.NoError(t, vh.Start())
	defer vh.Stop()

	root := vh.Addr("r", prefix)
	leaf := vh.Addr("c", prefix)
	converged := vh.WaitFor(20*time.Second, func(s map[state.NodeId]core.NodeSnapshot) bool {
		if vh.Parent(s, "a", 1) != "r" || vh.Parent(s, "b", 1) != "a" || vh.Parent(s, "c", 1) != "b" {
			return false
		}
		up, err := vh.Trace(s, "c", root)
		if err != nil || !slices.Equal(up, []state.NodeId{"c", "b", "a", "r"}) {
			return false
		}
		down, err := vh.Trace(s, "r", leaf)
		return err == nil && slices.Equal(down, []state.NodeId{"r", "a", "b", "c"})
	})
	require.True(t, converged, "mesh did not converge")

	s := vh.Snapshots()
	var last state.Rank
	for _, id := range []state.NodeId{"r", "a", "b", "c"} {
		dag, ok := s[id].CurrentDag(1)
		require.True(t, ok)
		assert.Greater(t, dag.Rank, last, "rank of %s", id)
		assert.Equal(t, state.LollipopInit, dag.Version)
		last = dag.Rank
	}
}

func TestLocalRepairAfterLinkLoss(t *testing.T) {
	vh := NewHarness()
	vh.NewRoot("r", 1, prefix)
	vh.NewNode("a")
	vh.NewNode("b")
	vh.NewNode("c")
	vh.AddLink("r", "a", core.Link{Etx: 1})
	vh.AddLink("r", "b", core.Link{Etx: 1})
	vh.AddLink("a", "c", core.Link{Etx: 1})
	vh.AddLink("b", "c", core.Link{Etx: 2.5})

	switched := NewSignal()
	vh.OnEvent(func(ev core.TraceEvent) {
		if ev.Node == "c" && ev.Event == core.ParentSwitch {
			switched.Trigger()
		}
	})
	require.NoError(t, vh.Start())
	defer vh.Stop()

	require.True(t, vh.WaitFor(20*time.Second, func(s map[state.NodeId]core.NodeSnapshot) bool {
		return vh.Parent(s, "c", 1) == "a"
	}), "c never settled on a")

	require.NoError(t, vh.Mesh.Disconnect("a", "c"))

	leaf := vh.Addr("c", prefix)
	root := vh.Addr("r", prefix)
	repaired := vh.WaitFor(20*time.Second, func(s map[state.NodeId]core.NodeSnapshot) bool {
		if vh.Parent(s, "c", 1) != "b" {
			return false
		}
		down, err := vh.Trace(s, "r", leaf)
		if err != nil || !slices.Equal(down, []state.NodeId{"r", "b", "c"}) {
			return false
		}
		up, err := vh.Trace(s, "c", root)
		return err == nil && slices.Equal(up, []state.NodeId{"c", "b", "r"})
	})
	require.True(t, repaired, "c did not move to b")
	assert.True(t, switched.Triggered())
}

func TestGlobalRepair(t *testing.T) {
	vh := NewHarness()
	line(vh, "r", "a", "b")

	repaired := map[state.NodeId]Signal{"a": NewSignal(), "b": NewSignal()}
	vh.OnEvent(func(ev core.TraceEvent) {
		if sig, ok := repaired[ev.Node]; ok && ev.Event == core.GlobalRepair {
			sig.Trigger()
		}
	})
	require.NoError(t, vh.Start())
	defer vh.Stop()

	require.True(t, vh.WaitFor(20*time.Second, func(s map[state.NodeId]core.NodeSnapshot) bool {
		return vh.Parent(s, "b", 1) == "a"
	}))

	ok, err := vh.Mesh.Node("r").DispatchWait(func(s *state.State) (any, error) {
		if !core.Get[*core.Node](s).RepairRoot(1) {
			return false, errors.New("r is not the root of instance 1")
		}
		return true, nil
	})
	require.NoError(t, err)
	require.Equal(t, true, ok)

	next := state.LollipopInit.Next()
	require.True(t, vh.WaitFor(20*time.Second, func(s map[state.NodeId]core.NodeSnapshot) bool {
		for _, id := range []state.NodeId{"r", "a", "b"} {
			dag, ok := s[id].CurrentDag(1)
			if !ok || dag.Version != next {
				return false
			}
		}
		return vh.Parent(s, "a", 1) == "r" && vh.Parent(s, "b", 1) == "a"
	}), "new version did not propagate")

	for id, sig := range repaired {
		select {
		case <-sig:
		case <-time.After(5 * time.Second):
			t.Errorf("%s never reported a global repair", id)
		}
	}
}

func TestIsolatedNodeStaysDetached(t *testing.T) {
	vh := NewHarness()
	line(vh, "r", "a")
	vh.NewNode("x")
	require.NoError(t, vh.Start())
	defer vh.Stop()

	require.True(t, vh.WaitFor(20*time.Second, func(s map[state.NodeId]core.NodeSnapshot) bool {
		return vh.Parent(s, "a", 1) == "r"
	}))
	s := vh.Snapshots()
	_, ok := s["x"].CurrentDag(1)
	assert.False(t, ok)
	assert.Empty(t, s["x"].DefaultRoutes)
	assert.Empty(t, s["x"].Addrs)

	require.NoError(t, vh.Mesh.Connect("a", "x", core.Link{Etx: 1}))
	assert.True(t, vh.WaitFor(20*time.Second, func(s map[state.NodeId]core.NodeSnapshot) bool {
		return vh.Parent(s, "x", 1) == "a"
	}), "x did not join after the link came up")
}
