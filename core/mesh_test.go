package core

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/encodeous/dodag/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func pairScenario() *state.ScenarioCfg {
	cfg := &state.ScenarioCfg{
		Nodes: []state.NodeCfg{
			rootCfg(),
			{Id: "leaf"},
		},
		Links:  []state.LinkCfg{{From: "root", To: "leaf"}},
		Timing: fastTiming,
	}
	state.ExpandScenario(cfg)
	return cfg
}

func TestMesh_Pair(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, err := NewMesh(pairScenario(), slog.LevelError+1)
	require.NoError(t, err)
	defer m.Stop()

	var mu sync.Mutex
	events := make(map[state.NodeId][]EngineEvent)
	m.Trace(func(ev TraceEvent) {
		mu.Lock()
		defer mu.Unlock()
		events[ev.Node] = append(events[ev.Node], ev.Event)
	})
	m.Start()

	assert.Eventually(t, func() bool {
		ns, err := m.Snapshot("leaf")
		if err != nil {
			return false
		}
		dag, ok := ns.CurrentDag(1)
		return ok && dag.HasPreferred && dag.Preferred == m.Node("root").LinkAddr
	}, 5*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		ns, err := m.Snapshot("root")
		return err == nil && len(ns.Routes) == 1
	}, 5*time.Second, 10*time.Millisecond)

	m.Stop()
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, events["root"], BecameRoot)
	assert.Contains(t, events["leaf"], JoinedInstance)

	_, err = m.Snapshot("root")
	assert.Error(t, err)
}

func TestMesh_UnknownNode(t *testing.T) {
	defer goleak.VerifyNone(t)
	cfg := pairScenario()
	cfg.Links = append(cfg.Links, state.LinkCfg{From: "root", To: "ghost"})
	_, err := NewMesh(cfg, slog.LevelError+1)
	assert.Error(t, err)

	m, err := NewMesh(pairScenario(), slog.LevelError+1)
	require.NoError(t, err)
	defer m.Stop()
	assert.Nil(t, m.Node("ghost"))
	_, err = m.Snapshot("ghost")
	assert.Error(t, err)
	assert.Error(t, m.Connect("root", "ghost", Link{Etx: 1}))
	assert.NoError(t, m.Disconnect("root", "leaf"))
}
