package core

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/encodeous/dodag/state"
)

// Mesh runs every node of a scenario in-process over a shared Medium.
type Mesh struct {
	Cfg    *state.ScenarioCfg
	Medium *Medium
	States []*state.State

	dispatch  []<-chan func(*state.State) error
	done      []chan struct{}
	started   bool
	stopped   chan struct{}
	stopOnce  sync.Once
	observers sync.WaitGroup
}

// NewMesh connects the links of cfg and initializes every node. Nodes stay idle until
// Start is called, so observers registered with Trace see every event.
func NewMesh(cfg *state.ScenarioCfg, logLevel slog.Level) (*Mesh, error) {
	m := &Mesh{
		Cfg:     cfg,
		Medium:  NewMedium(),
		stopped: make(chan struct{}),
	}
	for _, l := range cfg.Links {
		from, to := cfg.Node(l.From), cfg.Node(l.To)
		if from == nil || to == nil {
			return nil, fmt.Errorf("link %s, %s references an unknown node", l.From, l.To)
		}
		m.Medium.Connect(from.LinkAddr, to.LinkAddr, Link{Etx: l.Etx, Loss: l.Loss})
	}
	for _, ncfg := range cfg.Nodes {
		logger, err := NewLogger(ncfg.Id, logLevel, cfg.LogPath)
		if err != nil {
			m.Stop()
			return nil, err
		}
		s, dispatch, err := Setup(ncfg, cfg.Timing, logger, map[string]any{
			"medium": m.Medium,
		})
		if err != nil {
			m.Stop()
			return nil, fmt.Errorf("failed to set up node %s: %w", ncfg.Id, err)
		}
		m.States = append(m.States, s)
		m.dispatch = append(m.dispatch, dispatch)
		m.done = append(m.done, make(chan struct{}))
	}
	return m, nil
}

// StartMesh creates a mesh and starts all of its nodes.
func StartMesh(cfg *state.ScenarioCfg, logLevel slog.Level) (*Mesh, error) {
	m, err := NewMesh(cfg, logLevel)
	if err != nil {
		return nil, err
	}
	m.Start()
	return m, nil
}

func (m *Mesh) Start() {
	if m.started {
		return
	}
	m.started = true
	for i, s := range m.States {
		go func() {
			defer close(m.done[i])
			err := MainLoop(s, m.dispatch[i])
			if err != nil {
				s.Log.Error("main loop exited", "error", err)
			}
		}()
	}
}

// Stop cancels every node and waits for them to clean up.
func (m *Mesh) Stop() {
	m.stopOnce.Do(func() {
		for _, s := range m.States {
			s.Cancel(errors.New("stopping mesh"))
		}
		for i, s := range m.States {
			if m.started {
				<-m.done[i]
			} else {
				Stop(s)
			}
		}
		close(m.stopped)
		m.observers.Wait()
	})
}

// Node returns the state of the node with the given id, or nil.
func (m *Mesh) Node(id state.NodeId) *state.State {
	idx := m.Cfg.IndexOf(id)
	if idx == -1 || idx >= len(m.States) {
		return nil
	}
	return m.States[idx]
}

// Snapshot copies the state of a running node.
func (m *Mesh) Snapshot(id state.NodeId) (NodeSnapshot, error) {
	s := m.Node(id)
	if s == nil {
		return NodeSnapshot{}, fmt.Errorf("node %s not found", id)
	}
	res, err := s.DispatchWait(func(s *state.State) (any, error) {
		return Get[*Node](s).Snapshot(), nil
	})
	if err != nil {
		return NodeSnapshot{}, err
	}
	return res.(NodeSnapshot), nil
}

func (m *Mesh) Snapshots() ([]NodeSnapshot, error) {
	res := make([]NodeSnapshot, 0, len(m.States))
	for _, s := range m.States {
		ns, err := m.Snapshot(s.Id)
		if err != nil {
			return nil, err
		}
		res = append(res, ns)
	}
	return res, nil
}

// Trace calls fn for every engine event raised on any node until the mesh stops. fn is
// called from one goroutine per node.
func (m *Mesh) Trace(fn func(TraceEvent)) {
	for _, s := range m.States {
		trace, ok := s.Modules[moduleName(&Trace{})].(*Trace)
		if !ok || s.Context.Err() != nil {
			continue
		}
		ch := make(chan any, 1024)
		trace.Register(ch)
		m.observers.Add(1)
		go func() {
			defer m.observers.Done()
			for {
				select {
				case ev := <-ch:
					if te, ok := ev.(TraceEvent); ok {
						fn(te)
					}
				case <-m.stopped:
					for {
						select {
						case <-ch:
						default:
							return
						}
					}
				}
			}
		}()
	}
}

func (m *Mesh) linkAddrs(a, b state.NodeId) (state.LinkAddr, state.LinkAddr, error) {
	na, nb := m.Cfg.Node(a), m.Cfg.Node(b)
	if na == nil || nb == nil {
		return state.LinkAddr{}, state.LinkAddr{}, fmt.Errorf("link %s, %s references an unknown node", a, b)
	}
	return na.LinkAddr, nb.LinkAddr, nil
}

// Connect adds or updates the link between a and b while the mesh runs.
func (m *Mesh) Connect(a, b state.NodeId, l Link) error {
	la, lb, err := m.linkAddrs(a, b)
	if err != nil {
		return err
	}
	m.Medium.Connect(la, lb, l)
	return nil
}

func (m *Mesh) Disconnect(a, b state.NodeId) error {
	la, lb, err := m.linkAddrs(a, b)
	if err != nil {
		return err
	}
	m.Medium.Disconnect(la, lb)
	return nil
}
