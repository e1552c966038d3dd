package core

import (
	"math/rand/v2"
	"sync"

	"github.com/encodeous/dodag/perf"
	"github.com/encodeous/dodag/state"
)

// MaxTransmissions is the number of link-layer attempts made for a unicast frame.
const MaxTransmissions = 4

// Link models the radio conditions between two nodes.
type Link struct {
	// Etx is the expected number of transmissions per delivered frame.
	Etx float64
	// Loss is the probability that a frame is dropped regardless of retries.
	Loss float64
}

func (l Link) deliveryRatio() float64 {
	etx := max(l.Etx, 1)
	return (1 - l.Loss) / etx
}

type port struct {
	env  *state.Env
	recv func(s *state.State, f Frame) error
}

// Medium is a shared in-process radio. Frames are delivered by dispatching them onto the
// receiving node's main loop; a node whose loop is backed up drops the frame.
type Medium struct {
	mu    sync.Mutex
	ports map[state.LinkAddr]port
	links map[state.Pair[state.LinkAddr, state.LinkAddr]]Link
}

func NewMedium() *Medium {
	return &Medium{
		ports: make(map[state.LinkAddr]port),
		links: make(map[state.Pair[state.LinkAddr, state.LinkAddr]]Link),
	}
}

// Connect creates or updates a symmetric link between a and b.
func (m *Medium) Connect(a, b state.LinkAddr, l Link) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[state.Pair[state.LinkAddr, state.LinkAddr]{V1: a, V2: b}] = l
	m.links[state.Pair[state.LinkAddr, state.LinkAddr]{V1: b, V2: a}] = l
}

func (m *Medium) Disconnect(a, b state.LinkAddr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.links, state.Pair[state.LinkAddr, state.LinkAddr]{V1: a, V2: b})
	delete(m.links, state.Pair[state.LinkAddr, state.LinkAddr]{V1: b, V2: a})
}

// Attach registers the node listening at addr.
func (m *Medium) Attach(addr state.LinkAddr, env *state.Env, recv func(s *state.State, f Frame) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ports[addr] = port{env: env, recv: recv}
}

func (m *Medium) Detach(addr state.LinkAddr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ports, addr)
}

func (m *Medium) link(a, b state.LinkAddr) (Link, port, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[state.Pair[state.LinkAddr, state.LinkAddr]{V1: a, V2: b}]
	if !ok {
		return Link{}, port{}, false
	}
	p, ok := m.ports[b]
	return l, p, ok
}

func (m *Medium) neighbours(a state.LinkAddr) []state.LinkAddr {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]state.LinkAddr, 0)
	for edge := range m.links {
		if edge.V1 == a {
			res = append(res, edge.V2)
		}
	}
	return res
}

func (m *Medium) deliver(p port, f Frame) bool {
	if !p.env.TryDispatch(func(s *state.State) error {
		return p.recv(s, f)
	}) {
		perf.FramesDropped.Add(1)
		return false
	}
	return true
}

// Broadcast sends f once to every neighbour of f.Src. Broadcasts are not retried.
func (m *Medium) Broadcast(f Frame) {
	for _, dst := range m.neighbours(f.Src) {
		l, p, ok := m.link(f.Src, dst)
		if !ok {
			continue
		}
		if rand.Float64() >= l.deliveryRatio() {
			perf.FramesDropped.Add(1)
			continue
		}
		m.deliver(p, f)
	}
}

// Unicast sends f to f.Dst, retrying up to MaxTransmissions times. It reports whether the
// frame was acknowledged and how many transmissions were used.
func (m *Medium) Unicast(f Frame) (bool, int) {
	l, p, ok := m.link(f.Src, f.Dst)
	if !ok {
		return false, MaxTransmissions
	}
	ratio := l.deliveryRatio()
	for tx := 1; tx <= MaxTransmissions; tx++ {
		if rand.Float64() < ratio {
			return m.deliver(p, f), tx
		}
	}
	perf.FramesDropped.Add(1)
	return false, MaxTransmissions
}
