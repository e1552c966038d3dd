package core

import (
	"fmt"

	"github.com/dustin/go-broadcast"
	"github.com/encodeous/dodag/state"
)

// TraceEvent is an engine event raised on a node.
type TraceEvent struct {
	Node  state.NodeId
	Event EngineEvent
	Desc  string
	Args  []any
}

func (t TraceEvent) String() string {
	res := fmt.Sprintf("[%s] %s %s", t.Node, t.Event, t.Desc)
	for i := 0; i+1 < len(t.Args); i += 2 {
		res += fmt.Sprintf(" %v=%v", t.Args[i], t.Args[i+1])
	}
	return res
}

// Trace broadcasts every engine event of the node to registered observers. Observers
// must keep draining their channel until the node stops.
type Trace struct {
	broadcast.Broadcaster
}

func (t *Trace) Init(s *state.State) error {
	t.Broadcaster = broadcast.NewBroadcaster(1024)
	return nil
}

func (t *Trace) Cleanup(s *state.State) error {
	return t.Broadcaster.Close()
}
