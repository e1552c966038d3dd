package core

// This file makes references to RFC 6206:
// https://datatracker.ietf.org/doc/html/rfc6206

import (
	"math/rand/v2"
	"time"

	"github.com/encodeous/dodag/perf"
	"github.com/encodeous/dodag/state"
)

type trickleTimer struct {
	timer *time.Timer
	// gen invalidates callbacks that were already queued when the timer was replaced
	gen uint64
}

func (t *trickleTimer) stop() {
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (n *Node) trickleFor(inst *state.Instance) *trickleTimer {
	t, ok := n.trickle[inst.Id]
	if !ok {
		t = &trickleTimer{}
		n.trickle[inst.Id] = t
	}
	return t
}

// ResetAdvertTimer restarts the trickle timer of inst at its minimum interval. A timer
// already running at the minimum interval is left alone (RFC 6206 4.2).
func (n *Node) ResetAdvertTimer(inst *state.Instance) {
	if inst.DioIntCurrent > inst.DioIntMin {
		inst.DioIntCurrent = inst.DioIntMin
		n.newInterval(inst)
	}
}

// StopTimers cancels advertisement and pending route registration for inst.
func (n *Node) StopTimers(inst *state.Instance) {
	if t, ok := n.trickle[inst.Id]; ok {
		t.stop()
		delete(n.trickle, inst.Id)
	}
	if item := n.pending.Get(inst.Id); item != nil {
		item.Value().Stop()
		n.pending.Delete(inst.Id)
	}
}

// trickleInterval returns the length of the current interval of inst.
func trickleInterval(inst *state.Instance) time.Duration {
	exp := min(int(inst.DioIntCurrent), state.MaxDioIntervalExp)
	return time.Duration(1<<exp) * time.Millisecond
}

// newInterval starts a trickle interval: the advertisement goes out at a random point in
// the second half, unless enough consistent advertisements were heard by then.
func (n *Node) newInterval(inst *state.Instance) {
	interval := trickleInterval(inst)
	at := interval / 2
	if at > 0 {
		at += rand.N(at)
	}
	inst.DioCounter = 0

	t := n.trickleFor(inst)
	t.stop()
	gen := t.gen
	t.timer = n.env.ScheduleTask(func(s *state.State) error {
		if t.gen != gen {
			return nil
		}
		n.transmit(inst)
		t.timer = n.env.ScheduleTask(func(s *state.State) error {
			if t.gen != gen {
				return nil
			}
			n.intervalEnd(inst)
			return nil
		}, interval-at)
		return nil
	}, at)
}

func (n *Node) transmit(inst *state.Instance) {
	if inst.DioRedundancy != 0 && inst.DioCounter >= inst.DioRedundancy {
		perf.AdvertsSuppressed.Add(1)
		return
	}
	n.sendAdvertisement(inst)
}

// intervalEnd doubles the interval up to its maximum and starts the next one.
func (n *Node) intervalEnd(inst *state.Instance) {
	if int(inst.DioIntCurrent) < int(inst.DioIntMin)+int(inst.DioIntDoublings) {
		inst.DioIntCurrent++
	}
	n.newInterval(inst)
}
