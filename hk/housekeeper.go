// Package hk provides mechanism for registering cleanup
// functions which are invoked at specified intervals.
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package hk

import (
	"container/heap"
	"time"

	"github.com/NVIDIA/wasmgate/cmn/cos"
	"github.com/NVIDIA/wasmgate/cmn/debug"
	"github.com/NVIDIA/wasmgate/cmn/mono"
	"github.com/NVIDIA/wasmgate/cmn/nlog"
)

// CleanupFunc does one round of housekeeping and returns the interval until
// it should run again.
type CleanupFunc func() time.Duration

type (
	request struct {
		f       CleanupFunc
		name    string
		initial time.Duration
		reg     bool
	}
	timedAction struct {
		f          CleanupFunc
		name       string
		updateTime int64
	}
	timedActions []timedAction

	housekeeper struct {
		timer   *time.Timer
		actions *timedActions
		workCh  chan request
		stopCh  *cos.StopCh
	}
)

var DefaultHK *housekeeper

// interface guard
var _ cos.Runner = (*housekeeper)(nil)

func init() {
	DefaultHK = &housekeeper{
		workCh:  make(chan request, 16),
		stopCh:  cos.NewStopCh(),
		actions: &timedActions{},
	}
	heap.Init(DefaultHK.actions)
}

func Reg(name string, f CleanupFunc, initial time.Duration) {
	DefaultHK.workCh <- request{reg: true, name: name, f: f, initial: initial}
}

func Unreg(name string) {
	DefaultHK.workCh <- request{reg: false, name: name}
}

//////////////////
// timedActions //
//////////////////

func (tc timedActions) Len() int            { return len(tc) }
func (tc timedActions) Less(i, j int) bool  { return tc[i].updateTime < tc[j].updateTime }
func (tc timedActions) Swap(i, j int)       { tc[i], tc[j] = tc[j], tc[i] }
func (tc timedActions) Peek() *timedAction  { return &tc[0] }
func (tc *timedActions) Push(x any)         { *tc = append(*tc, x.(timedAction)) }
func (tc *timedActions) Pop() any {
	old := *tc
	n := len(old)
	item := old[n-1]
	*tc = old[:n-1]
	return item
}

/////////////////
// housekeeper //
/////////////////

func (*housekeeper) Name() string { return "housekeeper" }

func (hk *housekeeper) Run() error {
	hk.timer = time.NewTimer(time.Hour)
	defer hk.timer.Stop()
	for {
		select {
		case <-hk.stopCh.Listen():
			return nil
		case <-hk.timer.C:
			if hk.actions.Len() == 0 {
				break
			}
			// run all overdue actions, reschedule each by its own interval
			now := mono.NanoTime()
			for hk.actions.Len() > 0 && hk.actions.Peek().updateTime <= now {
				action := heap.Pop(hk.actions).(timedAction)
				ival := action.f()
				if ival < 0 {
					continue // unregistered itself
				}
				action.updateTime = now + int64(ival)
				heap.Push(hk.actions, action)
			}
			hk.rearm()
		case req := <-hk.workCh:
			if req.reg {
				debug.Assert(req.f != nil, req.name)
				heap.Push(hk.actions, timedAction{
					name: req.name, f: req.f,
					updateTime: mono.NanoTime() + int64(req.initial),
				})
			} else {
				hk.removeAction(req.name)
			}
			hk.rearm()
		}
	}
}

func (hk *housekeeper) Stop(err error) {
	nlog.Infof("stopping %s, err: %v", hk.Name(), err)
	hk.stopCh.Close()
}

func (hk *housekeeper) rearm() {
	if hk.actions.Len() == 0 {
		hk.timer.Reset(time.Hour)
		return
	}
	d := time.Duration(hk.actions.Peek().updateTime - mono.NanoTime())
	if d < time.Millisecond {
		d = time.Millisecond
	}
	hk.timer.Reset(d)
}

func (hk *housekeeper) removeAction(name string) {
	for i, action := range *hk.actions {
		if action.name == name {
			heap.Remove(hk.actions, i)
			return
		}
	}
}
