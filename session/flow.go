// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package session implements the per-flow registry and dispatch loop that
// sit between a datapath.Transport and registered Algorithm instances: the
// session core of §4.6/§4.7.
package session

import (
	"sync"

	"github.com/ccp-project/ccp/lang/program"
	"github.com/ccp-project/ccp/wire"
)

// State is a flow's position in the lifecycle of §4.6: New, Installed,
// Running, or Closed.
type State int

const (
	StateNew State = iota
	StateInstalled
	StateRunning
	StateClosed
)

var stateNames = [...]string{
	StateNew:       "New",
	StateInstalled: "Installed",
	StateRunning:   "Running",
	StateClosed:    "Closed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// FlowInfo is the 4-tuple and initial parameters carried by a Create
// message, handed to an algorithm factory unchanged.
type FlowInfo struct {
	SocketID uint32
	InitCwnd uint32
	MSS      uint32
	SrcIP    uint32
	SrcPort  uint32
	DstIP    uint32
	DstPort  uint32
}

// namedProgram is one (name, compiled source) pair an algorithm factory
// returned; the flow keeps every installed program by name so a later
// SwitchTo response can reference one without recompiling.
type namedProgram struct {
	name     string
	compiled *program.Compiled
}

// Flow is one session core's view of a single datapath socket: its state,
// its algorithm instance, and every program it has installed.
type Flow struct {
	mu sync.Mutex

	info  FlowInfo
	state State
	algo  Algorithm

	programs map[string]*namedProgram
	current  *namedProgram // nil until the first program is made current

	perm [wire.NumPermanentRegisters]uint64
}

func newFlow(info FlowInfo, algo Algorithm) *Flow {
	return &Flow{
		info:     info,
		state:    StateNew,
		algo:     algo,
		programs: make(map[string]*namedProgram),
	}
}

// State returns the flow's current lifecycle state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// SocketID returns the flow's datapath socket id.
func (f *Flow) SocketID() uint32 { return f.info.SocketID }
