// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package session

import (
	"fmt"

	"github.com/ccp-project/ccp/lang/program"
	"github.com/ccp-project/ccp/metrics"
	"github.com/ccp-project/ccp/wire"
)

// handleCreate implements §4.6's Create handling: allocate a flow, run the
// algorithm factory, compile and Install every returned program, then make
// the named initial program current with a ChangeProg that carries the
// flow's permanent register values as its update list.
func (c *Core) handleCreate(socketID uint32, body []byte) {
	create, err := wire.DecodeCreate(body)
	if err != nil {
		c.log.Warn("dropping malformed Create", "err", err)
		return
	}

	info := FlowInfo{
		SocketID: socketID,
		InitCwnd: create.InitCwnd,
		MSS:      create.MSS,
		SrcIP:    create.SrcIP,
		SrcPort:  create.SrcPort,
		DstIP:    create.DstIP,
		DstPort:  create.DstPort,
	}

	algo, result, err := c.factory.New(info)
	if err != nil {
		// §4.7: parse/analyze/factory errors mutate no flow state and send
		// no outbound message.
		c.log.Warn("algorithm factory rejected flow", "socket_id", socketID, "err", err)
		return
	}

	flow, err := c.registry.create(info, algo)
	if err != nil {
		c.log.Warn("duplicate Create", "socket_id", socketID, "err", err)
		algo.Close()
		return
	}
	metrics.FlowsCreated.Add(1)
	flow.perm[wire.RegCwnd] = uint64(create.InitCwnd)

	for _, ns := range result.Programs {
		if err := c.installNamed(flow, ns.Name, ns.Source); err != nil {
			metrics.InstallsRejected.Add(1)
			c.log.Warn("program install failed", "socket_id", socketID, "name", ns.Name, "err", err)
			continue
		}
	}

	initial, ok := flow.programs[result.Initial]
	if !ok {
		c.log.Warn("factory named an initial program it did not return", "socket_id", socketID, "name", result.Initial)
		return
	}
	c.makeCurrent(flow, initial)
}

// installNamed compiles source (via the shared cache) and sends an
// Install frame, recording it under name on the flow without yet making
// it current.
func (c *Core) installNamed(flow *Flow, name, source string) error {
	compiled, err := c.cache.GetOrCompile(name, source)
	if err != nil {
		return err
	}

	flow.mu.Lock()
	flow.programs[name] = &namedProgram{name: name, compiled: compiled}
	flow.mu.Unlock()

	c.sendInstall(compiled.Install, flow.SocketID())
	return nil
}

// makeCurrent switches a flow's current program, sends one ChangeProg whose
// update list carries the flow's Cwnd, Rate and Micros, and advances the
// flow's state per §4.6's transition table.
func (c *Core) makeCurrent(flow *Flow, np *namedProgram) {
	flow.mu.Lock()
	flow.current = np
	// §4.6: first Install ack -> Installed; subsequent installs re-enter
	// Installed regardless of whether the flow was already Running.
	flow.state = StateInstalled
	perm := flow.perm
	flow.mu.Unlock()

	updates := make([]wire.FieldUpdate, 0, wire.NumPermanentRegisters)
	updates = append(updates,
		wire.FieldUpdate{Class: wire.ClassPermanent, Index: wire.RegCwnd, Value: perm[wire.RegCwnd]},
		wire.FieldUpdate{Class: wire.ClassPermanent, Index: wire.RegRate, Value: perm[wire.RegRate]},
		wire.FieldUpdate{Class: wire.ClassPermanent, Index: wire.RegMicros, Value: perm[wire.RegMicros]},
	)
	c.sendChangeProg(wire.ChangeProg{ProgramUID: np.compiled.Install.ProgramUID, Updates: updates}, flow.SocketID())
}

// handleMeasure implements §4.6's Measure handling: look up the flow,
// drop stale reports silently, decode using the current program's scope,
// and deliver to the algorithm.
func (c *Core) handleMeasure(socketID uint32, body []byte) {
	flow, ok := c.registry.lookup(socketID)
	if !ok {
		c.log.Warn("Measure for unknown flow", "socket_id", socketID)
		return
	}

	measure, err := wire.DecodeMeasure(body)
	if err != nil {
		c.log.Warn("dropping malformed Measure", "socket_id", socketID, "err", err)
		return
	}

	flow.mu.Lock()
	if flow.state != StateRunning && flow.state != StateInstalled {
		flow.mu.Unlock()
		c.log.Warn("Measure in unexpected state", "socket_id", socketID, "state", flow.state)
		return
	}
	current := flow.current
	flow.mu.Unlock()

	if current == nil || measure.ProgramUID != current.compiled.Install.ProgramUID {
		metrics.MeasuresDroppedStale.Add(1)
		return // stale report against a program the flow has moved past
	}

	report, err := decodeReport(current.compiled, measure.Values)
	if err != nil {
		c.log.Warn("malformed report payload", "socket_id", socketID, "err", err)
		return
	}

	flow.mu.Lock()
	flow.state = StateRunning
	flow.perm[wire.RegCwnd] = report.Cwnd
	flow.perm[wire.RegRate] = report.Rate
	flow.mu.Unlock()

	decision := flow.algo.OnReport(report)
	c.applyDecision(flow, decision)
}

// decodeReport maps a Measure's flat Values slice back to named fields
// using compiled's scope: Cwnd, Rate, then Report fields in declaration
// order, matching sema.Scope.Snapshot's encoding.
func decodeReport(compiled *program.Compiled, values []uint64) (Report, error) {
	fields := compiled.Scope.ReportFields()
	want := 2 + len(fields)
	if len(values) < want {
		return Report{}, fmt.Errorf("report declares %d values, scope wants %d", len(values), want)
	}

	r := Report{Cwnd: values[0], Rate: values[1], Fields: make(map[string]uint64, len(fields))}
	for i, sym := range fields {
		r.Fields[sym.Name] = values[2+i]
	}
	return r, nil
}

// handleFree implements §4.6's Free handling: destroy the flow and drop
// its algorithm instance.
func (c *Core) handleFree(socketID uint32) {
	flow, ok := c.registry.remove(socketID)
	if !ok {
		c.log.Warn("Free for unknown flow", "socket_id", socketID)
		return
	}
	flow.mu.Lock()
	flow.state = StateClosed
	algo := flow.algo
	flow.mu.Unlock()
	algo.Close()
	metrics.FlowsFreed.Add(1)
}

// applyDecision realizes a Decision as outbound frames: RespInstall sends
// two (an Install, then a ChangeProg making it current), RespSwitch one
// ChangeProg, RespUpdate one Update, and RespNothing none.
func (c *Core) applyDecision(flow *Flow, d Decision) {
	switch d.Kind {
	case RespNothing:
		return

	case RespInstall:
		if err := c.installNamed(flow, d.Install.Name, d.Install.Source); err != nil {
			metrics.InstallsRejected.Add(1)
			c.log.Warn("decision install failed", "socket_id", flow.SocketID(), "name", d.Install.Name, "err", err)
			return
		}
		flow.mu.Lock()
		np := flow.programs[d.Install.Name]
		flow.mu.Unlock()
		c.makeCurrent(flow, np)

	case RespSwitch:
		flow.mu.Lock()
		np, ok := flow.programs[d.SwitchTo]
		flow.mu.Unlock()
		if !ok {
			c.log.Warn("switch to unknown program name", "socket_id", flow.SocketID(), "name", d.SwitchTo)
			return
		}
		c.makeCurrent(flow, np)

	case RespUpdate:
		c.sendUpdate(wire.Update{Updates: d.Updates}, flow.SocketID())
	}
}
