// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ccp-project/ccp/lang/program"
	"github.com/ccp-project/ccp/wire"
)

// fakeTransport captures every frame sent through it; RecvDatagram and
// Close are unused because these tests call the Core's handle* methods
// directly rather than running Core.Run's receive loop.
type fakeTransport struct {
	sent [][]byte
}

func (f *fakeTransport) SendDatagram(b []byte) error {
	cp := make([]byte, len(b))
	copy(cp, b)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeTransport) RecvDatagram(ctx context.Context, buf []byte) (int, error) {
	panic("not used by these tests")
}

func (f *fakeTransport) Close() error { return nil }

const constSource = `(def) (when true (fallthrough))`
const boostSource = `(def) (when true (:= Cwnd (+ Cwnd 0)) (fallthrough))`

// stepAlgo returns a scripted Decision per call, in order, then
// RespNothing forever after, and records whether Close was invoked.
type stepAlgo struct {
	decisions []Decision
	calls     int
	closed    bool
}

func (s *stepAlgo) OnReport(Report) Decision {
	if s.calls < len(s.decisions) {
		d := s.decisions[s.calls]
		s.calls++
		return d
	}
	s.calls++
	return Nothing()
}

func (s *stepAlgo) Close() { s.closed = true }

func newTestCore(t *testing.T, transport *fakeTransport, algo *stepAlgo) *Core {
	t.Helper()
	cache, err := program.NewCache(8)
	require.NoError(t, err)

	factory := FactoryFunc(func(info FlowInfo) (Algorithm, CreateResult, error) {
		return algo, CreateResult{
			Programs: []NamedSource{{Name: "const", Source: constSource}},
			Initial:  "const",
		}, nil
	})

	return New(transport, cache, factory)
}

// lastProgramUID returns the ProgramUID carried by the most recent Install or
// ChangeProg frame sent, whichever type it is.
func lastProgramUID(t *testing.T, transport *fakeTransport) uint32 {
	t.Helper()
	for i := len(transport.sent) - 1; i >= 0; i-- {
		frame := transport.sent[i]
		hdr, err := wire.DecodeHeader(frame, 1<<16, true)
		require.NoError(t, err)
		body := frame[wire.HeaderLen:hdr.Length]
		switch hdr.Type {
		case wire.TypeChangeProg:
			cp, err := wire.DecodeChangeProg(body)
			require.NoError(t, err)
			return cp.ProgramUID
		case wire.TypeInstall:
			in, err := wire.DecodeInstall(body)
			require.NoError(t, err)
			return in.ProgramUID
		}
	}
	t.Fatal("no Install/ChangeProg frame found")
	return 0
}

func countFramesOfType(t *testing.T, transport *fakeTransport, typ wire.Type) int {
	t.Helper()
	n := 0
	for _, frame := range transport.sent {
		hdr, err := wire.DecodeHeader(frame, 1<<16, true)
		require.NoError(t, err)
		if hdr.Type == typ {
			n++
		}
	}
	return n
}

func TestCreateInstallsAndMakesInitialProgramCurrent(t *testing.T) {
	transport := &fakeTransport{}
	algo := &stepAlgo{}
	c := newTestCore(t, transport, algo)

	create := wire.Create{InitCwnd: 10, MSS: 1500}.Encode(nil, 1)
	hdr, err := wire.DecodeHeader(create, 1<<16, true)
	require.NoError(t, err)
	c.handleCreate(hdr.SocketID, create[wire.HeaderLen:hdr.Length])

	require.Equal(t, 1, countFramesOfType(t, transport, wire.TypeInstall))
	require.Equal(t, 1, countFramesOfType(t, transport, wire.TypeChangeProg))

	flow, ok := c.registry.lookup(1)
	require.True(t, ok)
	require.Equal(t, StateInstalled, flow.State())
}

func TestCreateDuplicateSocketIsRejected(t *testing.T) {
	transport := &fakeTransport{}
	algo := &stepAlgo{}
	c := newTestCore(t, transport, algo)

	create := wire.Create{InitCwnd: 10, MSS: 1500}.Encode(nil, 1)
	hdr, err := wire.DecodeHeader(create, 1<<16, true)
	require.NoError(t, err)

	c.handleCreate(hdr.SocketID, create[wire.HeaderLen:hdr.Length])
	c.handleCreate(hdr.SocketID, create[wire.HeaderLen:hdr.Length])

	require.Equal(t, 1, c.registry.Len(), "second Create for a live socket must not replace the flow")
}

func TestMeasureLifecycleInstallSwitchUpdateNothing(t *testing.T) {
	transport := &fakeTransport{}
	algo := &stepAlgo{decisions: []Decision{
		InstallDecision("boost", boostSource),
		SwitchDecision("const"),
		UpdateDecision([]wire.FieldUpdate{{Class: wire.ClassPermanent, Index: wire.RegRate, Value: 777}}),
	}}
	c := newTestCore(t, transport, algo)

	create := wire.Create{InitCwnd: 10, MSS: 1500}.Encode(nil, 1)
	hdr, err := wire.DecodeHeader(create, 1<<16, true)
	require.NoError(t, err)
	c.handleCreate(hdr.SocketID, create[wire.HeaderLen:hdr.Length])

	measureFor := func(uid uint32) []byte {
		m := wire.Measure{ProgramUID: uid, Values: []uint64{10, 0}}.Encode(nil, 1)
		h, err := wire.DecodeHeader(m, 1<<16, true)
		require.NoError(t, err)
		return m[wire.HeaderLen:h.Length]
	}

	// 1: const reports -> algorithm installs "boost" and switches to it.
	constUID := lastProgramUID(t, transport)
	c.handleMeasure(1, measureFor(constUID))
	require.Equal(t, 2, countFramesOfType(t, transport, wire.TypeInstall), "boost should have been installed")

	flow, ok := c.registry.lookup(1)
	require.True(t, ok)
	require.Equal(t, "boost", flow.current.name)

	// 2: boost reports -> algorithm switches back to "const" (no new Install).
	boostUID := lastProgramUID(t, transport)
	require.NotEqual(t, constUID, boostUID)
	c.handleMeasure(1, measureFor(boostUID))
	require.Equal(t, 2, countFramesOfType(t, transport, wire.TypeInstall), "switching to an already-installed program must not reinstall")
	require.Equal(t, "const", flow.current.name)

	// 3: const reports again -> algorithm pushes a field Update.
	c.handleMeasure(1, measureFor(constUID))
	require.Equal(t, 1, countFramesOfType(t, transport, wire.TypeUpdate))

	// 4: further reports with no scripted decision produce no new frame.
	sentBefore := len(transport.sent)
	c.handleMeasure(1, measureFor(constUID))
	require.Equal(t, sentBefore, len(transport.sent), "RespNothing must not send a frame")
}

func TestMeasureAgainstStaleProgramUIDIsDropped(t *testing.T) {
	transport := &fakeTransport{}
	algo := &stepAlgo{}
	c := newTestCore(t, transport, algo)

	create := wire.Create{InitCwnd: 10, MSS: 1500}.Encode(nil, 1)
	hdr, err := wire.DecodeHeader(create, 1<<16, true)
	require.NoError(t, err)
	c.handleCreate(hdr.SocketID, create[wire.HeaderLen:hdr.Length])

	stale := wire.Measure{ProgramUID: 99999, Values: []uint64{1, 2}}.Encode(nil, 1)
	h, err := wire.DecodeHeader(stale, 1<<16, true)
	require.NoError(t, err)
	c.handleMeasure(1, stale[wire.HeaderLen:h.Length])

	require.Equal(t, 0, algo.calls, "a stale-UID Measure must never reach the algorithm")
}

func TestFreeClosesAlgorithmAndRemovesFlow(t *testing.T) {
	transport := &fakeTransport{}
	algo := &stepAlgo{}
	c := newTestCore(t, transport, algo)

	create := wire.Create{InitCwnd: 10, MSS: 1500}.Encode(nil, 1)
	hdr, err := wire.DecodeHeader(create, 1<<16, true)
	require.NoError(t, err)
	c.handleCreate(hdr.SocketID, create[wire.HeaderLen:hdr.Length])

	c.handleFree(1)

	require.True(t, algo.closed)
	require.Equal(t, 0, c.registry.Len())
}

func TestFreeForUnknownSocketIsNoop(t *testing.T) {
	transport := &fakeTransport{}
	c := newTestCore(t, transport, &stepAlgo{})

	require.NotPanics(t, func() { c.handleFree(42) })
}
