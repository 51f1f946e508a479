// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package simdp_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ccp-project/ccp/datapath/simdp"
	"github.com/ccp-project/ccp/lang/codegen"
	"github.com/ccp-project/ccp/lang/parser"
	"github.com/ccp-project/ccp/lang/sema"
	"github.com/ccp-project/ccp/wire"
)

func compile(t *testing.T, src string) *wire.Install {
	t.Helper()
	prog, perrs := parser.Parse("test.ccp", src)
	require.Empty(t, perrs)
	res, serrs := sema.Analyze("test.ccp", prog)
	require.Empty(t, serrs)
	install, err := codegen.Generate(res)
	require.NoError(t, err)
	return install
}

func TestRunEventSimpleAssign(t *testing.T) {
	install := compile(t, `(def) (when true (:= Cwnd (+ Cwnd 1500)) (report))`)

	perm := &[wire.NumPermanentRegisters]uint64{0: 10}
	m := simdp.NewMachine(perm, make([]uint64, install.NumLocal))

	out, err := m.RunEvent(install, simdp.AckEvent{})
	require.NoError(t, err)
	require.True(t, out.Reported)
	require.Equal(t, uint64(1510), perm[wire.RegCwnd])
}

func TestRunEventSkipsFalsePredicate(t *testing.T) {
	install := compile(t, `(def) (when false (report))`)
	perm := &[wire.NumPermanentRegisters]uint64{}
	m := simdp.NewMachine(perm, make([]uint64, install.NumLocal))

	out, err := m.RunEvent(install, simdp.AckEvent{})
	require.NoError(t, err)
	require.False(t, out.Reported)
}

func TestRunEventStopsAtMissingFallthrough(t *testing.T) {
	src := `(def (hits 0))
	(when true (:= hits (+ hits 1)) (report))
	(when true (:= hits (+ hits 1)) (report))`
	install := compile(t, src)
	perm := &[wire.NumPermanentRegisters]uint64{}
	locals := make([]uint64, install.NumLocal)
	m := simdp.NewMachine(perm, locals)

	out, err := m.RunEvent(install, simdp.AckEvent{})
	require.NoError(t, err)
	require.True(t, out.Reported, "first event's report should still run")

	// Both bodies increment hits; only the first may run, since it has no
	// fallthrough.
	require.Equal(t, uint64(1), locals[0], "second event must not run after a body without fallthrough")
}

func TestRunEventFallthroughContinuesToNextEvent(t *testing.T) {
	src := `(def (hits 0))
	(when true (:= hits (+ hits 1)) (fallthrough))
	(when true (:= hits (+ hits 1)) (report))`
	install := compile(t, src)
	perm := &[wire.NumPermanentRegisters]uint64{}
	locals := make([]uint64, install.NumLocal)
	m := simdp.NewMachine(perm, locals)

	out, err := m.RunEvent(install, simdp.AckEvent{})
	require.NoError(t, err)
	require.True(t, out.Reported)
	require.Equal(t, uint64(2), locals[0])
}

func TestEvalMaxMinEwma(t *testing.T) {
	install := compile(t, `(def (r 0) (lo 0) (avg 0))
	(when true (:= r (max Cwnd Rate)) (:= lo (min Cwnd Rate)) (:= avg (ewma Cwnd Rate)) (report))`)
	perm := &[wire.NumPermanentRegisters]uint64{wire.RegCwnd: 5, wire.RegRate: 9}
	locals := make([]uint64, install.NumLocal)
	m := simdp.NewMachine(perm, locals)

	_, err := m.RunEvent(install, simdp.AckEvent{})
	require.NoError(t, err)
	require.Equal(t, uint64(9), locals[0])
	require.Equal(t, uint64(5), locals[1])
	require.Equal(t, uint64(9), locals[2], "simdp keeps no ewma window: the second operand wins")
}

func TestDivisionByZero(t *testing.T) {
	install := compile(t, `(def (r 0))
	(when true (:= r (/ Cwnd Rate)) (report))`)
	perm := &[wire.NumPermanentRegisters]uint64{wire.RegCwnd: 10, wire.RegRate: 0}
	m := simdp.NewMachine(perm, make([]uint64, install.NumLocal))

	_, err := m.RunEvent(install, simdp.AckEvent{})
	require.ErrorIs(t, err, simdp.ErrDivisionByZero)
}

// TestReportResetsVolatileField mirrors spec scenario "slow start on every
// ACK": a volatile Report field accumulates bytes_acked across ACKs that
// don't report, then the next report sees the accumulated total and the
// field reads back to its declared default immediately afterward.
func TestReportResetsVolatileField(t *testing.T) {
	install := compile(t, `(def (Report (volatile acked 0)))
	(when (> Ack.lost_pkts_sample 0) (report))
	(when true
	  (:= acked (+ acked Ack.bytes_acked))
	  (:= Cwnd (+ Cwnd Ack.bytes_acked)))`)

	perm := &[wire.NumPermanentRegisters]uint64{wire.RegCwnd: 10000}
	locals := make([]uint64, install.NumLocal)
	m := simdp.NewMachine(perm, locals)

	for i := 0; i < 3; i++ {
		var ack simdp.AckEvent
		ack[wire.ImplAckBytesAcked] = 1500
		out, err := m.RunEvent(install, ack)
		require.NoError(t, err)
		require.False(t, out.Reported)
	}
	require.Equal(t, uint64(4500), locals[0], "acked should have accumulated across three non-reporting ACKs")
	require.Equal(t, uint64(14500), perm[wire.RegCwnd])

	var lossy simdp.AckEvent
	lossy[wire.ImplAckLostPktsSample] = 1
	out, err := m.RunEvent(install, lossy)
	require.NoError(t, err)
	require.True(t, out.Reported)
	require.Zero(t, locals[0], "volatile field must read back as its declared default immediately after report")
	require.Equal(t, uint64(14500), perm[wire.RegCwnd], "a report-only ACK must not re-run the accumulate clause")
}

func TestReadImplicitAckField(t *testing.T) {
	install := compile(t, `(def (seen 0))
	(when true (:= seen Ack.bytes_acked) (report))`)
	perm := &[wire.NumPermanentRegisters]uint64{}
	locals := make([]uint64, install.NumLocal)
	m := simdp.NewMachine(perm, locals)

	var ack simdp.AckEvent
	ack[wire.ImplAckBytesAcked] = 1234

	_, err := m.RunEvent(install, ack)
	require.NoError(t, err)
	require.Equal(t, uint64(1234), locals[0])
}
