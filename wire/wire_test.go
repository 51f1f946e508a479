// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package wire_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ccp-project/ccp/wire"
)

func TestReadyRoundTrip(t *testing.T) {
	want := wire.Ready{BuildID: 42}
	buf := want.Encode(nil)

	hdr, err := wire.DecodeHeader(buf, len(buf), true)
	require.NoError(t, err)
	require.Equal(t, wire.TypeReady, hdr.Type)

	got, err := wire.DecodeReady(buf[wire.HeaderLen:hdr.Length])
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestCreateRoundTrip(t *testing.T) {
	want := wire.Create{InitCwnd: 10, MSS: 1500, SrcIP: 1, SrcPort: 2, DstIP: 3, DstPort: 4}
	buf := want.Encode(nil, 7)

	hdr, err := wire.DecodeHeader(buf, len(buf), true)
	require.NoError(t, err)
	require.Equal(t, wire.TypeCreate, hdr.Type)
	require.Equal(t, uint32(7), hdr.SocketID)

	got, err := wire.DecodeCreate(buf[wire.HeaderLen:hdr.Length])
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestMeasureRoundTrip(t *testing.T) {
	want := wire.Measure{ProgramUID: 5, Values: []uint64{100, 200, 300}}
	buf := want.Encode(nil, 9)

	hdr, err := wire.DecodeHeader(buf, len(buf), true)
	require.NoError(t, err)

	got, err := wire.DecodeMeasure(buf[wire.HeaderLen:hdr.Length])
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestInstallRoundTripWithImmediates(t *testing.T) {
	want := wire.Install{
		ProgramUID: 3,
		Events: []wire.EventHeader{
			{PredicateClass: wire.ClassImmediate, PredicateIndex: 0, Offset: 0, Length: 1},
		},
		Instructions: []wire.Instruction{
			{Opcode: wire.OpReport},
		},
		Immediates:  []uint64{1, 1500},
		NumPerm:     wire.NumPermanentRegisters,
		NumImm:      2,
		NumImplicit: wire.NumImplicitRegisters,
		NumLocal:    0,
	}
	buf := want.Encode(nil, 11)

	hdr, err := wire.DecodeHeader(buf, len(buf), true)
	require.NoError(t, err)

	got, err := wire.DecodeInstall(buf[wire.HeaderLen:hdr.Length])
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestUpdateRoundTrip(t *testing.T) {
	want := wire.Update{Updates: []wire.FieldUpdate{
		{Class: wire.ClassPermanent, Index: wire.RegCwnd, Value: 10},
		{Class: wire.ClassLocal, Index: 2, Value: 99},
	}}
	buf := want.Encode(nil, 1)

	hdr, err := wire.DecodeHeader(buf, len(buf), true)
	require.NoError(t, err)

	got, err := wire.DecodeUpdate(buf[wire.HeaderLen:hdr.Length])
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestChangeProgRoundTrip(t *testing.T) {
	want := wire.ChangeProg{ProgramUID: 4, Updates: []wire.FieldUpdate{
		{Class: wire.ClassPermanent, Index: wire.RegRate, Value: 55},
	}}
	buf := want.Encode(nil, 2)

	hdr, err := wire.DecodeHeader(buf, len(buf), true)
	require.NoError(t, err)

	got, err := wire.DecodeChangeProg(buf[wire.HeaderLen:hdr.Length])
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestDecodeHeaderRejectsShortBuffer(t *testing.T) {
	_, err := wire.DecodeHeader([]byte{1, 2, 3}, 1<<16, true)
	require.Error(t, err)
	require.ErrorIs(t, err, wire.ErrMalformed)
}

func TestDecodeHeaderRejectsUnknownTypeInStrictMode(t *testing.T) {
	buf := wire.Free{}.Encode(nil, 1)
	buf[0] = 200 // not a valid Type
	_, err := wire.DecodeHeader(buf, len(buf), true)
	require.Error(t, err)

	// Non-strict mode lets an unrecognized type pass through for the
	// caller to skip.
	hdr, err := wire.DecodeHeader(buf, len(buf), false)
	require.NoError(t, err)
	require.EqualValues(t, 200, hdr.Type)
}

func TestInstructionRoundTrip(t *testing.T) {
	want := wire.Instruction{
		Opcode: wire.OpAdd, DstClass: wire.ClassLocal, DstIndex: 1,
		Src1Class: wire.ClassPermanent, Src1Index: wire.RegCwnd,
		Src2Class: wire.ClassImmediate, Src2Index: 0,
	}
	buf := want.Encode(nil)
	require.Len(t, buf, wire.InstructionLen)

	got, err := wire.DecodeInstruction(buf)
	require.NoError(t, err)
	require.Equal(t, want, got)
}
