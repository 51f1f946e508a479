// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package wire implements the little-endian, length-prefixed framing used
// between the CCP runtime and a datapath peer.
//
// Every message shares an 8-byte header:
//
//	u8  type
//	u8  reserved (zero)
//	u16 length   (total bytes including this header, little-endian)
//	u32 socket_id (zero for Ready)
//
// Decoding is a zero-copy view over the caller's buffer; encoding appends to
// a caller-provided buffer. See §6 of the design doc for the full per-type
// body grammar.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderLen is the fixed size, in bytes, of every message header.
const HeaderLen = 8

// Type identifies the kind of a framed message.
type Type uint8

const (
	TypeReady Type = iota
	TypeCreate
	TypeMeasure
	TypeInstall
	TypeUpdate
	TypeChangeProg
	TypeFree

	typeCount
)

var typeNames = [...]string{
	TypeReady:      "Ready",
	TypeCreate:     "Create",
	TypeMeasure:    "Measure",
	TypeInstall:    "Install",
	TypeUpdate:     "Update",
	TypeChangeProg: "ChangeProg",
	TypeFree:       "Free",
}

func (t Type) String() string {
	if int(t) < len(typeNames) && typeNames[t] != "" {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

func (t Type) Valid() bool { return t < typeCount }

// ErrMalformed is the sentinel wrapped by every framing violation.
var ErrMalformed = errors.New("wire: malformed message")

// Header is the decoded 8-byte frame header.
type Header struct {
	Type     Type
	Length   uint16 // total length including header
	SocketID uint32
}

// Malformed wraps ErrMalformed with a human-readable reason.
type Malformed struct {
	Reason string
}

func (e *Malformed) Error() string   { return "wire: malformed message: " + e.Reason }
func (e *Malformed) Unwrap() error   { return ErrMalformed }
func malformed(format string, a ...interface{}) error {
	return &Malformed{Reason: fmt.Sprintf(format, a...)}
}

// DecodeHeader parses the 8-byte header from the front of buf.
// strict gates rejection of unknown message types; when false, unknown
// types are returned as-is so a caller can skip the body.
func DecodeHeader(buf []byte, mtu int, strict bool) (Header, error) {
	var h Header
	if len(buf) < HeaderLen {
		return h, malformed("length %d < header length %d", len(buf), HeaderLen)
	}
	length := binary.LittleEndian.Uint16(buf[2:4])
	if int(length) > mtu {
		return h, malformed("length %d exceeds transport MTU %d", length, mtu)
	}
	if int(length) < HeaderLen {
		return h, malformed("declared length %d shorter than header", length)
	}
	if len(buf) < int(length) {
		return h, malformed("buffer (%d bytes) shorter than declared length %d", len(buf), length)
	}
	typ := Type(buf[0])
	if strict && !typ.Valid() {
		return h, malformed("unknown message type %d", buf[0])
	}
	h.Type = typ
	h.Length = length
	h.SocketID = binary.LittleEndian.Uint32(buf[4:8])
	return h, nil
}

// appendHeader appends an 8-byte header with the given type and socket id.
// The length field is a placeholder (zero) and must be patched by the
// caller once the body has been appended, via patchLength.
func appendHeader(buf []byte, typ Type, socketID uint32) []byte {
	buf = append(buf, byte(typ), 0, 0, 0)
	buf = binary.LittleEndian.AppendUint32(buf, socketID)
	return buf
}

func patchLength(buf []byte, start int) []byte {
	total := len(buf) - start
	binary.LittleEndian.PutUint16(buf[start+2:start+4], uint16(total))
	return buf
}

// ---------------------------------------------------------------------------
// Ready
// ---------------------------------------------------------------------------

// Ready is sent by the datapath on startup; BuildID gates wire-compatibility
// decisions (see the Open Questions entry in DESIGN.md).
type Ready struct {
	BuildID uint32
}

func (m Ready) Encode(buf []byte) []byte {
	start := len(buf)
	buf = appendHeader(buf, TypeReady, 0)
	buf = binary.LittleEndian.AppendUint32(buf, m.BuildID)
	return patchLength(buf, start)
}

func DecodeReady(body []byte) (Ready, error) {
	if len(body) < 4 {
		return Ready{}, malformed("Ready body too short: %d", len(body))
	}
	return Ready{BuildID: binary.LittleEndian.Uint32(body)}, nil
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

// Create announces a new flow and its 4-tuple / initial parameters.
type Create struct {
	InitCwnd uint32
	MSS      uint32
	SrcIP    uint32
	SrcPort  uint32
	DstIP    uint32
	DstPort  uint32
}

const createBodyLen = 6 * 4

func (m Create) Encode(buf []byte, socketID uint32) []byte {
	start := len(buf)
	buf = appendHeader(buf, TypeCreate, socketID)
	for _, v := range [...]uint32{m.InitCwnd, m.MSS, m.SrcIP, m.SrcPort, m.DstIP, m.DstPort} {
		buf = binary.LittleEndian.AppendUint32(buf, v)
	}
	return patchLength(buf, start)
}

func DecodeCreate(body []byte) (Create, error) {
	if len(body) < createBodyLen {
		return Create{}, malformed("Create body too short: %d", len(body))
	}
	u := func(i int) uint32 { return binary.LittleEndian.Uint32(body[i*4:]) }
	return Create{
		InitCwnd: u(0),
		MSS:      u(1),
		SrcIP:    u(2),
		SrcPort:  u(3),
		DstIP:    u(4),
		DstPort:  u(5),
	}, nil
}

// ---------------------------------------------------------------------------
// Measure
// ---------------------------------------------------------------------------

// Measure carries a report snapshot: the program id it was produced by and
// the raw field values, in the fixed layout decided by the scope table.
type Measure struct {
	ProgramUID uint32
	Values     []uint64
}

func (m Measure) Encode(buf []byte, socketID uint32) []byte {
	start := len(buf)
	buf = appendHeader(buf, TypeMeasure, socketID)
	buf = binary.LittleEndian.AppendUint32(buf, m.ProgramUID)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.Values)))
	for _, v := range m.Values {
		buf = binary.LittleEndian.AppendUint64(buf, v)
	}
	return patchLength(buf, start)
}

func DecodeMeasure(body []byte) (Measure, error) {
	if len(body) < 8 {
		return Measure{}, malformed("Measure body too short: %d", len(body))
	}
	uid := binary.LittleEndian.Uint32(body[0:4])
	n := binary.LittleEndian.Uint32(body[4:8])
	want := 8 + int(n)*8
	if len(body) < want {
		return Measure{}, malformed("Measure declares %d fields but body has %d bytes", n, len(body))
	}
	vals := make([]uint64, n)
	for i := range vals {
		vals[i] = binary.LittleEndian.Uint64(body[8+i*8:])
	}
	return Measure{ProgramUID: uid, Values: vals}, nil
}

// ---------------------------------------------------------------------------
// Install
// ---------------------------------------------------------------------------

// Install carries a compiled program: its event table, flat instruction
// vector, and interned immediate pool, plus the register-class sizes the
// datapath must allocate.
//
// Immediates is not named in the wire table of §6, which lists only the
// num_imm count alongside the other register-class sizes; without the pool
// values a ClassImmediate operand index would be unaddressable on the
// datapath side, so we append the pool after the instruction vector as a
// documented extension (see the Open Questions entry in DESIGN.md).
type Install struct {
	ProgramUID   uint32
	Events       []EventHeader
	Instructions []Instruction
	Immediates   []uint64
	NumPerm      uint8
	NumImm       uint8
	NumImplicit  uint8
	NumLocal     uint8
}

// EventHeader identifies a `when` clause's predicate register and the
// [Offset, Offset+Length) span of its body within the instruction vector.
type EventHeader struct {
	PredicateClass RegClass
	PredicateIndex uint8
	Offset         uint16
	Length         uint16
}

func (m Install) Encode(buf []byte, socketID uint32) []byte {
	start := len(buf)
	buf = appendHeader(buf, TypeInstall, socketID)
	buf = binary.LittleEndian.AppendUint32(buf, m.ProgramUID)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.Events)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.Instructions)))
	buf = append(buf, m.NumPerm, m.NumImm, m.NumImplicit, m.NumLocal)
	for _, e := range m.Events {
		buf = append(buf, byte(e.PredicateClass), e.PredicateIndex)
		buf = binary.LittleEndian.AppendUint16(buf, e.Offset)
		buf = binary.LittleEndian.AppendUint16(buf, e.Length)
	}
	for _, ins := range m.Instructions {
		buf = ins.encode(buf)
	}
	for _, v := range m.Immediates {
		buf = binary.LittleEndian.AppendUint64(buf, v)
	}
	return patchLength(buf, start)
}

const eventHeaderLen = 6

func DecodeInstall(body []byte) (Install, error) {
	if len(body) < 16 {
		return Install{}, malformed("Install body too short: %d", len(body))
	}
	uid := binary.LittleEndian.Uint32(body[0:4])
	numEvents := binary.LittleEndian.Uint32(body[4:8])
	numInstrs := binary.LittleEndian.Uint32(body[8:12])
	numPerm, numImm, numImpl, numLocal := body[12], body[13], body[14], body[15]

	off := 16
	events := make([]EventHeader, numEvents)
	for i := range events {
		if off+eventHeaderLen > len(body) {
			return Install{}, malformed("Install truncated in event table")
		}
		events[i] = EventHeader{
			PredicateClass: RegClass(body[off]),
			PredicateIndex: body[off+1],
			Offset:         binary.LittleEndian.Uint16(body[off+2:]),
			Length:         binary.LittleEndian.Uint16(body[off+4:]),
		}
		off += eventHeaderLen
	}

	instrs := make([]Instruction, numInstrs)
	for i := range instrs {
		if off+InstructionLen > len(body) {
			return Install{}, malformed("Install truncated in instruction vector")
		}
		ins, err := decodeInstruction(body[off : off+InstructionLen])
		if err != nil {
			return Install{}, err
		}
		instrs[i] = ins
		off += InstructionLen
	}

	imms := make([]uint64, numImm)
	for i := range imms {
		if off+8 > len(body) {
			return Install{}, malformed("Install truncated in immediate pool")
		}
		imms[i] = binary.LittleEndian.Uint64(body[off:])
		off += 8
	}

	return Install{
		ProgramUID:   uid,
		Events:       events,
		Instructions: instrs,
		Immediates:   imms,
		NumPerm:      numPerm,
		NumImm:       numImm,
		NumImplicit:  numImpl,
		NumLocal:     numLocal,
	}, nil
}

// ---------------------------------------------------------------------------
// Update / ChangeProg
// ---------------------------------------------------------------------------

// FieldUpdate assigns a new value to a single addressable register.
type FieldUpdate struct {
	Class RegClass
	Index uint8
	Value uint64
}

// Update carries a list of field assignments for the flow's current program.
type Update struct {
	Updates []FieldUpdate
}

func encodeUpdates(buf []byte, updates []FieldUpdate) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(updates)))
	for _, u := range updates {
		buf = append(buf, byte(u.Class), u.Index)
		buf = binary.LittleEndian.AppendUint64(buf, u.Value)
	}
	return buf
}

const fieldUpdateLen = 10 // class(1) + index(1) + value(8)

func decodeUpdates(body []byte) ([]FieldUpdate, int, error) {
	if len(body) < 4 {
		return nil, 0, malformed("update list too short: %d", len(body))
	}
	n := binary.LittleEndian.Uint32(body[0:4])
	off := 4
	want := off + int(n)*fieldUpdateLen
	if len(body) < want {
		return nil, 0, malformed("update list declares %d entries but body has %d bytes", n, len(body))
	}
	out := make([]FieldUpdate, n)
	for i := range out {
		out[i] = FieldUpdate{
			Class: RegClass(body[off]),
			Index: body[off+1],
			Value: binary.LittleEndian.Uint64(body[off+2:]),
		}
		off += fieldUpdateLen
	}
	return out, off, nil
}

func (m Update) Encode(buf []byte, socketID uint32) []byte {
	start := len(buf)
	buf = appendHeader(buf, TypeUpdate, socketID)
	buf = encodeUpdates(buf, m.Updates)
	return patchLength(buf, start)
}

func DecodeUpdate(body []byte) (Update, error) {
	updates, _, err := decodeUpdates(body)
	if err != nil {
		return Update{}, err
	}
	return Update{Updates: updates}, nil
}

// ChangeProg switches the flow's current program, optionally carrying field
// updates to apply alongside the switch.
type ChangeProg struct {
	ProgramUID uint32
	Updates    []FieldUpdate // may be empty
}

func (m ChangeProg) Encode(buf []byte, socketID uint32) []byte {
	start := len(buf)
	buf = appendHeader(buf, TypeChangeProg, socketID)
	buf = binary.LittleEndian.AppendUint32(buf, m.ProgramUID)
	buf = encodeUpdates(buf, m.Updates)
	return patchLength(buf, start)
}

func DecodeChangeProg(body []byte) (ChangeProg, error) {
	if len(body) < 4 {
		return ChangeProg{}, malformed("ChangeProg body too short: %d", len(body))
	}
	uid := binary.LittleEndian.Uint32(body[0:4])
	updates, _, err := decodeUpdates(body[4:])
	if err != nil {
		return ChangeProg{}, err
	}
	return ChangeProg{ProgramUID: uid, Updates: updates}, nil
}

// ---------------------------------------------------------------------------
// Free
// ---------------------------------------------------------------------------

// Free tears down a flow. It carries no body.
type Free struct{}

func (m Free) Encode(buf []byte, socketID uint32) []byte {
	start := len(buf)
	buf = appendHeader(buf, TypeFree, socketID)
	return patchLength(buf, start)
}
