// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package wire

import "fmt"

// RegClass is the address-space tag of an instruction operand.
// The numbering is part of the external contract with the datapath and
// must never be reordered.
type RegClass uint8

const (
	ClassPermanent RegClass = iota // Cwnd, Rate, Micros
	ClassImmediate                 // interned integer/boolean constants
	ClassImplicit                  // Ack.*/Flow.* fields, fixed ordering
	ClassLocal                     // user Report + Control variables

	classCount
)

var classNames = [...]string{
	ClassPermanent: "Permanent",
	ClassImmediate: "Immediate",
	ClassImplicit:  "Implicit",
	ClassLocal:     "Local",
}

func (c RegClass) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("RegClass(%d)", uint8(c))
}

// Permanent register indices, fixed by the wire contract.
const (
	RegCwnd  uint8 = 0
	RegRate  uint8 = 1
	RegMicros uint8 = 2
)

// Implicit register indices. Order is fixed bit-for-bit with the kernel
// peer; see §3 of the design doc for the field list this indexes into.
const (
	ImplAckBytesAcked uint8 = iota
	ImplAckPacketsAcked
	ImplAckBytesMisordered
	ImplAckPacketsMisordered
	ImplAckECNBytes
	ImplAckECNPackets
	ImplAckLostPktsSample
	ImplAckNow
	ImplFlowWasTimeout
	ImplFlowRTTSampleUs
	ImplFlowRateIncoming
	ImplFlowRateOutgoing
	ImplFlowBytesInFlight
	ImplFlowPacketsInFlight
	ImplFlowBytesPending
	ImplFlowSndCwnd
	ImplFlowSndRate

	implicitCount
)

// NumPermanentRegisters and NumImplicitRegisters are the fixed sizes of
// their respective address spaces, used by codegen to fill in an Install
// message's register-class counts.
const (
	NumPermanentRegisters = 3 // Cwnd, Rate, Micros
	NumImplicitRegisters  = implicitCount
)

// Opcode is the 8-bit instruction code executed by the datapath.
type Opcode uint8

const (
	OpAdd Opcode = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNeq
	OpLt
	OpGt
	OpLte
	OpGte
	OpAnd
	OpOr
	OpBind
	OpIf
	OpWhenHeader
	OpFallthrough
	OpReport
	OpEwma
	OpMax
	OpMin

	opcodeCount
)

var opcodeNames = [...]string{
	OpAdd:         "ADD",
	OpSub:         "SUB",
	OpMul:         "MUL",
	OpDiv:         "DIV",
	OpMod:         "MOD",
	OpEq:          "EQ",
	OpNeq:         "NEQ",
	OpLt:          "LT",
	OpGt:          "GT",
	OpLte:         "LTE",
	OpGte:         "GTE",
	OpAnd:         "AND",
	OpOr:          "OR",
	OpBind:        "BIND",
	OpIf:          "IF",
	OpWhenHeader:  "WHEN_HEADER",
	OpFallthrough: "FALLTHROUGH",
	OpReport:      "REPORT",
	OpEwma:        "EWMA",
	OpMax:         "MAX",
	OpMin:         "MIN",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", uint8(op))
}

func (op Opcode) Valid() bool { return op < opcodeCount }

// InstructionLen is the fixed wire size, in bytes, of one instruction:
// opcode | dst_class | dst_index | src1_class | src1_index | src2_class | src2_index | flags.
const InstructionLen = 8

// Instruction is one 3-address operation: dst = op(src1, src2).
// Nullary opcodes (Report, Fallthrough) leave all operand fields zero.
type Instruction struct {
	Opcode    Opcode
	DstClass  RegClass
	DstIndex  uint8
	Src1Class RegClass
	Src1Index uint8
	Src2Class RegClass
	Src2Index uint8
	Flags     uint8
}

func (ins Instruction) encode(buf []byte) []byte {
	return append(buf,
		byte(ins.Opcode),
		byte(ins.DstClass), ins.DstIndex,
		byte(ins.Src1Class), ins.Src1Index,
		byte(ins.Src2Class), ins.Src2Index,
		ins.Flags,
	)
}

// Encode appends the 8-byte wire encoding of ins to buf.
func (ins Instruction) Encode(buf []byte) []byte { return ins.encode(buf) }

func decodeInstruction(b []byte) (Instruction, error) {
	if len(b) < InstructionLen {
		return Instruction{}, malformed("instruction body too short: %d", len(b))
	}
	return Instruction{
		Opcode:    Opcode(b[0]),
		DstClass:  RegClass(b[1]),
		DstIndex:  b[2],
		Src1Class: RegClass(b[3]),
		Src1Index: b[4],
		Src2Class: RegClass(b[5]),
		Src2Index: b[6],
		Flags:     b[7],
	}, nil
}

// DecodeInstruction decodes a single 8-byte instruction from b.
func DecodeInstruction(b []byte) (Instruction, error) { return decodeInstruction(b) }
