// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package simdp is an in-process simulated datapath: a register-machine
// interpreter for the instruction vector codegen produces, used by tests to
// run compiled programs against synthetic ACK events without a kernel peer.
// cmd/ccpd does not use it; its -dry-run flag does not select it.
package simdp

import (
	"errors"
	"fmt"

	"github.com/ccp-project/ccp/wire"
)

// ErrDivisionByZero is returned by OpDiv/OpMod when the divisor is zero.
var ErrDivisionByZero = errors.New("simdp: division by zero")

// AckEvent is one ACK's worth of Ack.*/Flow.* field values, in the fixed
// Implicit register ordering of wire.Impl*.
type AckEvent [wire.NumImplicitRegisters]uint64

// Machine holds the mutable register state for one flow's currently
// installed program: Permanent registers are owned by the caller and
// shared across programs; Local is the register file of the one program
// this Machine runs. Machine has no install step of its own.
type Machine struct {
	Perm  *[wire.NumPermanentRegisters]uint64
	Local []uint64
}

// NewMachine creates a Machine sharing perm with the flow and using locals
// as its Local register file as given; sizing it and setting declared
// defaults (e.g. via sema.Scope.DefaultLocals) is left to the caller.
func NewMachine(perm *[wire.NumPermanentRegisters]uint64, locals []uint64) *Machine {
	return &Machine{Perm: perm, Local: locals}
}

// Outcome reports what happened while running one ACK event through a
// program's event list.
type Outcome struct {
	Reported bool // an OpReport instruction executed
}

// RunEvent walks prog.Events in source order against ack, executing each
// event's unconditional prelude, then its body if the predicate is
// truthy. A body that does not execute OpFallthrough stops evaluation of
// all later events for this ACK, matching §4.3.
func (m *Machine) RunEvent(prog *wire.Install, ack AckEvent) (Outcome, error) {
	var out Outcome
	pc := 0

	for _, ev := range prog.Events {
		if err := m.run(prog, ack, pc, int(ev.Offset)); err != nil {
			return out, err
		}
		pc = int(ev.Offset)

		pred, err := m.read(prog, ack, wire.RegClass(ev.PredicateClass), ev.PredicateIndex)
		if err != nil {
			return out, err
		}

		bodyEnd := int(ev.Offset) + int(ev.Length)
		if pred == 0 {
			pc = bodyEnd
			continue
		}

		fell, reported, err := m.runBody(prog, ack, pc, bodyEnd)
		if err != nil {
			return out, err
		}
		out.Reported = out.Reported || reported
		pc = bodyEnd
		if !fell {
			break
		}
	}

	return out, nil
}

// run executes a span of instructions with no report/fallthrough tracking;
// used for the unconditional prelude ahead of each event's predicate.
func (m *Machine) run(prog *wire.Install, ack AckEvent, from, to int) error {
	_, _, err := m.runBody(prog, ack, from, to)
	return err
}

func (m *Machine) runBody(prog *wire.Install, ack AckEvent, from, to int) (fellThrough, reported bool, err error) {
	for pc := from; pc < to; pc++ {
		ins := prog.Instructions[pc]
		switch ins.Opcode {
		case wire.OpReport:
			reported = true
			continue
		case wire.OpFallthrough:
			fellThrough = true
			continue
		}

		s1, err := m.read(prog, ack, ins.Src1Class, ins.Src1Index)
		if err != nil {
			return fellThrough, reported, err
		}
		s2, err := m.read(prog, ack, ins.Src2Class, ins.Src2Index)
		if err != nil {
			return fellThrough, reported, err
		}

		result, err := eval(ins.Opcode, s1, s2)
		if err != nil {
			return fellThrough, reported, err
		}

		if ins.Opcode == wire.OpIf {
			// Conditional-move pair (see codegen.genIf): only write dst
			// when the guard (src1) is truthy.
			if s1 == 0 {
				continue
			}
			result = s2
		}

		if err := m.write(ins.DstClass, ins.DstIndex, result); err != nil {
			return fellThrough, reported, err
		}
	}
	return fellThrough, reported, nil
}

func eval(op wire.Opcode, a, b uint64) (uint64, error) {
	switch op {
	case wire.OpAdd:
		return a + b, nil
	case wire.OpSub:
		return a - b, nil
	case wire.OpMul:
		return a * b, nil
	case wire.OpDiv:
		if b == 0 {
			return 0, ErrDivisionByZero
		}
		return a / b, nil
	case wire.OpMod:
		if b == 0 {
			return 0, ErrDivisionByZero
		}
		return a % b, nil
	case wire.OpEq:
		return boolVal(a == b), nil
	case wire.OpNeq:
		return boolVal(a != b), nil
	case wire.OpLt:
		return boolVal(a < b), nil
	case wire.OpGt:
		return boolVal(a > b), nil
	case wire.OpLte:
		return boolVal(a <= b), nil
	case wire.OpGte:
		return boolVal(a >= b), nil
	case wire.OpAnd:
		return boolVal(a != 0 && b != 0), nil
	case wire.OpOr:
		return boolVal(a != 0 || b != 0), nil
	case wire.OpBind, wire.OpIf:
		return a, nil // dst := src1; OpIf's guard/value swap happens in runBody
	case wire.OpEwma, wire.OpMax, wire.OpMin:
		// Opaque beyond arithmetic meaning per §9; the simulated datapath
		// treats them as plain max/min so tests can exercise the opcode
		// without depending on kernel-specific windowing behavior.
		if op == wire.OpMax {
			if a > b {
				return a, nil
			}
			return b, nil
		}
		if op == wire.OpMin {
			if a < b {
				return a, nil
			}
			return b, nil
		}
		return b, nil // ewma: no window state simulated, last value wins
	default:
		return 0, fmt.Errorf("simdp: unsupported opcode %s", op)
	}
}

func boolVal(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func (m *Machine) read(prog *wire.Install, ack AckEvent, class wire.RegClass, index uint8) (uint64, error) {
	switch class {
	case wire.ClassPermanent:
		if int(index) >= len(m.Perm) {
			return 0, fmt.Errorf("simdp: permanent register %d out of range", index)
		}
		return m.Perm[index], nil
	case wire.ClassImmediate:
		if int(index) >= len(prog.Immediates) {
			return 0, fmt.Errorf("simdp: immediate %d out of range", index)
		}
		return prog.Immediates[index], nil
	case wire.ClassImplicit:
		if int(index) >= len(ack) {
			return 0, fmt.Errorf("simdp: implicit register %d out of range", index)
		}
		return ack[index], nil
	case wire.ClassLocal:
		if int(index) >= len(m.Local) {
			return 0, fmt.Errorf("simdp: local register %d out of range", index)
		}
		return m.Local[index], nil
	default:
		return 0, fmt.Errorf("simdp: unknown register class %s", class)
	}
}

func (m *Machine) write(class wire.RegClass, index uint8, v uint64) error {
	switch class {
	case wire.ClassPermanent:
		if int(index) >= len(m.Perm) {
			return fmt.Errorf("simdp: permanent register %d out of range", index)
		}
		m.Perm[index] = v
		return nil
	case wire.ClassLocal:
		if int(index) >= len(m.Local) {
			return fmt.Errorf("simdp: local register %d out of range", index)
		}
		m.Local[index] = v
		return nil
	default:
		return fmt.Errorf("simdp: cannot write to register class %s", class)
	}
}
