// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package codegen lowers an analyzed AST to the flat register-machine
// instruction vector described in §6 of the design doc: a linear scan over
// the tree, no graph coloring, because the language has no loops and
// if-nesting is bounded (see sema.Analyzer).
package codegen

import (
	"github.com/ccp-project/ccp/ccperr"
	"github.com/ccp-project/ccp/lang/ast"
	"github.com/ccp-project/ccp/lang/sema"
	"github.com/ccp-project/ccp/wire"
)

// operand is a resolved (class, index) pair, the generator's currency while
// walking an expression tree.
type operand struct {
	class   wire.RegClass
	index   uint8
	isTemp  bool // true if it came from the free-list temp pool
}

type immKey struct {
	typ sema.GroundType
	val uint64
}

// Generator lowers one program's when-clauses into a wire.Install body. It
// assumes the def block has already been reduced to a sema.Scope.
type Generator struct {
	scope *sema.Scope

	instrs []wire.Instruction
	events []wire.EventHeader

	immOrder []uint64
	immIndex map[immKey]uint8

	nextTemp  uint8
	freeList  []uint8
	peakLocal uint8
}

// Generate lowers res into an Install body. ProgramUID is left zero; the
// caller (the program cache) assigns it at install time.
func Generate(res *sema.Result) (*wire.Install, error) {
	g := &Generator{
		scope:     res.Scope,
		immIndex:  make(map[immKey]uint8),
		nextTemp:  uint8(len(res.Scope.Locals())),
		peakLocal: uint8(len(res.Scope.Locals())),
	}

	if len(res.Prog.Whens) > wire.MaxEvents {
		return nil, ccperr.New(ccperr.KindResource, "",
			"program declares %d when-clauses, exceeds the %d-event bound", len(res.Prog.Whens), wire.MaxEvents)
	}

	for _, w := range res.Prog.Whens {
		if err := g.genWhen(w); err != nil {
			return nil, err
		}
	}

	if len(g.instrs) > wire.MaxInstructions {
		return nil, ccperr.New(ccperr.KindResource, "",
			"program lowers to %d instructions, exceeds the %d-instruction bound", len(g.instrs), wire.MaxInstructions)
	}
	if int(g.peakLocal) > wire.MaxLocals {
		return nil, ccperr.New(ccperr.KindResource, "",
			"program needs %d Local registers, exceeds the %d bound", g.peakLocal, wire.MaxLocals)
	}
	if len(g.immOrder) > wire.MaxImmediates {
		return nil, ccperr.New(ccperr.KindResource, "",
			"program interns %d immediates, exceeds the %d bound", len(g.immOrder), wire.MaxImmediates)
	}

	return &wire.Install{
		Events:       g.events,
		Instructions: g.instrs,
		Immediates:   g.immOrder,
		NumPerm:      wire.NumPermanentRegisters,
		NumImm:       uint8(len(g.immOrder)),
		NumImplicit:  wire.NumImplicitRegisters,
		NumLocal:     g.peakLocal,
	}, nil
}

func (g *Generator) genWhen(w *ast.WhenExpr) error {
	predOp, err := g.genExpr(w.Cond)
	if err != nil {
		return err
	}
	g.release(predOp)

	offset := len(g.instrs)
	for _, stmt := range w.Body {
		if _, err := g.genStatement(stmt); err != nil {
			return err
		}
	}
	length := len(g.instrs) - offset

	g.events = append(g.events, wire.EventHeader{
		PredicateClass: predOp.class,
		PredicateIndex: predOp.index,
		Offset:         uint16(offset),
		Length:         uint16(length),
	})
	return nil
}

// genStatement lowers a when-body statement: an assignment, a nested if, or
// a bare report/fallthrough.
func (g *Generator) genStatement(e ast.Expr) (operand, error) {
	return g.genExpr(e)
}

func (g *Generator) genExpr(e ast.Expr) (operand, error) {
	switch n := e.(type) {
	case *ast.IntLit:
		idx := g.intern(immKey{sema.TypeUint64, n.Value})
		return operand{class: wire.ClassImmediate, index: idx}, nil

	case *ast.BoolLit:
		v := uint64(0)
		if n.Value {
			v = 1
		}
		idx := g.intern(immKey{sema.TypeBool, v})
		return operand{class: wire.ClassImmediate, index: idx}, nil

	case *ast.Ident:
		sym, ok := g.scope.Lookup(n.Value)
		if !ok {
			return operand{}, ccperr.New(ccperr.KindSemantic, "", "undeclared identifier %q reached codegen", n.Value)
		}
		return operand{class: sym.Class, index: sym.Index}, nil

	case *ast.CallExpr:
		return g.genCall(n)

	default:
		return operand{}, ccperr.New(ccperr.KindSemantic, "", "unsupported expression reached codegen: %s", e.String())
	}
}

var binaryOpcode = map[string]wire.Opcode{
	"+": wire.OpAdd, "-": wire.OpSub, "*": wire.OpMul, "/": wire.OpDiv, "%": wire.OpMod,
	"==": wire.OpEq, "!=": wire.OpNeq, "<": wire.OpLt, ">": wire.OpGt, "<=": wire.OpLte, ">=": wire.OpGte,
	"&&": wire.OpAnd, "||": wire.OpOr,
	"ewma": wire.OpEwma, "max": wire.OpMax, "min": wire.OpMin,
}

func (g *Generator) genCall(c *ast.CallExpr) (operand, error) {
	switch c.Op {
	case "+", "-", "*", "/", "%", "==", "!=", "<", ">", "<=", ">=", "&&", "||", "ewma", "max", "min":
		return g.genBinary(c)
	case ":=", "bind":
		return g.genAssign(c)
	case "if":
		return g.genIf(c)
	case "report":
		g.emit(wire.Instruction{Opcode: wire.OpReport})
		g.emitVolatileResets()
		return operand{}, nil
	case "fallthrough":
		g.emit(wire.Instruction{Opcode: wire.OpFallthrough})
		return operand{}, nil
	default:
		return operand{}, ccperr.New(ccperr.KindSemantic, "", "unknown operator %q reached codegen", c.Op)
	}
}

func (g *Generator) genBinary(c *ast.CallExpr) (operand, error) {
	lhs, err := g.genExpr(c.Args[0])
	if err != nil {
		return operand{}, err
	}
	rhs, err := g.genExpr(c.Args[1])
	if err != nil {
		return operand{}, err
	}
	dst := g.allocTemp()
	g.emit(wire.Instruction{
		Opcode:    binaryOpcode[c.Op],
		DstClass:  wire.ClassLocal,
		DstIndex:  dst,
		Src1Class: lhs.class, Src1Index: lhs.index,
		Src2Class: rhs.class, Src2Index: rhs.index,
	})
	g.release(lhs)
	g.release(rhs)
	return operand{class: wire.ClassLocal, index: dst, isTemp: true}, nil
}

func (g *Generator) genAssign(c *ast.CallExpr) (operand, error) {
	target := c.Args[0].(*ast.Ident)
	sym, ok := g.scope.Lookup(target.Value)
	if !ok {
		return operand{}, ccperr.New(ccperr.KindSemantic, "", "undeclared identifier %q reached codegen", target.Value)
	}
	val, err := g.genExpr(c.Args[1])
	if err != nil {
		return operand{}, err
	}
	g.emit(wire.Instruction{
		Opcode:    wire.OpBind,
		DstClass:  sym.Class,
		DstIndex:  sym.Index,
		Src1Class: val.class, Src1Index: val.index,
	})
	g.release(val)
	return operand{}, nil
}

// genIf lowers `(if cond then else)` to the conditional-move-style pair
// described in §4.4: both branches are evaluated, then written into a
// shared destination guarded by the condition and its complement.
func (g *Generator) genIf(c *ast.CallExpr) (operand, error) {
	cond, err := g.genExpr(c.Args[0])
	if err != nil {
		return operand{}, err
	}
	thenVal, err := g.genExpr(c.Args[1])
	if err != nil {
		return operand{}, err
	}
	elseVal, err := g.genExpr(c.Args[2])
	if err != nil {
		return operand{}, err
	}

	dst := g.allocTemp()
	g.emit(wire.Instruction{
		Opcode:    wire.OpIf,
		DstClass:  wire.ClassLocal, DstIndex: dst,
		Src1Class: cond.class, Src1Index: cond.index,
		Src2Class: thenVal.class, Src2Index: thenVal.index,
	})

	notCondIdx := g.intern(immKey{sema.TypeUint64, 1})
	notCond := g.allocTemp()
	g.emit(wire.Instruction{
		Opcode:    wire.OpSub,
		DstClass:  wire.ClassLocal, DstIndex: notCond,
		Src1Class: wire.ClassImmediate, Src1Index: notCondIdx,
		Src2Class: cond.class, Src2Index: cond.index,
	})
	g.emit(wire.Instruction{
		Opcode:    wire.OpIf,
		DstClass:  wire.ClassLocal, DstIndex: dst,
		Src1Class: wire.ClassLocal, Src1Index: notCond,
		Src2Class: elseVal.class, Src2Index: elseVal.index,
	})

	g.release(cond)
	g.release(thenVal)
	g.release(elseVal)
	g.release(operand{class: wire.ClassLocal, index: notCond, isTemp: true})

	return operand{class: wire.ClassLocal, index: dst, isTemp: true}, nil
}

// emitVolatileResets lowers §4.3's "reset every volatile user field to its
// declared default immediately after report" rule into a plain OpBind per
// volatile Local, the same instruction genAssign already uses for `:=` —
// no new opcode or wire-table addition needed, so a real datapath peer
// executes the reset exactly like any other assignment in the program.
func (g *Generator) emitVolatileResets() {
	for _, sym := range g.scope.Locals() {
		if !sym.Volatile {
			continue
		}
		idx := g.intern(immKey{sym.Type, sym.Default})
		g.emit(wire.Instruction{
			Opcode:    wire.OpBind,
			DstClass:  wire.ClassLocal,
			DstIndex:  sym.Index,
			Src1Class: wire.ClassImmediate, Src1Index: idx,
		})
	}
}

func (g *Generator) emit(ins wire.Instruction) { g.instrs = append(g.instrs, ins) }

func (g *Generator) intern(k immKey) uint8 {
	if idx, ok := g.immIndex[k]; ok {
		return idx
	}
	idx := uint8(len(g.immOrder))
	g.immOrder = append(g.immOrder, k.val)
	g.immIndex[k] = idx
	return idx
}

// allocTemp draws from the free-list first, keeping the Local register file
// as small as possible; nextTemp only grows when the free-list is empty.
func (g *Generator) allocTemp() uint8 {
	if n := len(g.freeList); n > 0 {
		idx := g.freeList[n-1]
		g.freeList = g.freeList[:n-1]
		return idx
	}
	idx := g.nextTemp
	g.nextTemp++
	if g.nextTemp > g.peakLocal {
		g.peakLocal = g.nextTemp
	}
	return idx
}

// release returns a temp's register to the free-list once its last use has
// been passed. Declared user locals and non-Local operands are left alone.
func (g *Generator) release(op operand) {
	if op.isTemp {
		g.freeList = append(g.freeList, op.index)
	}
}
