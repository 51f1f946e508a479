// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package sema

import (
	"fmt"

	"github.com/ccp-project/ccp/ccperr"
	"github.com/ccp-project/ccp/lang/ast"
	"github.com/ccp-project/ccp/lang/token"
	"github.com/ccp-project/ccp/wire"
)

// Result is everything downstream codegen needs: the resolved scope and the
// program AST it was built from. Analyze never mutates the AST.
type Result struct {
	Scope *Scope
	Prog  *ast.Program
}

// Analyzer walks a parsed program and enforces the seven rules of §4.2:
// single leading def, identifier resolution, declaration uniqueness and
// bound, ground-type rules, report/fallthrough placement, boolean
// conditions, and bounded if-nesting.
type Analyzer struct {
	filename string
	errors   []error
}

// Analyze runs semantic analysis over prog and returns the resolved scope.
// It collects as many errors as it safely can rather than stopping at the
// first one, mirroring the parser's non-aborting style.
func Analyze(filename string, prog *ast.Program) (*Result, []error) {
	a := &Analyzer{filename: filename}
	scope := a.buildScope(prog)
	for _, w := range prog.Whens {
		a.checkWhen(scope, w)
	}
	return &Result{Scope: scope, Prog: prog}, a.errors
}

func (a *Analyzer) errorf(format string, args ...interface{}) {
	a.errors = append(a.errors, ccperr.New(ccperr.KindSemantic, a.filename, format, args...))
}

// buildScope validates rule 1 (def present) and rule 3 (uniqueness + bound)
// while assigning Local register indices in declaration order.
func (a *Analyzer) buildScope(prog *ast.Program) *Scope {
	scope := newScope()

	if prog.Def == nil {
		a.errorf("program has no (def ...) block")
		return scope
	}

	seen := make(map[string]token.Position)
	var nextLocal uint8
	for _, vd := range prog.Def.Vars {
		if prior, ok := seen[vd.Name]; ok {
			a.errorf("duplicate declaration of %q (first declared at %s)", vd.Name, prior)
			continue
		}
		seen[vd.Name] = vd.Token.Pos

		if int(nextLocal) >= wire.MaxLocals {
			a.errorf("too many user fields: %q exceeds the %d-field Local bound", vd.Name, wire.MaxLocals)
			continue
		}

		typ, defVal, err := literalValue(vd.Default)
		if err != nil {
			a.errorf("%s: %v", vd.Token.Pos, err)
			continue
		}

		scope.define(&Symbol{
			Name:     vd.Name,
			Class:    wire.ClassLocal,
			Index:    nextLocal,
			Type:     typ,
			IsReport: vd.IsReport,
			Volatile: vd.Volatile,
			Default:  defVal,
		})
		nextLocal++
	}

	return scope
}

func literalValue(e ast.Expr) (GroundType, uint64, error) {
	switch lit := e.(type) {
	case *ast.IntLit:
		return TypeUint64, lit.Value, nil
	case *ast.BoolLit:
		if lit.Value {
			return TypeBool, 1, nil
		}
		return TypeBool, 0, nil
	default:
		return TypeVoid, 0, fmt.Errorf("default value must be a literal, got %s", e.String())
	}
}

// checkWhen enforces rule 6 (boolean when-condition) and walks the body,
// enforcing rules 2, 4, 5, and 7 along the way.
func (a *Analyzer) checkWhen(scope *Scope, w *ast.WhenExpr) {
	condType, ok := a.typeOfExpr(scope, w.Cond, 0, false)
	if ok && condType != TypeBool {
		a.errorf("%s: when condition must be bool, got %s", posOf(w.Cond), condType)
	}
	for _, stmt := range w.Body {
		a.typeOfExpr(scope, stmt, 0, true)
	}
}

// typeOfExpr computes the ground type of e, or TypeVoid for statement-only
// forms. depth tracks if-nesting (rule 7); atStatement marks a position
// where report/fallthrough/:= are legal (rule 5).
func (a *Analyzer) typeOfExpr(scope *Scope, e ast.Expr, depth int, atStatement bool) (GroundType, bool) {
	switch n := e.(type) {
	case *ast.IntLit:
		return TypeUint64, true
	case *ast.BoolLit:
		return TypeBool, true

	case *ast.Ident:
		sym, ok := scope.Lookup(n.Value)
		if !ok {
			a.errorf("%s: undeclared identifier %q", posOf(e), n.Value)
			return TypeVoid, false
		}
		return sym.Type, true

	case *ast.CallExpr:
		return a.typeOfCall(scope, n, depth, atStatement)

	default:
		a.errorf("%s: unsupported expression %s", posOf(e), e.String())
		return TypeVoid, false
	}
}

func (a *Analyzer) typeOfCall(scope *Scope, c *ast.CallExpr, depth int, atStatement bool) (GroundType, bool) {
	switch c.Op {
	case "+", "-", "*", "/", "%", "ewma", "max", "min":
		return a.checkBinary(scope, c, TypeUint64, TypeUint64, depth)

	case "==", "!=":
		return a.checkEquality(scope, c, depth)

	case "<", ">", "<=", ">=":
		if _, ok := a.checkBinary(scope, c, TypeUint64, TypeBool, depth); ok {
			return TypeBool, true
		}
		return TypeVoid, false

	case "&&", "||":
		return a.checkBinary(scope, c, TypeBool, TypeBool, depth)

	case ":=", "bind":
		if !atStatement {
			a.errorf("%s: %q may only appear as a when-body statement", posOf(c), c.Op)
		}
		return a.checkAssign(scope, c, depth)

	case "if":
		return a.checkIf(scope, c, depth, atStatement)

	case "report", "fallthrough":
		if len(c.Args) != 0 {
			a.errorf("%s: %q takes no arguments", posOf(c), c.Op)
		}
		if !atStatement {
			a.errorf("%s: %q may only appear as a when-body statement (rule 5)", posOf(c), c.Op)
		}
		return TypeVoid, true

	default:
		a.errorf("%s: unknown operator %q", posOf(c), c.Op)
		return TypeVoid, false
	}
}

// checkBinary type-checks a two-operand form where both operands must equal
// wantOperand; resultType is returned as the expression's type on success.
func (a *Analyzer) checkBinary(scope *Scope, c *ast.CallExpr, wantOperand, resultType GroundType, depth int) (GroundType, bool) {
	if len(c.Args) != 2 {
		a.errorf("%s: %q takes exactly 2 arguments, got %d", posOf(c), c.Op, len(c.Args))
		return TypeVoid, false
	}
	lt, lok := a.typeOfExpr(scope, c.Args[0], depth, false)
	rt, rok := a.typeOfExpr(scope, c.Args[1], depth, false)
	if !lok || !rok {
		return TypeVoid, false
	}
	if lt != wantOperand || rt != wantOperand {
		a.errorf("%s: %q requires %s operands, got %s and %s", posOf(c), c.Op, wantOperand, lt, rt)
		return TypeVoid, false
	}
	return resultType, true
}

// checkEquality allows either both-uint64 or both-bool operands; no
// implicit coercion between the two.
func (a *Analyzer) checkEquality(scope *Scope, c *ast.CallExpr, depth int) (GroundType, bool) {
	if len(c.Args) != 2 {
		a.errorf("%s: %q takes exactly 2 arguments, got %d", posOf(c), c.Op, len(c.Args))
		return TypeVoid, false
	}
	lt, lok := a.typeOfExpr(scope, c.Args[0], depth, false)
	rt, rok := a.typeOfExpr(scope, c.Args[1], depth, false)
	if !lok || !rok {
		return TypeVoid, false
	}
	if lt != rt {
		a.errorf("%s: %q requires matching operand types, got %s and %s", posOf(c), c.Op, lt, rt)
		return TypeVoid, false
	}
	return TypeBool, true
}

// checkAssign type-checks `(:= ident expr)` / `(bind ident expr)`: the
// target must be a writable identifier and the value's type must match.
func (a *Analyzer) checkAssign(scope *Scope, c *ast.CallExpr, depth int) (GroundType, bool) {
	if len(c.Args) != 2 {
		a.errorf("%s: %q takes exactly 2 arguments, got %d", posOf(c), c.Op, len(c.Args))
		return TypeVoid, false
	}
	target, ok := c.Args[0].(*ast.Ident)
	if !ok {
		a.errorf("%s: left-hand side of %q must be an identifier", posOf(c), c.Op)
		return TypeVoid, false
	}
	sym, ok := scope.Lookup(target.Value)
	if !ok {
		a.errorf("%s: undeclared identifier %q", posOf(c), target.Value)
		return TypeVoid, false
	}
	if sym.ReadOnly {
		a.errorf("%s: %q is read-only and cannot be assigned", posOf(c), target.Value)
		return TypeVoid, false
	}
	valType, ok := a.typeOfExpr(scope, c.Args[1], depth, false)
	if !ok {
		return TypeVoid, false
	}
	if valType != sym.Type {
		a.errorf("%s: cannot assign %s to %q of type %s", posOf(c), valType, target.Value, sym.Type)
		return TypeVoid, false
	}
	return TypeVoid, true
}

// checkIf enforces a boolean condition, matching branch types, and the
// bounded-nesting rule (rule 7).
func (a *Analyzer) checkIf(scope *Scope, c *ast.CallExpr, depth int, atStatement bool) (GroundType, bool) {
	if depth >= wire.MaxIfDepth {
		a.errorf("%s: if-nesting exceeds the bound of %d", posOf(c), wire.MaxIfDepth)
		return TypeVoid, false
	}
	if len(c.Args) != 3 {
		a.errorf("%s: %q takes exactly 3 arguments (cond, then, else), got %d", posOf(c), c.Op, len(c.Args))
		return TypeVoid, false
	}
	condType, condOK := a.typeOfExpr(scope, c.Args[0], depth+1, false)
	if condOK && condType != TypeBool {
		a.errorf("%s: if condition must be bool, got %s", posOf(c.Args[0]), condType)
	}
	thenType, thenOK := a.typeOfExpr(scope, c.Args[1], depth+1, atStatement)
	elseType, elseOK := a.typeOfExpr(scope, c.Args[2], depth+1, atStatement)
	if !thenOK || !elseOK {
		return TypeVoid, false
	}
	if thenType != elseType {
		a.errorf("%s: if branches must have matching types, got %s and %s", posOf(c), thenType, elseType)
		return TypeVoid, false
	}
	return thenType, true
}

// posOf extracts a printable source position from any expression node.
func posOf(e ast.Expr) token.Position {
	switch n := e.(type) {
	case *ast.Ident:
		return n.Token.Pos
	case *ast.IntLit:
		return n.Token.Pos
	case *ast.BoolLit:
		return n.Token.Pos
	case *ast.CallExpr:
		return n.Token.Pos
	default:
		return token.Position{}
	}
}
