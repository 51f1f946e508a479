// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package ast defines the Abstract Syntax Tree for the datapath program
// language: one `def` block of variable declarations followed by one or
// more `when` clauses, in the fully-parenthesised grammar of spec §4.2.
package ast

import (
	"bytes"
	"strconv"

	"github.com/ccp-project/ccp/lang/token"
)

// Node is the base interface every AST node implements.
type Node interface {
	TokenLiteral() string
	String() string
}

// Expr is a marker interface for all expression nodes (includes statements:
// the grammar makes no syntactic distinction between them).
type Expr interface {
	Node
	exprNode()
}

// Program is the root of every parse tree: exactly one def, then the when
// clauses, in source order.
type Program struct {
	Def   *DefExpr
	Whens []*WhenExpr
}

func (p *Program) TokenLiteral() string {
	if p.Def != nil {
		return p.Def.TokenLiteral()
	}
	return ""
}

func (p *Program) String() string {
	var out bytes.Buffer
	if p.Def != nil {
		out.WriteString(p.Def.String())
		out.WriteByte('\n')
	}
	for _, w := range p.Whens {
		out.WriteString(w.String())
		out.WriteByte('\n')
	}
	return out.String()
}

// VarDecl is a single user-field declaration: (volatile? IDENT literal).
// IsReport marks a declaration as having appeared inside the nested
// `(Report ...)` block rather than directly inside `(def ...)`.
type VarDecl struct {
	Token    token.Token // the IDENT token
	Volatile bool
	IsReport bool
	Name     string
	Default  Expr // IntLit or BoolLit
}

func (d *VarDecl) String() string {
	v := ""
	if d.Volatile {
		v = "volatile "
	}
	return "(" + v + d.Name + " " + d.Default.String() + ")"
}

// DefExpr is the top-level `(def ...)` block. Vars preserves source
// declaration order across both plain vardecls and the ones nested inside
// `(Report ...)`, since §3 allocates Local register indices "in declaration
// order" without distinguishing where in the def a field was written.
type DefExpr struct {
	Token token.Token // 'def'
	Vars  []*VarDecl
}

// ReportVars returns the declarations with IsReport set, in declaration
// order — the layout order spec §4.6 uses for a Measure payload.
func (d *DefExpr) ReportVars() []*VarDecl {
	var out []*VarDecl
	for _, v := range d.Vars {
		if v.IsReport {
			out = append(out, v)
		}
	}
	return out
}

// ControlVars returns the declarations with IsReport unset, in declaration order.
func (d *DefExpr) ControlVars() []*VarDecl {
	var out []*VarDecl
	for _, v := range d.Vars {
		if !v.IsReport {
			out = append(out, v)
		}
	}
	return out
}

func (d *DefExpr) TokenLiteral() string { return d.Token.Literal }
func (d *DefExpr) String() string {
	var out bytes.Buffer
	out.WriteString("(def")
	report := d.ReportVars()
	if len(report) > 0 {
		out.WriteString(" (Report")
		for _, v := range report {
			out.WriteString(" " + v.String())
		}
		out.WriteString(")")
	}
	for _, v := range d.ControlVars() {
		out.WriteString(" " + v.String())
	}
	out.WriteString(")")
	return out.String()
}

// WhenExpr is a single `(when cond stmt...)` clause.
type WhenExpr struct {
	Token token.Token // 'when'
	Cond  Expr
	Body  []Expr
}

func (w *WhenExpr) TokenLiteral() string { return w.Token.Literal }
func (w *WhenExpr) String() string {
	var out bytes.Buffer
	out.WriteString("(when " + w.Cond.String())
	for _, s := range w.Body {
		out.WriteString(" " + s.String())
	}
	out.WriteString(")")
	return out.String()
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// Ident references a permanent register, an Ack.*/Flow.* field, or a
// user-declared variable: Cwnd, Ack.bytes_acked, my_var.
type Ident struct {
	Token token.Token
	Value string
}

func (e *Ident) exprNode()           {}
func (e *Ident) TokenLiteral() string { return e.Token.Literal }
func (e *Ident) String() string       { return e.Value }

// IntLit is an unsigned 64-bit integer literal.
type IntLit struct {
	Token token.Token
	Value uint64
}

func (e *IntLit) exprNode()           {}
func (e *IntLit) TokenLiteral() string { return e.Token.Literal }
func (e *IntLit) String() string       { return strconv.FormatUint(e.Value, 10) }

// BoolLit is `true` or `false`.
type BoolLit struct {
	Token token.Token
	Value bool
}

func (e *BoolLit) exprNode()           {}
func (e *BoolLit) TokenLiteral() string { return e.Token.Literal }
func (e *BoolLit) String() string {
	if e.Value {
		return "true"
	}
	return "false"
}

// CallExpr is every parenthesised form `(op expr...)` — arithmetic,
// comparison, logical, `:=`/`bind`, `if`, `report`, `fallthrough`.
// Using one node for all operator forms mirrors the grammar, which gives
// them identical shape; lang/sema is what tells them apart semantically.
type CallExpr struct {
	Token token.Token // the operator token
	Op    string
	Args  []Expr
}

func (e *CallExpr) exprNode()           {}
func (e *CallExpr) TokenLiteral() string { return e.Token.Literal }
func (e *CallExpr) String() string {
	var out bytes.Buffer
	out.WriteString("(" + e.Op)
	for _, a := range e.Args {
		out.WriteString(" " + a.String())
	}
	out.WriteString(")")
	return out.String()
}

// FlattenIdents is a small debug helper collecting every identifier name
// referenced transitively within e, used by tests to sanity-check scope
// resolution without re-walking the tree by hand.
func FlattenIdents(e Expr) []string {
	var out []string
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case *Ident:
			out = append(out, n.Value)
		case *CallExpr:
			for _, a := range n.Args {
				walk(a)
			}
		}
	}
	walk(e)
	return out
}
