// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package parser implements a recursive-descent parser for the datapath
// program language. The grammar is fully parenthesised prefix notation, so
// no precedence climbing is needed — each '(' op ...) form is parsed
// uniformly regardless of what op is.
package parser

import (
	"fmt"
	"strconv"

	"github.com/ccp-project/ccp/lang/ast"
	"github.com/ccp-project/ccp/lang/lexer"
	"github.com/ccp-project/ccp/lang/token"
)

// ParseError carries the source position of a syntax error alongside its
// message, per spec §4.2 ("errors carry a line/column and the offending
// token").
type ParseError struct {
	Pos token.Position
	Msg string
}

func (e *ParseError) Error() string { return fmt.Sprintf("%s: %s", e.Pos, e.Msg) }

// Parser holds the mutable state for a single parse run.
type Parser struct {
	lex    *lexer.Lexer
	cur    token.Token
	peek   token.Token
	errors []error
}

func newParser(filename, source string) *Parser {
	p := &Parser{lex: lexer.New(filename, source)}
	p.advance()
	p.advance()
	return p
}

// Parse tokenises source, runs the parser, and returns the program AST
// together with any syntax errors collected along the way. The parser does
// not abort on the first error: it tries to resync at the next top-level
// '(' so sibling when-clauses can still be parsed and reported.
func Parse(filename, source string) (*ast.Program, []error) {
	p := newParser(filename, source)
	prog := p.parseProgram()
	return prog, p.errors
}

func (p *Parser) advance() {
	p.cur = p.peek
	p.peek = p.lex.NextToken()
}

func (p *Parser) errorf(pos token.Position, format string, a ...interface{}) {
	p.errors = append(p.errors, &ParseError{Pos: pos, Msg: fmt.Sprintf(format, a...)})
}

func (p *Parser) expect(typ token.Type) (token.Token, bool) {
	if p.cur.Type == typ {
		tok := p.cur
		p.advance()
		return tok, true
	}
	p.errorf(p.cur.Pos, "expected %s, got %s (%q)", typ, p.cur.Type, p.cur.Literal)
	return p.cur, false
}

// syncToNextTopLevelParen skips tokens until EOF or a '(' that is not
// nested inside the token stream already consumed, used for error recovery.
func (p *Parser) syncToNextTopLevelParen() {
	for p.cur.Type != token.EOF && p.cur.Type != token.LPAREN {
		p.advance()
	}
}

func (p *Parser) parseProgram() *ast.Program {
	prog := &ast.Program{}

	def, ok := p.parseDefExpr()
	if !ok {
		p.syncToNextTopLevelParen()
	}
	prog.Def = def

	for p.cur.Type != token.EOF {
		w, ok := p.parseWhenExpr()
		if !ok {
			p.syncToNextTopLevelParen()
			if p.cur.Type == token.EOF {
				break
			}
			continue
		}
		prog.Whens = append(prog.Whens, w)
	}

	return prog
}

// parseDefExpr parses `(def { vardecl | reportblock })`.
func (p *Parser) parseDefExpr() (*ast.DefExpr, bool) {
	if _, ok := p.expect(token.LPAREN); !ok {
		return nil, false
	}
	defTok, ok := p.expect(token.DEF)
	if !ok {
		return nil, false
	}
	d := &ast.DefExpr{Token: defTok}

	for p.cur.Type == token.LPAREN {
		// Disambiguate a `(Report ...)` block from a plain vardecl by
		// peeking past the '(' for the REPORT_BLOCK keyword.
		if p.peek.Type == token.REPORT_BLOCK {
			p.advance() // consume '('
			p.advance() // consume 'Report'
			for p.cur.Type == token.LPAREN {
				vd, ok := p.parseVarDecl()
				if !ok {
					return d, false
				}
				vd.IsReport = true
				d.Vars = append(d.Vars, vd)
			}
			if _, ok := p.expect(token.RPAREN); !ok {
				return d, false
			}
			continue
		}
		vd, ok := p.parseVarDecl()
		if !ok {
			return d, false
		}
		d.Vars = append(d.Vars, vd)
	}

	if _, ok := p.expect(token.RPAREN); !ok {
		return d, false
	}
	return d, true
}

// parseVarDecl parses `(volatile? IDENT literal)`.
func (p *Parser) parseVarDecl() (*ast.VarDecl, bool) {
	if _, ok := p.expect(token.LPAREN); !ok {
		return nil, false
	}
	vd := &ast.VarDecl{}
	if p.cur.Type == token.VOLATILE {
		vd.Volatile = true
		p.advance()
	}
	nameTok, ok := p.expect(token.IDENT)
	if !ok {
		return vd, false
	}
	vd.Token = nameTok
	vd.Name = nameTok.Literal

	lit, ok := p.parseLiteral()
	if !ok {
		return vd, false
	}
	vd.Default = lit

	if _, ok := p.expect(token.RPAREN); !ok {
		return vd, false
	}
	return vd, true
}

func (p *Parser) parseLiteral() (ast.Expr, bool) {
	switch p.cur.Type {
	case token.INT:
		tok := p.cur
		v, err := strconv.ParseUint(tok.Literal, 10, 64)
		if err != nil {
			p.errorf(tok.Pos, "invalid integer literal %q: %v", tok.Literal, err)
			p.advance()
			return nil, false
		}
		p.advance()
		return &ast.IntLit{Token: tok, Value: v}, true
	case token.TRUE, token.FALSE:
		tok := p.cur
		p.advance()
		return &ast.BoolLit{Token: tok, Value: tok.Type == token.TRUE}, true
	default:
		p.errorf(p.cur.Pos, "expected literal, got %s (%q)", p.cur.Type, p.cur.Literal)
		return nil, false
	}
}

// parseWhenExpr parses `(when expr { stmt })`.
func (p *Parser) parseWhenExpr() (*ast.WhenExpr, bool) {
	if _, ok := p.expect(token.LPAREN); !ok {
		return nil, false
	}
	whenTok, ok := p.expect(token.WHEN)
	if !ok {
		return nil, false
	}
	w := &ast.WhenExpr{Token: whenTok}

	cond, ok := p.parseExpr()
	if !ok {
		return w, false
	}
	w.Cond = cond

	for p.cur.Type != token.RPAREN && p.cur.Type != token.EOF {
		stmt, ok := p.parseExpr()
		if !ok {
			return w, false
		}
		w.Body = append(w.Body, stmt)
	}

	if _, ok := p.expect(token.RPAREN); !ok {
		return w, false
	}
	return w, true
}

// parseExpr parses `literal | ident | '(' op { expr } ')'`.
func (p *Parser) parseExpr() (ast.Expr, bool) {
	switch p.cur.Type {
	case token.INT, token.TRUE, token.FALSE:
		return p.parseLiteral()
	case token.IDENT:
		tok := p.cur
		p.advance()
		return &ast.Ident{Token: tok, Value: tok.Literal}, true
	case token.LPAREN:
		return p.parseCall()
	default:
		p.errorf(p.cur.Pos, "expected expression, got %s (%q)", p.cur.Type, p.cur.Literal)
		p.advance()
		return nil, false
	}
}

func (p *Parser) parseCall() (ast.Expr, bool) {
	lparen, _ := p.expect(token.LPAREN)

	opTok := p.cur
	if !opTok.Type.IsOperator() {
		p.errorf(opTok.Pos, "expected operator, got %s (%q)", opTok.Type, opTok.Literal)
		return nil, false
	}
	p.advance()

	call := &ast.CallExpr{Token: lparen, Op: opTok.Literal}
	for p.cur.Type != token.RPAREN && p.cur.Type != token.EOF {
		arg, ok := p.parseExpr()
		if !ok {
			return call, false
		}
		call.Args = append(call.Args, arg)
	}

	if _, ok := p.expect(token.RPAREN); !ok {
		return call, false
	}
	return call, true
}
