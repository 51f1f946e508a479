// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package program ties the language front-end together: compiling source to
// a Compiled program (instruction vector + scope table), hashing source for
// cache lookups, and disassembling an installed program back to text for
// diagnostics.
package program

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/ccp-project/ccp/ccperr"
	"github.com/ccp-project/ccp/lang/codegen"
	"github.com/ccp-project/ccp/lang/parser"
	"github.com/ccp-project/ccp/lang/sema"
	"github.com/ccp-project/ccp/wire"
)

// Compiled is a program's install-ready instruction vector paired with the
// scope table needed to decode its reports and generate field updates.
type Compiled struct {
	Source string
	Hash   uint64
	Scope  *sema.Scope
	Install wire.Install // ProgramUID is filled in by the cache on insert
}

// HashSource returns the cache key for a source string. Grounded on the
// same xxhash the rest of the pack uses for content-addressed lookups.
func HashSource(source string) uint64 { return xxhash.Sum64String(source) }

// Compile runs the full front-end pipeline: lex, parse, analyze, generate.
// Syntax and semantic errors are joined into a single error; the caller
// does not need to distinguish which stage produced them to surface a
// install-time compile failure to the algorithm.
func Compile(name, source string) (*Compiled, error) {
	prog, perrs := parser.Parse(name, source)
	if len(perrs) > 0 {
		return nil, joinErrors(ccperr.KindSyntax, perrs)
	}

	res, serrs := sema.Analyze(name, prog)
	if len(serrs) > 0 {
		return nil, joinErrors(ccperr.KindSemantic, serrs)
	}

	install, err := codegen.Generate(res)
	if err != nil {
		return nil, err
	}

	return &Compiled{
		Source:  source,
		Hash:    HashSource(source),
		Scope:   res.Scope,
		Install: *install,
	}, nil
}

func joinErrors(kind ccperr.Kind, errs []error) error {
	var b strings.Builder
	for i, e := range errs {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(e.Error())
	}
	return ccperr.New(kind, "", "%s", b.String())
}

// Disassemble renders a compiled program's instruction vector as text, one
// instruction per line, for logging and diagnostics.
func Disassemble(c *Compiled) string {
	var b strings.Builder
	fmt.Fprintf(&b, "; perm=%d imm=%d impl=%d local=%d events=%d instrs=%d\n",
		c.Install.NumPerm, c.Install.NumImm, c.Install.NumImplicit, c.Install.NumLocal,
		len(c.Install.Events), len(c.Install.Instructions))
	for i, ev := range c.Install.Events {
		fmt.Fprintf(&b, "event %d: pred=%s[%d] body=[%d,%d)\n", i, ev.PredicateClass, ev.PredicateIndex, ev.Offset, ev.Offset+ev.Length)
	}
	for i, ins := range c.Install.Instructions {
		fmt.Fprintf(&b, "%4d: %s %s[%d] <- %s[%d], %s[%d]\n", i, ins.Opcode,
			ins.DstClass, ins.DstIndex, ins.Src1Class, ins.Src1Index, ins.Src2Class, ins.Src2Index)
	}
	return b.String()
}
