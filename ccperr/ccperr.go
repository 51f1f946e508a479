// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package ccperr defines the error taxonomy exposed to algorithm authors by
// §7 of the design doc: Syntax, Semantic, Resource, Protocol, Transport,
// Algorithm. Every error the session core or compiler returns across a
// package boundary is one of these six kinds, so callers can switch on Kind
// without needing to know which internal package produced the error.
package ccperr

import "fmt"

// Kind categorizes an error by its place in the taxonomy.
type Kind int

const (
	// KindSyntax: the lexer or parser rejected program source.
	KindSyntax Kind = iota
	// KindSemantic: a scope/type/structure rule was violated.
	KindSemantic
	// KindResource: codegen output exceeds a datapath bound.
	KindResource
	// KindProtocol: an inbound frame is malformed or references an unknown
	// program or flow.
	KindProtocol
	// KindTransport: the underlying IPC transport failed; may be transient.
	KindTransport
	// KindAlgorithm: raised by an algorithm callback.
	KindAlgorithm
)

var kindNames = [...]string{
	KindSyntax:    "syntax",
	KindSemantic:  "semantic",
	KindResource:  "resource",
	KindProtocol:  "protocol",
	KindTransport: "transport",
	KindAlgorithm: "algorithm",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is the taxonomy-tagged error type returned at package boundaries.
type Error struct {
	Kind Kind
	Pos  string // optional source position, e.g. "prog.ccp:3:12"; empty if n/a
	Msg  string
	Err  error // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Pos != "" {
		return fmt.Sprintf("%s error at %s: %s", e.Kind, e.Pos, e.Msg)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an Error of the given kind with a formatted message.
func New(kind Kind, pos string, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, a...)}
}

// Wrap constructs an Error of the given kind wrapping an existing error.
func Wrap(kind Kind, pos string, err error) *Error {
	return &Error{Kind: kind, Pos: pos, Msg: err.Error(), Err: err}
}
