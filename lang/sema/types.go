// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package sema implements the semantic analyzer for the datapath program
// language: scope resolution, the two-ground-type checker, and the
// structural rules of §4.2 that the parser's grammar alone cannot enforce.
package sema

import "fmt"

// GroundType is one of the language's two ground types, plus the internal
// void sentinel used for statement-only forms (:=, report, fallthrough)
// that never produce a usable value.
type GroundType int

const (
	TypeUint64 GroundType = iota
	TypeBool
	TypeVoid
)

func (t GroundType) String() string {
	switch t {
	case TypeUint64:
		return "uint64"
	case TypeBool:
		return "bool"
	case TypeVoid:
		return "void"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}
