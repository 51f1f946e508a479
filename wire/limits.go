// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package wire

// Hard bounds a compiled program must respect; these must match the kernel
// peer bit-for-bit and are enforced before any Install is ever sent.
const (
	MaxEvents       = 16
	MaxInstructions = 256
	MaxLocals       = 32 // report + control combined
	MaxImmediates   = 64

	// MaxIfDepth bounds nested `if` expressions. Not a kernel-wire bound —
	// the language has no loops, so this is the only thing standing between
	// a pathological source and an unbounded codegen recursion.
	MaxIfDepth = 8
)
