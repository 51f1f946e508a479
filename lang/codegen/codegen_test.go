// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package codegen_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ccp-project/ccp/lang/codegen"
	"github.com/ccp-project/ccp/lang/parser"
	"github.com/ccp-project/ccp/lang/sema"
	"github.com/ccp-project/ccp/wire"
)

func generate(t *testing.T, src string) *wire.Install {
	t.Helper()
	prog, perrs := parser.Parse("test.ccp", src)
	require.Empty(t, perrs)
	res, serrs := sema.Analyze("test.ccp", prog)
	require.Empty(t, serrs)
	install, err := codegen.Generate(res)
	require.NoError(t, err)
	return install
}

func TestGenerateSimpleAssign(t *testing.T) {
	install := generate(t, `(def) (when true (:= Cwnd (+ Cwnd 1500)))`)

	require.Len(t, install.Events, 1)
	require.Equal(t, wire.ClassImmediate, install.Events[0].PredicateClass)

	// Expect: add Cwnd,1500 -> temp0; bind Cwnd <- temp0.
	require.Len(t, install.Instructions, 2)
	require.Equal(t, wire.OpAdd, install.Instructions[0].Opcode)
	require.Equal(t, wire.OpBind, install.Instructions[1].Opcode)
	require.Equal(t, wire.ClassPermanent, install.Instructions[1].DstClass)
	require.Equal(t, wire.RegCwnd, install.Instructions[1].DstIndex)

	// The `true` predicate and the literal 1500 are both interned; find
	// 1500 by following the add instruction's second operand rather than
	// assuming intern order.
	addIns := install.Instructions[0]
	require.Equal(t, wire.ClassImmediate, addIns.Src2Class)
	require.Equal(t, uint64(1500), install.Immediates[addIns.Src2Index])
}

func TestGenerateInternsSharedImmediates(t *testing.T) {
	install := generate(t, `(def (a 0))
	(when true (:= a (+ 7 7)))`)
	// The `true` predicate and the literal 7 are each interned once, even
	// though 7 appears twice in source.
	require.Len(t, install.Immediates, 2)

	addIns := install.Instructions[0]
	require.Equal(t, addIns.Src1Class, addIns.Src2Class)
	require.Equal(t, addIns.Src1Index, addIns.Src2Index, "both operands of (+ 7 7) should share one interned slot")
}

func TestGenerateIfProducesGuardedPair(t *testing.T) {
	install := generate(t, `(def (a 0))
	(when true (:= a (if (> Cwnd 0) 1 2)))`)

	var ifCount int
	for _, ins := range install.Instructions {
		if ins.Opcode == wire.OpIf {
			ifCount++
		}
	}
	require.Equal(t, 2, ifCount, "if lowers to exactly two guarded OpIf writes")
}

func TestGenerateRejectsTooManyEvents(t *testing.T) {
	src := "(def)"
	for i := 0; i < wire.MaxEvents+1; i++ {
		src += " (when true (fallthrough))"
	}
	prog, perrs := parser.Parse("test.ccp", src)
	require.Empty(t, perrs)
	res, serrs := sema.Analyze("test.ccp", prog)
	require.Empty(t, serrs)

	_, err := codegen.Generate(res)
	require.Error(t, err)
}

func TestGenerateReportAndFallthroughAreNullary(t *testing.T) {
	install := generate(t, `(def) (when true (report) (fallthrough))`)
	require.Len(t, install.Instructions, 2)
	require.Equal(t, wire.OpReport, install.Instructions[0].Opcode)
	require.Equal(t, wire.OpFallthrough, install.Instructions[1].Opcode)
}
