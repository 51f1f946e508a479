// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package program_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ccp-project/ccp/ccperr"
	"github.com/ccp-project/ccp/lang/program"
)

func TestHashSourceStableAndSensitive(t *testing.T) {
	a := program.HashSource("(def) (when true (report))")
	b := program.HashSource("(def) (when true (report))")
	c := program.HashSource("(def) (when true (fallthrough))")

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

func TestCompileSuccess(t *testing.T) {
	src := `(def (Report (acked 0)))
	(when true (:= acked Ack.bytes_acked) (report))`

	compiled, err := program.Compile("test", src)
	require.NoError(t, err)
	require.Equal(t, src, compiled.Source)
	require.Equal(t, program.HashSource(src), compiled.Hash)
	require.NotEmpty(t, compiled.Install.Instructions)

	fields := compiled.Scope.ReportFields()
	require.Len(t, fields, 1)
	require.Equal(t, "acked", fields[0].Name)
}

func TestCompileSyntaxError(t *testing.T) {
	_, err := program.Compile("test", "(def (when)")
	require.Error(t, err)

	var cerr *ccperr.Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, ccperr.KindSyntax, cerr.Kind)
}

func TestCompileSemanticError(t *testing.T) {
	_, err := program.Compile("test", "(def) (when true (:= Cwnd undeclared))")
	require.Error(t, err)

	var cerr *ccperr.Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, ccperr.KindSemantic, cerr.Kind)
}

func TestDisassembleShapesOutput(t *testing.T) {
	compiled, err := program.Compile("test", `(def) (when true (report))`)
	require.NoError(t, err)

	text := program.Disassemble(compiled)
	require.Contains(t, text, "perm=")
	require.Contains(t, text, "event 0:")
}
