// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package sema_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ccp-project/ccp/lang/parser"
	"github.com/ccp-project/ccp/lang/sema"
	"github.com/ccp-project/ccp/wire"
)

func analyze(t *testing.T, src string) (*sema.Result, []error) {
	t.Helper()
	prog, perrs := parser.Parse("test.ccp", src)
	require.Empty(t, perrs)
	return sema.Analyze("test.ccp", prog)
}

func TestAnalyzeResolvesBuiltins(t *testing.T) {
	res, errs := analyze(t, `(def) (when true (:= Cwnd (+ Cwnd 1500)))`)
	require.Empty(t, errs)

	sym, ok := res.Scope.Lookup("Cwnd")
	require.True(t, ok)
	require.Equal(t, wire.ClassPermanent, sym.Class)
	require.Equal(t, wire.RegCwnd, sym.Index)
}

func TestAnalyzeRejectsUndeclaredIdentifier(t *testing.T) {
	_, errs := analyze(t, `(def) (when true (:= Cwnd (+ Cwnd nope)))`)
	require.NotEmpty(t, errs)
}

func TestAnalyzeRejectsDuplicateDeclaration(t *testing.T) {
	_, errs := analyze(t, `(def (a 0) (a 1)) (when true (fallthrough))`)
	require.NotEmpty(t, errs)
}

func TestAnalyzeRejectsNonBoolWhenCondition(t *testing.T) {
	_, errs := analyze(t, `(def) (when 1 (fallthrough))`)
	require.NotEmpty(t, errs)
}

func TestAnalyzeRejectsReadOnlyAssign(t *testing.T) {
	_, errs := analyze(t, `(def) (when true (:= Ack.bytes_acked 1))`)
	require.NotEmpty(t, errs)
}

func TestAnalyzeReportFieldOrdering(t *testing.T) {
	src := `(def (Report (a 0) (b 1)))
	(when true (report))`
	res, errs := analyze(t, src)
	require.Empty(t, errs)

	fields := res.Scope.ReportFields()
	require.Len(t, fields, 2)
	require.Equal(t, "a", fields[0].Name)
	require.Equal(t, "b", fields[1].Name)
}

func TestAnalyzeEwmaMaxMinAreArithmetic(t *testing.T) {
	_, errs := analyze(t, `(def (r 0))
	(when true (:= r (max (min Cwnd Rate) (ewma r Cwnd))))`)
	require.Empty(t, errs)
}

func TestAnalyzeIfRequiresMatchingBranchTypes(t *testing.T) {
	_, errs := analyze(t, `(def (r 0))
	(when true (:= r (if true 1 false)))`)
	require.NotEmpty(t, errs)
}

func TestAnalyzeIfDepthBound(t *testing.T) {
	inner := "1"
	for i := 0; i < wire.MaxIfDepth+2; i++ {
		inner = "(if true " + inner + " " + inner + ")"
	}
	src := `(def (r 0)) (when true (:= r ` + inner + `))`
	_, errs := analyze(t, src)
	require.NotEmpty(t, errs)
}

func TestAnalyzeReportOnlyAtStatementPosition(t *testing.T) {
	_, errs := analyze(t, `(def) (when true (:= Cwnd (+ Cwnd (report))))`)
	require.NotEmpty(t, errs)
}
