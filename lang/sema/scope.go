// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package sema

import "github.com/ccp-project/ccp/wire"

// Symbol is one resolved name: a permanent register, an Ack.*/Flow.*
// implicit field, or a user-declared Local variable.
type Symbol struct {
	Name     string
	Class    wire.RegClass
	Index    uint8
	Type     GroundType
	ReadOnly bool
	IsReport bool  // only meaningful for Class == ClassLocal
	Volatile bool  // only meaningful for Class == ClassLocal
	Default  uint64 // declared default, as raw bits (bool: 0/1); Class == ClassLocal only
}

// builtin is a fixed-assignment Permanent or Implicit name, known before any
// source is analyzed.
type builtin struct {
	class    wire.RegClass
	index    uint8
	typ      GroundType
	readOnly bool
}

// builtins maps every permanent, Ack.*, and Flow.* name to its fixed
// register. The ordering of the Implicit indices here must match
// wire.Impl* bit-for-bit — it is not re-derived, it is read off the same
// constants codegen and the report decoder use.
var builtins = map[string]builtin{
	"Cwnd":  {wire.ClassPermanent, wire.RegCwnd, TypeUint64, false},
	"Rate":  {wire.ClassPermanent, wire.RegRate, TypeUint64, false},
	"Micros": {wire.ClassPermanent, wire.RegMicros, TypeUint64, false},

	"Ack.bytes_acked":        {wire.ClassImplicit, wire.ImplAckBytesAcked, TypeUint64, true},
	"Ack.packets_acked":      {wire.ClassImplicit, wire.ImplAckPacketsAcked, TypeUint64, true},
	"Ack.bytes_misordered":   {wire.ClassImplicit, wire.ImplAckBytesMisordered, TypeUint64, true},
	"Ack.packets_misordered": {wire.ClassImplicit, wire.ImplAckPacketsMisordered, TypeUint64, true},
	"Ack.ecn_bytes":          {wire.ClassImplicit, wire.ImplAckECNBytes, TypeUint64, true},
	"Ack.ecn_packets":        {wire.ClassImplicit, wire.ImplAckECNPackets, TypeUint64, true},
	"Ack.lost_pkts_sample":   {wire.ClassImplicit, wire.ImplAckLostPktsSample, TypeUint64, true},
	"Ack.now":                {wire.ClassImplicit, wire.ImplAckNow, TypeUint64, true},

	"Flow.was_timeout":      {wire.ClassImplicit, wire.ImplFlowWasTimeout, TypeBool, true},
	"Flow.rtt_sample_us":    {wire.ClassImplicit, wire.ImplFlowRTTSampleUs, TypeUint64, true},
	"Flow.rate_incoming":    {wire.ClassImplicit, wire.ImplFlowRateIncoming, TypeUint64, true},
	"Flow.rate_outgoing":    {wire.ClassImplicit, wire.ImplFlowRateOutgoing, TypeUint64, true},
	"Flow.bytes_in_flight":  {wire.ClassImplicit, wire.ImplFlowBytesInFlight, TypeUint64, true},
	"Flow.packets_in_flight": {wire.ClassImplicit, wire.ImplFlowPacketsInFlight, TypeUint64, true},
	"Flow.bytes_pending":    {wire.ClassImplicit, wire.ImplFlowBytesPending, TypeUint64, true},
	"Flow.snd_cwnd":         {wire.ClassImplicit, wire.ImplFlowSndCwnd, TypeUint64, true},
	"Flow.snd_rate":         {wire.ClassImplicit, wire.ImplFlowSndRate, TypeUint64, true},
}

// Scope is the symbol table produced by analysis of one def block. It is
// retained on the compiled program and reused at report-decode time, so the
// session core can map a Measure payload back to named fields without
// recompiling.
type Scope struct {
	syms    map[string]*Symbol
	ordered []*Symbol // Local-class symbols only, in register-index order
}

func newScope() *Scope {
	return &Scope{syms: make(map[string]*Symbol)}
}

func (s *Scope) define(sym *Symbol) {
	s.syms[sym.Name] = sym
	if sym.Class == wire.ClassLocal {
		s.ordered = append(s.ordered, sym)
	}
}

// Lookup resolves name against user-declared locals first, then builtins.
func (s *Scope) Lookup(name string) (*Symbol, bool) {
	if sym, ok := s.syms[name]; ok {
		return sym, true
	}
	if b, ok := builtins[name]; ok {
		return &Symbol{Name: name, Class: b.class, Index: b.index, Type: b.typ, ReadOnly: b.readOnly}, true
	}
	return nil, false
}

// Locals returns every user-declared Local symbol in register-index order.
func (s *Scope) Locals() []*Symbol { return s.ordered }

// ReportFields returns the Local symbols with IsReport set, in the order
// they were declared — the layout order §4.6 uses for a Measure payload.
func (s *Scope) ReportFields() []*Symbol {
	var out []*Symbol
	for _, sym := range s.ordered {
		if sym.IsReport {
			out = append(out, sym)
		}
	}
	return out
}

// NumDeclaredLocals returns the count of user-declared Local symbols, i.e.
// the Local register indices codegen temporaries are never allowed to
// reuse.
func (s *Scope) NumDeclaredLocals() int { return len(s.ordered) }

// DefaultLocals returns a fresh Local register file sized to size (which
// must be at least NumDeclaredLocals, typically wire.Install.NumLocal),
// with every user-declared index set to its vardecl default. Indices at or
// above NumDeclaredLocals are codegen temporaries and start at zero.
func (s *Scope) DefaultLocals(size int) []uint64 {
	locals := make([]uint64, size)
	for _, sym := range s.ordered {
		locals[sym.Index] = sym.Default
	}
	return locals
}

// Snapshot builds a Measure payload from the current Permanent registers
// and Local register file: Cwnd and Rate first, then the Report fields in
// declaration order. This ordering is the resolved form of the §9 Open
// Question ("Cwnd/Rate before or after user Report fields").
func (s *Scope) Snapshot(cwnd, rate uint64, locals []uint64) []uint64 {
	report := s.ReportFields()
	out := make([]uint64, 0, 2+len(report))
	out = append(out, cwnd, rate)
	for _, sym := range report {
		out = append(out, locals[sym.Index])
	}
	return out
}
