// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package session

import "github.com/ccp-project/ccp/wire"

// NamedSource is one of the (name, source) pairs an algorithm factory
// returns from Create: the set of programs it wants available on the
// flow, plus which one should be made current immediately.
type NamedSource struct {
	Name   string
	Source string
}

// CreateResult is an algorithm factory's response to a new flow: the
// programs it wants installed and which one starts current.
type CreateResult struct {
	Programs []NamedSource
	Initial  string // must name one of Programs
}

// Report is the decoded payload of a Measure message, named per the
// flow's current program scope: Cwnd, Rate, then Report fields in
// declaration order.
type Report struct {
	Cwnd   uint64
	Rate   uint64
	Fields map[string]uint64 // Report-class field name -> value
}

// ResponseKind tags which of the three shapes of §4.6 a Decision carries.
type ResponseKind int

const (
	// RespNothing: no outbound message; the algorithm observed the report
	// and has no control action to take.
	RespNothing ResponseKind = iota
	// RespInstall: install a brand-new named source, making it current.
	RespInstall
	// RespSwitch: switch to an already-installed program by name.
	RespSwitch
	// RespUpdate: update a list of permanent/user field values in place.
	RespUpdate
)

// Decision is an algorithm's response to a Measure, modeled as exactly one
// of install / switch / update / nothing, per §4.6.
type Decision struct {
	Kind ResponseKind

	// RespInstall
	Install NamedSource

	// RespSwitch
	SwitchTo string

	// RespUpdate
	Updates []wire.FieldUpdate
}

// Nothing is the zero-value no-op Decision.
func Nothing() Decision { return Decision{Kind: RespNothing} }

// InstallDecision requests a brand-new program be compiled and made
// current.
func InstallDecision(name, source string) Decision {
	return Decision{Kind: RespInstall, Install: NamedSource{Name: name, Source: source}}
}

// SwitchDecision requests the flow switch to an already-installed program.
func SwitchDecision(name string) Decision {
	return Decision{Kind: RespSwitch, SwitchTo: name}
}

// UpdateDecision requests a set of field assignments on the current
// program.
func UpdateDecision(updates []wire.FieldUpdate) Decision {
	return Decision{Kind: RespUpdate, Updates: updates}
}

// Algorithm is the capability a caller implements to drive congestion
// control. The session core owns its lifecycle exclusively: one instance
// per flow, created on Create, destroyed on Free.
type Algorithm interface {
	// OnReport handles one decoded Measure, returning at most one
	// Decision.
	OnReport(r Report) Decision

	// Close releases any resources the instance holds. Called exactly
	// once, when the flow is torn down.
	Close()
}

// Factory constructs one Algorithm instance per new flow and describes
// the programs it wants installed up front.
type Factory interface {
	New(info FlowInfo) (Algorithm, CreateResult, error)
}

// FactoryFunc adapts a plain function to the Factory interface.
type FactoryFunc func(info FlowInfo) (Algorithm, CreateResult, error)

func (f FactoryFunc) New(info FlowInfo) (Algorithm, CreateResult, error) { return f(info) }
