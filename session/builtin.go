// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package session

import "github.com/ccp-project/ccp/wire"

// constRateSource is a minimal single-event program: on every ACK it
// does nothing but immediately fall through, i.e. it never reports on its
// own — the algorithm drives Cwnd purely via Update responses. It exists
// so cmd/ccpd has something runnable out of the box without depending on
// an external algorithm implementation (algorithm logic itself is out of
// scope for this module).
const constRateSource = `(def)
(when true
  (fallthrough))`

// ConstRate is a reference Algorithm that holds cwnd fixed at its initial
// value and never changes it; useful for exercising the install/update
// plumbing end to end without any real control logic.
type ConstRate struct {
	cwnd uint64
}

// NewConstRateFactory returns a Factory producing ConstRate instances.
func NewConstRateFactory() Factory {
	return FactoryFunc(func(info FlowInfo) (Algorithm, CreateResult, error) {
		algo := &ConstRate{cwnd: uint64(info.InitCwnd)}
		result := CreateResult{
			Programs: []NamedSource{{Name: "const", Source: constRateSource}},
			Initial:  "const",
		}
		return algo, result, nil
	})
}

// OnReport never changes Cwnd; it exists purely to exercise the Measure
// path.
func (c *ConstRate) OnReport(r Report) Decision {
	return UpdateDecision([]wire.FieldUpdate{
		{Class: wire.ClassPermanent, Index: wire.RegCwnd, Value: c.cwnd},
	})
}

// Close releases no resources.
func (c *ConstRate) Close() {}
