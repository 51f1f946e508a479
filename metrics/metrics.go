// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package metrics exposes the runtime's counters and gauges over expvar,
// grounded in probe/downloader/metrics.go's package-level counter style.
// No metrics client appears anywhere in the retrieval pack, so this stays
// on the standard library's expvar rather than introducing an unrelated
// dependency (see DESIGN.md).
package metrics

import "expvar"

var (
	// FlowsCreated counts every successfully registered Create.
	FlowsCreated = expvar.NewInt("flows_created")
	// FlowsFreed counts every Free that tore down a live flow.
	FlowsFreed = expvar.NewInt("flows_freed")
	// MeasuresDroppedStale counts Measures dropped because their program
	// id did not match the flow's current program.
	MeasuresDroppedStale = expvar.NewInt("measures_dropped_stale")
	// InstallsRejected counts programs that failed to compile or exceeded
	// a datapath resource bound.
	InstallsRejected = expvar.NewInt("installs_rejected")

	// ActiveFlows is a gauge of currently live flows, set by
	// session.Registry each time it creates or removes a flow.
	ActiveFlows = expvar.NewInt("active_flows")
	// ProgramCacheSize is a gauge of distinct compiled programs currently
	// cached.
	ProgramCacheSize = expvar.NewInt("program_cache_size")
)
