// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package session

import (
	"fmt"
	"sync"

	"github.com/ccp-project/ccp/metrics"
)

// Registry is the exclusive owner of every live Flow, keyed by socket id,
// per §3's flow data model and §5's "flow registry — exclusive owner of
// each flow state."
type Registry struct {
	mu    sync.RWMutex
	flows map[uint32]*Flow
}

func newRegistry() *Registry {
	return &Registry{flows: make(map[uint32]*Flow)}
}

func (r *Registry) create(info FlowInfo, algo Algorithm) (*Flow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.flows[info.SocketID]; exists {
		return nil, fmt.Errorf("session: socket %d already has a flow", info.SocketID)
	}
	f := newFlow(info, algo)
	r.flows[info.SocketID] = f
	metrics.ActiveFlows.Set(int64(len(r.flows)))
	return f, nil
}

func (r *Registry) lookup(socketID uint32) (*Flow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.flows[socketID]
	return f, ok
}

func (r *Registry) remove(socketID uint32) (*Flow, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.flows[socketID]
	if ok {
		delete(r.flows, socketID)
		metrics.ActiveFlows.Set(int64(len(r.flows)))
	}
	return f, ok
}

// Len returns the number of live flows. The active_flows gauge is set
// from the same count inside create and remove, not from Len.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.flows)
}

// AlgorithmRegistry maps a configured algorithm name to its Factory, so
// cmd/ccpd can select one by name at startup (§9's "registry keyed by
// name," grounded in the teacher's consensus-engine selection pattern).
type AlgorithmRegistry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewAlgorithmRegistry creates an empty registry.
func NewAlgorithmRegistry() *AlgorithmRegistry {
	return &AlgorithmRegistry{factories: make(map[string]Factory)}
}

// Register adds a named Factory. Registering the same name twice replaces
// the prior registration, matching a config-reload use case.
func (a *AlgorithmRegistry) Register(name string, f Factory) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.factories[name] = f
}

// Lookup resolves a configured algorithm name to its Factory.
func (a *AlgorithmRegistry) Lookup(name string) (Factory, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	f, ok := a.factories[name]
	return f, ok
}
