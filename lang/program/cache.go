// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package program

import (
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"

	"github.com/ccp-project/ccp/metrics"
)

// Cache is the shared, insert-once program cache described in §5: reads
// dominate (every flow that opens with an already-seen source hits it),
// writes are rare (one per distinct source compiled), and a source is not
// recompiled while it stays cached. Entries additionally carry the
// ProgramUID assigned on insert, stable for as long as the entry is
// cached; a source that is evicted and requested again is compiled anew
// and gets a fresh ProgramUID.
//
// hashicorp/golang-lru's Cache is already safe for concurrent use (it holds
// its own internal mutex); we do not add a second lock around it for the
// read path, only around the read-check-then-insert sequence that makes
// insertion idempotent. The LRU eviction policy additionally caps memory
// use for long-lived runtimes that see many distinct algorithm sources over
// time, which a plain map would not.
type Cache struct {
	lru *lru.Cache

	insertMu sync.Mutex
	nextUID  uint32
}

// NewCache creates a cache holding at most size distinct compiled programs.
func NewCache(size int) (*Cache, error) {
	l, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l}, nil
}

// GetOrCompile returns the cached Compiled program for source, compiling
// and inserting it on first sight. Concurrent callers compiling the same
// new source will both compile, but only the first to acquire insertMu
// wins the cache slot and its ProgramUID; the loser discards its copy and
// reuses the winner's, so every reader sees one UID per cached source.
func (c *Cache) GetOrCompile(name, source string) (*Compiled, error) {
	hash := HashSource(source)
	if v, ok := c.lru.Get(hash); ok {
		return v.(*Compiled), nil
	}

	compiled, err := Compile(name, source)
	if err != nil {
		return nil, err
	}

	c.insertMu.Lock()
	defer c.insertMu.Unlock()

	if v, ok := c.lru.Get(hash); ok {
		return v.(*Compiled), nil
	}
	compiled.Install.ProgramUID = c.allocUID()
	c.lru.Add(hash, compiled)
	metrics.ProgramCacheSize.Set(int64(c.lru.Len()))
	return compiled, nil
}

// Lookup returns the cached program for a given source hash, if present.
func (c *Cache) Lookup(hash uint64) (*Compiled, bool) {
	v, ok := c.lru.Get(hash)
	if !ok {
		return nil, false
	}
	return v.(*Compiled), true
}

func (c *Cache) allocUID() uint32 { return atomic.AddUint32(&c.nextUID, 1) }
