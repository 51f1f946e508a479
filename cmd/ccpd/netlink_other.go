// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

//go:build !linux

package main

import (
	"fmt"

	"github.com/ccp-project/ccp/ccpcfg"
	"github.com/ccp-project/ccp/datapath"
)

func openNetlink(cfg *ccpcfg.Config) (datapath.Transport, error) {
	return nil, fmt.Errorf("netlink transport is Linux-only")
}
