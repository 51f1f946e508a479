// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

//go:build linux

package main

import (
	"github.com/ccp-project/ccp/ccpcfg"
	"github.com/ccp-project/ccp/datapath"
	"github.com/ccp-project/ccp/datapath/netlink"
)

func openNetlink(cfg *ccpcfg.Config) (datapath.Transport, error) {
	return netlink.Open(cfg.NetlinkFamily, cfg.NetlinkGroup)
}
