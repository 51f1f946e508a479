// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package ccpcfg holds ccpd's startup configuration and the cli.v1 flag
// set it is parsed from, grounded on cmd/gprobe's flag-to-config pattern.
package ccpcfg

import (
	"fmt"

	cli "gopkg.in/urfave/cli.v1"
)

// TransportKind selects which datapath.Transport implementation ccpd
// constructs at startup.
type TransportKind string

const (
	TransportNetlink TransportKind = "netlink"
	TransportChardev TransportKind = "char-device"
	TransportUnix    TransportKind = "unix"
)

// Config is the fully-resolved set of knobs the runtime needs: transport
// selection, strictness, and the program cache size hint.
type Config struct {
	Transport TransportKind

	// Netlink
	NetlinkFamily int
	NetlinkGroup  int

	// Chardev
	ChardevSendPath string
	ChardevRecvPath string

	// Unix
	UnixLocalPath string
	UnixPeerPath  string

	// StrictMode records the -strict flag. cmd/ccpd does not pass it to the
	// session core, which always decodes headers with strict mode off and
	// skips frames of unknown message types.
	StrictMode bool

	// CacheSize bounds the shared program cache's entry count.
	CacheSize int

	// MetricsAddr, if non-empty, is the address cmd/ccpd serves expvar
	// metrics on.
	MetricsAddr string

	// DumpProgram records the -dump-program flag. cmd/ccpd does not act on
	// it: no program is disassembled, and installs proceed as usual.
	DumpProgram bool

	// DryRun records the -dry-run flag. cmd/ccpd only logs it; the
	// configured transport is opened either way and datapath/simdp is not
	// used.
	DryRun bool
}

var Flags = []cli.Flag{
	cli.StringFlag{Name: "transport", Value: string(TransportUnix), Usage: "datapath transport: netlink, char-device, unix"},
	cli.IntFlag{Name: "netlink.family", Value: 22, Usage: "netlink protocol family"},
	cli.IntFlag{Name: "netlink.group", Value: 1, Usage: "netlink multicast group"},
	cli.StringFlag{Name: "chardev.send", Value: "/tmp/ccp-send.ring", Usage: "chardev send ring path"},
	cli.StringFlag{Name: "chardev.recv", Value: "/tmp/ccp-recv.ring", Usage: "chardev recv ring path"},
	cli.StringFlag{Name: "unix.local", Value: "/tmp/ccp.sock", Usage: "unix datagram local path"},
	cli.StringFlag{Name: "unix.peer", Value: "/tmp/ccp-dp.sock", Usage: "unix datagram peer path"},
	cli.BoolFlag{Name: "strict", Usage: "parsed only; the session core skips unknown message types regardless"},
	cli.IntFlag{Name: "cache.size", Value: 256, Usage: "program cache entry limit"},
	cli.StringFlag{Name: "metrics.addr", Usage: "address to serve expvar metrics on, e.g. :7777"},
	cli.BoolFlag{Name: "dump-program", Usage: "parsed only; no program is disassembled"},
	cli.BoolFlag{Name: "dry-run", Usage: "parsed and logged only; the configured transport is still opened"},
}

// FromContext builds a Config from a parsed cli.Context.
func FromContext(ctx *cli.Context) (*Config, error) {
	c := &Config{
		Transport:       TransportKind(ctx.String("transport")),
		NetlinkFamily:   ctx.Int("netlink.family"),
		NetlinkGroup:    ctx.Int("netlink.group"),
		ChardevSendPath: ctx.String("chardev.send"),
		ChardevRecvPath: ctx.String("chardev.recv"),
		UnixLocalPath:   ctx.String("unix.local"),
		UnixPeerPath:    ctx.String("unix.peer"),
		StrictMode:      ctx.Bool("strict"),
		CacheSize:       ctx.Int("cache.size"),
		MetricsAddr:     ctx.String("metrics.addr"),
		DumpProgram:     ctx.Bool("dump-program"),
		DryRun:          ctx.Bool("dry-run"),
	}

	switch c.Transport {
	case TransportNetlink, TransportChardev, TransportUnix:
	default:
		return nil, fmt.Errorf("ccpcfg: unknown transport %q", c.Transport)
	}
	if c.CacheSize <= 0 {
		return nil, fmt.Errorf("ccpcfg: cache.size must be positive, got %d", c.CacheSize)
	}
	return c, nil
}
