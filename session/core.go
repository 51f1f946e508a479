// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package session

import (
	"context"
	"sync"

	"github.com/ccp-project/ccp/ccperr"
	"github.com/ccp-project/ccp/ccplog"
	"github.com/ccp-project/ccp/datapath"
	"github.com/ccp-project/ccp/lang/program"
	"github.com/ccp-project/ccp/wire"
)

// mtu bounds the buffer the receive loop reads into; it does not gate the
// transport's own framing limits, only the scratch buffer size.
const mtu = 1 << 16

// Core is the session core of §4.6/§4.7: a single cooperative receive
// loop over one Transport, demultiplexing inbound frames to per-flow
// Algorithm instances via a shared Registry and program Cache.
type Core struct {
	transport datapath.Transport
	cache     *program.Cache
	factory   Factory
	log       *ccplog.Logger

	registry *Registry

	sendMu sync.Mutex // serializes outbound frames, per §5

	buildID   uint32
	haveReady bool
}

// Option configures a Core at construction.
type Option func(*Core)

// WithLogger overrides the default discard logger.
func WithLogger(l *ccplog.Logger) Option {
	return func(c *Core) { c.log = l }
}

// New builds a Core that dispatches Create messages to factory, compiling
// programs through cache and talking to the datapath over t.
func New(t datapath.Transport, cache *program.Cache, factory Factory, opts ...Option) *Core {
	c := &Core{
		transport: t,
		cache:     cache,
		factory:   factory,
		registry:  newRegistry(),
		log:       ccplog.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Flows exposes the live-flow registry. The active_flows gauge is kept
// current by the registry itself on every create and remove.
func (c *Core) Flows() *Registry { return c.registry }

// Run drives the receive loop until ctx is canceled or the transport
// closes; only RecvDatagram blocks, per §5's suspension-point rule. Run
// returns nil on a clean shutdown (ctx canceled or transport closed) and
// a non-nil error only for conditions the loop cannot recover from.
func (c *Core) Run(ctx context.Context) error {
	buf := make([]byte, mtu)

	for {
		n, err := c.transport.RecvDatagram(ctx, buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if _, closed := err.(*datapath.ErrClosed); closed {
				return nil
			}
			c.log.Warn("transport recv failed", "err", err)
			return ccperr.Wrap(ccperr.KindTransport, "", err)
		}

		c.dispatch(buf[:n])
	}
}

// dispatch decodes one frame and routes it. Malformed framing is dropped
// per §4.7; the loop continues.
func (c *Core) dispatch(frame []byte) {
	hdr, err := wire.DecodeHeader(frame, mtu, false)
	if err != nil {
		c.log.Warn("dropping malformed frame", "err", err)
		return
	}
	body := frame[wire.HeaderLen:hdr.Length]

	switch hdr.Type {
	case wire.TypeReady:
		c.handleReady(body)
	case wire.TypeCreate:
		c.handleCreate(hdr.SocketID, body)
	case wire.TypeMeasure:
		c.handleMeasure(hdr.SocketID, body)
	case wire.TypeFree:
		c.handleFree(hdr.SocketID)
	default:
		c.log.Warn("dropping frame of unhandled type", "type", hdr.Type)
	}
}

func (c *Core) handleReady(body []byte) {
	ready, err := wire.DecodeReady(body)
	if err != nil {
		c.log.Warn("dropping malformed Ready", "err", err)
		return
	}
	c.buildID = ready.BuildID
	c.haveReady = true
	c.log.Info("datapath ready", "build_id", ready.BuildID)
}

// sendFrame serializes an already-encoded frame and writes it, serialized
// against every other outbound write per §5's single send mutex.
func (c *Core) sendFrame(buf []byte, socketID uint32) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := c.transport.SendDatagram(buf); err != nil {
		// §4.7: transport send errors are logged; the flow stays alive.
		c.log.Warn("send failed", "socket_id", socketID, "err", err)
	}
}

func (c *Core) sendInstall(install wire.Install, socketID uint32) {
	c.sendFrame(install.Encode(nil, socketID), socketID)
}

func (c *Core) sendUpdate(u wire.Update, socketID uint32) {
	c.sendFrame(u.Encode(nil, socketID), socketID)
}

func (c *Core) sendChangeProg(cp wire.ChangeProg, socketID uint32) {
	c.sendFrame(cp.Encode(nil, socketID), socketID)
}
