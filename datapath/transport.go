// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package datapath defines the Transport capability the session core talks
// to, and is the parent of the three concrete implementations described in
// §4.5: netlink multicast, a character-device ring-buffer pair, and
// unix-domain datagrams.
package datapath

import "context"

// Transport is the opaque capability set the session core is handed at
// startup: send, recv, close. The core never inspects which concrete
// implementation it holds.
type Transport interface {
	// SendDatagram writes b in full or returns an error; partial writes
	// never happen (all-or-nothing per §4.5).
	SendDatagram(b []byte) error

	// RecvDatagram blocks until a datagram arrives, ctx is canceled, or the
	// transport is closed, returning the number of bytes written into buf.
	RecvDatagram(ctx context.Context, buf []byte) (int, error)

	// Close causes any blocked RecvDatagram to return a terminal error and
	// makes the transport unusable afterward.
	Close() error
}

// ErrClosed is the terminal error RecvDatagram returns once Close has been
// called, per §5's cancellation model.
type ErrClosed struct{ Transport string }

func (e *ErrClosed) Error() string { return e.Transport + ": transport closed" }
