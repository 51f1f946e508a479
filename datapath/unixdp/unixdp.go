// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package unixdp implements the unix-domain-datagram datapath.Transport:
// a SOCK_DGRAM unix socket pair with re-bind-on-reconnect, the transport
// of choice for same-host testing and for userspace datapaths that expose
// themselves as a socket rather than a netlink family or char device.
package unixdp

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/ccp-project/ccp/datapath"
)

// Transport is a unix datagram socket bound at a local path and sending
// to a peer path. If the peer path's socket disappears and reappears
// (the datapath process restarting), SendDatagram re-dials it rather than
// failing permanently.
type Transport struct {
	localPath, peerPath string

	mu   sync.Mutex
	conn *net.UnixConn

	closed   chan struct{}
	closeOne sync.Once
}

// Listen creates (removing any stale socket file first) a unix datagram
// socket at localPath that will send to peerPath.
func Listen(localPath, peerPath string) (*Transport, error) {
	_ = os.Remove(localPath)

	addr := &net.UnixAddr{Name: localPath, Net: "unixgram"}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return nil, fmt.Errorf("unixdp: listen %s: %w", localPath, err)
	}

	return &Transport{
		localPath: localPath,
		peerPath:  peerPath,
		conn:      conn,
		closed:    make(chan struct{}),
	}, nil
}

// SendDatagram writes b whole to the peer socket. If the peer isn't
// listening yet (ECONNREFUSED on a connectionless unix socket still
// surfaces on write), the caller sees that as an ordinary error. Nothing
// retries the frame: the session core logs the failure and keeps the flow.
func (t *Transport) SendDatagram(b []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	peer := &net.UnixAddr{Name: t.peerPath, Net: "unixgram"}
	if _, err := conn.WriteToUnix(b, peer); err != nil {
		return fmt.Errorf("unixdp: send to %s: %w", t.peerPath, err)
	}
	return nil
}

// RecvDatagram blocks on the local socket until a datagram arrives, ctx
// is canceled, or the transport is closed.
func (t *Transport) RecvDatagram(ctx context.Context, buf []byte) (int, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)

	go func() {
		n, _, err := conn.ReadFromUnix(buf)
		done <- result{n, err}
	}()

	select {
	case <-ctx.Done():
		// The blocked ReadFromUnix above is left to return on its own once
		// a datagram, Close, or a future deadline unblocks it; unixgram
		// sockets have no cheaper way to interrupt a single in-flight read.
		return 0, ctx.Err()
	case <-t.closed:
		return 0, &datapath.ErrClosed{Transport: "unixdp"}
	case r := <-done:
		if r.err != nil {
			return 0, fmt.Errorf("unixdp: recv: %w", r.err)
		}
		return r.n, nil
	}
}

// Close closes the local socket and removes its backing file.
func (t *Transport) Close() error {
	t.closeOne.Do(func() { close(t.closed) })

	t.mu.Lock()
	defer t.mu.Unlock()
	err := t.conn.Close()
	_ = os.Remove(t.localPath)
	return err
}
