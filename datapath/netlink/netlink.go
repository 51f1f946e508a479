// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

//go:build linux

// Package netlink implements the netlink-multicast datapath.Transport: a
// raw socket in a user netlink protocol family, joined to a fixed
// multicast group, carrying whole CCP frames as netlink payloads.
package netlink

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/ccp-project/ccp/datapath"
)

// DefaultFamily is the netlink protocol family CCP frames ride on. It is a
// user-defined family above NETLINK_GENERIC's reserved range, matching the
// convention real CCP kernel modules use for this purpose.
const DefaultFamily = 22

// DefaultGroup is the multicast group both sides join.
const DefaultGroup = 1

// Transport is a netlink multicast datapath.Transport. Linux-only.
type Transport struct {
	fd     int
	closed chan struct{}
}

// Open creates a raw netlink socket in family, binds it to the calling
// process's pid, and joins group.
func Open(family, group int) (*Transport, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW, family)
	if err != nil {
		return nil, fmt.Errorf("netlink: socket: %w", err)
	}

	sa := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: uint32(1 << (group - 1))}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("netlink: bind: %w", err)
	}

	return &Transport{fd: fd, closed: make(chan struct{})}, nil
}

// SendDatagram wraps b in a netlink message header and writes it whole;
// messages larger than the socket's write buffer fail loudly, per §4.5.
func (t *Transport) SendDatagram(b []byte) error {
	sa := &unix.SockaddrNetlink{Family: unix.AF_NETLINK}
	if err := unix.Sendto(t.fd, nlWrap(b), 0, sa); err != nil {
		return fmt.Errorf("netlink: sendto: %w", err)
	}
	return nil
}

// RecvDatagram blocks on the socket until a datagram arrives or ctx is
// canceled; cancellation is implemented by racing a goroutine against a
// context-done channel, since a raw netlink fd has no native select hook
// exposed at this layer.
func (t *Transport) RecvDatagram(ctx context.Context, buf []byte) (int, error) {
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)

	go func() {
		raw := make([]byte, len(buf)+nlHeaderLen)
		n, _, err := unix.Recvfrom(t.fd, raw, 0)
		if err != nil {
			done <- result{0, fmt.Errorf("netlink: recvfrom: %w", err)}
			return
		}
		body := nlUnwrap(raw[:n])
		done <- result{copy(buf, body), nil}
	}()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-t.closed:
		return 0, &datapath.ErrClosed{Transport: "netlink"}
	case r := <-done:
		return r.n, r.err
	}
}

// Close closes the underlying socket and unblocks any pending RecvDatagram.
func (t *Transport) Close() error {
	close(t.closed)
	return unix.Close(t.fd)
}

// nlHeaderLen is the size of the leading struct nlmsghdr CCP frames ride
// inside of: len(4) + type(2) + flags(2) + seq(4) + pid(4).
const nlHeaderLen = 16

func nlWrap(body []byte) []byte {
	total := nlHeaderLen + len(body)
	buf := make([]byte, total)
	putU32(buf[0:4], uint32(total))
	// type, flags, seq, pid all left zero: CCP does not use netlink's own
	// framing semantics, only its transport.
	copy(buf[nlHeaderLen:], body)
	return buf
}

func nlUnwrap(raw []byte) []byte {
	if len(raw) < nlHeaderLen {
		return nil
	}
	return raw[nlHeaderLen:]
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
