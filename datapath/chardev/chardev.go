// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package chardev implements the character-device ring-buffer pair
// transport: two mmap'd files act as a send ring and a receive ring, each
// framed with a 4-byte little-endian length prefix, matching the shape of
// a kernel char-device datapath without needing one present.
package chardev

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/edsrzf/mmap-go"

	"github.com/ccp-project/ccp/datapath"
)

// ringSize is the mmap'd region size per direction. A CCP frame plus its
// 4-byte length prefix must fit inside one ring; ring wraparound is not
// supported, matching the simplicity of the kernel char device this stands
// in for.
const ringSize = 1 << 20 // 1 MiB

// header layout within each ring: a single uint32 "write position" at
// offset 0, advanced by one for every frame written (zero means nothing
// has been written yet), followed by the frame area.
const posOffset = 0
const dataOffset = 4

// Transport is a chardev-style ring-buffer pair. sendRing is written by
// this side and read by the peer; recvRing is the reverse.
type Transport struct {
	sendFile, recvFile *mmapFile
	sendRing, recvRing mmap.MMap

	mu       sync.Mutex
	readPos  uint32
	closed   chan struct{}
	closeOne sync.Once
}

// Open opens (creating if absent) the two backing files at sendPath and
// recvPath and maps them into memory.
func Open(sendPath, recvPath string) (*Transport, error) {
	sendFile, sendMap, err := openRing(sendPath)
	if err != nil {
		return nil, fmt.Errorf("chardev: open send ring: %w", err)
	}
	recvFile, recvMap, err := openRing(recvPath)
	if err != nil {
		sendMap.Unmap()
		sendFile.Close()
		return nil, fmt.Errorf("chardev: open recv ring: %w", err)
	}

	return &Transport{
		sendFile: sendFile, recvFile: recvFile,
		sendRing: sendMap, recvRing: recvMap,
		closed: make(chan struct{}),
	}, nil
}

// SendDatagram writes a length-prefixed frame into the send ring. It does
// not implement wraparound: a frame that would overflow the ring fails
// loudly rather than silently corrupting the next reader's framing.
func (t *Transport) SendDatagram(b []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	need := dataOffset + 4 + len(b)
	if need > len(t.sendRing) {
		return fmt.Errorf("chardev: frame of %d bytes exceeds ring capacity", len(b))
	}

	binary.LittleEndian.PutUint32(t.sendRing[dataOffset:], uint32(len(b)))
	copy(t.sendRing[dataOffset+4:], b)
	next := binary.LittleEndian.Uint32(t.sendRing[posOffset:]) + 1
	if next == 0 {
		next = 1
	}
	binary.LittleEndian.PutUint32(t.sendRing[posOffset:], next)

	return t.sendRing.Flush()
}

// RecvDatagram polls the receive ring's write-position word until it
// advances past what was last consumed, or ctx is canceled. There is no
// blocking primitive on a plain mmap region, so this is a poll loop, the
// same tradeoff a userspace ring reader over a char device makes without
// an accompanying eventfd.
func (t *Transport) RecvDatagram(ctx context.Context, buf []byte) (int, error) {
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-t.closed:
			return 0, &datapath.ErrClosed{Transport: "chardev"}
		case <-ticker.C:
			t.mu.Lock()
			pos := binary.LittleEndian.Uint32(t.recvRing[posOffset:])
			if pos == 0 || pos == t.readPos {
				t.mu.Unlock()
				continue
			}
			n := int(binary.LittleEndian.Uint32(t.recvRing[dataOffset:]))
			if dataOffset+4+n > len(t.recvRing) {
				t.mu.Unlock()
				return 0, fmt.Errorf("chardev: corrupt frame length %d", n)
			}
			copied := copy(buf, t.recvRing[dataOffset+4:dataOffset+4+n])
			t.readPos = pos
			t.mu.Unlock()
			return copied, nil
		}
	}
}

// Close unmaps both rings and closes their backing files.
func (t *Transport) Close() error {
	t.closeOne.Do(func() { close(t.closed) })

	var firstErr error
	if err := t.sendRing.Unmap(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := t.recvRing.Unmap(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := t.sendFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := t.recvFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
