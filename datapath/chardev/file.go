// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package chardev

import (
	"os"

	"github.com/edsrzf/mmap-go"
)

// mmapFile is the backing *os.File kept alive alongside an mmap.MMap; the
// mapping is only valid while the file descriptor it was created from
// stays open.
type mmapFile struct {
	f *os.File
}

func (m *mmapFile) Close() error { return m.f.Close() }

// openRing opens path (creating and zero-extending it to ringSize if
// necessary) and maps it read-write.
func openRing(path string) (*mmapFile, mmap.MMap, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if info.Size() < ringSize {
		if err := f.Truncate(ringSize); err != nil {
			f.Close()
			return nil, nil, err
		}
	}

	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	return &mmapFile{f: f}, m, nil
}
