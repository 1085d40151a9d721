// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package seglist

import (
	"fmt"
	"unsafe"
)

// memHeap is a memory-only HeapProvider for tests, the same role
// lldb's MemFiler plays for Filer: a fixed-capacity Go slice standing
// in for the real mmap reservation so tests don't need OS mappings and
// can exercise small, easy-to-reason-about heap sizes.
type memHeap struct {
	raw []byte
	top int
}

func newMemHeap(capacity int) *memHeap {
	return &memHeap{raw: make([]byte, capacity)}
}

func (h *memHeap) Base() unsafe.Pointer { return unsafe.Pointer(&h.raw[0]) }

func (h *memHeap) Sbrk(n int) ([]byte, error) {
	newTop := h.top + n
	if newTop > len(h.raw) {
		return nil, fmt.Errorf("memHeap: exhausted (requested %d, %d of %d bytes free)",
			n, len(h.raw)-h.top, len(h.raw))
	}
	h.top = newTop
	return h.raw[:h.top], nil
}

func newTestAllocator(capacity int) (*Allocator, error) {
	cfg := Config{ChunkSize: defaultChunkSize, MaxHeap: capacity}
	a, err := NewWithHeap(cfg, newMemHeap(capacity))
	if err != nil {
		return nil, err
	}
	if err := a.Init(); err != nil {
		return nil, err
	}
	return a, nil
}
