// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package seglist

import "fmt"

// defaultChunkSize is the reference CHUNKSIZE of spec.md §4.7: the
// quantum the heap grows by whenever no free block fits a request.
const defaultChunkSize = 64

// Config tunes the heap an Allocator grows into. The zero Config is
// not valid on its own; use NewDefault or fill in both fields before
// calling New.
type Config struct {
	// ChunkSize is the default heap-growth quantum (spec.md §4.7). It
	// is rounded up to a multiple of 8.
	ChunkSize int

	// MaxHeap bounds how large the heap may grow, handed to the
	// default HeapProvider as its reservation size.
	MaxHeap int
}

// DefaultConfig returns the reference tuning: a 64-byte growth chunk
// and a 64MiB heap ceiling.
func DefaultConfig() Config {
	return Config{ChunkSize: defaultChunkSize, MaxHeap: defaultMaxHeap}
}

func (c Config) validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("seglist: ChunkSize must be positive, got %d", c.ChunkSize)
	}
	if c.MaxHeap <= 0 {
		return fmt.Errorf("seglist: MaxHeap must be positive, got %d", c.MaxHeap)
	}
	if c.MaxHeap < minBlock*2 {
		return fmt.Errorf("seglist: MaxHeap too small to hold the initial heap scaffolding, got %d", c.MaxHeap)
	}
	return nil
}
