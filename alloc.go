// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package seglist

import (
	"fmt"
	"os"
	"unsafe"
)

// trace gates the allocator's one-line debug tracing, compiled out by
// default; flip to true locally to watch Malloc/Free/Realloc/extend
// decisions on stderr.
const trace = false

// Allocator allocates, frees and resizes memory out of a single,
// contiguous, monotonically growable heap (spec.md §1). Its zero
// value lazily initializes itself, with default tuning, on first
// Malloc/Calloc/UnsafeMalloc — just like the teacher package's
// Allocator, whose zero value is "ready for use".
type Allocator struct {
	cfg  Config
	heap HeapProvider
	mem  []byte // current live view of the heap; grows in place

	lists [numClasses]ptr

	ready bool

	allocs    int // live allocation count
	bytes     int // live payload bytes outstanding
	grows     int // number of heap extensions performed
	coalesces int // number of successful merges performed
}

// New creates an Allocator tuned by cfg, backed by the default
// mmap-reserved HeapProvider. The heap itself is not created until
// the first allocation (or an explicit call to Init).
func New(cfg Config) (*Allocator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Allocator{cfg: cfg}, nil
}

// NewDefault is New(DefaultConfig()).
func NewDefault() (*Allocator, error) {
	return New(DefaultConfig())
}

// NewWithHeap creates an Allocator over a caller-supplied HeapProvider,
// useful for tests that want a small, deterministic reservation instead
// of the default 64MiB mmap.
func NewWithHeap(cfg Config, heap HeapProvider) (*Allocator, error) {
	if heap == nil {
		return nil, fmt.Errorf("seglist: heap provider must not be nil")
	}
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("seglist: ChunkSize must be positive, got %d", cfg.ChunkSize)
	}
	return &Allocator{cfg: cfg, heap: heap}, nil
}

// Init creates the initial heap, prologue/epilogue scaffolding, and
// empty free lists (spec.md §4.7, §6). Calling Init on an
// already-initialized Allocator is a no-op.
func (a *Allocator) Init() error {
	if a.ready {
		return nil
	}

	if a.cfg.ChunkSize == 0 {
		a.cfg = DefaultConfig()
	}
	if a.heap == nil {
		h, err := newMmapHeap(a.cfg.MaxHeap)
		if err != nil {
			return err
		}
		a.heap = h
	}

	// 4-byte alignment pad, 8-byte allocated prologue, 0-byte
	// allocated epilogue: 16 bytes of scaffolding (spec.md §3).
	mem, err := a.heap.Sbrk(2 * dsize)
	if err != nil {
		return err
	}
	a.mem = mem
	a.putWord(0, 0)
	a.setTagAt(wsize, dsize, true)
	a.putWord(3*wsize, pack(0, true))

	for i := range a.lists {
		a.lists[i] = 0
	}

	if _, err := a.extend(a.cfg.ChunkSize); err != nil {
		return err
	}

	a.ready = true
	return nil
}

func (a *Allocator) ensureInit() error {
	if a.ready {
		return nil
	}
	return a.Init()
}

// adjSize computes the block size needed to satisfy a size-byte
// payload request: at least minBlock, 8 bytes of header+footer
// overhead otherwise, 8-byte aligned (spec.md §4.8).
func adjSize(size int) uint32 {
	if size <= minPayload {
		return minBlock
	}
	return uint32(align8(size + dsize))
}

// extend grows the heap by requested bytes (rounded up to 8), installs
// a new epilogue, and immediately coalesces the new block with its
// predecessor if that neighbor is free (spec.md §4.7).
func (a *Allocator) extend(requested int) (ptr, error) {
	adjsize := uint32(align8(requested))

	oldTop := uint32(len(a.mem))
	mem, err := a.heap.Sbrk(int(adjsize))
	if err != nil {
		return 0, err
	}
	a.mem = mem

	bp := ptr(oldTop)
	a.setTag(bp, adjsize, false)
	a.putWord(uint32(len(a.mem))-wsize, pack(0, true)) // new epilogue
	a.addNode(bp)
	a.grows++

	if trace {
		fmt.Fprintf(os.Stderr, "seglist: extend(%d) -> %#x\n", adjsize, bp)
	}

	return a.coalesce(bp), nil
}

// coalesce merges the free block at bp with whichever of its physical
// neighbors are also free (spec.md §4.6). bp must already be linked
// into its free list; coalesce re-links as needed and returns the
// payload pointer of the (possibly larger) resulting free block.
func (a *Allocator) coalesce(bp ptr) ptr {
	prevAlloc := a.isPrevAllocated(bp)
	next := a.next(bp)
	nextAlloc := a.alloc(next)
	size := a.size(bp)

	switch {
	case prevAlloc && nextAlloc:
		return bp

	case prevAlloc && !nextAlloc:
		size += a.size(next)
		a.removeNode(bp)
		a.removeNode(next)
		a.setTag(bp, size, false)
		a.addNode(bp)
		a.coalesces++
		return bp

	case !prevAlloc && nextAlloc:
		p := a.prev(bp)
		size += a.size(p)
		a.removeNode(bp)
		a.removeNode(p)
		a.setTag(p, size, false)
		a.addNode(p)
		a.coalesces++
		return p

	default: // both neighbors free
		p := a.prev(bp)
		size += a.size(p) + a.size(next)
		a.removeNode(bp)
		a.removeNode(p)
		a.removeNode(next)
		a.setTag(p, size, false)
		a.addNode(p)
		a.coalesces++
		return p
	}
}

// place marks the free block at bp allocated for adjsize bytes,
// splitting off a free remainder when one of at least minBlock bytes
// remains. Large requests (adjsize >= 32) are placed at the high end
// of the chosen block, per the tail-placement heuristic of spec.md
// §4.5; the low remainder stays free and keeps the lower heap
// addresses contiguous and coalescable.
func (a *Allocator) place(bp ptr, adjsize uint32) ptr {
	a.removeNode(bp)
	csize := a.size(bp)
	remainder := csize - adjsize

	if remainder < minBlock {
		a.setTag(bp, csize, true)
		return bp
	}

	if adjsize >= 32 {
		a.setTag(bp, remainder, false)
		a.addNode(bp)
		newBp := a.next(bp)
		a.setTag(newBp, adjsize, true)
		return newBp
	}

	a.setTag(bp, adjsize, true)
	newBp := a.next(bp)
	a.setTag(newBp, remainder, false)
	a.addNode(newBp)
	return bp
}

// reallocSplit marks the already-allocated block at p as adjsize bytes
// and, if the remainder is at least 32 bytes, splits a free tail off
// the high end (spec.md §4.9), merging that tail with a free right
// neighbor so no two free blocks end up adjacent. Unlike place, the allocated piece never
// moves off p: a realloc must preserve the caller's existing data in
// place (spec.md §8 property 9), which the high-end split used by
// place would violate.
func (a *Allocator) reallocSplit(p ptr, csize, adjsize uint32) ptr {
	remainder := csize - adjsize
	if remainder < 32 {
		a.setTag(p, csize, true)
		return p
	}

	a.setTag(p, adjsize, true)
	tail := a.next(p)
	a.setTag(tail, remainder, false)
	a.addNode(tail)
	a.coalesce(tail)
	return p
}

// payload returns the usable bytes of the block at p, capped so that
// append/reslicing can never spill into the next physical block.
func (a *Allocator) payload(p ptr) []byte {
	start := uint32(p)
	end := start + a.size(p) - dsize
	return a.mem[start:end:end]
}

// mallocPtr is the core of spec.md §4.8, returning a payload pointer
// (byte offset) rather than an unsafe.Pointer so it can be shared by
// both the []byte and unsafe.Pointer public surfaces.
func (a *Allocator) mallocPtr(size int) (ptr, error) {
	if err := a.ensureInit(); err != nil {
		return 0, err
	}
	if size == 0 {
		return 0, nil
	}
	if size < 0 {
		return 0, fmt.Errorf("seglist: malloc: negative size %d", size)
	}

	adjsize := adjSize(size)

	bp := a.findFit(adjsize)
	if bp == 0 {
		grown, err := a.extend(int(adjsize))
		if err != nil {
			return 0, err
		}
		bp = grown
	}

	p := a.place(bp, adjsize)
	a.allocs++
	a.bytes += int(a.size(p)) - dsize

	if trace {
		fmt.Fprintf(os.Stderr, "seglist: malloc(%d) -> %#x\n", size, p)
	}

	return p, nil
}

func (a *Allocator) freePtr(p ptr) {
	if trace {
		fmt.Fprintf(os.Stderr, "seglist: free(%#x)\n", p)
	}
	if p == 0 {
		return
	}

	size := a.size(p)
	a.setTag(p, size, false)
	a.addNode(p)
	a.coalesce(p)

	a.allocs--
	a.bytes -= int(size) - dsize
}

func (a *Allocator) reallocPtr(p ptr, size int) (ptr, error) {
	if trace {
		fmt.Fprintf(os.Stderr, "seglist: realloc(%#x, %d)\n", p, size)
	}

	if size == 0 {
		a.freePtr(p)
		return 0, nil
	}
	if p == 0 {
		return a.mallocPtr(size)
	}

	oldsize := a.size(p)
	newsize := adjSize(size)

	if newsize == oldsize {
		return p, nil
	}

	if newsize < oldsize {
		result := a.reallocSplit(p, oldsize, newsize)
		a.bytes += int(a.size(result)) - int(oldsize)
		return result, nil
	}

	return a.reallocGrow(p, oldsize, newsize, size)
}

// reallocGrow implements the growth half of spec.md §4.9: absorb the
// epilogue (extending the heap) or a free right neighbor in place when
// possible, falling back to allocate+copy+free.
func (a *Allocator) reallocGrow(p ptr, oldsize, newsize uint32, rawSize int) (ptr, error) {
	next := a.next(p)
	nextSize := a.size(next)

	if nextSize == 0 { // right neighbor is the epilogue
		extendBy := newsize - oldsize
		if extendBy < 32 {
			extendBy = 32
		}
		grown, err := a.extend(int(extendBy))
		if err != nil {
			return 0, err
		}
		a.removeNode(grown)
		merged := oldsize + a.size(grown)
		a.setTag(p, merged, true)
		result := a.reallocSplit(p, merged, newsize)
		a.bytes += int(a.size(result)) - int(oldsize)
		return result, nil
	}

	if !a.alloc(next) && oldsize+nextSize >= newsize {
		a.removeNode(next)
		merged := oldsize + nextSize
		a.setTag(p, merged, true)
		result := a.reallocSplit(p, merged, newsize)
		a.bytes += int(a.size(result)) - int(oldsize)
		return result, nil
	}

	newP, err := a.mallocPtr(rawSize)
	if err != nil {
		return 0, err
	}
	copy(a.payload(newP), a.payload(p))
	a.freePtr(p)
	return newP, nil
}

// --- unsafe.Pointer surface: the spec.md-faithful API ---

// UnsafeMalloc allocates size bytes and returns an 8-byte-aligned
// pointer to them, or nil for size == 0 and a non-nil error on OOM.
func (a *Allocator) UnsafeMalloc(size int) (unsafe.Pointer, error) {
	p, err := a.mallocPtr(size)
	if err != nil {
		return nil, err
	}
	return a.ptrToUnsafe(p), nil
}

// UnsafeCalloc is like UnsafeMalloc except the memory is zeroed.
func (a *Allocator) UnsafeCalloc(size int) (unsafe.Pointer, error) {
	p, err := a.mallocPtr(size)
	if err != nil {
		return nil, err
	}
	if p != 0 {
		b := a.payload(p)
		for i := range b {
			b[i] = 0
		}
	}
	return a.ptrToUnsafe(p), nil
}

// UnsafeFree releases memory acquired from UnsafeMalloc, UnsafeCalloc
// or UnsafeRealloc. A nil argument is a no-op.
func (a *Allocator) UnsafeFree(up unsafe.Pointer) {
	a.freePtr(a.unsafeToPtr(up))
}

// UnsafeRealloc resizes the block at up to size bytes, per spec.md
// §4.9.
func (a *Allocator) UnsafeRealloc(up unsafe.Pointer, size int) (unsafe.Pointer, error) {
	p, err := a.reallocPtr(a.unsafeToPtr(up), size)
	if err != nil {
		return nil, err
	}
	return a.ptrToUnsafe(p), nil
}

func (a *Allocator) ptrToUnsafe(p ptr) unsafe.Pointer {
	if p == 0 {
		return nil
	}
	return unsafe.Pointer(&a.mem[p])
}

func (a *Allocator) unsafeToPtr(up unsafe.Pointer) ptr {
	if up == nil {
		return 0
	}
	base := uintptr(unsafe.Pointer(&a.mem[0]))
	return ptr(uintptr(up) - base)
}

// --- []byte surface: a convenience wrapper over the pointer API ---

// Malloc allocates size bytes and returns them as a byte slice, or a
// nil slice for size == 0. The memory is not zeroed.
func (a *Allocator) Malloc(size int) ([]byte, error) {
	p, err := a.mallocPtr(size)
	if err != nil {
		return nil, err
	}
	if p == 0 {
		return nil, nil
	}
	return a.payload(p)[:size:size], nil
}

// Calloc is like Malloc except the allocated memory is zeroed.
func (a *Allocator) Calloc(size int) ([]byte, error) {
	b, err := a.Malloc(size)
	if err != nil {
		return nil, err
	}
	for i := range b {
		b[i] = 0
	}
	return b, nil
}

// Free releases memory acquired from Malloc, Calloc or Realloc. A
// zero-capacity argument is a no-op; b is re-sliced to cap(b) first
// (as the teacher package does) so a caller who resliced their
// allocation down to zero length can still free the whole block.
func (a *Allocator) Free(b []byte) {
	b = b[:cap(b)]
	if len(b) == 0 {
		return
	}
	a.freePtr(a.sliceToPtr(b))
}

// Realloc changes the size of the backing block of b to size bytes.
// Contents up to min(len(b), size) are preserved; if b is grown beyond
// what its current block (or the heap's right edge) can absorb, the
// data is copied into a freshly allocated block and the old one freed.
func (a *Allocator) Realloc(b []byte, size int) ([]byte, error) {
	b = b[:cap(b)]

	var p ptr
	if len(b) != 0 {
		p = a.sliceToPtr(b)
	}

	newP, err := a.reallocPtr(p, size)
	if err != nil {
		return nil, err
	}
	if newP == 0 {
		return nil, nil
	}
	return a.payload(newP)[:size:size], nil
}

func (a *Allocator) sliceToPtr(b []byte) ptr {
	base := uintptr(unsafe.Pointer(&a.mem[0]))
	return ptr(uintptr(unsafe.Pointer(&b[0])) - base)
}

// UsableSize reports the usable payload size of a live block returned
// by Malloc/Calloc/Realloc/UnsafeMalloc/.... It can be larger than the
// size originally requested.
func (a *Allocator) UsableSize(b []byte) int {
	b = b[:cap(b)]
	if len(b) == 0 {
		return 0
	}
	return len(a.payload(a.sliceToPtr(b)))
}

// Stats reports a point-in-time snapshot of allocator bookkeeping.
// There is no consistency checker here (spec.md scopes that out); this
// is purely observational, the way the teacher package exposes its
// allocs/bytes/mmaps counters to its own tests.
type Stats struct {
	Allocs    int
	Bytes     int
	Grows     int
	Coalesces int
}

func (a *Allocator) Stats() Stats {
	return Stats{Allocs: a.allocs, Bytes: a.bytes, Grows: a.grows, Coalesces: a.coalesces}
}
