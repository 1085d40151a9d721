// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package seglist

import "unsafe"

// Block layout (all offsets relative to the allocator's heap buffer):
//
//	offset 0       : header word (4 B) — encodes (size, alloc-bit)
//	offset 4       : payload/link area — size - 8 bytes
//	offset size-4  : footer word (4 B) — same encoding as header
//
// A "pointer" in this file is a ptr, the byte offset of a block's
// payload (header+4) within the heap buffer. ptr 0 is never a valid
// payload offset (the prologue occupies offsets [4,12)) and doubles as
// the null sentinel for free-list links.
const (
	wsize = 4 // word size
	dsize = 8 // double-word size: alignment unit and header+footer overhead

	minBlock   = 16 // header(4) + succ(4) + pred(4) + footer(4)
	minPayload = 8  // minimum payload an allocation request reserves

	allocBit = 0x1
	sizeMask = ^uint32(0x7)
)

// ptr is a byte offset into an Allocator's heap buffer, pointing at a
// block's payload (one word past its header). 0 means "no block".
type ptr uint32

func align8(n int) int { return (n + 7) &^ 7 }

// pack encodes size and the allocated bit into a boundary-tag word.
func pack(size uint32, alloc bool) uint32 {
	if alloc {
		return size | allocBit
	}
	return size
}

func sizeOf(word uint32) uint32 { return word & sizeMask }
func allocOf(word uint32) bool  { return word&allocBit != 0 }

// word reads the 4-byte tag at the given absolute offset.
func (a *Allocator) word(off uint32) uint32 {
	return *(*uint32)(unsafe.Pointer(&a.mem[off]))
}

func (a *Allocator) putWord(off uint32, v uint32) {
	*(*uint32)(unsafe.Pointer(&a.mem[off])) = v
}

func (a *Allocator) hdrOff(p ptr) uint32 { return uint32(p) - wsize }

func (a *Allocator) size(p ptr) uint32  { return sizeOf(a.word(a.hdrOff(p))) }
func (a *Allocator) alloc(p ptr) bool   { return allocOf(a.word(a.hdrOff(p))) }
func (a *Allocator) ftrOff(p ptr) uint32 {
	return uint32(p) + a.size(p) - dsize
}

// setTag writes the same (size, alloc) encoding into both the header
// and the footer of the block at p. Per spec.md §9, header and footer
// are always written explicitly, never left to a stale duplicate.
func (a *Allocator) setTag(p ptr, size uint32, alloc bool) {
	w := pack(size, alloc)
	a.putWord(a.hdrOff(p), w)
	a.putWord(a.ftrOff(p), w)
}

// setTagAt writes an explicit size (used when the block's own header
// is not yet valid, e.g. for a block anchored at a neighbor's offset).
func (a *Allocator) setTagAt(hdrOffset uint32, size uint32, alloc bool) {
	w := pack(size, alloc)
	a.putWord(hdrOffset, w)
	a.putWord(hdrOffset+size-wsize, w)
}

// next returns the payload pointer of the block physically following p.
func (a *Allocator) next(p ptr) ptr { return ptr(uint32(p) + a.size(p)) }

// prev returns the payload pointer of the block physically preceding
// p, using the previous block's footer to learn its size. For the
// first block past the prologue this returns the prologue, whose
// allocated bit stops coalescing; a footer reading size 0 would make
// it alias p itself, which isPrevAllocated treats as allocated.
func (a *Allocator) prev(p ptr) ptr {
	prevSize := sizeOf(a.word(uint32(p) - dsize))
	return ptr(uint32(p) - prevSize)
}

// isPrevAllocated reports whether the previous physical neighbor of p
// should be treated as allocated, handling the heap-start edge case
// where prev(p) aliases p (spec.md §4.6, §9).
func (a *Allocator) isPrevAllocated(p ptr) bool {
	pp := a.prev(p)
	if pp == p {
		return true
	}
	return a.alloc(pp)
}

// succ/pred read the in-band link fields inside a free
// block's payload: successor at payload+0, predecessor at payload+4.
func (a *Allocator) succ(p ptr) ptr { return ptr(a.word(uint32(p))) }
func (a *Allocator) pred(p ptr) ptr { return ptr(a.word(uint32(p) + wsize)) }

func (a *Allocator) setSucc(p, v ptr) { a.putWord(uint32(p), uint32(v)) }
func (a *Allocator) setPred(p, v ptr) { a.putWord(uint32(p)+wsize, uint32(v)) }
