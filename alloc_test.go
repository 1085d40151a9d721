// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package seglist

import (
	"testing"

	"github.com/cznic/mathutil"
	"github.com/stretchr/testify/require"
)

// checkInvariants walks every live and free block in address order and
// checks the structural invariants of spec.md §8: alignment,
// disjointness/containment, header/footer agreement, and coalescing
// maximality (no two adjacent free blocks).
func checkInvariants(t *testing.T, a *Allocator) {
	t.Helper()

	p := ptr(2 * dsize) // first block after the prologue
	prevFree := false
	for {
		size := a.size(p)
		if size == 0 {
			break // epilogue
		}
		require.Zero(t, uint32(p)%dsize, "block %#x misaligned", p)
		require.Zero(t, size%dsize, "block %#x size %d not 8-aligned", p, size)
		require.GreaterOrEqual(t, size, uint32(minBlock))

		hdr := a.word(a.hdrOff(p))
		ftr := a.word(a.ftrOff(p))
		require.Equal(t, hdr, ftr, "block %#x header/footer disagree", p)

		alloc := a.alloc(p)
		if !alloc {
			require.False(t, prevFree, "two adjacent free blocks at/before %#x", p)
		}
		prevFree = !alloc

		p = a.next(p)
	}
}

func TestScenarioSingleBlockRecycleViaCoalesce(t *testing.T) {
	// A 1-byte request splits the initial chunk; freeing it coalesces
	// the split back into one block, so the next 1-byte request gets
	// the same block back without growing the heap.
	a, err := newTestAllocator(1 << 16)
	require.NoError(t, err)

	before := a.Stats().Grows
	b1, err := a.Malloc(1)
	require.NoError(t, err)
	a.Free(b1)
	b2, err := a.Malloc(1)
	require.NoError(t, err)
	require.Len(t, b2, 1)
	require.Same(t, &b1[0], &b2[0])
	require.Equal(t, before, a.Stats().Grows)
	checkInvariants(t, a)
}

func TestScenarioBestFitWithinClass(t *testing.T) {
	a, err := newTestAllocator(1 << 16)
	require.NoError(t, err)

	// Free a 48-byte and a 56-byte block of the same class (kept apart
	// by allocated neighbors so they cannot coalesce), then ask for 40
	// bytes (a 48-byte block): the smaller of the two free blocks must
	// be reused, not the larger one, even though the larger one sits
	// at a lower address and was freed last.
	first, err := a.Malloc(56) // takes the whole initial 64-byte chunk
	require.NoError(t, err)
	large, err := a.Malloc(48) // 56-byte block
	require.NoError(t, err)
	sep, err := a.Malloc(40)
	require.NoError(t, err)
	small, err := a.Malloc(40) // 48-byte block
	require.NoError(t, err)
	last, err := a.Malloc(40)
	require.NoError(t, err)
	_, _, _ = first, sep, last

	a.Free(small)
	a.Free(large)

	got, err := a.Malloc(40)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Same(t, &small[0], &got[0])
	checkInvariants(t, a)
}

func TestScenarioFreeProducesSingleFreeBlock(t *testing.T) {
	a, err := newTestAllocator(1 << 16)
	require.NoError(t, err)

	b1, err := a.Malloc(64)
	require.NoError(t, err)
	b2, err := a.Malloc(64)
	require.NoError(t, err)
	_ = b2

	a.Free(b1)
	checkInvariants(t, a)

	stats := a.Stats()
	require.Equal(t, 1, stats.Allocs)
}

func TestScenarioGrowthCoalescesWithPriorTail(t *testing.T) {
	a, err := newTestAllocator(1 << 16)
	require.NoError(t, err)

	// Leave a free tail at the end of the heap, then force a growth
	// that must merge with it rather than leaving two free blocks.
	big, err := a.Malloc(512)
	require.NoError(t, err)
	a.Free(big)

	grows := a.Stats().Grows
	huge, err := a.Malloc(4096)
	require.NoError(t, err)
	require.NotNil(t, huge)
	require.Greater(t, a.Stats().Grows, grows)
	checkInvariants(t, a)
}

func TestScenarioReallocShrinkPreservesPointerAndData(t *testing.T) {
	a, err := newTestAllocator(1 << 16)
	require.NoError(t, err)

	b, err := a.Malloc(256)
	require.NoError(t, err)
	for i := range b {
		b[i] = byte(i)
	}
	base := &b[0]

	shrunk, err := a.Realloc(b, 64)
	require.NoError(t, err)
	require.Same(t, base, &shrunk[0], "realloc shrink must not move the payload")
	for i := 0; i < 64; i++ {
		require.Equal(t, byte(i), shrunk[i])
	}
	checkInvariants(t, a)
}

func TestScenarioReallocGrowInPlace(t *testing.T) {
	a, err := newTestAllocator(1 << 16)
	require.NoError(t, err)

	b, err := a.Malloc(32)
	require.NoError(t, err)
	for i := range b {
		b[i] = byte(i + 1)
	}
	base := &b[0]

	grown, err := a.Realloc(b, 40)
	require.NoError(t, err)
	require.Same(t, base, &grown[0], "growing into the trailing epilogue must keep the same pointer")
	for i := 0; i < 32; i++ {
		require.Equal(t, byte(i+1), grown[i])
	}
	checkInvariants(t, a)
}

func TestMallocZeroAndFreeNilAreNoops(t *testing.T) {
	a, err := newTestAllocator(1 << 16)
	require.NoError(t, err)

	b, err := a.Malloc(0)
	require.NoError(t, err)
	require.Nil(t, b)

	a.Free(nil)
	a.Free(b)

	require.Equal(t, 0, a.Stats().Allocs)
}

// TestRandomizedMallocFreeCycle ports the teacher's test1/test2-style
// randomized exerciser: a pseudo-random sequence of malloc/free/realloc
// calls against a shadow Go map. A block's contents are checked each
// time it is freed or resized; once every block is freed, the heap
// structure is checked and the allocator must be fully drained.
func TestRandomizedMallocFreeCycle(t *testing.T) {
	a, err := newTestAllocator(1 << 20)
	require.NoError(t, err)

	rng, err := mathutil.NewFC32(0, 1<<20, false)
	require.NoError(t, err)

	type live struct {
		b    []byte
		want byte
	}
	blocks := map[int]live{}
	const n = 2000

	for i := 0; i < n; i++ {
		op := rng.Next() % 3
		switch {
		case op == 0 || len(blocks) == 0:
			size := rng.Next()%200 + 1
			b, err := a.Malloc(size)
			require.NoError(t, err)
			want := byte(rng.Next())
			for j := range b {
				b[j] = want
			}
			blocks[i] = live{b: b, want: want}

		case op == 1:
			for k, v := range blocks {
				for j, by := range v.b {
					require.Equal(t, v.want, by, "corruption at block %d offset %d", k, j)
				}
				a.Free(v.b)
				delete(blocks, k)
				break
			}

		default:
			for k, v := range blocks {
				newSize := rng.Next()%300 + 1
				grown, err := a.Realloc(v.b, newSize)
				require.NoError(t, err)
				limit := len(v.b)
				if len(grown) < limit {
					limit = len(grown)
				}
				for j := 0; j < limit; j++ {
					require.Equal(t, v.want, grown[j], "realloc lost data at block %d offset %d", k, j)
				}
				for j := limit; j < len(grown); j++ {
					grown[j] = v.want
				}
				blocks[k] = live{b: grown, want: v.want}
				break
			}
		}
	}

	for _, v := range blocks {
		a.Free(v.b)
	}
	checkInvariants(t, a)

	stats := a.Stats()
	require.Equal(t, 0, stats.Allocs)
	require.Equal(t, 0, stats.Bytes)
}

func TestUsableSizeIsAtLeastRequested(t *testing.T) {
	a, err := newTestAllocator(1 << 16)
	require.NoError(t, err)

	b, err := a.Malloc(13)
	require.NoError(t, err)
	require.GreaterOrEqual(t, a.UsableSize(b), 13)
}
