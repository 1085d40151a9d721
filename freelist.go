// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package seglist

// The 24 segregated free lists are expressed as a fixed-size array of
// heads (spec.md §9) rather than 24 named fields — there is no
// find_list dispatch to maintain, just a class index used directly.

// addNode inserts the free block at p into its size class, keeping the
// class sorted ascending by block size (ties broken by insertion
// before the first node that is not strictly smaller).
func (a *Allocator) addNode(p ptr) {
	class := classOf(a.size(p))
	head := a.lists[class]

	if head == 0 {
		a.setSucc(p, 0)
		a.setPred(p, 0)
		a.lists[class] = p
		return
	}

	var before ptr // last node walked that is strictly smaller than p
	walk := head
	size := a.size(p)
	for walk != 0 && a.size(walk) < size {
		before = walk
		walk = a.succ(walk)
	}

	switch {
	case before == 0: // p becomes the new smallest, i.e. new head
		a.setPred(p, 0)
		a.setSucc(p, walk)
		if walk != 0 {
			a.setPred(walk, p)
		}
		a.lists[class] = p
	case walk == 0: // p becomes the new tail
		a.setSucc(before, p)
		a.setPred(p, before)
		a.setSucc(p, 0)
	default: // p is spliced in between before and walk
		a.setSucc(before, p)
		a.setPred(p, before)
		a.setSucc(p, walk)
		a.setPred(walk, p)
	}
}

// removeNode unlinks the free block at p from its size class in O(1)
// using its own succ/pred links.
func (a *Allocator) removeNode(p ptr) {
	class := classOf(a.size(p))
	s, pr := a.succ(p), a.pred(p)

	switch {
	case s == 0 && pr == 0: // sole element
		a.lists[class] = 0
	case s == 0: // tail
		a.setSucc(pr, 0)
	case pr == 0: // head
		a.setPred(s, 0)
		a.lists[class] = s
	default: // interior
		a.setSucc(pr, s)
		a.setPred(s, pr)
	}
}

// findFit implements the two-step fit search of spec.md §4.4: a
// best-fit walk within the size class adjsize belongs to, falling back
// to the unconditional head of the smallest larger non-empty class.
func (a *Allocator) findFit(adjsize uint32) ptr {
	class := classOf(adjsize)

	for p := a.lists[class]; p != 0; p = a.succ(p) {
		if a.size(p) >= adjsize {
			return p
		}
	}

	for c := class + 1; c < numClasses; c++ {
		if a.lists[c] != 0 {
			return a.lists[c]
		}
	}

	return 0
}
