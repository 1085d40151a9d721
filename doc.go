// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package seglist implements a segregated free-list memory allocator.
//
// The allocator partitions a single, contiguous, monotonically growable
// heap into boundary-tagged blocks. Free blocks are indexed by 24
// segregated size classes (linear buckets below 256 bytes, geometric
// buckets above), each kept in ascending size order. Allocation uses a
// best-fit-within-class search with a same-class miss falling back to
// the smallest head of any larger class; large placements favor the
// high end of the chosen block to keep low addresses coalescable.
//
// Changelog
//
// 2021-11-23 Derived from a malloc-lab style boundary-tag allocator;
// reworked onto a pluggable sbrk-style HeapProvider.
package seglist
