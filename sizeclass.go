// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package seglist

import "github.com/cznic/mathutil"

// numClasses is the number of segregated free lists: 8 linear buckets
// of 32 bytes below 256, then 15 geometric buckets doubling from 256,
// plus one open-ended tail class.
const numClasses = 24

const (
	linearClasses  = 8
	linearClassLen = 32
	geoBase        = 256
)

// classOf maps a block size to one of the 24 segregated size classes.
//
//	size < 256: class = size / 32                      (0..7)
//	size >= 256: class = 8 + floor(log2(size/256))      (8..23, saturated)
//
// add, remove and find_fit (§4.3, §4.4) all rely on classOf being used
// symmetrically; any divergence breaks the list-membership invariant.
func classOf(size uint32) int {
	if size < geoBase {
		return int(size) / linearClassLen
	}

	j := mathutil.BitLen(int(size/geoBase)) - 1
	class := linearClasses + j
	if class > numClasses-1 {
		class = numClasses - 1
	}
	return class
}
