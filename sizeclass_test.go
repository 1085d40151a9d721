// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package seglist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassOfLinearBuckets(t *testing.T) {
	cases := []struct {
		size  uint32
		class int
	}{
		{0, 0},
		{1, 0},
		{31, 0},
		{32, 1},
		{63, 1},
		{64, 2},
		{223, 6},
		{224, 7},
		{255, 7},
	}
	for _, c := range cases {
		assert.Equal(t, c.class, classOf(c.size), "size=%d", c.size)
	}
}

func TestClassOfGeometricBuckets(t *testing.T) {
	cases := []struct {
		size  uint32
		class int
	}{
		{256, 8},
		{511, 8},
		{512, 9},
		{1023, 9},
		{1024, 10},
		{256 << 14, 22}, // 2^14 * 256 = start of the next-to-last bucket
		{256<<14 + 1, 22},
		{256 << 15, 23},
		{1 << 30, 23}, // open-ended tail
	}
	for _, c := range cases {
		assert.Equal(t, c.class, classOf(c.size), "size=%d", c.size)
	}
}

func TestClassOfMonotonic(t *testing.T) {
	prev := classOf(0)
	for size := uint32(1); size < 1<<20; size += 7 {
		class := classOf(size)
		assert.GreaterOrEqual(t, class, prev, "size=%d", size)
		assert.Less(t, class, numClasses)
		prev = class
	}
}
