// Copyright 2011 Evan Shaw. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE-MMAP-GO file.

// Modifications (c) 2017 The Memory Authors.

//go:build darwin || dragonfly || freebsd || linux || openbsd || solaris || netbsd

package seglist

import (
	"golang.org/x/sys/unix"
)

// mmapReserve reserves a single anonymous, zero-filled mapping of size
// bytes. Unlike the teacher's per-page mmap calls, this reservation is
// made exactly once per Allocator and never grown or moved; Sbrk only
// advances a logical offset within it.
func mmapReserve(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANON)
}

func mmapRelease(b []byte) error {
	return unix.Munmap(b)
}
