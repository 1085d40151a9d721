// Copyright 2011 Evan Shaw. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE-MMAP-GO file.

// Modifications (c) 2017 The Memory Authors.

package seglist

import (
	"errors"
	"os"
	"sync"
	"syscall"
	"unsafe"
)

// mmap on Windows is a two-step process: CreateFileMapping gets a
// handle backed by the system paging file, then MapViewOfFile maps it
// into the process. We keep a handle table so mmapRelease can recover
// the handle from the mapped address (golang.org/x/sys/windows has no
// simpler equivalent for this pairing than the raw syscalls below).
var (
	handleMapMu sync.Mutex
	handleMap   = map[uintptr]syscall.Handle{}
)

func mmapReserve(size int) ([]byte, error) {
	flProtect := uint32(syscall.PAGE_READWRITE)
	dwDesiredAccess := uint32(syscall.FILE_MAP_WRITE)

	maxSizeHigh := uint32(int64(size) >> 32)
	maxSizeLow := uint32(int64(size) & 0xFFFFFFFF)
	h, errno := syscall.CreateFileMapping(syscall.Handle(^uintptr(0)), nil, flProtect, maxSizeHigh, maxSizeLow, nil)
	if h == 0 {
		return nil, os.NewSyscallError("CreateFileMapping", errno)
	}

	addr, errno := syscall.MapViewOfFile(h, dwDesiredAccess, 0, 0, uintptr(size))
	if addr == 0 {
		syscall.CloseHandle(h)
		return nil, os.NewSyscallError("MapViewOfFile", errno)
	}

	handleMapMu.Lock()
	handleMap[addr] = h
	handleMapMu.Unlock()

	var b []byte
	hdr := (*sliceHeader)(unsafe.Pointer(&b))
	hdr.Data = addr
	hdr.Len = size
	hdr.Cap = size
	return b, nil
}

func mmapRelease(b []byte) error {
	if len(b) == 0 {
		return nil
	}

	addr := uintptr(unsafe.Pointer(&b[0]))
	if err := syscall.UnmapViewOfFile(addr); err != nil {
		return err
	}

	handleMapMu.Lock()
	handle, ok := handleMap[addr]
	delete(handleMap, addr)
	handleMapMu.Unlock()
	if !ok {
		return errors.New("seglist: unknown mapping base address")
	}

	return os.NewSyscallError("CloseHandle", syscall.CloseHandle(handle))
}

// sliceHeader mirrors reflect.SliceHeader; spelled out locally so this
// file doesn't need the (soft-deprecated) reflect.SliceHeader type.
type sliceHeader struct {
	Data uintptr
	Len  int
	Cap  int
}
