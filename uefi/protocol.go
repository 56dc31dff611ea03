// Copyright (c) The go-uefi authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"errors"
	"fmt"
	"runtime"
)

// EFI Boot Services offsets
const (
	handleProtocol = 0x98
	locateHandle   = 0xb0
	locateProtocol = 0x140
)

// EFI_LOCATE_SEARCH_TYPE
const (
	AllHandles = iota
	ByRegisterNotify
	ByProtocol
)

const (
	// initial LocateHandle buffer size, in handles
	defaultHandles = 32
	// maximum LocateHandle buffer size, in handles
	maxHandles = 1 << 16
)

// handleSize represents the size of an EFI_HANDLE.
const handleSize = 8

// Handle represents an opaque EFI_HANDLE.
type Handle uint64

// ErrNoInterface is returned when the firmware reports a protocol as
// supported by a handle while yielding a null interface pointer.
var ErrNoInterface = errors.New("null protocol interface")

// Protocol is implemented by EFI protocol types which can be discovered with
// [Resolve] and [Locate], each type is associated to exactly one protocol GUID.
type Protocol interface {
	// GUID returns the protocol GUID.
	GUID() GUID

	// bind initializes the protocol instance on the interface found at
	// the argument address.
	bind(s *BootServices, addr uint64) error
}

// Resolve returns the protocol instance exposed by the argument handle, an
// error is returned when the handle does not support it.
func Resolve[T any, P interface {
	*T
	Protocol
}](s *BootServices, handle Handle) (P, error) {
	p := P(new(T))

	addr, err := s.HandleProtocol(handle, p.GUID())

	if err != nil {
		return nil, err
	}

	if addr == 0 {
		return nil, ErrNoInterface
	}

	if err = p.bind(s, addr); err != nil {
		return nil, err
	}

	return p, nil
}

// Locate returns the first protocol instance found in the handle database.
func Locate[T any, P interface {
	*T
	Protocol
}](s *BootServices) (P, error) {
	p := P(new(T))

	addr, err := s.LocateProtocol(p.GUID())

	if err != nil {
		return nil, err
	}

	if addr == 0 {
		return nil, ErrNoInterface
	}

	if err = p.bind(s, addr); err != nil {
		return nil, err
	}

	return p, nil
}

// HandleProtocol calls EFI_BOOT_SERVICES.HandleProtocol().
func (s *BootServices) HandleProtocol(handle Handle, guid GUID) (addr uint64, err error) {
	status := s.fw.Call(s.base+handleProtocol,
		[]uint64{
			uint64(handle),
			ptrval(&guid),
			ptrval(&addr),
		},
	)
	runtime.KeepAlive(&guid)

	return addr, parseStatus(status)
}

// LocateProtocol calls EFI_BOOT_SERVICES.LocateProtocol().
func (s *BootServices) LocateProtocol(guid GUID) (addr uint64, err error) {
	status := s.fw.Call(s.base+locateProtocol,
		[]uint64{
			ptrval(&guid),
			0,
			ptrval(&addr),
		},
	)
	runtime.KeepAlive(&guid)

	return addr, parseStatus(status)
}

// LocateHandle calls EFI_BOOT_SERVICES.LocateHandle() to return all handles
// supporting the argument protocol.
//
// The handle buffer is grown, and the call repeated, as long as the firmware
// reports it as too small.
func (s *BootServices) LocateHandle(guid GUID) (handles []Handle, err error) {
	n := defaultHandles

	for n <= maxHandles {
		buf := make([]Handle, n)
		size := uint64(n * handleSize)

		status := s.fw.Call(s.base+locateHandle,
			[]uint64{
				ByProtocol,
				ptrval(&guid),
				0,
				ptrval(&size),
				ptrval(&buf[0]),
			},
		)
		runtime.KeepAlive(&guid)

		switch {
		case isStatus(status, EFI_BUFFER_TOO_SMALL):
			n = max(n*2, int(size/handleSize))
			continue
		case isStatus(status, EFI_NOT_FOUND):
			return nil, nil
		}

		if err = parseStatus(status); err != nil {
			return
		}

		return buf[:min(int(size/handleSize), n)], nil
	}

	return nil, fmt.Errorf("handle buffer exceeds %d entries", maxHandles)
}
