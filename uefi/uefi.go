// Copyright (c) The go-uefi authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package uefi implements a driver for the Unified Extensible Firmware
// Interface (UEFI) following the specifications at:
//
//	https://uefi.org/specs/UEFI/2.10/
//
// The package binds the EFI System Table, Boot Services and Runtime Services
// as well as the Simple Text Output, Loaded Image, Simple File System and
// Graphics Output protocols. All firmware accesses go through the [Firmware]
// interface, which on real hardware is provided by the uefi/x64 package for
// `GOOS=tamago` as supported by the TamaGo framework for bare metal Go, see
// https://github.com/usbarmory/tamago.
package uefi

import (
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"
	"unicode/utf16"
	"unsafe"
)

// MaxArgs represents the maximum number of arguments of an EFI service call.
const MaxArgs = 10

// Firmware represents the low level interface to UEFI firmware.
type Firmware interface {
	// Call invokes the EFI function whose pointer is stored at the fn
	// address, typically a service table base plus the function offset.
	Call(fn uint64, args []uint64) (status uint64)

	// Memory returns a byte slice aliasing size bytes of firmware memory
	// at the argument address.
	Memory(addr uint64, size int) ([]byte, error)
}

// sink retains the last ptrval argument, forcing pointed variables to escape
// to the heap so that their address is not affected by stack growth.
var sink any

// This function helps preparing Firmware.Call arguments, allowing a single
// call for all EFI services.
//
// Obtaining a pointer in this fashion is typically unsafe, however as
// arguments are prepared right before invoking the firmware and pointed
// variables are heap allocated, it is considered safe as it is identical as
// having pointer arguments.
func ptrval(ptr any) uint64 {
	var p unsafe.Pointer

	sink = ptr

	switch v := ptr.(type) {
	case *uint64:
		p = unsafe.Pointer(v)
	case *uint32:
		p = unsafe.Pointer(v)
	case *uint16:
		p = unsafe.Pointer(v)
	case *byte:
		p = unsafe.Pointer(v)
	case *Handle:
		p = unsafe.Pointer(v)
	case *InputKey:
		p = unsafe.Pointer(v)
	case *GUID:
		p = unsafe.Pointer(v)
	default:
		panic("internal error, invalid ptrval")
	}

	return uint64(uintptr(p))
}

// ErrInitialized is returned when an UEFI services instance is initialized
// more than once.
var ErrInitialized = errors.New("EFI services already initialized")

// Services represents the UEFI services instance, it is the single context
// value through which all firmware tables are reached.
type Services struct {
	// EFI System Table instance
	SystemTable *SystemTable

	// UEFI services
	Console *Console
	StdErr  *Console
	Boot    *BootServices
	Runtime *RuntimeServices

	// TrustTables disables the size and CRC32 verification of the EFI
	// System, Boot Services and Runtime Services tables (signatures are
	// always verified).
	TrustTables bool

	// Halt is invoked after an unrecoverable error has been reported, it
	// must not return. When nil the CPU spins forever.
	Halt func()

	fw          Firmware
	imageHandle Handle
	systemTable uint64
}

// Init initializes an UEFI services instance using the argument firmware
// interface and entry point arguments, it must be called exactly once.
func (s *Services) Init(fw Firmware, imageHandle uint64, systemTable uint64) (err error) {
	if s.fw != nil {
		return ErrInitialized
	}

	if fw == nil {
		return errors.New("invalid firmware interface")
	}

	if s.SystemTable, err = ReadTable[System](fw, systemTable, systemTableSignature); err != nil {
		return fmt.Errorf("EFI System Table pointer is invalid, %v", err)
	}

	boot, err := ReadTable[BootServicesTable](fw, s.SystemTable.Inner().BootServices, bootServicesSignature)

	if err != nil {
		return fmt.Errorf("EFI Boot Services pointer is invalid, %v", err)
	}

	rt, err := ReadTable[RuntimeServicesTable](fw, s.SystemTable.Inner().RuntimeServices, runtimeServicesSignature)

	if err != nil {
		return fmt.Errorf("EFI Runtime Services pointer is invalid, %v", err)
	}

	if !s.TrustTables {
		for _, t := range []verifier{s.SystemTable, boot, rt} {
			if err = t.Verify(fw); err != nil {
				return
			}
		}
	}

	sys := s.SystemTable.Inner()

	s.Console = &Console{
		ForceLine:   true,
		ReplaceTabs: 8,
		In:          sys.ConIn,
		Out:         sys.ConOut,
		Firmware:    fw,
	}

	s.StdErr = &Console{
		ForceLine: true,
		Out:       sys.StdErr,
		Firmware:  fw,
	}

	s.Boot = &BootServices{
		Table:       boot,
		fw:          fw,
		base:        boot.Address(),
		imageHandle: Handle(imageHandle),
		fatal:       s.halt,
	}

	s.Runtime = &RuntimeServices{
		Table: rt,
		fw:    fw,
		base:  rt.Address(),
	}

	s.fw = fw
	s.imageHandle = Handle(imageHandle)
	s.systemTable = systemTable

	return
}

// ImageHandle returns the UEFI image handle.
func (s *Services) ImageHandle() Handle {
	return s.imageHandle
}

// Address returns the EFI System Table pointer.
func (s *Services) Address() uint64 {
	return s.systemTable
}

// Firmware returns the firmware interface used by the services instance.
func (s *Services) Firmware() Firmware {
	return s.fw
}

// FirmwareVendor returns the firmware vendor string.
func (s *Services) FirmwareVendor() (vendor string, err error) {
	return readString(s.fw, s.SystemTable.Inner().FirmwareVendor, maxVendorSize)
}

const maxVendorSize = 256

// readString reads a null terminated UCS-2 string from firmware memory.
func readString(fw Firmware, addr uint64, maxSize int) (string, error) {
	var s []uint16

	for i := 0; i+1 < maxSize; i += 2 {
		buf, err := fw.Memory(addr+uint64(i), 2)

		if err != nil {
			return "", err
		}

		c := binary.LittleEndian.Uint16(buf)

		if c == 0 {
			break
		}

		s = append(s, c)
	}

	return string(utf16.Decode(s)), nil
}

// Fatal reports an unrecoverable error on the console, along with the
// location of its caller, and halts the CPU.
func (s *Services) Fatal(err error) {
	_, file, line, _ := runtime.Caller(1)
	s.halt(file, line, err)
}

func (s *Services) halt(file string, line int, err error) {
	if s.Console != nil {
		fmt.Fprintf(s.Console, "fatal error at %s:%d: %v\n", file, line, err)
	}

	if s.Halt != nil {
		s.Halt()
	}

	for {
	}
}
