// Copyright (c) The go-uefi authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"maps"
	"slices"
	"testing"
	"unicode/utf16"
	"unsafe"

	"github.com/stretchr/testify/require"
)

const (
	testImageHandle  = 0x1000
	testDeviceHandle = 0x2000
)

var errHalted = errors.New("halted")

type fakeCall struct {
	fn   uint64
	args []uint64
}

// fakeFirmware implements Firmware over Go memory, EFI functions are
// dispatched by the address of their table slot.
type fakeFirmware struct {
	mem      [][]byte
	handlers map[uint64]func(args []uint64) uint64
	calls    []fakeCall

	systemTable uint64
	boot        uint64
	runtime     uint64
	conIn       uint64
	conOut      uint64
	vendor      uint64
	config      uint64
}

func newFakeFirmware() *fakeFirmware {
	f := &fakeFirmware{
		handlers: make(map[uint64]func(args []uint64) uint64),
	}

	f.vendor = f.putUTF16("Fake Firmware")
	f.boot = putTable(f, bootServicesSignature, BootServicesTable{})
	f.runtime = putTable(f, runtimeServicesSignature, RuntimeServicesTable{})
	f.conIn = f.alloc(0x18)
	f.conOut = f.alloc(0x50)
	f.config = f.put([]ConfigurationTable{
		{GUID: ACPI_20_TABLE_GUID, VendorTable: 0xe0000},
		{GUID: SMBIOS3_TABLE_GUID, VendorTable: 0xf0000},
	})

	f.systemTable = putTable(f, systemTableSignature, System{
		FirmwareVendor:       f.vendor,
		FirmwareRevision:     0x10000,
		ConIn:                f.conIn,
		ConOut:               f.conOut,
		StdErr:               f.conOut,
		RuntimeServices:      f.runtime,
		BootServices:         f.boot,
		NumberOfTableEntries: 2,
		ConfigurationTable:   f.config,
	})

	return f
}

// putTable stores an EFI table with a valid header.
func putTable[T any](f *fakeFirmware, signature uint64, inner T) uint64 {
	d := &table[T]{
		Header: TableHeader{
			Signature:  signature,
			Revision:   2<<16 | 100,
			HeaderSize: uint32(headerSize + binary.Size(inner)),
		},
		Inner: inner,
	}

	buf, err := marshalBinary(d)

	if err != nil {
		panic(err)
	}

	binary.LittleEndian.PutUint32(buf[crcOffset:], crc32.ChecksumIEEE(buf))

	addr := f.alloc(len(buf))
	copy(f.bytes(addr, len(buf)), buf)

	return addr
}

func (f *fakeFirmware) Call(fn uint64, args []uint64) uint64 {
	f.calls = append(f.calls, fakeCall{fn: fn, args: slices.Clone(args)})

	if h, ok := f.handlers[fn]; ok {
		return h(args)
	}

	return errorBit | EFI_UNSUPPORTED
}

func (f *fakeFirmware) Memory(addr uint64, size int) ([]byte, error) {
	if addr == 0 {
		return nil, errors.New("invalid address")
	}

	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), size), nil
}

func (f *fakeFirmware) handle(fn uint64, h func(args []uint64) uint64) {
	f.handlers[fn] = h
}

func (f *fakeFirmware) callsTo(fn uint64) (calls []fakeCall) {
	for _, c := range f.calls {
		if c.fn == fn {
			calls = append(calls, c)
		}
	}

	return
}

func (f *fakeFirmware) alloc(size int) uint64 {
	buf := make([]byte, max(size, 8))
	f.mem = append(f.mem, buf)

	return uint64(uintptr(unsafe.Pointer(&buf[0])))
}

func (f *fakeFirmware) bytes(addr uint64, size int) []byte {
	buf, err := f.Memory(addr, size)

	if err != nil {
		panic(err)
	}

	return buf
}

func (f *fakeFirmware) put(data any) uint64 {
	buf, err := marshalBinary(data)

	if err != nil {
		panic(err)
	}

	addr := f.alloc(len(buf))
	copy(f.bytes(addr, len(buf)), buf)

	return addr
}

func (f *fakeFirmware) putUTF16(s string) uint64 {
	return f.put(toUTF16(s))
}

func (f *fakeFirmware) getUint64(addr uint64) uint64 {
	return binary.LittleEndian.Uint64(f.bytes(addr, 8))
}

func (f *fakeFirmware) putUint64(addr uint64, val uint64) {
	binary.LittleEndian.PutUint64(f.bytes(addr, 8), val)
}

func (f *fakeFirmware) putUint32(addr uint64, val uint32) {
	binary.LittleEndian.PutUint32(f.bytes(addr, 4), val)
}

func (f *fakeFirmware) getGUID(addr uint64) (g GUID) {
	copy(g[:], f.bytes(addr, len(g)))
	return
}

// getUTF16 reads a null terminated UTF-16 string.
func (f *fakeFirmware) getUTF16(addr uint64) []uint16 {
	var s []uint16

	for i := uint64(0); ; i += 2 {
		c := binary.LittleEndian.Uint16(f.bytes(addr+i, 2))

		if c == 0 {
			return s
		}

		s = append(s, c)
	}
}

func (f *fakeFirmware) getString(addr uint64) string {
	return string(utf16.Decode(f.getUTF16(addr)))
}

// protocols registers a HandleProtocol implementation over the argument
// handle database.
func (f *fakeFirmware) protocols(db map[Handle]map[GUID]uint64) {
	f.handle(f.boot+handleProtocol, func(args []uint64) uint64 {
		p, ok := db[Handle(args[0])][f.getGUID(args[1])]

		if !ok {
			return errorBit | EFI_UNSUPPORTED
		}

		f.putUint64(args[2], p)

		return EFI_SUCCESS
	})

	f.handle(f.boot+locateProtocol, func(args []uint64) uint64 {
		guid := f.getGUID(args[0])

		for _, h := range slices.Sorted(maps.Keys(db)) {
			if p, ok := db[h][guid]; ok {
				f.putUint64(args[2], p)
				return EFI_SUCCESS
			}
		}

		return errorBit | EFI_NOT_FOUND
	})
}

func newServices(t *testing.T) (*Services, *fakeFirmware) {
	f := newFakeFirmware()

	s := &Services{
		Halt: func() { panic(errHalted) },
	}

	require.NoError(t, s.Init(f, testImageHandle, f.systemTable))

	return s, f
}

// captureConsole records the strings written to the console.
func (f *fakeFirmware) captureConsole() *[]string {
	out := &[]string{}

	f.handle(f.conOut+outputString, func(args []uint64) uint64 {
		*out = append(*out, f.getString(args[1]))
		return EFI_SUCCESS
	})

	return out
}
