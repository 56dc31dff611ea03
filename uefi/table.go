// Copyright (c) The go-uefi authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"runtime"
)

// EFI Table Header Signatures
const (
	systemTableSignature     = 0x5453595320494249 // TSYS IBI
	bootServicesSignature    = 0x56524553544f4f42 // VRESTOOB
	runtimeServicesSignature = 0x56524553544e5552 // VRESTNUR
)

// headerSize represents the size of the EFI Table Header
const headerSize = 24

// offset of TableHeader.CRC32
const crcOffset = 16

// TableHeader represents the data structure that precedes all of the standard
// EFI table types.
type TableHeader struct {
	Signature  uint64
	Revision   uint32
	HeaderSize uint32
	CRC32      uint32
	Reserved   uint32
}

// Table represents an EFI table, a header followed by the table specific
// structure. The table memory is owned by the firmware, a Table only holds a
// decoded copy and the table address.
type Table[T any] struct {
	TableHeader

	inner   T
	address uint64
}

// table represents the binary layout of an EFI table.
type table[T any] struct {
	Header TableHeader
	Inner  T
}

type verifier interface {
	Verify(fw Firmware) error
}

// ReadTable decodes the EFI table at the argument address, verifying its
// signature.
func ReadTable[T any](fw Firmware, addr uint64, signature uint64) (t *Table[T], err error) {
	var d table[T]

	if addr == 0 {
		return nil, errors.New("invalid address")
	}

	if err = decode(fw, &d, addr); err != nil {
		return
	}

	if d.Header.Signature != signature {
		return nil, fmt.Errorf("invalid signature %#x", d.Header.Signature)
	}

	t = &Table[T]{
		TableHeader: d.Header,
		inner:       d.Inner,
		address:     addr,
	}

	return
}

// Inner returns the table specific structure which follows the header.
func (t *Table[T]) Inner() *T {
	return &t.inner
}

// Address returns the table address.
func (t *Table[T]) Address() uint64 {
	return t.address
}

// InnerAddress returns the address of the table specific structure.
func (t *Table[T]) InnerAddress() uint64 {
	return t.address + headerSize
}

// Verify checks the table header size and CRC32 against the table memory
// contents.
func (t *Table[T]) Verify(fw Firmware) (err error) {
	var inner T

	size := int(t.HeaderSize)

	if size < headerSize+binary.Size(inner) {
		return fmt.Errorf("invalid table size (%d)", size)
	}

	buf, err := fw.Memory(t.address, size)

	if err != nil {
		return
	}

	// the CRC32 is computed with its own field set to 0
	b := make([]byte, size)
	copy(b, buf)
	binary.LittleEndian.PutUint32(b[crcOffset:], 0)

	if sum := crc32.ChecksumIEEE(b); sum != t.CRC32 {
		return fmt.Errorf("invalid table CRC32 (%#x != %#x)", sum, t.CRC32)
	}

	return
}

// System represents the EFI System Table contents following its header.
type System struct {
	FirmwareVendor       uint64
	FirmwareRevision     uint32
	_                    uint32
	ConsoleInHandle      uint64
	ConIn                uint64
	ConsoleOutHandle     uint64
	ConOut               uint64
	StandardErrorHandle  uint64
	StdErr               uint64
	RuntimeServices      uint64
	BootServices         uint64
	NumberOfTableEntries uint64
	ConfigurationTable   uint64
}

// SystemTable represents the EFI System Table, containing pointers to the
// runtime and boot services tables.
type SystemTable = Table[System]

// BootServicesTable represents the EFI Boot Services Table function pointers.
type BootServicesTable struct {
	RaiseTPL                            uint64
	RestoreTPL                          uint64
	AllocatePages                       uint64
	FreePages                           uint64
	GetMemoryMap                        uint64
	AllocatePool                        uint64
	FreePool                            uint64
	CreateEvent                         uint64
	SetTimer                            uint64
	WaitForEvent                        uint64
	SignalEvent                         uint64
	CloseEvent                          uint64
	CheckEvent                          uint64
	InstallProtocolInterface            uint64
	ReinstallProtocolInterface          uint64
	UninstallProtocolInterface          uint64
	HandleProtocol                      uint64
	Reserved                            uint64
	RegisterProtocolNotify              uint64
	LocateHandle                        uint64
	LocateDevicePath                    uint64
	InstallConfigurationTable           uint64
	LoadImage                           uint64
	StartImage                          uint64
	Exit                                uint64
	UnloadImage                         uint64
	ExitBootServices                    uint64
	GetNextMonotonicCount               uint64
	Stall                               uint64
	SetWatchdogTimer                    uint64
	ConnectController                   uint64
	DisconnectController                uint64
	OpenProtocol                        uint64
	CloseProtocol                       uint64
	OpenProtocolInformation             uint64
	ProtocolsPerHandle                  uint64
	LocateHandleBuffer                  uint64
	LocateProtocol                      uint64
	InstallMultipleProtocolInterfaces   uint64
	UninstallMultipleProtocolInterfaces uint64
	CalculateCrc32                      uint64
	CopyMem                             uint64
	SetMem                              uint64
	CreateEventEx                       uint64
}

// RuntimeServicesTable represents the EFI Runtime Services Table function
// pointers.
type RuntimeServicesTable struct {
	GetTime                   uint64
	SetTime                   uint64
	GetWakeupTime             uint64
	SetWakeupTime             uint64
	SetVirtualAddressMap      uint64
	ConvertPointer            uint64
	GetVariable               uint64
	GetNextVariableName       uint64
	SetVariable               uint64
	GetNextHighMonotonicCount uint64
	ResetSystem               uint64
	UpdateCapsule             uint64
	QueryCapsuleCapabilities  uint64
	QueryVariableInfo         uint64
}

// BootServices represents an EFI Boot Services instance.
type BootServices struct {
	*Table[BootServicesTable]

	fw          Firmware
	base        uint64
	imageHandle Handle
	fatal       func(file string, line int, err error)
}

// RuntimeServices represents an EFI Runtime Services instance.
type RuntimeServices struct {
	*Table[RuntimeServicesTable]

	fw   Firmware
	base uint64
}

// die reports an unrecoverable error, along with the location of its caller,
// and never returns.
func (s *BootServices) die(err error) {
	if s.fatal == nil {
		panic(err)
	}

	_, file, line, _ := runtime.Caller(1)
	s.fatal(file, line, err)
}
