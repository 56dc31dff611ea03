// Copyright (c) The go-uefi authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"errors"
	"io"
	"io/fs"
	"strings"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	s, f := newServices(t)

	assert.Equal(t, Handle(testImageHandle), s.ImageHandle())
	assert.Equal(t, f.systemTable, s.Address())
	assert.Equal(t, f.boot, s.Boot.Address())
	assert.Equal(t, f.runtime, s.Runtime.Address())
	assert.Equal(t, f.conOut, s.Console.Out)
	assert.Equal(t, f.conIn, s.Console.In)
	assert.Equal(t, uint64(0), s.StdErr.In)

	vendor, err := s.FirmwareVendor()
	require.NoError(t, err)
	assert.Equal(t, "Fake Firmware", vendor)
}

func TestInitOnce(t *testing.T) {
	s, f := newServices(t)

	err := s.Init(f, testImageHandle, f.systemTable)
	assert.ErrorIs(t, err, ErrInitialized)
}

func TestInitInvalidSignature(t *testing.T) {
	f := newFakeFirmware()
	s := &Services{}

	err := s.Init(f, testImageHandle, f.boot)
	assert.Error(t, err)

	// the failed attempt does not consume the instance
	require.NoError(t, s.Init(f, testImageHandle, f.systemTable))
}

func TestInitCRC(t *testing.T) {
	f := newFakeFirmware()

	// corrupt a boot service slot
	f.putUint64(f.boot+stall, 0xdeadbeef)

	s := &Services{}
	err := s.Init(f, testImageHandle, f.systemTable)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CRC32")

	s = &Services{TrustTables: true}
	assert.NoError(t, s.Init(f, testImageHandle, f.systemTable))
}

func TestInitHeaderSize(t *testing.T) {
	f := newFakeFirmware()

	// declared size smaller than the runtime services table
	f.putUint32(f.runtime+12, headerSize)

	s := &Services{}
	err := s.Init(f, testImageHandle, f.systemTable)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "size")
}

func TestTableInnerAddress(t *testing.T) {
	s, f := newServices(t)

	assert.Equal(t, f.systemTable+24, s.SystemTable.InnerAddress())
	assert.Equal(t, uint64(systemTableSignature), s.SystemTable.Signature)
	assert.Equal(t, f.boot, s.SystemTable.Inner().BootServices)
	assert.Equal(t, uint32(2), uint32(s.SystemTable.Inner().NumberOfTableEntries))
}

func TestBootServicesOffsets(t *testing.T) {
	var bs BootServicesTable

	offsets := []struct {
		name   string
		offset uintptr
		want   uint64
	}{
		{"RaiseTPL", unsafe.Offsetof(bs.RaiseTPL), raiseTPL},
		{"RestoreTPL", unsafe.Offsetof(bs.RestoreTPL), restoreTPL},
		{"AllocatePages", unsafe.Offsetof(bs.AllocatePages), allocatePages},
		{"FreePages", unsafe.Offsetof(bs.FreePages), freePages},
		{"GetMemoryMap", unsafe.Offsetof(bs.GetMemoryMap), getMemoryMap},
		{"AllocatePool", unsafe.Offsetof(bs.AllocatePool), allocatePool},
		{"FreePool", unsafe.Offsetof(bs.FreePool), freePool},
		{"CreateEvent", unsafe.Offsetof(bs.CreateEvent), createEvent},
		{"SetTimer", unsafe.Offsetof(bs.SetTimer), setTimer},
		{"WaitForEvent", unsafe.Offsetof(bs.WaitForEvent), waitForEvent},
		{"SignalEvent", unsafe.Offsetof(bs.SignalEvent), signalEvent},
		{"CloseEvent", unsafe.Offsetof(bs.CloseEvent), closeEvent},
		{"CheckEvent", unsafe.Offsetof(bs.CheckEvent), checkEvent},
		{"HandleProtocol", unsafe.Offsetof(bs.HandleProtocol), handleProtocol},
		{"LocateHandle", unsafe.Offsetof(bs.LocateHandle), locateHandle},
		{"Exit", unsafe.Offsetof(bs.Exit), exit},
		{"ExitBootServices", unsafe.Offsetof(bs.ExitBootServices), exitBootServices},
		{"GetNextMonotonicCount", unsafe.Offsetof(bs.GetNextMonotonicCount), getNextMonotonicCount},
		{"Stall", unsafe.Offsetof(bs.Stall), stall},
		{"SetWatchdogTimer", unsafe.Offsetof(bs.SetWatchdogTimer), setWatchdogTimer},
		{"LocateProtocol", unsafe.Offsetof(bs.LocateProtocol), locateProtocol},
	}

	for _, o := range offsets {
		assert.Equal(t, o.want, uint64(headerSize+o.offset), o.name)
	}

	assert.Equal(t, 44*8, int(unsafe.Sizeof(bs)))
}

func TestRuntimeServicesOffsets(t *testing.T) {
	var rt RuntimeServicesTable

	assert.Equal(t, uint64(getTime), uint64(headerSize+unsafe.Offsetof(rt.GetTime)))
	assert.Equal(t, uint64(getVariable), uint64(headerSize+unsafe.Offsetof(rt.GetVariable)))
	assert.Equal(t, uint64(getNextVariableName), uint64(headerSize+unsafe.Offsetof(rt.GetNextVariableName)))
	assert.Equal(t, uint64(resetSystem), uint64(headerSize+unsafe.Offsetof(rt.ResetSystem)))
}

func TestSystemTableOffsets(t *testing.T) {
	var sys System

	// offsets used by the x64 entry point
	assert.Equal(t, 0x30, int(headerSize+unsafe.Offsetof(sys.ConIn)))
	assert.Equal(t, 0x40, int(headerSize+unsafe.Offsetof(sys.ConOut)))
	assert.Equal(t, 0x58, int(headerSize+unsafe.Offsetof(sys.RuntimeServices)))
	assert.Equal(t, 0x60, int(headerSize+unsafe.Offsetof(sys.BootServices)))
}

func TestFatal(t *testing.T) {
	s, f := newServices(t)
	out := f.captureConsole()

	require.PanicsWithValue(t, errHalted, func() {
		s.Fatal(errors.New("out of cheese"))
	})

	msg := strings.Join(*out, "")

	assert.True(t, strings.HasPrefix(msg, "fatal error at "))
	assert.Contains(t, msg, "uefi_test.go:")
	assert.Contains(t, msg, ": out of cheese\n\r")
}

func TestStatus(t *testing.T) {
	assert.NoError(t, parseStatus(EFI_SUCCESS))
	assert.NoError(t, parseStatus(EFI_WARN_BUFFER_TOO_SMALL))

	err := parseStatus(errorBit | EFI_ACCESS_DENIED)
	require.Error(t, err)

	var status Status
	require.ErrorAs(t, err, &status)
	assert.Equal(t, uint64(EFI_ACCESS_DENIED), status.Code())
	assert.Equal(t, "EFI_ACCESS_DENIED", err.Error())
	assert.ErrorIs(t, err, ErrEfiAccessDenied)
	assert.NotErrorIs(t, err, ErrEfiDeviceError)

	assert.Equal(t, "EFI_STATUS error 0x80000000000000ff (255)", Status(errorBit|0xff).Error())
	assert.False(t, isStatus(EFI_BUFFER_TOO_SMALL, EFI_BUFFER_TOO_SMALL))
	assert.True(t, isStatus(errorBit|EFI_BUFFER_TOO_SMALL, EFI_BUFFER_TOO_SMALL))
}

func TestStatusDerivedViews(t *testing.T) {
	views := []struct {
		code   uint64
		target error
		match  bool
	}{
		{EFI_NOT_FOUND, fs.ErrNotExist, true},
		{EFI_ACCESS_DENIED, fs.ErrPermission, true},
		{EFI_WRITE_PROTECTED, fs.ErrPermission, true},
		{EFI_SECURITY_VIOLATION, fs.ErrPermission, true},
		{EFI_END_OF_FILE, io.EOF, true},
		{EFI_DEVICE_ERROR, fs.ErrNotExist, false},
		{EFI_DEVICE_ERROR, io.EOF, false},
		{EFI_NOT_FOUND, fs.ErrPermission, false},
	}

	for _, v := range views {
		err := parseStatus(errorBit | v.code)
		assert.Equal(t, v.match, errors.Is(err, v.target), "%v/%v", err, v.target)
	}

	// warnings never match error views
	assert.False(t, errors.Is(Status(EFI_NOT_FOUND), fs.ErrNotExist))
}
