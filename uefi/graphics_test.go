// Copyright (c) The go-uefi authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testModeInformation = ModeInformation{
	HorizontalResolution: 800,
	VerticalResolution:   600,
	PixelFormat:          PixelBlueGreenRedReserved8BitPerColor,
	PixelsPerScanLine:    800,
}

// graphicsOutput registers an EFI Graphics Output Protocol instance with a
// linear framebuffer of the argument size, its address is returned.
func (f *fakeFirmware) graphicsOutput(fbSize int, info ModeInformation) (addr uint64, pool *[]uint64) {
	pool = &[]uint64{}

	addr = f.alloc(0x20)

	pm := &ProtocolMode{
		MaxMode:    2,
		Info:       f.put(&info),
		SizeOfInfo: 36,
	}

	if fbSize > 0 {
		pm.FrameBufferBase = f.alloc(fbSize)
		pm.FrameBufferSize = uint64(fbSize)
	}

	f.putUint64(addr+mode, f.put(pm))

	f.handle(addr+queryMode, func(args []uint64) uint64 {
		if args[1] >= uint64(pm.MaxMode) {
			return errorBit | EFI_INVALID_PARAMETER
		}

		f.putUint64(args[2], 36)
		f.putUint64(args[3], f.put(&info))

		return EFI_SUCCESS
	})

	f.handle(addr+setMode, func(args []uint64) uint64 {
		return EFI_SUCCESS
	})

	f.handle(addr+blt, func(args []uint64) uint64 {
		return EFI_SUCCESS
	})

	f.handle(f.boot+freePool, func(args []uint64) uint64 {
		*pool = append(*pool, args[0])
		return EFI_SUCCESS
	})

	f.protocols(map[Handle]map[GUID]uint64{
		testDeviceHandle: {EFI_GRAPHICS_OUTPUT_PROTOCOL_GUID: addr},
	})

	return
}

func TestGraphicsOutputMode(t *testing.T) {
	s, f := newServices(t)
	f.graphicsOutput(4096, testModeInformation)

	gop, err := s.Boot.GetGraphicsOutput()
	require.NoError(t, err)

	n, err := gop.MaxMode()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = gop.CurrentMode()
	require.NoError(t, err)
	assert.Zero(t, n)

	info, err := gop.ModeInformation()
	require.NoError(t, err)
	assert.Equal(t, testModeInformation, *info)
}

func TestGraphicsOutputQueryMode(t *testing.T) {
	s, f := newServices(t)
	_, pool := f.graphicsOutput(4096, testModeInformation)

	gop, err := s.Boot.GetGraphicsOutput()
	require.NoError(t, err)

	info, err := gop.QueryMode(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(800), info.HorizontalResolution)

	// the firmware allocated information is released
	calls := f.callsTo(gop.addr + queryMode)
	require.Len(t, calls, 1)
	assert.Equal(t, []uint64{f.getUint64(calls[0].args[3])}, *pool)

	_, err = gop.QueryMode(2)
	assert.ErrorIs(t, err, ErrEfiInvalidParameter)
	assert.Len(t, *pool, 1)
}

func TestGraphicsOutputFill(t *testing.T) {
	s, f := newServices(t)
	addr, _ := f.graphicsOutput(4096, testModeInformation)

	gop, err := s.Boot.GetGraphicsOutput()
	require.NoError(t, err)

	require.NoError(t, gop.Fill(RGB(0x102030), 10, 20, 300, 200))

	calls := f.callsTo(addr + blt)
	require.Len(t, calls, 1)

	args := calls[0].args
	require.Len(t, args, MaxArgs)

	assert.Equal(t, addr, args[0])
	assert.Equal(t, uint64(EfiBltVideoFill), args[2])
	assert.Equal(t, []uint64{0, 0, 10, 20, 300, 200, 0}, args[3:])
}

func TestFramebuffer(t *testing.T) {
	s, f := newServices(t)
	f.graphicsOutput(4096, testModeInformation)

	gop, err := s.Boot.GetGraphicsOutput()
	require.NoError(t, err)

	fb, err := gop.Framebuffer()
	require.NoError(t, err)
	assert.Equal(t, 800*4, fb.Stride())

	buf, err := fb.Bytes()
	require.NoError(t, err)
	assert.Len(t, buf, 4096)

	// a single view at a time
	_, err = gop.Framebuffer()
	assert.ErrorIs(t, err, ErrFramebufferBusy)

	fb.Release()
	fb.Release()

	_, err = fb.Bytes()
	assert.ErrorIs(t, err, ErrStaleFramebuffer)

	fb, err = gop.Framebuffer()
	require.NoError(t, err)

	// mode changes invalidate outstanding views
	require.NoError(t, gop.SetMode(1))
	assert.False(t, fb.Valid())

	_, err = fb.Bytes()
	assert.ErrorIs(t, err, ErrStaleFramebuffer)

	fb, err = gop.Framebuffer()
	require.NoError(t, err)
	assert.True(t, fb.Valid())
}

func TestNoFramebuffer(t *testing.T) {
	s, f := newServices(t)
	f.graphicsOutput(0, testModeInformation)

	gop, err := s.Boot.GetGraphicsOutput()
	require.NoError(t, err)

	_, err = gop.Framebuffer()
	assert.ErrorIs(t, err, ErrNoFramebuffer)

	// Blt only modes do not expose a framebuffer
	info := testModeInformation
	info.PixelFormat = PixelBltOnly

	s, f = newServices(t)
	f.graphicsOutput(4096, info)

	gop, err = s.Boot.GetGraphicsOutput()
	require.NoError(t, err)

	_, err = gop.Framebuffer()
	assert.ErrorIs(t, err, ErrNoFramebuffer)
}

func TestGraphicsOutputNotFound(t *testing.T) {
	s, f := newServices(t)
	f.protocols(nil)

	_, err := s.Boot.GetGraphicsOutput()
	assert.Error(t, err)
}

func TestRGB(t *testing.T) {
	assert.Equal(t, BltPixel{Red: 0x10, Green: 0x20, Blue: 0x30}, RGB(0x102030))
}
