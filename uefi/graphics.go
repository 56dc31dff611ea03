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

var EFI_GRAPHICS_OUTPUT_PROTOCOL_GUID = MustParseGUID("9042a9de-23dc-4a38-96fb-7aded080516a")

// EFI Graphics Output Protocol offsets
const (
	queryMode = 0x00
	setMode   = 0x08
	blt       = 0x10
	mode      = 0x18
)

// BltOperation represents an EFI_GRAPHICS_OUTPUT_BLT_OPERATION.
type BltOperation int

// EFI_GRAPHICS_OUTPUT_BLT_OPERATION
const (
	EfiBltVideoFill = iota
	EfiBltVideoToBltBuffer
	EfiBltBufferToVideo
	EfiBltVideoToVideo
	EfiGraphicsOutputBltOperationMax
)

// EFI_GRAPHICS_PIXEL_FORMAT
const (
	PixelRedGreenBlueReserved8BitPerColor = iota
	PixelBlueGreenRedReserved8BitPerColor
	PixelBitMask
	PixelBltOnly
	PixelFormatMax
)

// Framebuffer errors.
var (
	ErrNoFramebuffer    = errors.New("no linear framebuffer")
	ErrFramebufferBusy  = errors.New("framebuffer view already taken")
	ErrStaleFramebuffer = errors.New("framebuffer view invalidated by mode change")
)

// BltPixel represents an EFI_GRAPHICS_OUTPUT_BLT_PIXEL.
type BltPixel struct {
	Blue     uint8
	Green    uint8
	Red      uint8
	Reserved uint8
}

// RGB returns the pixel for a 0xRRGGBB color value.
func RGB(rgb uint32) BltPixel {
	return BltPixel{
		Red:   uint8(rgb >> 16),
		Green: uint8(rgb >> 8),
		Blue:  uint8(rgb),
	}
}

// ModeInformation represents an EFI Graphics Output Mode Information instance.
type ModeInformation struct {
	Version              uint32
	HorizontalResolution uint32
	VerticalResolution   uint32
	PixelFormat          uint32
	RedMask              uint32
	GreenMask            uint32
	BlueMask             uint32
	ReservedMask         uint32
	PixelsPerScanLine    uint32
}

// ProtocolMode represents an EFI Graphics Output Protocol Mode instance.
type ProtocolMode struct {
	MaxMode         uint32
	Mode            uint32
	Info            uint64
	SizeOfInfo      uint64
	FrameBufferBase uint64
	FrameBufferSize uint64
}

// GraphicsOutput represents an EFI Graphics Output Protocol instance.
type GraphicsOutput struct {
	addr uint64
	boot *BootServices

	// incremented on every mode change
	generation uint64
	view       *Framebuffer
}

// GUID returns the EFI Graphics Output Protocol GUID.
func (gop *GraphicsOutput) GUID() GUID {
	return EFI_GRAPHICS_OUTPUT_PROTOCOL_GUID
}

func (gop *GraphicsOutput) bind(s *BootServices, addr uint64) error {
	gop.addr = addr
	gop.boot = s
	return nil
}

func (gop *GraphicsOutput) call(fn uint64, args ...uint64) error {
	status := gop.boot.fw.Call(gop.addr+fn, append([]uint64{gop.addr}, args...))
	return parseStatus(status)
}

// Mode returns the EFI Graphics Output Mode instance.
func (gop *GraphicsOutput) Mode() (pm *ProtocolMode, err error) {
	var addr uint64

	if err = decode(gop.boot.fw, &addr, gop.addr+mode); err != nil {
		return
	}

	pm = &ProtocolMode{}
	err = decode(gop.boot.fw, pm, addr)

	return
}

// MaxMode returns the number of supported modes.
func (gop *GraphicsOutput) MaxMode() (int, error) {
	pm, err := gop.Mode()

	if err != nil {
		return 0, err
	}

	return int(pm.MaxMode), nil
}

// CurrentMode returns the current mode number.
func (gop *GraphicsOutput) CurrentMode() (int, error) {
	pm, err := gop.Mode()

	if err != nil {
		return 0, err
	}

	return int(pm.Mode), nil
}

// ModeInformation returns the current mode information.
func (gop *GraphicsOutput) ModeInformation() (info *ModeInformation, err error) {
	pm, err := gop.Mode()

	if err != nil {
		return
	}

	info = &ModeInformation{}
	err = decode(gop.boot.fw, info, pm.Info)

	return
}

// QueryMode calls EFI_GRAPHICS_OUTPUT_PROTOCOL.QueryMode().
func (gop *GraphicsOutput) QueryMode(n int) (info *ModeInformation, err error) {
	var size uint64
	var addr uint64

	if err = gop.call(queryMode, uint64(n), ptrval(&size), ptrval(&addr)); err != nil {
		return
	}

	// the information buffer is allocated by the firmware
	defer gop.boot.FreePool(addr)

	info = &ModeInformation{}
	err = decode(gop.boot.fw, info, addr)

	return
}

// SetMode calls EFI_GRAPHICS_OUTPUT_PROTOCOL.SetMode(), any framebuffer view
// obtained before the call becomes invalid.
func (gop *GraphicsOutput) SetMode(n int) (err error) {
	gop.generation++
	gop.view = nil

	return gop.call(setMode, uint64(n))
}

// Blt calls EFI_GRAPHICS_OUTPUT_PROTOCOL.Blt().
func (gop *GraphicsOutput) Blt(buf []byte, op BltOperation, srcX, srcY, dstX, dstY, width, height, delta uint64) (err error) {
	var p uint64

	if len(buf) > 0 {
		p = ptrval(&buf[0])
	}

	defer runtime.KeepAlive(buf)

	return gop.call(blt,
		p,
		uint64(op),
		srcX,
		srcY,
		dstX,
		dstY,
		width,
		height,
		delta,
	)
}

// Fill fills a rectangle with the argument color with a single video fill
// Blt operation.
func (gop *GraphicsOutput) Fill(color BltPixel, x, y, width, height int) error {
	px := []byte{color.Blue, color.Green, color.Red, color.Reserved}
	return gop.Blt(px, EfiBltVideoFill, 0, 0, uint64(x), uint64(y), uint64(width), uint64(height), 0)
}

// Framebuffer represents a view over the linear framebuffer, valid until the
// next mode change.
type Framebuffer struct {
	// Info is the mode information at the time the view was taken
	Info ModeInformation

	gop        *GraphicsOutput
	generation uint64
	base       uint64
	size       int
	released   bool
}

// Framebuffer returns a view over the linear framebuffer of the current mode,
// only one view can be taken at a time and it must be released with
// [Framebuffer.Release] before a new one can be obtained.
func (gop *GraphicsOutput) Framebuffer() (fb *Framebuffer, err error) {
	if gop.view != nil {
		return nil, ErrFramebufferBusy
	}

	pm, err := gop.Mode()

	if err != nil {
		return
	}

	if pm.FrameBufferBase == 0 || pm.FrameBufferSize == 0 {
		return nil, ErrNoFramebuffer
	}

	fb = &Framebuffer{
		gop:        gop,
		generation: gop.generation,
		base:       pm.FrameBufferBase,
		size:       int(pm.FrameBufferSize),
	}

	if err = decode(gop.boot.fw, &fb.Info, pm.Info); err != nil {
		return nil, err
	}

	if fb.Info.PixelFormat == PixelBltOnly {
		return nil, ErrNoFramebuffer
	}

	gop.view = fb

	return
}

// Valid reports whether the view can still be used.
func (fb *Framebuffer) Valid() bool {
	return !fb.released && fb.generation == fb.gop.generation
}

// Bytes returns the framebuffer memory, it must not be retained past a mode
// change or the view release.
func (fb *Framebuffer) Bytes() ([]byte, error) {
	if !fb.Valid() {
		return nil, ErrStaleFramebuffer
	}

	return fb.gop.boot.fw.Memory(fb.base, fb.size)
}

// Stride returns the number of bytes per scan line.
func (fb *Framebuffer) Stride() int {
	return int(fb.Info.PixelsPerScanLine) * 4
}

// Release returns the view, allowing a new one to be taken.
func (fb *Framebuffer) Release() {
	if fb.released {
		return
	}

	fb.released = true

	if fb.gop.view == fb {
		fb.gop.view = nil
	}
}

// GetGraphicsOutput locates and returns the EFI Graphics Output Protocol
// instance.
func (s *BootServices) GetGraphicsOutput() (gop *GraphicsOutput, err error) {
	if gop, err = Locate[GraphicsOutput](s); err != nil {
		return nil, fmt.Errorf("could not locate graphics output, %v", err)
	}

	return
}
