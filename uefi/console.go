// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"runtime"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

var (
	EFI_SIMPLE_TEXT_INPUT_PROTOCOL_GUID  = MustParseGUID("387477c1-69c7-11d2-8e39-00a0c969723b")
	EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL_GUID = MustParseGUID("387477c2-69c7-11d2-8e39-00a0c969723b")
)

// EFI Simple Text Output Protocol offsets
const (
	reset             = 0x00
	outputString      = 0x08
	setAttribute      = 0x28
	clearScreen       = 0x30
	setCursorPosition = 0x38
	enableCursor      = 0x40
)

// EFI Simple Text Input Protocol offsets
const (
	readKeyStroke = 0x08
)

// maxOutputUnits represents the maximum number of UTF-16 code units written
// with a single OutputString call.
const maxOutputUnits = 128

// EFI Scan Codes
const (
	ScanUp    = 0x01
	ScanDown  = 0x02
	ScanRight = 0x03
	ScanLeft  = 0x04
	ScanEsc   = 0x17
)

// InputKey represents an EFI Input Key descriptor.
type InputKey struct {
	ScanCode    uint16
	UnicodeChar uint16
}

// Console implements the [io.ReadWriter] interface over EFI Simple Text
// Input/Output protocol.
type Console struct {
	// ForceLine controls whether line feeds (LF) should be supplemented
	// with a carriage return (CR).
	ForceLine bool

	// ReplaceTabs controls whether Console I/O output should have Tab
	// characters replaced with a number of spaces.
	ReplaceTabs int

	// In is the EFI Simple Text Input Protocol instance address
	In uint64
	// Out is the EFI Simple Text Output Protocol instance address
	Out uint64

	// Firmware is the interface used to invoke protocol functions
	Firmware Firmware

	pending []byte
}

// GUID returns the EFI Simple Text Output Protocol GUID.
func (c *Console) GUID() GUID {
	return EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL_GUID
}

func (c *Console) bind(s *BootServices, addr uint64) error {
	c.Out = addr
	c.Firmware = s.fw
	return nil
}

func (c *Console) output(fn uint64, args ...uint64) error {
	if c.Out == 0 || c.Firmware == nil {
		return nil
	}

	status := c.Firmware.Call(c.Out+fn, append([]uint64{c.Out}, args...))

	return parseStatus(status)
}

// Reset calls EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.Reset().
func (c *Console) Reset(extendedVerification bool) error {
	var ext uint64

	if extendedVerification {
		ext = 1
	}

	return c.output(reset, ext)
}

// OutputString calls EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.OutputString() on a null
// terminated UTF-16 string.
func (c *Console) OutputString(s []uint16) error {
	if len(s) == 0 || s[len(s)-1] != 0x00 {
		s = append(s, 0x00)
	}

	defer runtime.KeepAlive(s)
	return c.output(outputString, ptrval(&s[0]))
}

// SetAttribute calls EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.SetAttribute().
func (c *Console) SetAttribute(attr int) error {
	return c.output(setAttribute, uint64(attr))
}

// ClearScreen calls EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.ClearScreen().
func (c *Console) ClearScreen() error {
	return c.output(clearScreen)
}

// SetCursorPosition calls EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.SetCursorPosition().
func (c *Console) SetCursorPosition(column int, row int) error {
	return c.output(setCursorPosition, uint64(column), uint64(row))
}

// EnableCursor calls EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.EnableCursor().
func (c *Console) EnableCursor(visible bool) error {
	var v uint64

	if visible {
		v = 1
	}

	return c.output(enableCursor, v)
}

// Print writes a string to the console, the string is converted to UTF-16
// and written in chunks of at most 128 code units, surrogate pairs are never
// split across chunks. Writing stops at the first firmware error.
func (c *Console) Print(s string) (err error) {
	b := utf16.Encode([]rune(s))

	for len(b) > 0 {
		n := min(len(b), maxOutputUnits)

		if n < len(b) && utf16.IsSurrogate(rune(b[n-1])) && b[n-1] < 0xdc00 {
			n--
		}

		chunk := make([]uint16, n, n+1)
		copy(chunk, b[:n])

		if err = c.OutputString(append(chunk, 0x00)); err != nil {
			return
		}

		b = b[n:]
	}

	return
}

// Println writes a string followed by a CR LF line terminator.
func (c *Console) Println(s string) (err error) {
	if err = c.Print(s); err != nil {
		return
	}

	return c.Print("\r\n")
}

// ReadKeyStroke calls EFI_SIMPLE_TEXT_INPUT_PROTOCOL.ReadKeyStroke().
func (c *Console) ReadKeyStroke() (k InputKey, err error) {
	if c.In == 0 || c.Firmware == nil {
		return k, ErrEfiNotReady
	}

	status := c.Firmware.Call(c.In+readKeyStroke,
		[]uint64{
			c.In,
			ptrval(&k),
		},
	)

	return k, parseStatus(status)
}

// Read available data to buffer from console, key strokes are converted to
// UTF-8 and arrow keys to ANSI escape sequences.
func (c *Console) Read(p []byte) (n int, err error) {
	for len(c.pending) < len(p) {
		k, err := c.ReadKeyStroke()

		if err == ErrEfiNotReady {
			break
		}

		if err != nil {
			return 0, err
		}

		switch {
		case k.UnicodeChar != 0:
			c.pending = utf8.AppendRune(c.pending, rune(k.UnicodeChar))
		case k.ScanCode == ScanUp:
			c.pending = append(c.pending, "\x1b[A"...)
		case k.ScanCode == ScanDown:
			c.pending = append(c.pending, "\x1b[B"...)
		case k.ScanCode == ScanRight:
			c.pending = append(c.pending, "\x1b[C"...)
		case k.ScanCode == ScanLeft:
			c.pending = append(c.pending, "\x1b[D"...)
		case k.ScanCode == ScanEsc:
			c.pending = append(c.pending, 0x1b)
		}
	}

	n = copy(p, c.pending)
	c.pending = c.pending[n:]

	return
}

// Write data from buffer to console.
func (c *Console) Write(p []byte) (n int, err error) {
	if len(p) == 0 {
		return
	}

	s := string(p)

	// We receive an UTF-8 string but we can output only UTF-16 ones.

	if c.ReplaceTabs > 0 {
		s = strings.ReplaceAll(s, "\t", strings.Repeat(" ", c.ReplaceTabs))
	}

	if c.ForceLine {
		s = strings.ReplaceAll(s, "\n", "\n\r")
	}

	if err = c.Print(s); err != nil {
		return
	}

	return len(p), nil
}
