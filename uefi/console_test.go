// Copyright (c) The go-uefi authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keyboard registers a ReadKeyStroke implementation over the argument key
// sequence.
func (f *fakeFirmware) keyboard(keys ...InputKey) {
	f.handle(f.conIn+readKeyStroke, func(args []uint64) uint64 {
		if len(keys) == 0 {
			return errorBit | EFI_NOT_READY
		}

		k := keys[0]
		keys = keys[1:]

		f.putUint32(args[1], uint32(k.UnicodeChar)<<16|uint32(k.ScanCode))

		return EFI_SUCCESS
	})
}

func TestConsolePrintln(t *testing.T) {
	s, f := newServices(t)
	out := f.captureConsole()

	require.NoError(t, s.Console.Println("hi"))
	assert.Equal(t, []string{"hi", "\r\n"}, *out)

	calls := f.callsTo(f.conOut + outputString)
	require.Len(t, calls, 2)
	assert.Equal(t, f.conOut, calls[0].args[0])
}

func TestConsoleChunks(t *testing.T) {
	s, f := newServices(t)
	out := f.captureConsole()

	require.NoError(t, s.Console.Print(strings.Repeat("x", 300)))
	require.Len(t, *out, 3)

	assert.Len(t, (*out)[0], 128)
	assert.Len(t, (*out)[1], 128)
	assert.Len(t, (*out)[2], 44)
}

func TestConsoleSurrogatePair(t *testing.T) {
	s, f := newServices(t)
	out := f.captureConsole()

	// the pair would straddle the first chunk boundary
	str := strings.Repeat("a", maxOutputUnits-1) + "\U0001F600b"

	require.NoError(t, s.Console.Print(str))
	require.Len(t, *out, 2)

	assert.Equal(t, strings.Repeat("a", maxOutputUnits-1), (*out)[0])
	assert.Equal(t, "\U0001F600b", (*out)[1])
	assert.Equal(t, str, strings.Join(*out, ""))
}

func TestConsoleWrite(t *testing.T) {
	s, f := newServices(t)
	out := f.captureConsole()

	n, err := s.Console.Write([]byte("a\tb\n"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	assert.Equal(t, "a        b\n\r", strings.Join(*out, ""))

	n, err = s.Console.Write(nil)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestConsoleStopOnError(t *testing.T) {
	s, f := newServices(t)
	n := 0

	f.handle(f.conOut+outputString, func(args []uint64) uint64 {
		if n++; n == 2 {
			return errorBit | EFI_DEVICE_ERROR
		}

		return EFI_SUCCESS
	})

	err := s.Console.Print(strings.Repeat("x", 3*maxOutputUnits))
	assert.ErrorIs(t, err, ErrEfiDeviceError)
	assert.Equal(t, 2, n)

	_, err = s.Console.Write([]byte("x"))
	assert.NoError(t, err)
}

func TestConsoleUnbound(t *testing.T) {
	c := &Console{}

	assert.NoError(t, c.Print("nowhere"))

	_, err := c.ReadKeyStroke()
	assert.ErrorIs(t, err, ErrEfiNotReady)
}

func TestConsoleRead(t *testing.T) {
	s, f := newServices(t)

	f.keyboard(
		InputKey{UnicodeChar: 'l'},
		InputKey{UnicodeChar: 's'},
		InputKey{ScanCode: ScanUp},
		InputKey{UnicodeChar: 'é'},
		InputKey{ScanCode: ScanEsc},
	)

	buf, err := io.ReadAll(io.LimitReader(s.Console, 8))
	require.NoError(t, err)
	assert.Equal(t, "ls\x1b[Aé\x1b", string(buf))

	// no pending keys
	n, err := s.Console.Read(make([]byte, 8))
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestConsoleReadError(t *testing.T) {
	s, f := newServices(t)

	f.handle(f.conIn+readKeyStroke, func(args []uint64) uint64 {
		return errorBit | EFI_DEVICE_ERROR
	})

	_, err := s.Console.Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrEfiDeviceError)
}

func TestConsoleControl(t *testing.T) {
	s, f := newServices(t)

	for _, fn := range []uint64{reset, setAttribute, clearScreen, setCursorPosition, enableCursor} {
		f.handle(f.conOut+fn, func(args []uint64) uint64 { return EFI_SUCCESS })
	}

	require.NoError(t, s.Console.Reset(true))
	require.NoError(t, s.Console.SetAttribute(0x0f))
	require.NoError(t, s.Console.ClearScreen())
	require.NoError(t, s.Console.SetCursorPosition(3, 4))
	require.NoError(t, s.Console.EnableCursor(false))

	assert.Equal(t, []uint64{f.conOut, 1}, f.callsTo(f.conOut + reset)[0].args)
	assert.Equal(t, []uint64{f.conOut, 3, 4}, f.callsTo(f.conOut + setCursorPosition)[0].args)
	assert.Equal(t, []uint64{f.conOut, 0}, f.callsTo(f.conOut + enableCursor)[0].args)
}
