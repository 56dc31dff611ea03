// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && amd64

package x64

import (
	_ "unsafe"

	"github.com/usbarmory/go-uefi/uefi"
)

// Console represents the early UEFI services console for pre UEFI.Init()
// standard output.
var Console = &uefi.Console{
	ForceLine: true,
	Firmware:  Firmware,
}

// printk buffer, a character and its null terminator
var buf [2]uint16

//go:linkname printk runtime.printk
func printk(c byte) {
	if Console.Out == 0 {
		Console.Out = conOut
	}

	output(c)

	if c == 0x0a && Console.ForceLine { // LF
		output(0x0d) // CR
	}
}

func output(c byte) {
	buf[0] = uint16(c)
	Console.OutputString(buf[:])
}
