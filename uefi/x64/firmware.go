// Copyright (c) The go-uefi authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && amd64

package x64

import (
	"sync"

	"github.com/usbarmory/tamago/dma"

	"github.com/usbarmory/go-uefi/uefi"
)

// defined in call_amd64.s
func callFn(fn uint64, args *[uefi.MaxArgs]uint64) (status uint64)

// firmware implements the uefi.Firmware interface for the running UEFI
// image, EFI services are invoked with the Microsoft x64 calling convention
// while firmware memory is identity mapped.
type firmware struct {
	sync.Mutex
}

// Call invokes the EFI function whose pointer is stored at the fn address.
func (fw *firmware) Call(fn uint64, args []uint64) (status uint64) {
	var a [uefi.MaxArgs]uint64

	if len(args) > uefi.MaxArgs {
		panic("internal error, too many EFI service arguments")
	}

	copy(a[:], args)

	fw.Lock()
	defer fw.Unlock()

	return callFn(fn, &a)
}

// Memory returns a byte slice aliasing firmware memory.
func (fw *firmware) Memory(addr uint64, size int) (buf []byte, err error) {
	r, err := dma.NewRegion(uint(addr), size, false)

	if err != nil {
		return
	}

	ptr, buf := r.Reserve(size, 0)
	r.Release(ptr)

	return
}
