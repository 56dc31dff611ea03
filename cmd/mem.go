// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package cmd

import (
	"bytes"
	"fmt"
	"log"
	"regexp"
	"strconv"

	"github.com/u-root/u-root/pkg/boot/bzimage"

	"github.com/usbarmory/go-uefi/shell"
	"github.com/usbarmory/go-uefi/uefi"
)

var e820Names = map[uint32]string{
	uint32(bzimage.RAM):               "RAM",
	uint32(bzimage.Reserved):          "Reserved",
	uint32(bzimage.ACPI):              "ACPI",
	uint32(bzimage.NVS):               "NVS",
	uefi.AddressRangePersistentMemory: "Persistent",
}

func init() {
	shell.Add(shell.Cmd{
		Name:    "alloc",
		Args:    2,
		Pattern: regexp.MustCompile(`^alloc ([[:xdigit:]]+) (\d+)$`),
		Syntax:  "<hex offset> <size>",
		Help:    "EFI_BOOT_SERVICES.AllocatePages() at address",
		Fn:      allocCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "pages",
		Args:    1,
		Pattern: regexp.MustCompile(`^pages (\d+)$`),
		Syntax:  "<count>",
		Help:    "allocate, test and free pages",
		Fn:      pagesCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "pool",
		Args:    1,
		Pattern: regexp.MustCompile(`^pool (\d+)$`),
		Syntax:  "<size>",
		Help:    "EFI_BOOT_SERVICES.AllocatePool()",
		Fn:      poolCmd,
	})
}

func formatE820(memoryMap *uefi.MemoryMap) (res string, err error) {
	var buf bytes.Buffer

	entries, err := memoryMap.E820()

	if err != nil {
		return
	}

	fmt.Fprintf(&buf, "Type       Start            End\n")

	for _, e := range entries {
		name, ok := e820Names[uint32(e.MemType)]

		if !ok {
			name = fmt.Sprintf("%d", e.MemType)
		}

		fmt.Fprintf(&buf, "%-10s %016x %016x\n", name, e.Addr, e.Addr+e.Size-1)
	}

	return buf.String(), nil
}

// findMemory returns the E820 RAM entry containing the argument range.
func findMemory(m []bzimage.E820Entry, start uint64, size uint64) (e bzimage.E820Entry, err error) {
	for _, e := range m {
		if e.MemType != bzimage.RAM || e.Size < size {
			continue
		}

		if start < e.Addr || start+size > e.Addr+e.Size {
			continue
		}

		return e, nil
	}

	return e, fmt.Errorf("range %#08x - %#08x is not available RAM", start, start+size)
}

func allocCmd(_ *shell.Interface, arg []string) (res string, err error) {
	addr, err := strconv.ParseUint(arg[0], 16, 64)

	if err != nil {
		return "", fmt.Errorf("invalid address, %v", err)
	}

	size, err := strconv.ParseUint(arg[1], 10, 64)

	if err != nil {
		return "", fmt.Errorf("invalid size, %v", err)
	}

	if addr%uefi.PageSize != 0 || size == 0 {
		return "", fmt.Errorf("only page aligned, non empty, allocations are supported")
	}

	s, err := services()

	if err != nil {
		return
	}

	memoryMap, err := s.Boot.GetMemoryMap()

	if err != nil {
		return
	}

	e820, err := memoryMap.E820()

	if err != nil {
		return
	}

	if _, err = findMemory(e820, addr, size); err != nil {
		return
	}

	log.Printf("allocating memory range %#08x - %#08x", addr, addr+size)

	_, err = s.Boot.AllocatePages(
		uefi.AllocateAddress,
		uefi.EfiLoaderData,
		int(size),
		addr,
	)

	return
}

func pagesCmd(_ *shell.Interface, arg []string) (res string, err error) {
	count, err := strconv.Atoi(arg[0])

	if err != nil || count <= 0 {
		return "", fmt.Errorf("invalid page count")
	}

	s, err := services()

	if err != nil {
		return
	}

	err = s.Boot.WithPages(uefi.Anywhere(), uefi.EfiLoaderData, count, func(p *uefi.Pages) error {
		buf, err := p.Bytes()

		if err != nil {
			return err
		}

		for i := range buf {
			buf[i] = byte(i)
		}

		for i := range buf {
			if buf[i] != byte(i) {
				return fmt.Errorf("memory mismatch at %#x", p.Address+uint64(i))
			}
		}

		res = fmt.Sprintf("%d page(s) at %#016x (%d bytes) tested and released", p.Count, p.Address, p.Size())

		return nil
	})

	return
}

func poolCmd(_ *shell.Interface, arg []string) (res string, err error) {
	size, err := strconv.Atoi(arg[0])

	if err != nil || size <= 0 {
		return "", fmt.Errorf("invalid size")
	}

	s, err := services()

	if err != nil {
		return
	}

	p, err := s.Boot.AllocatePool(uefi.EfiLoaderData, size)

	if err != nil {
		return
	}

	res = fmt.Sprintf("%d bytes at %#016x", p.Size, p.Address)

	return res, p.Free()
}
