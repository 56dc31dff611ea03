// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"errors"
	"fmt"
)

// EFI Boot Service offsets
const (
	allocatePages = 0x28
	freePages     = 0x30
	allocatePool  = 0x40
	freePool      = 0x48
)

// EFI_ALLOCATE_TYPE
const (
	AllocateAnyPages = iota
	AllocateMaxAddress
	AllocateAddress
	MaxAllocateType
)

// EFI_MEMORY_TYPE
const (
	EfiReservedMemoryType = iota
	EfiLoaderCode
	EfiLoaderData
	EfiBootServicesCode
	EfiBootServicesData
	EfiRuntimeServicesCode
	EfiRuntimeServicesData
	EfiConventionalMemory
	EfiUnusableMemory
	EfiACPIReclaimMemory
	EfiACPIMemoryNVS
	EfiMemoryMappedIO
	EfiMemoryMappedIOPortSpace
	EfiPalCode
	EfiPersistentMemory
	EfiUnacceptedMemoryType
	EfiMaxMemoryType
)

// AllocatePages calls EFI_BOOT_SERVICES.AllocatePages(), the size is rounded
// up to the EFI page size. The physical address argument is used as upper
// bound with AllocateMaxAddress or as exact location with AllocateAddress,
// the allocated address is returned.
func (s *BootServices) AllocatePages(allocateType int, memoryType int, size int, physicalAddress uint64) (addr uint64, err error) {
	addr = physicalAddress

	status := s.fw.Call(s.base+allocatePages,
		[]uint64{
			uint64(allocateType),
			uint64(memoryType),
			uint64(pages(size)),
			ptrval(&addr),
		},
	)

	return addr, parseStatus(status)
}

// FreePages calls EFI_BOOT_SERVICES.FreePages().
func (s *BootServices) FreePages(physicalAddress uint64, size int) error {
	status := s.fw.Call(s.base+freePages,
		[]uint64{
			physicalAddress,
			uint64(pages(size)),
		},
	)

	return parseStatus(status)
}

func pages(size int) int {
	return (size + PageSize - 1) / PageSize
}

// Placement represents the location constraint of a page allocation.
type Placement struct {
	// Type is the EFI_ALLOCATE_TYPE
	Type int
	// Address is the bound or exact physical address
	Address uint64
}

// Anywhere allows allocation at any available address.
func Anywhere() Placement {
	return Placement{Type: AllocateAnyPages}
}

// Below constrains allocation to addresses lower than or equal to the
// argument one.
func Below(addr uint64) Placement {
	return Placement{Type: AllocateMaxAddress, Address: addr}
}

// At requires allocation at the exact argument address.
func At(addr uint64) Placement {
	return Placement{Type: AllocateAddress, Address: addr}
}

// Pages represents an owned EFI page allocation, it must be released with
// [Pages.Free], typically deferred right after allocation.
type Pages struct {
	// Address is the physical start address
	Address uint64
	// Count is the number of allocated pages
	Count int

	boot  *BootServices
	freed bool
}

// Size returns the allocation size in bytes.
func (p *Pages) Size() int {
	return p.Count * PageSize
}

// Bytes returns a slice aliasing the allocated memory.
func (p *Pages) Bytes() ([]byte, error) {
	if p.freed {
		return nil, errors.New("pages already released")
	}

	return p.boot.fw.Memory(p.Address, p.Size())
}

// Free releases the pages, subsequent calls have no effect.
func (p *Pages) Free() (err error) {
	if p == nil || p.freed {
		return
	}

	p.freed = true

	return p.boot.FreePages(p.Address, p.Size())
}

// Pages allocates count pages of the argument memory type following the
// placement constraint.
func (s *BootServices) Pages(placement Placement, memoryType int, count int) (p *Pages, err error) {
	if count <= 0 {
		return nil, fmt.Errorf("invalid page count (%d)", count)
	}

	addr, err := s.AllocatePages(placement.Type, memoryType, count*PageSize, placement.Address)

	if err != nil {
		return
	}

	p = &Pages{
		Address: addr,
		Count:   count,
		boot:    s,
	}

	return
}

// WithPages allocates pages as [BootServices.Pages] and invokes the argument
// function on them, the pages are released on return, including when fn
// panics.
func (s *BootServices) WithPages(placement Placement, memoryType int, count int, fn func(p *Pages) error) (err error) {
	p, err := s.Pages(placement, memoryType, count)

	if err != nil {
		return
	}

	defer func() {
		if e := p.Free(); err == nil {
			err = e
		}
	}()

	return fn(p)
}

// PoolAllocation represents an EFI pool allocation, it must be released
// exactly once with [PoolAllocation.Free].
type PoolAllocation struct {
	// Address is the allocation start address
	Address uint64
	// Size is the requested size in bytes
	Size int

	boot *BootServices
}

// Bytes returns a slice aliasing the allocated memory.
func (p *PoolAllocation) Bytes() ([]byte, error) {
	return p.boot.fw.Memory(p.Address, p.Size)
}

// Free releases the allocation.
func (p *PoolAllocation) Free() error {
	return p.boot.FreePool(p.Address)
}

// AllocatePool calls EFI_BOOT_SERVICES.AllocatePool().
func (s *BootServices) AllocatePool(memoryType int, size int) (p *PoolAllocation, err error) {
	var addr uint64

	status := s.fw.Call(s.base+allocatePool,
		[]uint64{
			uint64(memoryType),
			uint64(size),
			ptrval(&addr),
		},
	)

	if err = parseStatus(status); err != nil {
		return
	}

	if addr == 0 {
		return nil, ErrEfiOutOfResources
	}

	p = &PoolAllocation{
		Address: addr,
		Size:    size,
		boot:    s,
	}

	return
}

// FreePool calls EFI_BOOT_SERVICES.FreePool().
func (s *BootServices) FreePool(addr uint64) error {
	status := s.fw.Call(s.base+freePool,
		[]uint64{
			addr,
		},
	)

	return parseStatus(status)
}
