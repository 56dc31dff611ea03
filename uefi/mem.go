// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"encoding/binary"
	"fmt"
	"iter"

	"github.com/u-root/u-root/pkg/boot/bzimage"
)

const (
	// EFI Boot Services offset for GetMemoryMap
	getMemoryMap = 0x38
	// maximum memory map buffer size
	maxMemoryMapSize = 16 << 20
)

// Advanced Configuration and Power Interface Specification (ACPI)
// Version 6.0 - Table 15-312 Address Range Types12
const AddressRangePersistentMemory = 7

// PageSize represents the EFI page size in bytes
const PageSize = 4096 // 4 KiB

var memoryTypeNames = []string{
	"Reserved",
	"LoaderCode",
	"LoaderData",
	"BootServicesCode",
	"BootServicesData",
	"RuntimeServicesCode",
	"RuntimeServicesData",
	"Conventional",
	"Unusable",
	"ACPIReclaim",
	"ACPINVS",
	"MMIO",
	"MMIOPortSpace",
	"PalCode",
	"Persistent",
	"Unaccepted",
}

// MemoryTypeName returns the name of an EFI_MEMORY_TYPE value.
func MemoryTypeName(t uint32) string {
	if int(t) < len(memoryTypeNames) {
		return memoryTypeNames[t]
	}

	return fmt.Sprintf("%#x", t)
}

// MemoryDescriptor represents an EFI Memory Descriptor
type MemoryDescriptor struct {
	Type          uint32
	_             uint32
	PhysicalStart uint64
	VirtualStart  uint64
	NumberOfPages uint64
	Attribute     uint64
}

// descriptorSize represents the minimum EFI Memory Descriptor size, the
// firmware reported stride might be larger.
var descriptorSize = binary.Size(MemoryDescriptor{})

// PhysicalEnd returns the descriptor physical end address.
func (d *MemoryDescriptor) PhysicalEnd() uint64 {
	return d.PhysicalStart + d.NumberOfPages*PageSize
}

// Size returns the descriptor size.
func (d *MemoryDescriptor) Size() int {
	return int(d.NumberOfPages * PageSize)
}

// E820 converts an EFI Memory Map entry to an x86 E820 one suitable for use
// after exiting EFI Boot Services.
func (d *MemoryDescriptor) E820() (bzimage.E820Entry, error) {
	e := bzimage.E820Entry{
		Addr: d.PhysicalStart,
		Size: d.NumberOfPages * PageSize,
	}

	// Unified Extensible Firmware Interface (UEFI) Specification
	// Version 2.10 - Table 7.10: Memory Type Usage after ExitBootServices()
	switch d.Type {
	case EfiLoaderCode, EfiLoaderData, EfiBootServicesCode, EfiBootServicesData, EfiConventionalMemory:
		e.MemType = bzimage.RAM
	case EfiPersistentMemory:
		e.MemType = AddressRangePersistentMemory
	case EfiACPIReclaimMemory:
		e.MemType = bzimage.ACPI
	case EfiACPIMemoryNVS:
		e.MemType = bzimage.NVS
	default:
		e.MemType = bzimage.Reserved
	}

	return e, nil
}

// MemoryMap represents an EFI Memory Map snapshot, it becomes stale as soon
// as any further allocation takes place.
type MemoryMap struct {
	MapSize           uint64
	Descriptors       []*MemoryDescriptor
	MapKey            uint64
	DescriptorSize    uint64
	DescriptorVersion uint32
}

// ParseMemoryMap decodes an EFI Memory Map buffer, descriptors are read with
// the argument stride.
func ParseMemoryMap(buf []byte, stride int) (m *MemoryMap, err error) {
	if stride < descriptorSize {
		return nil, fmt.Errorf("invalid descriptor size (%d)", stride)
	}

	m = &MemoryMap{
		MapSize:        uint64(len(buf)),
		DescriptorSize: uint64(stride),
	}

	for i := 0; i+stride <= len(buf); i += stride {
		d := &MemoryDescriptor{}

		if err = unmarshalBinary(buf[i:i+stride], d); err != nil {
			return nil, err
		}

		m.Descriptors = append(m.Descriptors, d)
	}

	return
}

// Len returns the number of memory descriptors.
func (m *MemoryMap) Len() int {
	return len(m.Descriptors)
}

// Descriptor returns the i-th memory descriptor.
func (m *MemoryMap) Descriptor(i int) (*MemoryDescriptor, error) {
	if i < 0 || i >= len(m.Descriptors) {
		return nil, fmt.Errorf("descriptor index out of range (%d/%d)", i, len(m.Descriptors))
	}

	return m.Descriptors[i], nil
}

// All returns an iterator over the memory descriptors.
func (m *MemoryMap) All() iter.Seq2[int, *MemoryDescriptor] {
	return func(yield func(int, *MemoryDescriptor) bool) {
		for i, d := range m.Descriptors {
			if !yield(i, d) {
				return
			}
		}
	}
}

// E820 converts the memory map to x86 E820 entries.
func (m *MemoryMap) E820() (entries []bzimage.E820Entry, err error) {
	for _, d := range m.Descriptors {
		e, err := d.E820()

		if err != nil {
			return nil, err
		}

		entries = append(entries, e)
	}

	return
}

func (s *BootServices) getMemoryMap(m *MemoryMap, buf []byte) (status uint64) {
	m.MapSize = uint64(len(buf))

	var p uint64

	if len(buf) > 0 {
		p = ptrval(&buf[0])
	}

	return s.fw.Call(s.base+getMemoryMap,
		[]uint64{
			ptrval(&m.MapSize),
			p,
			ptrval(&m.MapKey),
			ptrval(&m.DescriptorSize),
			ptrval(&m.DescriptorVersion),
		},
	)
}

// GetMemoryMap calls EFI_BOOT_SERVICES.GetMemoryMap() to return a memory map
// snapshot along with its key.
//
// The required size is queried first, the map is then retrieved with one
// descriptor of slack as its buffer allocation can grow the map. A failure
// to retrieve the map after the size query is unrecoverable.
func (s *BootServices) GetMemoryMap() (m *MemoryMap, err error) {
	m = &MemoryMap{}

	status := s.getMemoryMap(m, nil)

	if !isStatus(status, EFI_BUFFER_TOO_SMALL) {
		if err = parseStatus(status); err == nil {
			err = fmt.Errorf("unexpected memory map size (%d)", m.MapSize)
		}

		return nil, err
	}

	size := m.MapSize + m.DescriptorSize

	for size <= maxMemoryMapSize {
		buf := make([]byte, size)
		status = s.getMemoryMap(m, buf)

		if isStatus(status, EFI_BUFFER_TOO_SMALL) {
			size = max(m.MapSize+m.DescriptorSize, 2*uint64(len(buf)))
			continue
		}

		if err = parseStatus(status); err != nil {
			break
		}

		key := m.MapKey
		version := m.DescriptorVersion

		if m, err = ParseMemoryMap(buf[:min(m.MapSize, uint64(len(buf)))], int(m.DescriptorSize)); err != nil {
			break
		}

		m.MapKey = key
		m.DescriptorVersion = version

		return
	}

	if err == nil {
		err = fmt.Errorf("memory map exceeds %d bytes", maxMemoryMapSize)
	}

	s.die(fmt.Errorf("could not get memory map, %v", err))

	return nil, err
}
