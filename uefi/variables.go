// Copyright (c) The go-uefi authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"errors"
	"runtime"
)

var (
	EFI_GLOBAL_VARIABLE_GUID = MustParseGUID("8BE4DF61-93CA-11D2-AA0D-00E098032B8C")
)

// EFI Runtime Services offset for Variable Services
// See: https://uefi.org/specs/UEFI/2.11/08_Services_Runtime_Services.html#variable-services
const (
	getVariable         = 0x48
	getNextVariableName = 0x50
)

const (
	// initial variable name buffer size, in UTF-16 code units
	defaultVariableNameSize = 512
	// maximum variable data or name buffer size
	maxVariableSize = 1 << 20
)

// VariableAttributes represents the attributes of a UEFI variable.
// See: https://uefi.org/specs/UEFI/2.11/08_Services_Runtime_Services.html#getvariable
type VariableAttributes struct {
	NonVolatile              bool
	BootServiceAccess        bool
	RuntimeServiceAccess     bool
	HardwareErrorRecord      bool
	AuthWriteAccess          bool
	TimeBasedAuthWriteAccess bool
	AppendWrite              bool
	EnhancedAuthAccess       bool
}

func parseAttributes(attributes uint32) (attr VariableAttributes) {
	attr.NonVolatile = attributes&0x1 != 0
	attr.BootServiceAccess = attributes&0x2 != 0
	attr.RuntimeServiceAccess = attributes&0x4 != 0
	attr.HardwareErrorRecord = attributes&0x8 != 0
	attr.AuthWriteAccess = attributes&0x10 != 0
	attr.TimeBasedAuthWriteAccess = attributes&0x20 != 0
	attr.AppendWrite = attributes&0x40 != 0
	attr.EnhancedAuthAccess = attributes&0x80 != 0

	return
}

// VariableName represents a UEFI variable identifier.
type VariableName struct {
	Name string
	GUID GUID
}

// GetVariable calls EFI_RUNTIME_SERVICES.GetVariable().
// See: https://uefi.org/specs/UEFI/2.11/08_Services_Runtime_Services.html#getvariable
func (s *RuntimeServices) GetVariable(name string, guid GUID) (attr VariableAttributes, data []byte, err error) {
	var attributes uint32
	var size uint64

	n := toUTF16(name)
	// a one byte buffer allows to retrieve the data size
	data = make([]byte, 1)

	for {
		size = uint64(len(data))

		status := s.fw.Call(s.base+getVariable,
			[]uint64{
				ptrval(&n[0]),
				ptrval(&guid),
				ptrval(&attributes),
				ptrval(&size),
				ptrval(&data[0]),
			},
		)
		runtime.KeepAlive(n)
		runtime.KeepAlive(&guid)

		if isStatus(status, EFI_BUFFER_TOO_SMALL) && size > uint64(len(data)) && size <= maxVariableSize {
			data = make([]byte, size)
			continue
		}

		if err = parseStatus(status); err != nil {
			return VariableAttributes{}, nil, err
		}

		return parseAttributes(attributes), data[:min(size, uint64(len(data)))], nil
	}
}

// GetNextVariableName calls EFI_RUNTIME_SERVICES.GetNextVariableName(), the
// arguments are updated with the next variable identifier. An empty name
// starts the enumeration, [ErrEfiNotFound] is returned at its end.
// See: https://uefi.org/specs/UEFI/2.11/08_Services_Runtime_Services.html#getnextvariablename
func (s *RuntimeServices) GetNextVariableName(name *string, guid *GUID) (err error) {
	buf := toUTF16(*name)
	buf = append(buf, make([]uint16, max(0, defaultVariableNameSize-len(buf)))...)

	for {
		size := uint64(len(buf) * 2)

		status := s.fw.Call(s.base+getNextVariableName,
			[]uint64{
				ptrval(&size),
				ptrval(&buf[0]),
				ptrval(guid),
			},
		)

		if isStatus(status, EFI_BUFFER_TOO_SMALL) && size > uint64(len(buf)*2) && size <= maxVariableSize {
			buf = append(buf, make([]uint16, int(size)/2-len(buf)+1)...)
			continue
		}

		if err = parseStatus(status); err != nil {
			return
		}

		*name = fromUTF16(buf)

		return
	}
}

// Variables returns the identifiers of all UEFI variables.
func (s *RuntimeServices) Variables() (names []VariableName, err error) {
	var v VariableName

	for len(names) < maxVariableSize {
		if err = s.GetNextVariableName(&v.Name, &v.GUID); err != nil {
			break
		}

		names = append(names, v)
	}

	if errors.Is(err, ErrEfiNotFound) {
		err = nil
	}

	return
}
