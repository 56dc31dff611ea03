// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"encoding/binary"
	"errors"
)

func unmarshalBinary(buf []byte, data any) (err error) {
	_, err = binary.Decode(buf, binary.LittleEndian, data)
	return
}

func marshalBinary(data any) (buf []byte, err error) {
	return binary.Append(nil, binary.LittleEndian, data)
}

// decode reads the argument structure from firmware memory.
func decode(fw Firmware, data any, addr uint64) (err error) {
	if addr == 0 {
		return errors.New("invalid address")
	}

	n := binary.Size(data)

	if n <= 0 {
		return errors.New("invalid data type")
	}

	buf, err := fw.Memory(addr, n)

	if err != nil {
		return
	}

	return unmarshalBinary(buf, data)
}

// encode writes the argument structure to firmware memory.
func encode(fw Firmware, data any, addr uint64) (err error) {
	if addr == 0 {
		return errors.New("invalid address")
	}

	b, err := marshalBinary(data)

	if err != nil {
		return
	}

	buf, err := fw.Memory(addr, len(b))

	if err != nil {
		return
	}

	copy(buf, b)

	return
}
